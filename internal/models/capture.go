package models

type CaptureItem struct {
	LocalPath    string `json:"local_path"`
	Size         int64  `json:"size"`
	SizeHuman    string `json:"size_human"`
	DeclaredSize int64  `json:"declared_size"`
	Truncated    bool   `json:"truncated"`
	Checksum     string `json:"blake3"`
	TransferTime string `json:"transfer_time"`
}

type PreviewItem struct {
	Size    int64 `json:"size"`
	Width   int   `json:"width"`
	Height  int   `json:"height"`
	Decoded bool  `json:"decoded"`
}
