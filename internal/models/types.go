package models

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
}

type CameraStatus struct {
	CameraName              string `json:"camera_name"`
	LensName                string `json:"lens_name"`
	ShutterSpeed            string `json:"shutter_speed"`
	Aperture                string `json:"aperture"`
	ISO                     string `json:"iso"`
	AutoBracketMode         int    `json:"auto_bracket_mode"`
	AutoBracketPictureCount int    `json:"auto_bracket_picture_count"`
	BufMask                 int    `json:"bufmask"`
	ShutterCount            int    `json:"shutter_count"`
}

type SessionReport struct {
	SessionID   string        `json:"session_id"`
	Address     string        `json:"address"`
	Shape       string        `json:"shape"`
	State       string        `json:"state"`
	Success     bool          `json:"success"`
	Message     string        `json:"message"`
	ElapsedMs   int64         `json:"elapsed_ms"`
	Status      *CameraStatus `json:"status,omitempty"`
	BufferIndex *int          `json:"buffer_index,omitempty"`
	Preview     *PreviewItem  `json:"preview,omitempty"`
	Capture     *CaptureItem  `json:"capture,omitempty"`
	Commands    []string      `json:"commands,omitempty"`
	Archive     *UploadResult `json:"archive,omitempty"`
}

type BurstReport struct {
	Run     int            `json:"run"`
	Of      int            `json:"of"`
	Next    string         `json:"next,omitempty"`
	Session *SessionReport `json:"session"`
}

type ArchiveInfo struct {
	BucketName     string `json:"bucket_name"`
	Region         string `json:"region"`
	CaptureCount   int64  `json:"capture_count"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	TotalSizeHuman string `json:"total_size_human"`
	OldestCapture  string `json:"oldest_capture,omitempty"`
	NewestCapture  string `json:"newest_capture,omitempty"`
	APIEndpoint    string `json:"api_endpoint,omitempty"`
}

type PruneResult struct {
	BucketName     string   `json:"bucket_name"`
	Folder         string   `json:"folder"`
	DaysOld        int      `json:"days_old"`
	DryRun         bool     `json:"dry_run"`
	DeletedFiles   []string `json:"deleted_files"`
	DeletedCount   int      `json:"deleted_count"`
	TotalSizeBytes int64    `json:"total_size_bytes"`
	TotalSizeHuman string   `json:"total_size_human"`
	OperationTime  string   `json:"operation_time"`
	CutoffDate     string   `json:"cutoff_date"`
}
