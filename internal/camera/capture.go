package camera

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"time"
)

const (
	capturePrefix     = "pktriggercord_"
	captureExtension  = ".dng"
	captureTimeLayout = "20060102_150405"
)

// Preview is the optional low resolution rendition of a capture. Image is nil
// when the payload does not decode.
type Preview struct {
	Data     []byte      `json:"-"`
	Image    image.Image `json:"-"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	Transfer *Transfer   `json:"transfer"`
}

func newPreview(data []byte, transfer *Transfer) *Preview {
	p := &Preview{Data: data, Transfer: transfer}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return p
	}
	p.Image = img
	p.Width = img.Bounds().Dx()
	p.Height = img.Bounds().Dy()
	return p
}

// CaptureName returns the file name used for a capture downloaded at t. A
// positive n marks the nth collision with an existing file.
func CaptureName(t time.Time, n int) string {
	base := capturePrefix + t.Format(captureTimeLayout)
	if n > 0 {
		return fmt.Sprintf("%s-%d%s", base, n, captureExtension)
	}
	return base + captureExtension
}

// createCaptureFile creates a new capture file in dir. An existing file is
// never reused; colliding names get a numeric suffix.
func createCaptureFile(dir string, t time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create save directory %s: %w", dir, err)
	}
	for n := 0; ; n++ {
		path := filepath.Join(dir, CaptureName(t, n))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create capture file %s: %w", path, err)
		}
	}
}
