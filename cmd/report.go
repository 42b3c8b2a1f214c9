package cmd

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"pktremote/internal/camera"
	"pktremote/internal/models"
	"pktremote/pkg/utils"
)

func newSessionReport(result *camera.Result, address string) *models.SessionReport {
	report := &models.SessionReport{
		SessionID: result.SessionID,
		Address:   address,
		Shape:     string(result.Shape),
		State:     string(result.State),
		Success:   result.OK(),
		Message:   result.Message(),
		ElapsedMs: result.Elapsed.Milliseconds(),
	}
	if result.Status != nil {
		report.Status = newCameraStatus(result.Status)
	}
	if result.HasBuffer {
		index := result.BufferIndex
		report.BufferIndex = &index
	}
	if p := result.Preview; p != nil {
		report.Preview = &models.PreviewItem{
			Size:    int64(len(p.Data)),
			Width:   p.Width,
			Height:  p.Height,
			Decoded: p.Image != nil,
		}
	}
	if t := result.Capture; t != nil {
		report.Capture = &models.CaptureItem{
			LocalPath:    t.Destination,
			Size:         t.Length,
			SizeHuman:    utils.FormatBytes(t.Length),
			DeclaredSize: t.Declared,
			Truncated:    t.Truncated(),
			Checksum:     t.Checksum,
			TransferTime: utils.FormatMillis(t.Elapsed),
		}
	}
	return report
}

func newCameraStatus(s *camera.StatusRecord) *models.CameraStatus {
	return &models.CameraStatus{
		CameraName:              s.CameraName,
		LensName:                s.LensName,
		ShutterSpeed:            s.ShutterSpeed,
		Aperture:                s.Aperture,
		ISO:                     s.ISO,
		AutoBracketMode:         s.AutoBracketMode,
		AutoBracketPictureCount: s.AutoBracketPictureCount,
		BufMask:                 s.BufMask,
		ShutterCount:            s.ShutterCount(),
	}
}

// progressPrinter redraws a progress bar on w for every reported fraction.
// Nothing is drawn when w is a file that is not a terminal.
func progressPrinter(w io.Writer) camera.ProgressFunc {
	if f, ok := w.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return func(fraction float64) {
		fmt.Fprintf(w, "\r%s", utils.FormatProgress(fraction))
		if fraction >= 1 {
			fmt.Fprintln(w)
		}
	}
}
