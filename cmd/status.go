package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"pktremote/internal/archive"
	"pktremote/internal/camera"
	"pktremote/internal/models"
	"pktremote/pkg/utils"
)

var errSessionFailed = errors.New("camera session failed")

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read the camera status and download the next pending capture",
	Long: `Run one status session against the daemon.

The session will:
- Connect the daemon to the camera and refresh its status
- Read the camera, lens, exposure and bracketing fields
- Download the lowest pending capture buffer, if any, as a DNG file
- Delete that buffer on the camera

The result is printed as JSON. With --upload the downloaded capture is also
archived to the configured bucket.`,
	Example: `  # Read the status of the camera on the local daemon
  pktremote status

  # Use a daemon on another host and keep previews
  pktremote status --host 192.168.1.20 --preview

  # Download and archive the capture
  pktremote status --upload --destination "captures/2024"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd)
	},
}

func runStatus(cmd *cobra.Command) error {
	upload, _ := cmd.Flags().GetBool("upload")
	destination, _ := cmd.Flags().GetString("destination")

	runner := newRunner(cmd)
	hooks := camera.Hooks{
		OnStatus: func(s *camera.StatusRecord) {
			slog.Info("Camera status", "camera", s.CameraName, "lens", s.LensName, "bufmask", s.BufMask)
		},
		OnPreview: func(p *camera.Preview) {
			slog.Info("Preview downloaded", "size", len(p.Data), "width", p.Width, "height", p.Height)
		},
		OnProgress: progressPrinter(cmd.ErrOrStderr()),
	}

	result := runner.RunStatus(cmd.Context(), hooks)
	report := newSessionReport(result, runner.Options().Address)

	if upload && result.OK() && result.Capture != nil {
		uploaded, err := uploadCapture(cmd, result.Capture.Destination, destination)
		if err != nil {
			utils.PrintError(err, "status")
			return err
		}
		report.Archive = uploaded
	}

	if err := utils.PrintJSON(report); err != nil {
		utils.PrintError(err, "status")
		return err
	}
	if !result.OK() {
		return errSessionFailed
	}
	return nil
}

func uploadCapture(cmd *cobra.Command, path, destination string) (*models.UploadResult, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag(cmd))
	defer cancel()

	client, err := archive.New(ctx, archiveConfig(cmd))
	if err != nil {
		return nil, err
	}
	return client.UploadCaptures(ctx, []string{path}, destination, false, false)
}

func init() {
	statusCmd.Flags().Bool("upload", false, "Archive the downloaded capture to the bucket")
	statusCmd.Flags().StringP("destination", "d", "captures", "Destination folder in the bucket for --upload")
	statusCmd.Flags().Int("timeout", 600, "Timeout in seconds for the upload")
}
