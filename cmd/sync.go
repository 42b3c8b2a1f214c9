package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pktremote/internal/archive"
	"pktremote/pkg/utils"
)

var syncCmd = &cobra.Command{
	Use:   "sync [files/folders...]",
	Short: "Upload downloaded captures to the archive bucket",
	Long: `Upload captures to the configured S3 bucket.

Without arguments every capture in the save directory is uploaded. Folders
given as arguments are searched for captures; files are uploaded as given.
Each object records the BLAKE3 checksum of its content in its metadata.

With --bundle the captures are packed into one zip archive first.`,
	Example: `  # Upload every capture in the save directory
  pktremote sync

  # Upload two captures to a dated folder
  pktremote sync pktriggercord/pktriggercord_20240601_120000.dng --destination "captures/2024-06-01"

  # Upload the save directory as one zip
  pktremote sync --bundle

  # Show what would be uploaded
  pktremote sync --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, args)
	},
}

func runSync(cmd *cobra.Command, args []string) error {
	destination, _ := cmd.Flags().GetString("destination")
	bundle, _ := cmd.Flags().GetBool("bundle")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if len(args) == 0 {
		args = []string{saveDir(cmd)}
	}
	files, err := utils.ExpandCaptures(args)
	if err != nil {
		utils.PrintError(err, "sync")
		return err
	}
	if len(files) == 0 {
		err := fmt.Errorf("no captures found in %v", args)
		utils.PrintError(err, "sync")
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag(cmd))
	defer cancel()

	client, err := archive.New(ctx, archiveConfig(cmd))
	if err != nil {
		utils.PrintError(err, "sync")
		return err
	}

	if isVerbose(cmd) {
		cmd.PrintErrf("Starting upload operation...\n")
		cmd.PrintErrf("  Captures: %d\n", len(files))
		cmd.PrintErrf("  Destination: %s\n", getDestinationDisplay(destination))
		cmd.PrintErrf("  Bundle: %t\n", bundle)
		if dryRun {
			cmd.PrintErrln("  DRY RUN MODE: No files will actually be uploaded")
		}
	}

	result, err := client.UploadCaptures(ctx, files, destination, bundle, dryRun)
	if err != nil {
		utils.PrintError(err, "sync")
		return err
	}

	if err := utils.PrintJSON(result); err != nil {
		utils.PrintError(err, "sync")
		return err
	}

	if isVerbose(cmd) {
		cmd.PrintErrln("Upload operation completed successfully")
	}
	return nil
}

func getDestinationDisplay(destination string) string {
	if destination == "" {
		return "bucket root"
	}
	return destination
}

func init() {
	syncCmd.Flags().StringP("destination", "d", "captures", "Destination folder in the bucket")
	syncCmd.Flags().Bool("bundle", false, "Upload the captures as one zip archive")
	syncCmd.Flags().Bool("dry-run", false, "Show what would be uploaded without actually uploading")
	syncCmd.Flags().Int("timeout", 3600, "Timeout in seconds for the operation (default: 1 hour)")
}
