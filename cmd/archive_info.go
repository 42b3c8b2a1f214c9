package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"pktremote/internal/archive"
	"pktremote/pkg/utils"
)

var archiveInfoCmd = &cobra.Command{
	Use:   "archive-info",
	Short: "Show statistics of the capture archive",
	Long: `Report how many captures the archive bucket holds, their total size and the
span of their upload times.
The bucket name is taken from the configuration unless overridden with --bucket flag.`,
	Example: `  # Get info for the configured bucket
  pktremote archive-info

  # Get info for another bucket
  pktremote archive-info --bucket my-other-bucket`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runArchiveInfo(cmd)
	},
}

func runArchiveInfo(cmd *cobra.Command) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag(cmd))
	defer cancel()

	client, err := archive.New(ctx, archiveConfig(cmd))
	if err != nil {
		utils.PrintError(err, "archive-info")
		return err
	}

	if isVerbose(cmd) {
		cmd.PrintErrf("Getting archive information for: %s\n", getBucketName(cmd))
	}

	info, err := client.Info(ctx)
	if err != nil {
		utils.PrintError(err, "archive-info")
		return err
	}

	if err := utils.PrintJSON(info); err != nil {
		utils.PrintError(err, "archive-info")
		return err
	}
	return nil
}

func init() {
	archiveInfoCmd.Flags().Int("timeout", 300, "Timeout in seconds for the operation")
}
