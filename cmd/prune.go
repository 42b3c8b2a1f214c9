package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pktremote/internal/archive"
	"pktremote/pkg/utils"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete archived captures older than specified days",
	Long: `Delete captures and capture bundles in the archive bucket that were uploaded
more than the specified number of days ago.

Only .dng, .jpg and .zip objects under --folder are considered.

WARNING: This operation is irreversible. Deleted captures cannot be recovered.`,
	Example: `  # Delete captures older than 30 days
  pktremote prune --days 30

  # Preview what would be deleted from another folder
  pktremote prune --days 7 --folder "timelapse" --dry-run

  # Skip the confirmation prompt
  pktremote prune --days 30 --confirm`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPrune(cmd)
	},
}

func runPrune(cmd *cobra.Command) error {
	days, _ := cmd.Flags().GetInt("days")
	folder, _ := cmd.Flags().GetString("folder")
	confirm, _ := cmd.Flags().GetBool("confirm")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if days <= 0 {
		err := fmt.Errorf("days must be greater than 0")
		utils.PrintError(err, "prune")
		return err
	}

	if !confirm && !dryRun {
		cutoffDate := time.Now().AddDate(0, 0, -days)
		cmd.Printf("WARNING: This will permanently delete captures older than %d days (%s) from bucket '%s'",
			days, cutoffDate.Format("2006-01-02"), getBucketName(cmd))
		if folder != "" {
			cmd.Printf(" in folder '%s'", folder)
		}
		cmd.Println()
		cmd.Print("Are you sure? (yes/no): ")

		var response string
		fmt.Fscanln(cmd.InOrStdin(), &response)
		if !slices.Contains([]string{"y", "yes"}, strings.ToLower(response)) {
			cmd.Println("Operation cancelled.")
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag(cmd))
	defer cancel()

	client, err := archive.New(ctx, archiveConfig(cmd))
	if err != nil {
		utils.PrintError(err, "prune")
		return err
	}

	if isVerbose(cmd) {
		cmd.PrintErrf("Deleting captures older than %d days from bucket: %s\n", days, getBucketName(cmd))
		if dryRun {
			cmd.PrintErrln("DRY RUN MODE: No files will actually be deleted")
		}
	}

	result, err := client.Prune(ctx, folder, days, dryRun)
	if err != nil {
		utils.PrintError(err, "prune")
		return err
	}

	if err := utils.PrintJSON(result); err != nil {
		utils.PrintError(err, "prune")
		return err
	}
	return nil
}

func init() {
	pruneCmd.Flags().Int("days", 0, "Delete captures older than this many days (required)")
	if err := pruneCmd.MarkFlagRequired("days"); err != nil {
		utils.PrintError(err, "prune")
	}

	pruneCmd.Flags().StringP("folder", "f", "captures", "Folder in the bucket to prune")
	pruneCmd.Flags().Bool("confirm", false, "Skip confirmation prompt")
	pruneCmd.Flags().Bool("dry-run", false, "Show what would be deleted without actually deleting")
	pruneCmd.Flags().Int("timeout", 1800, "Timeout in seconds for the operation (default: 30 minutes)")
}
