package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pktremote/internal/camera"
	"pktremote/internal/models"
	"pktremote/pkg/utils"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger [commands...]",
	Short: "Send a list of commands to the camera",
	Long: `Run one command session against the daemon.

Commands are daemon verbs such as focus or shutter, given as arguments or as a
';' separated list. Without arguments the shutter is released.

The shutter command is repeated once per bracketed frame. The frame count comes
from --shots, or from a status session run first with --sync-bracket.
No status is read by the command session itself.`,
	Example: `  # Release the shutter
  pktremote trigger

  # Focus, then shoot
  pktremote trigger "focus;shutter"

  # Shoot a three frame bracket
  pktremote trigger shutter --shots 3

  # Read the bracket setting from the camera first
  pktremote trigger shutter --sync-bracket`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrigger(cmd, args)
	},
}

func triggerCommands(args []string) []string {
	commands := camera.ParseCommands(strings.Join(args, ";"))
	if len(commands) == 0 {
		return []string{camera.CmdShutter}
	}
	return commands
}

func runTrigger(cmd *cobra.Command, args []string) error {
	shots, _ := cmd.Flags().GetInt("shots")
	syncBracket, _ := cmd.Flags().GetBool("sync-bracket")

	if shots < 0 {
		err := fmt.Errorf("shots must not be negative")
		utils.PrintError(err, "trigger")
		return err
	}
	if shots > 0 && syncBracket {
		err := fmt.Errorf("--shots and --sync-bracket are mutually exclusive")
		utils.PrintError(err, "trigger")
		return err
	}

	runner := newRunner(cmd)
	if shots > 0 {
		runner.SetShutterCount(shots)
	}

	var synced *models.SessionReport
	if syncBracket {
		result := runner.RunStatus(cmd.Context(), camera.Hooks{OnProgress: progressPrinter(cmd.ErrOrStderr())})
		if !result.OK() {
			if err := utils.PrintJSON(newSessionReport(result, runner.Options().Address)); err != nil {
				utils.PrintError(err, "trigger")
			}
			return errSessionFailed
		}
		synced = newSessionReport(result, runner.Options().Address)
	}

	commands := triggerCommands(args)
	if isVerbose(cmd) {
		cmd.PrintErrf("Sending %v, shutter count %d\n", commands, runner.ShutterCount())
	}

	result := runner.RunCommands(cmd.Context(), commands)
	report := newSessionReport(result, runner.Options().Address)
	report.Commands = commands
	if synced != nil {
		// The status session may have fetched a pending capture.
		report.Status = synced.Status
		report.BufferIndex = synced.BufferIndex
		report.Preview = synced.Preview
		report.Capture = synced.Capture
	}

	if err := utils.PrintJSON(report); err != nil {
		utils.PrintError(err, "trigger")
		return err
	}
	if !result.OK() {
		return errSessionFailed
	}
	return nil
}

func init() {
	triggerCmd.Flags().Int("shots", 0, "Number of shutter releases per shutter command")
	triggerCmd.Flags().Bool("sync-bracket", false, "Run a status session first and use its bracket setting")
}
