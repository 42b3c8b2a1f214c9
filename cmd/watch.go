package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pktremote/internal/camera"
	"pktremote/internal/models"
	"pktremote/internal/scheduler"
	"pktremote/pkg/utils"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the camera and download captures as they appear",
	Long: `Poll the daemon on a fixed interval and run a status session on every tick,
downloading each new capture as soon as the camera reports it.

With --frames the shutter is also released repeatedly: once immediately and
then every --delay seconds until the frame count is reached. Burst triggers
and status polls share one connection slot, so sessions never overlap.

A poll interval of 0 disables polling; the command then exits after the last
frame. Otherwise it runs until interrupted or until --duration elapses.`,
	Example: `  # Download captures as they are taken on the camera
  pktremote watch

  # Time lapse: 20 frames, one every 30 seconds, downloading as it goes
  pktremote watch --frames 20 --delay 30

  # Burst only, no polling
  pktremote watch --frames 5 --delay 3 --poll-interval 0`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd)
	},
}

func watchSnapshot(cmd *cobra.Command) (scheduler.Snapshot, error) {
	frames, _ := cmd.Flags().GetInt("frames")
	delay, _ := cmd.Flags().GetInt("delay")
	commands, _ := cmd.Flags().GetString("commands")

	snap := scheduler.Snapshot{
		PollInterval: cfg.PollInterval,
		Frames:       frames,
		FrameDelay:   time.Duration(delay) * time.Second,
		Commands:     camera.ParseCommands(commands),
	}
	if cmd.Flags().Changed("poll-interval") {
		ms, _ := cmd.Flags().GetInt("poll-interval")
		snap.PollInterval = time.Duration(ms) * time.Millisecond
	}
	if snap.PollInterval == 0 && snap.Frames == 0 {
		return snap, fmt.Errorf("nothing to do: polling is disabled and no frames were requested")
	}
	return snap, snap.Validate()
}

func runWatch(cmd *cobra.Command) error {
	snap, err := watchSnapshot(cmd)
	if err != nil {
		utils.PrintError(err, "watch")
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration, _ := cmd.Flags().GetDuration("duration"); duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	runner := newRunner(cmd)
	address := runner.Options().Address

	s, err := scheduler.New(snap, runner,
		scheduler.WithLogger(slog.Default()),
		scheduler.WithHooks(camera.Hooks{OnProgress: progressPrinter(cmd.ErrOrStderr())}),
		scheduler.WithStatusResults(func(result *camera.Result) {
			// Idle polls are only logged.
			if result.OK() && !result.HasBuffer {
				return
			}
			if err := utils.PrintJSON(newSessionReport(result, address)); err != nil {
				slog.Error("Failed to print session report", "error", err)
			}
		}),
		scheduler.WithBurstEvents(func(e scheduler.BurstEvent) {
			report := models.BurstReport{
				Run:     e.Run,
				Of:      e.Of,
				Session: newSessionReport(e.Result, address),
			}
			report.Session.Commands = snap.Commands
			if !e.Next.IsZero() {
				report.Next = utils.FormatTime(e.Next)
			}
			if err := utils.PrintJSON(report); err != nil {
				slog.Error("Failed to print burst report", "error", err)
			}
		}),
	)
	if err != nil {
		utils.PrintError(err, "watch")
		return err
	}

	slog.Info("Watching camera",
		"address", address,
		"poll_interval", snap.PollInterval,
		"frames", snap.Frames,
		"frame_delay", snap.FrameDelay)
	s.Run(ctx)
	return nil
}

func init() {
	watchCmd.Flags().IntP("frames", "n", 0, "Number of burst frames (1-99, 0 disables the burst)")
	watchCmd.Flags().Int("delay", 3, "Seconds between burst frames (3-120)")
	watchCmd.Flags().String("commands", camera.CmdShutter, "';' separated commands sent for each frame")
	watchCmd.Flags().Int("poll-interval", 0, "Status poll interval in milliseconds, 0 disables polling (default from PKT_POLL_INTERVAL_MS or 200)")
	watchCmd.Flags().Duration("duration", 0, "Stop after this long (default: run until interrupted)")
}
