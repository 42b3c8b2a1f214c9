package cmd

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pktremote/config"
	"pktremote/internal/camera"
)

var (
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pktremote",
	Short: "Remote control for the pktriggercord camera daemon",
	Long: `pktremote talks to a pktriggercord server-mode daemon over TCP.
It reads the camera status, downloads pending captures, triggers the shutter
and archives downloaded captures to an S3-compatible bucket.
Configuration is loaded from .env file or environment variables`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger(cmd)
	},
}

func Execute(config *config.Config) error {
	cfg = config
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(archiveInfoCmd)

	rootCmd.PersistentFlags().String("host", "", "Daemon host (default from PKT_HOST or localhost)")
	rootCmd.PersistentFlags().Int("port", 0, "Daemon port (default from PKT_PORT or 8888)")
	rootCmd.PersistentFlags().String("save-dir", "", "Directory for downloaded captures (default from PKT_SAVE_DIR)")
	rootCmd.PersistentFlags().Bool("preview", false, "Download the preview before each capture")
	rootCmd.PersistentFlags().Bool("strict", false, "Fail a session whose capture is shorter than announced")
	rootCmd.PersistentFlags().StringP("bucket", "b", "", "Override bucket name from config")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")

	rootCmd.SetUsageTemplate(usageTemplate)
}

// setupLogger logs text to a terminal and JSON to anything else.
func setupLogger(cmd *cobra.Command) {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if isVerbose(cmd) {
		options.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	slog.SetDefault(slog.New(handler))
}

func getBucketName(cmd *cobra.Command) string {
	bucket, _ := cmd.Flags().GetString("bucket")
	if bucket != "" {
		return bucket
	}
	return cfg.BucketName
}

func isVerbose(cmd *cobra.Command) bool {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return verbose
}

// archiveConfig returns the configuration with the --bucket override applied.
func archiveConfig(cmd *cobra.Command) *config.Config {
	c := *cfg
	c.BucketName = getBucketName(cmd)
	return &c
}

func stringFlag(cmd *cobra.Command, name, fallback string) string {
	if !cmd.Flags().Changed(name) {
		return fallback
	}
	value, _ := cmd.Flags().GetString(name)
	return value
}

func intFlag(cmd *cobra.Command, name string, fallback int) int {
	if !cmd.Flags().Changed(name) {
		return fallback
	}
	value, _ := cmd.Flags().GetInt(name)
	return value
}

func boolFlag(cmd *cobra.Command, name string, fallback bool) bool {
	if !cmd.Flags().Changed(name) {
		return fallback
	}
	value, _ := cmd.Flags().GetBool(name)
	return value
}

// runnerOptions merges the connection flags over the loaded configuration.
func runnerOptions(cmd *cobra.Command) camera.Options {
	daemon := *cfg
	daemon.Host = stringFlag(cmd, "host", cfg.Host)
	daemon.Port = intFlag(cmd, "port", cfg.Port)
	return camera.Options{
		Address:        daemon.Address(),
		ConnectTimeout: cfg.ConnectTimeout,
		SaveDir:        saveDir(cmd),
		ShowPreview:    boolFlag(cmd, "preview", cfg.ShowPreview),
		StrictLength:   boolFlag(cmd, "strict", cfg.StrictLength),
	}
}

func saveDir(cmd *cobra.Command) string {
	return stringFlag(cmd, "save-dir", cfg.SaveDir)
}

func newRunner(cmd *cobra.Command) *camera.Runner {
	return camera.NewRunner(runnerOptions(cmd), slog.Default())
}

func timeoutFlag(cmd *cobra.Command) time.Duration {
	timeout, _ := cmd.Flags().GetInt("timeout")
	return time.Duration(timeout) * time.Second
}

const usageTemplate = `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}

Available Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`
