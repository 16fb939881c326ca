package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"planpush/internal/config"
)

// rootCmd represents the base command for the planpush application
var rootCmd = &cobra.Command{
	Use:   "planpush",
	Short: "Schedules tasks onto Google Calendar and notifies push subscribers",
	Long: `planpush keeps a simple task list, projects it onto Google Calendar as
events, and tells web-push subscribers when the list changes.

It can run as:
  - An HTTP API server (default)
  - A one-shot scheduling run (schedule)
  - A CLI Google authorization flow (auth)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "planpush version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newScheduleCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// registerCommonFlags wires the flags shared by serve and schedule.
func registerCommonFlags(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory for tasks, subscriptions and the Google token. Can also use DATA_DIR env var.")
	cmd.Flags().StringVar(&cfg.CalendarID, "calendar-id", cfg.CalendarID, "Target Google calendar. Can also use CALENDAR_ID env var.")
	cmd.Flags().StringVar(&cfg.TimeZone, "timezone", cfg.TimeZone, "IANA time zone task times are interpreted in. Can also use TIMEZONE env var.")
	cmd.Flags().StringVar(&cfg.DefaultStartTime, "default-start-time", cfg.DefaultStartTime, "Start time for tasks without one, HH:MM format (default 10:00).")
	cmd.Flags().StringVar(&cfg.GoogleClientID, "google-client-id", "", "Google OAuth Client ID. Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&cfg.GoogleClientSecret, "google-client-secret", "", "Google OAuth Client Secret. Can also use GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().IntVar(&cfg.ScheduleWorkers, "schedule-workers", 0, "Concurrent calendar submissions (0 = default).")
}

// applyEnvFallbacks fills in values from the environment when the flag
// was not explicitly set.
func applyEnvFallbacks(cmd *cobra.Command, cfg *config.Config) {
	envString(cmd, "data-dir", "DATA_DIR", &cfg.DataDir)
	envString(cmd, "calendar-id", "CALENDAR_ID", &cfg.CalendarID)
	envString(cmd, "timezone", "TIMEZONE", &cfg.TimeZone)
	envString(cmd, "default-start-time", "DEFAULT_START_TIME", &cfg.DefaultStartTime)
	envString(cmd, "google-client-id", "GOOGLE_CLIENT_ID", &cfg.GoogleClientID)
	envString(cmd, "google-client-secret", "GOOGLE_CLIENT_SECRET", &cfg.GoogleClientSecret)
}

// envString applies an environment value when the flag was not
// explicitly set.
func envString(cmd *cobra.Command, flag, envVar string, dst *string) {
	if cmd.Flags().Changed(flag) {
		return
	}
	if value := os.Getenv(envVar); value != "" {
		*dst = value
	}
}

// setupLogger installs the process-wide slog logger.
func setupLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
