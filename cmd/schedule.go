package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"planpush/internal/calendar"
	"planpush/internal/config"
	"planpush/internal/google"
	"planpush/internal/scheduler"
	"planpush/internal/store"
)

func newScheduleCmd() *cobra.Command {
	cfg := config.Default()
	var debugMode bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Project the stored tasks onto Google Calendar once",
		Long: `Run one scheduling pass over the stored task list and exit.

Each task becomes a calendar event on its deadline date; tasks that
cannot be parsed or submitted are reported without stopping the run.
Requires a stored Google token (see the auth command).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyEnvFallbacks(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runSchedule(cmd, cfg, debugMode)
		},
	}

	registerCommonFlags(cmd, &cfg)
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	return cmd
}

func runSchedule(cmd *cobra.Command, cfg config.Config, debugMode bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := setupLogger(debugMode)

	tasks, err := store.NewTaskStore(filepath.Join(cfg.DataDir, "tasks.json"))
	if err != nil {
		return fmt.Errorf("failed to open task store: %w", err)
	}
	if tasks.Len() == 0 {
		cmd.Println("No tasks to schedule.")
		return nil
	}

	client, err := calendar.NewClient(ctx, cfg.OAuth(), google.NewFileTokenProvider(cfg.DataDir))
	if err != nil {
		if errors.Is(err, google.ErrNoToken) {
			return fmt.Errorf("no Google authorization found; run 'planpush auth' first")
		}
		return err
	}

	sched, err := scheduler.New(cfg.Scheduler(), logger)
	if err != nil {
		return err
	}

	results := sched.Run(ctx, client, tasks.List())

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			cmd.Printf("FAILED  %s: %v\n", res.Name, res.Err)
			continue
		}
		cmd.Printf("created %s: %s\n", res.Name, res.Link)
	}
	cmd.Printf("%d of %d tasks scheduled.\n", len(results)-failed, len(results))

	if failed == len(results) {
		return fmt.Errorf("all %d tasks failed to schedule", failed)
	}
	return nil
}
