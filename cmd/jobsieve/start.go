package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsieve/internal/runner"
	"github.com/amishk599/jobsieve/internal/scheduler"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scheduled daemon",
	Long:  "Run the pipeline over the inbox directory on the configured schedule; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, logger, appOptions{scoring: true})
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	defer a.Close()

	if a.cfg.InboxDir == "" {
		return errors.New("start needs inbox_dir in the config")
	}
	inbox := runner.Inbox{Dir: a.cfg.InboxDir}

	job := func(ctx context.Context) error {
		// The profile is reloaded every run so edits trigger a rescore.
		prof, err := a.loadProfile()
		if err != nil {
			return err
		}
		_, err = a.runner.RunInbox(ctx, inbox, prof)
		return err
	}

	sched := scheduler.New(a.cfg.Schedule, job, logger)
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		return err
	}

	logger.Info("goodbye")
	return nil
}
