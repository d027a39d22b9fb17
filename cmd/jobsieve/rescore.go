package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var forceRescore bool

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Rescore borderline jobs against the current profile",
	Long:  "Rescore recently scored jobs in the configured band. Without --force this only happens when the profile changed.",
	RunE:  runRescore,
}

func init() {
	rescoreCmd.Flags().BoolVar(&forceRescore, "force", false, "rescore even if the profile is unchanged")
	rootCmd.AddCommand(rescoreCmd)
}

func runRescore(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, logger, appOptions{scoring: true})
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	defer a.Close()

	report, err := a.rescorer.Run(ctx, a.profile, forceRescore)
	if err != nil {
		return err
	}
	if !report.Changed && !forceRescore {
		fmt.Fprintln(cmd.OutOrStdout(), "profile unchanged, nothing to rescore (use --force to override)")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rescored %d of %d eligible, %d upgraded, %d failed\n",
		report.Rescored, report.Eligible, report.Upgraded, report.Failed)
	return nil
}
