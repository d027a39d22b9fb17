package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsieve/internal/runner"
)

var runInput string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once over a postings file",
	Long:  "One-shot run: ingest the postings file, score unscored jobs, rescore if the profile changed, then exit.",
	RunE:  runOnce,
}

func init() {
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "collector output (JSON array of postings)")
	runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, logger, appOptions{scoring: true})
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	defer a.Close()

	postings, err := runner.LoadPostings(runInput)
	if err != nil {
		return err
	}
	report, err := a.runner.Run(ctx, postings, a.profile)
	printReport(cmd, report)
	return err
}

func printReport(cmd *cobra.Command, r runner.Report) {
	out := cmd.OutOrStdout()
	m := r.Ingest.Metrics
	fmt.Fprintf(out, "run %s (%s)\n", r.RunID, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  seen %d  title -%d  dedup -%d  quality -%d  kept %d  (%.1f%% filtered)\n",
		m.CardsSeen, m.Tier1Filtered, m.Tier2Skipped, m.Tier3Filtered, m.JobsScraped, m.Efficiency())
	fmt.Fprintf(out, "  accepted %d  rejected %d  duplicates %d  failed %d\n",
		r.Ingest.Accepted, r.Ingest.Rejected, r.Ingest.Duplicates, r.Ingest.Failed)
	fmt.Fprintf(out, "  scored %d  hard-gated %d  scoring failures %d  deferred %d\n",
		r.Scoring.Scored, r.Scoring.HardGated, r.Scoring.Failed, r.Scoring.Deferred)
	if r.Rescore.Changed || r.Rescore.Rescored > 0 {
		fmt.Fprintf(out, "  rescored %d of %d  upgraded %d\n", r.Rescore.Rescored, r.Rescore.Eligible, r.Rescore.Upgraded)
	}
	if r.Partial {
		fmt.Fprintln(out, "  stopped at max duration; remaining jobs will be scored next run")
	}
}
