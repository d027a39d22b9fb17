package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsieve/internal/runner"
)

var checkInput string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Dry-run the filters over a postings file",
	Long:  "Print the filter decision for every posting without storing or scoring anything.",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkInput, "input", "i", "", "collector output (JSON array of postings)")
	checkCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, logger, appOptions{dryRun: true})
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	defer a.Close()

	postings, err := runner.LoadPostings(checkInput)
	if err != nil {
		return err
	}
	report, err := a.runner.Ingest(ctx, postings)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OUTCOME\tSTAGE\tTITLE\tCOMPANY\tREASON")
	for _, d := range report.Decisions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Outcome, d.Stage, d.Title, d.Company, d.Reason)
	}
	w.Flush()

	m := report.Metrics
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d seen, %d kept, %.1f%% filtered\n", m.CardsSeen, m.JobsScraped, m.Efficiency())
	return nil
}
