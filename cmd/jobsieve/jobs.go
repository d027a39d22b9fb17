package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsieve/internal/model"
)

var (
	jobsMinScore int
	jobsStatus   string
	jobsLimit    int
	runsLimit    int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List stored jobs, best score first",
	Args:  cobra.NoArgs,
	RunE:  runJobs,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	jobsCmd.Flags().IntVar(&jobsMinScore, "min-score", 0, "only jobs scored at or above this")
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "only jobs in this application status")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 50, "maximum number of jobs to show (0 for all)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to show (0 for all)")
	rootCmd.AddCommand(jobsCmd, runsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	q := model.JobQuery{MinScore: jobsMinScore, Limit: jobsLimit}
	if jobsStatus != "" {
		status, err := model.ParseStatus(jobsStatus)
		if err != nil {
			return err
		}
		q.Status = status
	}

	a, err := newApp(contextOf(cmd), setupLogger(debug), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.store.ListJobs(contextOf(cmd), q)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tREC\tSTATUS\tTITLE\tCOMPANY\tHASH")
	for _, j := range jobs {
		score, rec := "-", "-"
		if j.Score != nil {
			score, rec = fmt.Sprint(j.Score.Value), string(j.Score.Recommendation)
			if j.Score.HardGated() {
				rec = "gated:" + j.Score.HardGateFailed
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", score, rec, j.Job.Status, j.Job.Title, j.Job.Company, short(j.Job.Hash))
	}
	return w.Flush()
}

func runRuns(cmd *cobra.Command, args []string) error {
	a, err := newApp(contextOf(cmd), setupLogger(debug), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.store.ListRuns(contextOf(cmd), runsLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDURATION\tSEEN\tFILTERED\tACCEPTED\tSCORED\tGATED\tFAILED\tRESCORED\tERROR")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1f%%\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			r.Duration.Round(time.Second),
			r.Metrics.CardsSeen,
			r.Metrics.Efficiency(),
			r.Accepted, r.Scored, r.HardGated, r.Failed, r.Rescored,
			r.Error,
		)
	}
	return w.Flush()
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
