package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsieve/internal/model"
)

var statusNote string

var statusCmd = &cobra.Command{
	Use:   "status <job-hash> <status>",
	Short: "Move a job to a new application status",
	Args:  cobra.ExactArgs(2),
	RunE:  runStatus,
}

var historyCmd = &cobra.Command{
	Use:   "history <job-hash>",
	Short: "Show the status history of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	statusCmd.Flags().StringVar(&statusNote, "note", "", "free-text note stored with the change")
	rootCmd.AddCommand(statusCmd, historyCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	to, err := model.ParseStatus(args[1])
	if err != nil {
		return err
	}

	a, err := newApp(contextOf(cmd), logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	change, err := a.store.TransitionStatus(contextOf(cmd), args[0], to, statusNote)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", args[0], change.From, change.To)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	a, err := newApp(contextOf(cmd), logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	history, err := a.store.StatusHistory(contextOf(cmd), args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tFROM\tTO\tNOTE")
	for _, c := range history {
		from := string(c.From)
		if from == "" {
			from = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.At.Local().Format(time.DateTime), from, c.To, c.Note)
	}
	return w.Flush()
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
