package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsieve/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ingest and job-tracking API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, logger, appOptions{})
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	defer a.Close()

	if a.cfg.Server.Token == "" {
		logger.Warn("server.token is empty, the API is unauthenticated")
	}
	handler := server.NewHandler(server.Deps{
		Store:    a.store,
		Ingester: a.runner,
		Token:    a.cfg.Server.Token,
		Logger:   logger,
	})
	return server.Serve(ctx, a.cfg.Server.Addr, handler, logger)
}
