package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/amishk599/jobsieve/internal/backend"
	"github.com/amishk599/jobsieve/internal/config"
	"github.com/amishk599/jobsieve/internal/fallback"
	"github.com/amishk599/jobsieve/internal/model"
	"github.com/amishk599/jobsieve/internal/profile"
	"github.com/amishk599/jobsieve/internal/ratelimit"
	"github.com/amishk599/jobsieve/internal/rescore"
	"github.com/amishk599/jobsieve/internal/retry"
	"github.com/amishk599/jobsieve/internal/runner"
	"github.com/amishk599/jobsieve/internal/scoring"
	"github.com/amishk599/jobsieve/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobsieve",
	Short: "Filter, store and score job postings",
	Long: "jobsieve ingests postings from external collectors, drops irrelevant ones through three " +
		"filter tiers and scores the rest against your profile with a chain of LLM backends.",
	SilenceUsage: true,
	// Default to `start` so `jobsieve` with no args runs the daemon.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBSIEVE_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it. Variables from ./.env
// are loaded first so the YAML can reference them.
// Priority: explicit path arg > JOBSIEVE_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if path == "" {
		if env := os.Getenv("JOBSIEVE_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      *config.Config
	vocab    *config.Vocabulary
	store    model.JobStore
	closer   func() error
	engine   *scoring.Engine
	rescorer *rescore.Manager
	runner   *runner.Runner
	profile  model.CandidateProfile // loaded when scoring
	logger   *slog.Logger
}

type appOptions struct {
	dryRun  bool // NopStore, no scoring
	scoring bool // build the backend chain
}

func newApp(ctx context.Context, logger *slog.Logger, opts appOptions) (*app, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	vocab, err := config.LoadVocabulary(cfg.VocabularyPath)
	if err != nil {
		return nil, err
	}
	logger.Info("config loaded",
		"database", cfg.DatabasePath,
		"backends", len(cfg.Scoring.Backends),
		"workers", cfg.Run.Workers,
		"schedule", cfg.Schedule,
	)

	a := &app{cfg: cfg, vocab: vocab, logger: logger, closer: func() error { return nil }}

	// A missing or empty profile fails before the database is created.
	if opts.scoring && !opts.dryRun {
		if a.profile, err = a.loadProfile(); err != nil {
			return nil, err
		}
	}

	if opts.dryRun {
		logger.Info("dry-run mode: nothing will be stored")
		a.store = store.NewNopStore()
	} else {
		sqlStore, err := store.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		a.store, a.closer = sqlStore, sqlStore.Close
	}

	if opts.scoring && !opts.dryRun {
		limiter := ratelimit.NewLimiter(cfg.Scoring.MinCallDelay, nil)
		backends, err := backend.FromConfig(ctx, cfg.Scoring, limiter)
		if err != nil {
			a.Close()
			return nil, err
		}
		chain := fallback.New(backends, logger,
			fallback.WithBackoff(retry.Backoff{Base: cfg.Scoring.RateLimitBackoff}),
			fallback.WithRequestTimeout(cfg.Scoring.RequestTimeout),
		)
		a.engine = scoring.NewEngine(chain, cfg.Scoring, logger)
		a.rescorer = rescore.NewManager(a.store, a.engine, cfg.Rescore, logger)
	}

	// Typed nils would defeat the runner's nil checks.
	var (
		scorer   runner.Scorer
		rescorer runner.Rescorer
	)
	if a.engine != nil {
		scorer, rescorer = a.engine, a.rescorer
	}
	a.runner = runner.New(a.store, vocab, cfg, scorer, rescorer, logger)
	return a, nil
}

func (a *app) loadProfile() (model.CandidateProfile, error) {
	p, err := profile.Load(a.cfg.Profile.Path, a.cfg.Profile.Preferences)
	if err != nil {
		return model.CandidateProfile{}, err
	}
	a.logger.Debug("profile loaded", "path", a.cfg.Profile.Path, "profile_hash", p.Hash[:12])
	return p, nil
}

func (a *app) Close() {
	if err := a.closer(); err != nil {
		a.logger.Warn("closing store", "error", err)
	}
}
