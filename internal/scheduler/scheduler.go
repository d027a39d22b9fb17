// Package scheduler triggers pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work, typically a full pipeline run.
type Job func(ctx context.Context) error

// Scheduler wraps robfig/cron. A tick that fires while the previous run is
// still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	job    Job
	logger *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a scheduler that runs job on spec, e.g. "@every 24h" or a
// five-field cron expression.
func New(spec string, job Job, logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		spec:   spec,
		job:    job,
		logger: logger,
	}
}

// Start registers the job, starts the cron loop and kicks off one run
// immediately without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.trigger(ctx, "tick") }); err != nil {
		return fmt.Errorf("scheduling %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.spec)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.trigger(ctx, "startup")
	}()
	return nil
}

// Stop halts the cron loop and waits for an in-flight run to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is cancelled. It returns nil
// on graceful shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	s.Stop()
	return nil
}

func (s *Scheduler) trigger(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous run still in progress, skipping", "trigger", reason)
		return
	}
	defer s.running.Store(false)

	if err := s.job(ctx); err != nil {
		s.logger.Error("scheduled run failed", "trigger", reason, "error", err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
