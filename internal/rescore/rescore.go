// Package rescore re-scores borderline jobs after the candidate profile changes.
package rescore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amishk599/jobsieve/internal/config"
	"github.com/amishk599/jobsieve/internal/model"
)

// Scorer scores one job against a profile.
type Scorer interface {
	Score(ctx context.Context, job model.JobPosting, profile model.CandidateProfile) (model.Score, error)
}

// Report summarises one rescore pass.
type Report struct {
	Changed  bool
	Eligible int
	Rescored int
	Upgraded int // crossed the match threshold
	Failed   int
}

// Manager detects profile changes and rescores the bounded borderline band.
type Manager struct {
	store  model.JobStore
	scorer Scorer
	cfg    config.RescoreConfig
	logger *slog.Logger
}

// NewManager creates a rescore manager.
func NewManager(store model.JobStore, scorer Scorer, cfg config.RescoreConfig, logger *slog.Logger) *Manager {
	return &Manager{store: store, scorer: scorer, cfg: cfg, logger: logger}
}

// DetectChange compares hash with the last recorded profile hash. The first
// hash ever seen is recorded without triggering a rescore. A changed hash is
// not recorded here; Run records it once the rescore pass has finished.
func (m *Manager) DetectChange(ctx context.Context, hash string) (bool, error) {
	last, err := m.store.LastProfileHash(ctx)
	if err != nil {
		return false, fmt.Errorf("reading profile hash: %w", err)
	}
	if last == hash {
		return false, nil
	}
	if last == "" {
		if err := m.store.RecordProfileHash(ctx, hash, false); err != nil {
			return false, fmt.Errorf("recording profile hash: %w", err)
		}
		m.logger.Info("recorded initial profile hash", "profile_hash", short(hash))
		return false, nil
	}
	m.logger.Info("profile changed", "from", short(last), "to", short(hash))
	return true, nil
}

// Run rescores eligible jobs when the profile changed since the last run, or
// unconditionally when force is set. A job that fails to rescore keeps its
// old score.
func (m *Manager) Run(ctx context.Context, profile model.CandidateProfile, force bool) (Report, error) {
	changed, err := m.DetectChange(ctx, profile.Hash)
	if err != nil {
		return Report{}, err
	}
	report := Report{Changed: changed}
	if !changed && !force {
		return report, nil
	}

	candidates, err := m.store.ListForRescore(ctx, model.RescoreQuery{
		MinScore:           m.cfg.MinScore,
		MaxScore:           m.cfg.MaxScore,
		MaxAge:             m.cfg.MaxAge,
		ExcludeProfileHash: profile.Hash,
	})
	if err != nil {
		return report, fmt.Errorf("listing rescore candidates: %w", err)
	}
	report.Eligible = len(candidates)

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		score, err := m.scorer.Score(ctx, c.Job, profile)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			report.Failed++
			m.logger.Warn("rescore failed, keeping old score", "job_hash", c.Job.Hash, "error", err)
			continue
		}
		if err := m.store.ReplaceScore(ctx, score); err != nil {
			report.Failed++
			m.logger.Error("replacing score", "job_hash", c.Job.Hash, "error", err)
			continue
		}

		report.Rescored++
		if c.OldScore < m.cfg.MatchThreshold && score.Value >= m.cfg.MatchThreshold {
			report.Upgraded++
			m.logger.Info("job upgraded", "job_hash", c.Job.Hash, "old", c.OldScore, "new", score.Value)
		}
	}

	// Jobs already carrying the new hash are skipped by ListForRescore, so an
	// interrupted pass resumes where it stopped until this hash is recorded.
	if changed {
		if err := m.store.RecordProfileHash(ctx, profile.Hash, true); err != nil {
			return report, fmt.Errorf("recording profile hash: %w", err)
		}
	}

	m.logger.Info("rescore complete",
		"eligible", report.Eligible,
		"rescored", report.Rescored,
		"upgraded", report.Upgraded,
		"failed", report.Failed,
	)
	return report, nil
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
