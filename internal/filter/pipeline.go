package filter

import (
	"log/slog"
	"sync"
	"time"

	"github.com/amishk599/jobsieve/internal/config"
	"github.com/amishk599/jobsieve/internal/model"
)

// Decision is the outcome of running a posting through the pipeline.
type Decision struct {
	Accepted bool
	Stage    string // stage that rejected the posting, empty when accepted
	Reason   string
}

// Pipeline runs the tiers in order and stops at the first rejection. The
// order is cheapest first, so description checks only run on postings that
// already cleared title and dedup.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger

	mu      sync.Mutex
	metrics model.FilterMetrics
}

// NewPipeline creates a pipeline over stages in the given order.
func NewPipeline(logger *slog.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, logger: logger}
}

// Build assembles the standard title -> dedup -> quality pipeline, skipping
// tiers the config disables.
func Build(vocab *config.Vocabulary, snapshot []model.RecentJob, dedup config.DedupConfig, toggles config.FilterToggles, now time.Time, logger *slog.Logger) *Pipeline {
	var stages []Stage
	if toggles.Title {
		stages = append(stages, NewTitleFilter(vocab))
	}
	if toggles.Dedup {
		stages = append(stages, NewDuplicateDetector(snapshot, dedup.Window, dedup.Threshold, now))
	}
	if toggles.Description {
		stages = append(stages, NewQualityFilter(vocab))
	}
	return NewPipeline(logger, stages...)
}

// Evaluate runs p through every stage. A stage error is returned as a
// *model.FilterError and the posting counts as rejected by that stage.
func (pl *Pipeline) Evaluate(p Posting) (Decision, error) {
	pl.count(func(m *model.FilterMetrics) { m.CardsSeen++ })

	for _, st := range pl.stages {
		pass, reason, err := st.Check(p)
		if err != nil {
			pl.countRejection(st.Name())
			return Decision{Stage: st.Name(), Reason: err.Error()}, &model.FilterError{Stage: st.Name(), Err: err}
		}
		if !pass {
			pl.countRejection(st.Name())
			pl.logger.Debug("posting filtered", "stage", st.Name(), "title", p.Title, "reason", reason)
			return Decision{Stage: st.Name(), Reason: reason}, nil
		}
	}

	pl.count(func(m *model.FilterMetrics) { m.JobsScraped++ })
	return Decision{Accepted: true}, nil
}

// Metrics returns a copy of the counters accumulated so far.
func (pl *Pipeline) Metrics() model.FilterMetrics {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.metrics
}

// CountDuplicate records a posting dropped as a duplicate outside Evaluate,
// for example when its hash is already stored.
func (pl *Pipeline) CountDuplicate() {
	pl.count(func(m *model.FilterMetrics) {
		m.CardsSeen++
		m.Tier2Skipped++
	})
}

func (pl *Pipeline) countRejection(stage string) {
	pl.count(func(m *model.FilterMetrics) {
		switch stage {
		case "title":
			m.Tier1Filtered++
		case "dedup":
			m.Tier2Skipped++
		case "quality":
			m.Tier3Filtered++
		}
	})
}

func (pl *Pipeline) count(fn func(m *model.FilterMetrics)) {
	pl.mu.Lock()
	fn(&pl.metrics)
	pl.mu.Unlock()
}
