// Package runner orchestrates one pipeline run: ingest raw postings through the
// filter tiers, score what was accepted and rescore borderline jobs when the
// profile changed.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/jobsieve/internal/config"
	"github.com/amishk599/jobsieve/internal/filter"
	"github.com/amishk599/jobsieve/internal/model"
	"github.com/amishk599/jobsieve/internal/normalize"
	"github.com/amishk599/jobsieve/internal/rescore"
)

// Scorer scores one job against a profile.
type Scorer interface {
	Score(ctx context.Context, job model.JobPosting, profile model.CandidateProfile) (model.Score, error)
}

// Rescorer runs the post-run rescore pass.
type Rescorer interface {
	Run(ctx context.Context, profile model.CandidateProfile, force bool) (rescore.Report, error)
}

// PostingDecision is what happened to one raw posting during ingest.
type PostingDecision struct {
	Hash     string `json:"job_hash"`
	Title    string `json:"title"`
	Company  string `json:"company"`
	Outcome  string `json:"outcome"` // accepted, rejected, duplicate, failed
	Stage    string `json:"stage,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Inserted bool   `json:"inserted"`
}

const (
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// IngestReport counts the outcome of an ingest batch. Complete is false when
// the batch stopped early and some postings were never looked at.
type IngestReport struct {
	Complete   bool                `json:"complete"`
	Received   int                 `json:"received"`
	Accepted   int                 `json:"accepted"`
	Rejected   int                 `json:"rejected"`
	Duplicates int                 `json:"duplicates"`
	Failed     int                 `json:"failed"`
	Metrics    model.FilterMetrics `json:"metrics"`
	Decisions  []PostingDecision   `json:"decisions,omitempty"`
}

// ScoreReport counts the outcome of scoring unscored jobs. Deferred jobs were
// cut off by the run ending and stay unscored for the next run.
type ScoreReport struct {
	Scored    int `json:"scored"`
	HardGated int `json:"hard_gated"`
	Failed    int `json:"failed"`
	Deferred  int `json:"deferred"`
}

// Report summarises a full run. Partial is set when the run hit its maximum
// duration; work completed before the deadline is kept.
type Report struct {
	RunID    string
	Ingest   IngestReport
	Scoring  ScoreReport
	Rescore  rescore.Report
	Duration time.Duration
	Partial  bool
}

// Runner owns the ingest -> score -> rescore pipeline.
type Runner struct {
	store    model.JobStore
	vocab    *config.Vocabulary
	cfg      *config.Config
	scorer   Scorer
	rescorer Rescorer
	logger   *slog.Logger

	locks *keyedMutex
	now   func() time.Time
}

// New creates a runner wired with all its dependencies. scorer and rescorer
// may be nil for ingest-only use, such as dry runs.
func New(
	store model.JobStore,
	vocab *config.Vocabulary,
	cfg *config.Config,
	scorer Scorer,
	rescorer Rescorer,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		store:    store,
		vocab:    vocab,
		cfg:      cfg,
		scorer:   scorer,
		rescorer: rescorer,
		logger:   logger,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// Ingest filters postings and stores the accepted ones. Per-posting failures
// are counted and logged; only a hash invariant violation aborts the batch.
func (r *Runner) Ingest(ctx context.Context, postings []model.RawPosting) (IngestReport, error) {
	report := IngestReport{Received: len(postings)}

	var snapshot []model.RecentJob
	if r.cfg.Filters.Dedup {
		var err error
		snapshot, err = r.store.RecentJobs(ctx, r.cfg.Dedup.Window)
		if err != nil {
			return report, fmt.Errorf("snapshotting recent jobs: %w", err)
		}
	}
	pl := filter.Build(r.vocab, snapshot, r.cfg.Dedup, r.cfg.Filters, r.now(), r.logger)

	// Hashes seen per collector search, for retiring postings that disappeared.
	seenBySearch := make(map[string][]string)

	for _, raw := range postings {
		if err := ctx.Err(); err != nil {
			report.Metrics = pl.Metrics()
			return report, err
		}

		job := toJob(raw, r.cfg.Dedup.IncludeURL)
		if job.SourceSearchID != "" {
			seenBySearch[job.SourceSearchID] = append(seenBySearch[job.SourceSearchID], job.Hash)
		}

		d, err := r.ingestOne(ctx, pl, job)
		if err != nil && errors.Is(err, model.ErrHashInvariant) {
			report.Metrics = pl.Metrics()
			return report, err
		}
		// A posting cut off by the deadline is not a failure; it is left
		// for the next run.
		if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
			report.Metrics = pl.Metrics()
			return report, ctxErr
		}
		switch d.Outcome {
		case OutcomeAccepted:
			report.Accepted++
		case OutcomeRejected:
			report.Rejected++
		case OutcomeDuplicate:
			report.Duplicates++
		case OutcomeFailed:
			report.Failed++
			r.logger.Warn("ingest failed", "job_hash", job.Hash, "title", job.Title, "error", err)
		}
		report.Decisions = append(report.Decisions, d)
	}
	report.Complete = true

	searchIDs := make([]string, 0, len(seenBySearch))
	for id := range seenBySearch {
		searchIDs = append(searchIDs, id)
	}
	sort.Strings(searchIDs)
	for _, id := range searchIDs {
		if err := r.store.MarkInactive(ctx, id, seenBySearch[id]); err != nil {
			r.logger.Warn("marking inactive", "search_id", id, "error", err)
		}
	}

	report.Metrics = pl.Metrics()
	r.logger.Info("ingested postings",
		"received", report.Received,
		"accepted", report.Accepted,
		"rejected", report.Rejected,
		"duplicates", report.Duplicates,
		"failed", report.Failed,
		"efficiency", fmt.Sprintf("%.1f%%", report.Metrics.Efficiency()),
	)
	return report, nil
}

func (r *Runner) ingestOne(ctx context.Context, pl *filter.Pipeline, job model.JobPosting) (PostingDecision, error) {
	d := PostingDecision{Hash: job.Hash, Title: job.Title, Company: job.Company}

	unlock := r.locks.Lock(job.Hash)
	defer unlock()

	existing, err := r.store.FindByHash(ctx, job.Hash)
	if err != nil {
		d.Outcome = OutcomeFailed
		return d, err
	}
	if existing != nil {
		pl.CountDuplicate()
		d.Outcome, d.Stage, d.Reason = OutcomeDuplicate, "dedup", "job hash already stored"
		if err := r.store.TouchLastSeen(ctx, job.Hash); err != nil {
			d.Outcome = OutcomeFailed
			return d, err
		}
		return d, nil
	}

	decision, err := pl.Evaluate(filter.Posting{
		Title:       job.Title,
		Company:     job.Company,
		URL:         job.URL,
		Description: job.Description,
	})
	if err != nil {
		// The posting was counted against the failing stage and is skipped.
		d.Outcome, d.Stage, d.Reason = OutcomeFailed, decision.Stage, decision.Reason
		return d, err
	}
	if !decision.Accepted {
		d.Outcome, d.Stage, d.Reason = OutcomeRejected, decision.Stage, decision.Reason
		return d, nil
	}

	if _, err := r.store.Insert(ctx, job); err != nil {
		if errors.Is(err, model.ErrAlreadyExists) {
			d.Outcome, d.Stage, d.Reason = OutcomeDuplicate, "dedup", "job hash already stored"
			if err := r.store.TouchLastSeen(ctx, job.Hash); err != nil {
				d.Outcome = OutcomeFailed
				return d, err
			}
			return d, nil
		}
		d.Outcome = OutcomeFailed
		return d, err
	}
	d.Outcome, d.Inserted = OutcomeAccepted, true
	return d, nil
}

// ScoreUnscored scores up to run.batch_size unscored jobs on a bounded worker
// pool. A failed job stays unscored and is retried by the next run.
func (r *Runner) ScoreUnscored(ctx context.Context, profile model.CandidateProfile) (ScoreReport, error) {
	var report ScoreReport
	if r.scorer == nil {
		return report, nil
	}

	jobs, err := r.store.ListUnscored(ctx, r.cfg.Run.BatchSize)
	if err != nil {
		return report, fmt.Errorf("listing unscored jobs: %w", err)
	}
	if len(jobs) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.cfg.Run.Workers, 1))

	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			score, err := r.scoreOne(gctx, job, profile)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, model.ErrHashInvariant):
				return err
			case err != nil && gctx.Err() != nil:
				report.Deferred++
			case err != nil:
				report.Failed++
				r.logger.Warn("scoring failed", "job_hash", job.Hash, "title", job.Title, "error", err)
			case score.HardGated():
				report.Scored++
				report.HardGated++
			default:
				report.Scored++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	r.logger.Info("scored jobs",
		"scored", report.Scored,
		"hard_gated", report.HardGated,
		"failed", report.Failed,
		"deferred", report.Deferred,
	)
	return report, ctx.Err()
}

func (r *Runner) scoreOne(ctx context.Context, job model.JobPosting, profile model.CandidateProfile) (model.Score, error) {
	unlock := r.locks.Lock(job.Hash)
	defer unlock()

	score, err := r.scorer.Score(ctx, job, profile)
	if err != nil {
		return model.Score{}, err
	}
	if err := r.store.InsertScore(ctx, score); err != nil {
		return model.Score{}, err
	}
	r.logger.Debug("scored job",
		"job_hash", job.Hash,
		"score", score.Value,
		"recommendation", score.Recommendation,
		"model", score.ModelUsed,
	)
	return score, nil
}

// Run executes ingest, scoring and rescore under run.max_duration and records
// the run. Hitting the deadline yields a partial report rather than an error.
func (r *Runner) Run(ctx context.Context, postings []model.RawPosting, profile model.CandidateProfile) (Report, error) {
	start := r.now()
	report := Report{RunID: uuid.NewString()}

	runCtx := ctx
	if r.cfg.Run.MaxDuration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.Run.MaxDuration)
		defer cancel()
	}

	logger := r.logger.With("run_id", report.RunID)
	logger.Info("run started", "postings", len(postings))

	err := r.runStages(runCtx, postings, profile, &report)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		logger.Warn("run hit max duration, keeping partial results", "max_duration", r.cfg.Run.MaxDuration)
		report.Partial = true
	}
	report.Duration = r.now().Sub(start)

	record := model.RunRecord{
		ID:        report.RunID,
		StartedAt: start,
		Duration:  report.Duration,
		Metrics:   report.Ingest.Metrics,
		Accepted:  report.Ingest.Accepted,
		Rejected:  report.Ingest.Rejected,
		Scored:    report.Scoring.Scored,
		HardGated: report.Scoring.HardGated,
		Failed:    report.Ingest.Failed + report.Scoring.Failed + report.Rescore.Failed,
		Rescored:  report.Rescore.Rescored,
		Upgraded:  report.Rescore.Upgraded,
	}
	if err != nil {
		record.Error = err.Error()
	}
	// Record even when the run context is already done.
	if recErr := r.store.RecordRun(context.WithoutCancel(ctx), record); recErr != nil {
		logger.Error("recording run", "error", recErr)
	}

	logger.Info("run finished",
		"duration", report.Duration.Round(time.Millisecond).String(),
		"accepted", report.Ingest.Accepted,
		"scored", report.Scoring.Scored,
		"hard_gated", report.Scoring.HardGated,
		"rescored", report.Rescore.Rescored,
		"upgraded", report.Rescore.Upgraded,
	)

	if report.Partial {
		return report, nil
	}
	return report, err
}

func (r *Runner) runStages(ctx context.Context, postings []model.RawPosting, profile model.CandidateProfile, report *Report) error {
	var err error
	if report.Ingest, err = r.Ingest(ctx, postings); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if report.Scoring, err = r.ScoreUnscored(ctx, profile); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if r.rescorer != nil {
		if report.Rescore, err = r.rescorer.Run(ctx, profile, false); err != nil {
			return fmt.Errorf("rescore: %w", err)
		}
	}
	return nil
}

// toJob converts a collector posting. Unknown sources are kept as "other".
func toJob(raw model.RawPosting, includeURL bool) model.JobPosting {
	source, err := model.ParseSource(raw.Source)
	if err != nil {
		source = model.SourceOther
	}
	title := normalize.Whitespace(raw.Title)
	company := normalize.Whitespace(raw.Company)
	url := strings.TrimSpace(raw.URL)
	return model.JobPosting{
		Hash:              normalize.JobHash(title, company, url, includeURL),
		Title:             title,
		Company:           company,
		NormalizedCompany: normalize.Company(company),
		Location:          strings.TrimSpace(raw.Location),
		Description:       raw.Description,
		URL:               url,
		Source:            source,
		SourceSearchID:    strings.TrimSpace(raw.SourceSearchID),
		Region:            strings.TrimSpace(raw.Region),
		Active:            true,
		Status:            model.StatusNew,
	}
}
