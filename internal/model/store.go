package model

import (
	"context"
	"time"
)

// RecentJob is the slice of a stored job that Tier 2 compares against.
type RecentJob struct {
	Hash      string
	URL       string
	Title     string
	Company   string
	FirstSeen time.Time
}

// RescoreQuery selects borderline jobs scored against an older profile.
type RescoreQuery struct {
	MinScore           int
	MaxScore           int
	MaxAge             time.Duration
	ExcludeProfileHash string
}

// RescoreCandidate is a job eligible for rescoring together with its current score.
type RescoreCandidate struct {
	Job      JobPosting
	OldScore int
}

// RunRecord summarises one pipeline run.
type RunRecord struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Metrics   FilterMetrics
	Accepted  int
	Rejected  int
	Scored    int
	HardGated int
	Failed    int
	Rescored  int
	Upgraded  int
	Error     string
}

// JobQuery filters the job listing. A zero MinScore includes unscored jobs;
// a positive one keeps only jobs scored at or above it.
type JobQuery struct {
	MinScore int
	Status   Status // empty matches any status
	Limit    int    // <= 0 means no limit
}

// ScoredJob is a stored job with its current score, nil when unscored.
type ScoredJob struct {
	Job   JobPosting
	Score *Score
}

// JobStore persists jobs, scores and status history. Every operation keyed by
// job hash is idempotent.
type JobStore interface {
	FindByHash(ctx context.Context, hash string) (*JobPosting, error)
	Insert(ctx context.Context, job JobPosting) (int64, error)
	TouchLastSeen(ctx context.Context, hash string) error
	MarkInactive(ctx context.Context, searchID string, activeHashes []string) error
	RecentJobs(ctx context.Context, window time.Duration) ([]RecentJob, error)

	ListJobs(ctx context.Context, q JobQuery) ([]ScoredJob, error)

	ListUnscored(ctx context.Context, limit int) ([]JobPosting, error)
	GetScore(ctx context.Context, jobID int64) (*Score, error)
	InsertScore(ctx context.Context, score Score) error
	DeleteScore(ctx context.Context, jobID int64) error
	ReplaceScore(ctx context.Context, score Score) error
	ListForRescore(ctx context.Context, q RescoreQuery) ([]RescoreCandidate, error)

	LastProfileHash(ctx context.Context) (string, error)
	RecordProfileHash(ctx context.Context, hash string, rescored bool) error

	TransitionStatus(ctx context.Context, hash string, to Status, note string) (StatusChange, error)
	StatusHistory(ctx context.Context, hash string) ([]StatusChange, error)

	RecordRun(ctx context.Context, run RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}
