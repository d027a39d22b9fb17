package store

import (
	"context"
	"time"

	"github.com/amishk599/jobsieve/internal/model"
)

// NopStore is a store used in dry-run mode. It holds nothing, so every posting
// looks new and no write survives the call.
type NopStore struct{}

var _ model.JobStore = (*NopStore)(nil)

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) FindByHash(context.Context, string) (*model.JobPosting, error) { return nil, nil }
func (s *NopStore) Insert(context.Context, model.JobPosting) (int64, error)      { return 0, nil }
func (s *NopStore) TouchLastSeen(context.Context, string) error                  { return nil }
func (s *NopStore) MarkInactive(context.Context, string, []string) error         { return nil }
func (s *NopStore) RecentJobs(context.Context, time.Duration) ([]model.RecentJob, error) {
	return nil, nil
}

func (s *NopStore) ListJobs(context.Context, model.JobQuery) ([]model.ScoredJob, error) {
	return nil, nil
}

func (s *NopStore) ListUnscored(context.Context, int) ([]model.JobPosting, error) { return nil, nil }
func (s *NopStore) GetScore(context.Context, int64) (*model.Score, error)         { return nil, nil }
func (s *NopStore) InsertScore(context.Context, model.Score) error                { return nil }
func (s *NopStore) DeleteScore(context.Context, int64) error                      { return nil }
func (s *NopStore) ReplaceScore(context.Context, model.Score) error               { return nil }
func (s *NopStore) ListForRescore(context.Context, model.RescoreQuery) ([]model.RescoreCandidate, error) {
	return nil, nil
}

func (s *NopStore) LastProfileHash(context.Context) (string, error)         { return "", nil }
func (s *NopStore) RecordProfileHash(context.Context, string, bool) error { return nil }

func (s *NopStore) TransitionStatus(context.Context, string, model.Status, string) (model.StatusChange, error) {
	return model.StatusChange{}, model.ErrNotFound
}

func (s *NopStore) StatusHistory(context.Context, string) ([]model.StatusChange, error) {
	return nil, model.ErrNotFound
}

func (s *NopStore) RecordRun(context.Context, model.RunRecord) error { return nil }
func (s *NopStore) ListRuns(context.Context, int) ([]model.RunRecord, error) {
	return nil, nil
}
