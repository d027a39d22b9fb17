package rescore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/amishk599/jobsieve/internal/config"
	"github.com/amishk599/jobsieve/internal/model"
	"github.com/amishk599/jobsieve/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore keeps profile hashes and rescore candidates in memory.
type fakeStore struct {
	*store.NopStore
	hashes     []string
	rescored   []bool
	candidates []model.RescoreCandidate
	query      model.RescoreQuery
	replaced   []model.Score
	replaceErr error
}

func (s *fakeStore) LastProfileHash(context.Context) (string, error) {
	if len(s.hashes) == 0 {
		return "", nil
	}
	return s.hashes[len(s.hashes)-1], nil
}

func (s *fakeStore) RecordProfileHash(_ context.Context, hash string, rescored bool) error {
	s.hashes = append(s.hashes, hash)
	s.rescored = append(s.rescored, rescored)
	return nil
}

// ListForRescore skips candidates already rescored under the excluded hash.
func (s *fakeStore) ListForRescore(_ context.Context, q model.RescoreQuery) ([]model.RescoreCandidate, error) {
	s.query = q
	var out []model.RescoreCandidate
	for _, c := range s.candidates {
		done := false
		for _, r := range s.replaced {
			if r.JobID == c.Job.ID && q.ExcludeProfileHash != "" && r.ProfileHash == q.ExcludeProfileHash {
				done = true
			}
		}
		if !done {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) ReplaceScore(_ context.Context, score model.Score) error {
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.replaced = append(s.replaced, score)
	return nil
}

// mapScorer returns a fixed score per job hash, or an error for hashes absent
// from the map.
type mapScorer map[string]int

func (m mapScorer) Score(_ context.Context, job model.JobPosting, profile model.CandidateProfile) (model.Score, error) {
	v, ok := m[job.Hash]
	if !ok {
		return model.Score{}, errors.New("backend down")
	}
	return model.Score{JobID: job.ID, Value: v, ProfileHash: profile.Hash}, nil
}

func testConfig() config.RescoreConfig {
	return config.RescoreConfig{MinScore: 70, MaxScore: 79, MatchThreshold: 75}
}

func candidate(id int64, hash string, old int) model.RescoreCandidate {
	return model.RescoreCandidate{Job: model.JobPosting{ID: id, Hash: hash}, OldScore: old}
}

func TestDetectChange(t *testing.T) {
	fs := &fakeStore{NopStore: store.NewNopStore()}
	m := NewManager(fs, mapScorer{}, testConfig(), discardLogger())
	ctx := context.Background()

	steps := []struct {
		hash string
		want bool
	}{
		{"h1", false}, // first hash is recorded only
		{"h1", false},
		{"h2", true},
		{"h2", true}, // still pending until a rescore pass records it
	}
	for i, s := range steps {
		got, err := m.DetectChange(ctx, s.hash)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got != s.want {
			t.Errorf("step %d: DetectChange(%s) = %v, want %v", i, s.hash, got, s.want)
		}
	}
	if len(fs.hashes) != 1 || fs.hashes[0] != "h1" || fs.rescored[0] {
		t.Errorf("recorded hashes = %v (%v), want only the initial h1", fs.hashes, fs.rescored)
	}
}

func TestRun_UnchangedProfileDoesNothing(t *testing.T) {
	fs := &fakeStore{
		NopStore:   store.NewNopStore(),
		hashes:     []string{"h1"},
		candidates: []model.RescoreCandidate{candidate(1, "a", 72)},
	}
	m := NewManager(fs, mapScorer{"a": 90}, testConfig(), discardLogger())

	report, err := m.Run(context.Background(), model.CandidateProfile{Hash: "h1"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Changed || report.Eligible != 0 || len(fs.replaced) != 0 {
		t.Errorf("report = %+v, replaced = %d", report, len(fs.replaced))
	}
}

func TestRun_CountsUpgradesAndFailures(t *testing.T) {
	fs := &fakeStore{
		NopStore: store.NewNopStore(),
		hashes:   []string{"old"},
		candidates: []model.RescoreCandidate{
			candidate(1, "up", 72),      // 72 -> 80 crosses 75
			candidate(2, "flat", 76),    // already above threshold
			candidate(3, "down", 74),    // 74 -> 60
			candidate(4, "missing", 71), // scorer fails
		},
	}
	scorer := mapScorer{"up": 80, "flat": 78, "down": 60}
	m := NewManager(fs, scorer, testConfig(), discardLogger())

	report, err := m.Run(context.Background(), model.CandidateProfile{Hash: "new"}, false)
	if err != nil {
		t.Fatal(err)
	}
	want := Report{Changed: true, Eligible: 4, Rescored: 3, Upgraded: 1, Failed: 1}
	if report != want {
		t.Errorf("report = %+v, want %+v", report, want)
	}
	if fs.query.MinScore != 70 || fs.query.MaxScore != 79 || fs.query.ExcludeProfileHash != "new" {
		t.Errorf("query = %+v", fs.query)
	}
	for _, s := range fs.replaced {
		if s.ProfileHash != "new" {
			t.Errorf("replaced score carries profile hash %q", s.ProfileHash)
		}
	}
	if len(fs.hashes) != 2 || fs.hashes[1] != "new" || !fs.rescored[1] {
		t.Errorf("recorded hashes = %v (%v), want new recorded as rescored", fs.hashes, fs.rescored)
	}
}

// cancellingScorer scores every job at 80 and cancels the run after the
// first one.
type cancellingScorer struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingScorer) Score(_ context.Context, job model.JobPosting, profile model.CandidateProfile) (model.Score, error) {
	c.calls++
	if c.calls == 1 && c.cancel != nil {
		c.cancel()
	}
	return model.Score{JobID: job.ID, Value: 80, ProfileHash: profile.Hash}, nil
}

func TestRun_InterruptedPassResumesNextRun(t *testing.T) {
	fs := &fakeStore{
		NopStore:   store.NewNopStore(),
		hashes:     []string{"old"},
		candidates: []model.RescoreCandidate{candidate(1, "a", 70), candidate(2, "b", 71), candidate(3, "c", 72)},
	}
	profile := model.CandidateProfile{Hash: "new"}

	ctx, cancel := context.WithCancel(context.Background())
	scorer := &cancellingScorer{cancel: cancel}
	m := NewManager(fs, scorer, testConfig(), discardLogger())

	report, err := m.Run(ctx, profile, false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("first run err = %v, want context.Canceled", err)
	}
	if report.Rescored != 1 || report.Failed != 0 {
		t.Errorf("first run report = %+v", report)
	}
	if len(fs.hashes) != 1 {
		t.Fatalf("hash recorded before the pass finished: %v", fs.hashes)
	}

	scorer.cancel = nil
	report, err = m.Run(context.Background(), profile, false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !report.Changed || report.Eligible != 2 || report.Rescored != 2 {
		t.Errorf("second run report = %+v, want the remaining two rescored", report)
	}
	if len(fs.replaced) != 3 {
		t.Errorf("replaced %d scores, want 3", len(fs.replaced))
	}
	if len(fs.hashes) != 2 || fs.hashes[1] != "new" {
		t.Errorf("recorded hashes = %v, want new recorded after the second run", fs.hashes)
	}

	report, err = m.Run(context.Background(), profile, false)
	if err != nil || report.Changed {
		t.Errorf("third run = %+v, %v; want unchanged", report, err)
	}
}

func TestRun_ForceSkipsChangeDetection(t *testing.T) {
	fs := &fakeStore{
		NopStore:   store.NewNopStore(),
		hashes:     []string{"h1"},
		candidates: []model.RescoreCandidate{candidate(1, "a", 70)},
	}
	m := NewManager(fs, mapScorer{"a": 75}, testConfig(), discardLogger())

	report, err := m.Run(context.Background(), model.CandidateProfile{Hash: "h1"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if report.Changed || report.Rescored != 1 || report.Upgraded != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestRun_ReplaceFailureKeepsGoing(t *testing.T) {
	fs := &fakeStore{
		NopStore:   store.NewNopStore(),
		hashes:     []string{"old"},
		candidates: []model.RescoreCandidate{candidate(1, "a", 70), candidate(2, "b", 71)},
		replaceErr: errors.New("disk full"),
	}
	m := NewManager(fs, mapScorer{"a": 80, "b": 80}, testConfig(), discardLogger())

	report, err := m.Run(context.Background(), model.CandidateProfile{Hash: "new"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Failed != 2 || report.Rescored != 0 {
		t.Errorf("report = %+v", report)
	}
}
