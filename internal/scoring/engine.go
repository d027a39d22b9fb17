// Package scoring turns a job and a candidate profile into a persisted Score.
package scoring

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/amishk599/jobsieve/internal/config"
	"github.com/amishk599/jobsieve/internal/fallback"
	"github.com/amishk599/jobsieve/internal/model"
)

// Scores forced by a failed hard gate land in this band.
const (
	hardGateMin     = 15
	hardGateMax     = 25
	hardGateDefault = 20
)

// PrescreenModel is recorded as model_used when the local dealbreaker table
// decided the score without calling a backend.
const PrescreenModel = "prescreen"

// ScoringError is returned when no backend produced a usable score.
type ScoringError struct {
	JobHash string
	Err     error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring job %s: %v", e.JobHash, e.Err)
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}

// Executor runs a prompt through the backend chain.
type Executor interface {
	ExecuteValidated(ctx context.Context, prompt string, validate fallback.Validator) (fallback.Response, error)
}

// Engine scores jobs against a candidate profile.
type Engine struct {
	chain      Executor
	thresholds config.Thresholds
	prescreen  bool
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine creates an engine that calls chain for every job that clears the
// optional pre-screen.
func NewEngine(chain Executor, sc config.ScoringConfig, logger *slog.Logger) *Engine {
	return &Engine{
		chain:      chain,
		thresholds: sc.Thresholds,
		prescreen:  sc.Prescreen,
		logger:     logger,
		now:        time.Now,
	}
}

type preference struct {
	Key, Value string
}

type promptData struct {
	Profile     string
	Preferences []preference
	Title       string
	Company     string
	Location    string
	Description string
}

// Score evaluates job against profile. Hard-gated jobs come back with a score
// in [15,25] and SKIP; everything else is the weighted component sum.
func (e *Engine) Score(ctx context.Context, job model.JobPosting, profile model.CandidateProfile) (model.Score, error) {
	score := model.Score{
		JobID:       job.ID,
		ProfileHash: profile.Hash,
	}

	if e.prescreen {
		if rule, reason, hit := prescreen(job.Description); hit {
			e.logger.Debug("pre-screen dealbreaker", "job_hash", job.Hash, "rule", rule)
			score.ModelUsed = PrescreenModel
			e.apply(&score, HardGateRejected{Reason: reason, Explanation: "Rejected by local pre-screen: " + reason})
			return score, nil
		}
	}

	prompt, err := renderPrompt(job, profile)
	if err != nil {
		return model.Score{}, &ScoringError{JobHash: job.Hash, Err: err}
	}

	resp, err := e.chain.ExecuteValidated(ctx, prompt, validateResponse)
	if err != nil {
		return model.Score{}, &ScoringError{JobHash: job.Hash, Err: err}
	}

	result, err := parseResult(resp.Body)
	if err != nil {
		// The validator already accepted this body.
		return model.Score{}, &ScoringError{JobHash: job.Hash, Err: err}
	}

	score.ModelUsed = resp.Backend
	e.apply(&score, result)
	return score, nil
}

// apply fills the value, recommendation and breakdown of score from result.
func (e *Engine) apply(score *model.Score, result Result) {
	score.ScoredAt = e.now()

	switch r := result.(type) {
	case HardGateRejected:
		score.Value = hardGateDefault
		if r.ProposedScore != nil && *r.ProposedScore >= hardGateMin && *r.ProposedScore <= hardGateMax {
			score.Value = *r.ProposedScore
		}
		score.Recommendation = model.RecommendSkip
		score.HardGateFailed = r.Reason
		score.Explanation = r.Explanation
		score.RiskProfile = r.RiskProfile

	case Scored:
		total := 0.0
		for _, c := range r.Components {
			total += c.Contribution
		}
		score.Value = clamp(int(math.Round(total)), 0, 100)
		score.Recommendation = e.thresholds.Recommend(score.Value)
		score.Components = r.Components
		score.Explanation = r.Explanation
		score.RiskProfile = r.RiskProfile
	}
}

// validateResponse is the chain validator: it repairs the raw text into a JSON
// object and rejects anything that does not parse into a Result.
func validateResponse(raw string) (string, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return "", err
	}
	if _, err := parseResult(body); err != nil {
		return "", err
	}
	return body, nil
}

func renderPrompt(job model.JobPosting, profile model.CandidateProfile) (string, error) {
	data := promptData{
		Profile:     profile.Text,
		Title:       job.Title,
		Company:     job.Company,
		Location:    orUnknown(job.Location),
		Description: job.Description,
	}
	for k, v := range profile.Preferences {
		data.Preferences = append(data.Preferences, preference{Key: k, Value: v})
	}
	sort.Slice(data.Preferences, func(i, j int) bool { return data.Preferences[i].Key < data.Preferences[j].Key })

	var buf bytes.Buffer
	if err := scoreTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
