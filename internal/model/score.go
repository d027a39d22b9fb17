package model

import (
	"fmt"
	"time"
)

// Recommendation is the action suggested for a scored job.
type Recommendation string

const (
	RecommendApply   Recommendation = "APPLY"
	RecommendClarify Recommendation = "CLARIFY"
	RecommendSkip    Recommendation = "SKIP"
)

// MatchStatus describes how well the candidate satisfies one component.
type MatchStatus string

const (
	MatchFull    MatchStatus = "match"
	MatchPartial MatchStatus = "partial"
	MatchMiss    MatchStatus = "miss"
	MatchConcern MatchStatus = "concern"
)

// ParseMatchStatus accepts the canonical values plus the yes/no/partial
// spelling some models prefer.
func ParseMatchStatus(s string) (MatchStatus, error) {
	switch s {
	case "match", "yes":
		return MatchFull, nil
	case "partial":
		return MatchPartial, nil
	case "miss", "no":
		return MatchMiss, nil
	case "concern":
		return MatchConcern, nil
	}
	return "", fmt.Errorf("unknown match status %q", s)
}

// Factor is the share of a component's weight that counts toward the score.
func (s MatchStatus) Factor() float64 {
	switch s {
	case MatchFull:
		return 1
	case MatchPartial:
		return 0.5
	default:
		return 0
	}
}

// Component is one scored requirement of a job.
type Component struct {
	Label        string      `json:"label"`
	Category     string      `json:"category"`
	Weight       int         `json:"weight"`
	Status       MatchStatus `json:"status"`
	Contribution float64     `json:"contribution"`
}

// RiskProfile is the model's coarse risk classification of an application.
type RiskProfile struct {
	RoleLevelRisk     string `json:"role_level_risk,omitempty"`
	EmployerType      string `json:"employer_type,omitempty"`
	VisaFriction      string `json:"visa_friction_level,omitempty"`
	ExperienceStretch string `json:"experience_stretch,omitempty"`
}

// Score is the persisted outcome of scoring one job against one profile version.
type Score struct {
	JobID          int64
	Value          int
	Recommendation Recommendation
	Components     []Component
	HardGateFailed string // empty when every hard gate passed
	RiskProfile    RiskProfile
	Explanation    string
	ModelUsed      string
	ProfileHash    string
	ScoredAt       time.Time
}

// HardGated reports whether the score was forced by a failed hard gate.
func (s Score) HardGated() bool {
	return s.HardGateFailed != ""
}

// WeightSum totals the component weights.
func (s Score) WeightSum() int {
	total := 0
	for _, c := range s.Components {
		total += c.Weight
	}
	return total
}
