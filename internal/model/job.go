package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Source identifies the collector a posting came from.
type Source string

const (
	SourceLinkedIn Source = "linkedin"
	SourceSeek     Source = "seek"
	SourceJora     Source = "jora"
	SourceIndeed   Source = "indeed"
	SourceOther    Source = "other"
)

// ParseSource converts a raw collector name to a Source.
func ParseSource(s string) (Source, error) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	switch src {
	case SourceLinkedIn, SourceSeek, SourceJora, SourceIndeed, SourceOther:
		return src, nil
	}
	return "", fmt.Errorf("unknown job source %q", s)
}

// JobPosting is a single posting as seen by the pipeline and persisted by the store.
type JobPosting struct {
	ID                int64
	Hash              string // derived identity, see normalize.JobHash
	Title             string
	Company           string // raw, as scraped
	NormalizedCompany string
	Location          string
	Description       string
	URL               string
	Source            Source
	SourceSearchID    string // collector search that produced the posting
	Region            string
	FirstSeen         time.Time
	LastSeen          time.Time
	Active            bool
	Status            Status
}

// RawPosting is the shape collectors hand to the pipeline.
type RawPosting struct {
	Title          string `json:"title"`
	Company        string `json:"company"`
	Location       string `json:"location"`
	Description    string `json:"description"`
	URL            string `json:"url"`
	Source         string `json:"source"`
	SourceSearchID string `json:"source_search_id,omitempty"`
	Region         string `json:"region,omitempty"`
}

// FilterMetrics counts how many postings each tier removed during a run.
type FilterMetrics struct {
	CardsSeen     int `json:"cards_seen"`
	Tier1Filtered int `json:"tier1_filtered"`
	Tier2Skipped  int `json:"tier2_skipped"`
	Tier3Filtered int `json:"tier3_filtered"`
	JobsScraped   int `json:"jobs_scraped"`
}

// Filtered returns the total number of postings dropped by any tier.
func (m FilterMetrics) Filtered() int {
	return m.Tier1Filtered + m.Tier2Skipped + m.Tier3Filtered
}

// Efficiency is the percentage of seen postings that never reached scoring.
func (m FilterMetrics) Efficiency() float64 {
	if m.CardsSeen == 0 {
		return 0
	}
	return float64(m.Filtered()) / float64(m.CardsSeen) * 100
}

// MarshalJSON adds the derived efficiency percentage to the counters.
func (m FilterMetrics) MarshalJSON() ([]byte, error) {
	type counters FilterMetrics
	return json.Marshal(struct {
		counters
		Efficiency float64 `json:"efficiency"`
	}{counters(m), m.Efficiency()})
}

// CandidateProfile is the free-text profile scored against, plus structured preferences.
type CandidateProfile struct {
	Text        string
	Preferences map[string]string
	Hash        string
}
