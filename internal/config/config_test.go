package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amishk599/jobsieve/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
scoring:
  backends:
    - name: deepseek
      type: openai
      model: deepseek/deepseek-chat
      api_key: sk-test
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabasePath != "jobs.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.Dedup.Window != 90*24*time.Hour || cfg.Dedup.Threshold != 0.85 || cfg.Dedup.IncludeURL {
		t.Errorf("Dedup = %+v", cfg.Dedup)
	}
	if !cfg.Filters.Title || !cfg.Filters.Dedup || !cfg.Filters.Description {
		t.Errorf("Filters = %+v, want all enabled", cfg.Filters)
	}
	if cfg.Scoring.Thresholds != (Thresholds{Apply: 70, Clarify: 50}) {
		t.Errorf("Thresholds = %+v", cfg.Scoring.Thresholds)
	}
	if cfg.Rescore.MinScore != 70 || cfg.Rescore.MaxScore != 79 || cfg.Rescore.MaxAge != 7*24*time.Hour {
		t.Errorf("Rescore = %+v", cfg.Rescore)
	}
	if cfg.Scoring.Backends[0].BaseURL != defaultOpenAIBaseURL {
		t.Errorf("BaseURL = %q", cfg.Scoring.Backends[0].BaseURL)
	}
	if cfg.Run.Workers != 4 || cfg.Run.MaxDuration != 30*time.Minute {
		t.Errorf("Run = %+v", cfg.Run)
	}
	if cfg.Schedule != "@every 24h" {
		t.Errorf("Schedule = %q", cfg.Schedule)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "gm-secret")
	content := `
database_path: /tmp/j.db
profile:
  path: me.txt
  preferences:
    visa: "485"
dedup:
  window: 720h
  threshold: 0.9
  include_url: true
filters:
  enable_deduplication: false
scoring:
  thresholds:
    apply: 80
    clarify: 60
  request_timeout: 20s
  rate_limit_backoff: 3s
  prescreen: true
  backends:
    - name: primary
      type: openai
      base_url: https://api.openai.com/v1
      model: gpt-4o-mini
      api_key: sk-1
    - name: gemini
      type: gemini
      model: gemini-2.5-flash
      api_key: ${TEST_GEMINI_KEY}
rescore:
  min_score: 65
  max_score: 75
  max_age: 72h
run:
  workers: 8
  max_duration: 10m
`
	cfg, err := Load(writeFile(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dedup.Window != 720*time.Hour || cfg.Dedup.Threshold != 0.9 || !cfg.Dedup.IncludeURL {
		t.Errorf("Dedup = %+v", cfg.Dedup)
	}
	if cfg.Filters.Dedup {
		t.Error("expected deduplication disabled")
	}
	if len(cfg.Scoring.Backends) != 2 || cfg.Scoring.Backends[1].APIKey != "gm-secret" {
		t.Errorf("Backends = %+v", cfg.Scoring.Backends)
	}
	if !cfg.Scoring.Prescreen || cfg.Scoring.RequestTimeout != 20*time.Second {
		t.Errorf("Scoring = %+v", cfg.Scoring)
	}
	if cfg.Profile.Preferences["visa"] != "485" {
		t.Errorf("Preferences = %v", cfg.Profile.Preferences)
	}
	if cfg.Run.Workers != 8 {
		t.Errorf("Workers = %d", cfg.Run.Workers)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeFile(t, "bad.yaml", "scoring: [broken"))
	if err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no backends", `database_path: x.db`},
		{"unknown backend type", `
scoring:
  backends:
    - {name: a, type: claude, model: m, api_key: k}
`},
		{"missing api key", `
scoring:
  backends:
    - {name: a, type: openai, model: m, api_key: ""}
`},
		{"duplicate backend names", `
scoring:
  backends:
    - {name: a, type: openai, model: m, api_key: k}
    - {name: a, type: gemini, model: m, api_key: k}
`},
		{"thresholds inverted", minimalConfig + `
  thresholds:
    apply: 50
    clarify: 70
`},
		{"rescore band inverted", minimalConfig + `
rescore:
  min_score: 80
  max_score: 70
`},
		{"bad duration", minimalConfig + `
run:
  max_duration: soon
`},
		{"dedup threshold above one", minimalConfig + `
dedup:
  threshold: 1.5
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tt.content))
			var cfgErr *model.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestThresholds_Recommend(t *testing.T) {
	th := Thresholds{Apply: 70, Clarify: 50}
	tests := []struct {
		score int
		want  model.Recommendation
	}{
		{100, model.RecommendApply},
		{70, model.RecommendApply},
		{69, model.RecommendClarify},
		{50, model.RecommendClarify},
		{49, model.RecommendSkip},
		{0, model.RecommendSkip},
	}
	for _, tt := range tests {
		if got := th.Recommend(tt.score); got != tt.want {
			t.Errorf("Recommend(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}
