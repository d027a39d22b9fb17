package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/amishk599/jobsieve/internal/model"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for jobsieve.
type Config struct {
	DatabasePath   string
	VocabularyPath string
	InboxDir       string // collector drop directory read by the daemon
	Profile        ProfileConfig
	Dedup          DedupConfig
	Filters        FilterToggles
	Scoring        ScoringConfig
	Rescore        RescoreConfig
	Run            RunConfig
	Schedule       string // cron spec, e.g. "@every 24h"
	Server         ServerConfig
}

// ProfileConfig locates the candidate profile.
type ProfileConfig struct {
	Path        string
	Preferences map[string]string
}

// DedupConfig controls Tier 2 and the job hash.
type DedupConfig struct {
	Window     time.Duration // how far back exact-URL and fuzzy matches look
	Threshold  float64       // Jaccard similarity required on both title and company
	IncludeURL bool          // include the URL in job_hash (per-platform identity)
}

// FilterToggles lets a deployment switch individual tiers off.
type FilterToggles struct {
	Title       bool
	Dedup       bool
	Description bool
}

// Thresholds maps a numeric score to a recommendation.
type Thresholds struct {
	Apply   int // score >= Apply recommends APPLY
	Clarify int // score >= Clarify recommends CLARIFY, below recommends SKIP
}

// Recommend returns the recommendation for score.
func (t Thresholds) Recommend(score int) model.Recommendation {
	switch {
	case score >= t.Apply:
		return model.RecommendApply
	case score >= t.Clarify:
		return model.RecommendClarify
	default:
		return model.RecommendSkip
	}
}

// BackendConfig describes one scoring backend in the fallback chain.
type BackendConfig struct {
	Name    string `yaml:"name" validate:"required"`
	Type    string `yaml:"type" validate:"required,oneof=openai gemini"`
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	Model   string `yaml:"model" validate:"required"`
	APIKey  string `yaml:"api_key" validate:"required"`
}

// ScoringConfig controls the scoring engine and its fallback chain.
type ScoringConfig struct {
	Thresholds       Thresholds
	Backends         []BackendConfig // tried in order
	RequestTimeout   time.Duration   // per backend attempt
	RateLimitBackoff time.Duration   // sleep before the single retry of a rate-limited backend
	MinCallDelay     time.Duration   // minimum gap between calls to the same backend
	Prescreen        bool            // run local dealbreaker rules before calling a backend
}

// RescoreConfig bounds the smart rescore.
type RescoreConfig struct {
	MinScore       int
	MaxScore       int
	MaxAge         time.Duration
	MatchThreshold int // crossing this counts as an upgrade
}

// RunConfig bounds a single pipeline run.
type RunConfig struct {
	Workers     int
	MaxDuration time.Duration
	BatchSize   int // unscored jobs scored per run
}

// ServerConfig configures the ingest API.
type ServerConfig struct {
	Addr  string
	Token string
}

const (
	defaultDatabasePath   = "jobs.db"
	defaultVocabularyPath = "generated_keywords.json"
	defaultOpenAIBaseURL  = "https://openrouter.ai/api/v1"
	defaultSchedule       = "@every 24h"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	DatabasePath   string           `yaml:"database_path"`
	VocabularyPath string           `yaml:"vocabulary_path"`
	InboxDir       string           `yaml:"inbox_dir"`
	Profile        rawProfileConfig `yaml:"profile"`
	Dedup          rawDedupConfig   `yaml:"dedup"`
	Filters        rawFilterToggles `yaml:"filters"`
	Scoring        rawScoringConfig `yaml:"scoring"`
	Rescore        rawRescoreConfig `yaml:"rescore"`
	Run            rawRunConfig     `yaml:"run"`
	Schedule       string           `yaml:"schedule"`
	Server         rawServerConfig  `yaml:"server"`
}

type rawProfileConfig struct {
	Path        string            `yaml:"path"`
	Preferences map[string]string `yaml:"preferences"`
}

type rawDedupConfig struct {
	Window     string   `yaml:"window"`
	Threshold  *float64 `yaml:"threshold"`
	IncludeURL bool     `yaml:"include_url"`
}

type rawFilterToggles struct {
	Title       *bool `yaml:"enable_title_filtering"`
	Dedup       *bool `yaml:"enable_deduplication"`
	Description *bool `yaml:"enable_description_filtering"`
}

type rawScoringConfig struct {
	Thresholds struct {
		Apply   *int `yaml:"apply"`
		Clarify *int `yaml:"clarify"`
	} `yaml:"thresholds"`
	Backends         []BackendConfig `yaml:"backends"`
	RequestTimeout   string          `yaml:"request_timeout"`
	RateLimitBackoff string          `yaml:"rate_limit_backoff"`
	MinCallDelay     string          `yaml:"min_call_delay"`
	Prescreen        bool            `yaml:"prescreen"`
}

type rawRescoreConfig struct {
	MinScore       *int   `yaml:"min_score"`
	MaxScore       *int   `yaml:"max_score"`
	MaxAge         string `yaml:"max_age"`
	MatchThreshold *int   `yaml:"match_threshold"`
}

type rawRunConfig struct {
	Workers     int    `yaml:"workers"`
	MaxDuration string `yaml:"max_duration"`
	BatchSize   int    `yaml:"batch_size"`
}

type rawServerConfig struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
// Every failure is a *model.ConfigurationError.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.ConfigurationError{Err: fmt.Errorf("read config: %w", err)}
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, &model.ConfigurationError{Err: fmt.Errorf("parse config: %w", err)}
	}

	cfg, err := fromRaw(raw)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromRaw(raw rawConfig) (*Config, error) {
	var err error
	cfg := &Config{
		DatabasePath:   orDefault(raw.DatabasePath, defaultDatabasePath),
		VocabularyPath: orDefault(raw.VocabularyPath, defaultVocabularyPath),
		InboxDir:       raw.InboxDir,
		Profile: ProfileConfig{
			Path:        orDefault(raw.Profile.Path, "profile.txt"),
			Preferences: raw.Profile.Preferences,
		},
		Dedup: DedupConfig{
			Threshold:  0.85,
			IncludeURL: raw.Dedup.IncludeURL,
		},
		Filters: FilterToggles{
			Title:       boolOr(raw.Filters.Title, true),
			Dedup:       boolOr(raw.Filters.Dedup, true),
			Description: boolOr(raw.Filters.Description, true),
		},
		Scoring: ScoringConfig{
			Thresholds: Thresholds{
				Apply:   intOr(raw.Scoring.Thresholds.Apply, 70),
				Clarify: intOr(raw.Scoring.Thresholds.Clarify, 50),
			},
			Prescreen: raw.Scoring.Prescreen,
		},
		Rescore: RescoreConfig{
			MinScore:       intOr(raw.Rescore.MinScore, 70),
			MaxScore:       intOr(raw.Rescore.MaxScore, 79),
			MatchThreshold: intOr(raw.Rescore.MatchThreshold, 75),
		},
		Run: RunConfig{
			Workers:   raw.Run.Workers,
			BatchSize: raw.Run.BatchSize,
		},
		Schedule: orDefault(raw.Schedule, defaultSchedule),
		Server: ServerConfig{
			Addr:  orDefault(raw.Server.Addr, ":8080"),
			Token: raw.Server.Token,
		},
	}
	if raw.Dedup.Threshold != nil {
		cfg.Dedup.Threshold = *raw.Dedup.Threshold
	}
	if cfg.Run.Workers == 0 {
		cfg.Run.Workers = 4
	}
	if cfg.Run.BatchSize == 0 {
		cfg.Run.BatchSize = 200
	}

	if cfg.Dedup.Window, err = durationOr("dedup.window", raw.Dedup.Window, 90*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Scoring.RequestTimeout, err = durationOr("scoring.request_timeout", raw.Scoring.RequestTimeout, 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.Scoring.RateLimitBackoff, err = durationOr("scoring.rate_limit_backoff", raw.Scoring.RateLimitBackoff, 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Scoring.MinCallDelay, err = durationOr("scoring.min_call_delay", raw.Scoring.MinCallDelay, time.Second); err != nil {
		return nil, err
	}
	if cfg.Rescore.MaxAge, err = durationOr("rescore.max_age", raw.Rescore.MaxAge, 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Run.MaxDuration, err = durationOr("run.max_duration", raw.Run.MaxDuration, 30*time.Minute); err != nil {
		return nil, err
	}

	for _, b := range raw.Scoring.Backends {
		if b.Type == "openai" && b.BaseURL == "" {
			b.BaseURL = defaultOpenAIBaseURL
		}
		b.APIKey = strings.TrimSpace(b.APIKey)
		cfg.Scoring.Backends = append(cfg.Scoring.Backends, b)
	}

	return cfg, nil
}

var structValidator = validator.New()

func validate(cfg *Config) error {
	if len(cfg.Scoring.Backends) == 0 {
		return &model.ConfigurationError{Field: "scoring.backends", Err: errors.New("at least one backend is required")}
	}
	seen := make(map[string]bool)
	for i, b := range cfg.Scoring.Backends {
		field := fmt.Sprintf("scoring.backends[%d]", i)
		if err := structValidator.Struct(b); err != nil {
			return &model.ConfigurationError{Field: field, Err: err}
		}
		if seen[b.Name] {
			return &model.ConfigurationError{Field: field, Err: fmt.Errorf("duplicate backend name %q", b.Name)}
		}
		seen[b.Name] = true
	}

	t := cfg.Scoring.Thresholds
	if t.Clarify < 0 || t.Apply > 100 || t.Clarify >= t.Apply {
		return &model.ConfigurationError{Field: "scoring.thresholds", Err: fmt.Errorf("need 0 <= clarify < apply <= 100, got clarify=%d apply=%d", t.Clarify, t.Apply)}
	}

	if cfg.Dedup.Threshold <= 0 || cfg.Dedup.Threshold > 1 {
		return &model.ConfigurationError{Field: "dedup.threshold", Err: fmt.Errorf("must be in (0, 1], got %v", cfg.Dedup.Threshold)}
	}
	if cfg.Dedup.Window <= 0 {
		return &model.ConfigurationError{Field: "dedup.window", Err: fmt.Errorf("must be positive, got %v", cfg.Dedup.Window)}
	}

	r := cfg.Rescore
	if r.MinScore < 0 || r.MaxScore > 100 || r.MinScore > r.MaxScore {
		return &model.ConfigurationError{Field: "rescore", Err: fmt.Errorf("need 0 <= min_score <= max_score <= 100, got %d..%d", r.MinScore, r.MaxScore)}
	}
	if r.MaxAge <= 0 {
		return &model.ConfigurationError{Field: "rescore.max_age", Err: fmt.Errorf("must be positive, got %v", r.MaxAge)}
	}

	if cfg.Run.Workers < 1 {
		return &model.ConfigurationError{Field: "run.workers", Err: fmt.Errorf("must be at least 1, got %d", cfg.Run.Workers)}
	}
	if cfg.Run.MaxDuration <= 0 || cfg.Scoring.RequestTimeout <= 0 {
		return &model.ConfigurationError{Field: "run", Err: errors.New("max_duration and scoring.request_timeout must be positive")}
	}
	return nil
}

func durationOr(field, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &model.ConfigurationError{Field: field, Err: fmt.Errorf("parse %q: %w", raw, err)}
	}
	return d, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func intOr(i *int, def int) int {
	if i == nil {
		return def
	}
	return *i
}
