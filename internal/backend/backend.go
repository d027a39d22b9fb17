// Package backend talks to the LLM services that score jobs. Every failure is
// reported as a *BackendError whose Kind tells the fallback chain whether to
// retry, move on, or give up on the backend.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/amishk599/jobsieve/internal/config"
	"github.com/amishk599/jobsieve/internal/model"
	"github.com/amishk599/jobsieve/internal/ratelimit"
)

// Backend sends a prompt to one model and returns the raw text response.
type Backend interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Kind classifies a backend failure.
type Kind int

const (
	// RateLimited means the backend asked us to slow down. Worth one retry.
	RateLimited Kind = iota + 1
	// Unavailable means the backend cannot serve us right now: auth, missing
	// model, outage or refused connection.
	Unavailable
	// Transient covers timeouts, malformed responses and failed validation.
	Transient
)

func (k Kind) String() string {
	switch k {
	case RateLimited:
		return "rate_limited"
	case Unavailable:
		return "unavailable"
	case Transient:
		return "transient"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// BackendError is the only error type a Backend returns.
type BackendError struct {
	Backend string
	Kind    Kind
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first BackendError in err's chain.
func KindOf(err error) (Kind, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind, true
	}
	return 0, false
}

// classifyStatus maps a non-200 HTTP status to a Kind.
func classifyStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return RateLimited
	case code == http.StatusUnauthorized, code == http.StatusForbidden, code == http.StatusNotFound:
		return Unavailable
	case code >= 500:
		return Unavailable
	}
	return Transient
}

// classifyTransport maps a failed round trip to a Kind. Refused connections
// and unresolvable hosts mean the backend is down; anything else, including
// a per-request timeout, is worth trying elsewhere but not fatal.
func classifyTransport(err error) Kind {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return Unavailable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return Unavailable
	}
	return Transient
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	var seconds int
	if _, err := fmt.Sscanf(value, "%d", &seconds); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// New builds the backend described by cfg.
func New(ctx context.Context, cfg config.BackendConfig, httpClient *http.Client) (Backend, error) {
	switch cfg.Type {
	case "openai":
		return NewOpenAIBackend(cfg.Name, cfg.BaseURL, cfg.APIKey, cfg.Model, httpClient), nil
	case "gemini":
		return NewGeminiBackend(ctx, cfg.Name, cfg.APIKey, cfg.Model)
	}
	return nil, &model.ConfigurationError{Field: "scoring.backends", Err: fmt.Errorf("unknown backend type %q", cfg.Type)}
}

// FromConfig builds the ordered chain of backends, each wrapped in a shared
// per-backend rate limiter.
func FromConfig(ctx context.Context, sc config.ScoringConfig, limiter *ratelimit.Limiter) ([]Backend, error) {
	httpClient := &http.Client{}
	backends := make([]Backend, 0, len(sc.Backends))
	for _, bc := range sc.Backends {
		b, err := New(ctx, bc, httpClient)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", bc.Name, err)
		}
		backends = append(backends, NewRateLimitedBackend(b, limiter))
	}
	return backends, nil
}
