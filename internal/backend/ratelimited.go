package backend

import (
	"context"

	"github.com/amishk599/jobsieve/internal/ratelimit"
)

// RateLimitedBackend is a decorator that spaces calls to the wrapped backend.
// Backends sharing a limiter are throttled independently by name.
type RateLimitedBackend struct {
	inner   Backend
	limiter *ratelimit.Limiter
}

// NewRateLimitedBackend wraps inner. A nil limiter disables throttling.
func NewRateLimitedBackend(inner Backend, limiter *ratelimit.Limiter) *RateLimitedBackend {
	return &RateLimitedBackend{inner: inner, limiter: limiter}
}

func (b *RateLimitedBackend) Name() string { return b.inner.Name() }

// Complete waits for the limiter, then delegates. A cancelled wait surfaces as
// the context error so the chain stops instead of falling through.
func (b *RateLimitedBackend) Complete(ctx context.Context, prompt string) (string, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx, b.inner.Name()); err != nil {
			return "", err
		}
	}
	return b.inner.Complete(ctx, prompt)
}
