package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amishk599/jobsieve/internal/retry"
)

// Limiter enforces a minimum delay between calls sharing a key, typically a
// scoring backend name. Keys never block each other.
type Limiter struct {
	mu       sync.Mutex
	next     map[string]time.Time // earliest start of the next call per key
	minDelay time.Duration
	clock    retry.Clock
}

// NewLimiter creates a limiter that spaces calls for the same key by at least
// minDelay. A nil clock means the wall clock.
func NewLimiter(minDelay time.Duration, clock retry.Clock) *Limiter {
	if clock == nil {
		clock = retry.RealClock()
	}
	return &Limiter{
		next:     make(map[string]time.Time),
		minDelay: minDelay,
		clock:    clock,
	}
}

// Wait blocks until the caller may start a call for key. Concurrent callers
// reserve consecutive slots, so each waits its own turn.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l.minDelay <= 0 {
		return nil
	}

	l.mu.Lock()
	now := l.clock.Now()
	start := now
	if slot, ok := l.next[key]; ok && slot.After(now) {
		start = slot
	}
	l.next[key] = start.Add(l.minDelay)
	l.mu.Unlock()

	if wait := start.Sub(now); wait > 0 {
		if err := l.clock.Sleep(ctx, wait); err != nil {
			return fmt.Errorf("rate limiter wait for %s: %w", key, err)
		}
	}
	return nil
}
