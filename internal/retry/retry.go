package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amishk599/jobsieve/internal/model"
)

// Clock abstracts time so backoff and rate limiting can be tested without
// real sleeps.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep cancelled: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}

// Backoff is the wait after a rate-limited call.
type Backoff struct {
	Base time.Duration
}

// Delay returns how long to wait after err. A Retry-After carried by err
// takes precedence over Base.
func (b Backoff) Delay(err error) time.Duration {
	if ra := RetryAfter(err); ra > 0 {
		return ra
	}
	return b.Base
}

// RetryAfter extracts the server-requested wait from err, zero if none.
func RetryAfter(err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}
	return 0
}
