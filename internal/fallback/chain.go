// Package fallback tries an ordered list of scoring backends until one returns
// a usable response.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amishk599/jobsieve/internal/backend"
	"github.com/amishk599/jobsieve/internal/retry"
)

// Response is the validated body returned by the first backend that succeeded.
type Response struct {
	Backend string
	Body    string
}

// Validator checks a raw backend response and returns the cleaned body. A
// validation error counts as a transient failure of that backend.
type Validator func(raw string) (string, error)

// Failure records why one backend was given up on.
type Failure struct {
	Backend string
	Kind    backend.Kind
	Err     error
}

// AllBackendsFailedError is returned when every backend in the chain failed.
// It holds exactly one Failure per backend, in chain order.
type AllBackendsFailedError struct {
	Failures []Failure
}

func (e *AllBackendsFailedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s (%s): %v", f.Backend, f.Kind, f.Err)
	}
	return fmt.Sprintf("all %d backends failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *AllBackendsFailedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// state is the per-backend position in the attempt state machine.
//
//	attempting --rate limited--> backoff --> retrying --fail--> exhausted
//	attempting --unavailable/transient--> exhausted
type state int

const (
	attempting state = iota
	backoff
	retrying
	exhausted
)

func (s state) String() string {
	return [...]string{"attempting", "backoff", "retrying", "exhausted"}[s]
}

// Chain is an ordered list of backends with per-backend retry rules.
type Chain struct {
	backends []backend.Backend
	backoff  retry.Backoff
	clock    retry.Clock
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Chain.
type Option func(*Chain)

// WithClock replaces the wall clock used for backoff sleeps.
func WithClock(c retry.Clock) Option { return func(ch *Chain) { ch.clock = c } }

// WithBackoff sets the wait before retrying a rate-limited backend when the
// backend gives no Retry-After.
func WithBackoff(b retry.Backoff) Option { return func(ch *Chain) { ch.backoff = b } }

// WithRequestTimeout bounds each individual backend attempt.
func WithRequestTimeout(d time.Duration) Option { return func(ch *Chain) { ch.timeout = d } }

// New creates a chain trying backends in order.
func New(backends []backend.Backend, logger *slog.Logger, opts ...Option) *Chain {
	c := &Chain{
		backends: backends,
		backoff:  retry.Backoff{Base: 10 * time.Second},
		clock:    retry.RealClock(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Len returns the number of backends in the chain.
func (c *Chain) Len() int { return len(c.backends) }

// Execute returns the first successful raw response.
func (c *Chain) Execute(ctx context.Context, prompt string) (Response, error) {
	return c.ExecuteValidated(ctx, prompt, nil)
}

// ExecuteValidated is Execute with a validator applied to every response. A
// cancelled ctx aborts the chain with the context error.
func (c *Chain) ExecuteValidated(ctx context.Context, prompt string, validate Validator) (Response, error) {
	failures := make([]Failure, 0, len(c.backends))

	for _, b := range c.backends {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}

		body, failure, err := c.run(ctx, b, prompt, validate)
		if err != nil {
			return Response{}, err
		}
		if failure == nil {
			if len(failures) > 0 {
				c.logger.Info("fallback backend succeeded", "backend", b.Name(), "failed_before", len(failures))
			}
			return Response{Backend: b.Name(), Body: body}, nil
		}

		c.logger.Warn("backend failed", "backend", failure.Backend, "kind", failure.Kind.String(), "error", failure.Err)
		failures = append(failures, *failure)
	}

	return Response{}, &AllBackendsFailedError{Failures: failures}
}

// run drives one backend through the state machine. It returns the body on
// success, a Failure when the backend is exhausted, or a non-nil error when
// the whole chain must stop.
func (c *Chain) run(ctx context.Context, b backend.Backend, prompt string, validate Validator) (string, *Failure, error) {
	var (
		st      = attempting
		lastErr error
	)
	for {
		c.logger.Debug("backend state", "backend", b.Name(), "state", st.String())
		switch st {
		case attempting, retrying:
			body, err := c.attempt(ctx, b, prompt, validate)
			if err == nil {
				return body, nil, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", nil, ctxErr
			}
			lastErr = err
			if kindOf(err) == backend.RateLimited && st == attempting {
				st = backoff
				continue
			}
			st = exhausted

		case backoff:
			wait := c.backoff.Delay(lastErr)
			c.logger.Info("backend rate limited, backing off", "backend", b.Name(), "delay", wait)
			if err := c.clock.Sleep(ctx, wait); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return "", nil, ctxErr
				}
				return "", nil, err
			}
			st = retrying

		case exhausted:
			return "", &Failure{Backend: b.Name(), Kind: kindOf(lastErr), Err: lastErr}, nil
		}
	}
}

func (c *Chain) attempt(ctx context.Context, b backend.Backend, prompt string, validate Validator) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	raw, err := b.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	if validate == nil {
		return raw, nil
	}
	body, err := validate(raw)
	if err != nil {
		return "", &backend.BackendError{Backend: b.Name(), Kind: backend.Transient, Err: fmt.Errorf("invalid response: %w", err)}
	}
	return body, nil
}

// kindOf treats anything that is not a BackendError as transient.
func kindOf(err error) backend.Kind {
	if kind, ok := backend.KindOf(err); ok {
		return kind
	}
	return backend.Transient
}

// IsAllFailed reports whether err means every backend failed.
func IsAllFailed(err error) bool {
	var all *AllBackendsFailedError
	return errors.As(err, &all)
}
