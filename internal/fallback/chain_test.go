package fallback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/amishk599/jobsieve/internal/backend"
	"github.com/amishk599/jobsieve/internal/model"
	"github.com/amishk599/jobsieve/internal/retry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type result struct {
	body string
	err  error
}

// scriptedBackend returns its results in order, repeating the last one.
type scriptedBackend struct {
	name    string
	results []result
	calls   int
}

func (s *scriptedBackend) Name() string { return s.name }

func (s *scriptedBackend) Complete(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	return s.results[i].body, s.results[i].err
}

func ok(body string) result { return result{body: body} }

func fail(name string, kind backend.Kind) result {
	return result{err: &backend.BackendError{Backend: name, Kind: kind, Err: errors.New(kind.String())}}
}

type fakeClock struct {
	sleeps  []time.Duration
	onSleep func()
}

func (c *fakeClock) Now() time.Time { return time.Unix(0, 0) }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	if c.onSleep != nil {
		c.onSleep()
	}
	return ctx.Err()
}

func newChain(clock *fakeClock, backends ...backend.Backend) *Chain {
	return New(backends, discardLogger(),
		WithClock(clock),
		WithBackoff(retry.Backoff{Base: 10 * time.Second}),
	)
}

func TestExecute_FirstBackendSucceeds(t *testing.T) {
	a := &scriptedBackend{name: "a", results: []result{ok("{}")}}
	b := &scriptedBackend{name: "b", results: []result{ok("{}")}}

	resp, err := newChain(&fakeClock{}, a, b).Execute(context.Background(), "p")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Backend != "a" || b.calls != 0 {
		t.Errorf("resp = %+v, b.calls = %d", resp, b.calls)
	}
}

func TestExecute_UnavailableAndTransientFallThrough(t *testing.T) {
	a := &scriptedBackend{name: "a", results: []result{fail("a", backend.Unavailable)}}
	b := &scriptedBackend{name: "b", results: []result{fail("b", backend.Transient)}}
	c := &scriptedBackend{name: "c", results: []result{ok(`{"ok":true}`)}}
	clock := &fakeClock{}

	resp, err := newChain(clock, a, b, c).Execute(context.Background(), "p")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Backend != "c" {
		t.Errorf("Backend = %s, want c", resp.Backend)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("non-rate-limit failures retried: a=%d b=%d", a.calls, b.calls)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("unexpected backoff: %v", clock.sleeps)
	}
}

func TestExecute_RateLimitedRetriesOnceAfterBackoff(t *testing.T) {
	a := &scriptedBackend{name: "a", results: []result{fail("a", backend.RateLimited), ok("{}")}}
	clock := &fakeClock{}

	resp, err := newChain(clock, a).Execute(context.Background(), "p")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Backend != "a" || a.calls != 2 {
		t.Errorf("resp = %+v, calls = %d", resp, a.calls)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 10*time.Second {
		t.Errorf("sleeps = %v, want [10s]", clock.sleeps)
	}
}

func TestExecute_RateLimitedTwiceMovesOn(t *testing.T) {
	a := &scriptedBackend{name: "a", results: []result{fail("a", backend.RateLimited)}}
	b := &scriptedBackend{name: "b", results: []result{ok("{}")}}
	clock := &fakeClock{}

	resp, err := newChain(clock, a, b).Execute(context.Background(), "p")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Backend != "b" || a.calls != 2 {
		t.Errorf("resp = %+v, a.calls = %d (want exactly one retry)", resp, a.calls)
	}
}

func TestExecute_RetryAfterOverridesBackoff(t *testing.T) {
	limited := &backend.BackendError{Backend: "a", Kind: backend.RateLimited,
		Err: &model.HTTPError{StatusCode: 429, RetryAfter: 3 * time.Second}}
	a := &scriptedBackend{name: "a", results: []result{{err: limited}, ok("{}")}}
	clock := &fakeClock{}

	if _, err := newChain(clock, a).Execute(context.Background(), "p"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 3*time.Second {
		t.Errorf("sleeps = %v, want [3s]", clock.sleeps)
	}
}

func TestExecute_AllFailedCarriesOneFailurePerBackend(t *testing.T) {
	backends := []backend.Backend{
		&scriptedBackend{name: "a", results: []result{fail("a", backend.RateLimited)}},
		&scriptedBackend{name: "b", results: []result{fail("b", backend.Unavailable)}},
		&scriptedBackend{name: "c", results: []result{fail("c", backend.Transient)}},
	}
	_, err := newChain(&fakeClock{}, backends...).Execute(context.Background(), "p")

	var all *AllBackendsFailedError
	if !errors.As(err, &all) {
		t.Fatalf("expected AllBackendsFailedError, got %v", err)
	}
	if len(all.Failures) != 3 {
		t.Fatalf("failures = %d, want 3", len(all.Failures))
	}
	wantKinds := []backend.Kind{backend.RateLimited, backend.Unavailable, backend.Transient}
	for i, f := range all.Failures {
		if f.Backend != backends[i].Name() || f.Kind != wantKinds[i] {
			t.Errorf("failure[%d] = %s/%s", i, f.Backend, f.Kind)
		}
	}
	if !IsAllFailed(err) || !strings.Contains(err.Error(), "all 3 backends failed") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestExecuteValidated_InvalidResponseFallsThrough(t *testing.T) {
	a := &scriptedBackend{name: "a", results: []result{ok("I think this job is great!")}}
	b := &scriptedBackend{name: "b", results: []result{ok(`{"score": 1}`)}}
	validate := func(raw string) (string, error) {
		if !strings.HasPrefix(raw, "{") {
			return "", errors.New("no JSON object")
		}
		return raw, nil
	}

	resp, err := newChain(&fakeClock{}, a, b).ExecuteValidated(context.Background(), "p", validate)
	if err != nil {
		t.Fatalf("ExecuteValidated: %v", err)
	}
	if resp.Backend != "b" || a.calls != 1 {
		t.Errorf("resp = %+v, a.calls = %d", resp, a.calls)
	}
}

func TestExecuteValidated_ValidatorOutputReturned(t *testing.T) {
	a := &scriptedBackend{name: "a", results: []result{ok("```json\n{}\n```")}}
	validate := func(string) (string, error) { return "{}", nil }

	resp, err := newChain(&fakeClock{}, a).ExecuteValidated(context.Background(), "p", validate)
	if err != nil || resp.Body != "{}" {
		t.Fatalf("resp = %+v, err = %v", resp, err)
	}
}

func TestExecute_CancelledDuringBackoffAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &scriptedBackend{name: "a", results: []result{fail("a", backend.RateLimited)}}
	b := &scriptedBackend{name: "b", results: []result{ok("{}")}}
	clock := &fakeClock{onSleep: cancel}

	_, err := newChain(clock, a, b).Execute(ctx, "p")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if IsAllFailed(err) {
		t.Error("cancellation must not be reported as all backends failed")
	}
	if b.calls != 0 {
		t.Errorf("chain continued after cancel: b.calls = %d", b.calls)
	}
}

func TestExecute_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := &scriptedBackend{name: "a", results: []result{ok("{}")}}

	if _, err := newChain(&fakeClock{}, a).Execute(ctx, "p"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if a.calls != 0 {
		t.Errorf("backend called after cancel")
	}
}

func TestExecute_RequestTimeoutIsTransient(t *testing.T) {
	slow := &blockingBackend{name: "slow"}
	fast := &scriptedBackend{name: "fast", results: []result{ok("{}")}}
	chain := New([]backend.Backend{slow, fast}, discardLogger(),
		WithClock(&fakeClock{}), WithRequestTimeout(10*time.Millisecond))

	resp, err := chain.Execute(context.Background(), "p")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Backend != "fast" {
		t.Errorf("Backend = %s, want fast", resp.Backend)
	}
}

// blockingBackend waits until its context ends.
type blockingBackend struct{ name string }

func (b *blockingBackend) Name() string { return b.name }

func (b *blockingBackend) Complete(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", &backend.BackendError{Backend: b.name, Kind: backend.Transient, Err: ctx.Err()}
}
