package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock advances its time by whatever it is asked to sleep.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	return nil
}

func TestWait_SameKey_EnforcesMinDelay(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	limiter := NewLimiter(time.Second, clock)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "primary"); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := limiter.Wait(ctx, "primary"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if err := limiter.Wait(ctx, "primary"); err != nil {
		t.Fatalf("third wait: %v", err)
	}

	want := []time.Duration{time.Second, 2 * time.Second}
	if len(clock.sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", clock.sleeps, want)
	}
	for i := range want {
		if clock.sleeps[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, clock.sleeps[i], want[i])
		}
	}
}

func TestWait_DifferentKeys_NoCrossBlocking(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	limiter := NewLimiter(time.Second, clock)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "primary"); err != nil {
		t.Fatal(err)
	}
	if err := limiter.Wait(ctx, "fallback"); err != nil {
		t.Fatal(err)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("different keys should not wait, slept %v", clock.sleeps)
	}
}

func TestWait_ElapsedDelayDoesNotBlock(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	limiter := NewLimiter(time.Second, clock)
	ctx := context.Background()

	_ = limiter.Wait(ctx, "primary")
	clock.now = clock.now.Add(2 * time.Second)
	_ = limiter.Wait(ctx, "primary")

	if len(clock.sleeps) != 0 {
		t.Errorf("expected no wait after delay elapsed, slept %v", clock.sleeps)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	limiter := NewLimiter(5*time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())

	if err := limiter.Wait(ctx, "primary"); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	cancel()

	err := limiter.Wait(ctx, "primary")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWait_ZeroDelayNeverBlocks(t *testing.T) {
	limiter := NewLimiter(0, nil)
	for range 3 {
		if err := limiter.Wait(context.Background(), "primary"); err != nil {
			t.Fatal(err)
		}
	}
}
