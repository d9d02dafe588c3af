package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

// fakeClock is a mutable time source for breaker tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", WithFailureThreshold(3))

	calls := 0
	fail := func(ctx context.Context) error {
		calls++
		return errBoom
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := cb.Call(ctx, fail); !errors.Is(err, errBoom) {
			t.Fatalf("Call %d returned %v, want errBoom", i, err)
		}
	}

	if calls != 2 {
		t.Errorf("Expected underlying function invoked 2 times, got %d", calls)
	}
	state := cb.State()
	if state.Open {
		t.Errorf("Breaker open after %d failures, threshold is 3", state.FailureCount)
	}
	if state.FailureCount != 2 {
		t.Errorf("FailureCount = %d, want 2", state.FailureCount)
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	clk := newFakeClock()
	cb := NewCircuitBreaker("test", WithFailureThreshold(3), WithClock(clk.Now))

	calls := 0
	fail := func(ctx context.Context) error {
		calls++
		return errBoom
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		cb.Call(ctx, fail)
	}

	if !cb.State().Open {
		t.Fatal("Breaker not open after reaching failure threshold")
	}

	// Rejected calls must not reach the underlying function.
	err := cb.Call(ctx, fail)
	if !IsCircuitOpen(err) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Underlying function invoked %d times, want 3", calls)
	}
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	clk := newFakeClock()
	cb := NewCircuitBreaker("test",
		WithFailureThreshold(2),
		WithRecoveryTimeout(30*time.Second),
		WithClock(clk.Now),
	)

	ctx := context.Background()
	fail := func(ctx context.Context) error { return errBoom }
	ok := func(ctx context.Context) error { return nil }

	cb.Call(ctx, fail)
	cb.Call(ctx, fail)
	if !cb.State().Open {
		t.Fatal("Breaker should be open")
	}

	// Before the recovery window the probe is rejected.
	if err := cb.Call(ctx, ok); !IsCircuitOpen(err) {
		t.Fatalf("Expected rejection before recovery timeout, got %v", err)
	}

	clk.Advance(31 * time.Second)
	if err := cb.Call(ctx, ok); err != nil {
		t.Fatalf("Probe call failed: %v", err)
	}

	state := cb.State()
	if state.Open {
		t.Error("Breaker still open after successful probe")
	}
	if state.FailureCount != 0 {
		t.Errorf("FailureCount = %d, want 0 after recovery", state.FailureCount)
	}
	if state.SuccessCount != 1 {
		t.Errorf("SuccessCount = %d, want 1", state.SuccessCount)
	}
	if !state.NextAttemptTime.IsZero() {
		t.Errorf("NextAttemptTime not cleared: %v", state.NextAttemptTime)
	}
}

func TestBreakerProbeFailureStaysOpen(t *testing.T) {
	clk := newFakeClock()
	cb := NewCircuitBreaker("test",
		WithFailureThreshold(1),
		WithRecoveryTimeout(10*time.Second),
		WithClock(clk.Now),
	)

	ctx := context.Background()
	calls := 0
	fail := func(ctx context.Context) error {
		calls++
		return errBoom
	}

	cb.Call(ctx, fail)
	clk.Advance(11 * time.Second)

	// Probe admitted, fails, breaker stays open with a fresh window.
	if err := cb.Call(ctx, fail); !errors.Is(err, errBoom) {
		t.Fatalf("Probe returned %v, want errBoom", err)
	}
	if !cb.State().Open {
		t.Fatal("Breaker closed after failed probe")
	}

	// Immediately after the failed probe the breaker rejects again.
	if err := cb.Call(ctx, fail); !IsCircuitOpen(err) {
		t.Errorf("Expected rejection after failed probe, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Underlying function invoked %d times, want 2", calls)
	}
}

func TestBreakerPassesValueThrough(t *testing.T) {
	cb := NewCircuitBreaker("test")

	got, err := Call(context.Background(), cb, func(ctx context.Context) (string, error) {
		return "hello", nil
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if got != "hello" {
		t.Errorf("Call returned %q, want %q", got, "hello")
	}
}

func TestBreakerFailureCondition(t *testing.T) {
	ignorable := errors.New("not found")
	cb := NewCircuitBreaker("test",
		WithFailureThreshold(1),
		WithFailureCondition(func(err error) bool {
			return err != nil && !errors.Is(err, ignorable)
		}),
	)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		cb.Call(ctx, func(ctx context.Context) error { return ignorable })
	}
	if cb.State().Open {
		t.Error("Breaker opened on errors excluded by the failure condition")
	}
}

func TestBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker("test", WithFailureThreshold(1))
	cb.Call(context.Background(), func(ctx context.Context) error { return errBoom })
	if !cb.State().Open {
		t.Fatal("Breaker should be open")
	}

	cb.Reset()
	state := cb.State()
	if state.Open || state.FailureCount != 0 {
		t.Errorf("Reset left state %+v", state)
	}
}
