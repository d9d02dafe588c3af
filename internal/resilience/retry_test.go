package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

// newTestHandler returns a handler whose backoff sleeps complete
// instantly.
func newTestHandler() *Handler {
	return NewHandler(WithSleep(func(ctx context.Context, d time.Duration) error {
		return nil
	}))
}

func TestRetryOperationEventualSuccess(t *testing.T) {
	h := newTestHandler()

	calls := 0
	err := h.RetryOperation(context.Background(), "store", 3, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})

	if err != nil {
		t.Fatalf("RetryOperation failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("Function invoked %d times, want 3", calls)
	}
}

func TestRetryOperationExhaustsBudget(t *testing.T) {
	h := newTestHandler()

	calls := 0
	err := h.RetryOperation(context.Background(), "store", 2, func(ctx context.Context) error {
		calls++
		return errBoom
	})

	if !errors.Is(err, errBoom) {
		t.Fatalf("Expected errBoom after exhausted retries, got %v", err)
	}
	// Initial attempt plus 2 retries.
	if calls != 3 {
		t.Errorf("Function invoked %d times, want 3", calls)
	}
}

func TestRetryValuePassthrough(t *testing.T) {
	h := newTestHandler()

	attempts := 0
	got, err := Retry(context.Background(), h, "load", 2, func(ctx context.Context) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, errBoom
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if got != 42 {
		t.Errorf("Retry returned %d, want 42", got)
	}
}

func TestWithRecoveryAttemptIndex(t *testing.T) {
	h := newTestHandler()

	var seen []int
	err := h.WithRecovery(context.Background(), "sync", 2, func(ctx context.Context, attempt int) error {
		seen = append(seen, attempt)
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Expected errBoom, got %v", err)
	}

	want := []int{0, 1, 2}
	if len(seen) != len(want) {
		t.Fatalf("Body entered %d times, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("Attempt index %d = %d, want %d", i, seen[i], want[i])
		}
	}
}

func TestRetryContextCancellation(t *testing.T) {
	h := NewHandler() // real sleep: cancellation must interrupt it

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := h.RetryOperation(ctx, "store", 5, func(ctx context.Context) error {
		calls++
		return errBoom
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Function invoked %d times after cancellation, want 1", calls)
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // 32s capped
		{10, 30 * time.Second},
		{63, 30 * time.Second}, // shift overflow guard
	}

	for _, tt := range tests {
		if got := backoffDelay(tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
