package resilience

import (
	"context"
	"time"

	"github.com/vietddude/recall/internal/metrics"
)

// DefaultMaxRetries is the retry budget used when callers pass a
// non-positive value.
const DefaultMaxRetries = 3

// maxBackoff caps the exponential backoff delay.
const maxBackoff = 30 * time.Second

type sleepFunc func(context.Context, time.Duration) error

func ctxSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// backoffDelay calculates delay for the given attempt: 2^attempt seconds,
// capped at 30 seconds.
func backoffDelay(attempt int) time.Duration {
	delay := time.Duration(1<<attempt) * time.Second
	if delay > maxBackoff || delay <= 0 {
		return maxBackoff
	}
	return delay
}

// RetryOperation invokes fn, retrying up to maxRetries additional times
// on failure with exponential backoff between attempts. The last error is
// returned once the budget is exhausted. Cancelling ctx aborts the
// backoff sleep and returns the context error.
func (h *Handler) RetryOperation(
	ctx context.Context,
	operation string,
	maxRetries int,
	fn func(context.Context) error,
) error {
	return h.WithRecovery(ctx, operation, maxRetries, func(ctx context.Context, _ int) error {
		return fn(ctx)
	})
}

// WithRecovery is the re-entrant form of RetryOperation: the body receives
// the current attempt index (0 for the initial attempt) and is re-entered
// after backoff until it succeeds or the retry budget is exhausted.
func (h *Handler) WithRecovery(
	ctx context.Context,
	operation string,
	maxRetries int,
	body func(ctx context.Context, attempt int) error,
) error {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			metrics.RetryAttemptsTotal.WithLabelValues(operation).Inc()
		}

		err := body(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == maxRetries {
			break
		}

		delay := backoffDelay(attempt)
		h.log.Warn("Operation failed, retrying",
			"operation", operation,
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"backoff", delay,
			"error", err,
		)
		if err := h.sleep(ctx, delay); err != nil {
			return err
		}
	}

	h.log.Error("Operation failed after retries exhausted",
		"operation", operation,
		"attempts", maxRetries+1,
		"error", lastErr,
	)
	return lastErr
}

// Retry runs fn through h.RetryOperation and passes its value through on
// success.
func Retry[T any](
	ctx context.Context,
	h *Handler,
	operation string,
	maxRetries int,
	fn func(context.Context) (T, error),
) (T, error) {
	var out T
	err := h.RetryOperation(ctx, operation, maxRetries, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
