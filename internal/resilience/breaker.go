package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/recall/internal/metrics"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// invoking the underlying function.
var ErrCircuitOpen = errors.New("circuit breaker open")

// IsCircuitOpen reports whether err is a breaker rejection.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// FailureCondition decides whether an error counts against the breaker.
type FailureCondition func(error) bool

// Default breaker settings.
const (
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 60 * time.Second
)

// BreakerState is a snapshot of a breaker's internal counters.
type BreakerState struct {
	Open            bool      `json:"open"`
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	LastFailureTime time.Time `json:"last_failure_time,omitzero"`
	NextAttemptTime time.Time `json:"next_attempt_time,omitzero"`
}

// CircuitBreaker gates access to a single dependency. After
// failureThreshold consecutive failures it opens and rejects calls until
// recoveryTimeout elapses; the first call after that is admitted as a
// probe. Safe for concurrent use.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	isFailure        FailureCondition
	now              func() time.Time

	mu    sync.Mutex
	state BreakerState
}

// BreakerOption configures a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithFailureThreshold sets consecutive failures before opening. Default is 5.
func WithFailureThreshold(n int) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.failureThreshold = n
	}
}

// WithRecoveryTimeout sets how long the breaker stays open before admitting
// a probe call. Default is 60 seconds.
func WithRecoveryTimeout(d time.Duration) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.recoveryTimeout = d
	}
}

// WithFailureCondition sets which errors count as failures.
// By default every non-nil error counts.
func WithFailureCondition(cond FailureCondition) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.isFailure = cond
	}
}

// WithClock overrides the time source. Useful for testing.
func WithClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// NewCircuitBreaker creates a breaker with the given options.
func NewCircuitBreaker(name string, opts ...BreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		failureThreshold: DefaultFailureThreshold,
		recoveryTimeout:  DefaultRecoveryTimeout,
		isFailure:        func(err error) bool { return err != nil },
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	metrics.BreakerState.WithLabelValues(name).Set(0)
	return cb
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Call executes fn if the breaker admits it. The return value of fn is
// passed through unchanged; failures are recorded and the original error
// is returned to the caller. While open, Call returns ErrCircuitOpen
// without invoking fn.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.allow(); err != nil {
		metrics.BreakerRejectionsTotal.WithLabelValues(cb.name).Inc()
		return err
	}

	err := fn(ctx)
	cb.record(err)
	return err
}

// Call executes fn through cb and passes its value through on success.
// Method type parameters are not supported, hence the package function.
func Call[T any](ctx context.Context, cb *CircuitBreaker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := cb.Call(ctx, func(ctx context.Context) error {
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

// State returns a snapshot of the breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset manually closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = BreakerState{}
	metrics.BreakerState.WithLabelValues(cb.name).Set(0)
}

// allow decides whether a call may proceed. When the recovery window has
// elapsed it reserves the probe slot by pushing NextAttemptTime forward,
// so concurrent callers cannot pile onto a still-failing dependency.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.state.Open {
		return nil
	}

	now := cb.now()
	if now.Before(cb.state.NextAttemptTime) {
		return ErrCircuitOpen
	}

	cb.state.NextAttemptTime = now.Add(cb.recoveryTimeout)
	slog.Debug("Circuit breaker admitting probe call", "breaker", cb.name)
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.isFailure(err) {
		cb.state.SuccessCount++
		cb.state.FailureCount = 0
		if cb.state.Open {
			cb.state.Open = false
			cb.state.NextAttemptTime = time.Time{}
			metrics.BreakerState.WithLabelValues(cb.name).Set(0)
			slog.Info("Circuit breaker closed after successful probe", "breaker", cb.name)
		}
		return
	}

	now := cb.now()
	cb.state.FailureCount++
	cb.state.LastFailureTime = now

	if cb.state.Open {
		// Failed probe: stay open for another recovery window.
		cb.state.NextAttemptTime = now.Add(cb.recoveryTimeout)
		slog.Warn("Circuit breaker probe failed, staying open",
			"breaker", cb.name,
			"next_attempt", cb.state.NextAttemptTime,
		)
		return
	}

	if cb.state.FailureCount >= cb.failureThreshold {
		cb.state.Open = true
		cb.state.NextAttemptTime = now.Add(cb.recoveryTimeout)
		metrics.BreakerState.WithLabelValues(cb.name).Set(1)
		slog.Warn("Circuit breaker opened",
			"breaker", cb.name,
			"failures", cb.state.FailureCount,
			"next_attempt", cb.state.NextAttemptTime,
		)
	}
}
