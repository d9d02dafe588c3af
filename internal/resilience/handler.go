package resilience

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/recall/internal/metrics"
)

// Names of the breakers the handler owns.
const (
	BreakerDatabase    = "database"
	BreakerCache       = "cache"
	BreakerExternalAPI = "external_api"
)

// Health thresholds: a type with more than unhealthyErrorCount errors, the
// latest within unhealthyWindow, marks the system unhealthy.
const (
	unhealthyErrorCount = 10
	unhealthyWindow     = 5 * time.Minute
)

// BreakerStatus is the per-breaker slice of a HealthReport.
type BreakerStatus struct {
	Open         bool `json:"open"`
	FailureCount int  `json:"failure_count"`
	SuccessCount int  `json:"success_count"`
}

// HealthReport is a point-in-time snapshot of error metrics and breaker
// states.
type HealthReport struct {
	ReportID    string                     `json:"report_id"`
	Healthy     bool                       `json:"healthy"`
	Errors      map[ErrorType]ErrorMetrics `json:"errors"`
	Breakers    map[string]BreakerStatus   `json:"breakers"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// Handler classifies errors from the memory backend's dependencies,
// records per-type metrics, and selects a fallback strategy for the
// caller to act on. It owns the named circuit breakers for the database,
// the cache, and external APIs. Safe for concurrent use.
type Handler struct {
	log   *slog.Logger
	now   func() time.Time
	sleep sleepFunc

	mu       sync.Mutex
	errors   map[ErrorType]*ErrorMetrics
	breakers map[string]*CircuitBreaker
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the handler's logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.log = log
	}
}

// WithHandlerClock overrides the time source. Useful for testing.
func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.now = now
	}
}

// WithSleep overrides the backoff sleep used by the retry helpers.
// Useful for testing.
func WithSleep(sleep func(context.Context, time.Duration) error) HandlerOption {
	return func(h *Handler) {
		h.sleep = sleep
	}
}

// NewHandler creates a handler with its breaker registry initialized.
func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{
		log:    slog.Default(),
		now:    time.Now,
		sleep:  ctxSleep,
		errors: make(map[ErrorType]*ErrorMetrics),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.breakers = map[string]*CircuitBreaker{
		BreakerDatabase: NewCircuitBreaker(BreakerDatabase,
			WithFailureThreshold(3),
			WithRecoveryTimeout(30*time.Second),
			WithClock(h.now),
		),
		BreakerCache: NewCircuitBreaker(BreakerCache,
			WithFailureThreshold(5),
			WithRecoveryTimeout(15*time.Second),
			WithClock(h.now),
		),
		BreakerExternalAPI: NewCircuitBreaker(BreakerExternalAPI,
			WithFailureThreshold(3),
			WithRecoveryTimeout(60*time.Second),
			WithClock(h.now),
		),
	}
	return h
}

// CircuitBreaker returns the named breaker, or nil if the name is unknown.
func (h *Handler) CircuitBreaker(name string) *CircuitBreaker {
	return h.breakers[name]
}

// HandleDatabaseError classifies a database failure and returns the
// fallback the caller should apply. Never returns an error itself.
func (h *Handler) HandleDatabaseError(err error, operation string) FallbackStrategy {
	errType, strategy := classifyDatabase(err)
	h.record(errType, strategy, operation, err)
	return strategy
}

// HandleCacheError classifies a cache failure. The database is the
// fallback for every cache problem.
func (h *Handler) HandleCacheError(err error, operation string) FallbackStrategy {
	errType := ErrorTypeCacheOperation
	if tag, ok := classifiedTag(err); ok && tag == ErrorTypeCacheConnection {
		errType = ErrorTypeCacheConnection
	} else if containsAny(errMessage(err), "connection") {
		errType = ErrorTypeCacheConnection
	}
	h.record(errType, FallbackUseDatabase, operation, err)
	return FallbackUseDatabase
}

// HandleContextError records a context-retrieval failure. Context lookups
// degrade to an empty result.
func (h *Handler) HandleContextError(err error, query string) FallbackStrategy {
	h.record(ErrorTypeContextRetrieval, FallbackReturnEmpty, query, err)
	return FallbackReturnEmpty
}

// HandleToolAnalyticsError records a tool-analytics failure. Analytics
// degrade to default (empty) stats.
func (h *Handler) HandleToolAnalyticsError(err error, toolName string) FallbackStrategy {
	h.record(ErrorTypeToolAnalytics, FallbackUseDefault, toolName, err)
	return FallbackUseDefault
}

// HandleStorageError records a memory-storage failure. Capacity problems
// fail gracefully; everything else is worth retrying. dataSize is the
// size in bytes of the payload that failed to store.
func (h *Handler) HandleStorageError(err error, dataSize int) FallbackStrategy {
	strategy := FallbackRetryWithBackoff
	if containsAny(errMessage(err), "space", "memory") {
		strategy = FallbackFailGracefully
	}
	h.log.Debug("Memory storage failure", "data_size", dataSize)
	h.record(ErrorTypeMemoryStorage, strategy, "memory_storage", err)
	return strategy
}

// Healthy reports whether the error rates are within tolerance: no error
// type with more than 10 recorded errors whose latest occurrence is
// inside the last 5 minutes.
func (h *Handler) Healthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.healthyLocked()
}

func (h *Handler) healthyLocked() bool {
	cutoff := h.now().Add(-unhealthyWindow)
	for _, m := range h.errors {
		if m.ErrorCount > unhealthyErrorCount && m.LastErrorTime.After(cutoff) {
			return false
		}
	}
	return true
}

// HealthReport returns a snapshot of error metrics and breaker states.
func (h *Handler) HealthReport() HealthReport {
	h.mu.Lock()
	report := HealthReport{
		ReportID:    uuid.New().String(),
		Healthy:     h.healthyLocked(),
		Errors:      h.copyMetricsLocked(),
		Breakers:    make(map[string]BreakerStatus, len(h.breakers)),
		GeneratedAt: h.now(),
	}
	h.mu.Unlock()

	// Breakers hold their own locks; read them outside ours.
	for name, cb := range h.breakers {
		state := cb.State()
		report.Breakers[name] = BreakerStatus{
			Open:         state.Open,
			FailureCount: state.FailureCount,
			SuccessCount: state.SuccessCount,
		}
	}
	return report
}

// ErrorMetrics returns a copy of the per-type metrics. Mutating the
// returned map does not affect the handler.
func (h *Handler) ErrorMetrics() map[ErrorType]ErrorMetrics {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.copyMetricsLocked()
}

func (h *Handler) copyMetricsLocked() map[ErrorType]ErrorMetrics {
	out := make(map[ErrorType]ErrorMetrics, len(h.errors))
	for t, m := range h.errors {
		out[t] = *m
	}
	return out
}

// ResetErrorMetrics clears metrics for the given types, or all metrics
// when called with no arguments.
func (h *Handler) ResetErrorMetrics(types ...ErrorType) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(types) == 0 {
		h.errors = make(map[ErrorType]*ErrorMetrics)
		return
	}
	for _, t := range types {
		delete(h.errors, t)
	}
}

func (h *Handler) record(errType ErrorType, strategy FallbackStrategy, operation string, err error) {
	now := h.now()

	h.mu.Lock()
	m, ok := h.errors[errType]
	if !ok {
		m = &ErrorMetrics{ErrorType: errType}
		h.errors[errType] = m
	}
	m.ErrorCount++
	m.LastErrorTime = now
	m.FallbackUsed = strategy
	h.mu.Unlock()

	metrics.ErrorsTotal.WithLabelValues(string(errType), operation).Inc()
	metrics.FallbacksTotal.WithLabelValues(string(strategy)).Inc()

	h.log.Warn("Handled dependency error",
		"event_id", uuid.New().String(),
		"error_type", errType,
		"operation", operation,
		"fallback", strategy,
		"error", err,
	)
}

// classifyDatabase resolves the error type and fallback for a database
// failure. A ClassifiedError tag from the storage layer wins; untagged
// errors fall back to message matching.
func classifyDatabase(err error) (ErrorType, FallbackStrategy) {
	if tag, ok := classifiedTag(err); ok {
		switch tag {
		case ErrorTypeDatabaseQuery:
			return ErrorTypeDatabaseQuery, FallbackReturnEmpty
		case ErrorTypeDatabaseConnection:
			return ErrorTypeDatabaseConnection, FallbackUseCache
		}
	}

	msg := errMessage(err)
	switch {
	case containsAny(msg, "connection"):
		return ErrorTypeDatabaseConnection, FallbackUseCache
	case containsAny(msg, "timeout"):
		return ErrorTypeDatabaseConnection, FallbackRetryWithBackoff
	case containsAny(msg, "query", "syntax"):
		return ErrorTypeDatabaseQuery, FallbackReturnEmpty
	default:
		return ErrorTypeDatabaseConnection, FallbackReturnEmpty
	}
}

func classifiedTag(err error) (ErrorType, bool) {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Type, true
	}
	return "", false
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return strings.ToLower(err.Error())
}

func containsAny(msg string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
