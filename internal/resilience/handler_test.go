package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestHandleDatabaseErrorClassification(t *testing.T) {
	tests := []struct {
		msg      string
		errType  ErrorType
		strategy FallbackStrategy
	}{
		{"connection refused", ErrorTypeDatabaseConnection, FallbackUseCache},
		{"dial tcp: connection reset by peer", ErrorTypeDatabaseConnection, FallbackUseCache},
		{"statement timeout", ErrorTypeDatabaseConnection, FallbackRetryWithBackoff},
		{"query syntax error", ErrorTypeDatabaseQuery, FallbackReturnEmpty},
		{"syntax error at or near SELECT", ErrorTypeDatabaseQuery, FallbackReturnEmpty},
		{"something unexpected", ErrorTypeDatabaseConnection, FallbackReturnEmpty},
	}

	for _, tt := range tests {
		h := NewHandler()
		got := h.HandleDatabaseError(errors.New(tt.msg), "op")
		if got != tt.strategy {
			t.Errorf("HandleDatabaseError(%q) = %v, want %v", tt.msg, got, tt.strategy)
		}
		m := h.ErrorMetrics()
		if m[tt.errType].ErrorCount != 1 {
			t.Errorf("HandleDatabaseError(%q) recorded under %+v, want 1 error of type %s",
				tt.msg, m, tt.errType)
		}
	}
}

func TestHandleDatabaseErrorCountsExactlyOnce(t *testing.T) {
	h := NewHandler()

	h.HandleDatabaseError(errors.New("connection refused"), "op")
	if got := h.ErrorMetrics()[ErrorTypeDatabaseConnection].ErrorCount; got != 1 {
		t.Fatalf("ErrorCount = %d after one error, want 1", got)
	}

	h.HandleDatabaseError(errors.New("connection refused"), "op")
	if got := h.ErrorMetrics()[ErrorTypeDatabaseConnection].ErrorCount; got != 2 {
		t.Fatalf("ErrorCount = %d after two errors, want 2", got)
	}
}

func TestHandleDatabaseErrorClassifiedTagWins(t *testing.T) {
	h := NewHandler()

	// The message says "connection" but the storage layer tagged it as a
	// query failure; the tag must win over message matching.
	err := Classify(ErrorTypeDatabaseQuery, errors.New("connection refused"))
	if got := h.HandleDatabaseError(err, "op"); got != FallbackReturnEmpty {
		t.Errorf("Tagged query error returned %v, want %v", got, FallbackReturnEmpty)
	}
	if h.ErrorMetrics()[ErrorTypeDatabaseQuery].ErrorCount != 1 {
		t.Error("Tagged query error not recorded under database_query")
	}
}

func TestHandleCacheError(t *testing.T) {
	tests := []struct {
		msg     string
		errType ErrorType
	}{
		{"connection pool exhausted", ErrorTypeCacheConnection},
		{"GET failed", ErrorTypeCacheOperation},
	}

	for _, tt := range tests {
		h := NewHandler()
		if got := h.HandleCacheError(errors.New(tt.msg), "op"); got != FallbackUseDatabase {
			t.Errorf("HandleCacheError(%q) = %v, want %v", tt.msg, got, FallbackUseDatabase)
		}
		if h.ErrorMetrics()[tt.errType].ErrorCount != 1 {
			t.Errorf("HandleCacheError(%q) not recorded under %s", tt.msg, tt.errType)
		}
	}
}

func TestHandleContextError(t *testing.T) {
	h := NewHandler()
	if got := h.HandleContextError(errors.New("anything at all"), "billing query"); got != FallbackReturnEmpty {
		t.Errorf("HandleContextError = %v, want %v", got, FallbackReturnEmpty)
	}
	if h.ErrorMetrics()[ErrorTypeContextRetrieval].ErrorCount != 1 {
		t.Error("Context error not recorded under context_retrieval")
	}
}

func TestHandleToolAnalyticsError(t *testing.T) {
	h := NewHandler()
	if got := h.HandleToolAnalyticsError(errors.New("aggregation failed"), "kb_search"); got != FallbackUseDefault {
		t.Errorf("HandleToolAnalyticsError = %v, want %v", got, FallbackUseDefault)
	}
	if h.ErrorMetrics()[ErrorTypeToolAnalytics].ErrorCount != 1 {
		t.Error("Tool analytics error not recorded under tool_analytics")
	}
}

func TestHandleStorageError(t *testing.T) {
	tests := []struct {
		msg      string
		strategy FallbackStrategy
	}{
		{"no space left on device", FallbackFailGracefully},
		{"out of memory", FallbackFailGracefully},
		{"write interrupted", FallbackRetryWithBackoff},
	}

	for _, tt := range tests {
		h := NewHandler()
		if got := h.HandleStorageError(errors.New(tt.msg), 1024); got != tt.strategy {
			t.Errorf("HandleStorageError(%q) = %v, want %v", tt.msg, got, tt.strategy)
		}
		if h.ErrorMetrics()[ErrorTypeMemoryStorage].ErrorCount != 1 {
			t.Errorf("HandleStorageError(%q) not recorded under memory_storage", tt.msg)
		}
	}
}

func TestResetErrorMetrics(t *testing.T) {
	h := NewHandler()
	h.HandleDatabaseError(errors.New("connection refused"), "op")
	h.HandleCacheError(errors.New("connection lost"), "op")
	h.HandleContextError(errors.New("nope"), "q")

	h.ResetErrorMetrics(ErrorTypeCacheConnection)
	m := h.ErrorMetrics()
	if _, ok := m[ErrorTypeCacheConnection]; ok {
		t.Error("Targeted reset did not remove cache_connection metrics")
	}
	if len(m) != 2 {
		t.Errorf("Targeted reset removed other entries, %d left, want 2", len(m))
	}

	h.ResetErrorMetrics()
	if len(h.ErrorMetrics()) != 0 {
		t.Error("Full reset did not empty the metrics map")
	}
}

func TestErrorMetricsReturnsCopy(t *testing.T) {
	h := NewHandler()
	h.HandleContextError(errors.New("nope"), "q")

	m := h.ErrorMetrics()
	delete(m, ErrorTypeContextRetrieval)

	if len(h.ErrorMetrics()) != 1 {
		t.Error("Mutating the returned map affected handler state")
	}
}

func TestHealthy(t *testing.T) {
	clk := newFakeClock()
	h := NewHandler(WithHandlerClock(clk.Now))

	if !h.Healthy() {
		t.Fatal("Fresh handler reported unhealthy")
	}

	for i := 0; i < 11; i++ {
		h.HandleContextError(errors.New("nope"), "q")
	}
	if h.Healthy() {
		t.Fatal("Handler healthy after 11 recent errors of one type")
	}

	// Once the errors age out of the 5-minute window the system recovers.
	clk.Advance(6 * time.Minute)
	if !h.Healthy() {
		t.Error("Handler unhealthy after errors aged out of the window")
	}
}

func TestHealthyIgnoresLowCounts(t *testing.T) {
	h := NewHandler()
	for i := 0; i < 10; i++ {
		h.HandleContextError(errors.New("nope"), "q")
	}
	if !h.Healthy() {
		t.Error("Handler unhealthy at exactly 10 errors, threshold is more than 10")
	}
}

func TestHealthReport(t *testing.T) {
	h := NewHandler()
	h.HandleDatabaseError(errors.New("connection refused"), "op")

	report := h.HealthReport()
	if report.ReportID == "" {
		t.Error("Report missing id")
	}
	if !report.Healthy {
		t.Error("Report unhealthy for a single error")
	}
	if len(report.Breakers) != 3 {
		t.Errorf("Report has %d breakers, want 3", len(report.Breakers))
	}
	if report.Errors[ErrorTypeDatabaseConnection].ErrorCount != 1 {
		t.Error("Report missing database_connection metrics")
	}
	if report.GeneratedAt.IsZero() {
		t.Error("Report missing generation timestamp")
	}
}

func TestCircuitBreakerRegistry(t *testing.T) {
	h := NewHandler()

	for _, name := range []string{BreakerDatabase, BreakerCache, BreakerExternalAPI} {
		cb := h.CircuitBreaker(name)
		if cb == nil {
			t.Fatalf("Missing breaker %q", name)
		}
		if cb.Name() != name {
			t.Errorf("Breaker name = %q, want %q", cb.Name(), name)
		}
	}

	if cb := h.CircuitBreaker("unknown"); cb != nil {
		t.Error("Unknown breaker name returned a breaker")
	}
}
