// Package resilience centralizes failure handling for the memory backend:
// per-dependency circuit breakers, error classification with fallback
// strategy selection, and retry with exponential backoff.
package resilience

import (
	"fmt"
	"time"
)

// ErrorType identifies the failure domain an error belongs to.
type ErrorType string

const (
	ErrorTypeDatabaseConnection ErrorType = "database_connection"
	ErrorTypeDatabaseQuery      ErrorType = "database_query"
	ErrorTypeCacheConnection    ErrorType = "cache_connection"
	ErrorTypeCacheOperation     ErrorType = "cache_operation"
	ErrorTypeContextRetrieval   ErrorType = "context_retrieval"
	ErrorTypeToolAnalytics      ErrorType = "tool_analytics"
	ErrorTypeMemoryStorage      ErrorType = "memory_storage"
	ErrorTypeConfiguration      ErrorType = "configuration"
)

// FallbackStrategy tells the caller how to degrade after a failure.
type FallbackStrategy string

const (
	FallbackRetryWithBackoff FallbackStrategy = "retry_with_backoff"
	FallbackUseCache         FallbackStrategy = "use_cache"
	FallbackUseDatabase      FallbackStrategy = "use_database"
	FallbackReturnEmpty      FallbackStrategy = "return_empty"
	FallbackUseDefault       FallbackStrategy = "use_default"
	FallbackFailGracefully   FallbackStrategy = "fail_gracefully"
)

// ErrorMetrics tracks occurrences of one ErrorType since the last reset.
type ErrorMetrics struct {
	ErrorType         ErrorType        `json:"error_type"`
	ErrorCount        int              `json:"error_count"`
	LastErrorTime     time.Time        `json:"last_error_time"`
	TotalRecoveryTime time.Duration    `json:"total_recovery_time"`
	SuccessRate       float64          `json:"success_rate"`
	FallbackUsed      FallbackStrategy `json:"fallback_used,omitempty"`
}

// ClassifiedError carries an explicit ErrorType tag assigned by the layer
// that produced the error. The handler prefers this tag over message
// matching, so wording changes in driver errors cannot misroute them.
type ClassifiedError struct {
	Type ErrorType
	Err  error
}

// Classify tags err with an ErrorType. Returns nil if err is nil.
func Classify(t ErrorType, err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Type: t, Err: err}
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Type, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}
