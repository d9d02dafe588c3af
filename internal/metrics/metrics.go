package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrorsTotal tracks handled errors per type and operation
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recall_errors_total",
			Help: "Total number of handled errors",
		},
		[]string{"error_type", "operation"},
	)

	// FallbacksTotal tracks fallback strategies returned to callers
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recall_fallbacks_total",
			Help: "Total number of fallback strategies applied",
		},
		[]string{"strategy"},
	)

	// BreakerState tracks circuit breaker state (0 = closed, 1 = open)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recall_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open)",
		},
		[]string{"breaker"},
	)

	// BreakerRejectionsTotal tracks calls rejected by an open breaker
	BreakerRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recall_breaker_rejections_total",
			Help: "Total number of calls rejected while the breaker was open",
		},
		[]string{"breaker"},
	)

	// RetryAttemptsTotal tracks retry attempts per operation
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recall_retry_attempts_total",
			Help: "Total number of retry attempts",
		},
		[]string{"operation"},
	)

	// DBConnectionPoolUsage tracks database connection pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recall_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)

	// CacheHitsTotal tracks context cache hits and misses
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recall_cache_requests_total",
			Help: "Total number of context cache lookups",
		},
		[]string{"result"},
	)
)
