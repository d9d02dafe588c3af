package resilience

// Result is the outcome of a guarded operation. Exactly one of three
// shapes occurs:
//
//   - success:  Err == nil, Strategy == ""
//   - degraded: Strategy != "", Value is the zero value, Err holds the
//     suppressed cause
//   - failed:   Strategy == "", Err != nil — the fallback did not apply
//     and the caller must treat Err as a real failure
//
// The explicit variant keeps a degraded zero value distinguishable from
// a genuine empty success.
type Result[T any] struct {
	Value    T
	Strategy FallbackStrategy
	Err      error
}

// Ok reports whether the operation succeeded without degradation.
func (r Result[T]) Ok() bool {
	return r.Err == nil
}

// Degraded reports whether a fallback strategy was applied in place of
// the real result.
func (r Result[T]) Degraded() bool {
	return r.Strategy != ""
}

// Guard wraps fn so that failures are routed to the matching handler
// method and translated into a Result. Errors mentioning the database,
// the cache, or context retrieval go to their dedicated handlers; anything
// else is recorded as a memory-storage failure that fails gracefully.
// Strategies without a defined degraded value (such as retry-with-backoff)
// leave the error in place for the caller.
func Guard[T any](h *Handler, operation string, fn func() (T, error)) Result[T] {
	value, err := fn()
	if err == nil {
		return Result[T]{Value: value}
	}

	var strategy FallbackStrategy
	msg := errMessage(err)
	switch {
	case containsAny(msg, "database", "sql"):
		strategy = h.HandleDatabaseError(err, operation)
	case containsAny(msg, "cache", "redis"):
		strategy = h.HandleCacheError(err, operation)
	case containsAny(msg, "context"):
		strategy = h.HandleContextError(err, operation)
	default:
		h.record(ErrorTypeMemoryStorage, FallbackFailGracefully, operation, err)
		strategy = FallbackFailGracefully
	}

	switch strategy {
	case FallbackReturnEmpty, FallbackUseCache, FallbackUseDatabase, FallbackFailGracefully, FallbackUseDefault:
		var zero T
		return Result[T]{Value: zero, Strategy: strategy, Err: err}
	default:
		return Result[T]{Err: err}
	}
}
