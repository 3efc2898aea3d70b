// Package apperr defines the sentinel error taxonomy shared across the
// orchestrator. Callers compare with errors.Is against the sentinels
// here; node and collector code wraps them with %w so context survives
// up to the API layer, which maps a taxonomy class to an HTTP status
// and an SSE error event.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel classes, one per spec.md §7 failure category.
var (
	// ErrValidation marks a caller-input problem: empty ticker, malformed
	// trade date, unknown analyst kind. Maps to HTTP 400.
	ErrValidation = errors.New("validation error")

	// ErrUpstreamUnavailable marks a collector or LLM dependency that
	// could not be reached at all (network failure, circuit open).
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamRejected marks a dependency that was reached but
	// declined the request (4xx from a data provider, LLM content
	// filter, rate limit exhausted).
	ErrUpstreamRejected = errors.New("upstream rejected request")

	// ErrToolFailure marks a tool-call invocation that failed inside the
	// tool executor, independent of the upstream it wraps.
	ErrToolFailure = errors.New("tool execution failed")

	// ErrNodeFailure marks a graph node whose body returned an error the
	// node could not downgrade to a warning status.
	ErrNodeFailure = errors.New("node execution failed")

	// ErrAggregationFailure marks the aggregator's complete_failure case:
	// every analyst report came back empty.
	ErrAggregationFailure = errors.New("aggregation failed: no usable analyst reports")

	// ErrCancelled marks a run ended by context cancellation or the
	// engine's execution-step cap, as opposed to a domain failure.
	ErrCancelled = errors.New("run cancelled")
)

// Wrap annotates err with msg while preserving errors.Is matching
// against class (one of the sentinels above).
func Wrap(class error, msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", msg, class)
	}
	return fmt.Errorf("%s: %w: %w", msg, class, err)
}

// Class reports the sentinel class of err, or nil if err doesn't match
// any of the taxonomy's sentinels. Used by the API layer to pick an
// HTTP status.
func Class(err error) error {
	for _, class := range []error{
		ErrValidation,
		ErrUpstreamUnavailable,
		ErrUpstreamRejected,
		ErrToolFailure,
		ErrNodeFailure,
		ErrAggregationFailure,
		ErrCancelled,
	} {
		if errors.Is(err, class) {
			return class
		}
	}
	return nil
}

// HTTPStatus maps err's taxonomy class to the status code spec.md §6
// assigns it. Unclassified errors (unexpected exceptions) map to 500.
func HTTPStatus(err error) int {
	switch Class(err) {
	case ErrValidation:
		return 400
	case ErrCancelled:
		return 499
	case ErrUpstreamUnavailable, ErrUpstreamRejected, ErrToolFailure, ErrNodeFailure, ErrAggregationFailure:
		// Domain/app-level failures still resolve to a decision
		// (conservative HOLD) rather than an HTTP failure; the run
		// itself is reported as a 200 with an error event/field per
		// spec.md §7's "surface, don't crash" policy.
		return 200
	default:
		return 500
	}
}
