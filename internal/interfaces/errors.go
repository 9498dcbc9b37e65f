package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrNotFound is returned by storage lookups for missing records
var ErrNotFound = errors.New("not found")

// ProviderTimeoutError indicates an external collaborator call exceeded its
// deadline. Retryable.
type ProviderTimeoutError struct {
	Provider string
	Elapsed  time.Duration
}

func (e *ProviderTimeoutError) Error() string {
	return fmt.Sprintf("provider %s timed out after %s", e.Provider, e.Elapsed)
}

// ProviderUnavailableError indicates a collaborator is down or its circuit
// breaker is open. Not retried within a request; background jobs retry it.
type ProviderUnavailableError struct {
	Provider string
	Reason   string
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %s", e.Provider, e.Reason)
}

// RateLimitError indicates the provider asked us to back off. Retryable.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("provider %s rate limited, retry after %s", e.Provider, e.RetryAfter)
}

// RefinementStalledError indicates the refiner returned the identical query.
// Treated as exhausted refinements: the orchestrator routes to external.
type RefinementStalledError struct {
	Query string
}

func (e *RefinementStalledError) Error() string {
	return fmt.Sprintf("refinement stalled: refiner returned identical query %q", e.Query)
}

// IsRetryable reports whether an error is a transient failure kind that the
// job retry policy applies to: timeouts and transient connectivity problems.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var timeoutErr *ProviderTimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}
