package context7

import (
	"sync"
	"time"

	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// circuitBreaker stops calls to a repeatedly failing provider for a cool-down
// period. After the cool-down a single probe is let through; its outcome
// decides whether the breaker closes again.
type circuitBreaker struct {
	mu               sync.Mutex
	state            breakerState
	failures         int
	failureThreshold int
	cooldown         time.Duration
	openedAt         time.Time
	now              func() time.Time
}

func newCircuitBreaker(failureThreshold int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. While open it returns a
// ProviderUnavailableError; after the cool-down it admits one probe.
func (b *circuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return nil
	case breakerHalfOpen:
		// A probe is already in flight
		return &interfaces.ProviderUnavailableError{Provider: "context7", Reason: "circuit half-open, probe in flight"}
	default:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = breakerHalfOpen
			return nil
		}
		return &interfaces.ProviderUnavailableError{Provider: "context7", Reason: "circuit open"}
	}
}

// RecordSuccess closes the breaker and resets the failure count
func (b *circuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = breakerClosed
	b.failures = 0
}

// RecordFailure counts a failure, opening the breaker once the threshold is
// reached. A failed half-open probe reopens immediately.
func (b *circuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerHalfOpen {
		b.state = breakerOpen
		b.openedAt = b.now()
		return
	}

	b.failures++
	if b.failures >= b.failureThreshold {
		b.state = breakerOpen
		b.openedAt = b.now()
	}
}
