package collectors

import (
	"sync"
	"time"
)

// breakerState is the three-state circuit breaker machine from §4.1:
// closed (normal), open (failing fast), half-open (one trial call).
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// CircuitBreaker counts consecutive failures for one upstream and opens
// after a threshold, rejecting calls for a cooldown window before
// allowing a single trial call through (half-open).
type CircuitBreaker struct {
	mu          sync.Mutex
	state       breakerState
	failures    int
	threshold   int
	cooldown    time.Duration
	openedAt    time.Time
	nowFn       func() time.Time
}

// NewCircuitBreaker builds a breaker with the given consecutive-failure
// threshold and cooldown (spec.md §4.1 defaults: 5 failures, 60s).
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, nowFn: time.Now}
}

// Allow reports whether a call should be attempted right now. It
// transitions open -> half-open once the cooldown has elapsed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if b.nowFn().Sub(b.openedAt) >= b.cooldown {
			b.state = breakerHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess resets the breaker to closed. A success in half-open
// state is what spec.md means by "resets it".
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = breakerClosed
}

// RecordFailure increments the consecutive-failure count, tripping the
// breaker open once it reaches the threshold. A failure while half-open
// reopens the breaker immediately.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerHalfOpen {
		b.trip()
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.trip()
	}
}

func (b *CircuitBreaker) trip() {
	b.state = breakerOpen
	b.openedAt = b.nowFn()
}

// Open reports whether the breaker is currently rejecting calls.
func (b *CircuitBreaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != breakerOpen {
		return false
	}
	return b.nowFn().Sub(b.openedAt) < b.cooldown
}
