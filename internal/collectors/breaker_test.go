package collectors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, time.Minute)
	assert.True(t, b.Allow())

	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow(), "below threshold, still closed")

	b.RecordFailure()
	assert.False(t, b.Allow(), "threshold reached, breaker should open")
	assert.True(t, b.Open())
}

func TestCircuitBreakerHalfOpensAfterCooldown(t *testing.T) {
	fakeNow := time.Now()
	b := NewCircuitBreaker(1, 10*time.Second)
	b.nowFn = func() time.Time { return fakeNow }

	b.RecordFailure()
	require.False(t, b.Allow())

	fakeNow = fakeNow.Add(11 * time.Second)
	assert.True(t, b.Allow(), "cooldown elapsed, should allow a half-open trial")
}

func TestCircuitBreakerSuccessInHalfOpenResets(t *testing.T) {
	fakeNow := time.Now()
	b := NewCircuitBreaker(2, 10*time.Second)
	b.nowFn = func() time.Time { return fakeNow }

	b.RecordFailure()
	b.RecordFailure()
	fakeNow = fakeNow.Add(11 * time.Second)
	require.True(t, b.Allow())

	b.RecordSuccess()
	assert.False(t, b.Open())
	b.RecordFailure()
	assert.True(t, b.Allow(), "single failure after reset shouldn't reopen below threshold")
}

func TestCircuitBreakerFailureInHalfOpenReopens(t *testing.T) {
	fakeNow := time.Now()
	b := NewCircuitBreaker(1, 10*time.Second)
	b.nowFn = func() time.Time { return fakeNow }

	b.RecordFailure()
	fakeNow = fakeNow.Add(11 * time.Second)
	require.True(t, b.Allow())

	b.RecordFailure()
	assert.True(t, b.Open())
}
