package collectors

import (
	"context"
	"time"
)

// Upstream is one data provider in a collector's fallback chain. Each
// collector declares an ordered list; on an empty result or error the
// chain advances to the next, per spec.md §4.1.
type Upstream interface {
	// Name identifies the upstream for logging and the price-target
	// "source" field.
	Name() string

	// Fetch retrieves raw provider data for symbol. An empty []byte (or
	// an empty decoded structure, for typed upstreams) is treated the
	// same as an error by FallbackChain.Fetch: the chain advances.
	Fetch(ctx context.Context, symbol string) ([]byte, error)
}

// UpstreamFunc adapts a plain function to Upstream.
type UpstreamFunc struct {
	name string
	fn   func(ctx context.Context, symbol string) ([]byte, error)
}

func NewUpstreamFunc(name string, fn func(ctx context.Context, symbol string) ([]byte, error)) Upstream {
	return &UpstreamFunc{name: name, fn: fn}
}

func (u *UpstreamFunc) Name() string { return u.name }

func (u *UpstreamFunc) Fetch(ctx context.Context, symbol string) ([]byte, error) {
	return u.fn(ctx, symbol)
}

// MockUpstream is a no-op implementation for testing, mirroring the
// func-field mock idiom used for other interfaces across this codebase.
type MockUpstream struct {
	NameFunc  func() string
	FetchFunc func(ctx context.Context, symbol string) ([]byte, error)
}

var _ Upstream = (*MockUpstream)(nil)

func (m *MockUpstream) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock"
}

func (m *MockUpstream) Fetch(ctx context.Context, symbol string) ([]byte, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, symbol)
	}
	return nil, nil
}

// FallbackChain tries an ordered list of Upstreams, advancing on an
// empty or erroring result (spec.md §4.1). Each attempt is gated by a
// shared CircuitBreaker and RateLimiter keyed by upstream name.
type FallbackChain struct {
	upstreams []Upstream
	breakers  map[string]*CircuitBreaker
	limiters  map[string]*RateLimiter
}

// NewFallbackChain builds a chain over upstreams, each protected by its
// own circuit breaker and rate limiter using the given shared tunables.
func NewFallbackChain(upstreams []Upstream, breakerThreshold int, breakerCooldown time.Duration, perSecond float64) *FallbackChain {
	breakers := make(map[string]*CircuitBreaker, len(upstreams))
	limiters := make(map[string]*RateLimiter, len(upstreams))
	for _, u := range upstreams {
		breakers[u.Name()] = NewCircuitBreaker(breakerThreshold, breakerCooldown)
		limiters[u.Name()] = NewRateLimiter(perSecond)
	}
	return &FallbackChain{upstreams: upstreams, breakers: breakers, limiters: limiters}
}

// Fetch tries each upstream in order, skipping (without consuming a
// rate-limit token) any whose breaker is open, and returns the first
// non-empty result. If every upstream is exhausted it returns an error
// naming symbol, per spec.md §4.1's "final empty result is reported as
// an error containing the symbol".
func (c *FallbackChain) Fetch(ctx context.Context, symbol string) ([]byte, string, error) {
	for _, u := range c.upstreams {
		breaker := c.breakers[u.Name()]
		if !breaker.Allow() {
			continue
		}
		if limiter := c.limiters[u.Name()]; limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, "", err
			}
		}

		data, err := u.Fetch(ctx, symbol)
		if err != nil || len(data) == 0 {
			breaker.RecordFailure()
			continue
		}
		breaker.RecordSuccess()
		return data, u.Name(), nil
	}
	return nil, "", &NoDataError{Symbol: symbol}
}

// Statuses reports each upstream's current circuit-breaker state, keyed
// by upstream name, for operator-facing inspection (e.g. a CLI status
// command). true means the breaker is open and rejecting calls.
func (c *FallbackChain) Statuses() map[string]bool {
	out := make(map[string]bool, len(c.upstreams))
	for _, u := range c.upstreams {
		out[u.Name()] = c.breakers[u.Name()].Open()
	}
	return out
}

// NoDataError reports that every upstream in a chain was exhausted.
type NoDataError struct {
	Symbol string
}

func (e *NoDataError) Error() string {
	return "no upstream returned data for symbol " + e.Symbol
}
