package collectors

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter bounds outbound calls per collector, per spec.md §4.1's
// "semaphore bounding max concurrent outbound API calls" — implemented
// as a token bucket rather than a literal semaphore since it also smooths
// burst traffic against upstream per-second quotas.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter allowing perSecond requests/second with
// a one-request burst floor (bursts of up to perSecond are allowed).
func NewRateLimiter(perSecond float64) *RateLimiter {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
