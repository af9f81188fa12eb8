package services

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

const defaultRequestsPerMinute = 60

// RateLimiter is a token bucket shared by every call to one external service.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows perMinute requests per minute with a burst of
// perMinute/6 (at least 1). perMinute <= 0 falls back to 60.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = defaultRequestsPerMinute
	}
	burst := perMinute / 6
	if burst < 1 {
		burst = 1
	}
	every := time.Minute / time.Duration(perMinute)
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(every), burst)}
}

// Wait blocks until a token is available or ctx is done. A nil limiter never blocks.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.limiter == nil {
		return nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return Wrap(KindResource, "ratelimit", "", "wait for token", err)
	}
	return nil
}

// Allow reports whether a token is available right now without waiting.
func (r *RateLimiter) Allow() bool {
	if r == nil || r.limiter == nil {
		return true
	}
	return r.limiter.Allow()
}
