package services

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// RetryPolicy bounds how external calls are retried. The zero value retries
// three times with a 1s doubling backoff capped at 10s.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Timeout bounds each individual attempt when positive.
	Timeout time.Duration
	// Classify decides whether an error is worth another attempt. Defaults to Retryable.
	Classify func(error) bool
	// Sleep replaces the context-aware timer (tests).
	Sleep func(context.Context, time.Duration) error
	// OnRetry observes each scheduled retry.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy returns the policy applied at every external boundary.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  defaultRetryAttempts,
		BaseDelay: defaultRetryBaseDelay,
		MaxDelay:  defaultRetryMaxDelay,
	}
}

// Retry runs op until it succeeds, returns a non-retryable error, the attempts
// are exhausted, or ctx is done.
func Retry(ctx context.Context, policy RetryPolicy, op func(context.Context) error) error {
	_, err := RetryValue(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// RetryValue is Retry for operations that produce a value.
func RetryValue[T any](ctx context.Context, policy RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := policy.attempts()
	classify := policy.Classify
	if classify == nil {
		classify = Retryable
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		value, err := runAttempt(ctx, policy.Timeout, op)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return zero, err
		}
		if attempt == attempts || !classify(err) {
			break
		}
		delay := policy.Backoff(attempt)
		if hint := RetryAfter(err); hint > 0 {
			delay = policy.capDelay(hint)
		}
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, delay, err)
		}
		if err := policy.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	if attempts > 1 && classify(lastErr) {
		return zero, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
	}
	return zero, lastErr
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(callCtx)
}

// Backoff returns the delay before the retry that follows attempt (1-based):
// base, base*2, base*4, ... capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base < 0 {
		return 0
	}
	if base == 0 {
		base = defaultRetryBaseDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// RetryAfter returns the server-requested delay carried by err, if any.
func RetryAfter(err error) time.Duration {
	var hinted interface{ RetryAfter() time.Duration }
	if errors.As(err, &hinted) {
		return hinted.RetryAfter()
	}
	return 0
}

func (p RetryPolicy) capDelay(delay time.Duration) time.Duration {
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	return min(delay, maxDelay)
}

func (p RetryPolicy) attempts() int {
	if p.Attempts <= 0 {
		return defaultRetryAttempts
	}
	return p.Attempts
}

func (p RetryPolicy) sleep(ctx context.Context, delay time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, delay)
	}
	return SleepWithContext(ctx, delay)
}

// SleepWithContext waits for d or until ctx is done.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
