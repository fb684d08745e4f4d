package provider

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rajiknows/rig/completion"
	"github.com/rajiknows/rig/pkg/logger"
)

// RetryPolicy configures retries with exponential backoff.
type RetryPolicy struct {
	MaxRetries        int     // retry attempts after the first call
	BaseDelay         float64 // seconds
	MaxDelay          float64 // seconds
	BackoffMultiplier float64
	Jitter            bool
	OnRetry           func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy returns two retries starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		BaseDelay:         1.0,
		MaxDelay:          60.0,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// Delay calculates the delay for attempt n (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := math.Min(p.BaseDelay*math.Pow(p.BackoffMultiplier, float64(attempt)), p.MaxDelay)
	if p.Jitter {
		delay = delay * (0.5 + rand.Float64()) // [0.5, 1.5)
	}
	return time.Duration(delay * float64(time.Second))
}

// Retry runs fn, retrying retryable errors under policy.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	result, err := fn(ctx)
	if err == nil {
		return result, nil
	}

	for attempt := 0; attempt < policy.MaxRetries; attempt++ {
		if !completion.IsRetryable(err) {
			return zero, err
		}

		delay := policy.Delay(attempt)
		if after, ok := completion.RetryAfter(err); ok {
			retryDelay := time.Duration(after * float64(time.Second))
			if retryDelay > time.Duration(policy.MaxDelay*float64(time.Second)) {
				// Retry-After beyond max delay: give up now.
				return zero, err
			}
			delay = retryDelay
		}

		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}

		select {
		case <-ctx.Done():
			return zero, &completion.RequestTimeoutError{SDKError: completion.SDKError{
				Message: "request cancelled during retry", Cause: ctx.Err(),
			}}
		case <-time.After(delay):
		}

		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
	}

	return zero, err
}

// RetryMiddleware retries failed completion calls under policy and logs each
// retry at warn level.
func RetryMiddleware(policy RetryPolicy) Middleware {
	onRetry := policy.OnRetry
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying completion")
		if onRetry != nil {
			onRetry(err, attempt, delay)
		}
	}
	return func(ctx context.Context, req completion.Request, next func(context.Context, completion.Request) (*completion.Response, error)) (*completion.Response, error) {
		return Retry(ctx, policy, func(ctx context.Context) (*completion.Response, error) {
			return next(ctx, req)
		})
	}
}
