// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultMaxAttempts = 3
	defaultMinDelay    = time.Second
	defaultMaxDelay    = 5 * time.Second
)

// RetryOptions bounds a Retry call. Zero values take the defaults:
// 3 attempts, delays doubling from 1s up to 5s.
type RetryOptions struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration

	// OnRetry is called with the failed attempt's error and its 1-based
	// attempt number, before waiting for the next attempt.
	OnRetry func(err error, attempt int)
}

// DefaultRetryOptions returns the options used when none are configured.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts: defaultMaxAttempts,
		MinDelay:    defaultMinDelay,
		MaxDelay:    defaultMaxDelay,
	}
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.MinDelay <= 0 {
		o.MinDelay = defaultMinDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = defaultMaxDelay
	}
	if o.MaxDelay < o.MinDelay {
		o.MaxDelay = o.MinDelay
	}
	return o
}

// Permanent marks err as not worth retrying. Retry returns the wrapped
// error immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry invokes op until it succeeds, returns a Permanent error, or
// MaxAttempts invocations have failed. The last error is returned unchanged.
// Total waiting is bounded by MaxAttempts × MaxDelay. If ctx is canceled
// while waiting, the last operation error is returned joined with ctx.Err().
func Retry[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts RetryOptions) (T, error) {
	opts = opts.withDefaults()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = opts.MinDelay
	eb.MaxInterval = opts.MaxDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(opts.MaxAttempts-1)), ctx)

	var (
		result  T
		attempt int
		lastErr error
	)
	err := backoff.RetryNotify(func() error {
		attempt++
		v, err := op(ctx)
		if err != nil {
			lastErr = err
			return err
		}
		result = v
		return nil
	}, policy, func(err error, _ time.Duration) {
		if opts.OnRetry != nil {
			opts.OnRetry(err, attempt)
		}
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) && lastErr != nil && !errors.Is(lastErr, ctxErr) {
			err = errors.Join(lastErr, ctxErr)
		}
		var zero T
		return zero, err
	}
	return result, nil
}
