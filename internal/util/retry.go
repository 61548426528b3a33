package util

import (
	"context"
	"errors"
	"time"
)

// Backoff configures the retry helpers. Delay doubles after every failed
// attempt and is capped at MaxDelay. A zero Delay retries immediately.
type Backoff struct {
	Tries    int
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultBackoff is used for S3 and database calls.
var DefaultBackoff = Backoff{Tries: 3, Delay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}

func (b Backoff) tries() int {
	if b.Tries <= 0 {
		return 1
	}
	return b.Tries
}

func (b Backoff) next(d time.Duration) time.Duration {
	d *= 2
	if b.MaxDelay > 0 && d > b.MaxDelay {
		return b.MaxDelay
	}
	return d
}

// Retry calls fn up to maxTries times until it returns a nil error.
// If maxTries <= 0, it defaults to 1. Returns the last error if all attempts fail.
func Retry[T any](maxTries int, fn func() (T, error)) (T, error) {
	return RetryWithContext(context.Background(), Backoff{Tries: maxTries}, func(context.Context) (T, error) {
		return fn()
	})
}

// RetryErr is Retry for functions without a result.
func RetryErr(maxTries int, fn func() error) error {
	_, err := Retry(maxTries, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithContext calls fn until it succeeds, b.Tries attempts were made or
// ctx is done. Cancellation errors returned by fn are not retried.
func RetryWithContext[T any](ctx context.Context, b Backoff, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	delay := b.Delay
	for i := range b.tries() {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err

		if i+1 == b.tries() || delay <= 0 {
			continue
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
		delay = b.next(delay)
	}
	return zero, lastErr
}

// RetryErrWithContext is RetryWithContext for functions without a result.
func RetryErrWithContext(ctx context.Context, b Backoff, fn func(context.Context) error) error {
	_, err := RetryWithContext(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
