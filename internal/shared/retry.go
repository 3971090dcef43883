package shared

import (
	"context"
	"errors"
)

// Retrier re-issues a failed remote call immediately, up to Retries extra times.
//
// Context cancellation and [ErrTokenExpired] are returned without retrying: the first ends the
// run and the second must go through a session refresh first.
type Retrier struct {
	Retries int
	// OnRetry, when set, is called before each retry with the attempt number and the failure.
	OnRetry func(attempt int, err error)
}

// DefaultRetrier retries every remote call exactly once.
var DefaultRetrier = Retrier{Retries: 1}

// Do calls fn until it succeeds or the retry budget is spent, returning the last error.
func (r Retrier) Do(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= r.Retries; attempt++ {
		if attempt > 0 && r.OnRetry != nil {
			r.OnRetry(attempt, err)
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if !Retryable(ctx, err) {
			return err
		}
	}
	return err
}

// Retryable reports whether err may succeed on an immediate second attempt.
func Retryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrTokenExpired)
}

// RetryValue is [Retrier.Do] for calls that return a value.
func RetryValue[T any](ctx context.Context, r Retrier, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
