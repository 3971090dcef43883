package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestRetrier(t *testing.T) {
	transient := fmt.Errorf("%w: read timeout", ErrTransient)

	t.Run("succeeds on retry", func(t *testing.T) {
		calls, retries := 0, 0
		r := Retrier{Retries: 1, OnRetry: func(int, error) { retries++ }}
		err := r.Do(context.Background(), func(context.Context) error {
			calls++
			if calls == 1 {
				return transient
			}
			return nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if calls != 2 || retries != 1 {
			t.Errorf("expected 2 calls and 1 retry, got %d and %d", calls, retries)
		}
	})

	t.Run("second failure propagates", func(t *testing.T) {
		calls := 0
		err := DefaultRetrier.Do(context.Background(), func(context.Context) error {
			calls++
			return transient
		})
		if !errors.Is(err, ErrTransient) {
			t.Fatalf("expected transient error, got %v", err)
		}
		if calls != 2 {
			t.Errorf("expected exactly 2 calls, got %d", calls)
		}
	})

	t.Run("token expiry is not retried", func(t *testing.T) {
		calls := 0
		err := DefaultRetrier.Do(context.Background(), func(context.Context) error {
			calls++
			return ErrTokenExpired
		})
		if !errors.Is(err, ErrTokenExpired) || calls != 1 {
			t.Errorf("expected one call returning ErrTokenExpired, got %d calls and %v", calls, err)
		}
	})

	t.Run("cancelled context is not retried", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		_ = DefaultRetrier.Do(ctx, func(context.Context) error {
			calls++
			return transient
		})
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("RetryValue", func(t *testing.T) {
		calls := 0
		v, err := RetryValue(context.Background(), DefaultRetrier, func(context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, transient
			}
			return 42, nil
		})
		if err != nil || v != 42 {
			t.Errorf("expected 42 and no error, got %d and %v", v, err)
		}
	})
}
