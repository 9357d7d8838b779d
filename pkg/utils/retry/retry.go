package retry

import (
	"context"
	"errors"
	"time"
)

var ErrRetry = errors.New("retry")

// Backoff is a (blocking) function returning when to retry.
//
// It returns nil to mean "go on", or non-nil (= ctx.Err()) to give up.
type Backoff func(context.Context) error

// StaticBackoff returns a Backoff waiting for a fixed interval.
func StaticBackoff(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1)
}

// ExponentialBackoff returns a Backoff function.
//
// For the N-th call, it waits for `initialInterval * r^N` or for context to be done.
func ExponentialBackoff(initialInterval time.Duration, r float64) Backoff {
	interval := initialInterval
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer func() {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval = time.Duration(int64(float64(interval) * r))
			return nil
		}
	}
}

// Blocking calls f until it returns nil or a non-retry error.
//
// If f returns an error wrapping ErrRetry, Blocking waits on b and calls f again.
// Any other error, or backoff giving up, stops the loop and is returned as is.
func Blocking(ctx context.Context, b Backoff, f func() error) error {
	for {
		err := f()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrRetry) {
			return err
		}
		if berr := b(ctx); berr != nil {
			return errors.Join(berr, err)
		}
	}
}
