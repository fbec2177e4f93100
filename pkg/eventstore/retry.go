package eventstore

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy is the shared retry policy from spec section 4.1: base 25ms,
// cap 1s, ±25% jitter, up to 5 attempts. pkg/eventbus's handler retry
// reuses this exact policy.
func Policy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0.25
	b.MaxInterval = 1 * time.Second
	b.Reset()
	return b
}

const MaxAttempts = 5

// permanentError marks an error as non-retryable regardless of its
// underlying cause.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Retry stops immediately instead of retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry runs op up to MaxAttempts times with Policy's backoff, retrying
// only on ErrConcurrencyConflict (or an error wrapping it) and never
// retrying errors wrapped with Permanent.
func Retry(ctx context.Context, op func() error) error {
	b := Policy()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err == nil {
			return struct{}{}, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return struct{}{}, backoff.Permanent(perm.err)
		}
		if !errors.Is(err, ErrConcurrencyConflict) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(MaxAttempts))

	return err
}

// Jittered returns d randomized by Policy's ±25% factor, for callers
// that need a one-off delay computation rather than the full Retry loop.
func Jittered(d time.Duration) time.Duration {
	factor := 0.25
	delta := float64(d) * factor
	min := float64(d) - delta
	max := float64(d) + delta
	return time.Duration(min + rand.Float64()*(max-min))
}
