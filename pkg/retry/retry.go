// Package retry implements the bounded retry policy shared by the registry
// fetchers and the dataset publisher.
//
// Retry/give-up is a value-level decision here, not control flow: transient
// failures are wrapped with [Retryable] at the point where they are
// classified (HTTP status, network error), and [Policy.Do] only ever retries
// those. Everything else returns to the caller immediately.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Error wraps an error to mark it as transient.
type Error struct{ Err error }

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Retryable marks err as transient so that [Policy.Do] will retry it.
// Returns nil for a nil error.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Err: err}
}

// IsRetryable reports whether err is marked transient.
func IsRetryable(err error) bool {
	return errors.As(err, new(*Error))
}

// Policy bounds retries: at most Attempts tries with exponential backoff
// starting at BaseDelay, plus up to 10% jitter to avoid herding against a
// rate-limited upstream.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
}

// Default is the policy used when the configuration leaves retries unset.
var Default = Policy{Attempts: 4, BaseDelay: 500 * time.Millisecond}

// Do runs fn until it succeeds, returns a non-transient error, or the
// attempt budget is spent. Between attempts it waits the backoff delay or
// returns ctx.Err() if the run is cancelled first.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := max(p.Attempts, 1)
	base := p.BaseDelay
	if base <= 0 {
		base = Default.BaseDelay
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			delay := time.Duration(float64(base) * math.Pow(2, float64(i-1)))
			delay += time.Duration(float64(delay) * rand.Float64() * 0.1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}
	}
	return lastErr
}
