// Package retry provides the single parametrized retry policy shared by the
// fetch and discovery layers.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy controls how an operation is retried. Jitter returns an extra delay
// added to BaseDelay before each retry so concurrent workers desynchronize;
// when nil, a random fraction of a second is used.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	Jitter    func() time.Duration
}

// Do runs fn up to p.Attempts times, sleeping BaseDelay+Jitter() between
// attempts. It returns nil on the first success, the last error once the
// attempts are exhausted, or the context error if cancelled while waiting.
// onRetry, if non-nil, is called before each re-attempt with the attempt
// number (1-based) and the error that triggered it.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error, onRetry func(attempt int, err error)) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if onRetry != nil {
				onRetry(attempt, lastErr)
			}
			timer := time.NewTimer(p.delay())
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := fn(attempt); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func (p Policy) delay() time.Duration {
	d := p.BaseDelay
	if p.Jitter != nil {
		return d + p.Jitter()
	}
	return d + time.Duration(rand.Int63n(int64(time.Second)))
}
