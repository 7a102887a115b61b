// Package clock provides the monotonic time source used for all duration
// arithmetic in the bike computer.
// The real implementation wraps the runtime monotonic clock.
// The fake implementation advances virtual time instantly for tests.
package clock

import (
	"context"
	"time"
)

// Clock reports elapsed time since it was created and lets callers wait.
type Clock interface {
	// Now returns the time elapsed since the clock started.
	Now() time.Duration

	// After returns a channel that receives once d has elapsed.
	// A non-positive d fires immediately.
	After(d time.Duration) <-chan time.Time
}

// Sleep blocks until d has elapsed on c or ctx is done.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.After(d):
		return nil
	}
}

// SleepUntil blocks until c reports at least deadline or ctx is done.
func SleepUntil(ctx context.Context, c Clock, deadline time.Duration) error {
	return Sleep(ctx, c, deadline-c.Now())
}

// Real is a Clock backed by the runtime monotonic clock.
type Real struct {
	start time.Time
}

// NewReal creates a Real clock whose zero is the moment of the call.
func NewReal() *Real {
	return &Real{start: time.Now()}
}

// Now returns the monotonic time since NewReal.
func (r *Real) Now() time.Duration {
	return time.Since(r.start)
}

// After wraps time.After.
func (r *Real) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
