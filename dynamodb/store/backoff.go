package store

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffFunc returns the duration to wait before retry attempt n.
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff waits a random duration in [0, ceiling) before each
// retry ("full jitter"). The ceiling starts at base, is multiplied by
// multiplier per attempt and never exceeds limit.
func ExponentialBackoff(base time.Duration, multiplier float64, limit time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		ceiling := float64(base)
		for range attempt {
			if ceiling >= float64(limit) {
				break
			}
			ceiling *= multiplier
		}
		ceiling = math.Min(ceiling, float64(limit))
		if ceiling < 1 {
			return 0
		}
		return rand.N(time.Duration(ceiling))
	}
}

// DefaultBackoff is [ExponentialBackoff] with 50ms base, 2x multiplier, 5s cap.
var DefaultBackoff = ExponentialBackoff(50*time.Millisecond, 2.0, 5*time.Second)

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
