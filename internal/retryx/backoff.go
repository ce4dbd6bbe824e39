// Package retryx wraps remote calls with classified-error-aware retries and
// exponential backoff. It is the only path by which entity services reach the
// remote store.
package retryx

import (
	"math"
	"math/rand"
	"time"
)

// Delay computes the backoff delay before retry number attempt (0-based):
// min(base * 2^attempt * jitter, max), with jitter drawn uniformly from
// [0.5, 1.5) so concurrent callers do not retry in lockstep.
func Delay(attempt int, base, max time.Duration) time.Duration {
	// Using math/rand is fine here, jitter is not security-critical.
	return delayAt(attempt, base, max, 0.5+rand.Float64())
}

func delayAt(attempt int, base, max time.Duration, jitter float64) time.Duration {
	d := float64(base) * math.Pow(2, float64(attempt)) * jitter
	if d > float64(max) {
		d = float64(max)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
