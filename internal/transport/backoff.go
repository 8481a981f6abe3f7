package transport

import (
	"math"
	"math/rand"
	"time"
)

// backoffDelay computes the capped exponential reconnect delay for the
// given zero-based attempt (spec.md §4.10): min(base*2^attempt, max),
// jittered by +/-10%. Grounded on internal/cluster/replicator.go's
// sendReplicateRequest backoff (100ms*2^n with a retry cap), extended
// with the cap and jitter spec.md's formula adds.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	raw := float64(base) * math.Pow(2, float64(attempt))
	if raw > float64(max) {
		raw = float64(max)
	}
	jitter := 1 + (rand.Float64()*2-1)*0.1
	delay := time.Duration(raw * jitter)
	if delay < 0 {
		delay = 0
	}
	return delay
}
