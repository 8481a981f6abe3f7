package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay_GrowsExponentiallyWithinJitterBounds(t *testing.T) {
	base := time.Second
	max := 30 * time.Second

	for attempt := 0; attempt < 6; attempt++ {
		d := backoffDelay(attempt, base, max)
		expected := base << attempt
		if expected > max {
			expected = max
		}
		lower := time.Duration(float64(expected) * 0.9)
		upper := time.Duration(float64(expected) * 1.1)
		assert.GreaterOrEqualf(t, d, lower, "attempt %d: %v below jitter floor", attempt, d)
		assert.LessOrEqualf(t, d, upper, "attempt %d: %v above jitter ceiling", attempt, d)
	}
}

func TestBackoffDelay_NeverExceedsMaxPlusJitter(t *testing.T) {
	max := 30 * time.Second
	d := backoffDelay(20, time.Second, max)
	assert.LessOrEqual(t, d, time.Duration(float64(max)*1.1))
}

func TestBackoffDelay_NeverNegative(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		assert.GreaterOrEqual(t, backoffDelay(attempt, time.Second, 30*time.Second), time.Duration(0))
	}
}
