package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBurstAndRefill(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimiterConfig{EventsPerMinute: 60, Burst: 3})
	now := time.Now()

	for range 3 {
		assert.True(t, rl.AllowAt(now))
	}
	assert.False(t, rl.AllowAt(now), "burst exhausted")

	// One token per second.
	assert.False(t, rl.AllowAt(now.Add(500*time.Millisecond)))
	assert.True(t, rl.AllowAt(now.Add(1100*time.Millisecond)))
}

func TestRateLimiterDefaults(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimiterConfig{})
	assert.InDelta(t, 10.0, rl.Tokens(time.Now()), 0.01)
}
