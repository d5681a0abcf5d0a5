package notification

import (
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig bounds outgoing notifications.
type RateLimiterConfig struct {
	EventsPerMinute int
	Burst           int
}

// DefaultRateLimiterConfig allows one notification per second on average
// with bursts of ten.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{EventsPerMinute: 60, Burst: 10}
}

// RateLimiter is a token bucket shared by all notification sinks.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter; non-positive values use the defaults.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	def := DefaultRateLimiterConfig()
	if config.EventsPerMinute <= 0 {
		config.EventsPerMinute = def.EventsPerMinute
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}
	every := time.Minute / time.Duration(config.EventsPerMinute)
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(every), config.Burst)}
}

// Allow consumes a token if one is available now.
func (rl *RateLimiter) Allow() bool {
	return rl.AllowAt(time.Now())
}

// AllowAt consumes a token if one is available at t.
func (rl *RateLimiter) AllowAt(t time.Time) bool {
	return rl.limiter.AllowN(t, 1)
}

// Tokens is the number of tokens available at t.
func (rl *RateLimiter) Tokens(t time.Time) float64 {
	return rl.limiter.TokensAt(t)
}
