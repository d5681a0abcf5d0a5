package dispatch

import (
	"sync"
	"time"

	"github.com/tphakala/safeguard-go/internal/threat"
)

// BehaviorFunc reports whether an event may be handled given the time of the
// last handled event of the same type.
type BehaviorFunc func(last, now time.Time, cooldown time.Duration) bool

// StandardBehavior allows an event once cooldown has elapsed since the last.
func StandardBehavior(last, now time.Time, cooldown time.Duration) bool {
	return now.Sub(last) >= cooldown
}

// Cooldown rate-limits alerts per threat type. Exempt types always pass.
type Cooldown struct {
	mu       sync.Mutex
	last     map[threat.Type]time.Time
	exempt   map[threat.Type]bool
	timeout  time.Duration
	behavior BehaviorFunc
}

// NewCooldown creates a registry with the given cooldown and exempt types.
func NewCooldown(timeout time.Duration, exempt ...threat.Type) *Cooldown {
	c := &Cooldown{
		last:     make(map[threat.Type]time.Time),
		exempt:   make(map[threat.Type]bool, len(exempt)),
		timeout:  timeout,
		behavior: StandardBehavior,
	}
	for _, t := range exempt {
		c.exempt[t] = true
	}
	return c
}

// Allow reports whether an alert of type t may be emitted at now and, when
// it may, records now as the last dispatch time.
func (c *Cooldown) Allow(t threat.Type, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, seen := c.last[t]
	if seen && !c.exempt[t] && !c.behavior(last, now, c.timeout) {
		return false
	}
	c.last[t] = now
	return true
}

// Remaining is the time left before t may fire again, zero when it may fire.
func (c *Cooldown) Remaining(t threat.Type, now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, seen := c.last[t]
	if !seen || c.exempt[t] {
		return 0
	}
	return max(0, c.timeout-now.Sub(last))
}

// Exempt reports whether t bypasses the cooldown.
func (c *Cooldown) Exempt(t threat.Type) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exempt[t]
}

// Reset forgets the last dispatch time of t.
func (c *Cooldown) Reset(t threat.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.last, t)
}

// Clear forgets every type.
func (c *Cooldown) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.last)
}
