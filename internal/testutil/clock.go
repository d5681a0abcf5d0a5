package testutil

import (
	"sync"
	"time"
)

// MockClock is a manually advanced clock for deterministic timing tests.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock returns a clock frozen at start.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// FrameTime is the timestamp of frame n (1-based) of a stream at fps
// starting at base. It avoids accumulating rounding error.
func FrameTime(base time.Time, n, fps int) time.Time {
	return base.Add(time.Duration(n) * time.Second / time.Duration(fps))
}
