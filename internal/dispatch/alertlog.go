package dispatch

import (
	"maps"
	"sync"

	"github.com/tphakala/safeguard-go/internal/threat"
)

// DefaultLogSize bounds the alert log when no size is configured.
const DefaultLogSize = 100

// AlertLog keeps the most recent alerts of a session and per-type totals.
type AlertLog struct {
	mu     sync.RWMutex
	events []AlertEvent
	size   int
	counts map[threat.Type]int
}

// NewAlertLog creates a log holding at most size events.
func NewAlertLog(size int) *AlertLog {
	if size <= 0 {
		size = DefaultLogSize
	}
	return &AlertLog{
		events: make([]AlertEvent, 0, size),
		size:   size,
		counts: make(map[threat.Type]int),
	}
}

// Append adds ev, evicting the oldest event when full.
func (l *AlertLog) Append(ev AlertEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.events) == l.size {
		copy(l.events, l.events[1:])
		l.events = l.events[:l.size-1]
	}
	l.events = append(l.events, ev)
	l.counts[ev.Threat]++
}

// Recent returns up to n events, newest first. n <= 0 returns all.
func (l *AlertLog) Recent(n int) []AlertEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.events) {
		n = len(l.events)
	}
	out := make([]AlertEvent, n)
	for i := range n {
		out[i] = l.events[len(l.events)-1-i]
	}
	return out
}

// Len is the number of events retained.
func (l *AlertLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Counts returns the number of alerts ever appended, per type.
func (l *AlertLog) Counts() map[threat.Type]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return maps.Clone(l.counts)
}
