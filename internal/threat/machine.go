package threat

import (
	"fmt"
	"time"
)

// State is a Machine lifecycle state.
type State int

const (
	StateIdle State = iota
	StateObserving
	StateConfirmed
	StateAlerted
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateObserving:
		return "observing"
	case StateConfirmed:
		return "confirmed"
	case StateAlerted:
		return "alerted"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON reports.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateCooldown; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown threat state %q", text)
}

// DefaultCooldown is how long a resolved incident stays in COOLDOWN.
const DefaultCooldown = 3 * time.Second

// Machine debounces one threat in one scope:
//
//	IDLE -> OBSERVING -> CONFIRMED -> ALERTED -> COOLDOWN -> IDLE
//
// Update returns true exactly once per incident, on entry to CONFIRMED.
type Machine struct {
	Type      Type
	Scope     Scope
	Threshold time.Duration

	frameInterval time.Duration
	cooldown      time.Duration

	state            State
	observationStart time.Time
	confirmedAt      time.Time
	cooldownStart    time.Time
	alertDispatched  bool
}

// NewMachine creates an idle machine. frameInterval is the time one frame
// represents; the first active frame counts as that much observed time.
func NewMachine(t Type, scope Scope, threshold, frameInterval time.Duration) *Machine {
	return &Machine{
		Type:          t,
		Scope:         scope,
		Threshold:     threshold,
		frameInterval: frameInterval,
		cooldown:      DefaultCooldown,
	}
}

// Update feeds the condition value observed at now and reports whether an
// alert should be dispatched.
func (m *Machine) Update(active bool, now time.Time) bool {
	switch m.state {
	case StateIdle:
		if !active {
			return false
		}
		m.state = StateObserving
		m.observationStart = now.Add(-m.frameInterval)
		m.alertDispatched = false
		return m.observe(active, now)

	case StateObserving:
		return m.observe(active, now)

	case StateConfirmed:
		switch {
		case !m.alertDispatched:
			m.alertDispatched = true
			m.state = StateAlerted
		case !active:
			m.enterCooldown(now)
		}

	case StateAlerted:
		if !active {
			m.enterCooldown(now)
		}

	case StateCooldown:
		// Input is ignored until the cooldown has run out.
		if now.Sub(m.cooldownStart) >= m.cooldown {
			m.clear()
		}
	}
	return false
}

func (m *Machine) observe(active bool, now time.Time) bool {
	if !active {
		m.state = StateIdle
		m.observationStart = time.Time{}
		return false
	}
	if now.Sub(m.observationStart) >= m.Threshold {
		m.state = StateConfirmed
		m.confirmedAt = now
		return true
	}
	return false
}

func (m *Machine) enterCooldown(now time.Time) {
	m.state = StateCooldown
	m.cooldownStart = now
}

func (m *Machine) clear() {
	m.state = StateIdle
	m.observationStart = time.Time{}
	m.confirmedAt = time.Time{}
	m.cooldownStart = time.Time{}
	m.alertDispatched = false
}

// Reset forces the machine back to IDLE.
func (m *Machine) Reset() { m.clear() }

func (m *Machine) State() State { return m.state }

// Priority is the arbitration rank of the machine's threat type.
func (m *Machine) Priority() int { return m.Type.Priority() }

// AlertDispatched reports whether the current incident has been alerted.
func (m *Machine) AlertDispatched() bool { return m.alertDispatched }

// ConfirmedAt is the time of the last CONFIRMED entry, zero if none.
func (m *Machine) ConfirmedAt() time.Time { return m.confirmedAt }

// Elapsed is the time since observation started, for display. Zero when not observing.
func (m *Machine) Elapsed(now time.Time) time.Duration {
	if m.observationStart.IsZero() {
		return 0
	}
	return now.Sub(m.observationStart)
}

// Sustained reports whether the incident is confirmed and not yet resolved.
func (m *Machine) Sustained() bool {
	return m.state == StateConfirmed || m.state == StateAlerted
}
