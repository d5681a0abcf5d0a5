// Package threat holds the threat taxonomy and the per-incident state machine
// that turns per-frame condition signals into at-most-once alerts.
//
// A Machine is owned by a single frame processor and is not safe for
// concurrent use.
package threat

import (
	"fmt"
	"time"
)

// Type names a safety condition.
type Type string

const (
	Unconscious Type = "unconscious"
	Drowning    Type = "drowning"
	Falling     Type = "falling"
	Sleeping    Type = "sleeping"
	EyesClosed  Type = "eyes_closed"
	Weapon      Type = "weapon"
	Fire        Type = "fire"
	Sparks      Type = "sparks"
)

// EntityTypes are evaluated per tracked person.
var EntityTypes = []Type{Sleeping, Falling, Unconscious, Drowning}

// SceneTypes are evaluated once per frame for the whole scene.
var SceneTypes = []Type{Fire, EyesClosed, Weapon}

var priorities = map[Type]int{
	Unconscious: 8,
	Drowning:    7,
	Falling:     6,
	Sleeping:    5,
	EyesClosed:  4,
	Weapon:      3,
	Fire:        2,
	Sparks:      1,
}

// Priority ranks simultaneous threats; higher wins. Unknown types rank 0.
func (t Type) Priority() int { return priorities[t] }

// Severity is the alert urgency attached to a threat.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from low (1) to critical (4).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Severity returns the default severity for alerts of type t.
func (t Type) Severity() Severity {
	switch t {
	case Unconscious, Drowning, Weapon, Fire:
		return SeverityCritical
	case Falling, EyesClosed:
		return SeverityHigh
	case Sleeping:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ParseType converts a wire name into a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if _, ok := priorities[t]; !ok {
		return "", fmt.Errorf("unknown threat type %q", s)
	}
	return t, nil
}

// Scope is either the whole scene or one tracked entity.
type Scope struct {
	global   bool
	entityID int
}

// GlobalScope is the scene-wide scope.
func GlobalScope() Scope { return Scope{global: true} }

// EntityScope is the scope of the tracked entity id.
func EntityScope(id int) Scope { return Scope{entityID: id} }

func (s Scope) IsGlobal() bool { return s.global }

// EntityID returns the entity id and false for the global scope.
func (s Scope) EntityID() (int, bool) { return s.entityID, !s.global }

func (s Scope) String() string {
	if s.global {
		return "global"
	}
	return fmt.Sprintf("person_%d", s.entityID)
}

// Clock supplies the current time. Tests substitute a controllable clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
