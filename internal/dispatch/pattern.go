package dispatch

import (
	"encoding/json"
	"time"

	"github.com/tphakala/safeguard-go/internal/conf"
	"github.com/tphakala/safeguard-go/internal/threat"
)

// PatternKind names the shape of the audible alarm.
type PatternKind string

const (
	PatternSingle     PatternKind = "single"
	PatternTriple     PatternKind = "triple"
	PatternContinuous PatternKind = "continuous"
)

// Pattern describes how the client should sound an alert.
type Pattern struct {
	Kind      PatternKind
	Frequency int           // Hz
	Pulse     time.Duration // length of one beep
	Repeats   int
	Gap       time.Duration // silence between repeats
}

// Total is the time the pattern takes to play once.
func (p Pattern) Total() time.Duration {
	if p.Repeats <= 1 {
		return p.Pulse
	}
	return time.Duration(p.Repeats)*p.Pulse + time.Duration(p.Repeats-1)*p.Gap
}

type patternJSON struct {
	Pattern   PatternKind `json:"pattern"`
	Frequency int         `json:"frequency"`
	Duration  int64       `json:"duration"`
	Repeats   int         `json:"repeats"`
	Gap       int64       `json:"gap"`
}

// MarshalJSON encodes durations in milliseconds.
func (p Pattern) MarshalJSON() ([]byte, error) {
	return json.Marshal(patternJSON{
		Pattern:   p.Kind,
		Frequency: p.Frequency,
		Duration:  p.Pulse.Milliseconds(),
		Repeats:   p.Repeats,
		Gap:       p.Gap.Milliseconds(),
	})
}

// UnmarshalJSON decodes the millisecond form written by MarshalJSON.
func (p *Pattern) UnmarshalJSON(data []byte) error {
	var v patternJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Pattern{
		Kind:      v.Pattern,
		Frequency: v.Frequency,
		Pulse:     time.Duration(v.Duration) * time.Millisecond,
		Repeats:   v.Repeats,
		Gap:       time.Duration(v.Gap) * time.Millisecond,
	}
	return nil
}

// PatternFor selects the alarm pattern for an alert. The first matching rule
// wins: critical threats, then falling, sleeping and eye closure, otherwise
// the configured default tone.
func PatternFor(t threat.Type, severity threat.Severity, alarm *conf.AlarmSettings) Pattern {
	switch {
	case severity == threat.SeverityCritical,
		t == threat.Weapon, t == threat.Fire, t == threat.Unconscious, t == threat.Drowning:
		return Pattern{Kind: PatternTriple, Frequency: 2500, Pulse: 200 * time.Millisecond, Repeats: 3, Gap: 100 * time.Millisecond}
	case t == threat.Falling:
		return Pattern{Kind: PatternSingle, Frequency: 2000, Pulse: 800 * time.Millisecond, Repeats: 1}
	case t == threat.Sleeping:
		return Pattern{Kind: PatternSingle, Frequency: 1500, Pulse: 500 * time.Millisecond, Repeats: 1}
	case t == threat.EyesClosed:
		return Pattern{Kind: PatternContinuous, Frequency: 3000, Pulse: 800 * time.Millisecond, Repeats: 1}
	}
	p := Pattern{Kind: PatternSingle, Frequency: 2500, Pulse: 500 * time.Millisecond, Repeats: 1}
	if alarm != nil {
		if alarm.Frequency > 0 {
			p.Frequency = alarm.Frequency
		}
		if alarm.Duration > 0 {
			p.Pulse = alarm.Duration
		}
	}
	return p
}
