package processor

import (
	"time"

	"github.com/tphakala/safeguard-go/internal/detection"
	"github.com/tphakala/safeguard-go/internal/dispatch"
	"github.com/tphakala/safeguard-go/internal/threat"
)

// Condition is one evaluated condition of an entity.
type Condition struct {
	Active bool         `json:"active"`
	Metric float64      `json:"metric"`
	State  threat.State `json:"state"`
}

// EntityReport describes one tracked person in a frame.
type EntityReport struct {
	ID         int                       `json:"id"`
	BBox       detection.BBox            `json:"bbox"`
	Conditions map[threat.Type]Condition `json:"conditions,omitempty"`
	Primary    threat.Type               `json:"primary,omitempty"`
	Movement   float64                   `json:"movement"`
	BodyAngle  float64                   `json:"body_angle"`
	HeadAngle  float64                   `json:"head_angle"`
	// Error is set when the pose could not be evaluated this frame.
	Error string `json:"error,omitempty"`
}

// SceneReport describes one scene-global condition.
type SceneReport struct {
	Threat  threat.Type  `json:"threat"`
	Active  bool         `json:"active"`
	Elapsed float64      `json:"elapsed"` // seconds
	State   threat.State `json:"state"`
	Detail  string       `json:"detail,omitempty"`
}

// AudioAlert tells the client which tone to play for this frame.
type AudioAlert struct {
	Enabled    bool                 `json:"enabled"`
	Severity   threat.Severity      `json:"severity"`
	Pattern    dispatch.PatternKind `json:"pattern"`
	Frequency  int                  `json:"frequency"`
	Duration   int64                `json:"duration"` // ms per pulse
	Repeats    int                  `json:"repeats"`
	Gap        int64                `json:"gap"` // ms
	ThreatType threat.Type          `json:"threat_type"`
}

// Report is the outcome of processing one frame.
type Report struct {
	Sequence  uint64                `json:"sequence"`
	Frame     uint64                `json:"frame"`
	Timestamp time.Time             `json:"timestamp"`
	Entities  []EntityReport        `json:"entities"`
	Scene     []SceneReport         `json:"scene"`
	Alerts    []dispatch.AlertEvent `json:"alerts,omitempty"`
	Audio     *AudioAlert           `json:"audio_alert,omitempty"`
	Counts    map[threat.Type]int   `json:"threat_counts,omitempty"`
	Skipped   int                   `json:"skipped,omitempty"` // poses below the confidence floor
	Invalid   int                   `json:"invalid,omitempty"` // malformed poses
}

// Entity returns the report for entity id.
func (r *Report) Entity(id int) (EntityReport, bool) {
	for _, e := range r.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return EntityReport{}, false
}

// SceneCondition returns the report for a scene-global threat.
func (r *Report) SceneCondition(t threat.Type) (SceneReport, bool) {
	for _, s := range r.Scene {
		if s.Threat == t {
			return s, true
		}
	}
	return SceneReport{}, false
}

// AlertsFor returns the alerts of type t dispatched this frame.
func (r *Report) AlertsFor(t threat.Type) []dispatch.AlertEvent {
	var out []dispatch.AlertEvent
	for _, a := range r.Alerts {
		if a.Threat == t {
			out = append(out, a)
		}
	}
	return out
}

func audioFor(alerts []dispatch.AlertEvent, enabled bool) *AudioAlert {
	var top *dispatch.AlertEvent
	for i := range alerts {
		if top == nil || alerts[i].Severity.Rank() > top.Severity.Rank() {
			top = &alerts[i]
		}
	}
	if top == nil {
		return nil
	}
	return &AudioAlert{
		Enabled:    enabled,
		Severity:   top.Severity,
		Pattern:    top.Pattern.Kind,
		Frequency:  top.Pattern.Frequency,
		Duration:   top.Pattern.Pulse.Milliseconds(),
		Repeats:    top.Pattern.Repeats,
		Gap:        top.Pattern.Gap.Milliseconds(),
		ThreatType: top.Threat,
	}
}
