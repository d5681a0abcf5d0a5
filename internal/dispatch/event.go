package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/safeguard-go/internal/threat"
)

// Request asks the dispatcher to emit an alert.
type Request struct {
	Threat   threat.Type
	Severity threat.Severity // zero uses the threat's default
	Message  string
	EntityID *int
	// Time is the frame time; zero uses the dispatcher clock.
	Time time.Time
}

// AlertEvent is an emitted alert. Events are never modified after creation.
type AlertEvent struct {
	ID        uuid.UUID       `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Session   string          `json:"session"`
	UserID    string          `json:"user_id,omitempty"`
	Threat    threat.Type     `json:"threat_type"`
	EntityID  *int            `json:"entity_id,omitempty"`
	Severity  threat.Severity `json:"severity"`
	Message   string          `json:"message"`
	Pattern   Pattern         `json:"pattern"`
}

// Title is a one-line summary suitable for notification subjects.
func (e *AlertEvent) Title() string {
	name := strings.ToUpper(strings.ReplaceAll(string(e.Threat), "_", " "))
	if e.EntityID != nil {
		return fmt.Sprintf("SafeGuard %s alert: %s (person %d)", e.Severity, name, *e.EntityID)
	}
	return fmt.Sprintf("SafeGuard %s alert: %s", e.Severity, name)
}

// Urgent reports whether the event warrants out-of-band notification.
func (e *AlertEvent) Urgent() bool {
	return e.Severity.Rank() >= threat.SeverityHigh.Rank()
}
