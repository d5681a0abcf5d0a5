package datastore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/safeguard-go/internal/dispatch"
	"github.com/tphakala/safeguard-go/internal/threat"
)

// AlertRecord is a persisted alert event.
type AlertRecord struct {
	ID        uint      `gorm:"primaryKey"`
	AlertID   string    `gorm:"size:36;uniqueIndex"`
	CreatedAt time.Time `gorm:"index"`
	Timestamp time.Time `gorm:"index:idx_alert_user_time,priority:2"`
	UserID    string    `gorm:"size:128;index:idx_alert_user_time,priority:1"`
	Session   string    `gorm:"size:36;index"`
	Threat    string    `gorm:"size:32;index"`
	Severity  string    `gorm:"size:16"`
	EntityID  *int
	Message   string `gorm:"size:512"`
	Pattern   string `gorm:"type:text"` // JSON audio pattern
}

// TableName keeps the table name stable across renames.
func (AlertRecord) TableName() string { return "alerts" }

// NewAlertRecord converts ev for storage.
func NewAlertRecord(ev *dispatch.AlertEvent) (AlertRecord, error) {
	pattern, err := json.Marshal(ev.Pattern)
	if err != nil {
		return AlertRecord{}, err
	}
	var entity *int
	if ev.EntityID != nil {
		id := *ev.EntityID
		entity = &id
	}
	return AlertRecord{
		AlertID:   ev.ID.String(),
		Timestamp: ev.Timestamp.UTC(),
		UserID:    ev.UserID,
		Session:   ev.Session,
		Threat:    string(ev.Threat),
		Severity:  string(ev.Severity),
		EntityID:  entity,
		Message:   ev.Message,
		Pattern:   string(pattern),
	}, nil
}

// Event converts the record back into an alert event.
func (r *AlertRecord) Event() (dispatch.AlertEvent, error) {
	id, err := uuid.Parse(r.AlertID)
	if err != nil {
		return dispatch.AlertEvent{}, err
	}
	ev := dispatch.AlertEvent{
		ID:        id,
		Timestamp: r.Timestamp,
		Session:   r.Session,
		UserID:    r.UserID,
		Threat:    threat.Type(r.Threat),
		EntityID:  r.EntityID,
		Severity:  threat.Severity(r.Severity),
		Message:   r.Message,
	}
	if r.Pattern != "" {
		if err := json.Unmarshal([]byte(r.Pattern), &ev.Pattern); err != nil {
			return dispatch.AlertEvent{}, err
		}
	}
	return ev, nil
}
