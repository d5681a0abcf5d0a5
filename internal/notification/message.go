package notification

import (
	"bytes"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/tphakala/safeguard-go/internal/dispatch"
	"github.com/tphakala/safeguard-go/internal/threat"
)

// Message is a rendered notification.
type Message struct {
	Title    string
	Body     string
	Threat   threat.Type
	Severity threat.Severity
	UserID   string
	Time     time.Time
}

var severityMarker = map[threat.Severity]string{
	threat.SeverityCritical: "🚨",
	threat.SeverityHigh:     "⚠️",
	threat.SeverityMedium:   "⚡",
	threat.SeverityLow:      "ℹ️",
}

var bodyTemplate = template.Must(template.New("alert").Parse(`SafeGuard Security Alert

{{.Marker}} {{.Threat}} DETECTED

{{.Message}}

Details:
- Severity: {{.Severity}}
- Time: {{.Time}}
{{- if .Entity}}
- Person: {{.Entity}}
{{- end}}
- Session: {{.Session}}

This is an automated alert from SafeGuard.
`))

type bodyData struct {
	Marker   string
	Threat   string
	Message  string
	Severity string
	Time     string
	Entity   string
	Session  string
}

// NewMessage renders ev for delivery.
func NewMessage(ev *dispatch.AlertEvent) Message {
	marker, ok := severityMarker[ev.Severity]
	if !ok {
		marker = severityMarker[threat.SeverityHigh]
	}
	data := bodyData{
		Marker:   marker,
		Threat:   strings.ToUpper(strings.ReplaceAll(string(ev.Threat), "_", " ")),
		Message:  ev.Message,
		Severity: strings.ToUpper(string(ev.Severity)),
		Time:     ev.Timestamp.Format(time.DateTime),
		Session:  ev.Session,
	}
	if ev.EntityID != nil {
		data.Entity = "ID " + strconv.Itoa(*ev.EntityID)
	}
	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, data); err != nil {
		buf.Reset()
		buf.WriteString(ev.Message)
	}
	return Message{
		Title:    marker + " " + ev.Title(),
		Body:     buf.String(),
		Threat:   ev.Threat,
		Severity: ev.Severity,
		UserID:   ev.UserID,
		Time:     ev.Timestamp,
	}
}
