package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/safeguard-go/internal/datastore"
	"github.com/tphakala/safeguard-go/internal/dispatch"
	"github.com/tphakala/safeguard-go/internal/logger"
	"github.com/tphakala/safeguard-go/internal/privacy"
	"github.com/tphakala/safeguard-go/internal/session"
	"github.com/tphakala/safeguard-go/internal/threat"
)

// ServiceName is reported by the health endpoint when main.name is unset.
const ServiceName = "SafeGuard"

// defaultAlertLimit applies when /api/alerts has no limit parameter.
const defaultAlertLimit = 50

// ErrorResponse is the JSON body of every failed API request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// fail logs err and answers with an ErrorResponse.
func (s *Server) fail(c echo.Context, err error, message string, code int) error {
	resp := ErrorResponse{
		Error:         message,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
	if err != nil {
		resp.Error = err.Error()
	}
	s.log.Warn("api error",
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.String("error", resp.Error),
		logger.Int("code", code),
		logger.String("path", c.Request().URL.Path),
		logger.String("ip", c.RealIP()))
	return c.JSON(code, resp)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	BuildDate string    `json:"build_date"`
	Uptime    float64   `json:"uptime_seconds"`
	Sessions  int       `json:"sessions"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) healthCheck(c echo.Context) error {
	service := s.settings.Main.Name
	if service == "" {
		service = ServiceName
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   service,
		Version:   s.build.GetVersion(),
		BuildDate: s.build.GetBuildDate(),
		Uptime:    time.Since(s.startTime).Seconds(),
		Sessions:  s.sessions.Len(),
		Timestamp: time.Now(),
	})
}

func (s *Server) getPreferences(c echo.Context) error {
	return c.JSON(http.StatusOK, s.prefs.Get(c.Param("user_id")))
}

// StatusResponse acknowledges an update.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// setPreferences replaces the user's preferences. Omitted fields take their
// default values.
func (s *Server) setPreferences(c echo.Context) error {
	userID := c.Param("user_id")
	prefs := session.DefaultPreferences()
	if err := json.NewDecoder(c.Request().Body).Decode(&prefs); err != nil {
		return s.fail(c, err, "invalid preferences body", http.StatusBadRequest)
	}
	if err := s.prefs.Set(userID, prefs); err != nil {
		return s.fail(c, err, "invalid preferences", http.StatusBadRequest)
	}
	s.log.Info("preferences updated",
		logger.String("user_id", userID),
		logger.String("email", privacy.MaskEmail(prefs.Email)),
		logger.Bool("email_enabled", prefs.EnableEmail))
	return c.JSON(http.StatusOK, StatusResponse{Status: "success", Message: "Preferences updated"})
}

// AlertsResponse is the body of GET /api/alerts/:user_id.
type AlertsResponse struct {
	UserID string                `json:"user_id"`
	Source string                `json:"source"` // "datastore" or "session"
	Alerts []dispatch.AlertEvent `json:"alerts"`
	Counts map[threat.Type]int64 `json:"threat_counts"`
}

// getAlerts lists a user's recent alerts, newest first. Query parameters:
// limit, threat and since (RFC 3339).
func (s *Server) getAlerts(c echo.Context) error {
	userID := c.Param("user_id")
	q := datastore.Query{UserID: userID, Limit: defaultAlertLimit}

	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return s.fail(c, err, "limit must be a positive integer", http.StatusBadRequest)
		}
		q.Limit = min(n, datastore.MaxQueryLimit)
	}
	if v := c.QueryParam("threat"); v != "" {
		t, err := threat.ParseType(v)
		if err != nil {
			return s.fail(c, err, "unknown threat type", http.StatusBadRequest)
		}
		q.Threat = t
	}
	if v := c.QueryParam("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return s.fail(c, err, "since must be an RFC 3339 timestamp", http.StatusBadRequest)
		}
		q.Since = since
	}

	if s.history != nil {
		ctx := c.Request().Context()
		alerts, err := s.history.Recent(ctx, q)
		if err != nil {
			return s.fail(c, err, "failed to query alert history", http.StatusInternalServerError)
		}
		counts, err := s.history.CountByThreat(ctx, q)
		if err != nil {
			return s.fail(c, err, "failed to count alerts", http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, AlertsResponse{UserID: userID, Source: "datastore", Alerts: alerts, Counts: counts})
	}

	resp := AlertsResponse{UserID: userID, Source: "session", Alerts: []dispatch.AlertEvent{}, Counts: map[threat.Type]int64{}}
	if sess, ok := s.sessions.Get(userID); ok {
		resp.Alerts = sessionAlerts(sess.Dispatcher().Recent(0), q)
		for _, ev := range resp.Alerts {
			resp.Counts[ev.Threat]++
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// sessionAlerts applies q to the in-memory log of an open session.
func sessionAlerts(all []dispatch.AlertEvent, q datastore.Query) []dispatch.AlertEvent {
	out := make([]dispatch.AlertEvent, 0, min(len(all), q.Limit))
	for _, ev := range all {
		if len(out) == q.Limit {
			break
		}
		if q.Threat != "" && ev.Threat != q.Threat {
			continue
		}
		if !q.Since.IsZero() && ev.Timestamp.Before(q.Since) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// SessionStatus describes one open detection session.
type SessionStatus struct {
	UserID    string            `json:"user_id"`
	Session   string            `json:"session"`
	Opened    time.Time         `json:"opened"`
	Processed uint64            `json:"frames_processed"`
	Dropped   session.DropStats `json:"frames_dropped"`
}

func (s *Server) listSessions(c echo.Context) error {
	out := []SessionStatus{}
	for _, userID := range s.sessions.Users() {
		sess, ok := s.sessions.Get(userID)
		if !ok {
			continue
		}
		out = append(out, SessionStatus{
			UserID:    userID,
			Session:   sess.ID,
			Opened:    sess.Opened,
			Processed: sess.Processed(),
			Dropped:   sess.Drops(),
		})
	}
	return c.JSON(http.StatusOK, out)
}

// sessionError maps a session open failure to an HTTP status.
func sessionError(err error) (string, int) {
	switch {
	case errors.Is(err, session.ErrMissingUser):
		return "user id is required", http.StatusBadRequest
	case errors.Is(err, session.ErrTooManySessions):
		return "too many open sessions", http.StatusServiceUnavailable
	default:
		return "failed to open session", http.StatusInternalServerError
	}
}
