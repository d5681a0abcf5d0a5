package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics covers client sessions on the WebSocket intake.
type SessionMetrics struct {
	Active   prometheus.Gauge
	Opened   prometheus.Counter
	Rejected prometheus.Counter
	Messages *prometheus.CounterVec // by message type
}

// NewSessionMetrics creates and registers the session collectors.
func NewSessionMetrics(registry *prometheus.Registry) (*SessionMetrics, error) {
	m := &SessionMetrics{
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "safeguard_sessions_active",
			Help: "Detection sessions currently open",
		}),
		Opened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "safeguard_sessions_opened_total",
			Help: "Detection sessions opened since start",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "safeguard_sessions_rejected_total",
			Help: "Session requests refused because the session limit was reached",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "safeguard_session_messages_total",
			Help: "Messages received on detection sessions, by type",
		}, []string{"type"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register session metrics: %w", err)
	}
	return m, nil
}

// SessionOpened records a newly opened session.
func (m *SessionMetrics) SessionOpened() {
	if m == nil {
		return
	}
	m.Opened.Inc()
	m.Active.Inc()
}

// SessionClosed records a closed session.
func (m *SessionMetrics) SessionClosed() {
	if m == nil {
		return
	}
	m.Active.Dec()
}

// SessionRejected records a refused session.
func (m *SessionMetrics) SessionRejected() {
	if m == nil {
		return
	}
	m.Rejected.Inc()
}

// RecordMessage records an inbound message of kind.
func (m *SessionMetrics) RecordMessage(kind string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(kind).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *SessionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Active.Describe(ch)
	m.Opened.Describe(ch)
	m.Rejected.Describe(ch)
	m.Messages.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *SessionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Active.Collect(ch)
	m.Opened.Collect(ch)
	m.Rejected.Collect(ch)
	m.Messages.Collect(ch)
}
