package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics covers alert dispatch and sink delivery.
type DispatchMetrics struct {
	AlertsDispatched *prometheus.CounterVec // by threat, severity
	AlertsSuppressed *prometheus.CounterVec // by threat
	Deliveries       *prometheus.CounterVec // by sink, status
	DeliveryDuration *prometheus.HistogramVec
	DeliveryRetries  *prometheus.CounterVec // by sink
	QueueDepth       prometheus.Gauge
	JobsDropped      prometheus.Counter
}

// NewDispatchMetrics creates and registers the dispatch collectors.
func NewDispatchMetrics(registry *prometheus.Registry) (*DispatchMetrics, error) {
	m := &DispatchMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register dispatch metrics: %w", err)
	}
	return m, nil
}

func (m *DispatchMetrics) initMetrics() {
	m.AlertsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safeguard_alerts_dispatched_total",
		Help: "Alerts emitted, by threat type and severity",
	}, []string{"threat", "severity"})
	m.AlertsSuppressed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safeguard_alerts_suppressed_total",
		Help: "Alert requests suppressed by the per-type cooldown",
	}, []string{"threat"})
	m.Deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safeguard_alert_deliveries_total",
		Help: "Alert delivery attempts by sink and final status",
	}, []string{"sink", "status"})
	m.DeliveryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "safeguard_alert_delivery_duration_seconds",
		Help:    "Time taken by one delivery attempt",
		Buckets: deliveryLatencyBuckets,
	}, []string{"sink"})
	m.DeliveryRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safeguard_alert_delivery_retries_total",
		Help: "Delivery retries scheduled, by sink",
	}, []string{"sink"})
	m.QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "safeguard_alert_queue_depth",
		Help: "Delivery jobs waiting in the queue",
	})
	m.JobsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safeguard_alert_jobs_dropped_total",
		Help: "Delivery jobs dropped because the queue was full",
	})
}

// RecordDispatched records an emitted alert.
func (m *DispatchMetrics) RecordDispatched(threat, severity string) {
	if m == nil {
		return
	}
	m.AlertsDispatched.WithLabelValues(threat, severity).Inc()
}

// RecordSuppressed records an alert blocked by cooldown.
func (m *DispatchMetrics) RecordSuppressed(threat string) {
	if m == nil {
		return
	}
	m.AlertsSuppressed.WithLabelValues(threat).Inc()
}

// RecordDelivery records the outcome of one delivery attempt.
func (m *DispatchMetrics) RecordDelivery(sink, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(sink, status).Inc()
	m.DeliveryDuration.WithLabelValues(sink).Observe(d.Seconds())
}

// RecordRetry records a scheduled retry.
func (m *DispatchMetrics) RecordRetry(sink string) {
	if m == nil {
		return
	}
	m.DeliveryRetries.WithLabelValues(sink).Inc()
}

// RecordJobDropped records a job evicted from a full queue.
func (m *DispatchMetrics) RecordJobDropped() {
	if m == nil {
		return
	}
	m.JobsDropped.Inc()
}

// SetQueueDepth updates the pending job gauge.
func (m *DispatchMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *DispatchMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.AlertsDispatched.Describe(ch)
	m.AlertsSuppressed.Describe(ch)
	m.Deliveries.Describe(ch)
	m.DeliveryDuration.Describe(ch)
	m.DeliveryRetries.Describe(ch)
	m.QueueDepth.Describe(ch)
	m.JobsDropped.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DispatchMetrics) Collect(ch chan<- prometheus.Metric) {
	m.AlertsDispatched.Collect(ch)
	m.AlertsSuppressed.Collect(ch)
	m.Deliveries.Collect(ch)
	m.DeliveryDuration.Collect(ch)
	m.DeliveryRetries.Collect(ch)
	m.QueueDepth.Collect(ch)
	m.JobsDropped.Collect(ch)
}
