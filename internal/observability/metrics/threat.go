package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ThreatMetrics covers frame processing, tracking and threat confirmation.
type ThreatMetrics struct {
	FramesProcessed    prometheus.Counter
	FramesDropped      *prometheus.CounterVec // by reason
	FrameDuration      prometheus.Histogram
	PerceptionErrors   prometheus.Counter
	TrackedEntities    prometheus.Gauge
	TracksEvicted      prometheus.Counter
	TrackingAmbiguity  prometheus.Counter
	ThreatConfirmation *prometheus.CounterVec // by threat
	ThreatActiveFrames *prometheus.CounterVec // by threat
}

// NewThreatMetrics creates and registers the threat collectors.
func NewThreatMetrics(registry *prometheus.Registry) (*ThreatMetrics, error) {
	m := &ThreatMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register threat metrics: %w", err)
	}
	return m, nil
}

func (m *ThreatMetrics) initMetrics() {
	m.FramesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safeguard_frames_processed_total",
		Help: "Total number of frames run through the threat pipeline",
	})
	m.FramesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safeguard_frames_dropped_total",
		Help: "Frames rejected before processing, by reason",
	}, []string{"reason"})
	m.FrameDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "safeguard_frame_processing_duration_seconds",
		Help:    "Time spent processing one frame",
		Buckets: frameLatencyBuckets,
	})
	m.PerceptionErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safeguard_perception_errors_total",
		Help: "Detections skipped because they could not be evaluated",
	})
	m.TrackedEntities = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "safeguard_tracked_entities",
		Help: "Entities tracked after the most recent frame",
	})
	m.TracksEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safeguard_tracks_evicted_total",
		Help: "Tracks removed after going unseen",
	})
	m.TrackingAmbiguity = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safeguard_tracking_ambiguities_total",
		Help: "Detections that could not be matched because their nearest track was already claimed",
	})
	m.ThreatConfirmation = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safeguard_threat_confirmations_total",
		Help: "Threat incidents confirmed, by threat type",
	}, []string{"threat"})
	m.ThreatActiveFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safeguard_threat_active_frames_total",
		Help: "Frames in which a condition evaluated active, by threat type",
	}, []string{"threat"})
}

// ObserveFrame records one processed frame.
func (m *ThreatMetrics) ObserveFrame(d time.Duration, entities int) {
	if m == nil {
		return
	}
	m.FramesProcessed.Inc()
	m.FrameDuration.Observe(d.Seconds())
	m.TrackedEntities.Set(float64(entities))
}

// RecordDrop records a frame rejected for reason.
func (m *ThreatMetrics) RecordDrop(reason string) {
	if m == nil {
		return
	}
	m.FramesDropped.WithLabelValues(reason).Inc()
}

// RecordTracking records eviction and ambiguity counts from one tracker update.
func (m *ThreatMetrics) RecordTracking(evicted, ambiguous int) {
	if m == nil {
		return
	}
	m.TracksEvicted.Add(float64(evicted))
	m.TrackingAmbiguity.Add(float64(ambiguous))
}

// RecordPerceptionError records one detection that failed validation.
func (m *ThreatMetrics) RecordPerceptionError() {
	if m == nil {
		return
	}
	m.PerceptionErrors.Inc()
}

// RecordActive records a frame where threat was active.
func (m *ThreatMetrics) RecordActive(threat string) {
	if m == nil {
		return
	}
	m.ThreatActiveFrames.WithLabelValues(threat).Inc()
}

// RecordConfirmation records a confirmed incident.
func (m *ThreatMetrics) RecordConfirmation(threat string) {
	if m == nil {
		return
	}
	m.ThreatConfirmation.WithLabelValues(threat).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *ThreatMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.FramesProcessed.Describe(ch)
	m.FramesDropped.Describe(ch)
	m.FrameDuration.Describe(ch)
	m.PerceptionErrors.Describe(ch)
	m.TrackedEntities.Describe(ch)
	m.TracksEvicted.Describe(ch)
	m.TrackingAmbiguity.Describe(ch)
	m.ThreatConfirmation.Describe(ch)
	m.ThreatActiveFrames.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *ThreatMetrics) Collect(ch chan<- prometheus.Metric) {
	m.FramesProcessed.Collect(ch)
	m.FramesDropped.Collect(ch)
	m.FrameDuration.Collect(ch)
	m.PerceptionErrors.Collect(ch)
	m.TrackedEntities.Collect(ch)
	m.TracksEvicted.Collect(ch)
	m.TrackingAmbiguity.Collect(ch)
	m.ThreatConfirmation.Collect(ch)
	m.ThreatActiveFrames.Collect(ch)
}
