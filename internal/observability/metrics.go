// Package observability provides Prometheus metrics for the SafeGuard service.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/safeguard-go/internal/logger"
	"github.com/tphakala/safeguard-go/internal/observability/metrics"
)

// GetLogger returns the module logger for observability.
func GetLogger() logger.Logger { return logger.Global().Module("telemetry") }

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry     *prometheus.Registry
	Threat       *metrics.ThreatMetrics
	Dispatch     *metrics.DispatchMetrics
	Session      *metrics.SessionMetrics
	Notification *metrics.NotificationMetrics
	MQTT         *metrics.MQTTMetrics
	Datastore    *metrics.DatastoreMetrics
}

// NewMetrics creates a registry with every collector registered. Each call
// uses its own registry so tests and sessions never collide.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	m := &Metrics{registry: registry}
	var err error
	if m.Threat, err = metrics.NewThreatMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create threat metrics: %w", err)
	}
	if m.Dispatch, err = metrics.NewDispatchMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create dispatch metrics: %w", err)
	}
	if m.Session, err = metrics.NewSessionMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create session metrics: %w", err)
	}
	if m.Notification, err = metrics.NewNotificationMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create notification metrics: %w", err)
	}
	if m.MQTT, err = metrics.NewMQTTMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}
	if m.Datastore, err = metrics.NewDatastoreMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}
	return m, nil
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
