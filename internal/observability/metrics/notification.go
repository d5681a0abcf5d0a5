package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics covers push and email notification providers.
type NotificationMetrics struct {
	ProviderDeliveriesTotal     *prometheus.CounterVec   // by provider, status
	ProviderDeliveryDuration    *prometheus.HistogramVec // by provider
	ProviderCircuitBreakerState *prometheus.GaugeVec     // 0=closed, 1=half-open, 2=open
	RateLimited                 prometheus.Counter
}

// NewNotificationMetrics creates and registers the notification collectors.
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{
		ProviderDeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_provider_deliveries_total",
			Help: "Total number of notification delivery attempts by provider and status",
		}, []string{"provider", "status"}),
		ProviderDeliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_provider_delivery_duration_seconds",
			Help:    "Time taken for notification delivery by provider",
			Buckets: deliveryLatencyBuckets,
		}, []string{"provider"}),
		ProviderCircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "notification_provider_circuit_breaker_state",
			Help: "Circuit breaker state for notification provider (0=closed, 1=half-open, 2=open)",
		}, []string{"provider"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notification_rate_limited_total",
			Help: "Notifications dropped by the rate limiter",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

// RecordDelivery records a notification delivery attempt.
func (m *NotificationMetrics) RecordDelivery(provider, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderDeliveriesTotal.WithLabelValues(provider, status).Inc()
	m.ProviderDeliveryDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// SetCircuitState records the breaker state of provider.
func (m *NotificationMetrics) SetCircuitState(provider string, state int) {
	if m == nil {
		return
	}
	m.ProviderCircuitBreakerState.WithLabelValues(provider).Set(float64(state))
}

// RecordRateLimited records a notification dropped by the limiter.
func (m *NotificationMetrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ProviderDeliveriesTotal.Describe(ch)
	m.ProviderDeliveryDuration.Describe(ch)
	m.ProviderCircuitBreakerState.Describe(ch)
	m.RateLimited.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ProviderDeliveriesTotal.Collect(ch)
	m.ProviderDeliveryDuration.Collect(ch)
	m.ProviderCircuitBreakerState.Collect(ch)
	m.RateLimited.Collect(ch)
}
