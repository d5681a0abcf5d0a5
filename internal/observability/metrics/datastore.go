package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics covers alert persistence.
type DatastoreMetrics struct {
	DbOperationsTotal   *prometheus.CounterVec   // by operation, status
	DbOperationDuration *prometheus.HistogramVec // by operation
	StoredAlerts        prometheus.Gauge
}

// NewDatastoreMetrics creates and registers the datastore collectors.
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{
		DbOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datastore_operations_total",
			Help: "Total number of database operations by operation and status",
		}, []string{"operation", "status"}),
		DbOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "datastore_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: dbLatencyBuckets,
		}, []string{"operation"}),
		StoredAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "datastore_alerts_stored",
			Help: "Alert records in the database at the last count",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

// RecordDbOperation records one database operation and its duration.
func (m *DatastoreMetrics) RecordDbOperation(operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.DbOperationsTotal.WithLabelValues(operation, status).Inc()
	m.DbOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// SetStoredAlerts updates the stored alert gauge.
func (m *DatastoreMetrics) SetStoredAlerts(n int64) {
	if m == nil {
		return
	}
	m.StoredAlerts.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DbOperationsTotal.Describe(ch)
	m.DbOperationDuration.Describe(ch)
	m.StoredAlerts.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DbOperationsTotal.Collect(ch)
	m.DbOperationDuration.Collect(ch)
	m.StoredAlerts.Collect(ch)
}
