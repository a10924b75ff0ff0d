package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// EventMetrics contains Prometheus metrics for pass-by event annotations.
type EventMetrics struct {
	registry *prometheus.Registry

	eventOps          *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	snapshotFailures  prometheus.Counter
	eventDuration     prometheus.Histogram
}

// NewEventMetrics creates a new instance of EventMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewEventMetrics(registry *prometheus.Registry) (*EventMetrics, error) {
	m := &EventMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize event metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register event metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for EventMetrics.
func (m *EventMetrics) initMetrics() error {
	m.eventOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_operations_total",
			Help: "Total number of event annotation operations",
		},
		[]string{"operation", "status"}, // operation: create, update, delete; status: success, error
	)

	m.statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_status_transitions_total",
			Help: "Total number of event status transitions",
		},
		[]string{"from", "to", "status"}, // status: success, rejected
	)

	m.snapshotFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "events_snapshot_failures_total",
		Help: "Total number of event JSON snapshot write failures",
	})

	m.eventDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "events_annotated_duration_seconds",
		Help:    "Audio span covered by created events in seconds",
		Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount12), // 100ms to ~3m
	})

	return nil
}

// RecordEventOp records an event operation outcome.
func (m *EventMetrics) RecordEventOp(operation, status string) {
	m.eventOps.WithLabelValues(operation, status).Inc()
}

// RecordStatusTransition records a status transition attempt.
func (m *EventMetrics) RecordStatusTransition(from, to, status string) {
	m.statusTransitions.WithLabelValues(from, to, status).Inc()
}

// RecordSnapshotFailure records a failed snapshot write.
func (m *EventMetrics) RecordSnapshotFailure() {
	m.snapshotFailures.Inc()
}

// RecordEventSpan records the audio duration covered by an event.
func (m *EventMetrics) RecordEventSpan(seconds float64) {
	m.eventDuration.Observe(seconds)
}

// Describe implements the prometheus.Collector interface.
func (m *EventMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.eventOps.Describe(ch)
	m.statusTransitions.Describe(ch)
	ch <- m.snapshotFailures.Desc()
	ch <- m.eventDuration.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *EventMetrics) Collect(ch chan<- prometheus.Metric) {
	m.eventOps.Collect(ch)
	m.statusTransitions.Collect(ch)
	ch <- m.snapshotFailures
	ch <- m.eventDuration
}
