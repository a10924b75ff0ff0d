package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ArchiveMetrics contains Prometheus metrics for archive operations.
type ArchiveMetrics struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	archiveSize    prometheus.Histogram
	targetFailures *prometheus.CounterVec
}

// NewArchiveMetrics creates a new instance of ArchiveMetrics.
func NewArchiveMetrics(registry *prometheus.Registry) (*ArchiveMetrics, error) {
	m := &ArchiveMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize archive metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register archive metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for ArchiveMetrics.
func (m *ArchiveMetrics) initMetrics() error {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_runs_total",
			Help: "Total number of archive runs",
		},
		[]string{"status"}, // status: success, partial, error
	)

	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "archive_run_duration_seconds",
		Help:    "Time taken for a full archive run",
		Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount15), // 100ms to ~54m
	})

	m.archiveSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "archive_size_bytes",
		Help:    "Size of produced archive files in bytes",
		Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor10, BucketCount6), // 1KB to ~1GB
	})

	m.targetFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_target_failures_total",
			Help: "Total number of failed uploads per archive target",
		},
		[]string{"target"}, // target: local, ftp, sftp
	)

	return nil
}

// RecordRun records an archive run outcome with its duration and size.
func (m *ArchiveMetrics) RecordRun(status string, durationSeconds float64, sizeBytes int64) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(durationSeconds)
	m.archiveSize.Observe(float64(sizeBytes))
}

// RecordTargetFailure records a failed upload to an archive target.
func (m *ArchiveMetrics) RecordTargetFailure(target string) {
	m.targetFailures.WithLabelValues(target).Inc()
}

// getCollectors returns all collectors in order for Describe/Collect operations.
func (m *ArchiveMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.runsTotal,
		m.runDuration,
		m.archiveSize,
		m.targetFailures,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *ArchiveMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *ArchiveMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}
