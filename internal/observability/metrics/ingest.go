// Package metrics provides custom Prometheus metrics for various components of the passby-go application.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics contains Prometheus metrics for WAV ingestion operations.
type IngestMetrics struct {
	registry *prometheus.Registry

	filesIngested   *prometheus.CounterVec
	samplesCommited prometheus.Counter
	ingestDuration  *prometheus.HistogramVec
	ingestErrors    *prometheus.CounterVec
	fileSize        prometheus.Histogram
	uploadsStaged   prometheus.Counter
	uploadBytes     prometheus.Counter
}

// NewIngestMetrics creates a new instance of IngestMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewIngestMetrics(registry *prometheus.Registry) (*IngestMetrics, error) {
	m := &IngestMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize ingest metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register ingest metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for IngestMetrics.
func (m *IngestMetrics) initMetrics() error {
	m.filesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_files_total",
			Help: "Total number of WAV files processed by ingestion",
		},
		[]string{"status"}, // status: success, error
	)

	m.samplesCommited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_samples_committed_total",
		Help: "Total number of audio samples committed to the store",
	})

	m.ingestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_file_duration_seconds",
			Help:    "Time taken to decode and commit a single WAV file",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount15), // 10ms to ~5m
		},
		[]string{"collection"},
	)

	m.ingestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_errors_total",
			Help: "Total number of ingestion errors",
		},
		[]string{"error_type"}, // error_type: malformed_audio, incompatible_format, database, file_io
	)

	m.fileSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_file_size_bytes",
		Help:    "Size of ingested WAV files in bytes",
		Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor2, BucketCount20), // 1KB to ~1GB
	})

	m.uploadsStaged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_uploads_staged_total",
		Help: "Total number of files staged via the upload endpoint",
	})

	m.uploadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_upload_bytes_total",
		Help: "Total bytes received via the upload endpoint",
	})

	return nil
}

// RecordFileIngested records a processed file with its outcome status.
func (m *IngestMetrics) RecordFileIngested(status string) {
	m.filesIngested.WithLabelValues(status).Inc()
}

// RecordSamplesCommitted adds to the count of committed samples.
func (m *IngestMetrics) RecordSamplesCommitted(count int64) {
	m.samplesCommited.Add(float64(count))
}

// RecordIngestDuration records how long one file took to ingest.
func (m *IngestMetrics) RecordIngestDuration(collection string, seconds float64) {
	m.ingestDuration.WithLabelValues(collection).Observe(seconds)
}

// RecordIngestError records an ingestion error by type.
func (m *IngestMetrics) RecordIngestError(errorType string) {
	m.ingestErrors.WithLabelValues(errorType).Inc()
}

// RecordFileSize records the size of an ingested file.
func (m *IngestMetrics) RecordFileSize(sizeBytes int64) {
	m.fileSize.Observe(float64(sizeBytes))
}

// RecordUploadStaged records a staged upload and its size.
func (m *IngestMetrics) RecordUploadStaged(sizeBytes int64) {
	m.uploadsStaged.Inc()
	m.uploadBytes.Add(float64(sizeBytes))
}

// getCollectors returns all collectors in order for Describe/Collect operations.
func (m *IngestMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.filesIngested,
		m.samplesCommited,
		m.ingestDuration,
		m.ingestErrors,
		m.fileSize,
		m.uploadsStaged,
		m.uploadBytes,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *IngestMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *IngestMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}
