package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QueryMetrics contains Prometheus metrics for waveform, extraction and
// resolution queries against the sample store.
type QueryMetrics struct {
	registry *prometheus.Registry

	queriesTotal     *prometheus.CounterVec
	queryDuration    *prometheus.HistogramVec
	queryErrors      *prometheus.CounterVec
	waveformBuckets  prometheus.Histogram
	extractedSamples prometheus.Histogram
	extractedBytes   prometheus.Counter
	resolveHits      *prometheus.CounterVec
}

// NewQueryMetrics creates a new instance of QueryMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewQueryMetrics(registry *prometheus.Registry) (*QueryMetrics, error) {
	m := &QueryMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize query metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register query metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for QueryMetrics.
func (m *QueryMetrics) initMetrics() error {
	m.queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiostore_queries_total",
			Help: "Total number of sample store queries",
		},
		[]string{"operation", "status"}, // operation: aggregate, stream, resolve; status: success, error
	)

	m.queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audiostore_query_duration_seconds",
			Help:    "Time taken for sample store queries",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~32s
		},
		[]string{"operation"},
	)

	m.queryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiostore_query_errors_total",
			Help: "Total number of sample store query errors",
		},
		[]string{"operation", "error_type"}, // error_type: not_found, invalid_range, empty_result, database
	)

	m.waveformBuckets = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "audiostore_waveform_buckets",
		Help:    "Number of buckets returned by waveform queries",
		Buckets: prometheus.ExponentialBuckets(BucketStart100B, BucketFactor2, BucketCount6), // 100 to ~3200
	})

	m.extractedSamples = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "audiostore_extracted_samples",
		Help:    "Number of samples streamed per raw extraction",
		Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor10, BucketCount6), // 1K to ~100M samples
	})

	m.extractedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audiostore_extracted_bytes_total",
		Help: "Total bytes of WAV payload produced by raw extraction",
	})

	m.resolveHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiostore_resolve_lookups_total",
			Help: "Total number of timestamp-to-collection resolutions",
		},
		[]string{"result"}, // result: hit, miss, cached
	)

	return nil
}

// RecordQuery records a query outcome with its duration.
func (m *QueryMetrics) RecordQuery(operation, status string, duration time.Duration) {
	m.queriesTotal.WithLabelValues(operation, status).Inc()
	m.queryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordQueryError records a query error by type.
func (m *QueryMetrics) RecordQueryError(operation, errorType string) {
	m.queryErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordWaveformBuckets records how many buckets a waveform query returned.
func (m *QueryMetrics) RecordWaveformBuckets(count int) {
	m.waveformBuckets.Observe(float64(count))
}

// RecordExtraction records the sample and byte volume of a raw extraction.
func (m *QueryMetrics) RecordExtraction(samples, payloadBytes int64) {
	m.extractedSamples.Observe(float64(samples))
	m.extractedBytes.Add(float64(payloadBytes))
}

// RecordResolveLookup records a timestamp resolution outcome.
func (m *QueryMetrics) RecordResolveLookup(result string) {
	m.resolveHits.WithLabelValues(result).Inc()
}

// getCollectors returns all collectors in order for Describe/Collect operations.
func (m *QueryMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.queriesTotal,
		m.queryDuration,
		m.queryErrors,
		m.waveformBuckets,
		m.extractedSamples,
		m.extractedBytes,
		m.resolveHits,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *QueryMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *QueryMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}
