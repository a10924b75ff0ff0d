// Package observability provides metrics and monitoring capabilities for the passby-go application.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tphakala/passby-go/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Ingest   *metrics.IngestMetrics
	Query    *metrics.QueryMetrics
	Events   *metrics.EventMetrics
	HTTP     *metrics.HTTPMetrics
	MQTT     *metrics.MQTTMetrics
	Archive  *metrics.ArchiveMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	ingestMetrics, err := metrics.NewIngestMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest metrics: %w", err)
	}

	queryMetrics, err := metrics.NewQueryMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create query metrics: %w", err)
	}

	eventMetrics, err := metrics.NewEventMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create event metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	archiveMetrics, err := metrics.NewArchiveMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Ingest:   ingestMetrics,
		Query:    queryMetrics,
		Events:   eventMetrics,
		HTTP:     httpMetrics,
		MQTT:     mqttMetrics,
		Archive:  archiveMetrics,
	}, nil
}

// Handler returns an http.Handler serving the Prometheus exposition format
// for this registry. It is mounted by the API server at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
