package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/passby-go/internal/audiostore"
	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/datastore"
	"github.com/tphakala/passby-go/internal/errors"
	"github.com/tphakala/passby-go/internal/events"
	"github.com/tphakala/passby-go/internal/ingest"
	"github.com/tphakala/passby-go/internal/observability"
	"github.com/tphakala/passby-go/internal/vehicles"
)

// Server owns the echo instance and the API controller mounted on it.
type Server struct {
	Echo     *echo.Echo
	DS       datastore.Interface
	Settings *conf.Settings
	API      *Controller
}

// NewServer initializes the HTTP server with the given datastore: it builds
// the query, ingestion, event and catalog services, mounts the API
// controller and the Prometheus endpoint. notifier may be nil.
func NewServer(settings *conf.Settings, ds datastore.Interface,
	metrics *observability.Metrics, notifier events.Notifier) (*Server, error) {
	configureDefaultSettings(settings)

	e := echo.New()
	e.HideBanner = true
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	controller, err := New(e, ds, settings,
		audiostore.New(ds, metrics),
		ingest.New(settings, ds, metrics),
		events.New(settings, ds, metrics, notifier),
		vehicles.New(settings),
		log.Default(), metrics)
	if err != nil {
		return nil, err
	}

	// The Prometheus exposition lives outside the /api group so scrapes
	// bypass the API middleware chain.
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	return &Server{
		Echo:     e,
		DS:       ds,
		Settings: settings,
		API:      controller,
	}, nil
}

// Start begins listening and serving HTTP requests.
func (s *Server) Start() {
	errChan := make(chan error)

	go func() {
		if err := s.Echo.Start(":" + s.Settings.WebServer.Port); err != nil {
			errChan <- err
		}
	}()

	go handleServerError(errChan)

	fmt.Printf("HTTP server started on port %s\n", s.Settings.WebServer.Port)
}

// Shutdown stops accepting connections, drains in-flight requests and cleans
// up controller resources.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	s.API.Shutdown()
	return err
}

// configureDefaultSettings sets default values for server settings.
func configureDefaultSettings(settings *conf.Settings) {
	if settings.WebServer.Port == "" {
		settings.WebServer.Port = "8080"
	}
}

// handleServerError listens for server errors and handles them.
func handleServerError(errChan chan error) {
	for err := range errChan {
		if errors.Is(err, http.ErrServerClosed) {
			continue
		}
		log.Printf("Server error: %v", err)
	}
}
