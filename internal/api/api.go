// Package api implements the JSON HTTP surface of the annotation backend:
// audio collection queries, upload staging and ingestion, pass-by event
// annotation, the vehicle catalog, health and Prometheus metrics.
package api

import (
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/tphakala/passby-go/internal/audiostore"
	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/datastore"
	"github.com/tphakala/passby-go/internal/errors"
	"github.com/tphakala/passby-go/internal/events"
	"github.com/tphakala/passby-go/internal/ingest"
	"github.com/tphakala/passby-go/internal/logging"
	"github.com/tphakala/passby-go/internal/observability"
	"github.com/tphakala/passby-go/internal/vehicles"
)

// defaultBodyLimit caps request bodies when no limit is configured. Uploads
// carry whole WAV recordings, so the cap is generous.
const defaultBodyLimit = "256M"

// defaultAllowedOrigin is the Vite dev server the annotation UI runs on.
const defaultAllowedOrigin = "http://localhost:5173"

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings
	Audio    *audiostore.Service
	Ingest   *ingest.Service
	Events   *events.Service
	Vehicles *vehicles.Catalog

	logger         *log.Logger
	apiLogger      *slog.Logger           // structured logger for API operations
	apiLevelVar    *slog.LevelVar         // dynamic level control
	apiLoggerClose func() error           // closes the log file
	metrics        *observability.Metrics // shared metrics instance
	uploadLimiter  *rate.Limiter          // throttles upload and ingest routes
	startTime      *time.Time

	// Goroutine lifecycle management
	wg sync.WaitGroup // tracks background goroutines for clean shutdown
}

// New creates the API controller and registers all routes on e.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	audio *audiostore.Service, ingestSvc *ingest.Service, eventSvc *events.Service,
	catalog *vehicles.Catalog, logger *log.Logger,
	metrics *observability.Metrics) (*Controller, error) {

	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}
	if logger == nil {
		logger = log.Default()
	}

	c := &Controller{
		Echo:     e,
		DS:       ds,
		Settings: settings,
		Audio:    audio,
		Ingest:   ingestSvc,
		Events:   eventSvc,
		Vehicles: catalog,
		logger:   logger,
		metrics:  metrics,
	}

	// Initialize structured logger for API requests
	apiLogPath := "logs/web.log"
	c.apiLevelVar = new(slog.LevelVar)
	c.apiLevelVar.Set(slog.LevelInfo)

	apiLogger, closeFunc, err := logging.NewFileLogger(apiLogPath, "api", c.apiLevelVar)
	if err != nil {
		logger.Printf("Warning: Failed to initialize API structured logger: %v", err)
		// Fallback to a disabled logger (writes to io.Discard) but respects the level var
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: c.apiLevelVar})
		c.apiLogger = slog.New(fbHandler).With("service", "api")
		c.apiLoggerClose = func() error { return nil }
	} else {
		c.apiLogger = apiLogger
		c.apiLoggerClose = closeFunc
		logger.Printf("API structured logging initialized to %s", apiLogPath)
	}

	if settings.WebServer.RateLimit.Enabled {
		rps := settings.WebServer.RateLimit.RPS
		if rps <= 0 {
			rps = 10
		}
		burst := settings.WebServer.RateLimit.Burst
		if burst <= 0 {
			burst = int(rps)
		}
		c.uploadLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	c.Group = e.Group("/api")

	// Configure middlewares. Recover should be early.
	c.Group.Use(middleware.Recover())
	c.Group.Use(corsMiddleware(settings))
	c.Group.Use(middleware.BodyLimit(bodyLimit(settings)))
	c.Group.Use(c.LoggingMiddleware())
	if c.metrics != nil {
		c.Group.Use(c.MetricsMiddleware())
	}

	// Initialize start time for uptime tracking
	now := time.Now()
	c.startTime = &now

	c.initRoutes()

	return c, nil
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	// Health check endpoint - publicly accessible
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"audio routes", c.initAudioRoutes},
		{"ingest routes", c.initIngestRoutes},
		{"event routes", c.initEventRoutes},
		{"vehicle routes", c.initVehicleRoutes},
	}

	for _, initializer := range routeInitializers {
		c.Debug("Initializing %s...", initializer.name)

		// Recover from panics during route initialization so one broken
		// group does not take down the rest.
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Printf("PANIC during %s initialization: %v", initializer.name, r)
				}
			}()

			initializer.fn()

			c.Debug("Successfully initialized %s", initializer.name)
		}()
	}
}

// Shutdown performs cleanup of all resources used by the API controller.
// This should be called when the application is shutting down.
func (c *Controller) Shutdown() {
	// Wait for all goroutines to finish
	c.wg.Wait()

	// Close the API logger if it was initialized
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			c.logger.Printf("Error closing API log file: %v", err)
		}
	}

	c.Debug("API controller shutting down")
}

// ErrorResponse is the JSON error body shared by all endpoints.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	correlationID := generateCorrelationID()

	var errorStr string
	if err != nil {
		errorStr = err.Error()
	} else {
		errorStr = message // Use message as error if no error object is provided
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}
}

// generateCorrelationID creates a unique identifier for error tracking using
// cryptographic randomness.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		// Fall back to a default ID if crypto/rand fails
		return "ERR-RAND"
	}

	// Map the random bytes to charset characters
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError constructs and returns an appropriate error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	ip := ctx.RealIP()

	// Log the error with both the existing logger and the structured logger
	c.logger.Printf("API Error [%s] from %s: %s: %v", errorResp.CorrelationID, ip, message, err)

	if c.apiLogger != nil {
		var errorStr string
		if err != nil {
			errorStr = err.Error()
		} else {
			errorStr = message
		}

		c.apiLogger.Error("API Error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorStr,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ip,
		)
	}

	return ctx.JSON(code, errorResp)
}

// statusForError maps a categorized engine error to its HTTP status.
func statusForError(err error) int {
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsEmptyResult(err):
		// Documented choice: an empty extraction window reads as 404 with a
		// distinct error kind in the body, never a zero-length container.
		return http.StatusNotFound
	case errors.IsInvalidRange(err):
		return http.StatusBadRequest
	case errors.IsMalformedAudio(err):
		return http.StatusBadRequest
	case errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	case errors.IsIncompatibleFormat(err):
		return http.StatusConflict
	case errors.IsInvalidTransition(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Debug logs debug messages when debug mode is enabled.
func (c *Controller) Debug(format string, v ...any) {
	if c.Settings.WebServer.Debug {
		msg := fmt.Sprintf(format, v...)
		c.logger.Printf("[DEBUG] %s", msg)

		if c.apiLogger != nil {
			c.apiLogger.Debug(msg)
		}
	}
}

// bodyLimit returns the configured request body cap.
func bodyLimit(settings *conf.Settings) string {
	if settings.WebServer.BodyLimit != "" {
		return settings.WebServer.BodyLimit
	}
	return defaultBodyLimit
}
