package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/passby-go/internal/audiostore"
	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/datastore"
	"github.com/tphakala/passby-go/internal/errors"
	"github.com/tphakala/passby-go/internal/events"
	"github.com/tphakala/passby-go/internal/ingest"
	"github.com/tphakala/passby-go/internal/observability"
	"github.com/tphakala/passby-go/internal/vehicles"
)

func createTestSettings(t *testing.T) *conf.Settings {
	t.Helper()

	settings := &conf.Settings{}
	settings.Data.Path = t.TempDir()
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	return settings
}

func createTestStore(t *testing.T, settings *conf.Settings) datastore.Interface {
	t.Helper()

	ds := datastore.New(settings)
	require.NoError(t, ds.Open(), "Failed to open database")
	t.Cleanup(func() {
		assert.NoError(t, ds.Close(), "Failed to close datastore")
	})
	return ds
}

// setupTestEnvironment builds a controller over a real SQLite store in a
// temporary directory, with routes registered on a fresh echo instance.
func setupTestEnvironment(t *testing.T) (*echo.Echo, datastore.Interface, *Controller) {
	t.Helper()

	settings := createTestSettings(t)
	return setupWithSettings(t, settings)
}

func setupWithSettings(t *testing.T, settings *conf.Settings) (*echo.Echo, datastore.Interface, *Controller) {
	t.Helper()

	ds := createTestStore(t, settings)

	e := echo.New()
	m, err := observability.NewMetrics()
	require.NoError(t, err)

	controller, err := New(e, ds, settings,
		audiostore.New(ds, m),
		ingest.New(settings, ds, m),
		events.New(settings, ds, m, nil),
		vehicles.New(settings),
		log.New(io.Discard, "", 0), m)
	require.NoError(t, err)

	return e, ds, controller
}

func TestHealthCheck(t *testing.T) {
	e, _, controller := setupTestEnvironment(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/health")

	require.NoError(t, controller.HealthCheck(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	assert.Equal(t, "ok", response["status"])

	uptime, ok := response["uptime_seconds"].(float64)
	assert.True(t, ok, "uptime_seconds should be a number")
	assert.GreaterOrEqual(t, uptime, float64(0))

	// The data directory exists, so disk stats should be reported.
	diskStats, ok := response["disk"].(map[string]any)
	require.True(t, ok, "disk stats should be an object")
	assert.GreaterOrEqual(t, diskStats["total_gb"].(float64), float64(0))
	usedPercent := diskStats["used_percent"].(float64)
	assert.GreaterOrEqual(t, usedPercent, float64(0))
	assert.LessOrEqual(t, usedPercent, float64(100))

	memStats, ok := response["memory"].(map[string]any)
	require.True(t, ok, "memory stats should be an object")
	if rss, exists := memStats["process_rss_mb"]; exists {
		assert.Greater(t, rss.(float64), float64(0), "process RSS should be positive")
	}
}

func TestHandleError(t *testing.T) {
	e, _, controller := setupTestEnvironment(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := controller.HandleError(c, echo.NewHTTPError(http.StatusBadRequest, "Test error"),
		"Error message", http.StatusBadRequest)

	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	assert.Equal(t, "code=400, message=Test error", response.Error)
	assert.Equal(t, "Error message", response.Message)
	assert.Equal(t, http.StatusBadRequest, response.Code)
	assert.Len(t, response.CorrelationID, 8)
}

func TestGenerateCorrelationID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateCorrelationID()
		assert.Len(t, id, 8)
		for _, r := range id {
			assert.True(t,
				(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
				"correlation ID should be alphanumeric, got %q", id)
		}
		seen[id] = true
	}
	// 100 draws from a 62^8 space should not collide.
	assert.Greater(t, len(seen), 90)
}

func TestStatusForError(t *testing.T) {
	testCases := []struct {
		name     string
		category errors.ErrorCategory
		expected int
	}{
		{"not found", errors.CategoryNotFound, http.StatusNotFound},
		{"empty result", errors.CategoryEmptyResult, http.StatusNotFound},
		{"invalid range", errors.CategoryInvalidRange, http.StatusBadRequest},
		{"malformed audio", errors.CategoryMalformedAudio, http.StatusBadRequest},
		{"validation", errors.CategoryValidation, http.StatusBadRequest},
		{"incompatible format", errors.CategoryIncompatibleFormat, http.StatusConflict},
		{"invalid transition", errors.CategoryInvalidTransition, http.StatusConflict},
		{"database", errors.CategoryDatabase, http.StatusInternalServerError},
		{"file io", errors.CategoryFileIO, http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := errors.Newf("boom").Component("api").Category(tc.category).Build()
			assert.Equal(t, tc.expected, statusForError(err))
		})
	}
}

func TestMetricsEndpointRegistered(t *testing.T) {
	settings := createTestSettings(t)
	ds := createTestStore(t, settings)

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	server, err := NewServer(settings, ds, m, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	server.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	// Plain gauges appear in the exposition even before any activity.
	assert.Contains(t, rec.Body.String(), "mqtt_connection_status")
}
