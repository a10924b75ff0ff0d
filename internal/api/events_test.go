package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/passby-go/internal/events"
)

// postEvent drives the create handler with a JSON payload.
func postEvent(t *testing.T, e *echo.Echo, controller *Controller, payload string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/events")

	require.NoError(t, controller.CreateEvent(c))
	return rec
}

// createTestEvent creates an event through the API and returns its view.
func createTestEvent(t *testing.T, e *echo.Echo, controller *Controller, payload string) events.View {
	t.Helper()

	rec := postEvent(t, e, controller, payload)
	require.Equal(t, http.StatusCreated, rec.Code, "create failed: %s", rec.Body.String())

	var view events.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

// invokeWithID calls a handler that takes the :id path parameter.
func invokeWithID(t *testing.T, e *echo.Echo, method, path, id, body string, handler echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, "/api/events/"+id, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)
	c.SetParamNames("id")
	c.SetParamValues(id)

	require.NoError(t, handler(c))
	return rec
}

func TestCreateEventDefaults(t *testing.T) {
	e, _, controller := setupTestEnvironment(t)

	view := createTestEvent(t, e, controller, `{
		"start_timestamp": "2025-01-01T00:00:02Z",
		"end_timestamp": "2025-01-01T00:00:04Z",
		"vehicle_type": "tram"
	}`)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "manual", view.Status)
	assert.Equal(t, "N/A", view.Direction)
	assert.Equal(t, "2025-01-01T00:00:02.000Z", view.StartTimestamp)
	assert.Equal(t, "2025-01-01T00:00:04.000Z", view.EndTimestamp)
	assert.Equal(t, "tram", view.VehicleType)
}

func TestCreateEventRejectsReviewed(t *testing.T) {
	e, _, controller := setupTestEnvironment(t)

	rec := postEvent(t, e, controller, `{
		"start_timestamp": "2025-01-01T00:00:02Z",
		"end_timestamp": "2025-01-01T00:00:04Z",
		"vehicle_type": "tram",
		"status": "reviewed"
	}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateEventValidation(t *testing.T) {
	e, _, controller := setupTestEnvironment(t)

	testCases := []struct {
		name    string
		payload string
	}{
		{
			"missing vehicle type",
			`{"start_timestamp": "2025-01-01T00:00:02Z", "end_timestamp": "2025-01-01T00:00:04Z"}`,
		},
		{
			"malformed start timestamp",
			`{"start_timestamp": "not-a-time", "end_timestamp": "2025-01-01T00:00:04Z", "vehicle_type": "tram"}`,
		},
		{
			"end before start",
			`{"start_timestamp": "2025-01-01T00:00:04Z", "end_timestamp": "2025-01-01T00:00:02Z", "vehicle_type": "tram"}`,
		},
		{
			"unknown direction",
			`{"start_timestamp": "2025-01-01T00:00:02Z", "end_timestamp": "2025-01-01T00:00:04Z", "vehicle_type": "tram", "direction": "Up→Down"}`,
		},
		{
			"unknown status",
			`{"start_timestamp": "2025-01-01T00:00:02Z", "end_timestamp": "2025-01-01T00:00:04Z", "vehicle_type": "tram", "status": "pending"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postEvent(t, e, controller, tc.payload)
			assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", rec.Body.String())
		})
	}
}

func TestListEventsStatusFilter(t *testing.T) {
	e, _, controller := setupTestEnvironment(t)

	first := createTestEvent(t, e, controller, `{
		"start_timestamp": "2025-01-01T00:00:02Z",
		"end_timestamp": "2025-01-01T00:00:04Z",
		"vehicle_type": "tram"
	}`)
	createTestEvent(t, e, controller, `{
		"start_timestamp": "2025-01-01T01:00:00Z",
		"end_timestamp": "2025-01-01T01:00:05Z",
		"vehicle_type": "bus"
	}`)

	rec := invokeWithID(t, e, http.MethodPut, "/api/events/:id/status", first.ID,
		`{"status": "reviewed"}`, controller.UpdateEventStatus)
	require.Equal(t, http.StatusOK, rec.Code)

	listEvents := func(query string) []events.View {
		req := httptest.NewRequest(http.MethodGet, "/api/events"+query, http.NoBody)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/api/events")

		require.NoError(t, controller.ListEvents(c))
		require.Equal(t, http.StatusOK, rec.Code)

		var views []events.View
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
		return views
	}

	all := listEvents("")
	require.Len(t, all, 2)
	// Newest first.
	assert.Equal(t, "bus", all[0].VehicleType)

	reviewed := listEvents("?status=reviewed")
	require.Len(t, reviewed, 1)
	assert.Equal(t, first.ID, reviewed[0].ID)

	manual := listEvents("?status=manual")
	require.Len(t, manual, 1)
	assert.Equal(t, "bus", manual[0].VehicleType)
}

func TestListEventsInvalidFilter(t *testing.T) {
	e, _, controller := setupTestEnvironment(t)

	req := httptest.NewRequest(http.MethodGet, "/api/events?status=bogus", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/events")

	require.NoError(t, controller.ListEvents(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateEventStatusTransitions(t *testing.T) {
	e, _, controller := setupTestEnvironment(t)

	view := createTestEvent(t, e, controller, `{
		"start_timestamp": "2025-01-01T00:00:02Z",
		"end_timestamp": "2025-01-01T00:00:04Z",
		"vehicle_type": "tram"
	}`)

	// manual -> reviewed succeeds exactly once.
	rec := invokeWithID(t, e, http.MethodPut, "/api/events/:id/status", view.ID,
		`{"status": "reviewed"}`, controller.UpdateEventStatus)
	assert.Equal(t, http.StatusOK, rec.Code)

	var updated events.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "reviewed", updated.Status)

	// Repeating the transition conflicts.
	rec = invokeWithID(t, e, http.MethodPut, "/api/events/:id/status", view.ID,
		`{"status": "reviewed"}`, controller.UpdateEventStatus)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// No transition leads back to manual.
	rec = invokeWithID(t, e, http.MethodPut, "/api/events/:id/status", view.ID,
		`{"status": "manual"}`, controller.UpdateEventStatus)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown status values fail validation.
	rec = invokeWithID(t, e, http.MethodPut, "/api/events/:id/status", view.ID,
		`{"status": "approved"}`, controller.UpdateEventStatus)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown event id is a 404.
	rec = invokeWithID(t, e, http.MethodPut, "/api/events/:id/status", "no-such-id",
		`{"status": "reviewed"}`, controller.UpdateEventStatus)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteEvent(t *testing.T) {
	e, _, controller := setupTestEnvironment(t)

	view := createTestEvent(t, e, controller, `{
		"start_timestamp": "2025-01-01T00:00:02Z",
		"end_timestamp": "2025-01-01T00:00:04Z",
		"vehicle_type": "tram"
	}`)

	rec := invokeWithID(t, e, http.MethodDelete, "/api/events/:id", view.ID, "", controller.DeleteEvent)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	rec = invokeWithID(t, e, http.MethodGet, "/api/events/:id", view.ID, "", controller.GetEvent)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = invokeWithID(t, e, http.MethodDelete, "/api/events/:id", view.ID, "", controller.DeleteEvent)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSuggestCollection(t *testing.T) {
	settings := createTestSettings(t)
	e, _, controller := setupWithSettings(t, settings)

	// Collection covering 2025-01-01T00:00:00Z .. 00:00:10Z.
	writeStagedWAV(t, settings, "site_20250101_000000.wav", 8000, 1, 10)
	rec := ingestStagedFiles(t, e, controller, "demo", []string{"site_20250101_000000.wav"})
	require.Equal(t, http.StatusOK, rec.Code)

	covered := createTestEvent(t, e, controller, `{
		"start_timestamp": "2025-01-01T00:00:02Z",
		"end_timestamp": "2025-01-01T00:00:04Z",
		"vehicle_type": "tram"
	}`)
	uncovered := createTestEvent(t, e, controller, `{
		"start_timestamp": "2030-06-01T12:00:00Z",
		"end_timestamp": "2030-06-01T12:00:05Z",
		"vehicle_type": "bus"
	}`)

	rec = invokeWithID(t, e, http.MethodGet, "/api/events/:id/suggest-collection",
		covered.ID, "", controller.SuggestCollection)
	require.Equal(t, http.StatusOK, rec.Code)

	var response SuggestCollectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.NotNil(t, response.Collection)
	assert.Equal(t, "demo", *response.Collection)

	rec = invokeWithID(t, e, http.MethodGet, "/api/events/:id/suggest-collection",
		uncovered.ID, "", controller.SuggestCollection)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"collection": null}`, rec.Body.String())

	rec = invokeWithID(t, e, http.MethodGet, "/api/events/:id/suggest-collection",
		"no-such-id", "", controller.SuggestCollection)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
