package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/wavio"
)

// writeStagedWAV synthesizes a 16-bit WAV file in the upload staging
// directory and returns its interleaved samples for later comparison.
func writeStagedWAV(t *testing.T, settings *conf.Settings, name string, rate, channels, seconds int) []int {
	t.Helper()

	frames := rate * seconds
	samples := make([]int, frames*channels)
	for i := range samples {
		samples[i] = int(int16(i % 3000))
	}

	payload, err := wavio.Encode(wavio.Info{
		SampleRate:  rate,
		NumChannels: channels,
		BitDepth:    16,
		TotalFrames: frames,
	}, samples)
	require.NoError(t, err)

	dir := settings.UploadDir()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), payload, 0o644))
	return samples
}

// ingestStagedFiles drives the ingest handler for already staged files.
func ingestStagedFiles(t *testing.T, e *echo.Echo, controller *Controller, collection string, filenames []string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(IngestRequest{CollectionName: collection, Filenames: filenames})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/audio/ingest", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/audio/ingest")

	require.NoError(t, controller.IngestFiles(c))
	return rec
}

// getWithQuery invokes a GET handler with the given query parameters.
func getWithQuery(t *testing.T, e *echo.Echo, path string, params map[string]string, handler echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	q := make(url.Values)
	for k, v := range params {
		q.Set(k, v)
	}

	req := httptest.NewRequest(http.MethodGet, path+"?"+q.Encode(), http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)

	require.NoError(t, handler(c))
	return rec
}

func TestAudioQueryLifecycle(t *testing.T) {
	settings := createTestSettings(t)
	e, _, controller := setupWithSettings(t, settings)

	// 10 seconds of mono 8 kHz audio starting 2025-01-01T00:00:00Z.
	source := writeStagedWAV(t, settings, "site_20250101_000000.wav", 8000, 1, 10)
	rec := ingestStagedFiles(t, e, controller, "demo", []string{"site_20250101_000000.wav"})
	require.Equal(t, http.StatusOK, rec.Code, "ingest failed: %s", rec.Body.String())

	t.Run("collections list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/audio/collections", http.NoBody)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/api/audio/collections")

		require.NoError(t, controller.GetCollections(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var response CollectionsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(t, []string{"demo"}, response.Collections)
	})

	t.Run("collection info", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/audio/collections/demo/info", http.NoBody)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/api/audio/collections/:name/info")
		c.SetParamNames("name")
		c.SetParamValues("demo")

		require.NoError(t, controller.GetCollectionInfo(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var response CollectionInfoResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(t, "demo", response.Collection)
		assert.Equal(t, 8000, response.SampleRate)
		assert.Equal(t, 1, response.Channels)
		assert.Equal(t, 16, response.BitDepth)
		assert.Equal(t, "2025-01-01T00:00:00.000Z", response.TimeRange.Start)
		assert.Equal(t, "2025-01-01T00:00:10.000Z", response.TimeRange.End)
	})

	t.Run("waveform ten one-second buckets", func(t *testing.T) {
		rec := getWithQuery(t, e, "/api/audio/waveform", map[string]string{
			"collection": "demo",
			"start":      "2025-01-01T00:00:00Z",
			"end":        "2025-01-01T00:00:10Z",
			"points":     "10",
		}, controller.GetWaveform)
		assert.Equal(t, http.StatusOK, rec.Code)

		var response WaveformResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(t, "demo", response.Collection)
		require.Len(t, response.Points, 10)
		assert.Equal(t, "2025-01-01T00:00:00.000Z", response.Points[0].Time)
		for _, point := range response.Points {
			assert.LessOrEqual(t, point.Min, point.Max)
		}
	})

	t.Run("waveform window outside data", func(t *testing.T) {
		rec := getWithQuery(t, e, "/api/audio/waveform", map[string]string{
			"collection": "demo",
			"start":      "2026-01-01T00:00:00Z",
			"end":        "2026-01-01T00:00:10Z",
			"points":     "10",
		}, controller.GetWaveform)
		assert.Equal(t, http.StatusOK, rec.Code)

		var response WaveformResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Empty(t, response.Points)
	})

	t.Run("raw slice bytes", func(t *testing.T) {
		rec := getWithQuery(t, e, "/api/audio/raw", map[string]string{
			"collection": "demo",
			"start":      "2025-01-01T00:00:02Z",
			"end":        "2025-01-01T00:00:04Z",
		}, controller.GetRawSlice)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "demo_20250101_000002.wav")

		// 2 seconds at 8 kHz mono 16-bit: 44-byte header + 16000*2 data bytes.
		assert.Len(t, rec.Body.Bytes(), 44+16000*2)

		decoded, err := wavio.Decode(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, 8000, decoded.SampleRate)
		assert.Equal(t, 1, decoded.NumChannels)
		assert.Equal(t, 16000, decoded.TotalFrames)

		// Amplitudes pass through bit-identical: the slice starts 2 seconds
		// into the source, i.e. at frame 16000.
		assert.Equal(t, source[16000:32000], decoded.Samples)
	})

	t.Run("raw slice empty window", func(t *testing.T) {
		rec := getWithQuery(t, e, "/api/audio/raw", map[string]string{
			"collection": "demo",
			"start":      "2025-01-01T00:00:20Z",
			"end":        "2025-01-01T00:00:25Z",
		}, controller.GetRawSlice)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(t, http.StatusNotFound, response.Code)
		assert.NotEmpty(t, response.CorrelationID)
	})
}

func TestGetWaveformValidation(t *testing.T) {
	settings := createTestSettings(t)
	e, _, controller := setupWithSettings(t, settings)

	writeStagedWAV(t, settings, "site_20250101_000000.wav", 8000, 1, 1)
	rec := ingestStagedFiles(t, e, controller, "demo", []string{"site_20250101_000000.wav"})
	require.Equal(t, http.StatusOK, rec.Code)

	testCases := []struct {
		name     string
		params   map[string]string
		expected int
	}{
		{
			"missing collection",
			map[string]string{"start": "2025-01-01T00:00:00Z", "end": "2025-01-01T00:00:01Z", "points": "10"},
			http.StatusBadRequest,
		},
		{
			"unknown collection",
			map[string]string{"collection": "nope", "start": "2025-01-01T00:00:00Z", "end": "2025-01-01T00:00:01Z", "points": "10"},
			http.StatusNotFound,
		},
		{
			"malformed start",
			map[string]string{"collection": "demo", "start": "yesterday", "end": "2025-01-01T00:00:01Z", "points": "10"},
			http.StatusBadRequest,
		},
		{
			"end before start",
			map[string]string{"collection": "demo", "start": "2025-01-01T00:00:01Z", "end": "2025-01-01T00:00:00Z", "points": "10"},
			http.StatusBadRequest,
		},
		{
			"non-numeric points",
			map[string]string{"collection": "demo", "start": "2025-01-01T00:00:00Z", "end": "2025-01-01T00:00:01Z", "points": "many"},
			http.StatusBadRequest,
		},
		{
			"zero points",
			map[string]string{"collection": "demo", "start": "2025-01-01T00:00:00Z", "end": "2025-01-01T00:00:01Z", "points": "0"},
			http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := getWithQuery(t, e, "/api/audio/waveform", tc.params, controller.GetWaveform)
			assert.Equal(t, tc.expected, rec.Code)
		})
	}
}

func TestGetCollectionInfoNotFound(t *testing.T) {
	e, _, controller := setupTestEnvironment(t)

	req := httptest.NewRequest(http.MethodGet, "/api/audio/collections/missing/info", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/audio/collections/:name/info")
	c.SetParamNames("name")
	c.SetParamValues("missing")

	require.NoError(t, controller.GetCollectionInfo(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, http.StatusNotFound, response.Code)
	assert.NotEmpty(t, response.CorrelationID)
}
