package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/passby-go/internal/errors"
	"github.com/tphakala/passby-go/internal/events"
)

// rawSliceTimeLayout names downloaded WAV slices by window start, UTC.
const rawSliceTimeLayout = "20060102_150405"

// CollectionsResponse lists the registered collection names.
type CollectionsResponse struct {
	Collections []string `json:"collections"`
}

// TimeRange is the registered sample range of a collection in wire format.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// CollectionInfoResponse is the metadata of one collection.
type CollectionInfoResponse struct {
	Collection string    `json:"collection"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`
	BitDepth   int       `json:"bit_depth"`
	TimeRange  TimeRange `json:"time_range"`
}

// WaveformPoint is one min/max bucket of a waveform query.
type WaveformPoint struct {
	Time string `json:"time"`
	Min  int64  `json:"min"`
	Max  int64  `json:"max"`
}

// WaveformResponse carries the fixed-length bucket series of a waveform
// query. An empty Points slice means the window holds no data.
type WaveformResponse struct {
	Collection string          `json:"collection"`
	Points     []WaveformPoint `json:"points"`
}

// initAudioRoutes registers the audio query endpoints.
func (c *Controller) initAudioRoutes() {
	c.Group.GET("/audio/collections", c.GetCollections)
	c.Group.GET("/audio/collections/:name/info", c.GetCollectionInfo)
	c.Group.GET("/audio/waveform", c.GetWaveform)
	c.Group.GET("/audio/raw", c.GetRawSlice)
}

// GetCollections handles GET /api/audio/collections.
func (c *Controller) GetCollections(ctx echo.Context) error {
	collections, err := c.Audio.List(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list collections", statusForError(err))
	}

	names := make([]string, 0, len(collections))
	for _, collection := range collections {
		names = append(names, collection.Name)
	}

	return ctx.JSON(http.StatusOK, CollectionsResponse{Collections: names})
}

// GetCollectionInfo handles GET /api/audio/collections/:name/info.
func (c *Controller) GetCollectionInfo(ctx echo.Context) error {
	name := ctx.Param("name")

	collection, err := c.Audio.Info(ctx.Request().Context(), name)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get collection info", statusForError(err))
	}

	return ctx.JSON(http.StatusOK, CollectionInfoResponse{
		Collection: collection.Name,
		SampleRate: collection.SampleRate,
		Channels:   collection.Channels,
		BitDepth:   collection.BitDepth,
		TimeRange: TimeRange{
			Start: events.FormatTimestamp(collection.StartNs),
			End:   events.FormatTimestamp(collection.EndNs),
		},
	})
}

// GetWaveform handles GET /api/audio/waveform. The query parameters
// collection, start, end and points are all required.
func (c *Controller) GetWaveform(ctx echo.Context) error {
	name, startNs, endNs, err := parseWindowParams(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid waveform query", http.StatusBadRequest)
	}

	pointsParam := ctx.QueryParam("points")
	points, err := strconv.Atoi(pointsParam)
	if err != nil {
		return c.HandleError(ctx,
			validationErrorf("invalid points parameter %q", pointsParam),
			"Invalid waveform query", http.StatusBadRequest)
	}

	buckets, err := c.Audio.Aggregate(ctx.Request().Context(), name, startNs, endNs, points)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to aggregate waveform", statusForError(err))
	}

	response := WaveformResponse{
		Collection: name,
		Points:     make([]WaveformPoint, 0, len(buckets)),
	}
	for _, bucket := range buckets {
		response.Points = append(response.Points, WaveformPoint{
			Time: events.FormatTimestamp(bucket.StartNs),
			Min:  bucket.Min,
			Max:  bucket.Max,
		})
	}

	return ctx.JSON(http.StatusOK, response)
}

// GetRawSlice handles GET /api/audio/raw, serving the requested window as a
// self-contained WAV download.
func (c *Controller) GetRawSlice(ctx echo.Context) error {
	name, startNs, endNs, err := parseWindowParams(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid raw audio query", http.StatusBadRequest)
	}

	payload, err := c.Audio.Extract(ctx.Request().Context(), name, startNs, endNs)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to extract audio", statusForError(err))
	}

	filename := fmt.Sprintf("%s_%s.wav", name, time.Unix(0, startNs).UTC().Format(rawSliceTimeLayout))
	ctx.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	return ctx.Blob(http.StatusOK, "audio/wav", payload)
}

// parseWindowParams reads the shared collection/start/end query parameters.
func parseWindowParams(ctx echo.Context) (name string, startNs, endNs int64, err error) {
	name = ctx.QueryParam("collection")
	if name == "" {
		return "", 0, 0, validationErrorf("missing collection parameter")
	}

	startNs, err = events.ParseTimestamp(ctx.QueryParam("start"))
	if err != nil {
		return "", 0, 0, err
	}

	endNs, err = events.ParseTimestamp(ctx.QueryParam("end"))
	if err != nil {
		return "", 0, 0, err
	}

	return name, startNs, endNs, nil
}

// validationErrorf builds a categorized validation error for bad request
// parameters.
func validationErrorf(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("api").
		Category(errors.CategoryValidation).
		Build()
}
