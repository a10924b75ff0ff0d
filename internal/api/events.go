package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/passby-go/internal/events"
)

// EventRequest carries the caller-supplied fields of a new annotation.
// Timestamps are RFC3339; status defaults to manual when omitted.
type EventRequest struct {
	StartTimestamp    string `json:"start_timestamp"`
	EndTimestamp      string `json:"end_timestamp"`
	VehicleType       string `json:"vehicle_type"`
	VehicleIdentifier string `json:"vehicle_identifier"`
	Direction         string `json:"direction"`
	AnnotatorNotes    string `json:"annotator_notes"`
	Status            string `json:"status"`
}

// StatusUpdateRequest names the requested status transition.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

// SuggestCollectionResponse carries the resolved collection name, or null
// when no registered range contains the event's start instant.
type SuggestCollectionResponse struct {
	Collection *string `json:"collection"`
}

// initEventRoutes registers the annotation endpoints.
func (c *Controller) initEventRoutes() {
	c.Group.GET("/events", c.ListEvents)
	c.Group.POST("/events", c.CreateEvent)
	c.Group.GET("/events/:id", c.GetEvent)
	c.Group.PUT("/events/:id/status", c.UpdateEventStatus)
	c.Group.DELETE("/events/:id", c.DeleteEvent)
	c.Group.GET("/events/:id/suggest-collection", c.SuggestCollection)
}

// ListEvents handles GET /api/events, newest first, optionally filtered with
// ?status=.
func (c *Controller) ListEvents(ctx echo.Context) error {
	statusFilter := ctx.QueryParam("status")

	stored, err := c.Events.List(ctx.Request().Context(), statusFilter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list events", statusForError(err))
	}

	views := make([]events.View, 0, len(stored))
	for _, event := range stored {
		views = append(views, events.ToView(event))
	}

	return ctx.JSON(http.StatusOK, views)
}

// CreateEvent handles POST /api/events.
func (c *Controller) CreateEvent(ctx echo.Context) error {
	var request EventRequest
	if err := ctx.Bind(&request); err != nil {
		return c.HandleError(ctx, err, "Invalid event payload", http.StatusBadRequest)
	}

	if request.VehicleType == "" {
		return c.HandleError(ctx,
			validationErrorf("vehicle_type must not be empty"),
			"Invalid event payload", http.StatusBadRequest)
	}

	startNs, err := events.ParseTimestamp(request.StartTimestamp)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid event payload", http.StatusBadRequest)
	}
	endNs, err := events.ParseTimestamp(request.EndTimestamp)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid event payload", http.StatusBadRequest)
	}

	event, err := c.Events.Create(ctx.Request().Context(), events.Draft{
		StartNs:           startNs,
		EndNs:             endNs,
		VehicleType:       request.VehicleType,
		VehicleIdentifier: request.VehicleIdentifier,
		Direction:         request.Direction,
		AnnotatorNotes:    request.AnnotatorNotes,
		Status:            request.Status,
	})
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create event", statusForError(err))
	}

	return ctx.JSON(http.StatusCreated, events.ToView(event))
}

// GetEvent handles GET /api/events/:id.
func (c *Controller) GetEvent(ctx echo.Context) error {
	event, err := c.Events.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get event", statusForError(err))
	}

	return ctx.JSON(http.StatusOK, events.ToView(event))
}

// UpdateEventStatus handles PUT /api/events/:id/status. The only transition
// the state machine allows is manual to reviewed.
func (c *Controller) UpdateEventStatus(ctx echo.Context) error {
	var request StatusUpdateRequest
	if err := ctx.Bind(&request); err != nil {
		return c.HandleError(ctx, err, "Invalid status payload", http.StatusBadRequest)
	}

	event, err := c.Events.SetStatus(ctx.Request().Context(), ctx.Param("id"), request.Status)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to update event status", statusForError(err))
	}

	return ctx.JSON(http.StatusOK, events.ToView(event))
}

// DeleteEvent handles DELETE /api/events/:id.
func (c *Controller) DeleteEvent(ctx echo.Context) error {
	if err := c.Events.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return c.HandleError(ctx, err, "Failed to delete event", statusForError(err))
	}

	return ctx.NoContent(http.StatusNoContent)
}

// SuggestCollection handles GET /api/events/:id/suggest-collection, mapping
// the event's start instant to the collection that recorded it.
func (c *Controller) SuggestCollection(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	event, err := c.Events.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get event", statusForError(err))
	}

	name, found, err := c.Audio.Resolve(reqCtx, event.StartNs)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to resolve collection", statusForError(err))
	}

	response := SuggestCollectionResponse{}
	if found {
		response.Collection = &name
	}
	return ctx.JSON(http.StatusOK, response)
}
