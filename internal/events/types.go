// Package events owns vehicle pass-by annotations: creation, listing,
// deletion and the manual-to-reviewed status transition. No other component
// mutates an event.
package events

import (
	"context"
	"time"

	"github.com/tphakala/passby-go/internal/datastore"
	"github.com/tphakala/passby-go/internal/errors"
)

// Direction values an annotation may carry. The arrow is part of the
// literal; clients render it verbatim.
const (
	DirectionNA         = "N/A"
	DirectionEastWest   = "East→West"
	DirectionWestEast   = "West→East"
	DirectionNorthSouth = "North→South"
	DirectionSouthNorth = "South→North"
)

// isoTimeLayout renders instants the way the HTTP surface and snapshots
// expect: ISO-8601 UTC, millisecond precision, literal Z. The trailing Z is
// a literal because formatting always happens on a UTC value.
const isoTimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders a nanosecond Unix instant in wire format.
func FormatTimestamp(ns int64) string {
	return time.Unix(0, ns).UTC().Format(isoTimeLayout)
}

// ParseTimestamp accepts any RFC3339 timestamp and returns nanoseconds
// since the Unix epoch.
func ParseTimestamp(value string) (int64, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return 0, errors.Newf("invalid timestamp %q: %v", value, err).
			Component("events").
			Category(errors.CategoryValidation).
			Build()
	}
	return t.UnixNano(), nil
}

// Draft carries the caller-supplied fields of a new annotation.
type Draft struct {
	StartNs           int64
	EndNs             int64
	VehicleType       string
	VehicleIdentifier string
	Direction         string
	AnnotatorNotes    string
	Status            string
}

// View is the JSON representation of an event shared by the HTTP API and
// on-disk snapshots.
type View struct {
	ID                string `json:"id"`
	StartTimestamp    string `json:"start_timestamp"`
	EndTimestamp      string `json:"end_timestamp"`
	VehicleType       string `json:"vehicle_type"`
	VehicleIdentifier string `json:"vehicle_identifier"`
	Direction         string `json:"direction"`
	AnnotatorNotes    string `json:"annotator_notes"`
	Status            string `json:"status"`
}

// ToView converts a stored event to its wire representation.
func ToView(event datastore.Event) View {
	return View{
		ID:                event.ID,
		StartTimestamp:    FormatTimestamp(event.StartNs),
		EndTimestamp:      FormatTimestamp(event.EndNs),
		VehicleType:       event.VehicleType,
		VehicleIdentifier: event.VehicleIdentifier,
		Direction:         event.Direction,
		AnnotatorNotes:    event.AnnotatorNotes,
		Status:            event.Status,
	}
}

// Notifier receives event lifecycle notifications. Implementations must not
// block the caller; delivery is best effort.
type Notifier interface {
	EventCreated(ctx context.Context, view View)
	EventStatusChanged(ctx context.Context, view View)
	EventDeleted(ctx context.Context, id string)
}

// normalizeDirection maps an empty direction to N/A and rejects values
// outside the enum.
func normalizeDirection(direction string) (string, error) {
	switch direction {
	case "":
		return DirectionNA, nil
	case DirectionNA, DirectionEastWest, DirectionWestEast, DirectionNorthSouth, DirectionSouthNorth:
		return direction, nil
	default:
		return "", errors.Newf("invalid direction %q", direction).
			Component("events").
			Category(errors.CategoryValidation).
			Context("direction", direction).
			Build()
	}
}

// validStatus reports whether value names a known event status.
func validStatus(value string) bool {
	switch value {
	case datastore.EventStatusManual, datastore.EventStatusReviewed, datastore.EventStatusRefined:
		return true
	default:
		return false
	}
}
