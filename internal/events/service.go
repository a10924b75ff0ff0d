package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/datastore"
	"github.com/tphakala/passby-go/internal/errors"
	"github.com/tphakala/passby-go/internal/logging"
	"github.com/tphakala/passby-go/internal/observability"
)

// snapshotTimeLayout names snapshot files by creation instant, UTC.
const snapshotTimeLayout = "20060102_150405"

var (
	logger   *slog.Logger
	levelVar = new(slog.LevelVar)
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "events.log")
	levelVar.Set(slog.LevelInfo)

	// The log file stays open for the life of the process.
	logger, _, err = logging.NewFileLogger(logFilePath, "events", levelVar)
	if err != nil {
		log.Printf("Failed to initialize events file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
		logger = slog.New(fbHandler).With("service", "events")
	}
}

// Service implements the annotation event store and its status state
// machine.
type Service struct {
	settings *conf.Settings
	ds       datastore.Interface
	metrics  *observability.Metrics
	notifier Notifier
}

// New creates an event service. metrics and notifier may be nil.
func New(settings *conf.Settings, ds datastore.Interface, metrics *observability.Metrics, notifier Notifier) *Service {
	return &Service{
		settings: settings,
		ds:       ds,
		metrics:  metrics,
		notifier: notifier,
	}
}

// Create persists a new annotation. Status defaults to manual; refined is
// accepted for file-based annotation; creating directly as reviewed is
// rejected because reviewed is only reachable by an explicit transition.
// A JSON snapshot of the created event is written best-effort.
func (s *Service) Create(ctx context.Context, draft Draft) (datastore.Event, error) {
	event, err := s.create(ctx, draft)
	s.recordOp("create", err)
	if err != nil {
		return datastore.Event{}, err
	}

	if s.metrics != nil {
		s.metrics.Events.RecordEventSpan(float64(event.EndNs-event.StartNs) / float64(time.Second))
	}
	s.writeSnapshot(event)
	if s.notifier != nil {
		s.notifier.EventCreated(ctx, ToView(event))
	}
	return event, nil
}

func (s *Service) create(ctx context.Context, draft Draft) (datastore.Event, error) {
	if draft.EndNs < draft.StartNs {
		return datastore.Event{}, errors.Newf("event end must not precede start").
			Component("events").
			Category(errors.CategoryValidation).
			Context("start_ns", draft.StartNs).
			Context("end_ns", draft.EndNs).
			Build()
	}

	direction, err := normalizeDirection(draft.Direction)
	if err != nil {
		return datastore.Event{}, err
	}

	status := draft.Status
	switch status {
	case "":
		status = datastore.EventStatusManual
	case datastore.EventStatusManual, datastore.EventStatusRefined:
	case datastore.EventStatusReviewed:
		return datastore.Event{}, errors.Newf("an event cannot be created as reviewed").
			Component("events").
			Category(errors.CategoryInvalidTransition).
			Build()
	default:
		return datastore.Event{}, errors.Newf("invalid status %q", status).
			Component("events").
			Category(errors.CategoryValidation).
			Build()
	}

	event := datastore.Event{
		ID:                uuid.New().String(),
		StartNs:           draft.StartNs,
		EndNs:             draft.EndNs,
		VehicleType:       draft.VehicleType,
		VehicleIdentifier: draft.VehicleIdentifier,
		Direction:         direction,
		AnnotatorNotes:    draft.AnnotatorNotes,
		Status:            status,
	}
	if err := s.ds.SaveEvent(ctx, &event); err != nil {
		return datastore.Event{}, err
	}

	logger.Info("event created",
		"event_id", event.ID,
		"status", event.Status,
		"vehicle_type", event.VehicleType)

	return event, nil
}

// List returns events ordered newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, statusFilter string) ([]datastore.Event, error) {
	if statusFilter != "" && !validStatus(statusFilter) {
		return nil, errors.Newf("invalid status filter %q", statusFilter).
			Component("events").
			Category(errors.CategoryValidation).
			Build()
	}
	return s.ds.ListEvents(ctx, statusFilter)
}

// Get returns a single event by id.
func (s *Service) Get(ctx context.Context, id string) (datastore.Event, error) {
	return s.ds.GetEvent(ctx, id)
}

// Delete removes an event. Events are deletable at any status.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.ds.DeleteEvent(ctx, id)
	s.recordOp("delete", err)
	if err != nil {
		return err
	}

	logger.Info("event deleted", "event_id", id)
	if s.notifier != nil {
		s.notifier.EventDeleted(ctx, id)
	}
	return nil
}

// SetStatus applies the one allowed transition, manual to reviewed, as an
// optimistic compare-and-set. Concurrent calls on the same id see exactly
// one winner; the rest fail InvalidTransition.
func (s *Service) SetStatus(ctx context.Context, id, newStatus string) (datastore.Event, error) {
	if !validStatus(newStatus) {
		return datastore.Event{}, errors.Newf("invalid status %q", newStatus).
			Component("events").
			Category(errors.CategoryValidation).
			Build()
	}
	if newStatus != datastore.EventStatusReviewed {
		s.recordTransition("", newStatus, "rejected")
		return datastore.Event{}, errors.Newf("no transition leads to status %q", newStatus).
			Component("events").
			Category(errors.CategoryInvalidTransition).
			Context("event_id", id).
			Build()
	}

	updated, err := s.ds.UpdateEventStatus(ctx, id, datastore.EventStatusManual, datastore.EventStatusReviewed)
	if err != nil {
		return datastore.Event{}, err
	}
	if !updated {
		// Zero rows: either the event is missing or it is not manual.
		current, err := s.ds.GetEvent(ctx, id)
		if err != nil {
			return datastore.Event{}, err
		}
		s.recordTransition(current.Status, newStatus, "rejected")
		return datastore.Event{}, errors.Newf("cannot transition %s event to reviewed", current.Status).
			Component("events").
			Category(errors.CategoryInvalidTransition).
			Context("event_id", id).
			Context("current_status", current.Status).
			Build()
	}

	event, err := s.ds.GetEvent(ctx, id)
	if err != nil {
		return datastore.Event{}, err
	}

	s.recordTransition(datastore.EventStatusManual, newStatus, "success")
	logger.Info("event status changed",
		"event_id", id,
		"from", datastore.EventStatusManual,
		"to", newStatus)

	if s.notifier != nil {
		s.notifier.EventStatusChanged(ctx, ToView(event))
	}
	return event, nil
}

// writeSnapshot dumps the created event as pretty-printed JSON under the
// snapshot directory. Failures log a warning and count in metrics; they
// never fail the create.
func (s *Service) writeSnapshot(event datastore.Event) {
	dir := s.settings.EventSnapshotDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.snapshotFailed(event.ID, err)
		return
	}

	payload, err := json.MarshalIndent(ToView(event), "", "  ")
	if err != nil {
		s.snapshotFailed(event.ID, err)
		return
	}

	name := fmt.Sprintf("%s_%s.json", time.Now().UTC().Format(snapshotTimeLayout), event.ID)
	if err := os.WriteFile(filepath.Join(dir, name), payload, 0o644); err != nil {
		s.snapshotFailed(event.ID, err)
		return
	}
}

func (s *Service) snapshotFailed(id string, err error) {
	logger.Warn("failed to write event snapshot", "event_id", id, "error", err)
	if s.metrics != nil {
		s.metrics.Events.RecordSnapshotFailure()
	}
}

func (s *Service) recordOp(operation string, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.Events.RecordEventOp(operation, status)
}

func (s *Service) recordTransition(from, to, status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Events.RecordStatusTransition(from, to, status)
}
