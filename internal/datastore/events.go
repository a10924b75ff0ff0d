package datastore

import (
	"context"

	"gorm.io/gorm"

	"github.com/tphakala/passby-go/internal/errors"
)

// SaveEvent inserts a new annotation event.
func (ds *DataStore) SaveEvent(ctx context.Context, event *Event) error {
	if err := ds.DB.WithContext(ctx).Create(event).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save-event").
			Context("event_id", event.ID).
			Build()
	}
	return nil
}

// GetEvent retrieves a single event by id.
func (ds *DataStore) GetEvent(ctx context.Context, id string) (Event, error) {
	var event Event
	err := ds.DB.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Event{}, errors.NotFoundError("event", id)
		}
		return Event{}, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get-event").
			Context("event_id", id).
			Build()
	}
	return event, nil
}

// ListEvents returns all events ordered newest first, optionally filtered
// by status. An empty statusFilter returns everything.
func (ds *DataStore) ListEvents(ctx context.Context, statusFilter string) ([]Event, error) {
	query := ds.DB.WithContext(ctx).Order("start_ns DESC")
	if statusFilter != "" {
		query = query.Where("status = ?", statusFilter)
	}

	var events []Event
	if err := query.Find(&events).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "list-events").
			Build()
	}
	return events, nil
}

// DeleteEvent removes an event by id.
func (ds *DataStore) DeleteEvent(ctx context.Context, id string) error {
	result := ds.DB.WithContext(ctx).Where("id = ?", id).Delete(&Event{})
	if result.Error != nil {
		return errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "delete-event").
			Context("event_id", id).
			Build()
	}
	if result.RowsAffected == 0 {
		return errors.NotFoundError("event", id)
	}
	return nil
}

// UpdateEventStatus flips an event's status from fromStatus to toStatus as
// a single compare-and-set. It reports whether a row was updated; false
// means the event either does not exist or is not in fromStatus, which the
// caller disambiguates with a follow-up read.
func (ds *DataStore) UpdateEventStatus(ctx context.Context, id, fromStatus, toStatus string) (bool, error) {
	result := ds.DB.WithContext(ctx).
		Model(&Event{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)
	if result.Error != nil {
		return false, errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "update-event-status").
			Context("event_id", id).
			Build()
	}
	return result.RowsAffected > 0, nil
}
