// events_test.go: Tests for annotation event persistence and the status
// compare-and-set used to serialize transitions.
package datastore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/passby-go/internal/errors"
)

func makeTestEvent(status string) *Event {
	start := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC).UnixNano()
	return &Event{
		ID:          uuid.New().String(),
		StartNs:     start,
		EndNs:       start + 2*int64(time.Second),
		VehicleType: "passenger car",
		Direction:   "East→West",
		Status:      status,
	}
}

func TestEventRoundTrip(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, createTestSettings(t))
	ctx := context.Background()

	event := makeTestEvent(EventStatusManual)
	event.VehicleIdentifier = "bus line 550"
	event.AnnotatorNotes = "second axle faint"
	require.NoError(t, ds.SaveEvent(ctx, event))

	got, err := ds.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, event.StartNs, got.StartNs)
	assert.Equal(t, event.EndNs, got.EndNs)
	assert.Equal(t, "passenger car", got.VehicleType)
	assert.Equal(t, "bus line 550", got.VehicleIdentifier)
	assert.Equal(t, "East→West", got.Direction)
	assert.Equal(t, "second axle faint", got.AnnotatorNotes)
	assert.Equal(t, EventStatusManual, got.Status)
}

func TestGetEvent_NotFound(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, createTestSettings(t))

	_, err := ds.GetEvent(context.Background(), uuid.New().String())
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err), "Expected not-found error, got %v", err)
}

func TestListEvents_OrderAndStatusFilter(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, createTestSettings(t))
	ctx := context.Background()

	base := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC).UnixNano()
	sec := int64(time.Second)

	early := makeTestEvent(EventStatusManual)
	early.StartNs = base
	late := makeTestEvent(EventStatusRefined)
	late.StartNs = base + 60*sec
	for _, e := range []*Event{early, late} {
		require.NoError(t, ds.SaveEvent(ctx, e))
	}

	all, err := ds.ListEvents(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, late.ID, all[0].ID, "Events must list newest start first")
	assert.Equal(t, early.ID, all[1].ID)

	refined, err := ds.ListEvents(ctx, EventStatusRefined)
	require.NoError(t, err)
	require.Len(t, refined, 1)
	assert.Equal(t, late.ID, refined[0].ID)

	none, err := ds.ListEvents(ctx, EventStatusReviewed)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteEvent(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, createTestSettings(t))
	ctx := context.Background()

	event := makeTestEvent(EventStatusManual)
	require.NoError(t, ds.SaveEvent(ctx, event))
	require.NoError(t, ds.DeleteEvent(ctx, event.ID))

	_, err := ds.GetEvent(ctx, event.ID)
	assert.True(t, errors.IsNotFound(err), "Deleted event must be gone")

	err = ds.DeleteEvent(ctx, event.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err), "Deleting twice must report not-found")
}

func TestUpdateEventStatus_CompareAndSet(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, createTestSettings(t))
	ctx := context.Background()

	event := makeTestEvent(EventStatusManual)
	require.NoError(t, ds.SaveEvent(ctx, event))

	swapped, err := ds.UpdateEventStatus(ctx, event.ID, EventStatusManual, EventStatusReviewed)
	require.NoError(t, err)
	assert.True(t, swapped, "First transition from manual must succeed")

	swapped, err = ds.UpdateEventStatus(ctx, event.ID, EventStatusManual, EventStatusReviewed)
	require.NoError(t, err)
	assert.False(t, swapped, "Second transition must find no manual row")

	got, err := ds.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, EventStatusReviewed, got.Status)
}

func TestUpdateEventStatus_ConcurrentCallersSwapOnce(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t, createTestSettings(t))
	ctx := context.Background()

	event := makeTestEvent(EventStatusManual)
	require.NoError(t, ds.SaveEvent(ctx, event))

	const numGoroutines = 8
	results := make(chan bool, numGoroutines)

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			swapped, err := ds.UpdateEventStatus(ctx, event.ID, EventStatusManual, EventStatusReviewed)
			assert.NoError(t, err)
			results <- swapped
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for swapped := range results {
		if swapped {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "Exactly one concurrent caller may win the transition")

	got, err := ds.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, EventStatusReviewed, got.Status)
}
