package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/passby-go/internal/datastore"
	"github.com/tphakala/passby-go/internal/events"
)

// fakeClient records published messages without touching a broker.
type fakeClient struct {
	mu           sync.Mutex
	published    []publishedMessage
	publishErr   error
	release      chan struct{} // when set, Publish blocks until closed
	disconnected bool
}

type publishedMessage struct {
	topic   string
	payload string
}

func (f *fakeClient) Connect(ctx context.Context) error { return nil }

func (f *fakeClient) Publish(ctx context.Context, topic, payload string) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMessage{topic: topic, payload: payload})
	return f.publishErr
}

func (f *fakeClient) IsConnected() bool { return true }

func (f *fakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func (f *fakeClient) messages() []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedMessage, len(f.published))
	copy(out, f.published)
	return out
}

func testView() events.View {
	return events.View{
		ID:                "7d444840-9dc0-11d1-b245-5ffdce74fad2",
		StartTimestamp:    "2025-03-01T08:30:00.000Z",
		EndTimestamp:      "2025-03-01T08:30:12.000Z",
		VehicleType:       "tram",
		VehicleIdentifier: "HKL 423",
		Direction:         events.DirectionEastWest,
		Status:            datastore.EventStatusManual,
	}
}

func TestEventCreatedPublishesView(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	n := newEventNotifier(client, "custom/prefix")

	n.EventCreated(context.Background(), testView())
	n.Close()

	messages := client.messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "custom/prefix/created", messages[0].topic)

	var got events.View
	require.NoError(t, json.Unmarshal([]byte(messages[0].payload), &got))
	assert.Equal(t, testView(), got)
	assert.True(t, client.disconnected, "Close should disconnect the client")
}

func TestEventStatusChangedPublishesView(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	n := newEventNotifier(client, "custom/prefix")

	view := testView()
	view.Status = datastore.EventStatusReviewed
	n.EventStatusChanged(context.Background(), view)
	n.Close()

	messages := client.messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "custom/prefix/status", messages[0].topic)

	var got events.View
	require.NoError(t, json.Unmarshal([]byte(messages[0].payload), &got))
	assert.Equal(t, datastore.EventStatusReviewed, got.Status)
}

func TestEventDeletedPublishesID(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	n := newEventNotifier(client, "custom/prefix")

	n.EventDeleted(context.Background(), "some-id")
	n.Close()

	messages := client.messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "custom/prefix/deleted", messages[0].topic)
	assert.JSONEq(t, `{"id":"some-id"}`, messages[0].payload)
}

func TestPublishDoesNotBlockCaller(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	client := &fakeClient{release: release}
	n := newEventNotifier(client, "")

	start := time.Now()
	n.EventCreated(context.Background(), testView())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second, "EventCreated must not wait for delivery")

	close(release)
	n.Close()
	require.Len(t, client.messages(), 1)
}

// TestCloseWaitsForInFlightDeliveries floods the notifier and verifies that
// Close leaves no delivery goroutine behind.
func TestCloseWaitsForInFlightDeliveries(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("testing.(*T).Run"),
		goleak.IgnoreTopFunction("runtime.gopark"),
	)

	client := &fakeClient{}
	n := newEventNotifier(client, "fleet/passby")

	for i := 0; i < 50; i++ {
		n.EventDeleted(context.Background(), fmt.Sprintf("id-%d", i))
	}
	n.Close()

	require.Len(t, client.messages(), 50)
	assert.True(t, client.disconnected, "Close should disconnect the client")
}

func TestPublishFailureIsLoggedNotReturned(t *testing.T) {
	t.Parallel()

	client := &fakeClient{publishErr: assert.AnError}
	n := newEventNotifier(client, "")

	n.EventDeleted(context.Background(), "lost-id")
	n.Close()

	// The delivery was attempted; the failure stays inside the notifier.
	require.Len(t, client.messages(), 1)
}

func TestTopicPrefixNormalization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{"empty prefix falls back to default", "", DefaultTopicPrefix + "/deleted"},
		{"trailing slash is trimmed", "fleet/passby/", "fleet/passby/deleted"},
		{"plain prefix is used as is", "fleet/passby", "fleet/passby/deleted"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client := &fakeClient{}
			n := newEventNotifier(client, tc.prefix)
			n.EventDeleted(context.Background(), "id")
			n.Close()

			messages := client.messages()
			require.Len(t, messages, 1)
			assert.Equal(t, tc.want, messages[0].topic)
		})
	}
}
