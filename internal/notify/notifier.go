// notifier.go: bridges event lifecycle callbacks to MQTT topics.
package notify

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/events"
	"github.com/tphakala/passby-go/internal/observability"
)

// Topic leaves appended to the configured prefix.
const (
	topicCreated = "created"
	topicStatus  = "status"
	topicDeleted = "deleted"
)

// EventNotifier publishes event lifecycle messages to <prefix>/created,
// <prefix>/status and <prefix>/deleted. Delivery is fire and forget: the
// caller never blocks on the broker and failures are only logged.
type EventNotifier struct {
	client  Client
	prefix  string
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewEventNotifier creates a notifier connected to nothing yet; call Connect
// before expecting deliveries to succeed.
func NewEventNotifier(settings *conf.Settings, m *observability.Metrics) (*EventNotifier, error) {
	client, err := NewClient(settings, m)
	if err != nil {
		return nil, err
	}
	return newEventNotifier(client, settings.MQTT.TopicPrefix), nil
}

func newEventNotifier(client Client, prefix string) *EventNotifier {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &EventNotifier{
		client:  client,
		prefix:  prefix,
		timeout: DefaultConfig().PublishTimeout,
	}
}

// Connect establishes the broker connection.
func (n *EventNotifier) Connect(ctx context.Context) error {
	return n.client.Connect(ctx)
}

// EventCreated publishes the new event.
func (n *EventNotifier) EventCreated(ctx context.Context, view events.View) {
	n.publish(topicCreated, view)
}

// EventStatusChanged publishes the event after a status transition.
func (n *EventNotifier) EventStatusChanged(ctx context.Context, view events.View) {
	n.publish(topicStatus, view)
}

// EventDeleted publishes the ID of the removed event.
func (n *EventNotifier) EventDeleted(ctx context.Context, id string) {
	n.publish(topicDeleted, deletedMessage{ID: id})
}

type deletedMessage struct {
	ID string `json:"id"`
}

// publish marshals the message and delivers it on a background goroutine
// with its own timeout, so a finished HTTP request cannot cancel an
// in-flight delivery.
func (n *EventNotifier) publish(leaf string, message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		logger.Error("Failed to marshal notification payload", "topic_leaf", leaf, "error", err)
		return
	}
	topic := n.prefix + "/" + leaf

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.client.Publish(ctx, topic, string(payload)); err != nil {
			logger.Warn("Event notification not delivered", "topic", topic, "error", err)
		}
	}()
}

// Close waits for in-flight deliveries and disconnects from the broker.
func (n *EventNotifier) Close() {
	n.wg.Wait()
	n.client.Disconnect()
}
