// Package notify publishes event lifecycle messages to an MQTT broker so
// downstream consumers can mirror annotation activity without polling the
// HTTP API.
package notify

import (
	"context"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/tphakala/passby-go/internal/logging"
)

// DefaultTopicPrefix is used when no topic prefix is configured.
const DefaultTopicPrefix = "passby/events"

// Client defines the interface for MQTT client operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	// It returns an error if the connection fails.
	Connect(ctx context.Context) error

	// Publish sends a message to the specified topic on the MQTT broker.
	// It returns an error if the publish operation fails.
	Publish(ctx context.Context, topic, payload string) error

	// IsConnected returns true if the client is currently connected to the MQTT broker.
	IsConnected() bool

	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker            string
	ClientID          string
	Username          string
	Password          string
	TopicPrefix       string
	Retain            bool // true to retain messages at the broker
	ReconnectCooldown time.Duration
	ReconnectDelay    time.Duration
	// Connection timeouts
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

var (
	logger   *slog.Logger
	levelVar = new(slog.LevelVar)
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "notify.log")
	levelVar.Set(slog.LevelInfo)

	// The log file stays open for the life of the process.
	logger, _, err = logging.NewFileLogger(logFilePath, "notify", levelVar)
	if err != nil {
		log.Printf("Failed to initialize notify file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
		logger = slog.New(fbHandler).With("service", "notify")
	}
}

// DefaultConfig returns a Config with reasonable default values.
func DefaultConfig() Config {
	return Config{
		TopicPrefix:       DefaultTopicPrefix,
		ReconnectCooldown: 5 * time.Second,
		ReconnectDelay:    1 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}
