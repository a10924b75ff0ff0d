// client.go: MQTT connection handling for event publication.
package notify

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/observability"
	"github.com/tphakala/passby-go/internal/observability/metrics"
)

// client implements the Client interface.
type client struct {
	config          Config
	internalClient  mqtt.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	reconnectTimer  *time.Timer
	reconnectStop   chan struct{}
	metrics         *metrics.MQTTMetrics
}

// NewClient creates a new MQTT client from the application settings.
func NewClient(settings *conf.Settings, m *observability.Metrics) (Client, error) {
	config := DefaultConfig()
	config.Broker = settings.MQTT.Broker
	config.ClientID = settings.MQTT.ClientID
	if config.ClientID == "" {
		config.ClientID = settings.Main.Name
	}
	config.Username = settings.MQTT.Username
	config.Password = settings.MQTT.Password
	config.Retain = settings.MQTT.Retain
	if settings.MQTT.TopicPrefix != "" {
		config.TopicPrefix = settings.MQTT.TopicPrefix
	}

	return &client{
		config:        config,
		reconnectStop: make(chan struct{}),
		metrics:       m.MQTT,
	}, nil
}

// Connect attempts to establish a connection to the MQTT broker.
// It first resolves the broker's hostname and then attempts to connect.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastConnAttempt) < c.config.ReconnectCooldown {
		return fmt.Errorf("connection attempt too recent, last attempt was %v ago", time.Since(c.lastConnAttempt))
	}
	c.lastConnAttempt = time.Now()

	// Parse the broker URL
	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}

	host := u.Hostname()

	// Check if the host is an IP address
	if net.ParseIP(host) == nil {
		// It's not an IP address, so attempt to resolve it
		_, err = net.DefaultResolver.LookupHost(ctx, host)
		if err != nil {
			// If it's a DNS error, return it directly
			if dnsErr, ok := err.(*net.DNSError); ok {
				return dnsErr
			}
			// For other errors, wrap it
			return fmt.Errorf("failed to resolve hostname %s: %w", host, err)
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetConnectRetry(true)

	c.internalClient = mqtt.NewClient(opts)

	token := c.internalClient.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connection error: %w", err)
	}

	// Update connection status metric
	c.metrics.UpdateConnectionStatus(true)

	return nil
}

// Publish sends a message to the specified topic on the MQTT broker.
func (c *client) Publish(ctx context.Context, topic, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.IsConnected() {
		return fmt.Errorf("not connected to MQTT broker")
	}

	timer := c.metrics.StartPublishTimer()
	defer timer.ObserveDuration()

	token := c.internalClient.Publish(topic, 0, c.config.Retain, payload)
	if !token.WaitTimeout(c.config.PublishTimeout) {
		logger.Warn("Publish timeout", "topic", topic)
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		c.metrics.IncrementErrors()
		return err
	}

	c.metrics.IncrementMessagesDelivered()
	c.metrics.ObserveMessageSize(float64(len(payload)))

	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		c.metrics.UpdateConnectionStatus(false)
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	close(c.reconnectStop)
}

func (c *client) onConnect(_ mqtt.Client) {
	logger.Info("Connected to MQTT broker", "broker", c.config.Broker)
	c.metrics.UpdateConnectionStatus(true)
}

func (c *client) onConnectionLost(_ mqtt.Client, err error) {
	logger.Warn("Connection to MQTT broker lost", "broker", c.config.Broker, "error", err)
	c.metrics.UpdateConnectionStatus(false)
	c.metrics.IncrementErrors()
	c.startReconnectTimer()
}

func (c *client) startReconnectTimer() {
	c.reconnectTimer = time.AfterFunc(c.config.ReconnectDelay, func() {
		select {
		case <-c.reconnectStop:
			return
		default:
			c.reconnectWithBackoff()
		}
	})
}

func (c *client) reconnectWithBackoff() {
	backoff := time.Second
	maxBackoff := 5 * time.Minute

	for {
		c.metrics.IncrementReconnectAttempts()
		ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
		err := c.Connect(ctx)
		cancel()

		if err == nil {
			logger.Info("Reconnected to MQTT broker", "broker", c.config.Broker)
			return
		}

		c.metrics.IncrementErrors()
		logger.Warn("Failed to reconnect to MQTT broker", "broker", c.config.Broker, "error", err, "retry_in", backoff)

		select {
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		case <-c.reconnectStop:
			return
		}
	}
}
