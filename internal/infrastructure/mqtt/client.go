package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/keycounter-core/internal/infrastructure/config"
)

// Client is the keycounter's MQTT side channel. It publishes device state,
// host samples and the unit's online status, and relays remote display
// button presses.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - The button subscription is restored after every reconnect, and the
//     online status is republished.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics
	logger Logger

	// buttons is the paho handler for the button topic, nil until
	// SubscribeButtons is called.
	buttons   pahomqtt.MessageHandler
	buttonsMu sync.Mutex

	connected atomic.Bool
	connects  atomic.Int64
}

// Logger is the logging interface the client reports connection changes
// and handler failures through. Compatible with logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Connect establishes a connection to the MQTT broker.
//
// The Last Will is set on the status topic so a crashed unit shows as
// offline. Auto-reconnect is enabled; every (re)connect restores the button
// subscription and republishes the online status. A nil logger discards
// output.
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed if the broker is unreachable within timeout
func Connect(cfg config.MQTTConfig, logger Logger) (*Client, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	topics := NewTopics(cfg.TopicPrefix)
	opts := buildClientOptions(cfg)
	configureLWT(opts, topics, cfg.Broker.ClientID)

	c := &Client{
		cfg:    cfg,
		topics: topics,
		logger: logger,
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		// Stop paho's background connect retries.
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %s: timeout after %v", ErrConnectionFailed, c.broker(), defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, c.broker(), err)
	}

	// The OnConnect handler runs asynchronously; mark connected now so
	// IsConnected is true as soon as Connect returns.
	c.connected.Store(true)

	logger.Info("MQTT connected", "broker", c.broker(), "prefix", topics.Prefix())
	return c, nil
}

func (c *Client) broker() string {
	return fmt.Sprintf("%s:%d", c.cfg.Broker.Host, c.cfg.Broker.Port)
}

// handleConnect runs on paho's goroutine after every successful connect,
// the first one included.
func (c *Client) handleConnect() {
	c.connected.Store(true)
	n := c.connects.Add(1)

	c.buttonsMu.Lock()
	buttons := c.buttons
	c.buttonsMu.Unlock()
	if buttons != nil {
		c.client.Subscribe(c.topics.DisplayButton(), byte(c.cfg.QoS), buttons)
	}

	c.client.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true, buildOnlinePayload(c.cfg.Broker.ClientID))

	if n > 1 {
		c.logger.Info("MQTT reconnected",
			"broker", c.broker(),
			"reconnects", n-1,
			"buttons", buttons != nil,
		)
	}
}

// handleDisconnect runs when the connection drops. paho keeps retrying in
// the background; publishes fail with ErrNotConnected meanwhile.
func (c *Client) handleDisconnect(err error) {
	c.connected.Store(false)
	c.logger.Warn("MQTT connection lost, state publishing paused", "broker", c.broker(), "error", err)
}

// Close publishes a graceful offline status (distinct from the LWT) and
// disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true, buildOfflinePayload(c.cfg.Broker.ClientID))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	c.logger.Info("MQTT disconnected", "broker", c.broker())
	return nil
}

// HealthCheck republishes the online status and waits for the broker to
// acknowledge it, so a half-open connection is reported as unhealthy.
//
// Returns:
//   - error: nil when acknowledged, ErrNotConnected, or ErrUnhealthy
//     wrapping the publish or context error
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true, buildOnlinePayload(c.cfg.Broker.ClientID))
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %w", ErrUnhealthy, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrUnhealthy, ctx.Err())
	}
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client != nil && c.client.IsConnected()
}
