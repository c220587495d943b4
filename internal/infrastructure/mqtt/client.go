package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/geowatch-core/internal/infrastructure/config"
)

// Logger is satisfied by *logging.Logger and *slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives one message. topic has wildcards expanded. A
// returned error is logged; the message is acknowledged either way.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// hooks are the caller-supplied observers of connection events.
type hooks struct {
	logger       Logger
	onConnect    func()
	onDisconnect func(err error)
}

// Client is the geowatch connection to the broker: location fixes come in
// on subscriptions, alerts and status go out through Publish. Subscriptions
// are remembered and replayed on every reconnect. Safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	connected atomic.Bool

	subMu         sync.RWMutex
	subscriptions map[string]subscription

	hookMu sync.RWMutex
	hooks  hooks
}

// Connect dials the broker and waits for the first connection. On every
// (re)connect the client restores its subscriptions and publishes a retained
// online message to geowatch/system/status.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed if the broker is not reached within the timeout
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		if log := c.currentHooks().logger; log != nil {
			log.Info("mqtt reconnecting", "broker", cfg.Broker.Host, "client_id", cfg.Broker.ClientID)
		}
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: no answer from %s:%d within %v",
			ErrConnectionFailed, cfg.Broker.Host, cfg.Broker.Port, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously and may not have fired yet.
	c.connected.Store(true)
	return c, nil
}

func (c *Client) currentHooks() hooks {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	return c.hooks
}

func (c *Client) onConnected() {
	c.connected.Store(true)

	c.subMu.RLock()
	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
	c.subMu.RUnlock()

	c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, presencePayload("online", c.cfg.Broker.ClientID, ""))

	if cb := c.currentHooks().onConnect; cb != nil {
		cb()
	}
}

func (c *Client) onConnectionLost(err error) {
	c.connected.Store(false)

	h := c.currentHooks()
	if h.logger != nil {
		h.logger.Warn("mqtt connection lost", "error", err)
	}
	if h.onDisconnect != nil {
		h.onDisconnect(err)
	}
}

// Close publishes a graceful offline message and disconnects, letting
// in-flight publishes finish.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		payload := presencePayload("offline", c.cfg.Broker.ClientID, "graceful_shutdown")
		c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, payload).WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the client believes the broker is reachable.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client != nil && c.client.IsConnected()
}

// SetOnConnect sets a callback run after every (re)connect.
func (c *Client) SetOnConnect(callback func()) {
	c.hookMu.Lock()
	c.hooks.onConnect = callback
	c.hookMu.Unlock()
}

// SetOnDisconnect sets a callback run when the connection drops.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.hookMu.Lock()
	c.hooks.onDisconnect = callback
	c.hookMu.Unlock()
}

// SetLogger sets the logger for connection events and handler failures.
// A nil logger silences them.
func (c *Client) SetLogger(logger Logger) {
	c.hookMu.Lock()
	c.hooks.logger = logger
	c.hookMu.Unlock()
}

// wrapHandler logs handler errors and recovers panics, keyed by topic.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if log := c.currentHooks().logger; log != nil {
					log.Error("mqtt handler panic recovered", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if log := c.currentHooks().logger; log != nil {
				log.Warn("mqtt handler failed", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
