package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client uses.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// CommandHandler receives a command published on CommandTopic(devEUI).
// A returned error is logged; the message is not redelivered.
type CommandHandler func(devEUI string, payload []byte) error

// Telemetry is the retained document published for each accepted reading.
type Telemetry struct {
	MeasurementID int64     `json:"id"`
	SensorID      *int64    `json:"id_sensor"`
	DevEUI        string    `json:"dev_eui"`
	Temperature   float64   `json:"temperatura"`
	Humidity      float64   `json:"humedad"`
	ITH           float64   `json:"ith"`
	Timestamp     time.Time `json:"fecha"`
}

// Client publishes telemetry and receives operator commands. paho handles
// reconnection; every (re)connect republishes online presence and restores
// the command subscription. Safe for concurrent use.
type Client struct {
	paho     pahomqtt.Client
	qos      byte
	instance string

	mu       sync.RWMutex
	commands CommandHandler
	logger   Logger
}

// Connect dials the broker and waits for the first session.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		qos:      byte(cfg.QoS),
		instance: cfg.Broker.ClientID,
		logger:   noopLogger{},
	}

	opts := clientOptions(cfg).
		SetOnConnectHandler(func(pahomqtt.Client) { c.onConnect() }).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			c.log().Warn("mqtt connection lost", "instance", c.instance, "error", err)
		}).
		SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
			c.log().Warn("mqtt reconnecting", "instance", c.instance)
		})

	c.paho = pahomqtt.NewClient(opts)
	token := c.paho.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnect, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	return c, nil
}

func (c *Client) onConnect() {
	c.paho.Publish(PresenceTopic, 1, true, presence(c.instance, "online", ""))

	c.mu.RLock()
	subscribed := c.commands != nil
	c.mu.RUnlock()
	if subscribed {
		if err := c.subscribeCommands(); err != nil {
			c.log().Error("mqtt command subscription not restored", "error", err)
		}
	}
	c.log().Info("mqtt connected", "instance", c.instance)
}

// SetLogger sets the logger for connection events and handler failures.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.logger == nil {
		return noopLogger{}
	}
	return c.logger
}

// OnCommand installs the handler for CommandFilter and subscribes.
// The subscription is restored after every reconnect.
func (c *Client) OnCommand(h CommandHandler) error {
	c.mu.Lock()
	c.commands = h
	c.mu.Unlock()

	if !c.Connected() {
		return ErrNotConnected
	}
	return c.subscribeCommands()
}

func (c *Client) subscribeCommands() error {
	token := c.paho.Subscribe(CommandFilter, c.qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribe, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribe, err)
	}
	return nil
}

// dispatch routes one command message to the handler, containing panics.
func (c *Client) dispatch(topic string, payload []byte) {
	eui, ok := commandTarget(topic)
	if !ok {
		c.log().Warn("mqtt message on unexpected topic", "topic", topic)
		return
	}

	c.mu.RLock()
	h := c.commands
	c.mu.RUnlock()
	if h == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.log().Error("mqtt command handler panic recovered", "dev_eui", eui, "panic", r)
		}
	}()
	if err := h(eui, payload); err != nil {
		c.log().Warn("mqtt command failed", "dev_eui", eui, "error", err)
	}
}

// PublishTelemetry publishes t, retained, on the device's telemetry topic so
// late subscribers see each device's last reading.
func (c *Client) PublishTelemetry(t Telemetry) error {
	if !c.Connected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("%w: encoding telemetry: %w", ErrPublish, err)
	}
	token := c.paho.Publish(TelemetryTopic(t.DevEUI), c.qos, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublish, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}

// Connected reports whether the broker session is currently open.
func (c *Client) Connected() bool {
	return c.paho != nil && c.paho.IsConnectionOpen()
}

// HealthCheck returns ErrNotConnected while the session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.Connected() {
		return ErrNotConnected
	}
	return nil
}

// Close publishes a shutdown presence, which unlike the Last Will names a
// deliberate stop, then disconnects.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.Connected() {
		c.paho.Publish(PresenceTopic, 1, true, presence(c.instance, "offline", reasonShutdown)).
			WaitTimeout(publishTimeout)
	}
	c.paho.Disconnect(disconnectQuiesce)
	return nil
}
