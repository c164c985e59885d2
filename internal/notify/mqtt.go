package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/observability/metrics"
	"github.com/hazardwatch/hazardwatch/internal/privacy"
)

const channelMQTT = "mqtt"

// MQTTConfig configures the MQTT notifier.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	Retain   bool

	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// mqttClient is the subset of mqtt.Client the notifier uses.
type mqttClient interface {
	IsConnected() bool
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes one JSON message per created hazard. It connects lazily on
// the first notification and relies on paho's auto reconnect afterwards.
type MQTT struct {
	config  MQTTConfig
	metrics *metrics.NotifyMetrics

	mu        sync.Mutex
	client    mqttClient
	newClient func(*mqtt.ClientOptions) mqttClient
}

// NewMQTT creates an MQTT notifier. m may be nil.
func NewMQTT(cfg MQTTConfig, m *metrics.NotifyMetrics) *MQTT {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}
	if cfg.DisconnectTimeout <= 0 {
		cfg.DisconnectTimeout = 250 * time.Millisecond
	}
	return &MQTT{
		config:  cfg,
		metrics: m,
		newClient: func(opts *mqtt.ClientOptions) mqttClient {
			return mqtt.NewClient(opts)
		},
	}
}

func (n *MQTT) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(n.config.Broker)
	opts.SetClientID(n.config.ClientID)
	opts.SetUsername(n.config.Username)
	opts.SetPassword(n.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(n.config.ConnectTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		getLogger().Info("Connected to MQTT broker", "broker", privacy.RedactURL(n.config.Broker))
		n.updateConnectionStatus(true)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		getLogger().Warn("Connection to MQTT broker lost", "broker", privacy.RedactURL(n.config.Broker), "error", err)
		n.updateConnectionStatus(false)
	})
	return opts
}

func (n *MQTT) updateConnectionStatus(connected bool) {
	if n.metrics != nil {
		n.metrics.UpdateConnectionStatus(channelMQTT, connected)
	}
}

// connect must be called with mu held.
func (n *MQTT) connect(ctx context.Context) error {
	if n.client != nil && n.client.IsConnected() {
		return nil
	}
	if n.client == nil {
		n.client = n.newClient(n.options())
	}

	token := n.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(n.config.ConnectTimeout):
		return fmt.Errorf("connection to %s timed out", privacy.RedactURL(n.config.Broker))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connection to %s failed: %w", privacy.RedactURL(n.config.Broker), privacy.WrapError(err))
	}
	n.updateConnectionStatus(true)
	return nil
}

// NotifyCreated implements Notifier.
func (n *MQTT) NotifyCreated(ctx context.Context, hazards []HazardSummary) error {
	if len(hazards) == 0 {
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.connect(ctx); err != nil {
		return n.wrap(err, "connect")
	}

	var errs []error
	for i := range hazards {
		if err := n.publish(&hazards[i]); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return n.wrap(err, "publish")
	}
	return nil
}

func (n *MQTT) publish(h *HazardSummary) error {
	payload, err := json.Marshal(h)
	if err != nil {
		return err
	}

	start := time.Now()
	token := n.client.Publish(n.config.Topic, 1, n.config.Retain, payload)
	if !token.WaitTimeout(n.config.PublishTimeout) {
		err = fmt.Errorf("publish of %s timed out", h.UUID)
	} else {
		err = token.Error()
	}
	if n.metrics != nil {
		n.metrics.RecordPublish(channelMQTT, time.Since(start), err)
	}
	return err
}

func (n *MQTT) wrap(err error, operation string) error {
	return errors.New(err).
		Component("notify").
		Category(errors.CategoryMQTTPublish).
		Context("operation", operation).
		Context("topic", n.config.Topic).
		Build()
}

// Close disconnects from the broker.
func (n *MQTT) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.client != nil && n.client.IsConnected() {
		n.client.Disconnect(uint(n.config.DisconnectTimeout.Milliseconds()))
		n.updateConnectionStatus(false)
	}
}
