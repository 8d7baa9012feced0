// Package mqttpub implements the ambient telemetry publisher (S3):
// best-effort MQTT publication of measurements and threats, adapted
// from pkg/mqtt/client.go. Structurally close to the teacher (Config
// shape, Connect/Disconnect, publishJSON helper, QoS/Retain options)
// but repurposed to the cellular domain, and rate limiting uses
// golang.org/x/time/rate instead of the teacher's hand-rolled
// RateLimiter.
package mqttpub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/time/rate"

	"github.com/MdrnDme/clutch/pkg/cellular"
	"github.com/MdrnDme/clutch/pkg/logx"
)

// Config holds MQTT publisher configuration.
type Config struct {
	Broker      string `json:"broker"`
	Port        int    `json:"port"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         int    `json:"qos"`
	Retain      bool   `json:"retain"`
	Enabled     bool   `json:"enabled"`

	RateLimitPerSecond float64 `json:"rate_limit_per_second"`
	RateLimitBurst     int     `json:"rate_limit_burst"`
}

// DefaultConfig returns a disabled publisher pointed at a local broker.
func DefaultConfig() Config {
	return Config{
		Broker:             "localhost",
		Port:               1883,
		ClientID:           "clutch-edge",
		TopicPrefix:        "clutch",
		QoS:                1,
		Retain:             false,
		Enabled:            false,
		RateLimitPerSecond: 10,
		RateLimitBurst:     10,
	}
}

// Publisher publishes Measurement and Threat events to MQTT topics
// under config.TopicPrefix.
type Publisher struct {
	client    MQTT.Client
	logger    *logx.Logger
	config    Config
	connected bool
	limiter   *rate.Limiter
}

// New creates a Publisher. Connect must be called before Publish* will
// do anything.
func New(config Config, logger *logx.Logger) *Publisher {
	return &Publisher{
		logger:  logger,
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimitPerSecond), config.RateLimitBurst),
	}
}

// Connect establishes the MQTT connection, doing nothing if disabled.
func (p *Publisher) Connect() error {
	if !p.config.Enabled {
		p.logger.Debug("mqtt publisher disabled")
		return nil
	}

	opts := MQTT.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", p.config.Broker, p.config.Port))
	opts.SetClientID(p.config.ClientID)

	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	opts.SetOnConnectHandler(p.onConnect)
	opts.SetConnectionLostHandler(p.onConnectionLost)

	p.client = MQTT.NewClient(opts)
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqttpub: connect: %w", token.Error())
	}

	p.logger.Info("mqtt publisher connected", "broker", p.config.Broker, "port", p.config.Port)
	return nil
}

// Disconnect closes the MQTT connection.
func (p *Publisher) Disconnect() {
	if p.client != nil && p.connected {
		p.client.Disconnect(250)
		p.connected = false
		p.logger.Info("mqtt publisher disconnected")
	}
}

func (p *Publisher) onConnect(MQTT.Client) {
	p.connected = true
	p.logger.Info("mqtt connection established")
}

func (p *Publisher) onConnectionLost(_ MQTT.Client, err error) {
	p.connected = false
	p.logger.Error("mqtt connection lost", "error", err.Error())
}

// PublishMeasurement publishes a measurement to "<prefix>/measurements".
func (p *Publisher) PublishMeasurement(ctx context.Context, m *cellular.Measurement) error {
	return p.publish(ctx, "measurements", m)
}

// PublishThreat publishes a threat to "<prefix>/threats".
func (p *Publisher) PublishThreat(ctx context.Context, t *cellular.Threat) error {
	return p.publish(ctx, "threats", t)
}

func (p *Publisher) publish(ctx context.Context, subtopic string, payload interface{}) error {
	if !p.config.Enabled || !p.connected {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mqttpub: rate limit wait: %w", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mqttpub: marshal: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", p.config.TopicPrefix, subtopic)
	token := p.client.Publish(topic, byte(p.config.QoS), p.config.Retain, data)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqttpub: publish to %s: %w", topic, token.Error())
	}

	p.logger.Debug("mqtt message published", "topic", topic, "size", len(data))
	return nil
}

// IsConnected reports whether the underlying client reports connected.
func (p *Publisher) IsConnected() bool {
	return p.connected && p.client != nil && p.client.IsConnected()
}
