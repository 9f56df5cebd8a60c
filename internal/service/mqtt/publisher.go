// Package mqtt publishes evidence notices to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"birdcam/internal/config"
	"birdcam/internal/logger"
	"birdcam/internal/model"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	qos            = 1
)

// client is the part of the paho client the publisher needs.
type client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Publisher sends one JSON notice per evidence image to "<topic>/<class>".
type Publisher struct {
	client client
	topic  string
	logger *logger.Logger
}

// NewPublisher builds a publisher for cfg. Call Connect before use.
func NewPublisher(cfg config.MQTTConfig, logger *logger.Logger) *Publisher {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info("📨 MQTT connected to %s", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warning("MQTT connection lost, reconnecting: %v", err)
	})

	return newPublisher(paho.NewClient(opts), cfg.Topic, logger)
}

func newPublisher(c client, topic string, logger *logger.Logger) *Publisher {
	return &Publisher{client: c, topic: strings.TrimSuffix(topic, "/"), logger: logger}
}

// Connect waits for the first connection to the broker.
func (p *Publisher) Connect(ctx context.Context) error {
	token := p.client.Connect()
	if err := wait(ctx, token, connectTimeout); err != nil {
		return errors.Wrap(err, "mqtt connect failed")
	}
	return nil
}

// Name identifies the listener in logs and metrics.
func (p *Publisher) Name() string {
	return "mqtt"
}

// Topic returns the topic a notice for class is published to.
func (p *Publisher) Topic(class string) string {
	return p.topic + "/" + strings.ReplaceAll(class, " ", "_")
}

// OnEvidence publishes the notice for evidence.
func (p *Publisher) OnEvidence(ctx context.Context, evidence model.Evidence) error {
	payload, err := json.Marshal(evidence.Notice())
	if err != nil {
		return errors.Wrap(err, "failed to marshal evidence notice")
	}

	topic := p.Topic(evidence.Event.Class.Name)
	if err := wait(ctx, p.client.Publish(topic, qos, false, payload), publishTimeout); err != nil {
		return errors.Wrapf(err, "mqtt publish to %s failed", topic)
	}
	p.logger.Debug("Published %s to %s (%d bytes)", evidence.Name, topic, len(payload))
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

func wait(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errors.New("timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}
