// Package publish forwards successful readings to an MQTT broker.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/speedwagon-io/co2hook/internal/config"
	"github.com/speedwagon-io/co2hook/internal/model"
)

// client is the subset of mqtt.Client used for publishing.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
	IsConnectionOpen() bool
}

type MQTTPublisher struct {
	log      *slog.Logger
	client   client
	topic    string
	qos      byte
	retained bool
	timeout  time.Duration
}

// Connect dials the broker described by cfg.
func Connect(log *slog.Logger, cfg config.MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout)

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}

	log.Info("connected to mqtt broker", slog.String("broker", cfg.Broker))
	return newPublisher(log, c, cfg), nil
}

func newPublisher(log *slog.Logger, c client, cfg config.MQTTConfig) *MQTTPublisher {
	return &MQTTPublisher{
		log:      log.With(slog.String("component", "mqtt"), slog.String("topic", cfg.Topic)),
		client:   c,
		topic:    cfg.Topic,
		qos:      cfg.QoS,
		retained: cfg.Retained,
		timeout:  cfg.Timeout,
	}
}

func (p *MQTTPublisher) Publish(ctx context.Context, envelope *model.Envelope) error {
	payload, err := envelope.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	token := p.client.Publish(p.topic, p.qos, p.retained, payload)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("publish to %s timed out after %s", p.topic, p.timeout)
	case <-token.Done():
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}

	p.log.Debug("reading published", slog.String("id", envelope.ID), slog.Int("value", int(envelope.Value)))
	return nil
}

func (p *MQTTPublisher) Connected() bool {
	return p.client.IsConnectionOpen()
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
