// Package publish fans appended batches out to an MQTT broker.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/i474232898/weather-tracker/internal/weather"
)

// Config holds MQTT connection settings.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

// Publisher sends batches to "{prefix}/current" and "{prefix}/forecast".
type Publisher struct {
	client mqtt.Client
	prefix string
	qos    byte
}

// Connect dials the broker and returns a ready Publisher.
func Connect(cfg Config) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Println("publish: connection established")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("publish: connection lost: %v", err)
	})
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	log.Printf("publish: connected to broker %s", cfg.Broker)

	return NewPublisher(client, cfg.TopicPrefix), nil
}

// NewPublisher wraps an already connected client.
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "weather"
	}
	return &Publisher{client: client, prefix: prefix, qos: 1}
}

// PublishCurrent publishes a batch of current observations as one JSON array.
func (p *Publisher) PublishCurrent(ctx context.Context, batch []weather.CurrentObservation) error {
	return p.publish(ctx, "current", batch)
}

// PublishForecast publishes a batch of forecasts as one JSON array.
func (p *Publisher) PublishForecast(ctx context.Context, batch []weather.ForecastObservation) error {
	return p.publish(ctx, "forecast", batch)
}

func (p *Publisher) publish(ctx context.Context, kind string, batch any) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal %s batch: %w", kind, err)
	}

	topic := p.prefix + "/" + kind
	token := p.client.Publish(topic, p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	log.Printf("publish: %s batch sent to %s (%d bytes)", kind, topic, len(payload))
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
	log.Println("publish: disconnected")
}
