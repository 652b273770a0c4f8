// Package events publishes task and review lifecycle events to Kafka.
//
// Publishing is best-effort: a broker outage must never fail the pipeline
// that triggered the event, so errors are logged and swallowed at the call
// sites via PublishLogged.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/hgj2025/cityinfo-sub001/internal/config"
	"github.com/hgj2025/cityinfo-sub001/internal/domain"
)

// Publisher emits lifecycle events.
type Publisher interface {
	// Publish sends one event. Implementations must be safe for concurrent
	// use.
	Publish(ctx context.Context, event *domain.Event) error

	// Close releases the underlying transport.
	Close() error
}

// messageWriter is the subset of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes events to a single Kafka topic, keyed by
// aggregate ID so events for one task or review item stay ordered within a
// partition.
type KafkaPublisher struct {
	writer messageWriter
	logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher over the configured topic.
func NewKafkaPublisher(cfg config.KafkaConfig, logger zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaPublisher{
		writer: writer,
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Publish sends one event to the topic.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.Event) error {
	msg, err := buildMessage(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.EventType, err)
	}

	p.logger.Debug().
		Str("event_type", event.EventType).
		Str("aggregate_id", event.AggregateID).
		Msg("event published")

	return nil
}

// Close flushes and closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// buildMessage serializes an event into a Kafka message keyed by aggregate
// ID.
func buildMessage(event *domain.Event) (kafka.Message, error) {
	if event == nil {
		return kafka.Message{}, fmt.Errorf("event cannot be nil")
	}
	if event.EventType == "" {
		return kafka.Message{}, fmt.Errorf("event type is required")
	}
	if event.AggregateID == "" {
		return kafka.Message{}, fmt.Errorf("aggregate ID is required")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}, nil
}

// PublishLogged publishes the event and logs instead of returning on
// failure. Used by pipeline code where event delivery must not affect the
// task outcome.
func PublishLogged(ctx context.Context, pub Publisher, event *domain.Event, logger zerolog.Logger) {
	if pub == nil || event == nil {
		return
	}
	if err := pub.Publish(ctx, event); err != nil {
		logger.Error().Err(err).
			Str("event_type", event.EventType).
			Str("aggregate_id", event.AggregateID).
			Msg("failed to publish event")
	}
}

// NopPublisher discards all events. Used when Kafka is disabled.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(context.Context, *domain.Event) error { return nil }

// Close is a no-op.
func (NopPublisher) Close() error { return nil }
