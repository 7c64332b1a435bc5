// Package events publishes account domain events for out-of-process
// consumers such as the mailer that delivers password reset links.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"socialize/internal/metrics"

	"github.com/segmentio/kafka-go"
)

const TypePasswordResetRequested = "password_reset_requested"

// Event is the envelope written to the topic.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type PasswordResetRequested struct {
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	ResetURL  string    `json:"reset_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Publisher is the interface used by services to publish events.
type Publisher interface {
	Publish(ctx context.Context, key string, event Event) error
	Close() error
}

// Writer is the subset of kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writer Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &KafkaProducer{writer: w}
}

func NewKafkaProducerWithWriter(w Writer) *KafkaProducer {
	return &KafkaProducer{writer: w}
}

// Publish marshals event to JSON and writes it keyed by key, so events for
// the same account land on the same partition.
func (p *KafkaProducer) Publish(ctx context.Context, key string, event Event) error {
	b, err := json.Marshal(event)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(event.Type, "error").Inc()
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b}); err != nil {
		metrics.EventsPublished.WithLabelValues(event.Type, "error").Inc()
		return fmt.Errorf("write %s event: %w", event.Type, err)
	}
	metrics.EventsPublished.WithLabelValues(event.Type, "ok").Inc()
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// LogPublisher writes events to the logger instead of a broker. It is used
// when no kafka brokers are configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, key string, event Event) error {
	p.logger.InfoContext(ctx, "event published", "type", event.Type, "key", key, "payload", event.Payload)
	metrics.EventsPublished.WithLabelValues(event.Type, "logged").Inc()
	return nil
}

func (p *LogPublisher) Close() error { return nil }
