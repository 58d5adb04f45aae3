package events

import (
	"context"
	"encoding/json"
	"fmt"
	"promo-redemption/internal/model"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// Header keys set on every event message
const (
	HeaderEventType = "event-type"
	HeaderEventID   = "event-id"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter creates a Kafka writer that waits for all in-sync replicas,
// keyed by order id so redeliveries of one order land on one partition.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// KafkaPublisher publishes PromoCodeAppliedEvents to Kafka
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher over writer
func NewKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Publish writes one event and returns once the brokers acknowledged it
func (p *KafkaPublisher) Publish(ctx context.Context, event *model.PromoCodeAppliedEvent) error {
	msg, err := NewPromoCodeAppliedMessage(ctx, event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to produce PromoCodeApplied event %s: %w", event.EventID, err)
	}
	return nil
}

// Close flushes and closes the underlying writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewPromoCodeAppliedMessage encodes an event as a Kafka message carrying the
// trace context of ctx in its headers.
func NewPromoCodeAppliedMessage(ctx context.Context, event *model.PromoCodeAppliedEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal PromoCodeApplied event: %w", err)
	}

	headers := HeaderCarrier{
		{Key: HeaderEventType, Value: []byte(model.EventTypePromoCodeApplied)},
		{Key: HeaderEventID, Value: []byte(event.EventID)},
	}
	otel.GetTextMapPropagator().Inject(ctx, &headers)

	return kafka.Message{
		Key:     []byte(event.OrderID),
		Value:   value,
		Headers: headers,
		Time:    event.CreatedAt,
	}, nil
}
