package events

import (
	"context"
	"encoding/json"
	"errors"
	"promo-redemption/internal/analytics"
	"promo-redemption/internal/metrics"
	"promo-redemption/internal/model"
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRetryBackoff = time.Second
	defaultMaxAttempts  = 10
)

var consumerTracer = otel.Tracer("promo-redemption/events")

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventHandler processes one decoded PromoCodeAppliedEvent
type EventHandler interface {
	Handle(ctx context.Context, event *model.PromoCodeAppliedEvent) error
}

// NewReader creates a consumer group reader with manual offset commits
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
}

// Consumer feeds PromoCodeApplied messages to a handler. An offset is
// committed only after the handler succeeded or the message was judged
// unprocessable, which gives at-least-once delivery to the handler.
type Consumer struct {
	reader       messageReader
	handler      EventHandler
	retryBackoff time.Duration
	maxAttempts  int
}

// ConsumerOption customizes a Consumer
type ConsumerOption func(*Consumer)

// WithMaxAttempts caps handler attempts per message. Once exhausted the
// message is logged, counted as dropped and committed. n <= 0 retries forever.
func WithMaxAttempts(n int) ConsumerOption {
	return func(c *Consumer) { c.maxAttempts = n }
}

// WithRetryBackoff sets the pause between handler attempts
func WithRetryBackoff(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if d > 0 {
			c.retryBackoff = d
		}
	}
}

// NewConsumer creates a new consumer
func NewConsumer(reader messageReader, handler EventHandler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:       reader,
		handler:      handler,
		retryBackoff: defaultRetryBackoff,
		maxAttempts:  defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes until ctx is cancelled
func (c *Consumer) Run(ctx context.Context) error {
	zlog.Info().Msg("PromoCodeApplied consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				zlog.Info().Msg("PromoCodeApplied consumer shutting down")
				return nil
			}
			zlog.Error().Err(err).Msg("could not fetch message, retrying")
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}

		if !c.process(ctx, msg) {
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			zlog.Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit message")
		}
	}
}

// Close closes the underlying reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// process handles msg, retrying transient failures up to maxAttempts. It
// returns false only when ctx was cancelled before the message was handled.
func (c *Consumer) process(parentCtx context.Context, msg kafka.Message) bool {
	headers := HeaderCarrier(msg.Headers)
	ctx := otel.GetTextMapPropagator().Extract(parentCtx, &headers)
	ctx, span := consumerTracer.Start(ctx, "PromoCodeApplied.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		))
	defer span.End()

	logger := zlog.With().
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Logger()
	ctx = logger.WithContext(ctx)

	var event model.PromoCodeAppliedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		metrics.DroppedEventsTotal.WithLabelValues("undecodable").Inc()
		span.SetStatus(codes.Error, "undecodable message")
		logger.Error().Err(err).Msg("failed to unmarshal PromoCodeApplied event, skipping")
		return true
	}
	span.SetAttributes(attribute.String("event.id", event.EventID))

	for attempt := 1; ; attempt++ {
		err := c.handler.Handle(ctx, &event)
		if err == nil {
			return true
		}
		if errors.Is(err, analytics.ErrInvalidEvent) {
			metrics.DroppedEventsTotal.WithLabelValues("invalid").Inc()
			span.SetStatus(codes.Error, err.Error())
			logger.Error().Err(err).Msg("unprocessable PromoCodeApplied event, skipping")
			return true
		}
		span.RecordError(err)

		if c.maxAttempts > 0 && attempt >= c.maxAttempts {
			metrics.DroppedEventsTotal.WithLabelValues("attempts_exhausted").Inc()
			span.SetStatus(codes.Error, err.Error())
			logger.Error().Err(err).
				Str("event_id", event.EventID).
				Int("attempts", attempt).
				Msg("giving up on PromoCodeApplied event, skipping")
			return true
		}

		metrics.HandleRetriesTotal.Inc()
		logger.Error().Err(err).
			Str("event_id", event.EventID).
			Int("attempt", attempt).
			Msg("failed to handle PromoCodeApplied event, retrying")
		if !c.sleep(parentCtx) {
			return false
		}
	}
}

func (c *Consumer) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.retryBackoff):
		return true
	}
}
