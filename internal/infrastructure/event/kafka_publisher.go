package event

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// MessageWriter is the slice of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes ledger events to one topic, keyed by aggregate ID so
// every event of a sale or order lands on the same partition in order.
type KafkaPublisher struct {
	writer       MessageWriter
	serializer   *EventSerializer
	propagator   propagation.TextMapPropagator
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewKafkaWriter builds the producer for the configured brokers and topic
func NewKafkaWriter(cfg config.EventsConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
		RequiredAcks: kafka.RequireAll,
	}
}

func NewKafkaPublisher(writer MessageWriter, serializer *EventSerializer, writeTimeout time.Duration, logger *zap.Logger) *KafkaPublisher {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &KafkaPublisher{
		writer:       writer,
		serializer:   serializer,
		propagator:   otel.GetTextMapPropagator(),
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Publish writes all events in one batch. The current trace context travels
// in the message headers.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	ctx, span := telemetry.StartSpan(ctx, "event.kafka.publish",
		telemetry.WithAttribute("messaging.batch.message_count", len(events)))
	defer span.End()

	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := p.serializer.Serialize(e)
		if err != nil {
			telemetry.RecordError(span, err)
			return err
		}
		carrier := headerCarrier{}
		p.propagator.Inject(ctx, &carrier)
		headers := append([]kafka.Header{{Key: "event_type", Value: []byte(e.EventType())}}, carrier...)
		msgs = append(msgs, kafka.Message{
			Key:     []byte(e.AggregateID().String()),
			Value:   value,
			Headers: headers,
			Time:    e.OccurredAt(),
		})
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, msgs...); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("write %d ledger events: %w", len(msgs), err)
	}

	p.logger.Debug("ledger events published", zap.Int("count", len(msgs)))
	telemetry.SetOK(span)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// headerCarrier adapts kafka headers to propagation.TextMapCarrier
type headerCarrier []kafka.Header

func (c *headerCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, len(*c))
	for i, h := range *c {
		keys[i] = h.Key
	}
	return keys
}

var _ shared.EventPublisher = (*KafkaPublisher)(nil)
