package event

import (
	"context"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// LogPublisher records events in the structured log. It is the publisher
// when Kafka is disabled.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(l *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: l.Named("events")}
}

func (p *LogPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	log := logger.WithLogger(ctx, p.logger)
	for _, e := range events {
		log.Info("ledger event",
			zap.String("event_id", e.EventID().String()),
			zap.String("event_type", e.EventType()),
			zap.String("aggregate_type", e.AggregateType()),
			zap.String("aggregate_id", e.AggregateID().String()),
			zap.Time("occurred_at", e.OccurredAt()),
		)
	}
	return nil
}

var _ shared.EventPublisher = (*LogPublisher)(nil)
