package ledger

import (
	"context"

	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// PublishCommitted hands events to the publisher once their unit of work has
// committed. Publishing is best effort: a failure is logged and never undoes
// or fails the workflow.
func PublishCommitted(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, events []shared.DomainEvent) {
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.Warn("failed to publish ledger events",
			zap.Int("count", len(events)),
			zap.String("first_type", events[0].EventType()),
			zap.Error(err))
	}
}
