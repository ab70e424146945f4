package finance

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SummaryFilter selects ledger entries for aggregation. Channel restricts to
// entries linked to sales of that channel.
type SummaryFilter struct {
	From       *time.Time
	To         *time.Time
	Channel    string
	RecordedBy string
}

// TypeTotal is the aggregate of one (direction, type) group
type TypeTotal struct {
	Direction Direction
	Type      TransactionType
	Amount    decimal.Decimal
	Count     int64
}

// TransactionRepository defines the interface for ledger persistence.
// There is no update: entries are appended and only soft-deleted on reversal.
type TransactionRepository interface {
	// Append inserts a ledger entry
	Append(ctx context.Context, tx *Transaction) error

	// FindAll lists live entries matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]*Transaction, int64, error)

	// FindBySale returns live entries linked to a sale
	FindBySale(ctx context.Context, saleID uuid.UUID) ([]*Transaction, error)

	// FindByPurchaseOrder returns live entries of a type linked to an order
	FindByPurchaseOrder(ctx context.Context, orderID uuid.UUID, txType TransactionType) ([]*Transaction, error)

	// SoftDeleteByPurchaseOrder reverses every live entry of a type linked to
	// an order and returns how many were removed
	SoftDeleteByPurchaseOrder(ctx context.Context, orderID uuid.UUID, txType TransactionType) (int64, error)

	// Summarize sums live entries grouped by direction and type
	Summarize(ctx context.Context, filter SummaryFilter) ([]TypeTotal, error)
}
