package trade

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	_ shared.AggregateRoot = (*PurchaseOrder)(nil)
	_ shared.AggregateRoot = (*Sale)(nil)
)

// PurchaseOrderRepository defines the interface for purchase order persistence.
// Lines are loaded and saved with their order.
type PurchaseOrderRepository interface {
	// FindByID finds a purchase order with its lines; soft-deleted orders are not found
	FindByID(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)

	// FindAll lists purchase orders (without lines) matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]*PurchaseOrder, int64, error)

	// Create inserts a new order and its lines
	Create(ctx context.Context, order *PurchaseOrder) error

	// SaveWithLock updates the order and its lines if the stored version still
	// matches, then bumps the version
	SaveWithLock(ctx context.Context, order *PurchaseOrder) error

	// SumReceivedQty sums received quantity over non-cancelled lines of live
	// orders, per product
	SumReceivedQty(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
}

// SaleQuery selects sales for reports. From and To bound sold_at inclusively;
// SoldBefore bounds it exclusively.
type SaleQuery struct {
	From          *time.Time
	To            *time.Time
	SoldBefore    *time.Time
	Channel       string
	RecordedBy    string
	ProductID     *uuid.UUID
	ZeroCostOnly  bool
	WithProduct   bool
	ExcludeStatus []SaleStatus
	// ExcludeReturnedBy drops sales returned at or before this instant;
	// sales returned later are kept
	ExcludeReturnedBy *time.Time
	// ReturnedFrom and ReturnedTo select only sales returned in that range
	ReturnedFrom *time.Time
	ReturnedTo   *time.Time
}

// SaleRepository defines the interface for sale persistence
type SaleRepository interface {
	// FindByID finds a sale by ID; soft-deleted sales are not found
	FindByID(ctx context.Context, id uuid.UUID) (*Sale, error)

	// FindAll lists sales matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]*Sale, int64, error)

	// Query returns every sale matching q ordered by sold_at, id
	Query(ctx context.Context, q SaleQuery) ([]*Sale, error)

	// Create inserts a sale. Returns shared.ErrAlreadyExists when a live sale
	// already holds the same channel, channel order and SKU.
	Create(ctx context.Context, sale *Sale) error

	// SaveWithLock updates the sale if the stored version still matches
	SaveWithLock(ctx context.Context, sale *Sale) error

	// CountConsumingByProducts counts active or delivered sales per product
	CountConsumingByProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int64, error)

	// SumConsumedQty sums quantity of active or delivered sales per product
	SumConsumedQty(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
}
