package inventory

import (
	"context"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotRepository defines the interface for lot persistence.
// Soft-deleted lots are invisible to every finder.
type LotRepository interface {
	// FindByID finds a lot by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Lot, error)

	// FindByProduct returns all lots of a product in FIFO order
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]*Lot, error)

	// FindByLines returns the lots created by the given purchase order lines
	FindByLines(ctx context.Context, lineIDs []uuid.UUID) ([]*Lot, error)

	// FindAll lists lots matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]*Lot, int64, error)

	// Save creates or updates a lot
	Save(ctx context.Context, lot *Lot) error

	// SaveBatch creates lots in one statement
	SaveBatch(ctx context.Context, lots []*Lot) error

	// UpdateRemaining sets remaining_qty to next only if it still equals
	// expected. Returns shared.ErrConcurrencyConflict when the row moved.
	UpdateRemaining(ctx context.Context, id uuid.UUID, expected, next decimal.Decimal) error

	// ZeroAndDeleteByLines drains and soft-deletes the lots of the given lines,
	// returning the number of lots affected
	ZeroAndDeleteByLines(ctx context.Context, lineIDs []uuid.UUID) (int64, error)

	// ProductIDs returns every product that owns at least one lot
	ProductIDs(ctx context.Context) ([]uuid.UUID, error)

	// SumSyntheticInitial sums initial quantity of non-purchase lots per product
	SumSyntheticInitial(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
}
