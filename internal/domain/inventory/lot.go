package inventory

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotSource records how a lot entered the ledger
type LotSource string

const (
	LotSourcePurchase       LotSource = "purchase"
	LotSourceOpeningBalance LotSource = "opening_balance"
	LotSourceAdjustment     LotSource = "adjustment"
)

// IsValid checks if the source is a known LotSource
func (s LotSource) IsValid() bool {
	switch s {
	case LotSourcePurchase, LotSourceOpeningBalance, LotSourceAdjustment:
		return true
	}
	return false
}

// IsSynthetic reports whether the lot was created without a purchase receipt
func (s LotSource) IsSynthetic() bool {
	return s == LotSourceOpeningBalance || s == LotSourceAdjustment
}

// String returns the string representation of LotSource
func (s LotSource) String() string {
	return string(s)
}

// Lot is a discrete receipt of a product at a known unit cost.
// Invariant: 0 <= RemainingQty <= InitialQty.
type Lot struct {
	shared.BaseEntity
	ProductID           uuid.UUID
	PurchaseOrderLineID *uuid.UUID // nil for synthetic lots
	Source              LotSource
	InitialQty          decimal.Decimal
	RemainingQty        decimal.Decimal
	UnitCost            decimal.Decimal
	Currency            string
	ReceivedAt          time.Time
}

// NewLot creates a lot with remaining quantity equal to its initial quantity
func NewLot(
	productID uuid.UUID,
	lineID *uuid.UUID,
	source LotSource,
	quantity decimal.Decimal,
	unitCost decimal.Decimal,
	currency string,
	receivedAt time.Time,
) (*Lot, error) {
	if productID == uuid.Nil {
		return nil, shared.NewInvalidInputError("lot product cannot be empty")
	}
	if !source.IsValid() {
		return nil, shared.NewInvalidInputError(fmt.Sprintf("unknown lot source %q", source))
	}
	if source == LotSourcePurchase && (lineID == nil || *lineID == uuid.Nil) {
		return nil, shared.NewInvalidInputError("purchase lot requires a purchase order line")
	}
	if !quantity.IsPositive() {
		return nil, shared.NewInvalidInputError("lot quantity must be positive")
	}
	if unitCost.IsNegative() {
		return nil, shared.NewInvalidInputError("lot unit cost cannot be negative")
	}
	if currency == "" {
		currency = shared.DefaultCurrency
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	return &Lot{
		BaseEntity:          shared.NewBaseEntity(),
		ProductID:           productID,
		PurchaseOrderLineID: lineID,
		Source:              source,
		InitialQty:          quantity,
		RemainingQty:        quantity,
		UnitCost:            unitCost,
		Currency:            currency,
		ReceivedAt:          receivedAt,
	}, nil
}

// Consume takes quantity out of the lot
func (l *Lot) Consume(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return shared.NewInvalidInputError("consumed quantity must be positive")
	}
	if quantity.GreaterThan(l.RemainingQty) {
		return fmt.Errorf("%w: lot %s has %s remaining, cannot consume %s",
			shared.ErrInvalidInput, l.ID, l.RemainingQty, quantity)
	}
	l.RemainingQty = l.RemainingQty.Sub(quantity)
	l.UpdatedAt = time.Now()
	return nil
}

// Restore puts consumed quantity back, as when a sale that drew on the lot is returned
func (l *Lot) Restore(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return shared.NewInvalidInputError("restored quantity must be positive")
	}
	next := l.RemainingQty.Add(quantity)
	if next.GreaterThan(l.InitialQty) {
		return fmt.Errorf("%w: lot %s cannot hold more than %s",
			shared.ErrInvalidInput, l.ID, l.InitialQty)
	}
	l.RemainingQty = next
	l.UpdatedAt = time.Now()
	return nil
}

// IsExhausted reports whether nothing remains in the lot
func (l *Lot) IsExhausted() bool {
	return !l.RemainingQty.IsPositive()
}

// RemainingValue returns remaining quantity valued at the lot's unit cost
func (l *Lot) RemainingValue() decimal.Decimal {
	return l.RemainingQty.Mul(l.UnitCost)
}

// Snapshot returns the view used by costing policies
func (l *Lot) Snapshot() strategy.LotSnapshot {
	return strategy.LotSnapshot{
		ID:           l.ID,
		InitialQty:   l.InitialQty,
		RemainingQty: l.RemainingQty,
		UnitCost:     l.UnitCost,
		ReceivedAt:   l.ReceivedAt,
		CreatedAt:    l.CreatedAt,
	}
}

// Snapshots converts lots for a costing policy
func Snapshots(lots []*Lot) []strategy.LotSnapshot {
	out := make([]strategy.LotSnapshot, 0, len(lots))
	for _, l := range lots {
		out = append(out, l.Snapshot())
	}
	return out
}
