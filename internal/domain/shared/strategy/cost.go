package strategy

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostMethod represents the inventory costing method
type CostMethod string

const (
	CostMethodWeightedAverage CostMethod = "weighted_average"
	CostMethodFIFO            CostMethod = "fifo"
	// CostMethodNone marks sales without a product reference
	CostMethodNone CostMethod = "none"
)

// String returns the string representation of the cost method
func (m CostMethod) String() string {
	return string(m)
}

// IsValid reports whether m names a pricing policy
func (m CostMethod) IsValid() bool {
	switch m {
	case CostMethodWeightedAverage, CostMethodFIFO, CostMethodNone:
		return true
	default:
		return false
	}
}

// LotSnapshot is the read-only view of a lot that costing policies work on
type LotSnapshot struct {
	ID           uuid.UUID
	InitialQty   decimal.Decimal
	RemainingQty decimal.Decimal
	UnitCost     decimal.Decimal
	ReceivedAt   time.Time
	CreatedAt    time.Time
}

// LotAllocation is the quantity taken from one lot
type LotAllocation struct {
	LotID    uuid.UUID       `json:"lot_id"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Cost     decimal.Decimal `json:"cost"`
}

// ConsumptionPlan is the outcome of pricing a quantity against a set of lots.
// Shortfall > 0 means lots could not cover the request; it is not an error.
type ConsumptionPlan struct {
	Method      CostMethod
	Requested   decimal.Decimal
	Allocated   decimal.Decimal
	Shortfall   decimal.Decimal
	UnitCost    decimal.Decimal
	TotalCost   decimal.Decimal
	Allocations []LotAllocation
}

// HasShortfall reports whether the plan left part of the request unpriced
func (p ConsumptionPlan) HasShortfall() bool {
	return p.Shortfall.IsPositive()
}

// CostingPolicy prices a quantity of a product from its lots
type CostingPolicy interface {
	Strategy
	// Method returns the costing method used by this policy
	Method() CostMethod
	// AverageCost returns the receipt-weighted unit cost of the lots,
	// zero when there are no receipts
	AverageCost(lots []LotSnapshot) decimal.Decimal
	// Plan prices quantity against lots without mutating them
	Plan(lots []LotSnapshot, quantity decimal.Decimal) ConsumptionPlan
	// ConsumesLots reports whether committing a plan must decrement lots
	ConsumesLots() bool
}

// SortLots returns a copy of lots in FIFO order: receipt time ascending, then
// creation order, then id so the order is total.
func SortLots(lots []LotSnapshot) []LotSnapshot {
	sorted := make([]LotSnapshot, len(lots))
	copy(sorted, lots)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.Before(b.ReceivedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return sorted
}
