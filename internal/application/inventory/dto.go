package inventory

import (
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotResponse represents a lot in API responses
type LotResponse struct {
	ID                  uuid.UUID       `json:"id"`
	ProductID           uuid.UUID       `json:"product_id"`
	PurchaseOrderLineID *uuid.UUID      `json:"purchase_order_line_id,omitempty"`
	Source              string          `json:"source"`
	InitialQty          decimal.Decimal `json:"initial_qty"`
	RemainingQty        decimal.Decimal `json:"remaining_qty"`
	UnitCost            decimal.Decimal `json:"unit_cost"`
	RemainingValue      decimal.Decimal `json:"remaining_value"`
	Currency            string          `json:"currency"`
	ReceivedAt          time.Time       `json:"received_at"`
	CreatedAt           time.Time       `json:"created_at"`
}

// ToLotResponse converts a domain Lot
func ToLotResponse(l *inventory.Lot) LotResponse {
	return LotResponse{
		ID:                  l.ID,
		ProductID:           l.ProductID,
		PurchaseOrderLineID: l.PurchaseOrderLineID,
		Source:              l.Source.String(),
		InitialQty:          l.InitialQty,
		RemainingQty:        l.RemainingQty,
		UnitCost:            l.UnitCost,
		RemainingValue:      l.RemainingValue().Round(2),
		Currency:            l.Currency,
		ReceivedAt:          l.ReceivedAt,
		CreatedAt:           l.CreatedAt,
	}
}

// ToLotResponses converts a slice of domain Lots
func ToLotResponses(lots []*inventory.Lot) []LotResponse {
	out := make([]LotResponse, len(lots))
	for i, l := range lots {
		out[i] = ToLotResponse(l)
	}
	return out
}

// CreateOpeningBalanceRequest creates a synthetic lot
type CreateOpeningBalanceRequest struct {
	ProductID  uuid.UUID       `json:"product_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
	UnitCost   decimal.Decimal `json:"unit_cost" binding:"required"`
	Source     string          `json:"source" binding:"omitempty,oneof=opening_balance adjustment"`
	ReceivedAt *time.Time      `json:"received_at"`
}

// AvailabilityResponse is the derived stock view for a product
type AvailabilityResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Received  decimal.Decimal `json:"received"`
	Synthetic decimal.Decimal `json:"synthetic"`
	Consumed  decimal.Decimal `json:"consumed"`
	Available decimal.Decimal `json:"available"`
}

// CostQuoteResponse is a read-only costing of a quantity
type CostQuoteResponse struct {
	ProductID           uuid.UUID                `json:"product_id"`
	Method              strategy.CostMethod      `json:"method"`
	Quantity            decimal.Decimal          `json:"quantity"`
	WeightedAverageCost decimal.Decimal          `json:"weighted_average_cost"`
	UnitCost            decimal.Decimal          `json:"unit_cost"`
	TotalCost           decimal.Decimal          `json:"total_cost"`
	Shortfall           decimal.Decimal          `json:"shortfall"`
	Allocations         []strategy.LotAllocation `json:"allocations"`
}
