package trade

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Purchase orders
// ---------------------------------------------------------------------------

// SharedCostInput is an order-level cost
type SharedCostInput struct {
	Name   string          `json:"name" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// CreatePurchaseOrderRequest represents a request to create a purchase order
type CreatePurchaseOrderRequest struct {
	SupplierRef string                         `json:"supplier_ref" binding:"required,max=200"`
	ExpectedAt  *time.Time                     `json:"expected_at"`
	SharedCosts []SharedCostInput              `json:"shared_costs" binding:"omitempty,dive"`
	Lines       []CreatePurchaseOrderLineInput `json:"lines" binding:"required,min=1,dive"`
}

// CreatePurchaseOrderLineInput represents a line in a create request
type CreatePurchaseOrderLineInput struct {
	ProductID     uuid.UUID       `json:"product_id" binding:"required"`
	OrderedQty    decimal.Decimal `json:"ordered_qty" binding:"required"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	Packaging     decimal.Decimal `json:"packaging_cost"`
	Logistics     decimal.Decimal `json:"logistics_cost"`
	Customs       decimal.Decimal `json:"customs_cost"`
	Extra         decimal.Decimal `json:"extra_cost"`
}

// ReceiveLineInput is the quantity actually received for one line
type ReceiveLineInput struct {
	LineID   uuid.UUID       `json:"line_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
}

// ReceivePurchaseOrderRequest lists the received quantities; an empty list
// receives every pending line in full
type ReceivePurchaseOrderRequest struct {
	Lines []ReceiveLineInput `json:"lines" binding:"omitempty,dive"`
}

// Quantities converts the request into the line -> quantity map
func (r ReceivePurchaseOrderRequest) Quantities() map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal, len(r.Lines))
	for _, l := range r.Lines {
		out[l.LineID] = out[l.LineID].Add(l.Quantity)
	}
	return out
}

// PurchaseOrderListFilter represents filter options for purchase order lists
type PurchaseOrderListFilter struct {
	Search   string `form:"search"`
	Status   string `form:"status" binding:"omitempty,oneof=draft ordered shipped received cancelled"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// PurchaseOrderResponse represents a purchase order in API responses
type PurchaseOrderResponse struct {
	ID          uuid.UUID                   `json:"id"`
	SupplierRef string                      `json:"supplier_ref"`
	Status      string                      `json:"status"`
	OrderedAt   *time.Time                  `json:"ordered_at,omitempty"`
	ExpectedAt  *time.Time                  `json:"expected_at,omitempty"`
	ReceivedAt  *time.Time                  `json:"received_at,omitempty"`
	SharedCosts []trade.SharedCost          `json:"shared_costs"`
	Lines       []PurchaseOrderLineResponse `json:"lines,omitempty"`
	TotalCost   decimal.Decimal             `json:"total_cost"`
	Version     int                         `json:"version"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// PurchaseOrderLineResponse represents a purchase order line
type PurchaseOrderLineResponse struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"product_id"`
	OrderedQty    decimal.Decimal `json:"ordered_qty"`
	ReceivedQty   decimal.Decimal `json:"received_qty"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	Packaging     decimal.Decimal `json:"packaging_cost"`
	Logistics     decimal.Decimal `json:"logistics_cost"`
	Customs       decimal.Decimal `json:"customs_cost"`
	Extra         decimal.Decimal `json:"extra_cost"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	Status        string          `json:"status"`
}

// ToPurchaseOrderResponse converts a domain PurchaseOrder
func ToPurchaseOrderResponse(o *trade.PurchaseOrder) PurchaseOrderResponse {
	lines := make([]PurchaseOrderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = PurchaseOrderLineResponse{
			ID:            l.ID,
			ProductID:     l.ProductID,
			OrderedQty:    l.OrderedQty,
			ReceivedQty:   l.ReceivedQty,
			PurchasePrice: l.PurchasePrice,
			Packaging:     l.Costs.Packaging,
			Logistics:     l.Costs.Logistics,
			Customs:       l.Costs.Customs,
			Extra:         l.Costs.Extra,
			UnitCost:      l.UnitCost,
			TotalCost:     l.TotalCost,
			Status:        string(l.Status),
		}
	}
	sharedCosts := o.SharedCosts
	if sharedCosts == nil {
		sharedCosts = []trade.SharedCost{}
	}
	return PurchaseOrderResponse{
		ID:          o.ID,
		SupplierRef: o.SupplierRef,
		Status:      o.Status.String(),
		OrderedAt:   o.OrderedAt,
		ExpectedAt:  o.ExpectedAt,
		ReceivedAt:  o.ReceivedAt,
		SharedCosts: sharedCosts,
		Lines:       lines,
		TotalCost:   o.TotalReceivedCost(),
		Version:     o.Version,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

// ReceivedLineResponse is the landed cost of one received line
type ReceivedLineResponse struct {
	LineID      uuid.UUID       `json:"line_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ReceivedQty decimal.Decimal `json:"received_qty"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	LotID       uuid.UUID       `json:"lot_id"`
}

// ReceiptResponse is the result of receiving a purchase order
type ReceiptResponse struct {
	OrderID              uuid.UUID              `json:"order_id"`
	Status               string                 `json:"status"`
	SharedPerItem        decimal.Decimal        `json:"shared_per_item"`
	Lines                []ReceivedLineResponse `json:"lines"`
	SkippedLines         []uuid.UUID            `json:"skipped_lines,omitempty"`
	TotalCost            decimal.Decimal        `json:"total_cost"`
	FinanceTransactionID *uuid.UUID             `json:"finance_transaction_id,omitempty"`
}

// UnreceiveResponse is the result of reversing a receipt
type UnreceiveResponse struct {
	OrderID          uuid.UUID   `json:"order_id"`
	Status           string      `json:"status"`
	RevertedLines    []uuid.UUID `json:"reverted_lines"`
	LotsRemoved      int64       `json:"lots_removed"`
	PaymentsReversed int64       `json:"payments_reversed"`
}

// ---------------------------------------------------------------------------
// Sales
// ---------------------------------------------------------------------------

// FeeInput is a fee line item on a sale
type FeeInput struct {
	Name   string          `json:"name" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// CreateSaleRequest represents a request to record a sale
type CreateSaleRequest struct {
	Channel        string          `json:"channel" binding:"required,max=50"`
	ChannelOrderID string          `json:"channel_order_id" binding:"max=100"`
	ChannelSKU     string          `json:"channel_sku" binding:"max=100"`
	ProductID      *uuid.UUID      `json:"product_id"`
	Quantity       decimal.Decimal `json:"quantity" binding:"required"`
	PricePerUnit   decimal.Decimal `json:"price_per_unit"`
	Fees           []FeeInput      `json:"fees" binding:"omitempty,dive"`
	Status         string          `json:"status" binding:"omitempty,oneof=active delivered returned"`
	CostingMethod  string          `json:"costing_method" binding:"omitempty,oneof=weighted_average fifo"`
	SoldAt         *time.Time      `json:"sold_at"`
	Note           string          `json:"note" binding:"max=1000"`
	RecordedBy     string          `json:"-"`
}

// WriteOffRequest represents a request to write off stock
type WriteOffRequest struct {
	ProductID  uuid.UUID       `json:"product_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
	Reason     string          `json:"reason" binding:"required,max=500"`
	RecordedBy string          `json:"-"`
}

// SaleResponse represents a sale in API responses
type SaleResponse struct {
	ID             uuid.UUID                `json:"id"`
	Channel        string                   `json:"channel"`
	ChannelOrderID string                   `json:"channel_order_id"`
	ChannelSKU     string                   `json:"channel_sku"`
	ProductID      *uuid.UUID               `json:"product_id,omitempty"`
	Quantity       decimal.Decimal          `json:"quantity"`
	PricePerUnit   decimal.Decimal          `json:"price_per_unit"`
	Revenue        decimal.Decimal          `json:"revenue"`
	UnitCOGS       decimal.Decimal          `json:"unit_cogs"`
	TotalCOGS      decimal.Decimal          `json:"total_cogs"`
	Fees           []trade.Fee              `json:"fees"`
	TotalFees      decimal.Decimal          `json:"total_fees"`
	Profit         decimal.Decimal          `json:"profit"`
	CostingMethod  strategy.CostMethod      `json:"costing_method"`
	LotAllocations []strategy.LotAllocation `json:"lot_allocations,omitempty"`
	Status         string                   `json:"status"`
	SoldAt         time.Time                `json:"sold_at"`
	ReturnedAt     *time.Time               `json:"returned_at,omitempty"`
	Note           string                   `json:"note,omitempty"`
	Version        int                      `json:"version"`
}

// ToSaleResponse converts a domain Sale
func ToSaleResponse(s *trade.Sale) SaleResponse {
	fees := s.Fees
	if fees == nil {
		fees = []trade.Fee{}
	}
	return SaleResponse{
		ID:             s.ID,
		Channel:        s.Channel,
		ChannelOrderID: s.ChannelOrderID,
		ChannelSKU:     s.ChannelSKU,
		ProductID:      s.ProductID,
		Quantity:       s.Quantity,
		PricePerUnit:   s.PricePerUnit,
		Revenue:        s.Revenue,
		UnitCOGS:       s.UnitCOGS,
		TotalCOGS:      s.TotalCOGS,
		Fees:           fees,
		TotalFees:      s.TotalFees(),
		Profit:         s.Profit(),
		CostingMethod:  s.CostingMethod,
		LotAllocations: s.LotAllocations,
		Status:         s.Status.String(),
		SoldAt:         s.SoldAt,
		ReturnedAt:     s.ReturnedAt,
		Note:           s.Note,
		Version:        s.Version,
	}
}

// SaleResultResponse is the result of a sale workflow
type SaleResultResponse struct {
	Sale                 SaleResponse    `json:"sale"`
	Shortfall            decimal.Decimal `json:"shortfall"`
	FinanceTransactionID *uuid.UUID      `json:"finance_transaction_id,omitempty"`
}
