package trade

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypePurchaseOrder = "PurchaseOrder"

// Event type constants
const (
	EventTypePurchaseOrderCreated    = "purchase_order.created"
	EventTypePurchaseOrderReceived   = "purchase_order.received"
	EventTypePurchaseOrderUnreceived = "purchase_order.unreceived"
	EventTypePurchaseOrderCancelled  = "purchase_order.cancelled"
)

// PurchaseOrderCreatedEvent is raised when a new purchase order is created
type PurchaseOrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID `json:"order_id"`
	SupplierRef string    `json:"supplier_ref"`
}

// NewPurchaseOrderCreatedEvent creates a new PurchaseOrderCreatedEvent
func NewPurchaseOrderCreatedEvent(order *PurchaseOrder) *PurchaseOrderCreatedEvent {
	return &PurchaseOrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseOrderCreated, AggregateTypePurchaseOrder, order.ID),
		OrderID:         order.ID,
		SupplierRef:     order.SupplierRef,
	}
}

// ReceivedLineInfo describes one costed line in a receipt event
type ReceivedLineInfo struct {
	LineID    uuid.UUID       `json:"line_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// PurchaseOrderReceivedEvent is raised when a receipt creates lots for an order
type PurchaseOrderReceivedEvent struct {
	shared.BaseDomainEvent
	OrderID       uuid.UUID          `json:"order_id"`
	SupplierRef   string             `json:"supplier_ref"`
	Lines         []ReceivedLineInfo `json:"lines"`
	SharedPerItem decimal.Decimal    `json:"shared_per_item"`
	TotalCost     decimal.Decimal    `json:"total_cost"`
}

// NewPurchaseOrderReceivedEvent creates a new PurchaseOrderReceivedEvent
func NewPurchaseOrderReceivedEvent(order *PurchaseOrder, receipt *Receipt) *PurchaseOrderReceivedEvent {
	lines := make([]ReceivedLineInfo, len(receipt.Lines))
	for i, l := range receipt.Lines {
		lines[i] = ReceivedLineInfo{
			LineID:    l.LineID,
			ProductID: l.ProductID,
			Quantity:  l.ReceivedQty,
			UnitCost:  l.UnitCost,
			TotalCost: l.TotalCost,
		}
	}
	return &PurchaseOrderReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseOrderReceived, AggregateTypePurchaseOrder, order.ID),
		OrderID:         order.ID,
		SupplierRef:     order.SupplierRef,
		Lines:           lines,
		SharedPerItem:   receipt.SharedPerItem,
		TotalCost:       receipt.TotalCost,
	}
}

// PurchaseOrderUnreceivedEvent is raised when a receipt is reversed
type PurchaseOrderUnreceivedEvent struct {
	shared.BaseDomainEvent
	OrderID       uuid.UUID   `json:"order_id"`
	RevertedLines []uuid.UUID `json:"reverted_lines"`
}

// NewPurchaseOrderUnreceivedEvent creates a new PurchaseOrderUnreceivedEvent
func NewPurchaseOrderUnreceivedEvent(order *PurchaseOrder, reverted []uuid.UUID) *PurchaseOrderUnreceivedEvent {
	return &PurchaseOrderUnreceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseOrderUnreceived, AggregateTypePurchaseOrder, order.ID),
		OrderID:         order.ID,
		RevertedLines:   reverted,
	}
}

// PurchaseOrderCancelledEvent is raised when a purchase order is cancelled
type PurchaseOrderCancelledEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID `json:"order_id"`
	SupplierRef string    `json:"supplier_ref"`
}

// NewPurchaseOrderCancelledEvent creates a new PurchaseOrderCancelledEvent
func NewPurchaseOrderCancelledEvent(order *PurchaseOrder) *PurchaseOrderCancelledEvent {
	return &PurchaseOrderCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseOrderCancelled, AggregateTypePurchaseOrder, order.ID),
		OrderID:         order.ID,
		SupplierRef:     order.SupplierRef,
	}
}
