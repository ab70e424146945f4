package trade

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeSale = "Sale"

// Event type constants
const (
	EventTypeSaleCreated    = "sale.created"
	EventTypeSaleReturned   = "sale.returned"
	EventTypeSaleWrittenOff = "sale.written_off"
)

// SaleCostedEvent is raised once a new sale (or write-off) has been priced
type SaleCostedEvent struct {
	shared.BaseDomainEvent
	SaleID        uuid.UUID           `json:"sale_id"`
	Channel       string              `json:"channel"`
	ProductID     *uuid.UUID          `json:"product_id,omitempty"`
	Quantity      decimal.Decimal     `json:"quantity"`
	Revenue       decimal.Decimal     `json:"revenue"`
	TotalCOGS     decimal.Decimal     `json:"total_cogs"`
	CostingMethod strategy.CostMethod `json:"costing_method"`
	Shortfall     decimal.Decimal     `json:"shortfall"`
}

// NewSaleCostedEvent creates a sale.created or sale.written_off event
func NewSaleCostedEvent(s *Sale, shortfall decimal.Decimal) *SaleCostedEvent {
	eventType := EventTypeSaleCreated
	if s.IsWriteOff() {
		eventType = EventTypeSaleWrittenOff
	}
	return &SaleCostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeSale, s.ID),
		SaleID:          s.ID,
		Channel:         s.Channel,
		ProductID:       s.ProductID,
		Quantity:        s.Quantity,
		Revenue:         s.Revenue,
		TotalCOGS:       s.TotalCOGS,
		CostingMethod:   s.CostingMethod,
		Shortfall:       shortfall,
	}
}

// SaleReturnedEvent is raised when a sale is returned
type SaleReturnedEvent struct {
	shared.BaseDomainEvent
	SaleID    uuid.UUID       `json:"sale_id"`
	ProductID *uuid.UUID      `json:"product_id,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	Refund    decimal.Decimal `json:"refund"`
}

// NewSaleReturnedEvent creates a new SaleReturnedEvent
func NewSaleReturnedEvent(s *Sale) *SaleReturnedEvent {
	return &SaleReturnedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleReturned, AggregateTypeSale, s.ID),
		SaleID:          s.ID,
		ProductID:       s.ProductID,
		Quantity:        s.Quantity,
		Refund:          s.Revenue,
	}
}
