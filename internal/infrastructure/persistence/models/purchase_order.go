package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrderModel is the persistence model for the PurchaseOrder aggregate root.
type PurchaseOrderModel struct {
	AggregateModel
	SupplierRef string                    `gorm:"type:varchar(200);not null;index"`
	Status      trade.PurchaseOrderStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	OrderedAt   *time.Time
	ExpectedAt  *time.Time
	ReceivedAt  *time.Time               `gorm:"index"`
	SharedCosts []trade.SharedCost       `gorm:"serializer:json;type:jsonb"`
	Lines       []PurchaseOrderLineModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (PurchaseOrderModel) TableName() string {
	return "purchase_orders"
}

// ToDomain converts the persistence model to a domain PurchaseOrder.
func (m *PurchaseOrderModel) ToDomain() *trade.PurchaseOrder {
	order := &trade.PurchaseOrder{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		SupplierRef:       m.SupplierRef,
		Status:            m.Status,
		OrderedAt:         m.OrderedAt,
		ExpectedAt:        m.ExpectedAt,
		ReceivedAt:        m.ReceivedAt,
		SharedCosts:       m.SharedCosts,
		Lines:             make([]trade.PurchaseOrderLine, len(m.Lines)),
	}
	for i := range m.Lines {
		order.Lines[i] = m.Lines[i].ToDomain()
	}
	return order
}

// FromDomain populates the persistence model from a domain PurchaseOrder.
func (m *PurchaseOrderModel) FromDomain(o *trade.PurchaseOrder) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.SupplierRef = o.SupplierRef
	m.Status = o.Status
	m.OrderedAt = o.OrderedAt
	m.ExpectedAt = o.ExpectedAt
	m.ReceivedAt = o.ReceivedAt
	m.SharedCosts = o.SharedCosts
	m.Lines = make([]PurchaseOrderLineModel, len(o.Lines))
	for i := range o.Lines {
		m.Lines[i].FromDomain(o.ID, o.Lines[i])
	}
}

// PurchaseOrderFromDomain creates a new persistence model from a domain PurchaseOrder.
func PurchaseOrderFromDomain(o *trade.PurchaseOrder) *PurchaseOrderModel {
	m := &PurchaseOrderModel{}
	m.FromDomain(o)
	return m
}

// PurchaseOrderLineModel is the persistence model for a purchase order line.
type PurchaseOrderLineModel struct {
	ID            uuid.UUID        `gorm:"type:uuid;primary_key"`
	OrderID       uuid.UUID        `gorm:"type:uuid;not null;index"`
	ProductID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	OrderedQty    decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	ReceivedQty   decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	PurchasePrice decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	PackagingCost decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	LogisticsCost decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	CustomsCost   decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	ExtraCost     decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	UnitCost      decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	TotalCost     decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	Status        trade.LineStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	CreatedAt     time.Time        `gorm:"not null"`
	UpdatedAt     time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PurchaseOrderLineModel) TableName() string {
	return "purchase_order_lines"
}

// ToDomain converts the persistence model to a domain PurchaseOrderLine.
func (m *PurchaseOrderLineModel) ToDomain() trade.PurchaseOrderLine {
	return trade.PurchaseOrderLine{
		ID:            m.ID,
		OrderID:       m.OrderID,
		ProductID:     m.ProductID,
		OrderedQty:    m.OrderedQty,
		ReceivedQty:   m.ReceivedQty,
		PurchasePrice: m.PurchasePrice,
		Costs: trade.LineCosts{
			Packaging: m.PackagingCost,
			Logistics: m.LogisticsCost,
			Customs:   m.CustomsCost,
			Extra:     m.ExtraCost,
		},
		UnitCost:  m.UnitCost,
		TotalCost: m.TotalCost,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain PurchaseOrderLine.
func (m *PurchaseOrderLineModel) FromDomain(orderID uuid.UUID, l trade.PurchaseOrderLine) {
	m.ID = l.ID
	m.OrderID = orderID
	m.ProductID = l.ProductID
	m.OrderedQty = l.OrderedQty
	m.ReceivedQty = l.ReceivedQty
	m.PurchasePrice = l.PurchasePrice
	m.PackagingCost = l.Costs.Packaging
	m.LogisticsCost = l.Costs.Logistics
	m.CustomsCost = l.Costs.Customs
	m.ExtraCost = l.Costs.Extra
	m.UnitCost = l.UnitCost
	m.TotalCost = l.TotalCost
	m.Status = l.Status
	m.CreatedAt = l.CreatedAt
	m.UpdatedAt = l.UpdatedAt
}
