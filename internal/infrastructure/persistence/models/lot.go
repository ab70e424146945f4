package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotModel is the persistence model for a cost lot.
type LotModel struct {
	BaseModel
	ProductID           uuid.UUID           `gorm:"type:uuid;not null;index:idx_lots_product_fifo,priority:1"`
	PurchaseOrderLineID *uuid.UUID          `gorm:"type:uuid;index"`
	Source              inventory.LotSource `gorm:"type:varchar(20);not null;default:'purchase'"`
	InitialQty          decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	RemainingQty        decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	UnitCost            decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	Currency            string              `gorm:"type:varchar(3);not null"`
	ReceivedAt          time.Time           `gorm:"not null;index:idx_lots_product_fifo,priority:2"`
}

// TableName returns the table name for GORM
func (LotModel) TableName() string {
	return "lots"
}

// ToDomain converts the persistence model to a domain Lot.
func (m *LotModel) ToDomain() *inventory.Lot {
	return &inventory.Lot{
		BaseEntity:          m.BaseModel.ToDomain(),
		ProductID:           m.ProductID,
		PurchaseOrderLineID: m.PurchaseOrderLineID,
		Source:              m.Source,
		InitialQty:          m.InitialQty,
		RemainingQty:        m.RemainingQty,
		UnitCost:            m.UnitCost,
		Currency:            m.Currency,
		ReceivedAt:          m.ReceivedAt,
	}
}

// FromDomain populates the persistence model from a domain Lot.
func (m *LotModel) FromDomain(l *inventory.Lot) {
	m.FromDomainBaseEntity(l.BaseEntity)
	m.ProductID = l.ProductID
	m.PurchaseOrderLineID = l.PurchaseOrderLineID
	m.Source = l.Source
	m.InitialQty = l.InitialQty
	m.RemainingQty = l.RemainingQty
	m.UnitCost = l.UnitCost
	m.Currency = l.Currency
	m.ReceivedAt = l.ReceivedAt
}

// LotFromDomain creates a new persistence model from a domain Lot.
func LotFromDomain(l *inventory.Lot) *LotModel {
	m := &LotModel{}
	m.FromDomain(l)
	return m
}
