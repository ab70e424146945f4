package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleModel is the persistence model for the Sale aggregate root. The natural
// key (channel, channel_order_id, channel_sku) is unique among live rows.
type SaleModel struct {
	AggregateModel
	Channel        string                   `gorm:"type:varchar(50);not null;uniqueIndex:idx_sales_natural_key,priority:1,where:deleted_at IS NULL"`
	ChannelOrderID string                   `gorm:"type:varchar(100);not null;uniqueIndex:idx_sales_natural_key,priority:2,where:deleted_at IS NULL"`
	ChannelSKU     string                   `gorm:"type:varchar(100);not null;default:'';uniqueIndex:idx_sales_natural_key,priority:3,where:deleted_at IS NULL"`
	ProductID      *uuid.UUID               `gorm:"type:uuid;index"`
	Quantity       decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	PricePerUnit   decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	Revenue        decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	UnitCOGS       decimal.Decimal          `gorm:"column:unit_cogs;type:decimal(18,4);not null;default:0"`
	TotalCOGS      decimal.Decimal          `gorm:"column:total_cogs;type:decimal(18,4);not null;default:0"`
	Fees           []trade.Fee              `gorm:"serializer:json;type:jsonb"`
	CostingMethod  strategy.CostMethod      `gorm:"type:varchar(20);not null;default:'none'"`
	LotAllocations []strategy.LotAllocation `gorm:"serializer:json;type:jsonb"`
	Status         trade.SaleStatus         `gorm:"type:varchar(20);not null;default:'delivered';index"`
	SoldAt         time.Time                `gorm:"not null;index"`
	ReturnedAt     *time.Time
	Note           string `gorm:"type:text"`
	RecordedBy     string `gorm:"type:varchar(100);index"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// ToDomain converts the persistence model to a domain Sale.
func (m *SaleModel) ToDomain() *trade.Sale {
	return &trade.Sale{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Channel:           m.Channel,
		ChannelOrderID:    m.ChannelOrderID,
		ChannelSKU:        m.ChannelSKU,
		ProductID:         m.ProductID,
		Quantity:          m.Quantity,
		PricePerUnit:      m.PricePerUnit,
		Revenue:           m.Revenue,
		UnitCOGS:          m.UnitCOGS,
		TotalCOGS:         m.TotalCOGS,
		Fees:              m.Fees,
		CostingMethod:     m.CostingMethod,
		LotAllocations:    m.LotAllocations,
		Status:            m.Status,
		SoldAt:            m.SoldAt,
		ReturnedAt:        m.ReturnedAt,
		Note:              m.Note,
		RecordedBy:        m.RecordedBy,
	}
}

// FromDomain populates the persistence model from a domain Sale.
func (m *SaleModel) FromDomain(s *trade.Sale) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.Channel = s.Channel
	m.ChannelOrderID = s.ChannelOrderID
	m.ChannelSKU = s.ChannelSKU
	m.ProductID = s.ProductID
	m.Quantity = s.Quantity
	m.PricePerUnit = s.PricePerUnit
	m.Revenue = s.Revenue
	m.UnitCOGS = s.UnitCOGS
	m.TotalCOGS = s.TotalCOGS
	m.Fees = s.Fees
	m.CostingMethod = s.CostingMethod
	m.LotAllocations = s.LotAllocations
	m.Status = s.Status
	m.SoldAt = s.SoldAt
	m.ReturnedAt = s.ReturnedAt
	m.Note = s.Note
	m.RecordedBy = s.RecordedBy
}

// SaleFromDomain creates a new persistence model from a domain Sale.
func SaleFromDomain(s *trade.Sale) *SaleModel {
	m := &SaleModel{}
	m.FromDomain(s)
	return m
}
