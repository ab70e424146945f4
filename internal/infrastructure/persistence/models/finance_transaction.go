package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FinanceTransactionModel is the persistence model for a ledger entry.
type FinanceTransactionModel struct {
	BaseModel
	Type            finance.TransactionType `gorm:"type:varchar(30);not null;index"`
	Direction       finance.Direction       `gorm:"type:varchar(10);not null"`
	Category        string                  `gorm:"type:varchar(50)"`
	Amount          decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	Currency        string                  `gorm:"type:varchar(3);not null"`
	SaleID          *uuid.UUID              `gorm:"type:uuid;index"`
	PurchaseOrderID *uuid.UUID              `gorm:"type:uuid;index"`
	ProductID       *uuid.UUID              `gorm:"type:uuid;index"`
	TransactionDate time.Time               `gorm:"not null;index"`
	Description     string                  `gorm:"type:varchar(500)"`
	RecordedBy      string                  `gorm:"type:varchar(100);index"`
}

// TableName returns the table name for GORM
func (FinanceTransactionModel) TableName() string {
	return "finance_transactions"
}

// ToDomain converts the persistence model to a domain Transaction.
func (m *FinanceTransactionModel) ToDomain() *finance.Transaction {
	return &finance.Transaction{
		BaseEntity:      m.BaseModel.ToDomain(),
		Type:            m.Type,
		Direction:       m.Direction,
		Category:        m.Category,
		Amount:          m.Amount,
		Currency:        m.Currency,
		SaleID:          m.SaleID,
		PurchaseOrderID: m.PurchaseOrderID,
		ProductID:       m.ProductID,
		TransactionDate: m.TransactionDate,
		Description:     m.Description,
		RecordedBy:      m.RecordedBy,
	}
}

// FromDomain populates the persistence model from a domain Transaction.
func (m *FinanceTransactionModel) FromDomain(t *finance.Transaction) {
	m.FromDomainBaseEntity(t.BaseEntity)
	m.Type = t.Type
	m.Direction = t.Direction
	m.Category = t.Category
	m.Amount = t.Amount
	m.Currency = t.Currency
	m.SaleID = t.SaleID
	m.PurchaseOrderID = t.PurchaseOrderID
	m.ProductID = t.ProductID
	m.TransactionDate = t.TransactionDate
	m.Description = t.Description
	m.RecordedBy = t.RecordedBy
}

// FinanceTransactionFromDomain creates a new persistence model from a domain Transaction.
func FinanceTransactionFromDomain(t *finance.Transaction) *FinanceTransactionModel {
	m := &FinanceTransactionModel{}
	m.FromDomain(t)
	return m
}
