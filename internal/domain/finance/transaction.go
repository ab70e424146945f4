package finance

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TransactionTypeSaleRevenue     TransactionType = "sale_revenue"
	TransactionTypeSupplierPayment TransactionType = "supplier_payment"
	TransactionTypeRefund          TransactionType = "refund"
	TransactionTypeAdjustment      TransactionType = "adjustment"
)

// IsValid checks if the type is a valid TransactionType
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeSaleRevenue, TransactionTypeSupplierPayment,
		TransactionTypeRefund, TransactionTypeAdjustment:
		return true
	}
	return false
}

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// Direction is the sign of a ledger entry
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// IsValid checks if the direction is a valid Direction
func (d Direction) IsValid() bool {
	return d == DirectionIncome || d == DirectionExpense
}

// String returns the string representation of Direction
func (d Direction) String() string {
	return string(d)
}

// Ledger categories
const (
	CategorySales         = "sales"
	CategoryPurchasing    = "purchasing"
	CategoryReturns       = "returns"
	CategoryInventoryLoss = "inventory_loss"
)

// Transaction is an append-only ledger entry. Entries are never edited; a
// soft delete is only used to reverse the workflow that created them.
type Transaction struct {
	shared.BaseEntity
	Type            TransactionType
	Direction       Direction
	Category        string
	Amount          decimal.Decimal
	Currency        string
	SaleID          *uuid.UUID
	PurchaseOrderID *uuid.UUID
	ProductID       *uuid.UUID
	TransactionDate time.Time
	Description     string
	RecordedBy      string
}

// Entry carries the fields of a new ledger entry
type Entry struct {
	Type            TransactionType
	Direction       Direction
	Category        string
	Amount          decimal.Decimal
	Currency        string
	SaleID          *uuid.UUID
	PurchaseOrderID *uuid.UUID
	ProductID       *uuid.UUID
	TransactionDate time.Time
	Description     string
	RecordedBy      string
}

// NewTransaction validates an entry and creates a ledger transaction
func NewTransaction(e Entry) (*Transaction, error) {
	if !e.Type.IsValid() {
		return nil, shared.NewInvalidInputError(fmt.Sprintf("unknown transaction type %q", e.Type))
	}
	if !e.Direction.IsValid() {
		return nil, shared.NewInvalidInputError(fmt.Sprintf("unknown direction %q", e.Direction))
	}
	if !e.Amount.IsPositive() {
		return nil, shared.NewInvalidInputError("transaction amount must be positive")
	}
	if e.Currency == "" {
		e.Currency = shared.DefaultCurrency
	}
	if e.TransactionDate.IsZero() {
		e.TransactionDate = time.Now()
	}

	return &Transaction{
		BaseEntity:      shared.NewBaseEntity(),
		Type:            e.Type,
		Direction:       e.Direction,
		Category:        e.Category,
		Amount:          shared.RoundMoney(e.Amount),
		Currency:        e.Currency,
		SaleID:          e.SaleID,
		PurchaseOrderID: e.PurchaseOrderID,
		ProductID:       e.ProductID,
		TransactionDate: e.TransactionDate,
		Description:     e.Description,
		RecordedBy:      e.RecordedBy,
	}, nil
}

// SaleRevenue builds the income entry for a sale
func SaleRevenue(saleID uuid.UUID, productID *uuid.UUID, amount decimal.Decimal, currency string, at time.Time) Entry {
	return Entry{
		Type:            TransactionTypeSaleRevenue,
		Direction:       DirectionIncome,
		Category:        CategorySales,
		Amount:          amount,
		Currency:        currency,
		SaleID:          &saleID,
		ProductID:       productID,
		TransactionDate: at,
		Description:     "sale revenue",
	}
}

// Refund builds the compensating expense entry for a returned sale
func Refund(saleID uuid.UUID, productID *uuid.UUID, amount decimal.Decimal, currency string, at time.Time) Entry {
	return Entry{
		Type:            TransactionTypeRefund,
		Direction:       DirectionExpense,
		Category:        CategoryReturns,
		Amount:          amount,
		Currency:        currency,
		SaleID:          &saleID,
		ProductID:       productID,
		TransactionDate: at,
		Description:     "sale refund",
	}
}

// SupplierPayment builds the expense entry for a purchase receipt
func SupplierPayment(orderID uuid.UUID, amount decimal.Decimal, currency string, at time.Time) Entry {
	return Entry{
		Type:            TransactionTypeSupplierPayment,
		Direction:       DirectionExpense,
		Category:        CategoryPurchasing,
		Amount:          amount,
		Currency:        currency,
		PurchaseOrderID: &orderID,
		TransactionDate: at,
		Description:     "purchase order receipt",
	}
}

// InventoryLoss builds the expense entry for a write-off
func InventoryLoss(saleID, productID uuid.UUID, amount decimal.Decimal, currency, reason string, at time.Time) Entry {
	return Entry{
		Type:            TransactionTypeAdjustment,
		Direction:       DirectionExpense,
		Category:        CategoryInventoryLoss,
		Amount:          amount,
		Currency:        currency,
		SaleID:          &saleID,
		ProductID:       &productID,
		TransactionDate: at,
		Description:     reason,
	}
}

// Signed returns the amount with expenses negated
func (t *Transaction) Signed() decimal.Decimal {
	if t.Direction == DirectionExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}
