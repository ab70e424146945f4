package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService appends, reverses and aggregates finance ledger entries.
// Writes take the repository of the caller's unit of work so the entry
// commits with the workflow that produced it.
type LedgerService struct {
	repo     finance.TransactionRepository
	currency string
	logger   *zap.Logger
}

// LedgerServiceOption is a functional option for configuring LedgerService
type LedgerServiceOption func(*LedgerService)

// WithCurrency sets the ledger currency stamped on new entries
func WithCurrency(currency string) LedgerServiceOption {
	return func(s *LedgerService) {
		if currency != "" {
			s.currency = currency
		}
	}
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(repo finance.TransactionRepository, logger *zap.Logger, opts ...LedgerServiceOption) *LedgerService {
	s := &LedgerService{
		repo:     repo,
		currency: shared.DefaultCurrency,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Currency returns the ledger currency
func (s *LedgerService) Currency() string {
	return s.currency
}

// Append validates and appends an entry through repo
func (s *LedgerService) Append(ctx context.Context, repo finance.TransactionRepository, entry finance.Entry) (*finance.Transaction, error) {
	if entry.Currency == "" {
		entry.Currency = s.currency
	}
	tx, err := finance.NewTransaction(entry)
	if err != nil {
		return nil, err
	}
	if err := repo.Append(ctx, tx); err != nil {
		return nil, fmt.Errorf("append %s entry: %w", entry.Type, err)
	}
	s.logger.Debug("ledger entry appended",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("type", tx.Type.String()),
		zap.String("direction", tx.Direction.String()),
		zap.String("amount", tx.Amount.String()))
	return tx, nil
}

// SoftDeleteLinked reverses every live entry of txType linked to a purchase order
func (s *LedgerService) SoftDeleteLinked(ctx context.Context, repo finance.TransactionRepository, orderID uuid.UUID, txType finance.TransactionType) (int64, error) {
	n, err := repo.SoftDeleteByPurchaseOrder(ctx, orderID, txType)
	if err != nil {
		return 0, fmt.Errorf("reverse %s entries of order %s: %w", txType, orderID, err)
	}
	return n, nil
}

// Summarize aggregates live entries by direction and type
func (s *LedgerService) Summarize(ctx context.Context, filter finance.SummaryFilter) (*LedgerSummary, error) {
	totals, err := s.repo.Summarize(ctx, filter)
	if err != nil {
		return nil, err
	}

	summary := &LedgerSummary{
		From:     filter.From,
		To:       filter.To,
		Currency: s.currency,
		Income:   decimal.Zero,
		Expense:  decimal.Zero,
		ByType:   make([]TypeTotalResponse, 0, len(totals)),
	}
	for _, t := range totals {
		switch t.Direction {
		case finance.DirectionIncome:
			summary.Income = summary.Income.Add(t.Amount)
		case finance.DirectionExpense:
			summary.Expense = summary.Expense.Add(t.Amount)
		}
		summary.ByType = append(summary.ByType, TypeTotalResponse{
			Direction: t.Direction.String(),
			Type:      t.Type.String(),
			Amount:    t.Amount,
			Count:     t.Count,
		})
	}
	summary.Net = summary.Income.Sub(summary.Expense)
	return summary, nil
}

// List returns a page of live ledger entries
func (s *LedgerService) List(ctx context.Context, filter shared.Filter) (shared.Paginated[TransactionResponse], error) {
	txs, total, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[TransactionResponse]{}, err
	}
	items := make([]TransactionResponse, len(txs))
	for i, t := range txs {
		items[i] = ToTransactionResponse(t)
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// LedgerSummary is the ledger aggregated over a period
type LedgerSummary struct {
	From     *time.Time          `json:"from,omitempty"`
	To       *time.Time          `json:"to,omitempty"`
	Currency string              `json:"currency"`
	Income   decimal.Decimal     `json:"income"`
	Expense  decimal.Decimal     `json:"expense"`
	Net      decimal.Decimal     `json:"net"`
	ByType   []TypeTotalResponse `json:"by_type"`
}

// TypeTotalResponse is one (direction, type) group
type TypeTotalResponse struct {
	Direction string          `json:"direction"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Count     int64           `json:"count"`
}

// TransactionResponse represents a ledger entry in API responses
type TransactionResponse struct {
	ID              uuid.UUID       `json:"id"`
	Type            string          `json:"type"`
	Direction       string          `json:"direction"`
	Category        string          `json:"category"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	SaleID          *uuid.UUID      `json:"sale_id,omitempty"`
	PurchaseOrderID *uuid.UUID      `json:"purchase_order_id,omitempty"`
	ProductID       *uuid.UUID      `json:"product_id,omitempty"`
	TransactionDate time.Time       `json:"transaction_date"`
	Description     string          `json:"description"`
}

// ToTransactionResponse converts a domain Transaction
func ToTransactionResponse(t *finance.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              t.ID,
		Type:            t.Type.String(),
		Direction:       t.Direction.String(),
		Category:        t.Category,
		Amount:          t.Amount,
		Currency:        t.Currency,
		SaleID:          t.SaleID,
		PurchaseOrderID: t.PurchaseOrderID,
		ProductID:       t.ProductID,
		TransactionDate: t.TransactionDate,
		Description:     t.Description,
	}
}
