// Package ledger defines the unit of work shared by every costing and
// fulfillment workflow.
package ledger

import (
	"context"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/trade"
)

// TransactionScope provides transactional access to the ledger repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}

// Repositories hands a workflow its collaborating repositories, all bound to
// the same unit of work.
type Repositories interface {
	LotRepo() inventory.LotRepository
	PurchaseOrderRepo() trade.PurchaseOrderRepository
	SaleRepo() trade.SaleRepository
	FinanceRepo() finance.TransactionRepository
}

// NoOpTransactionScope runs workflows against fixed repositories without a
// real transaction. Useful for tests or stores without transaction support;
// workflows stay re-runnable when a step fails halfway.
type NoOpTransactionScope struct {
	lotRepo     inventory.LotRepository
	orderRepo   trade.PurchaseOrderRepository
	saleRepo    trade.SaleRepository
	financeRepo finance.TransactionRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	lotRepo inventory.LotRepository,
	orderRepo trade.PurchaseOrderRepository,
	saleRepo trade.SaleRepository,
	financeRepo finance.TransactionRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		lotRepo:     lotRepo,
		orderRepo:   orderRepo,
		saleRepo:    saleRepo,
		financeRepo: financeRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos Repositories) error) error {
	return fn(s)
}

// LotRepo returns the lot repository.
func (s *NoOpTransactionScope) LotRepo() inventory.LotRepository { return s.lotRepo }

// PurchaseOrderRepo returns the purchase order repository.
func (s *NoOpTransactionScope) PurchaseOrderRepo() trade.PurchaseOrderRepository { return s.orderRepo }

// SaleRepo returns the sale repository.
func (s *NoOpTransactionScope) SaleRepo() trade.SaleRepository { return s.saleRepo }

// FinanceRepo returns the finance transaction repository.
func (s *NoOpTransactionScope) FinanceRepo() finance.TransactionRepository { return s.financeRepo }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ Repositories = (*NoOpTransactionScope)(nil)
