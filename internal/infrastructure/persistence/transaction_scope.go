package persistence

import (
	"context"

	"github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/trade"
	"gorm.io/gorm"
)

// GormTransactionScope implements ledger.TransactionScope using GORM
// transactions. Repositories handed to the callback share the transaction.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn in a database transaction, rolling back when it returns an error.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos ledger.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepositories{tx: tx})
	})
}

type gormRepositories struct {
	tx *gorm.DB
}

func (r *gormRepositories) LotRepo() inventory.LotRepository {
	return NewGormLotRepository(r.tx)
}

func (r *gormRepositories) PurchaseOrderRepo() trade.PurchaseOrderRepository {
	return NewGormPurchaseOrderRepository(r.tx)
}

func (r *gormRepositories) SaleRepo() trade.SaleRepository {
	return NewGormSaleRepository(r.tx)
}

func (r *gormRepositories) FinanceRepo() finance.TransactionRepository {
	return NewGormFinanceTransactionRepository(r.tx)
}

var (
	_ ledger.TransactionScope = (*GormTransactionScope)(nil)
	_ ledger.Repositories     = (*gormRepositories)(nil)
)
