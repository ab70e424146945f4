package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var financeTransactionFilterColumns = filterColumns{
	columns: map[string]bool{
		"type":              true,
		"direction":         true,
		"category":          true,
		"sale_id":           true,
		"purchase_order_id": true,
		"product_id":        true,
		"recorded_by":       true,
	},
	sortFields:    FinanceTransactionSortFields,
	defaultOrder:  "transaction_date DESC, id DESC",
	timeColumn:    "transaction_date",
	searchColumns: []string{"description", "category"},
}

// GormFinanceTransactionRepository implements the append-only ledger using GORM
type GormFinanceTransactionRepository struct {
	db *gorm.DB
}

// NewGormFinanceTransactionRepository creates a new GormFinanceTransactionRepository
func NewGormFinanceTransactionRepository(db *gorm.DB) *GormFinanceTransactionRepository {
	return &GormFinanceTransactionRepository{db: db}
}

// Append inserts a ledger entry
func (r *GormFinanceTransactionRepository) Append(ctx context.Context, tx *finance.Transaction) error {
	return r.db.WithContext(ctx).Create(models.FinanceTransactionFromDomain(tx)).Error
}

// FindAll lists live entries matching the filter
func (r *GormFinanceTransactionRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*finance.Transaction, int64, error) {
	var total int64
	if err := applyPredicates(r.db.WithContext(ctx).Model(&models.FinanceTransactionModel{}), filter, financeTransactionFilterColumns).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.FinanceTransactionModel
	if err := applyFilter(r.db.WithContext(ctx).Model(&models.FinanceTransactionModel{}), filter, financeTransactionFilterColumns).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return transactionsToDomain(rows), total, nil
}

// FindBySale returns live entries linked to a sale
func (r *GormFinanceTransactionRepository) FindBySale(ctx context.Context, saleID uuid.UUID) ([]*finance.Transaction, error) {
	var rows []models.FinanceTransactionModel
	if err := r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("transaction_date ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return transactionsToDomain(rows), nil
}

// FindByPurchaseOrder returns live entries of a type linked to an order
func (r *GormFinanceTransactionRepository) FindByPurchaseOrder(ctx context.Context, orderID uuid.UUID, txType finance.TransactionType) ([]*finance.Transaction, error) {
	var rows []models.FinanceTransactionModel
	if err := r.db.WithContext(ctx).
		Where("purchase_order_id = ? AND type = ?", orderID, txType).
		Order("transaction_date ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return transactionsToDomain(rows), nil
}

// SoftDeleteByPurchaseOrder soft-deletes live entries of a type linked to an order
func (r *GormFinanceTransactionRepository) SoftDeleteByPurchaseOrder(ctx context.Context, orderID uuid.UUID, txType finance.TransactionType) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("purchase_order_id = ? AND type = ?", orderID, txType).
		Delete(&models.FinanceTransactionModel{})
	return result.RowsAffected, result.Error
}

// Summarize sums live entries grouped by direction and type. A channel filter
// keeps only entries linked to a sale of that channel.
func (r *GormFinanceTransactionRepository) Summarize(ctx context.Context, filter finance.SummaryFilter) ([]finance.TypeTotal, error) {
	query := r.db.WithContext(ctx).
		Table("finance_transactions AS ft").
		Select("ft.direction AS direction, ft.type AS type, COALESCE(SUM(ft.amount), 0) AS amount, COUNT(*) AS count").
		Where("ft.deleted_at IS NULL")
	if filter.From != nil {
		query = query.Where("ft.transaction_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("ft.transaction_date <= ?", *filter.To)
	}
	if filter.RecordedBy != "" {
		query = query.Where("ft.recorded_by = ?", filter.RecordedBy)
	}
	if filter.Channel != "" {
		query = query.
			Joins("JOIN sales s ON s.id = ft.sale_id AND s.deleted_at IS NULL").
			Where("s.channel = ?", filter.Channel)
	}

	var rows []struct {
		Direction finance.Direction
		Type      finance.TransactionType
		Amount    decimal.Decimal
		Count     int64
	}
	if err := query.Group("ft.direction, ft.type").Order("ft.direction, ft.type").Scan(&rows).Error; err != nil {
		return nil, err
	}
	totals := make([]finance.TypeTotal, len(rows))
	for i, row := range rows {
		totals[i] = finance.TypeTotal{
			Direction: row.Direction,
			Type:      row.Type,
			Amount:    row.Amount,
			Count:     row.Count,
		}
	}
	return totals, nil
}

func transactionsToDomain(rows []models.FinanceTransactionModel) []*finance.Transaction {
	out := make([]*finance.Transaction, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

// Ensure GormFinanceTransactionRepository implements TransactionRepository
var _ finance.TransactionRepository = (*GormFinanceTransactionRepository)(nil)
