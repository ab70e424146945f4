package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var saleFilterColumns = filterColumns{
	columns: map[string]bool{
		"status":         true,
		"channel":        true,
		"note":           true,
		"product_id":     true,
		"recorded_by":    true,
		"costing_method": true,
	},
	sortFields:    SaleSortFields,
	defaultOrder:  "sold_at DESC",
	timeColumn:    "sold_at",
	searchColumns: []string{"channel_order_id", "channel_sku", "note"},
}

// GormSaleRepository implements SaleRepository using GORM
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// FindByID finds a sale by its ID
func (r *GormSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Sale, error) {
	var model models.SaleModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("sale", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists sales matching the filter
func (r *GormSaleRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*trade.Sale, int64, error) {
	var total int64
	if err := applyPredicates(r.db.WithContext(ctx).Model(&models.SaleModel{}), filter, saleFilterColumns).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var saleModels []models.SaleModel
	if err := applyFilter(r.db.WithContext(ctx).Model(&models.SaleModel{}), filter, saleFilterColumns).
		Find(&saleModels).Error; err != nil {
		return nil, 0, err
	}
	return salesToDomain(saleModels), total, nil
}

// Query returns every sale matching q ordered by sold_at, id
func (r *GormSaleRepository) Query(ctx context.Context, q trade.SaleQuery) ([]*trade.Sale, error) {
	query := r.db.WithContext(ctx).Model(&models.SaleModel{})
	if q.From != nil {
		query = query.Where("sold_at >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("sold_at <= ?", *q.To)
	}
	if q.SoldBefore != nil {
		query = query.Where("sold_at < ?", *q.SoldBefore)
	}
	if q.Channel != "" {
		query = query.Where("channel = ?", q.Channel)
	}
	if q.RecordedBy != "" {
		query = query.Where("recorded_by = ?", q.RecordedBy)
	}
	if q.ProductID != nil {
		query = query.Where("product_id = ?", *q.ProductID)
	}
	if q.WithProduct {
		query = query.Where("product_id IS NOT NULL")
	}
	if q.ZeroCostOnly {
		query = query.Where("total_cogs = 0")
	}
	if len(q.ExcludeStatus) > 0 {
		query = query.Where("status NOT IN ?", q.ExcludeStatus)
	}
	if q.ExcludeReturnedBy != nil {
		query = query.Where("(status <> ? OR returned_at > ?)", trade.SaleStatusReturned, *q.ExcludeReturnedBy)
	}
	if q.ReturnedFrom != nil || q.ReturnedTo != nil {
		query = query.Where("status = ?", trade.SaleStatusReturned)
		if q.ReturnedFrom != nil {
			query = query.Where("returned_at >= ?", *q.ReturnedFrom)
		}
		if q.ReturnedTo != nil {
			query = query.Where("returned_at <= ?", *q.ReturnedTo)
		}
	}

	var saleModels []models.SaleModel
	if err := query.Order("sold_at ASC, id ASC").Find(&saleModels).Error; err != nil {
		return nil, err
	}
	return salesToDomain(saleModels), nil
}

// Create inserts a sale, rejecting a second live sale with the same natural key
func (r *GormSaleRepository) Create(ctx context.Context, sale *trade.Sale) error {
	model := models.SaleFromDomain(sale)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormSaleRepository) SaveWithLock(ctx context.Context, sale *trade.Sale) error {
	currentVersion := sale.Version
	nextVersion := currentVersion + 1
	now := time.Now()

	result := r.db.WithContext(ctx).Model(&models.SaleModel{}).
		Where("id = ? AND version = ?", sale.ID, currentVersion).
		Updates(map[string]any{
			"status":         sale.Status,
			"returned_at":    sale.ReturnedAt,
			"unit_cogs":      sale.UnitCOGS,
			"total_cogs":     sale.TotalCOGS,
			"costing_method": sale.CostingMethod,
			"note":           sale.Note,
			"version":        nextVersion,
			"updated_at":     now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.SaleModel{}).Where("id = ?", sale.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.NewNotFoundError("sale", sale.ID)
		}
		return shared.ErrConcurrencyConflict
	}

	sale.Version = nextVersion
	sale.UpdatedAt = now
	return nil
}

// CountConsumingByProducts counts active or delivered sales per product
func (r *GormSaleRepository) CountConsumingByProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ProductID uuid.UUID
		Total     int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.SaleModel{}).
		Select("product_id, COUNT(*) AS total").
		Where("product_id IN ? AND status IN ?", productIDs, trade.ConsumingSaleStatuses).
		Group("product_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = row.Total
	}
	return out, nil
}

// SumConsumedQty sums quantity of active or delivered sales per product
func (r *GormSaleRepository) SumConsumedQty(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []productSum
	if err := r.db.WithContext(ctx).
		Model(&models.SaleModel{}).
		Select("product_id, COALESCE(SUM(quantity), 0) AS total").
		Where("product_id IN ? AND status IN ?", productIDs, trade.ConsumingSaleStatuses).
		Group("product_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = row.Total
	}
	return out, nil
}

func salesToDomain(saleModels []models.SaleModel) []*trade.Sale {
	sales := make([]*trade.Sale, len(saleModels))
	for i := range saleModels {
		sales[i] = saleModels[i].ToDomain()
	}
	return sales
}

// Ensure GormSaleRepository implements SaleRepository
var _ trade.SaleRepository = (*GormSaleRepository)(nil)
