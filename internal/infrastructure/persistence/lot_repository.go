package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const lotFIFOOrder = "received_at ASC, created_at ASC, id ASC"

var lotFilterColumns = filterColumns{
	columns: map[string]bool{
		"product_id": true,
		"source":     true,
		"currency":   true,
	},
	sortFields:   LotSortFields,
	defaultOrder: lotFIFOOrder,
	timeColumn:   "received_at",
}

// GormLotRepository implements LotRepository using GORM
type GormLotRepository struct {
	db *gorm.DB
}

// NewGormLotRepository creates a new GormLotRepository
func NewGormLotRepository(db *gorm.DB) *GormLotRepository {
	return &GormLotRepository{db: db}
}

// FindByID finds a lot by its ID
func (r *GormLotRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Lot, error) {
	var model models.LotModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("lot", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByProduct returns all lots of a product in FIFO order
func (r *GormLotRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]*inventory.Lot, error) {
	var lotModels []models.LotModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order(lotFIFOOrder).
		Find(&lotModels).Error; err != nil {
		return nil, err
	}
	return lotsToDomain(lotModels), nil
}

// FindByLines returns the lots created by the given purchase order lines
func (r *GormLotRepository) FindByLines(ctx context.Context, lineIDs []uuid.UUID) ([]*inventory.Lot, error) {
	if len(lineIDs) == 0 {
		return []*inventory.Lot{}, nil
	}
	var lotModels []models.LotModel
	if err := r.db.WithContext(ctx).
		Where("purchase_order_line_id IN ?", lineIDs).
		Order(lotFIFOOrder).
		Find(&lotModels).Error; err != nil {
		return nil, err
	}
	return lotsToDomain(lotModels), nil
}

// FindAll lists lots matching the filter
func (r *GormLotRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*inventory.Lot, int64, error) {
	var total int64
	base := r.db.WithContext(ctx).Model(&models.LotModel{})
	if err := applyPredicates(base, filter, lotFilterColumns).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var lotModels []models.LotModel
	if err := applyFilter(r.db.WithContext(ctx).Model(&models.LotModel{}), filter, lotFilterColumns).
		Find(&lotModels).Error; err != nil {
		return nil, 0, err
	}
	return lotsToDomain(lotModels), total, nil
}

// Save creates or updates a lot
func (r *GormLotRepository) Save(ctx context.Context, lot *inventory.Lot) error {
	return r.db.WithContext(ctx).Save(models.LotFromDomain(lot)).Error
}

// SaveBatch creates lots in one statement
func (r *GormLotRepository) SaveBatch(ctx context.Context, lots []*inventory.Lot) error {
	if len(lots) == 0 {
		return nil
	}
	lotModels := make([]*models.LotModel, len(lots))
	for i, l := range lots {
		lotModels[i] = models.LotFromDomain(l)
	}
	return r.db.WithContext(ctx).Create(&lotModels).Error
}

// UpdateRemaining sets remaining_qty to next only if it still equals expected
func (r *GormLotRepository) UpdateRemaining(ctx context.Context, id uuid.UUID, expected, next decimal.Decimal) error {
	if next.IsNegative() {
		return shared.NewInvalidInputError("lot remaining quantity cannot go negative")
	}
	result := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("id = ? AND remaining_qty = ? AND initial_qty >= ?", id, expected, next).
		Updates(map[string]any{
			"remaining_qty": next,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// ZeroAndDeleteByLines drains and soft-deletes the lots of the given lines
func (r *GormLotRepository) ZeroAndDeleteByLines(ctx context.Context, lineIDs []uuid.UUID) (int64, error) {
	if len(lineIDs) == 0 {
		return 0, nil
	}
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("purchase_order_line_id IN ?", lineIDs).
		Updates(map[string]any{
			"remaining_qty": decimal.Zero,
			"updated_at":    now,
			"deleted_at":    now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ProductIDs returns every product that owns at least one lot
func (r *GormLotRepository) ProductIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Distinct("product_id").
		Order("product_id").
		Pluck("product_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// SumSyntheticInitial sums initial quantity of non-purchase lots per product
func (r *GormLotRepository) SumSyntheticInitial(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []productSum
	if err := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Select("product_id, COALESCE(SUM(initial_qty), 0) AS total").
		Where("product_id IN ? AND source <> ?", productIDs, inventory.LotSourcePurchase).
		Group("product_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = row.Total
	}
	return out, nil
}

// productSum is one row of a per-product SUM
type productSum struct {
	ProductID uuid.UUID
	Total     decimal.Decimal
}

func lotsToDomain(lotModels []models.LotModel) []*inventory.Lot {
	lots := make([]*inventory.Lot, len(lotModels))
	for i := range lotModels {
		lots[i] = lotModels[i].ToDomain()
	}
	return lots
}

// Ensure GormLotRepository implements LotRepository
var _ inventory.LotRepository = (*GormLotRepository)(nil)
