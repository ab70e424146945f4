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

var purchaseOrderFilterColumns = filterColumns{
	columns: map[string]bool{
		"status":       true,
		"supplier_ref": true,
	},
	sortFields:    PurchaseOrderSortFields,
	defaultOrder:  "created_at DESC",
	timeColumn:    "created_at",
	searchColumns: []string{"supplier_ref"},
}

// GormPurchaseOrderRepository implements PurchaseOrderRepository using GORM
type GormPurchaseOrderRepository struct {
	db *gorm.DB
}

// NewGormPurchaseOrderRepository creates a new GormPurchaseOrderRepository
func NewGormPurchaseOrderRepository(db *gorm.DB) *GormPurchaseOrderRepository {
	return &GormPurchaseOrderRepository{db: db}
}

// FindByID finds a purchase order by its ID, with its lines
func (r *GormPurchaseOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.PurchaseOrder, error) {
	var model models.PurchaseOrderModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("purchase order", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists purchase orders (without lines) matching the filter
func (r *GormPurchaseOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*trade.PurchaseOrder, int64, error) {
	var total int64
	if err := applyPredicates(r.db.WithContext(ctx).Model(&models.PurchaseOrderModel{}), filter, purchaseOrderFilterColumns).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orderModels []models.PurchaseOrderModel
	if err := applyFilter(r.db.WithContext(ctx).Model(&models.PurchaseOrderModel{}), filter, purchaseOrderFilterColumns).
		Find(&orderModels).Error; err != nil {
		return nil, 0, err
	}
	orders := make([]*trade.PurchaseOrder, len(orderModels))
	for i := range orderModels {
		orders[i] = orderModels[i].ToDomain()
	}
	return orders, total, nil
}

// Create inserts a new order and its lines
func (r *GormPurchaseOrderRepository) Create(ctx context.Context, order *trade.PurchaseOrder) error {
	model := models.PurchaseOrderFromDomain(order)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Lines").Create(model).Error; err != nil {
			return err
		}
		if len(model.Lines) == 0 {
			return nil
		}
		return tx.Create(&model.Lines).Error
	})
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormPurchaseOrderRepository) SaveWithLock(ctx context.Context, order *trade.PurchaseOrder) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		currentVersion := order.Version
		nextVersion := currentVersion + 1
		now := time.Now()

		result := tx.Model(&models.PurchaseOrderModel{}).
			Where("id = ? AND version = ?", order.ID, currentVersion).
			Updates(map[string]any{
				"supplier_ref": order.SupplierRef,
				"status":       order.Status,
				"ordered_at":   order.OrderedAt,
				"expected_at":  order.ExpectedAt,
				"received_at":  order.ReceivedAt,
				"version":      nextVersion,
				"updated_at":   now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return r.conflictOrMissing(tx, order.ID)
		}

		for i := range order.Lines {
			var line models.PurchaseOrderLineModel
			line.FromDomain(order.ID, order.Lines[i])
			if err := tx.Save(&line).Error; err != nil {
				return err
			}
		}

		order.Version = nextVersion
		order.UpdatedAt = now
		return nil
	})
}

func (r *GormPurchaseOrderRepository) conflictOrMissing(tx *gorm.DB, id uuid.UUID) error {
	var count int64
	if err := tx.Model(&models.PurchaseOrderModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.NewNotFoundError("purchase order", id)
	}
	return shared.ErrConcurrencyConflict
}

// SumReceivedQty sums received quantity over non-cancelled lines of live
// orders, per product
func (r *GormPurchaseOrderRepository) SumReceivedQty(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []productSum
	if err := r.db.WithContext(ctx).
		Table("purchase_order_lines AS l").
		Select("l.product_id AS product_id, COALESCE(SUM(l.received_qty), 0) AS total").
		Joins("JOIN purchase_orders o ON o.id = l.order_id AND o.deleted_at IS NULL").
		Where("l.product_id IN ? AND l.status <> ?", productIDs, trade.LineStatusCancelled).
		Group("l.product_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = row.Total
	}
	return out, nil
}

// Ensure GormPurchaseOrderRepository implements PurchaseOrderRepository
var _ trade.PurchaseOrderRepository = (*GormPurchaseOrderRepository)(nil)
