package inventory_test

import (
	"context"
	"testing"
	"time"

	appinventory "github.com/erp/ledger/internal/application/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/internal/infrastructure/lock"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newLotService(t *testing.T) (*appinventory.LotService, *gorm.DB) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	svc := appinventory.NewLotService(
		persistence.NewGormTransactionScope(db),
		persistence.NewGormLotRepository(db),
		lock.NewLocalLocker(),
		"",
		zap.NewNop(),
	)
	return svc, db
}

func TestLotService_CreateOpeningBalance(t *testing.T) {
	svc, _ := newLotService(t)
	productID := uuid.New()
	ctx := context.Background()

	lot, err := svc.CreateOpeningBalance(ctx, appinventory.CreateOpeningBalanceRequest{
		ProductID:  productID,
		Quantity:   dec("12"),
		UnitCost:   dec("2.344"),
		ReceivedAt: &day,
	})
	require.NoError(t, err)

	assert.Equal(t, "opening_balance", lot.Source)
	assert.Equal(t, shared.DefaultCurrency, lot.Currency)
	assert.True(t, lot.UnitCost.Equal(dec("2.34")))
	assert.True(t, lot.RemainingQty.Equal(dec("12")))
	assert.True(t, lot.RemainingValue.Equal(dec("28.08")))
	assert.Nil(t, lot.PurchaseOrderLineID)

	adjusted, err := svc.CreateOpeningBalance(ctx, appinventory.CreateOpeningBalanceRequest{
		ProductID:  productID,
		Quantity:   dec("1"),
		UnitCost:   dec("0"),
		Source:     "adjustment",
		ReceivedAt: &[]time.Time{day.Add(-time.Hour)}[0],
	})
	require.NoError(t, err)

	lots, err := svc.ListLots(ctx, productID)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, adjusted.ID, lots[0].ID, "earlier receipt is consumed first")
	assert.Equal(t, lot.ID, lots[1].ID)
}

func TestLotService_CreateOpeningBalanceRejects(t *testing.T) {
	svc, _ := newLotService(t)

	tests := []struct {
		name string
		req  appinventory.CreateOpeningBalanceRequest
	}{
		{"purchase source", appinventory.CreateOpeningBalanceRequest{ProductID: uuid.New(), Quantity: dec("1"), Source: "purchase"}},
		{"unknown source", appinventory.CreateOpeningBalanceRequest{ProductID: uuid.New(), Quantity: dec("1"), Source: "gift"}},
		{"zero quantity", appinventory.CreateOpeningBalanceRequest{ProductID: uuid.New(), Quantity: dec("0")}},
		{"negative cost", appinventory.CreateOpeningBalanceRequest{ProductID: uuid.New(), Quantity: dec("1"), UnitCost: dec("-1")}},
		{"no product", appinventory.CreateOpeningBalanceRequest{Quantity: dec("1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOpeningBalance(context.Background(), tt.req)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
		})
	}
}

func TestAvailabilityService_AvailableMany(t *testing.T) {
	svc, db := newLotService(t)
	ctx := context.Background()
	orders := persistence.NewGormPurchaseOrderRepository(db)
	sales := persistence.NewGormSaleRepository(db)
	availability := appinventory.NewAvailabilityService(orders, persistence.NewGormLotRepository(db), sales)

	stocked, idle := uuid.New(), uuid.New()

	order, err := trade.NewPurchaseOrder("SUP-9", nil, nil)
	require.NoError(t, err)
	_, err = order.AddLine(stocked, dec("10"), dec("50"), trade.LineCosts{})
	require.NoError(t, err)
	_, err = order.Receive(nil, day)
	require.NoError(t, err)
	require.NoError(t, orders.Create(ctx, order))

	_, err = svc.CreateOpeningBalance(ctx, appinventory.CreateOpeningBalanceRequest{ProductID: stocked, Quantity: dec("5"), UnitCost: dec("4")})
	require.NoError(t, err)

	delivered, err := trade.NewSale(trade.SaleDraft{Channel: "shop", ChannelOrderID: "A-1", ProductID: &stocked, Quantity: dec("3")})
	require.NoError(t, err)
	require.NoError(t, sales.Create(ctx, delivered))

	returned, err := trade.NewSale(trade.SaleDraft{Channel: "shop", ChannelOrderID: "A-2", ProductID: &stocked, Quantity: dec("2")})
	require.NoError(t, err)
	require.NoError(t, returned.Return(day))
	require.NoError(t, sales.Create(ctx, returned))

	all, err := availability.AvailableMany(ctx, []uuid.UUID{stocked, idle})
	require.NoError(t, err)

	got := all[stocked]
	assert.True(t, got.Received.Equal(dec("10")), "received %s", got.Received)
	assert.True(t, got.Synthetic.Equal(dec("5")), "synthetic %s", got.Synthetic)
	assert.True(t, got.Consumed.Equal(dec("3")), "returned sales drop out")
	assert.True(t, got.Available.Equal(dec("12")), "available %s", got.Available)

	assert.True(t, all[idle].Available.IsZero())

	one, err := availability.Available(ctx, stocked)
	require.NoError(t, err)
	assert.True(t, one.Available.Equal(got.Available))
}
