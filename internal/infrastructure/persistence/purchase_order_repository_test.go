package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(t *testing.T, lines map[uuid.UUID]int64) *trade.PurchaseOrder {
	t.Helper()
	order, err := trade.NewPurchaseOrder("SUP-1", nil, []trade.SharedCost{
		{Name: "freight", Amount: decimal.NewFromInt(100)},
	})
	require.NoError(t, err)
	for productID, qty := range lines {
		_, err := order.AddLine(productID, decimal.NewFromInt(qty), decimal.NewFromInt(100), trade.LineCosts{})
		require.NoError(t, err)
	}
	return order
}

func TestGormPurchaseOrderRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewGormPurchaseOrderRepository(newTestDB(t))
	p1, p2 := uuid.New(), uuid.New()

	order := newOrder(t, map[uuid.UUID]int64{p1: 5, p2: 3})
	require.NoError(t, repo.Create(ctx, order))

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "SUP-1", got.SupplierRef)
	assert.Equal(t, trade.PurchaseOrderStatusDraft, got.Status)
	assert.Len(t, got.Lines, 2)
	require.Len(t, got.SharedCosts, 1)
	assert.True(t, got.SharedCosts[0].Amount.Equal(decimal.NewFromInt(100)))
	assert.ElementsMatch(t, []uuid.UUID{p1, p2}, got.ProductIDs())

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormPurchaseOrderRepository_SaveWithLock_PersistsLines(t *testing.T) {
	ctx := context.Background()
	repo := NewGormPurchaseOrderRepository(newTestDB(t))
	productID := uuid.New()

	order := newOrder(t, map[uuid.UUID]int64{productID: 10})
	require.NoError(t, repo.Create(ctx, order))

	loaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	stale, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)

	receipt, err := loaded.Receive(nil, time.Now())
	require.NoError(t, err)
	require.Len(t, receipt.Lines, 1)
	require.NoError(t, repo.SaveWithLock(ctx, loaded))

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.IsReceived())
	assert.Equal(t, trade.LineStatusReceived, got.Lines[0].Status)
	assert.True(t, got.Lines[0].UnitCost.Equal(decimal.NewFromInt(110)), got.Lines[0].UnitCost.String())

	require.NoError(t, stale.Cancel(time.Now()))
	assert.ErrorIs(t, repo.SaveWithLock(ctx, stale), shared.ErrConcurrencyConflict)

	sums, err := repo.SumReceivedQty(ctx, []uuid.UUID{productID})
	require.NoError(t, err)
	assert.True(t, sums[productID].Equal(decimal.NewFromInt(10)))
}

func TestGormPurchaseOrderRepository_FindAll(t *testing.T) {
	ctx := context.Background()
	repo := NewGormPurchaseOrderRepository(newTestDB(t))

	for _, ref := range []string{"ACME-1", "ACME-2", "Globex"} {
		order, err := trade.NewPurchaseOrder(ref, nil, nil)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, order))
	}

	filter := shared.DefaultFilter()
	filter.Search = "acme"
	orders, total, err := repo.FindAll(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, orders, 2)
}
