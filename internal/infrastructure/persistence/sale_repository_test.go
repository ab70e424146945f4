package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSale(t *testing.T, channel, orderID string, productID *uuid.UUID, qty int64, status trade.SaleStatus) *trade.Sale {
	t.Helper()
	sale, err := trade.NewSale(trade.SaleDraft{
		Channel:        channel,
		ChannelOrderID: orderID,
		ProductID:      productID,
		Quantity:       decimal.NewFromInt(qty),
		PricePerUnit:   decimal.NewFromInt(100),
		Fees:           []trade.Fee{{Name: "commission", Amount: decimal.NewFromInt(5)}},
		Status:         status,
		SoldAt:         time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return sale
}

func TestGormSaleRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSaleRepository(newTestDB(t))
	productID := uuid.New()

	sale := newSale(t, "ozon", "A-1", &productID, 3, trade.SaleStatusDelivered)
	require.NoError(t, repo.Create(ctx, sale))

	got, err := repo.FindByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "ozon", got.Channel)
	assert.True(t, got.Revenue.Equal(decimal.NewFromInt(300)))
	require.Len(t, got.Fees, 1)
	assert.True(t, got.Fees[0].Amount.Equal(decimal.NewFromInt(5)))

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormSaleRepository_Create_DuplicateNaturalKey(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSaleRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, newSale(t, "ozon", "A-1", nil, 1, trade.SaleStatusDelivered)))
	err := repo.Create(ctx, newSale(t, "ozon", "A-1", nil, 1, trade.SaleStatusDelivered))
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	require.NoError(t, repo.Create(ctx, newSale(t, "wb", "A-1", nil, 1, trade.SaleStatusDelivered)),
		"same order on another channel is a different sale")
}

func TestGormSaleRepository_SaveWithLock(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSaleRepository(newTestDB(t))
	sale := newSale(t, "ozon", "A-2", nil, 1, trade.SaleStatusDelivered)
	require.NoError(t, repo.Create(ctx, sale))

	first, err := repo.FindByID(ctx, sale.ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, sale.ID)
	require.NoError(t, err)

	require.NoError(t, first.Return(time.Now()))
	require.NoError(t, repo.SaveWithLock(ctx, first))
	assert.Equal(t, sale.Version+1, first.Version)

	require.NoError(t, second.Return(time.Now()))
	assert.ErrorIs(t, repo.SaveWithLock(ctx, second), shared.ErrConcurrencyConflict)

	missing := newSale(t, "ozon", "A-3", nil, 1, trade.SaleStatusDelivered)
	assert.ErrorIs(t, repo.SaveWithLock(ctx, missing), shared.ErrNotFound)
}

func TestGormSaleRepository_ConsumptionAggregates(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSaleRepository(newTestDB(t))
	p1, p2 := uuid.New(), uuid.New()

	require.NoError(t, repo.Create(ctx, newSale(t, "ozon", "1", &p1, 2, trade.SaleStatusDelivered)))
	require.NoError(t, repo.Create(ctx, newSale(t, "ozon", "2", &p1, 3, trade.SaleStatusActive)))
	returned := newSale(t, "ozon", "3", &p1, 7, trade.SaleStatusDelivered)
	require.NoError(t, repo.Create(ctx, returned))
	require.NoError(t, returned.Return(time.Now()))
	require.NoError(t, repo.SaveWithLock(ctx, returned))

	counts, err := repo.CountConsumingByProducts(ctx, []uuid.UUID{p1, p2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[p1])
	assert.Zero(t, counts[p2])

	sums, err := repo.SumConsumedQty(ctx, []uuid.UUID{p1, p2})
	require.NoError(t, err)
	assert.True(t, sums[p1].Equal(decimal.NewFromInt(5)), sums[p1].String())
}

func TestGormSaleRepository_Query(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSaleRepository(newTestDB(t))
	productID := uuid.New()

	withProduct := newSale(t, "ozon", "1", &productID, 1, trade.SaleStatusDelivered)
	noProduct := newSale(t, "ozon", "2", nil, 1, trade.SaleStatusDelivered)
	otherChannel := newSale(t, "wb", "3", &productID, 1, trade.SaleStatusDelivered)
	for _, s := range []*trade.Sale{withProduct, noProduct, otherChannel} {
		require.NoError(t, repo.Create(ctx, s))
	}

	tests := []struct {
		name string
		q    trade.SaleQuery
		want []uuid.UUID
	}{
		{name: "channel", q: trade.SaleQuery{Channel: "ozon"}, want: []uuid.UUID{withProduct.ID, noProduct.ID}},
		{name: "with product", q: trade.SaleQuery{WithProduct: true}, want: []uuid.UUID{withProduct.ID, otherChannel.ID}},
		{name: "zero cost with product", q: trade.SaleQuery{WithProduct: true, ZeroCostOnly: true, Channel: "wb"}, want: []uuid.UUID{otherChannel.ID}},
		{name: "excluded status", q: trade.SaleQuery{ExcludeStatus: []trade.SaleStatus{trade.SaleStatusDelivered}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sales, err := repo.Query(ctx, tt.q)
			require.NoError(t, err)
			ids := make([]uuid.UUID, len(sales))
			for i, s := range sales {
				ids[i] = s.ID
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}
}

func TestGormSaleRepository_QueryByReturnTime(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSaleRepository(newTestDB(t))
	soldAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	kept := newSale(t, "ozon", "1", nil, 1, trade.SaleStatusDelivered)
	returnedEarly := newSale(t, "ozon", "2", nil, 1, trade.SaleStatusDelivered)
	returnedLate := newSale(t, "ozon", "3", nil, 1, trade.SaleStatusDelivered)
	for _, s := range []*trade.Sale{kept, returnedEarly, returnedLate} {
		require.NoError(t, repo.Create(ctx, s))
	}
	require.NoError(t, returnedEarly.Return(soldAt.Add(24*time.Hour)))
	require.NoError(t, repo.SaveWithLock(ctx, returnedEarly))
	require.NoError(t, returnedLate.Return(soldAt.Add(10*24*time.Hour)))
	require.NoError(t, repo.SaveWithLock(ctx, returnedLate))

	cutoff := soldAt.Add(5 * 24 * time.Hour)
	tests := []struct {
		name string
		q    trade.SaleQuery
		want []uuid.UUID
	}{
		{name: "returned by cutoff dropped", q: trade.SaleQuery{ExcludeReturnedBy: &cutoff}, want: []uuid.UUID{kept.ID, returnedLate.ID}},
		{name: "returned after cutoff", q: trade.SaleQuery{ReturnedFrom: &cutoff}, want: []uuid.UUID{returnedLate.ID}},
		{name: "returned up to cutoff", q: trade.SaleQuery{ReturnedTo: &cutoff}, want: []uuid.UUID{returnedEarly.ID}},
		{name: "sold before", q: trade.SaleQuery{SoldBefore: &soldAt}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sales, err := repo.Query(ctx, tt.q)
			require.NoError(t, err)
			ids := make([]uuid.UUID, len(sales))
			for i, s := range sales {
				ids[i] = s.ID
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}
}

func TestGormSaleRepository_FindAll_SQLShape(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := NewGormSaleRepository(mockDB.DB)

	mockDB.Mock.ExpectQuery(`SELECT count\(\*\) FROM "sales" WHERE channel = \$1 AND "sales"."deleted_at" IS NULL`).
		WillReturnRows(mockDB.Mock.NewRows([]string{"count"}).AddRow(0))
	mockDB.Mock.ExpectQuery(`SELECT \* FROM "sales" WHERE channel = \$1 AND "sales"."deleted_at" IS NULL ORDER BY created_at DESC LIMIT`).
		WillReturnRows(mockDB.Mock.NewRows([]string{"id"}))

	sales, total, err := repo.FindAll(context.Background(), shared.DefaultFilter().WithEqual("channel", "ozon"))
	require.NoError(t, err)
	assert.Empty(t, sales)
	assert.Zero(t, total)
	assert.NoError(t, mockDB.Mock.ExpectationsWereMet())
}
