package integration

import (
	"context"
	"errors"
	"testing"

	reportapp "github.com/erp/ledger/internal/application/report"
	tradeapp "github.com/erp/ledger/internal/application/trade"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/internal/infrastructure/lock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// receiveLot creates and receives a one-line order, returning the order ID
func (s *ledgerStack) receiveLot(t *testing.T, productID uuid.UUID, qty, purchasePrice string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	order, err := s.orders.Create(ctx, tradeapp.CreatePurchaseOrderRequest{
		SupplierRef: "SUP-" + qty + "-" + purchasePrice,
		Lines: []tradeapp.CreatePurchaseOrderLineInput{{
			ProductID:     productID,
			OrderedQty:    dec(qty),
			PurchasePrice: dec(purchasePrice),
		}},
	})
	require.NoError(t, err)
	receipt, err := s.receiving.ReceiveOrder(ctx, order.ID, tradeapp.ReceivePurchaseOrderRequest{})
	require.NoError(t, err)
	require.Equal(t, trade.PurchaseOrderStatusReceived.String(), receipt.Status)
	return order.ID
}

func TestLedgerFlow_LandedCostOnPostgres(t *testing.T) {
	s := newLedgerStack(t, NewTestDB(t), stackOptions{method: strategy.CostMethodFIFO, locker: lock.NewLocalLocker()})
	ctx := context.Background()
	productID := uuid.New()

	order, err := s.orders.Create(ctx, tradeapp.CreatePurchaseOrderRequest{
		SupplierRef: "SUP-1",
		SharedCosts: []tradeapp.SharedCostInput{{Name: "freight", Amount: dec("20")}},
		Lines: []tradeapp.CreatePurchaseOrderLineInput{{
			ProductID:     productID,
			OrderedQty:    dec("10"),
			PurchasePrice: dec("1000"),
			Packaging:     dec("50"),
			Logistics:     dec("30"),
		}},
	})
	require.NoError(t, err)

	receipt, err := s.receiving.ReceiveOrder(ctx, order.ID, tradeapp.ReceivePurchaseOrderRequest{})
	require.NoError(t, err)
	require.Len(t, receipt.Lines, 1)
	requireDecEqual(t, "110", receipt.Lines[0].UnitCost)
	requireDecEqual(t, "1100", receipt.TotalCost)
	require.NotNil(t, receipt.FinanceTransactionID)

	// shared costs survive the jsonb round trip
	stored, err := s.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.SharedCosts, 1)
	assert.Equal(t, "freight", stored.SharedCosts[0].Name)
	requireDecEqual(t, "20", stored.SharedCosts[0].Amount)

	lots, err := s.lotRepo.FindByProduct(ctx, productID)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, receipt.Lines[0].LotID, lots[0].ID)
	requireDecEqual(t, "10", lots[0].RemainingQty)

	assert.Contains(t, s.publisher.Types(), trade.EventTypePurchaseOrderReceived)
}

func TestLedgerFlow_FIFOSaleReturnAndReports(t *testing.T) {
	s := newLedgerStack(t, NewTestDB(t), stackOptions{method: strategy.CostMethodFIFO, locker: lock.NewLocalLocker()})
	ctx := context.Background()
	productID := uuid.New()

	first := s.receiveLot(t, productID, "5", "50")
	second := s.receiveLot(t, productID, "5", "100")

	result, err := s.sales.CreateSale(ctx, tradeapp.CreateSaleRequest{
		Channel:        "shop",
		ChannelOrderID: "ORD-1",
		ChannelSKU:     "SKU-1",
		ProductID:      &productID,
		Quantity:       dec("7"),
		PricePerUnit:   dec("30"),
		Fees:           []tradeapp.FeeInput{{Name: "commission", Amount: dec("5")}},
	})
	require.NoError(t, err)
	requireDecEqual(t, "90", result.Sale.TotalCOGS)
	requireDecEqual(t, "210", result.Sale.Revenue)
	assert.True(t, result.Shortfall.IsZero())
	assert.Equal(t, strategy.CostMethodFIFO, result.Sale.CostingMethod)

	avail, err := s.availability.Available(ctx, productID)
	require.NoError(t, err)
	requireDecEqual(t, "10", avail.Received)
	requireDecEqual(t, "7", avail.Consumed)
	requireDecEqual(t, "3", avail.Available)

	pnl, err := s.reports.ProfitAndLoss(ctx, reportapp.PeriodFilter{})
	require.NoError(t, err)
	requireDecEqual(t, "210", pnl.GrossRevenue)
	requireDecEqual(t, "90", pnl.COGS)
	requireDecEqual(t, "5", pnl.Fees)
	requireDecEqual(t, "115", pnl.GrossProfit)
	requireDecEqual(t, "150", pnl.PurchasingSpend)
	assert.Equal(t, 1, pnl.SalesCount)

	valuation, err := s.reports.StockValuation(ctx)
	require.NoError(t, err)
	requireDecEqual(t, "3", valuation.TotalAvailable)
	requireDecEqual(t, "45", valuation.TotalValue)

	// the product still has a live sale, so neither receipt can be reversed
	_, err = s.receiving.UnreceiveOrder(ctx, first)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrPreconditionViolation))

	returned, err := s.sales.ReturnSale(ctx, result.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.SaleStatusReturned.String(), returned.Sale.Status)
	require.NotNil(t, returned.FinanceTransactionID)

	_, err = s.sales.ReturnSale(ctx, result.Sale.ID)
	assert.True(t, errors.Is(err, shared.ErrInvalidStateTransition))

	pnl, err = s.reports.ProfitAndLoss(ctx, reportapp.PeriodFilter{})
	require.NoError(t, err)
	requireDecEqual(t, "210", pnl.Refunds)
	requireDecEqual(t, "0", pnl.NetRevenue)
	requireDecEqual(t, "0", pnl.COGS)
	assert.Equal(t, 0, pnl.SalesCount)

	unreceived, err := s.receiving.UnreceiveOrder(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, trade.PurchaseOrderStatusDraft.String(), unreceived.Status)
	assert.Equal(t, int64(1), unreceived.LotsRemoved)
	assert.Equal(t, int64(1), unreceived.PaymentsReversed)

	assert.Equal(t, []string{
		trade.EventTypePurchaseOrderCreated,
		trade.EventTypePurchaseOrderReceived,
		trade.EventTypePurchaseOrderCreated,
		trade.EventTypePurchaseOrderReceived,
		trade.EventTypeSaleCreated,
		trade.EventTypeSaleReturned,
		trade.EventTypePurchaseOrderUnreceived,
	}, s.publisher.Types())
}

func TestLedgerFlow_WeightedAverageDoesNotConsumeLots(t *testing.T) {
	s := newLedgerStack(t, NewTestDB(t), stackOptions{method: strategy.CostMethodWeightedAverage, locker: lock.NewLocalLocker()})
	ctx := context.Background()
	productID := uuid.New()

	s.receiveLot(t, productID, "5", "50")
	s.receiveLot(t, productID, "5", "100")

	result, err := s.sales.CreateSale(ctx, tradeapp.CreateSaleRequest{
		Channel:      "shop",
		ProductID:    &productID,
		Quantity:     dec("4"),
		PricePerUnit: dec("25"),
	})
	require.NoError(t, err)
	requireDecEqual(t, "15", result.Sale.UnitCOGS)
	requireDecEqual(t, "60", result.Sale.TotalCOGS)

	lots, err := s.lotRepo.FindByProduct(ctx, productID)
	require.NoError(t, err)
	for _, l := range lots {
		requireDecEqual(t, "5", l.RemainingQty)
	}

	avail, err := s.availability.Available(ctx, productID)
	require.NoError(t, err)
	requireDecEqual(t, "6", avail.Available)
}

func TestLedgerFlow_WriteOffBooksInventoryLoss(t *testing.T) {
	s := newLedgerStack(t, NewTestDB(t), stackOptions{method: strategy.CostMethodFIFO, locker: lock.NewLocalLocker()})
	ctx := context.Background()
	productID := uuid.New()

	s.receiveLot(t, productID, "10", "100")

	result, err := s.sales.WriteOff(ctx, tradeapp.WriteOffRequest{
		ProductID: productID,
		Quantity:  dec("2"),
		Reason:    "damaged in storage",
	})
	require.NoError(t, err)
	requireDecEqual(t, "20", result.Sale.TotalCOGS)
	require.NotNil(t, result.FinanceTransactionID)
	assert.Equal(t, trade.SaleStatusDelivered.String(), result.Sale.Status)

	pnl, err := s.reports.ProfitAndLoss(ctx, reportapp.PeriodFilter{})
	require.NoError(t, err)
	requireDecEqual(t, "20", pnl.InventoryLoss)
	requireDecEqual(t, "0", pnl.COGS)
	requireDecEqual(t, "-20", pnl.OperatingProfit)

	avail, err := s.availability.Available(ctx, productID)
	require.NoError(t, err)
	requireDecEqual(t, "8", avail.Available)
}

func TestLedgerFlow_DuplicateNaturalKey(t *testing.T) {
	s := newLedgerStack(t, NewTestDB(t), stackOptions{method: strategy.CostMethodFIFO, locker: lock.NewLocalLocker()})
	ctx := context.Background()

	req := tradeapp.CreateSaleRequest{
		Channel:        "marketplace",
		ChannelOrderID: "M-100",
		ChannelSKU:     "SKU-9",
		Quantity:       dec("1"),
		PricePerUnit:   dec("12"),
	}
	_, err := s.sales.CreateSale(ctx, req)
	require.NoError(t, err)

	_, err = s.sales.CreateSale(ctx, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrAlreadyExists))

	// the rejected sale left no income behind
	pnl, err := s.reports.ProfitAndLoss(ctx, reportapp.PeriodFilter{})
	require.NoError(t, err)
	requireDecEqual(t, "12", pnl.GrossRevenue)
}

func TestLedgerFlow_ShortfallWithoutLots(t *testing.T) {
	s := newLedgerStack(t, NewTestDB(t), stackOptions{method: strategy.CostMethodFIFO, locker: lock.NewLocalLocker()})
	ctx := context.Background()
	productID := uuid.New()

	s.receiveLot(t, productID, "2", "20")

	result, err := s.sales.CreateSale(ctx, tradeapp.CreateSaleRequest{
		Channel:      "shop",
		ProductID:    &productID,
		Quantity:     dec("5"),
		PricePerUnit: dec("15"),
	})
	require.NoError(t, err)
	requireDecEqual(t, "3", result.Shortfall)
	requireDecEqual(t, "20", result.Sale.TotalCOGS)
	assert.Contains(t, result.Sale.Note, "cost shortfall")

	lots, err := s.lotRepo.FindByProduct(ctx, productID)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].RemainingQty.IsZero())
}
