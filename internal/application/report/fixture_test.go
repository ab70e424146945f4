package report

import (
	"context"
	"testing"
	"time"

	appfinance "github.com/erp/ledger/internal/application/finance"
	appinventory "github.com/erp/ledger/internal/application/inventory"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	infrastrategy "github.com/erp/ledger/internal/infrastructure/strategy"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var day0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func at(days int) time.Time { return day0.Add(time.Duration(days) * 24 * time.Hour) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type reportFixture struct {
	lotRepo     *persistence.GormLotRepository
	saleRepo    *persistence.GormSaleRepository
	financeRepo *persistence.GormFinanceTransactionRepository
	costing     *appinventory.CostingService
	reports     *ReportService
	reprice     *RepriceService
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	logger := zap.NewNop()

	registry, err := infrastrategy.NewRegistryWithDefaults(strategy.CostMethodWeightedAverage)
	require.NoError(t, err)

	f := &reportFixture{
		lotRepo:     persistence.NewGormLotRepository(db),
		saleRepo:    persistence.NewGormSaleRepository(db),
		financeRepo: persistence.NewGormFinanceTransactionRepository(db),
	}
	orderRepo := persistence.NewGormPurchaseOrderRepository(db)
	f.costing = appinventory.NewCostingService(f.lotRepo, registry, logger)
	availability := appinventory.NewAvailabilityService(orderRepo, f.lotRepo, f.saleRepo)
	ledger := appfinance.NewLedgerService(f.financeRepo, logger)

	f.reports = NewReportService(ledger, f.saleRepo, f.lotRepo, availability, f.costing, logger)
	f.reports.now = func() time.Time { return at(30) }
	f.reprice = NewRepriceService(f.saleRepo, f.lotRepo, f.costing.SimulateFIFOAgainst, logger)
	return f
}

func (f *reportFixture) addLot(t *testing.T, productID uuid.UUID, qty, unitCost string, receivedAt time.Time) *inventory.Lot {
	t.Helper()
	lot, err := inventory.NewLot(productID, nil, inventory.LotSourceOpeningBalance, dec(qty), dec(unitCost), "", receivedAt)
	require.NoError(t, err)
	require.NoError(t, f.lotRepo.Save(context.Background(), lot))
	return lot
}

type saleSpec struct {
	channel   string
	productID *uuid.UUID
	qty       string
	price     string
	unitCOGS  string
	fee       string
	soldAt    time.Time
}

// addSale stores a costed sale and its revenue entry the way the sale
// workflow leaves them
func (f *reportFixture) addSale(t *testing.T, s saleSpec) *trade.Sale {
	t.Helper()
	ctx := context.Background()
	draft := trade.SaleDraft{
		Channel:        s.channel,
		ChannelOrderID: uuid.NewString(),
		ProductID:      s.productID,
		Quantity:       dec(s.qty),
		PricePerUnit:   dec(s.price),
		SoldAt:         s.soldAt,
	}
	if s.fee != "" {
		draft.Fees = []trade.Fee{{Name: "commission", Amount: dec(s.fee)}}
	}
	sale, err := trade.NewSale(draft)
	require.NoError(t, err)
	if s.unitCOGS != "" {
		unit := dec(s.unitCOGS)
		sale.ApplyCost(strategy.CostMethodWeightedAverage, unit, unit.Mul(sale.Quantity))
	}
	require.NoError(t, f.saleRepo.Create(ctx, sale))
	if sale.Revenue.IsPositive() {
		f.append(t, finance.SaleRevenue(sale.ID, sale.ProductID, sale.Revenue, "", sale.SoldAt))
	}
	return sale
}

func (f *reportFixture) returnSale(t *testing.T, sale *trade.Sale, now time.Time) {
	t.Helper()
	require.NoError(t, sale.Return(now))
	require.NoError(t, f.saleRepo.SaveWithLock(context.Background(), sale))
	f.append(t, finance.Refund(sale.ID, sale.ProductID, sale.Revenue, "", now))
}

func (f *reportFixture) writeOff(t *testing.T, productID uuid.UUID, qty, unitCOGS string, now time.Time) {
	t.Helper()
	sale, err := trade.NewWriteOff(productID, dec(qty), "damaged", now)
	require.NoError(t, err)
	unit := dec(unitCOGS)
	sale.ApplyCost(strategy.CostMethodWeightedAverage, unit, unit.Mul(sale.Quantity))
	require.NoError(t, f.saleRepo.Create(context.Background(), sale))
	f.append(t, finance.InventoryLoss(sale.ID, productID, sale.TotalCOGS, "", "damaged", now))
}

func (f *reportFixture) append(t *testing.T, e finance.Entry) {
	t.Helper()
	tx, err := finance.NewTransaction(e)
	require.NoError(t, err)
	require.NoError(t, f.financeRepo.Append(context.Background(), tx))
}

func ptr[T any](v T) *T { return &v }
