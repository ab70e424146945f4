package trade

import (
	"context"
	"testing"
	"time"

	appfinance "github.com/erp/ledger/internal/application/finance"
	appinventory "github.com/erp/ledger/internal/application/inventory"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/infrastructure/lock"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	infrastrategy "github.com/erp/ledger/internal/infrastructure/strategy"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

// ledgerFixture wires the trade workflows against a private SQLite database
type ledgerFixture struct {
	db           *gorm.DB
	orderRepo    *persistence.GormPurchaseOrderRepository
	lotRepo      *persistence.GormLotRepository
	saleRepo     *persistence.GormSaleRepository
	financeRepo  *persistence.GormFinanceTransactionRepository
	costing      *appinventory.CostingService
	availability *appinventory.AvailabilityService
	ledger       *appfinance.LedgerService
	orders       *PurchaseOrderService
	receiving    *ReceivingService
	sales        *SaleService
	publisher    *testutil.RecordingPublisher
}

func newLedgerFixture(t *testing.T, defaultMethod strategy.CostMethod) *ledgerFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	logger := zap.NewNop()

	registry, err := infrastrategy.NewRegistryWithDefaults(defaultMethod)
	require.NoError(t, err)

	f := &ledgerFixture{
		db:          db,
		orderRepo:   persistence.NewGormPurchaseOrderRepository(db),
		lotRepo:     persistence.NewGormLotRepository(db),
		saleRepo:    persistence.NewGormSaleRepository(db),
		financeRepo: persistence.NewGormFinanceTransactionRepository(db),
		publisher:   testutil.NewRecordingPublisher(),
	}
	scope := persistence.NewGormTransactionScope(db)
	locker := lock.NewLocalLocker()

	f.costing = appinventory.NewCostingService(f.lotRepo, registry, logger)
	f.availability = appinventory.NewAvailabilityService(f.orderRepo, f.lotRepo, f.saleRepo)
	f.ledger = appfinance.NewLedgerService(f.financeRepo, logger)

	f.orders = NewPurchaseOrderService(f.orderRepo, logger)
	f.orders.SetEventPublisher(f.publisher)
	f.receiving = NewReceivingService(scope, f.orderRepo, locker, f.ledger, logger)
	f.receiving.SetEventPublisher(f.publisher)
	f.sales = NewSaleService(scope, f.saleRepo, f.costing, locker, f.ledger, logger)
	f.sales.SetEventPublisher(f.publisher)

	clock := func() time.Time { return fixedNow }
	f.orders.now = clock
	f.receiving.now = clock
	f.sales.now = clock
	return f
}

type lineSpec struct {
	productID     uuid.UUID
	qty           string
	purchasePrice string
	packaging     string
	logistics     string
}

// receive creates an order with the given lines and receives it in full
func (f *ledgerFixture) receive(t *testing.T, sharedCost string, lines ...lineSpec) *ReceiptResponse {
	t.Helper()
	order := f.createOrder(t, sharedCost, lines...)
	resp, err := f.receiving.ReceiveOrder(context.Background(), order.ID, ReceivePurchaseOrderRequest{})
	require.NoError(t, err)
	return resp
}

func (f *ledgerFixture) createOrder(t *testing.T, sharedCost string, lines ...lineSpec) *PurchaseOrderResponse {
	t.Helper()
	req := CreatePurchaseOrderRequest{SupplierRef: "SUP-" + uuid.NewString()[:8]}
	if sharedCost != "" {
		req.SharedCosts = []SharedCostInput{{Name: "freight", Amount: dec(sharedCost)}}
	}
	for _, l := range lines {
		req.Lines = append(req.Lines, CreatePurchaseOrderLineInput{
			ProductID:     l.productID,
			OrderedQty:    dec(l.qty),
			PurchasePrice: dec(l.purchasePrice),
			Packaging:     decOrZero(l.packaging),
			Logistics:     decOrZero(l.logistics),
		})
	}
	order, err := f.orders.Create(context.Background(), req)
	require.NoError(t, err)
	return order
}

func (f *ledgerFixture) entries(t *testing.T, txType finance.TransactionType) []*finance.Transaction {
	t.Helper()
	all, _, err := f.financeRepo.FindAll(context.Background(), newTypeFilter(txType))
	require.NoError(t, err)
	return all
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	return dec(s)
}

func newTypeFilter(txType finance.TransactionType) shared.Filter {
	return shared.DefaultFilter().WithEqual("type", txType).Unpaged()
}

// now moves the fixture clock so later receipts sort after earlier ones
func (f *ledgerFixture) now(at time.Time) {
	clock := func() time.Time { return at }
	f.orders.now = clock
	f.receiving.now = clock
	f.sales.now = clock
}

func lotRemaining(t *testing.T, f *ledgerFixture, productID uuid.UUID) map[uuid.UUID]decimal.Decimal {
	t.Helper()
	lots, err := f.lotRepo.FindByProduct(context.Background(), productID)
	require.NoError(t, err)
	out := make(map[uuid.UUID]decimal.Decimal, len(lots))
	for _, l := range lots {
		out[l.ID] = l.RemainingQty
	}
	return out
}
