package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	financeapp "github.com/erp/ledger/internal/application/finance"
	importapp "github.com/erp/ledger/internal/application/import"
	inventoryapp "github.com/erp/ledger/internal/application/inventory"
	reportapp "github.com/erp/ledger/internal/application/report"
	tradeapp "github.com/erp/ledger/internal/application/trade"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// newTestEngine wires the identity middleware the handlers rely on
func newTestEngine() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.UserIdentity())
	return r
}

func doJSON(r http.Handler, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, target, &buf)
	if buf.Len() > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

type mockPurchaseOrderService struct{ mock.Mock }

func (m *mockPurchaseOrderService) Create(ctx context.Context, req tradeapp.CreatePurchaseOrderRequest) (*tradeapp.PurchaseOrderResponse, error) {
	args := m.Called(ctx, req)
	return orderResult(args)
}

func (m *mockPurchaseOrderService) GetByID(ctx context.Context, id uuid.UUID) (*tradeapp.PurchaseOrderResponse, error) {
	return orderResult(m.Called(ctx, id))
}

func (m *mockPurchaseOrderService) List(ctx context.Context, filter tradeapp.PurchaseOrderListFilter) (shared.Paginated[tradeapp.PurchaseOrderResponse], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[tradeapp.PurchaseOrderResponse]), args.Error(1)
}

func (m *mockPurchaseOrderService) MarkOrdered(ctx context.Context, id uuid.UUID) (*tradeapp.PurchaseOrderResponse, error) {
	return orderResult(m.Called(ctx, id))
}

func (m *mockPurchaseOrderService) MarkShipped(ctx context.Context, id uuid.UUID) (*tradeapp.PurchaseOrderResponse, error) {
	return orderResult(m.Called(ctx, id))
}

func (m *mockPurchaseOrderService) Cancel(ctx context.Context, id uuid.UUID) (*tradeapp.PurchaseOrderResponse, error) {
	return orderResult(m.Called(ctx, id))
}

func orderResult(args mock.Arguments) (*tradeapp.PurchaseOrderResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tradeapp.PurchaseOrderResponse), args.Error(1)
}

type mockReceivingService struct{ mock.Mock }

func (m *mockReceivingService) ReceiveOrder(ctx context.Context, orderID uuid.UUID, req tradeapp.ReceivePurchaseOrderRequest) (*tradeapp.ReceiptResponse, error) {
	args := m.Called(ctx, orderID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tradeapp.ReceiptResponse), args.Error(1)
}

func (m *mockReceivingService) UnreceiveOrder(ctx context.Context, orderID uuid.UUID) (*tradeapp.UnreceiveResponse, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tradeapp.UnreceiveResponse), args.Error(1)
}

type mockSaleService struct{ mock.Mock }

func (m *mockSaleService) GetSale(ctx context.Context, id uuid.UUID) (*tradeapp.SaleResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tradeapp.SaleResponse), args.Error(1)
}

func (m *mockSaleService) CreateSale(ctx context.Context, req tradeapp.CreateSaleRequest) (*tradeapp.SaleResultResponse, error) {
	return saleResult(m.Called(ctx, req))
}

func (m *mockSaleService) ReturnSale(ctx context.Context, saleID uuid.UUID) (*tradeapp.SaleResultResponse, error) {
	return saleResult(m.Called(ctx, saleID))
}

func (m *mockSaleService) WriteOff(ctx context.Context, req tradeapp.WriteOffRequest) (*tradeapp.SaleResultResponse, error) {
	return saleResult(m.Called(ctx, req))
}

func saleResult(args mock.Arguments) (*tradeapp.SaleResultResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tradeapp.SaleResultResponse), args.Error(1)
}

type mockLotService struct{ mock.Mock }

func (m *mockLotService) CreateOpeningBalance(ctx context.Context, req inventoryapp.CreateOpeningBalanceRequest) (*inventoryapp.LotResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.LotResponse), args.Error(1)
}

func (m *mockLotService) ListLots(ctx context.Context, productID uuid.UUID) ([]inventoryapp.LotResponse, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventoryapp.LotResponse), args.Error(1)
}

type mockAvailabilityService struct{ mock.Mock }

func (m *mockAvailabilityService) Available(ctx context.Context, productID uuid.UUID) (*inventoryapp.AvailabilityResponse, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.AvailabilityResponse), args.Error(1)
}

type mockCostQuoter struct{ mock.Mock }

func (m *mockCostQuoter) Quote(ctx context.Context, method strategy.CostMethod, productID uuid.UUID, quantity decimal.Decimal) (*inventoryapp.CostQuoteResponse, error) {
	args := m.Called(ctx, method, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.CostQuoteResponse), args.Error(1)
}

type mockReportService struct{ mock.Mock }

func (m *mockReportService) ProfitAndLoss(ctx context.Context, filter reportapp.PeriodFilter) (*reportapp.ProfitAndLossResponse, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reportapp.ProfitAndLossResponse), args.Error(1)
}

func (m *mockReportService) UnitEconomics(ctx context.Context, filter reportapp.PeriodFilter) (*reportapp.UnitEconomicsResponse, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reportapp.UnitEconomicsResponse), args.Error(1)
}

func (m *mockReportService) StockValuation(ctx context.Context) (*reportapp.StockValuationResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reportapp.StockValuationResponse), args.Error(1)
}

type mockRepriceService struct{ mock.Mock }

func (m *mockRepriceService) RepriceZeroCostSales(ctx context.Context, from, to *time.Time) (*reportapp.RepricedSalesResponse, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reportapp.RepricedSalesResponse), args.Error(1)
}

type mockExporter struct{ mock.Mock }

func (m *mockExporter) ExportStockValuation(ctx context.Context) ([]byte, string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

type mockLedgerService struct{ mock.Mock }

func (m *mockLedgerService) List(ctx context.Context, filter shared.Filter) (shared.Paginated[financeapp.TransactionResponse], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[financeapp.TransactionResponse]), args.Error(1)
}

func (m *mockLedgerService) Summarize(ctx context.Context, filter finance.SummaryFilter) (*financeapp.LedgerSummary, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.LedgerSummary), args.Error(1)
}

type mockSaleImporter struct{ mock.Mock }

func (m *mockSaleImporter) Import(ctx context.Context, r io.Reader, recordedBy string) (*importapp.SaleImportResult, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(ctx, string(body), recordedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importapp.SaleImportResult), args.Error(1)
}

type mockOpeningBalanceImporter struct{ mock.Mock }

func (m *mockOpeningBalanceImporter) Import(ctx context.Context, r io.Reader) (*importapp.OpeningBalanceImportResult, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(ctx, string(body))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importapp.OpeningBalanceImportResult), args.Error(1)
}
