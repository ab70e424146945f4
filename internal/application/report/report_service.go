package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	appfinance "github.com/erp/ledger/internal/application/finance"
	appinventory "github.com/erp/ledger/internal/application/inventory"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// ReportService provides the read-only financial and stock reports
type ReportService struct {
	ledger       *appfinance.LedgerService
	saleRepo     trade.SaleRepository
	lotRepo      inventory.LotRepository
	availability *appinventory.AvailabilityService
	costing      *appinventory.CostingService
	metrics      *telemetry.LedgerMetrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewReportService creates a new ReportService
func NewReportService(
	ledger *appfinance.LedgerService,
	saleRepo trade.SaleRepository,
	lotRepo inventory.LotRepository,
	availability *appinventory.AvailabilityService,
	costing *appinventory.CostingService,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		ledger:       ledger,
		saleRepo:     saleRepo,
		lotRepo:      lotRepo,
		availability: availability,
		costing:      costing,
		logger:       logger,
		now:          time.Now,
	}
}

// SetLedgerMetrics sets the metrics collector
func (s *ReportService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// ===================== Profit and loss =====================

// ProfitAndLoss combines the ledger aggregation with the cost and fees of the
// period's sales that were not returned by its end. A sale sold before the
// period and returned inside it reverses its cost and fees here, next to the
// refund the ledger books on the same day.
func (s *ReportService) ProfitAndLoss(ctx context.Context, filter PeriodFilter) (*ProfitAndLossResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "report.profit_and_loss",
		telemetry.WithAttribute("channel", filter.Channel),
	)
	defer span.End()

	summary, err := s.ledger.Summarize(ctx, summaryFilter(filter))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("summarize ledger: %w", err)
	}
	sales, err := s.saleRepo.Query(ctx, keptSales(filter))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("query sales: %w", err)
	}

	var reversed []*trade.Sale
	if filter.From != nil {
		reversed, err = s.saleRepo.Query(ctx, reversedSales(filter))
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("query returned sales: %w", err)
		}
	}

	resp := &ProfitAndLossResponse{
		From:            filter.From,
		To:              filter.To,
		Channel:         filter.Channel,
		RecordedBy:      filter.RecordedBy,
		Currency:        summary.Currency,
		GrossRevenue:    decimal.Zero,
		Refunds:         decimal.Zero,
		COGS:            decimal.Zero,
		Fees:            decimal.Zero,
		ReversedCOGS:    decimal.Zero,
		ReversedFees:    decimal.Zero,
		InventoryLoss:   decimal.Zero,
		PurchasingSpend: decimal.Zero,
		NetCashFlow:     summary.Net,
		Ledger:          summary,
	}
	for _, t := range summary.ByType {
		switch finance.TransactionType(t.Type) {
		case finance.TransactionTypeSaleRevenue:
			resp.GrossRevenue = resp.GrossRevenue.Add(t.Amount)
		case finance.TransactionTypeRefund:
			resp.Refunds = resp.Refunds.Add(t.Amount)
		case finance.TransactionTypeSupplierPayment:
			resp.PurchasingSpend = resp.PurchasingSpend.Add(t.Amount)
		case finance.TransactionTypeAdjustment:
			if t.Direction == finance.DirectionExpense.String() {
				resp.InventoryLoss = resp.InventoryLoss.Add(t.Amount)
			}
		}
	}

	for _, sale := range sales {
		if sale.IsWriteOff() {
			continue
		}
		resp.SalesCount++
		resp.COGS = resp.COGS.Add(sale.TotalCOGS)
		resp.Fees = resp.Fees.Add(sale.TotalFees())
		if sale.HasProduct() && sale.TotalCOGS.IsZero() {
			resp.ZeroCostSales++
		}
	}
	for _, sale := range reversed {
		if sale.IsWriteOff() {
			continue
		}
		resp.ReversedSales++
		resp.ReversedCOGS = resp.ReversedCOGS.Add(sale.TotalCOGS)
		resp.ReversedFees = resp.ReversedFees.Add(sale.TotalFees())
	}
	resp.COGS = resp.COGS.Sub(resp.ReversedCOGS)
	resp.Fees = resp.Fees.Sub(resp.ReversedFees)

	resp.NetRevenue = resp.GrossRevenue.Sub(resp.Refunds)
	resp.GrossProfit = resp.NetRevenue.Sub(resp.COGS).Sub(resp.Fees)
	resp.OperatingProfit = resp.GrossProfit.Sub(resp.InventoryLoss)

	telemetry.SetAttributes(span, "sales", resp.SalesCount, "gross_profit", resp.GrossProfit.String())
	telemetry.SetOK(span)
	return resp, nil
}

// ===================== Unit economics =====================

// UnitEconomics aggregates sales not returned by the period end per product. Sales without a
// product are grouped into one row with no product ID.
func (s *ReportService) UnitEconomics(ctx context.Context, filter PeriodFilter) (*UnitEconomicsResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "report.unit_economics",
		telemetry.WithAttribute("channel", filter.Channel),
	)
	defer span.End()

	summary, err := s.ledger.Summarize(ctx, summaryFilter(filter))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("summarize ledger: %w", err)
	}
	sales, err := s.saleRepo.Query(ctx, keptSales(filter))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("query sales: %w", err)
	}

	rows := make(map[uuid.UUID]*UnitEconomicsRow)
	total := newUnitEconomicsRow(nil)
	for _, sale := range sales {
		if sale.IsWriteOff() {
			continue
		}
		key := uuid.Nil
		if sale.HasProduct() {
			key = *sale.ProductID
		}
		row, ok := rows[key]
		if !ok {
			row = newUnitEconomicsRow(sale.ProductID)
			rows[key] = row
		}
		row.add(sale)
		total.add(sale)
	}

	products := make([]UnitEconomicsRow, 0, len(rows))
	for _, row := range rows {
		row.finish()
		products = append(products, *row)
	}
	sort.Slice(products, func(i, j int) bool {
		if c := products[i].Revenue.Cmp(products[j].Revenue); c != 0 {
			return c > 0
		}
		return productKey(products[i].ProductID) < productKey(products[j].ProductID)
	})
	total.finish()

	telemetry.SetAttributes(span, "products", len(products))
	telemetry.SetOK(span)
	return &UnitEconomicsResponse{
		From:     filter.From,
		To:       filter.To,
		Channel:  filter.Channel,
		Currency: summary.Currency,
		Products: products,
		Total:    *total,
		Ledger:   summary,
	}, nil
}

func newUnitEconomicsRow(productID *uuid.UUID) *UnitEconomicsRow {
	return &UnitEconomicsRow{
		ProductID: productID,
		Units:     decimal.Zero,
		Revenue:   decimal.Zero,
		COGS:      decimal.Zero,
		Fees:      decimal.Zero,
	}
}

func (r *UnitEconomicsRow) add(sale *trade.Sale) {
	r.SalesCount++
	r.Units = r.Units.Add(sale.Quantity)
	r.Revenue = r.Revenue.Add(sale.Revenue)
	r.COGS = r.COGS.Add(sale.TotalCOGS)
	r.Fees = r.Fees.Add(sale.TotalFees())
	if sale.HasProduct() && sale.TotalCOGS.IsZero() {
		r.ZeroCostSales++
	}
}

func (r *UnitEconomicsRow) finish() {
	r.Profit = r.Revenue.Sub(r.COGS).Sub(r.Fees)
	r.RevenuePerUnit = perUnit(r.Revenue, r.Units)
	r.COGSPerUnit = perUnit(r.COGS, r.Units)
	r.FeesPerUnit = perUnit(r.Fees, r.Units)
	r.ProfitPerUnit = perUnit(r.Profit, r.Units)
	r.MarginPercent = decimal.Zero
	if r.Revenue.IsPositive() {
		r.MarginPercent = shared.RoundMoney(r.Profit.Div(r.Revenue).Mul(hundred))
	}
}

func perUnit(amount, units decimal.Decimal) decimal.Decimal {
	if !units.IsPositive() {
		return decimal.Zero
	}
	return shared.RoundMoney(amount.Div(units))
}

func productKey(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// ===================== Stock valuation =====================

// StockValuation values the available quantity of every product that owns a
// lot at its weighted-average unit cost
func (s *ReportService) StockValuation(ctx context.Context) (*StockValuationResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "report.stock_valuation")
	defer span.End()

	productIDs, err := s.lotRepo.ProductIDs(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("list stocked products: %w", err)
	}
	available, err := s.availability.AvailableMany(ctx, productIDs)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	resp := &StockValuationResponse{
		GeneratedAt:    s.now(),
		Currency:       s.ledger.Currency(),
		Products:       make([]StockValuationRow, 0, len(productIDs)),
		TotalAvailable: decimal.Zero,
		TotalValue:     decimal.Zero,
	}
	for _, id := range productIDs {
		wac, err := s.costing.WeightedAverageCost(ctx, id)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		unit := shared.RoundMoney(wac)
		qty := available[id].Available
		row := StockValuationRow{
			ProductID:           id,
			Available:           qty,
			WeightedAverageCost: unit,
			Value:               shared.RoundMoney(qty.Mul(unit)),
		}
		resp.Products = append(resp.Products, row)
		resp.TotalAvailable = resp.TotalAvailable.Add(row.Available)
		resp.TotalValue = resp.TotalValue.Add(row.Value)
	}
	sort.Slice(resp.Products, func(i, j int) bool {
		return resp.Products[i].ProductID.String() < resp.Products[j].ProductID.String()
	})

	s.metrics.RecordStockValuation(ctx, resp.TotalValue, resp.TotalAvailable)
	s.logger.Debug("stock valuation computed",
		zap.Int("products", len(resp.Products)),
		zap.String("total_value", resp.TotalValue.String()))

	telemetry.SetAttributes(span, "products", len(resp.Products), "total_value", resp.TotalValue.String())
	telemetry.SetOK(span)
	return resp, nil
}

func summaryFilter(f PeriodFilter) finance.SummaryFilter {
	return finance.SummaryFilter{
		From:       f.From,
		To:         f.To,
		Channel:    f.Channel,
		RecordedBy: f.RecordedBy,
	}
}

// keptSales selects the period's sales still standing at its end. Without an
// end every return counts.
func keptSales(f PeriodFilter) trade.SaleQuery {
	q := trade.SaleQuery{
		From:       f.From,
		To:         f.To,
		Channel:    f.Channel,
		RecordedBy: f.RecordedBy,
	}
	if f.To != nil {
		q.ExcludeReturnedBy = f.To
	} else {
		q.ExcludeStatus = []trade.SaleStatus{trade.SaleStatusReturned}
	}
	return q
}

// reversedSales selects sales of earlier periods returned inside this one
func reversedSales(f PeriodFilter) trade.SaleQuery {
	return trade.SaleQuery{
		SoldBefore:   f.From,
		Channel:      f.Channel,
		RecordedBy:   f.RecordedBy,
		ReturnedFrom: f.From,
		ReturnedTo:   f.To,
	}
}
