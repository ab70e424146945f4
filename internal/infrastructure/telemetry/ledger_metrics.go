package telemetry

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics records costing and fulfillment activity.
// A nil *LedgerMetrics is valid and records nothing.
type LedgerMetrics struct {
	logger *zap.Logger

	salesTotal        *Counter
	cogsCentsTotal    *Counter
	shortfallTotal    *Counter
	receiptsTotal     *Counter
	lotsCreatedTotal  *Counter
	rejectedTotal     *Counter
	stockValue        *FloatGauge
	stockAvailableQty *FloatGauge
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewLedgerMetrics creates a new LedgerMetrics instance.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{logger: logger}
	var err error

	if lm.salesTotal, err = NewCounter(cfg.Meter,
		"ledger_sales_recorded_total", "Sales and write-offs recorded", "{sales}"); err != nil {
		return nil, err
	}
	if lm.cogsCentsTotal, err = NewCounter(cfg.Meter,
		"ledger_cogs_total", "Cost of goods sold in minor currency units", "{cents}"); err != nil {
		return nil, err
	}
	if lm.shortfallTotal, err = NewCounter(cfg.Meter,
		"ledger_fifo_shortfall_total", "Sales priced with insufficient FIFO lots", "{sales}"); err != nil {
		return nil, err
	}
	if lm.receiptsTotal, err = NewCounter(cfg.Meter,
		"ledger_receipts_total", "Purchase order receipts and reversals", "{receipts}"); err != nil {
		return nil, err
	}
	if lm.lotsCreatedTotal, err = NewCounter(cfg.Meter,
		"ledger_lots_created_total", "Lots created", "{lots}"); err != nil {
		return nil, err
	}
	if lm.rejectedTotal, err = NewCounter(cfg.Meter,
		"ledger_workflow_rejected_total", "Workflows rejected with a domain error", "{workflows}"); err != nil {
		return nil, err
	}
	if lm.stockValue, err = NewFloatGauge(cfg.Meter,
		"ledger_stock_value", "Stock valued at weighted-average cost", "{currency}"); err != nil {
		return nil, err
	}
	if lm.stockAvailableQty, err = NewFloatGauge(cfg.Meter,
		"ledger_stock_available_quantity", "Available quantity across all products", "{units}"); err != nil {
		return nil, err
	}

	return lm, nil
}

// RecordSale records one sale or write-off and its cost
func (lm *LedgerMetrics) RecordSale(ctx context.Context, channel, method string, totalCOGS decimal.Decimal) {
	if lm == nil {
		return
	}
	attrs := []attribute.KeyValue{AttrChannel.String(channel), AttrCostMethod.String(method)}
	lm.salesTotal.Inc(ctx, attrs...)
	lm.cogsCentsTotal.Add(ctx, totalCOGS.Shift(2).IntPart(), attrs...)
}

// RecordShortfall records a sale that consumed more than its lots held
func (lm *LedgerMetrics) RecordShortfall(ctx context.Context, channel string) {
	if lm == nil {
		return
	}
	lm.shortfallTotal.Inc(ctx, AttrChannel.String(channel))
}

// RecordReceipt records a receipt (outcome "received") or reversal ("unreceived")
func (lm *LedgerMetrics) RecordReceipt(ctx context.Context, outcome string, lots int) {
	if lm == nil {
		return
	}
	lm.receiptsTotal.Inc(ctx, AttrOutcome.String(outcome))
	if lots > 0 {
		lm.lotsCreatedTotal.Add(ctx, int64(lots), AttrOutcome.String(outcome))
	}
}

// RecordRejected records a workflow refused with a domain error code
func (lm *LedgerMetrics) RecordRejected(ctx context.Context, workflow, code string) {
	if lm == nil {
		return
	}
	lm.rejectedTotal.Inc(ctx, AttrWorkflow.String(workflow), AttrErrorCode.String(code))
}

// RecordStockValuation records the latest valuation snapshot
func (lm *LedgerMetrics) RecordStockValuation(ctx context.Context, value, available decimal.Decimal) {
	if lm == nil {
		return
	}
	lm.stockValue.Record(ctx, value.InexactFloat64())
	lm.stockAvailableQty.Record(ctx, available.InexactFloat64())
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
