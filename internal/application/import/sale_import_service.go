package importapp

import (
	"context"
	"errors"
	"fmt"
	"io"

	tradeapp "github.com/erp/ledger/internal/application/trade"
	"github.com/erp/ledger/internal/domain/shared"
	csvimport "github.com/erp/ledger/internal/infrastructure/import"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SaleRecorder records one sale
type SaleRecorder interface {
	CreateSale(ctx context.Context, req tradeapp.CreateSaleRequest) (*tradeapp.SaleResultResponse, error)
}

// SaleImportResult adds costing outcomes to the row counts
type SaleImportResult struct {
	ImportResult
	ShortfallRows int             `json:"shortfall_rows"`
	TotalCOGS     decimal.Decimal `json:"total_cogs"`
}

// SaleImportService imports a channel's order export. Each row is one sale
// line; fees go into a single "channel_fee" entry.
type SaleImportService struct {
	sales  SaleRecorder
	opts   Options
	logger *zap.Logger
}

// NewSaleImportService creates a new SaleImportService
func NewSaleImportService(sales SaleRecorder, opts Options, logger *zap.Logger) *SaleImportService {
	return &SaleImportService{sales: sales, opts: opts.withDefaults(), logger: logger}
}

// SaleColumns lists the columns a sale file may carry
func SaleColumns() []csvimport.FieldRule {
	return []csvimport.FieldRule{
		csvimport.Field("channel").Required().MaxLength(50).Build(),
		csvimport.Field("channel_order_id").MaxLength(100).Build(),
		csvimport.Field("channel_sku").MaxLength(100).Build(),
		csvimport.Field("product_id").UUID().Build(),
		csvimport.Field("quantity").Required().Decimal().Positive().Build(),
		csvimport.Field("price_per_unit").Decimal().Min(decimal.Zero).Build(),
		csvimport.Field("fee").Decimal().Min(decimal.Zero).Build(),
		csvimport.Field("costing_method").OneOf("weighted_average", "fifo").Build(),
		csvimport.Field("status").OneOf("active", "delivered").Build(),
		csvimport.Field("sold_at").Date().Build(),
		csvimport.Field("note").MaxLength(1000).Build(),
	}
}

// Import validates the whole file first and records nothing if any row is
// invalid. Otherwise rows are recorded in file order; a row whose natural key
// already exists counts as a duplicate, any other refusal as an error row.
func (s *SaleImportService) Import(ctx context.Context, r io.Reader, recordedBy string) (*SaleImportResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "import.sales")
	defer span.End()

	rows, err := readRows(r, s.opts, "channel", "quantity")
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &SaleImportResult{ImportResult: ImportResult{TotalRows: len(rows)}, TotalCOGS: decimal.Zero}
	keys := make(map[string]int)
	errs, bad := validate(rows, SaleColumns(), s.opts.MaxErrors, func(row *csvimport.Row) *csvimport.RowError {
		orderID := row.Get("channel_order_id")
		if orderID == "" {
			return nil
		}
		key := row.Get("channel") + "\x00" + orderID + "\x00" + row.Get("channel_sku")
		if first, dup := keys[key]; dup {
			return &csvimport.RowError{
				Row:     row.Line,
				Column:  "channel_order_id",
				Code:    csvimport.ErrCodeDuplicate,
				Message: fmt.Sprintf("same channel order line as row %d", first),
				Value:   orderID,
			}
		}
		keys[key] = row.Line
		return nil
	})
	if bad > 0 {
		result.ErrorRows = bad
		result.setErrors(errs)
		s.logger.Info("sale import rejected",
			zap.Int("rows", len(rows)),
			zap.Int("invalid_rows", bad))
		telemetry.SetAttributes(span, "rows", len(rows), "invalid_rows", bad)
		return result, nil
	}
	result.Validated = true

	for _, row := range rows {
		select {
		case <-ctx.Done():
			telemetry.RecordError(span, ctx.Err())
			return result, ctx.Err()
		default:
		}

		created, err := s.sales.CreateSale(ctx, toSaleRequest(row, recordedBy))
		switch {
		case errors.Is(err, shared.ErrAlreadyExists):
			result.DuplicateRows++
		case err != nil:
			result.ErrorRows++
			errs.Add(rejected(row.Line, err))
		default:
			result.ImportedRows++
			result.TotalCOGS = result.TotalCOGS.Add(created.Sale.TotalCOGS)
			if created.Shortfall.IsPositive() {
				result.ShortfallRows++
			}
		}
	}
	result.setErrors(errs)

	s.logger.Info("sale import finished",
		zap.Int("rows", result.TotalRows),
		zap.Int("imported", result.ImportedRows),
		zap.Int("duplicates", result.DuplicateRows),
		zap.Int("errors", result.ErrorRows),
		zap.Int("shortfalls", result.ShortfallRows))
	telemetry.SetAttributes(span,
		"rows", result.TotalRows,
		"imported", result.ImportedRows,
		"duplicates", result.DuplicateRows)
	telemetry.SetOK(span)
	return result, nil
}

// toSaleRequest maps a validated row
func toSaleRequest(row *csvimport.Row, recordedBy string) tradeapp.CreateSaleRequest {
	req := tradeapp.CreateSaleRequest{
		Channel:        row.Get("channel"),
		ChannelOrderID: row.Get("channel_order_id"),
		ChannelSKU:     row.Get("channel_sku"),
		Quantity:       decimal.RequireFromString(row.Get("quantity")),
		PricePerUnit:   decimal.RequireFromString(optionalDecimalString(row.Get("price_per_unit"))),
		Status:         row.Get("status"),
		CostingMethod:  row.Get("costing_method"),
		Note:           row.Get("note"),
		RecordedBy:     recordedBy,
	}
	if v := row.Get("product_id"); v != "" {
		id := uuid.MustParse(v)
		req.ProductID = &id
	}
	if v := row.Get("fee"); v != "" {
		if fee := decimal.RequireFromString(v); fee.IsPositive() {
			req.Fees = []tradeapp.FeeInput{{Name: "channel_fee", Amount: fee}}
		}
	}
	if v := row.Get("sold_at"); v != "" {
		soldAt, _ := csvimport.ParseDate(v)
		req.SoldAt = &soldAt
	}
	return req
}
