package importapp

import (
	"context"
	"io"

	inventoryapp "github.com/erp/ledger/internal/application/inventory"
	csvimport "github.com/erp/ledger/internal/infrastructure/import"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LotCreator creates a synthetic lot
type LotCreator interface {
	CreateOpeningBalance(ctx context.Context, req inventoryapp.CreateOpeningBalanceRequest) (*inventoryapp.LotResponse, error)
}

// OpeningBalanceImportResult adds the stock value loaded to the row counts
type OpeningBalanceImportResult struct {
	ImportResult
	TotalValue decimal.Decimal `json:"total_value"`
}

// OpeningBalanceImportService loads a stock sheet as opening-balance or
// adjustment lots
type OpeningBalanceImportService struct {
	lots   LotCreator
	opts   Options
	logger *zap.Logger
}

// NewOpeningBalanceImportService creates a new OpeningBalanceImportService
func NewOpeningBalanceImportService(lots LotCreator, opts Options, logger *zap.Logger) *OpeningBalanceImportService {
	return &OpeningBalanceImportService{lots: lots, opts: opts.withDefaults(), logger: logger}
}

// OpeningBalanceColumns lists the columns a stock sheet may carry
func OpeningBalanceColumns() []csvimport.FieldRule {
	return []csvimport.FieldRule{
		csvimport.Field("product_id").Required().UUID().Build(),
		csvimport.Field("quantity").Required().Decimal().Positive().Build(),
		csvimport.Field("unit_cost").Required().Decimal().Min(decimal.Zero).Build(),
		csvimport.Field("source").OneOf("opening_balance", "adjustment").Build(),
		csvimport.Field("received_at").Date().Build(),
	}
}

// Import validates the sheet and, when every row is valid, creates one lot
// per row in file order. A product may appear on several rows.
func (s *OpeningBalanceImportService) Import(ctx context.Context, r io.Reader) (*OpeningBalanceImportResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "import.opening_balances")
	defer span.End()

	rows, err := readRows(r, s.opts, "product_id", "quantity", "unit_cost")
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &OpeningBalanceImportResult{ImportResult: ImportResult{TotalRows: len(rows)}, TotalValue: decimal.Zero}
	errs, bad := validate(rows, OpeningBalanceColumns(), s.opts.MaxErrors, nil)
	if bad > 0 {
		result.ErrorRows = bad
		result.setErrors(errs)
		s.logger.Info("opening balance import rejected",
			zap.Int("rows", len(rows)),
			zap.Int("invalid_rows", bad))
		return result, nil
	}
	result.Validated = true

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			telemetry.RecordError(span, err)
			return result, err
		}

		lot, err := s.lots.CreateOpeningBalance(ctx, toOpeningBalanceRequest(row))
		if err != nil {
			result.ErrorRows++
			errs.Add(rejected(row.Line, err))
			continue
		}
		result.ImportedRows++
		result.TotalValue = result.TotalValue.Add(lot.InitialQty.Mul(lot.UnitCost))
	}
	result.setErrors(errs)

	s.logger.Info("opening balance import finished",
		zap.Int("rows", result.TotalRows),
		zap.Int("imported", result.ImportedRows),
		zap.Int("errors", result.ErrorRows),
		zap.String("total_value", result.TotalValue.String()))
	telemetry.SetAttributes(span, "rows", result.TotalRows, "imported", result.ImportedRows)
	telemetry.SetOK(span)
	return result, nil
}

func toOpeningBalanceRequest(row *csvimport.Row) inventoryapp.CreateOpeningBalanceRequest {
	req := inventoryapp.CreateOpeningBalanceRequest{
		ProductID: uuid.MustParse(row.Get("product_id")),
		Quantity:  decimal.RequireFromString(row.Get("quantity")),
		UnitCost:  decimal.RequireFromString(row.Get("unit_cost")),
		Source:    row.Get("source"),
	}
	if v := row.Get("received_at"); v != "" {
		at, _ := csvimport.ParseDate(v)
		req.ReceivedAt = &at
	}
	return req
}
