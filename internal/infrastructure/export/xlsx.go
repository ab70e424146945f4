// Package export renders reports as spreadsheet files.
package export

import (
	"bytes"
	"fmt"

	appreport "github.com/erp/ledger/internal/application/report"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const valuationSheet = "Valuation"

var valuationHeadings = []string{"Product ID", "Available", "Weighted Average Cost", "Value"}

// XLSXRenderer writes reports with excelize
type XLSXRenderer struct{}

func NewXLSXRenderer() *XLSXRenderer { return &XLSXRenderer{} }

// RenderStockValuation writes one row per product, a totals row, and the
// generation time and currency above the table.
func (r *XLSXRenderer) RenderStockValuation(v *appreport.StockValuationResponse) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", valuationSheet); err != nil {
		return nil, err
	}

	set := func(cell string, value any) error {
		return f.SetCellValue(valuationSheet, cell, value)
	}
	if err := set("A1", "Generated At"); err != nil {
		return nil, err
	}
	if err := set("B1", v.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")); err != nil {
		return nil, err
	}
	if err := set("A2", "Currency"); err != nil {
		return nil, err
	}
	if err := set("B2", v.Currency); err != nil {
		return nil, err
	}

	const headerRow = 4
	for i, h := range valuationHeadings {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		if err := set(cell, h); err != nil {
			return nil, err
		}
	}

	row := headerRow + 1
	for _, p := range v.Products {
		if err := writeRow(f, row, p.ProductID.String(), &p.Available, &p.WeightedAverageCost, &p.Value); err != nil {
			return nil, err
		}
		row++
	}
	if err := writeRow(f, row, "Total", &v.TotalAvailable, nil, &v.TotalValue); err != nil {
		return nil, err
	}

	if err := f.SetColWidth(valuationSheet, "A", "A", 40); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(valuationSheet, "B", "D", 22); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// writeRow stores decimals as numbers; a nil value leaves the cell empty
func writeRow(f *excelize.File, row int, label string, values ...*decimal.Decimal) error {
	if err := f.SetCellValue(valuationSheet, fmt.Sprintf("A%d", row), label); err != nil {
		return err
	}
	for i, d := range values {
		if d == nil {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(i+2, row)
		n, _ := d.Float64()
		if err := f.SetCellFloat(valuationSheet, cell, n, int(max(0, -d.Exponent())), 64); err != nil {
			return err
		}
	}
	return nil
}

var _ appreport.ValuationRenderer = (*XLSXRenderer)(nil)
