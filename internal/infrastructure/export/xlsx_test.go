package export

import (
	"bytes"
	"testing"
	"time"

	appreport "github.com/erp/ledger/internal/application/report"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestXLSXRenderer_RenderStockValuation(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	v := &appreport.StockValuationResponse{
		GeneratedAt: time.Date(2024, 3, 31, 9, 0, 0, 0, time.UTC),
		Currency:    "USD",
		Products: []appreport.StockValuationRow{
			{ProductID: a, Available: decimal.NewFromInt(6), WeightedAverageCost: decimal.NewFromInt(10), Value: decimal.NewFromInt(60)},
			{ProductID: b, Available: decimal.NewFromInt(4), WeightedAverageCost: decimal.NewFromInt(5), Value: decimal.NewFromInt(20)},
		},
		TotalAvailable: decimal.NewFromInt(10),
		TotalValue:     decimal.NewFromInt(80),
	}

	data, err := NewXLSXRenderer().RenderStockValuation(v)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(valuationSheet)
	require.NoError(t, err)
	require.Len(t, rows, 7)

	assert.Equal(t, []string{"Generated At", "2024-03-31 09:00:00 UTC"}, rows[0])
	assert.Equal(t, []string{"Currency", "USD"}, rows[1])
	assert.Equal(t, valuationHeadings, rows[3])
	assert.Equal(t, []string{a.String(), "6", "10", "60"}, rows[4])
	assert.Equal(t, []string{b.String(), "4", "5", "20"}, rows[5])
	assert.Equal(t, []string{"Total", "10", "", "80"}, rows[6])
}

func TestXLSXRenderer_EmptyValuation(t *testing.T) {
	data, err := NewXLSXRenderer().RenderStockValuation(&appreport.StockValuationResponse{
		GeneratedAt:    time.Now(),
		Currency:       "EUR",
		TotalAvailable: decimal.Zero,
		TotalValue:     decimal.Zero,
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	total, err := f.GetCellValue(valuationSheet, "A5")
	require.NoError(t, err)
	assert.Equal(t, "Total", total)
}
