package importapp

import (
	"context"
	"strings"
	"testing"

	tradeapp "github.com/erp/ledger/internal/application/trade"
	"github.com/erp/ledger/internal/domain/shared"
	csvimport "github.com/erp/ledger/internal/infrastructure/import"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSaleRecorder struct {
	calls []tradeapp.CreateSaleRequest
	fail  map[string]error
}

func (f *fakeSaleRecorder) CreateSale(_ context.Context, req tradeapp.CreateSaleRequest) (*tradeapp.SaleResultResponse, error) {
	f.calls = append(f.calls, req)
	if err := f.fail[req.ChannelOrderID]; err != nil {
		return nil, err
	}
	cogs := req.Quantity.Mul(decimal.NewFromInt(10))
	res := &tradeapp.SaleResultResponse{Shortfall: decimal.Zero}
	res.Sale.TotalCOGS = cogs
	if req.ProductID == nil {
		res.Sale.TotalCOGS = decimal.Zero
	}
	if req.Quantity.GreaterThan(decimal.NewFromInt(5)) {
		res.Shortfall = req.Quantity.Sub(decimal.NewFromInt(5))
	}
	return res, nil
}

const productA = "8f14e45f-ceea-467f-a0e6-7c1b2d3f4a5b"

func newSaleImport(rec SaleRecorder) *SaleImportService {
	return NewSaleImportService(rec, Options{}, zap.NewNop())
}

func TestSaleImport_RecordsRowsInFileOrder(t *testing.T) {
	rec := &fakeSaleRecorder{}
	csv := "Channel,channel_order_id,channel_sku,product_id,quantity,price_per_unit,fee,costing_method,sold_at,note\n" +
		"shop,A-1,SKU1," + productA + ",2,25,1.5,fifo,2026-03-01,first\n" +
		"shop,A-2,SKU1," + productA + ",7,25,,,,\n" +
		"market,,,,1,9.99,0,,,\n"

	result, err := newSaleImport(rec).Import(context.Background(), strings.NewReader(csv), "clerk-1")
	require.NoError(t, err)

	assert.True(t, result.Validated)
	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 3, result.ImportedRows)
	assert.Equal(t, 1, result.ShortfallRows)
	assert.True(t, result.TotalCOGS.Equal(decimal.NewFromInt(90)))
	assert.Empty(t, result.Errors)

	require.Len(t, rec.calls, 3)
	first := rec.calls[0]
	assert.Equal(t, "A-1", first.ChannelOrderID)
	assert.Equal(t, "fifo", first.CostingMethod)
	assert.Equal(t, "clerk-1", first.RecordedBy)
	require.NotNil(t, first.ProductID)
	require.NotNil(t, first.SoldAt)
	assert.Equal(t, 2026, first.SoldAt.Year())
	require.Len(t, first.Fees, 1)
	assert.True(t, first.Fees[0].Amount.Equal(decimal.RequireFromString("1.5")))

	assert.Empty(t, rec.calls[1].Fees)
	assert.Nil(t, rec.calls[2].ProductID)
	assert.Empty(t, rec.calls[2].Fees)
}

func TestSaleImport_InvalidRowBlocksWholeFile(t *testing.T) {
	rec := &fakeSaleRecorder{}
	csv := "channel,channel_order_id,quantity,price_per_unit,status\n" +
		"shop,A-1,2,25,\n" +
		",A-2,0,-1,returned\n"

	result, err := newSaleImport(rec).Import(context.Background(), strings.NewReader(csv), "")
	require.NoError(t, err)

	assert.False(t, result.Validated)
	assert.Equal(t, 1, result.ErrorRows)
	assert.Equal(t, 0, result.ImportedRows)
	assert.Empty(t, rec.calls)

	codes := map[string]string{}
	for _, e := range result.Errors {
		assert.Equal(t, 3, e.Row)
		codes[e.Column] = e.Code
	}
	assert.Equal(t, csvimport.ErrCodeRequiredField, codes["channel"])
	assert.Equal(t, csvimport.ErrCodeInvalidRange, codes["quantity"])
	assert.Equal(t, csvimport.ErrCodeInvalidRange, codes["price_per_unit"])
	assert.Equal(t, csvimport.ErrCodeInvalidValue, codes["status"])
}

func TestSaleImport_DuplicateOrderLineInFile(t *testing.T) {
	rec := &fakeSaleRecorder{}
	csv := "channel,channel_order_id,channel_sku,quantity\n" +
		"shop,A-1,SKU1,1\n" +
		"shop,A-1,SKU2,1\n" +
		"market,A-1,SKU1,1\n" +
		"shop,A-1,SKU1,3\n"

	result, err := newSaleImport(rec).Import(context.Background(), strings.NewReader(csv), "")
	require.NoError(t, err)

	assert.False(t, result.Validated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 5, result.Errors[0].Row)
	assert.Equal(t, csvimport.ErrCodeDuplicate, result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Message, "row 2")
	assert.Empty(t, rec.calls)
}

func TestSaleImport_ExistingSalesAndRefusals(t *testing.T) {
	rec := &fakeSaleRecorder{fail: map[string]error{
		"A-1": shared.ErrAlreadyExists,
		"A-2": shared.NewInvalidInputError("product is archived"),
	}}
	csv := "channel,channel_order_id,quantity\n" +
		"shop,A-1,1\n" +
		"shop,A-2,1\n" +
		"shop,A-3,1\n"

	result, err := newSaleImport(rec).Import(context.Background(), strings.NewReader(csv), "")
	require.NoError(t, err)

	assert.True(t, result.Validated)
	assert.Equal(t, 1, result.ImportedRows)
	assert.Equal(t, 1, result.DuplicateRows)
	assert.Equal(t, 1, result.ErrorRows)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Equal(t, csvimport.ErrCodeRejected, result.Errors[0].Code)
	assert.Equal(t, "product is archived", result.Errors[0].Message)
}

func TestSaleImport_FileProblems(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		opts Options
		msg  string
	}{
		{"empty", "", Options{}, "empty"},
		{"missing columns", "channel,price\nshop,1\n", Options{}, "quantity"},
		{"header only", "channel,quantity\n", Options{}, "no data rows"},
		{"too many rows", "channel,quantity\na,1\nb,1\nc,1\n", Options{MaxRows: 2}, "too many rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewSaleImportService(&fakeSaleRecorder{}, tt.opts, zap.NewNop())
			_, err := svc.Import(context.Background(), strings.NewReader(tt.csv), "")
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestSaleImport_StopsWhenCancelled(t *testing.T) {
	rec := &fakeSaleRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newSaleImport(rec).Import(ctx, strings.NewReader("channel,quantity\nshop,1\n"), "")
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 0, result.ImportedRows)
	assert.Empty(t, rec.calls)
}
