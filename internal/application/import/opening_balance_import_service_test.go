package importapp

import (
	"context"
	"errors"
	"strings"
	"testing"

	inventoryapp "github.com/erp/ledger/internal/application/inventory"
	csvimport "github.com/erp/ledger/internal/infrastructure/import"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLotCreator struct {
	calls  []inventoryapp.CreateOpeningBalanceRequest
	failOn decimal.Decimal
}

func (f *fakeLotCreator) CreateOpeningBalance(_ context.Context, req inventoryapp.CreateOpeningBalanceRequest) (*inventoryapp.LotResponse, error) {
	f.calls = append(f.calls, req)
	if !f.failOn.IsZero() && req.Quantity.Equal(f.failOn) {
		return nil, errors.New("lot store unavailable")
	}
	return &inventoryapp.LotResponse{
		ID:         uuid.New(),
		ProductID:  req.ProductID,
		InitialQty: req.Quantity,
		UnitCost:   req.UnitCost,
	}, nil
}

func TestOpeningBalanceImport_CreatesLots(t *testing.T) {
	lots := &fakeLotCreator{}
	csv := "product_id,quantity,unit_cost,source,received_at\n" +
		productA + ",10,4.5,,2025-12-31\n" +
		productA + ",2,0,adjustment,\n"

	svc := NewOpeningBalanceImportService(lots, Options{}, zap.NewNop())
	result, err := svc.Import(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)

	assert.True(t, result.Validated)
	assert.Equal(t, 2, result.ImportedRows)
	assert.True(t, result.TotalValue.Equal(decimal.NewFromInt(45)))

	require.Len(t, lots.calls, 2)
	assert.Equal(t, uuid.MustParse(productA), lots.calls[0].ProductID)
	assert.Equal(t, "", lots.calls[0].Source)
	require.NotNil(t, lots.calls[0].ReceivedAt)
	assert.Equal(t, 12, int(lots.calls[0].ReceivedAt.Month()))
	assert.Equal(t, "adjustment", lots.calls[1].Source)
	assert.Nil(t, lots.calls[1].ReceivedAt)
}

func TestOpeningBalanceImport_RejectsInvalidSheet(t *testing.T) {
	lots := &fakeLotCreator{}
	csv := "product_id,quantity,unit_cost,source\n" +
		productA + ",10,4.5,purchase\n" +
		"not-a-uuid,1,1,\n" +
		productA + ",1,-2,\n"

	svc := NewOpeningBalanceImportService(lots, Options{MaxErrors: 2}, zap.NewNop())
	result, err := svc.Import(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)

	assert.False(t, result.Validated)
	assert.Equal(t, 3, result.ErrorRows)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, 3, result.TotalErrors)
	assert.True(t, result.IsTruncated)
	assert.Equal(t, csvimport.ErrCodeInvalidValue, result.Errors[0].Code)
	assert.Empty(t, lots.calls)
}

func TestOpeningBalanceImport_ContinuesPastRefusedRow(t *testing.T) {
	lots := &fakeLotCreator{failOn: decimal.NewFromInt(3)}
	csv := "product_id,quantity,unit_cost\n" +
		productA + ",3,1\n" +
		productA + ",4,2\n"

	svc := NewOpeningBalanceImportService(lots, Options{}, zap.NewNop())
	result, err := svc.Import(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, result.ImportedRows)
	assert.Equal(t, 1, result.ErrorRows)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, "lot store unavailable", result.Errors[0].Message)
	assert.True(t, result.TotalValue.Equal(decimal.NewFromInt(8)))
}
