package report

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRenderer struct{ mock.Mock }

func (m *mockRenderer) RenderStockValuation(v *StockValuationResponse) ([]byte, error) {
	args := m.Called(v)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type mockArchive struct{ mock.Mock }

func (m *mockArchive) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	args := m.Called(name, data, contentType)
	return args.String(0), args.Error(1)
}

func TestArchiveService_ArchiveStockValuation(t *testing.T) {
	f := newReportFixture(t)
	productID := uuid.New()
	f.addLot(t, productID, "4", "2.50", at(0))

	renderer := &mockRenderer{}
	renderer.On("RenderStockValuation", mock.MatchedBy(func(v *StockValuationResponse) bool {
		return len(v.Products) == 1 && v.Products[0].ProductID == productID && v.TotalValue.Equal(dec("10"))
	})).Return([]byte("xlsx"), nil)

	store := &mockArchive{}
	name := ValuationFileName(at(30))
	store.On("Put", name, []byte("xlsx"), ContentTypeXLSX).Return("valuations/"+name, nil)

	svc := NewArchiveService(f.reports, renderer, store, zap.NewNop())
	key, err := svc.ArchiveStockValuation(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "valuations/stock-valuation-20240331T090000Z.xlsx", key)
	renderer.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestArchiveService_Errors(t *testing.T) {
	f := newReportFixture(t)

	t.Run("render failure skips upload", func(t *testing.T) {
		renderer := &mockRenderer{}
		renderer.On("RenderStockValuation", mock.Anything).Return(nil, errors.New("disk full"))
		store := &mockArchive{}

		_, err := NewArchiveService(f.reports, renderer, store, zap.NewNop()).ArchiveStockValuation(context.Background())
		assert.ErrorContains(t, err, "disk full")
		store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("upload failure is returned", func(t *testing.T) {
		renderer := &mockRenderer{}
		renderer.On("RenderStockValuation", mock.Anything).Return([]byte("x"), nil)
		store := &mockArchive{}
		store.On("Put", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("access denied"))

		_, err := NewArchiveService(f.reports, renderer, store, zap.NewNop()).ArchiveStockValuation(context.Background())
		assert.ErrorContains(t, err, "access denied")
	})
}

func TestArchiveService_ExportStockValuation(t *testing.T) {
	f := newReportFixture(t)
	renderer := &mockRenderer{}
	renderer.On("RenderStockValuation", mock.Anything).Return([]byte("book"), nil)

	svc := NewArchiveService(f.reports, renderer, nil, zap.NewNop())
	data, name, err := svc.ExportStockValuation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("book"), data)
	assert.Equal(t, "stock-valuation-20240331T090000Z.xlsx", name)

	_, err = svc.ArchiveStockValuation(context.Background())
	assert.ErrorIs(t, err, shared.ErrPreconditionViolation, "no store configured")
}
