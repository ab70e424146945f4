package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	appreport "github.com/erp/ledger/internal/application/report"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockValuer struct{ mock.Mock }

func (m *mockValuer) StockValuation(ctx context.Context) (*appreport.StockValuationResponse, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).(*appreport.StockValuationResponse)
	return v, args.Error(1)
}

type mockArchiver struct{ mock.Mock }

func (m *mockArchiver) ArchiveStockValuation(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type mockRepricer struct{ mock.Mock }

func (m *mockRepricer) RepriceZeroCostSales(ctx context.Context, from, to *time.Time) (*appreport.RepricedSalesResponse, error) {
	args := m.Called(ctx, from, to)
	r, _ := args.Get(0).(*appreport.RepricedSalesResponse)
	return r, args.Error(1)
}

func registerWith(t *testing.T, deps LedgerJobDeps) *JobRegistry {
	t.Helper()
	if deps.ValuationInterval == 0 {
		deps.ValuationInterval = 24 * time.Hour
	}
	if deps.AuditInterval == 0 {
		deps.AuditInterval = 6 * time.Hour
	}
	reg := NewJobRegistry()
	require.NoError(t, RegisterLedgerJobs(reg, deps))
	return reg
}

func TestRegisterLedgerJobs(t *testing.T) {
	reg := registerWith(t, LedgerJobDeps{})
	assert.Equal(t, []string{JobStockValuation, JobZeroCostAudit}, reg.Names())

	def, ok := reg.Get(JobZeroCostAudit)
	require.True(t, ok)
	assert.Equal(t, 6*time.Hour, def.Interval)

	assert.Error(t, RegisterLedgerJobs(reg, LedgerJobDeps{ValuationInterval: time.Hour, AuditInterval: time.Hour}))
}

func TestStockValuationJob(t *testing.T) {
	ctx := context.Background()

	t.Run("archives when storage is configured", func(t *testing.T) {
		archiver := &mockArchiver{}
		archiver.On("ArchiveStockValuation", ctx).Return("valuations/x.xlsx", nil)
		valuer := &mockValuer{}

		def, _ := registerWith(t, LedgerJobDeps{Valuer: valuer, Archiver: archiver}).Get(JobStockValuation)
		require.NoError(t, def.Run(ctx))

		archiver.AssertExpectations(t)
		valuer.AssertNotCalled(t, "StockValuation", mock.Anything)
	})

	t.Run("computes only without storage", func(t *testing.T) {
		valuer := &mockValuer{}
		valuer.On("StockValuation", ctx).Return(&appreport.StockValuationResponse{
			Currency: "USD", TotalAvailable: decimal.NewFromInt(5), TotalValue: decimal.NewFromInt(50),
		}, nil)

		def, _ := registerWith(t, LedgerJobDeps{Valuer: valuer}).Get(JobStockValuation)
		require.NoError(t, def.Run(ctx))
		valuer.AssertExpectations(t)
	})

	t.Run("propagates errors for retry", func(t *testing.T) {
		archiver := &mockArchiver{}
		archiver.On("ArchiveStockValuation", ctx).Return("", errors.New("access denied"))

		def, _ := registerWith(t, LedgerJobDeps{Archiver: archiver}).Get(JobStockValuation)
		assert.ErrorContains(t, def.Run(ctx), "access denied")
	})
}

func TestZeroCostAuditJob(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

	repricer := &mockRepricer{}
	repricer.On("RepriceZeroCostSales", ctx,
		mock.MatchedBy(func(from *time.Time) bool { return from.Equal(now.Add(-6 * time.Hour)) }),
		mock.MatchedBy(func(to *time.Time) bool { return to.Equal(now) }),
	).Return(&appreport.RepricedSalesResponse{
		Sales:         []appreport.RepricedSale{{}},
		TotalCOGS:     decimal.NewFromInt(12),
		WithShortfall: 1,
	}, nil)

	def, _ := registerWith(t, LedgerJobDeps{Repricer: repricer, Now: func() time.Time { return now }}).Get(JobZeroCostAudit)
	require.NoError(t, def.Run(ctx))
	repricer.AssertExpectations(t)
}
