package finance

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var at = time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newLedger(t *testing.T) (*LedgerService, *persistence.GormFinanceTransactionRepository) {
	t.Helper()
	repo := persistence.NewGormFinanceTransactionRepository(testutil.NewSQLiteDB(t))
	return NewLedgerService(repo, zap.NewNop(), WithCurrency("EUR")), repo
}

func TestLedgerService_AppendStampsCurrency(t *testing.T) {
	svc, repo := newLedger(t)
	saleID := uuid.New()

	tx, err := svc.Append(context.Background(), repo, finance.SaleRevenue(saleID, nil, d("19.999"), "", at))
	require.NoError(t, err)
	assert.Equal(t, "EUR", tx.Currency)
	assert.True(t, tx.Amount.Equal(d("20")))
	assert.Equal(t, finance.DirectionIncome, tx.Direction)

	_, err = svc.Append(context.Background(), repo, finance.Refund(saleID, nil, d("0"), "", at))
	assert.ErrorIs(t, err, shared.ErrInvalidInput, "zero amounts are never recorded")
}

func TestLedgerService_SummarizeAndReverse(t *testing.T) {
	svc, repo := newLedger(t)
	ctx := context.Background()
	orderID := uuid.New()

	entries := []finance.Entry{
		finance.SaleRevenue(uuid.New(), nil, d("100"), "", at),
		finance.SaleRevenue(uuid.New(), nil, d("50"), "", at),
		finance.Refund(uuid.New(), nil, d("50"), "", at),
		finance.SupplierPayment(orderID, d("60"), "", at),
	}
	for _, e := range entries {
		_, err := svc.Append(ctx, repo, e)
		require.NoError(t, err)
	}

	summary, err := svc.Summarize(ctx, finance.SummaryFilter{})
	require.NoError(t, err)
	assert.Equal(t, "EUR", summary.Currency)
	assert.True(t, summary.Income.Equal(d("150")), "income %s", summary.Income)
	assert.True(t, summary.Expense.Equal(d("110")), "expense %s", summary.Expense)
	assert.True(t, summary.Net.Equal(d("40")))
	assert.Len(t, summary.ByType, 3)

	n, err := svc.SoftDeleteLinked(ctx, repo, orderID, finance.TransactionTypeSupplierPayment)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	summary, err = svc.Summarize(ctx, finance.SummaryFilter{})
	require.NoError(t, err)
	assert.True(t, summary.Net.Equal(d("100")), "net %s", summary.Net)

	page, err := svc.List(ctx, shared.DefaultFilter().WithEqual("type", finance.TransactionTypeSaleRevenue))
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "sales", page.Items[0].Category)
}
