package scheduler

import (
	"context"
	"time"

	appreport "github.com/erp/ledger/internal/application/report"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Ledger job names accepted in scheduler.jobs
const (
	JobStockValuation = "stock_valuation"
	JobZeroCostAudit  = "zero_cost_audit"
)

type StockValuer interface {
	StockValuation(ctx context.Context) (*appreport.StockValuationResponse, error)
}

type ValuationArchiver interface {
	ArchiveStockValuation(ctx context.Context) (string, error)
}

type ZeroCostRepricer interface {
	RepriceZeroCostSales(ctx context.Context, from, to *time.Time) (*appreport.RepricedSalesResponse, error)
}

// LedgerJobDeps carries what the ledger jobs call. Archiver is nil when
// object storage is disabled; the valuation job then only computes and
// records the valuation.
type LedgerJobDeps struct {
	Valuer            StockValuer
	Archiver          ValuationArchiver
	Repricer          ZeroCostRepricer
	ValuationInterval time.Duration
	AuditInterval     time.Duration
	Now               func() time.Time
}

// RegisterLedgerJobs adds the ledger's jobs to the registry
func RegisterLedgerJobs(reg *JobRegistry, deps LedgerJobDeps) error {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if err := reg.Register(JobDefinition{
		Name:     JobStockValuation,
		Interval: deps.ValuationInterval,
		Run:      stockValuationJob(deps),
	}); err != nil {
		return err
	}
	return reg.Register(JobDefinition{
		Name:     JobZeroCostAudit,
		Interval: deps.AuditInterval,
		Run:      zeroCostAuditJob(deps),
	})
}

func stockValuationJob(deps LedgerJobDeps) JobFunc {
	return func(ctx context.Context) error {
		if deps.Archiver != nil {
			_, err := deps.Archiver.ArchiveStockValuation(ctx)
			return err
		}
		v, err := deps.Valuer.StockValuation(ctx)
		if err != nil {
			return err
		}
		logger.L(ctx).Info("stock valuation computed",
			zap.Int("products", len(v.Products)),
			zap.String("total_available", v.TotalAvailable.String()),
			zap.String("total_value", v.TotalValue.String()),
			zap.String("currency", v.Currency),
		)
		return nil
	}
}

// zeroCostAuditJob re-prices the zero-cost sales of the last interval and
// warns about the ones FIFO still cannot cover
func zeroCostAuditJob(deps LedgerJobDeps) JobFunc {
	return func(ctx context.Context) error {
		to := deps.Now()
		from := to.Add(-deps.AuditInterval)
		res, err := deps.Repricer.RepriceZeroCostSales(ctx, &from, &to)
		if err != nil {
			return err
		}
		log := logger.L(ctx).With(
			zap.Time("from", from),
			zap.Time("to", to),
			zap.Int("zero_cost_sales", len(res.Sales)),
			zap.Int("with_shortfall", res.WithShortfall),
			zap.String("repriced_cogs", res.TotalCOGS.String()),
		)
		if len(res.Sales) > 0 {
			log.Warn("zero-cost sales found")
		} else {
			log.Info("no zero-cost sales")
		}
		return nil
	}
}
