package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	appfinance "github.com/erp/ledger/internal/application/finance"
	appinventory "github.com/erp/ledger/internal/application/inventory"
	"github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SaleService runs the sale lifecycle: capture, return and write-off.
// Each workflow prices and persists inside one unit of work and appends the
// matching ledger entry before it commits.
type SaleService struct {
	scope          ledger.TransactionScope
	saleRepo       trade.SaleRepository
	costing        *appinventory.CostingService
	locker         appinventory.ProductLocker
	ledgerService  *appfinance.LedgerService
	eventPublisher shared.EventPublisher
	metrics        *telemetry.LedgerMetrics
	logger         *zap.Logger
	now            func() time.Time
}

// NewSaleService creates a new SaleService
func NewSaleService(
	scope ledger.TransactionScope,
	saleRepo trade.SaleRepository,
	costing *appinventory.CostingService,
	locker appinventory.ProductLocker,
	ledgerService *appfinance.LedgerService,
	logger *zap.Logger,
) *SaleService {
	return &SaleService{
		scope:         scope,
		saleRepo:      saleRepo,
		costing:       costing,
		locker:        locker,
		ledgerService: ledgerService,
		logger:        logger,
		now:           time.Now,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *SaleService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLedgerMetrics sets the metrics collector
func (s *SaleService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// GetSale returns a sale by ID
func (s *SaleService) GetSale(ctx context.Context, id uuid.UUID) (*SaleResponse, error) {
	sale, err := s.saleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToSaleResponse(sale)
	return &resp, nil
}

// CreateSale records a sale priced by exactly one costing policy. A sale
// without a product carries no cost. Revenue above zero is booked as income;
// a giveaway books nothing.
func (s *SaleService) CreateSale(ctx context.Context, req CreateSaleRequest) (*SaleResultResponse, error) {
	method := strategy.CostMethod(req.CostingMethod)
	if method == "" {
		method = s.costing.DefaultMethod()
	}
	if !method.IsValid() {
		err := shared.NewInvalidInputError(fmt.Sprintf("unknown costing method %q", method))
		s.reject(ctx, "create_sale", err)
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "sale.create",
		telemetry.WithAttribute("channel", req.Channel),
		telemetry.WithAttribute("costing_method", method.String()),
	)
	defer span.End()

	soldAt := s.now()
	if req.SoldAt != nil {
		soldAt = *req.SoldAt
	}
	sale, err := trade.NewSale(trade.SaleDraft{
		Channel:        req.Channel,
		ChannelOrderID: req.ChannelOrderID,
		ChannelSKU:     req.ChannelSKU,
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		PricePerUnit:   req.PricePerUnit,
		Fees:           toFees(req.Fees),
		Status:         trade.SaleStatus(req.Status),
		SoldAt:         soldAt,
		Note:           req.Note,
		RecordedBy:     req.RecordedBy,
	})
	if err != nil {
		s.reject(ctx, "create_sale", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result *SaleResultResponse
	telemetry.WithProfilingLabels(ctx,
		telemetry.WorkflowLabels("create_sale", telemetry.ProfilingLabelMethod, method.String()),
		func(ctx context.Context) {
			result, err = s.recordSale(ctx, sale, method, finance.SaleRevenue)
		})
	if err != nil {
		s.reject(ctx, "create_sale", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	if result.Shortfall.IsPositive() {
		s.metrics.RecordShortfall(ctx, sale.Channel)
	}
	s.metrics.RecordSale(ctx, sale.Channel, sale.CostingMethod.String(), sale.TotalCOGS)
	telemetry.SetAttributes(span,
		"sale_id", sale.ID.String(),
		"total_cogs", sale.TotalCOGS.String(),
		"shortfall", result.Shortfall.String(),
	)
	telemetry.SetOK(span)
	return result, nil
}

// WriteOff books shrinkage as a synthetic delivered sale on the write-off
// channel, priced at weighted-average cost, with an inventory loss entry
func (s *SaleService) WriteOff(ctx context.Context, req WriteOffRequest) (*SaleResultResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "sale.write_off",
		telemetry.WithAttribute("product_id", req.ProductID.String()),
	)
	defer span.End()

	sale, err := trade.NewWriteOff(req.ProductID, req.Quantity, req.Reason, s.now())
	if err != nil {
		s.reject(ctx, "write_off", err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	sale.RecordedBy = req.RecordedBy

	loss := func(saleID uuid.UUID, productID *uuid.UUID, amount decimal.Decimal, currency string, at time.Time) finance.Entry {
		return finance.InventoryLoss(saleID, *productID, amount, currency, req.Reason, at)
	}

	var result *SaleResultResponse
	telemetry.WithProfilingLabels(ctx,
		telemetry.WorkflowLabels("write_off", telemetry.ProfilingLabelMethod, strategy.CostMethodWeightedAverage.String()),
		func(ctx context.Context) {
			result, err = s.recordSale(ctx, sale, strategy.CostMethodWeightedAverage, loss)
		})
	if err != nil {
		s.reject(ctx, "write_off", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordSale(ctx, sale.Channel, sale.CostingMethod.String(), sale.TotalCOGS)
	s.logger.Info("stock written off",
		zap.String("sale_id", sale.ID.String()),
		zap.String("product_id", req.ProductID.String()),
		zap.String("quantity", req.Quantity.String()),
		zap.String("total_cogs", sale.TotalCOGS.String()))

	telemetry.SetOK(span)
	return result, nil
}

type entryBuilder func(saleID uuid.UUID, productID *uuid.UUID, amount decimal.Decimal, currency string, at time.Time) finance.Entry

// recordSale prices, persists and books a new sale. The product lock is held
// from the cost read to the commit so no concurrent sale of the same product
// reads the same lots.
func (s *SaleService) recordSale(ctx context.Context, sale *trade.Sale, method strategy.CostMethod, entry entryBuilder) (*SaleResultResponse, error) {
	if sale.HasProduct() {
		release, err := s.locker.Acquire(ctx, []uuid.UUID{*sale.ProductID})
		if err != nil {
			return nil, err
		}
		defer release()
	}

	result := &SaleResultResponse{Shortfall: decimal.Zero}
	err := s.scope.Execute(ctx, func(repos ledger.Repositories) error {
		if sale.HasProduct() {
			plan, err := s.costing.Price(ctx, repos, method, *sale.ProductID, sale.Quantity)
			if err != nil {
				return err
			}
			unitCOGS, totalCOGS := saleCost(plan, sale.Quantity)
			sale.ApplyCost(plan.Method, unitCOGS, totalCOGS)
			if plan.Method == strategy.CostMethodFIFO {
				sale.RecordConsumption(plan.Allocations)
			}

			if plan.HasShortfall() {
				result.Shortfall = plan.Shortfall
				sale.AppendNote(fmt.Sprintf("cost shortfall: %s of %s units had no lot", plan.Shortfall, plan.Requested))
				s.logger.Warn("sale priced with lot shortfall",
					zap.String("sale_id", sale.ID.String()),
					zap.String("product_id", sale.ProductID.String()),
					zap.String("requested", plan.Requested.String()),
					zap.String("shortfall", plan.Shortfall.String()))
			}
		}

		if err := repos.SaleRepo().Create(ctx, sale); err != nil {
			return err
		}

		amount := sale.Revenue
		if sale.IsWriteOff() {
			amount = sale.TotalCOGS
		}
		if amount.IsPositive() {
			e := entry(sale.ID, sale.ProductID, amount, s.ledgerService.Currency(), sale.SoldAt)
			e.RecordedBy = sale.RecordedBy
			tx, err := s.ledgerService.Append(ctx, repos.FinanceRepo(), e)
			if err != nil {
				return err
			}
			result.FinanceTransactionID = &tx.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sale.AddDomainEvent(trade.NewSaleCostedEvent(sale, result.Shortfall))
	ledger.PublishCommitted(ctx, s.eventPublisher, s.logger, sale.PullDomainEvents())
	result.Sale = ToSaleResponse(sale)
	return result, nil
}

// saleCost derives the stored cost pair from a plan. Weighted average
// multiplies out a rounded unit cost; FIFO keeps its once-rounded total and
// derives the unit from it.
func saleCost(plan strategy.ConsumptionPlan, quantity decimal.Decimal) (unit, total decimal.Decimal) {
	if plan.Method == strategy.CostMethodFIFO {
		total = plan.TotalCost
		if quantity.IsPositive() {
			unit = shared.RoundMoney(total.Div(quantity))
		}
		return unit, total
	}
	unit = shared.RoundMoney(plan.UnitCost)
	return unit, shared.RoundMoney(quantity.Mul(unit))
}

// ReturnSale moves a sale to returned and books a refund for its revenue.
// The original income entry stays. A FIFO sale puts the quantity it drew
// back onto its lots under the product lock. The stored version guards
// against two concurrent returns of the same sale.
func (s *SaleService) ReturnSale(ctx context.Context, saleID uuid.UUID) (*SaleResultResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "sale.return",
		telemetry.WithAttribute("sale_id", saleID.String()),
	)
	defer span.End()

	sale, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		s.reject(ctx, "return_sale", err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	if sale.ConsumedLots() && sale.HasProduct() {
		release, err := s.locker.Acquire(ctx, []uuid.UUID{*sale.ProductID})
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		defer release()
	}

	result := &SaleResultResponse{Shortfall: decimal.Zero}
	released := decimal.Zero
	err = s.scope.Execute(ctx, func(repos ledger.Repositories) error {
		var err error
		sale, err = repos.SaleRepo().FindByID(ctx, saleID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := sale.Return(now); err != nil {
			return err
		}
		if err := repos.SaleRepo().SaveWithLock(ctx, sale); err != nil {
			return err
		}
		if sale.ConsumedLots() {
			if released, err = s.costing.Release(ctx, repos, sale.LotAllocations); err != nil {
				return err
			}
		}
		if sale.Revenue.IsPositive() {
			refund := finance.Refund(sale.ID, sale.ProductID, sale.Revenue, s.ledgerService.Currency(), now)
			refund.RecordedBy = sale.RecordedBy
			tx, err := s.ledgerService.Append(ctx, repos.FinanceRepo(), refund)
			if err != nil {
				return err
			}
			result.FinanceTransactionID = &tx.ID
		}
		return nil
	})
	if err != nil {
		s.reject(ctx, "return_sale", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	ledger.PublishCommitted(ctx, s.eventPublisher, s.logger, sale.PullDomainEvents())
	s.logger.Info("sale returned",
		zap.String("sale_id", sale.ID.String()),
		zap.String("refund", sale.Revenue.String()),
		zap.String("lots_released", released.String()))

	result.Sale = ToSaleResponse(sale)
	telemetry.SetOK(span)
	return result, nil
}

func (s *SaleService) reject(ctx context.Context, workflow string, err error) {
	var de *shared.DomainError
	if errors.As(err, &de) {
		s.metrics.RecordRejected(ctx, workflow, de.Code)
	}
}

func toFees(in []FeeInput) []trade.Fee {
	if len(in) == 0 {
		return nil
	}
	out := make([]trade.Fee, len(in))
	for i, f := range in {
		out[i] = trade.Fee{Name: f.Name, Amount: f.Amount}
	}
	return out
}
