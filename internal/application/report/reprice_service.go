package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Planner prices a quantity against lot state without touching storage.
// CostingService.SimulateFIFOAgainst satisfies it.
type Planner func(lots []strategy.LotSnapshot, quantity decimal.Decimal) (strategy.ConsumptionPlan, error)

// RepriceService builds the re-priced view of sales stored with zero cost.
// It only reads: stored sales and lots are never written.
type RepriceService struct {
	saleRepo trade.SaleRepository
	lotRepo  inventory.LotRepository
	plan     Planner
	logger   *zap.Logger
}

// NewRepriceService creates a new RepriceService
func NewRepriceService(saleRepo trade.SaleRepository, lotRepo inventory.LotRepository, plan Planner, logger *zap.Logger) *RepriceService {
	return &RepriceService{
		saleRepo: saleRepo,
		lotRepo:  lotRepo,
		plan:     plan,
		logger:   logger,
	}
}

// RepriceZeroCostSales replays every consuming sale up to the end of the
// window against the lots as received, and returns the FIFO cost of the
// zero-cost sales that fall inside the window
func (s *RepriceService) RepriceZeroCostSales(ctx context.Context, from, to *time.Time) (*RepricedSalesResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "report.reprice_zero_cost_sales")
	defer span.End()

	// earlier sales consume lots too, so history is loaded from the start
	sales, err := s.saleRepo.Query(ctx, trade.SaleQuery{
		To:            to,
		WithProduct:   true,
		ExcludeStatus: []trade.SaleStatus{trade.SaleStatusReturned},
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("query sales: %w", err)
	}

	lots := make(map[uuid.UUID][]strategy.LotSnapshot)
	for _, sale := range sales {
		pid := *sale.ProductID
		if _, seen := lots[pid]; seen {
			continue
		}
		productLots, err := s.lotRepo.FindByProduct(ctx, pid)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("load lots for product %s: %w", pid, err)
		}
		lots[pid] = inventory.Snapshots(productLots)
	}

	repriced, err := Reprice(sales, lots, s.plan, from)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	resp := &RepricedSalesResponse{
		From:      from,
		To:        to,
		Sales:     repriced,
		TotalCOGS: decimal.Zero,
	}
	for _, r := range repriced {
		resp.TotalCOGS = resp.TotalCOGS.Add(r.TotalCOGS)
		if r.Shortfall.IsPositive() {
			resp.WithShortfall++
		}
	}
	if resp.WithShortfall > 0 {
		s.logger.Warn("re-priced sales left without lot cover",
			zap.Int("sales", resp.WithShortfall))
	}

	telemetry.SetAttributes(span, "repriced", len(repriced), "total_cogs", resp.TotalCOGS.String())
	telemetry.SetOK(span)
	return resp, nil
}

// Reprice replays sales in sold_at order against a private copy of each
// product's lots restored to their initial quantity. Every sale consumes from
// the lots of the copy received at or before it was sold; sales with a product and zero stored cost that were sold at or
// after from are reported with their replayed cost. Inputs are not modified
// and the result depends only on them.
func Reprice(sales []*trade.Sale, lots map[uuid.UUID][]strategy.LotSnapshot, plan Planner, from *time.Time) ([]RepricedSale, error) {
	ordered := make([]*trade.Sale, 0, len(sales))
	for _, sale := range sales {
		if sale.HasProduct() && sale.Status.IsConsuming() {
			ordered = append(ordered, sale)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].SoldAt.Equal(ordered[j].SoldAt) {
			return ordered[i].SoldAt.Before(ordered[j].SoldAt)
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})

	state := make(map[uuid.UUID][]strategy.LotSnapshot, len(lots))
	for pid, productLots := range lots {
		restored := make([]strategy.LotSnapshot, len(productLots))
		for i, l := range productLots {
			l.RemainingQty = l.InitialQty
			restored[i] = l
		}
		state[pid] = restored
	}

	out := make([]RepricedSale, 0)
	for _, sale := range ordered {
		pid := *sale.ProductID
		p, err := plan(receivedBy(state[pid], sale.SoldAt), sale.Quantity)
		if err != nil {
			return nil, err
		}
		state[pid] = applyPlan(state[pid], p)

		if !sale.TotalCOGS.IsZero() {
			continue
		}
		if from != nil && sale.SoldAt.Before(*from) {
			continue
		}
		unit := decimal.Zero
		if sale.Quantity.IsPositive() {
			unit = shared.RoundMoney(p.TotalCost.Div(sale.Quantity))
		}
		fees := sale.TotalFees()
		out = append(out, RepricedSale{
			SaleID:     sale.ID,
			ProductID:  pid,
			Channel:    sale.Channel,
			SoldAt:     sale.SoldAt,
			Quantity:   sale.Quantity,
			Revenue:    sale.Revenue,
			Fees:       fees,
			StoredCOGS: sale.TotalCOGS,
			UnitCOGS:   unit,
			TotalCOGS:  p.TotalCost,
			Shortfall:  p.Shortfall,
			Profit:     sale.Revenue.Sub(p.TotalCost).Sub(fees),
		})
	}
	return out, nil
}

// receivedBy returns the lots already on hand at the given instant
func receivedBy(lots []strategy.LotSnapshot, at time.Time) []strategy.LotSnapshot {
	out := make([]strategy.LotSnapshot, 0, len(lots))
	for _, l := range lots {
		if !l.ReceivedAt.After(at) {
			out = append(out, l)
		}
	}
	return out
}

// applyPlan returns a copy of lots with the plan's allocations taken out
func applyPlan(lots []strategy.LotSnapshot, p strategy.ConsumptionPlan) []strategy.LotSnapshot {
	if len(p.Allocations) == 0 {
		return lots
	}
	taken := make(map[uuid.UUID]decimal.Decimal, len(p.Allocations))
	for _, a := range p.Allocations {
		taken[a.LotID] = taken[a.LotID].Add(a.Quantity)
	}
	next := make([]strategy.LotSnapshot, len(lots))
	for i, l := range lots {
		if q, ok := taken[l.ID]; ok {
			l.RemainingQty = l.RemainingQty.Sub(q)
		}
		next[i] = l
	}
	return next
}
