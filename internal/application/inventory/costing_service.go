package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CostPolicyProvider resolves costing policies by method
type CostPolicyProvider interface {
	// CostPolicy returns the policy for method, or the default for ""
	CostPolicy(method strategy.CostMethod) (strategy.CostingPolicy, error)
	// Default returns the configured default method
	Default() strategy.CostMethod
}

// CostingService prices quantities of a product from its lots. Simulation and
// commit run the same policy Plan; commit additionally decrements the lots.
type CostingService struct {
	lotRepo  inventory.LotRepository
	policies CostPolicyProvider
	logger   *zap.Logger
}

// NewCostingService creates a new CostingService
func NewCostingService(lotRepo inventory.LotRepository, policies CostPolicyProvider, logger *zap.Logger) *CostingService {
	return &CostingService{
		lotRepo:  lotRepo,
		policies: policies,
		logger:   logger,
	}
}

// DefaultMethod returns the configured default costing method
func (s *CostingService) DefaultMethod() strategy.CostMethod {
	return s.policies.Default()
}

// WeightedAverageCost returns Σ(initial × unit cost) / Σ initial over the
// product's live lots, unrounded. No receipts yields zero without error.
func (s *CostingService) WeightedAverageCost(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	return s.weightedAverage(ctx, s.lotRepo, productID)
}

func (s *CostingService) weightedAverage(ctx context.Context, repo inventory.LotRepository, productID uuid.UUID) (decimal.Decimal, error) {
	policy, err := s.policies.CostPolicy(strategy.CostMethodWeightedAverage)
	if err != nil {
		return decimal.Zero, err
	}
	lots, err := repo.FindByProduct(ctx, productID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load lots for product %s: %w", productID, err)
	}
	return policy.AverageCost(inventory.Snapshots(lots)), nil
}

// SimulateFIFO prices quantity against the product's lots as they stand now.
// It never writes, so it is safe to call any number of times.
func (s *CostingService) SimulateFIFO(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) (strategy.ConsumptionPlan, error) {
	ctx, span := telemetry.StartSpan(ctx, "costing.simulate_fifo",
		telemetry.WithAttribute("product_id", productID.String()),
		telemetry.WithAttribute("quantity", quantity.String()),
	)
	defer span.End()

	policy, err := s.policies.CostPolicy(strategy.CostMethodFIFO)
	if err != nil {
		telemetry.RecordError(span, err)
		return strategy.ConsumptionPlan{}, err
	}
	lots, err := s.lotRepo.FindByProduct(ctx, productID)
	if err != nil {
		telemetry.RecordError(span, err)
		return strategy.ConsumptionPlan{}, fmt.Errorf("load lots for product %s: %w", productID, err)
	}

	plan := policy.Plan(inventory.Snapshots(lots), quantity)
	telemetry.SetOK(span)
	return plan, nil
}

// SimulateFIFOAgainst prices quantity against caller-supplied lot state
func (s *CostingService) SimulateFIFOAgainst(lots []strategy.LotSnapshot, quantity decimal.Decimal) (strategy.ConsumptionPlan, error) {
	policy, err := s.policies.CostPolicy(strategy.CostMethodFIFO)
	if err != nil {
		return strategy.ConsumptionPlan{}, err
	}
	return policy.Plan(lots, quantity), nil
}

// commit runs the policy's plan against the unit of work's lots and then
// decrements every allocated lot with a compare-and-swap on remaining_qty.
// The caller must hold the product lock. A CAS miss restores the lots already
// decremented and returns shared.ErrConcurrencyConflict.
func (s *CostingService) commit(ctx context.Context, repos ledger.Repositories, policy strategy.CostingPolicy, productID uuid.UUID, quantity decimal.Decimal) (strategy.ConsumptionPlan, error) {
	ctx, span := telemetry.StartSpan(ctx, "costing.commit",
		telemetry.WithAttribute("product_id", productID.String()),
		telemetry.WithAttribute("quantity", quantity.String()),
	)
	defer span.End()

	lotRepo := repos.LotRepo()
	lots, err := lotRepo.FindByProduct(ctx, productID)
	if err != nil {
		telemetry.RecordError(span, err)
		return strategy.ConsumptionPlan{}, fmt.Errorf("load lots for product %s: %w", productID, err)
	}
	byID := make(map[uuid.UUID]*inventory.Lot, len(lots))
	for _, l := range lots {
		byID[l.ID] = l
	}

	plan := policy.Plan(inventory.Snapshots(lots), quantity)

	applied := make([]strategy.LotAllocation, 0, len(plan.Allocations))
	for _, a := range plan.Allocations {
		lot := byID[a.LotID]
		before := lot.RemainingQty
		if err := lot.Consume(a.Quantity); err != nil {
			s.restore(ctx, lotRepo, byID, applied)
			telemetry.RecordError(span, err)
			return strategy.ConsumptionPlan{}, fmt.Errorf("consume lot %s: %w", a.LotID, err)
		}
		if err := lotRepo.UpdateRemaining(ctx, a.LotID, before, lot.RemainingQty); err != nil {
			lot.RemainingQty = before
			s.restore(ctx, lotRepo, byID, applied)
			telemetry.RecordError(span, err)
			return strategy.ConsumptionPlan{}, fmt.Errorf("consume lot %s: %w", a.LotID, err)
		}
		applied = append(applied, a)
	}

	telemetry.SetAttributes(span,
		"lots_consumed", len(plan.Allocations),
		"shortfall", plan.Shortfall.String(),
	)
	telemetry.SetOK(span)
	return plan, nil
}

// restore compensates decrements already applied when a later lot fails
func (s *CostingService) restore(ctx context.Context, lotRepo inventory.LotRepository, lots map[uuid.UUID]*inventory.Lot, applied []strategy.LotAllocation) {
	for _, a := range applied {
		lot := lots[a.LotID]
		consumed := lot.RemainingQty
		err := lot.Restore(a.Quantity)
		if err == nil {
			err = lotRepo.UpdateRemaining(ctx, a.LotID, consumed, lot.RemainingQty)
		}
		if err != nil {
			s.logger.Error("failed to restore lot after aborted consumption",
				zap.String("lot_id", a.LotID.String()),
				zap.String("quantity", a.Quantity.String()),
				zap.Error(err))
		}
	}
}

// Release puts the quantities a FIFO sale drew back onto its lots, newest
// allocation first, inside the caller's unit of work. A lot that no longer
// exists is skipped. The caller must hold the product lock.
func (s *CostingService) Release(ctx context.Context, repos ledger.Repositories, allocations []strategy.LotAllocation) (decimal.Decimal, error) {
	ctx, span := telemetry.StartSpan(ctx, "costing.release",
		telemetry.WithAttribute("allocations", len(allocations)),
	)
	defer span.End()

	lotRepo := repos.LotRepo()
	released := decimal.Zero
	for i := len(allocations) - 1; i >= 0; i-- {
		a := allocations[i]
		lot, err := lotRepo.FindByID(ctx, a.LotID)
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("lot released by a return no longer exists",
				zap.String("lot_id", a.LotID.String()),
				zap.String("quantity", a.Quantity.String()))
			continue
		}
		if err != nil {
			telemetry.RecordError(span, err)
			return decimal.Zero, fmt.Errorf("load lot %s: %w", a.LotID, err)
		}
		before := lot.RemainingQty
		if err := lot.Restore(a.Quantity); err != nil {
			telemetry.RecordError(span, err)
			return decimal.Zero, fmt.Errorf("release lot %s: %w", a.LotID, err)
		}
		if err := lotRepo.UpdateRemaining(ctx, a.LotID, before, lot.RemainingQty); err != nil {
			telemetry.RecordError(span, err)
			return decimal.Zero, fmt.Errorf("release lot %s: %w", a.LotID, err)
		}
		released = released.Add(a.Quantity)
	}

	telemetry.SetAttributes(span, "released", released.String())
	telemetry.SetOK(span)
	return released, nil
}

// Price runs exactly one costing policy for a sale-sized quantity inside the
// caller's unit of work. Policies that consume lots commit; others only read.
// The caller must hold the product lock.
func (s *CostingService) Price(ctx context.Context, repos ledger.Repositories, method strategy.CostMethod, productID uuid.UUID, quantity decimal.Decimal) (strategy.ConsumptionPlan, error) {
	policy, err := s.policies.CostPolicy(method)
	if err != nil {
		return strategy.ConsumptionPlan{}, err
	}
	if policy.ConsumesLots() {
		return s.commit(ctx, repos, policy, productID, quantity)
	}

	lots, err := repos.LotRepo().FindByProduct(ctx, productID)
	if err != nil {
		return strategy.ConsumptionPlan{}, fmt.Errorf("load lots for product %s: %w", productID, err)
	}
	return policy.Plan(inventory.Snapshots(lots), quantity), nil
}

// Quote prices quantity with the given policy without writing anything
func (s *CostingService) Quote(ctx context.Context, method strategy.CostMethod, productID uuid.UUID, quantity decimal.Decimal) (*CostQuoteResponse, error) {
	if !quantity.IsPositive() {
		return nil, shared.NewInvalidInputError("quantity must be positive")
	}
	policy, err := s.policies.CostPolicy(method)
	if err != nil {
		return nil, err
	}
	lots, err := s.lotRepo.FindByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load lots for product %s: %w", productID, err)
	}

	snapshots := inventory.Snapshots(lots)
	plan := policy.Plan(snapshots, quantity)
	return &CostQuoteResponse{
		ProductID:           productID,
		Method:              policy.Method(),
		Quantity:            quantity,
		WeightedAverageCost: policy.AverageCost(snapshots),
		UnitCost:            plan.UnitCost,
		TotalCost:           plan.TotalCost,
		Shortfall:           plan.Shortfall,
		Allocations:         plan.Allocations,
	}, nil
}
