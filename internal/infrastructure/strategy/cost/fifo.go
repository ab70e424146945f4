package cost

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// FIFOCostPolicy prices a quantity by consuming lots oldest receipt first
type FIFOCostPolicy struct {
	strategy.BaseStrategy
}

// NewFIFOCostPolicy creates a new FIFO cost policy
func NewFIFOCostPolicy() *FIFOCostPolicy {
	return &FIFOCostPolicy{
		BaseStrategy: strategy.NewBaseStrategy(
			string(strategy.CostMethodFIFO),
			strategy.StrategyTypeCost,
			"First-In-First-Out lot consumption",
		),
	}
}

// Method returns the costing method
func (p *FIFOCostPolicy) Method() strategy.CostMethod {
	return strategy.CostMethodFIFO
}

// ConsumesLots is true: committing a FIFO plan decrements lot remaining quantity
func (p *FIFOCostPolicy) ConsumesLots() bool {
	return true
}

// AverageCost returns the receipt-weighted average (for reporting)
func (p *FIFOCostPolicy) AverageCost(lots []strategy.LotSnapshot) decimal.Decimal {
	return weightedAverage(lots)
}

// Plan walks lots in FIFO order taking min(need, remaining) from each. Lots
// with nothing remaining are skipped. Cost accumulates unrounded and is
// rounded once at the end; any unmet quantity is reported as Shortfall.
func (p *FIFOCostPolicy) Plan(lots []strategy.LotSnapshot, quantity decimal.Decimal) strategy.ConsumptionPlan {
	plan := strategy.ConsumptionPlan{
		Method:    strategy.CostMethodFIFO,
		Requested: quantity,
		Allocated: decimal.Zero,
		Shortfall: decimal.Zero,
		UnitCost:  decimal.Zero,
		TotalCost: decimal.Zero,
	}
	if !quantity.IsPositive() {
		plan.Requested = decimal.Zero
		return plan
	}

	need := quantity
	exact := decimal.Zero
	for _, lot := range strategy.SortLots(lots) {
		if need.IsZero() {
			break
		}
		if !lot.RemainingQty.IsPositive() {
			continue
		}

		take := decimal.Min(need, lot.RemainingQty)
		cost := take.Mul(lot.UnitCost)
		exact = exact.Add(cost)
		need = need.Sub(take)
		plan.Allocations = append(plan.Allocations, strategy.LotAllocation{
			LotID:    lot.ID,
			Quantity: take,
			UnitCost: lot.UnitCost,
			Cost:     cost,
		})
	}

	plan.Allocated = quantity.Sub(need)
	plan.Shortfall = need
	plan.TotalCost = shared.RoundMoney(exact)
	if plan.Allocated.IsPositive() {
		plan.UnitCost = shared.RoundMoney(exact.Div(plan.Allocated))
	}
	return plan
}

var _ strategy.CostingPolicy = (*FIFOCostPolicy)(nil)
