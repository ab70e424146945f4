package cost

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// WeightedAverageCostPolicy prices every unit at the receipt-weighted average
// of all lots. It never consumes lots.
type WeightedAverageCostPolicy struct {
	strategy.BaseStrategy
}

// NewWeightedAverageCostPolicy creates a new weighted average cost policy
func NewWeightedAverageCostPolicy() *WeightedAverageCostPolicy {
	return &WeightedAverageCostPolicy{
		BaseStrategy: strategy.NewBaseStrategy(
			string(strategy.CostMethodWeightedAverage),
			strategy.StrategyTypeCost,
			"Weighted average cost over all receipts",
		),
	}
}

// Method returns the costing method
func (p *WeightedAverageCostPolicy) Method() strategy.CostMethod {
	return strategy.CostMethodWeightedAverage
}

// ConsumesLots is false
func (p *WeightedAverageCostPolicy) ConsumesLots() bool {
	return false
}

// AverageCost returns Σ(initial × unit cost) / Σ initial, or zero when there
// are no receipts
func (p *WeightedAverageCostPolicy) AverageCost(lots []strategy.LotSnapshot) decimal.Decimal {
	return weightedAverage(lots)
}

// Plan rounds the average to the minor unit, then multiplies out
func (p *WeightedAverageCostPolicy) Plan(lots []strategy.LotSnapshot, quantity decimal.Decimal) strategy.ConsumptionPlan {
	plan := strategy.ConsumptionPlan{
		Method:    strategy.CostMethodWeightedAverage,
		Requested: decimal.Zero,
		Allocated: decimal.Zero,
		Shortfall: decimal.Zero,
		UnitCost:  decimal.Zero,
		TotalCost: decimal.Zero,
	}
	if !quantity.IsPositive() {
		return plan
	}

	unit := shared.RoundMoney(weightedAverage(lots))
	plan.Requested = quantity
	plan.Allocated = quantity
	plan.UnitCost = unit
	plan.TotalCost = shared.RoundMoney(quantity.Mul(unit))
	return plan
}

func weightedAverage(lots []strategy.LotSnapshot) decimal.Decimal {
	totalQty := decimal.Zero
	totalValue := decimal.Zero
	for _, lot := range lots {
		if !lot.InitialQty.IsPositive() {
			continue
		}
		totalQty = totalQty.Add(lot.InitialQty)
		totalValue = totalValue.Add(lot.InitialQty.Mul(lot.UnitCost))
	}
	if totalQty.IsZero() {
		return decimal.Zero
	}
	return totalValue.Div(totalQty)
}

var _ strategy.CostingPolicy = (*WeightedAverageCostPolicy)(nil)
