package strategy

import (
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/infrastructure/strategy/cost"
)

// NewRegistryWithDefaults creates a registry holding the weighted-average and
// FIFO policies, with defaultMethod as the default. An empty defaultMethod
// selects weighted average.
func NewRegistryWithDefaults(defaultMethod strategy.CostMethod) (*Registry, error) {
	r := NewRegistry()

	if err := r.RegisterCostPolicy(cost.NewWeightedAverageCostPolicy()); err != nil {
		return nil, err
	}
	if err := r.RegisterCostPolicy(cost.NewFIFOCostPolicy()); err != nil {
		return nil, err
	}

	if defaultMethod == "" {
		defaultMethod = strategy.CostMethodWeightedAverage
	}
	if err := r.SetDefault(defaultMethod); err != nil {
		return nil, err
	}
	return r, nil
}
