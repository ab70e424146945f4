package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
)

// Registry holds the costing policies available to the ledger, keyed by the
// cost method they implement.
type Registry struct {
	mu            sync.RWMutex
	costPolicies  map[strategy.CostMethod]strategy.CostingPolicy
	defaultMethod strategy.CostMethod
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		costPolicies: make(map[strategy.CostMethod]strategy.CostingPolicy),
	}
}

// RegisterCostPolicy registers a costing policy under its method
func (r *Registry) RegisterCostPolicy(p strategy.CostingPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	method := p.Method()
	if _, exists := r.costPolicies[method]; exists {
		return fmt.Errorf("%w: cost policy '%s' already registered", shared.ErrAlreadyExists, method)
	}
	r.costPolicies[method] = p
	return nil
}

// CostPolicy returns the policy for a method, or the default if method is empty
func (r *Registry) CostPolicy(method strategy.CostMethod) (strategy.CostingPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if method == "" {
		method = r.defaultMethod
		if method == "" {
			return nil, fmt.Errorf("%w: no default cost policy set", shared.ErrNotFound)
		}
	}

	p, exists := r.costPolicies[method]
	if !exists {
		return nil, fmt.Errorf("%w: cost policy '%s' not registered", shared.ErrInvalidInput, method)
	}
	return p, nil
}

// ListCostPolicies returns all registered methods, sorted
func (r *Registry) ListCostPolicies() []strategy.CostMethod {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]strategy.CostMethod, 0, len(r.costPolicies))
	for m := range r.costPolicies {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	return methods
}

// SetDefault sets the policy used when a caller names none
func (r *Registry) SetDefault(method strategy.CostMethod) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.costPolicies[method]; !exists {
		return fmt.Errorf("%w: cost policy '%s' not registered", shared.ErrNotFound, method)
	}
	r.defaultMethod = method
	return nil
}

// Default returns the default method
func (r *Registry) Default() strategy.CostMethod {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultMethod
}
