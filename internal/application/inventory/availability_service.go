package inventory

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AvailabilityService derives sellable quantity from receipts and sales.
// There is no stored counter: a returned sale simply stops counting.
type AvailabilityService struct {
	orderRepo trade.PurchaseOrderRepository
	lotRepo   inventory.LotRepository
	saleRepo  trade.SaleRepository
}

// NewAvailabilityService creates a new AvailabilityService
func NewAvailabilityService(
	orderRepo trade.PurchaseOrderRepository,
	lotRepo inventory.LotRepository,
	saleRepo trade.SaleRepository,
) *AvailabilityService {
	return &AvailabilityService{
		orderRepo: orderRepo,
		lotRepo:   lotRepo,
		saleRepo:  saleRepo,
	}
}

// Available returns received quantity plus synthetic lot quantity minus the
// quantity of active or delivered sales
func (s *AvailabilityService) Available(ctx context.Context, productID uuid.UUID) (*AvailabilityResponse, error) {
	all, err := s.AvailableMany(ctx, []uuid.UUID{productID})
	if err != nil {
		return nil, err
	}
	return all[productID], nil
}

// AvailableMany computes availability for several products with one query per source
func (s *AvailabilityService) AvailableMany(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]*AvailabilityResponse, error) {
	received, err := s.orderRepo.SumReceivedQty(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("sum received quantity: %w", err)
	}
	synthetic, err := s.lotRepo.SumSyntheticInitial(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("sum synthetic lots: %w", err)
	}
	consumed, err := s.saleRepo.SumConsumedQty(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("sum consumed quantity: %w", err)
	}

	out := make(map[uuid.UUID]*AvailabilityResponse, len(productIDs))
	for _, id := range productIDs {
		r := valueOrZero(received, id)
		syn := valueOrZero(synthetic, id)
		c := valueOrZero(consumed, id)
		out[id] = &AvailabilityResponse{
			ProductID: id,
			Received:  r,
			Synthetic: syn,
			Consumed:  c,
			Available: r.Add(syn).Sub(c),
		}
	}
	return out, nil
}

func valueOrZero(m map[uuid.UUID]decimal.Decimal, id uuid.UUID) decimal.Decimal {
	if v, ok := m[id]; ok {
		return v
	}
	return decimal.Zero
}
