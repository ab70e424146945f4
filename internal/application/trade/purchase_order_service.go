package trade

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PurchaseOrderService handles purchase order business operations up to the
// point of receipt. Receiving itself lives in ReceivingService.
type PurchaseOrderService struct {
	orderRepo      trade.PurchaseOrderRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewPurchaseOrderService creates a new PurchaseOrderService
func NewPurchaseOrderService(orderRepo trade.PurchaseOrderRepository, logger *zap.Logger) *PurchaseOrderService {
	return &PurchaseOrderService{
		orderRepo: orderRepo,
		logger:    logger,
		now:       time.Now,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *PurchaseOrderService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Create creates a new draft purchase order with its lines
func (s *PurchaseOrderService) Create(ctx context.Context, req CreatePurchaseOrderRequest) (*PurchaseOrderResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "purchase_order.create",
		telemetry.WithAttribute("supplier_ref", req.SupplierRef),
	)
	defer span.End()

	sharedCosts := make([]trade.SharedCost, 0, len(req.SharedCosts))
	for _, c := range req.SharedCosts {
		sharedCosts = append(sharedCosts, trade.SharedCost{Name: c.Name, Amount: c.Amount})
	}

	order, err := trade.NewPurchaseOrder(req.SupplierRef, req.ExpectedAt, sharedCosts)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	for _, line := range req.Lines {
		costs := trade.LineCosts{
			Packaging: line.Packaging,
			Logistics: line.Logistics,
			Customs:   line.Customs,
			Extra:     line.Extra,
		}
		if _, err := order.AddLine(line.ProductID, line.OrderedQty, line.PurchasePrice, costs); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	ledger.PublishCommitted(ctx, s.eventPublisher, s.logger, order.PullDomainEvents())

	telemetry.SetAttributes(span, "order_id", order.ID.String(), "lines", len(order.Lines))
	telemetry.SetOK(span)
	resp := ToPurchaseOrderResponse(order)
	return &resp, nil
}

// GetByID retrieves a purchase order with its lines
func (s *PurchaseOrderService) GetByID(ctx context.Context, id uuid.UUID) (*PurchaseOrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToPurchaseOrderResponse(order)
	return &resp, nil
}

// List lists purchase orders with filtering and pagination
func (s *PurchaseOrderService) List(ctx context.Context, filter PurchaseOrderListFilter) (shared.Paginated[PurchaseOrderResponse], error) {
	f := shared.DefaultFilter()
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		f.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		f.OrderDir = filter.OrderDir
	}
	if filter.Status != "" {
		f = f.WithEqual("status", filter.Status)
	}
	if filter.Search != "" {
		f.Contains["supplier_ref"] = filter.Search
	}

	orders, total, err := s.orderRepo.FindAll(ctx, f)
	if err != nil {
		return shared.Paginated[PurchaseOrderResponse]{}, err
	}
	items := make([]PurchaseOrderResponse, len(orders))
	for i, o := range orders {
		items[i] = ToPurchaseOrderResponse(o)
	}
	return shared.NewPaginated(items, total, f.Page, f.PageSize), nil
}

// MarkOrdered moves a draft order to ordered
func (s *PurchaseOrderService) MarkOrdered(ctx context.Context, id uuid.UUID) (*PurchaseOrderResponse, error) {
	return s.transition(ctx, id, "purchase_order.mark_ordered", func(o *trade.PurchaseOrder, now time.Time) error {
		return o.MarkOrdered(now)
	})
}

// MarkShipped moves an ordered order to shipped
func (s *PurchaseOrderService) MarkShipped(ctx context.Context, id uuid.UUID) (*PurchaseOrderResponse, error) {
	return s.transition(ctx, id, "purchase_order.mark_shipped", func(o *trade.PurchaseOrder, now time.Time) error {
		return o.MarkShipped(now)
	})
}

// Cancel cancels an order that has not been received
func (s *PurchaseOrderService) Cancel(ctx context.Context, id uuid.UUID) (*PurchaseOrderResponse, error) {
	return s.transition(ctx, id, "purchase_order.cancel", func(o *trade.PurchaseOrder, now time.Time) error {
		return o.Cancel(now)
	})
}

func (s *PurchaseOrderService) transition(ctx context.Context, id uuid.UUID, spanName string, apply func(*trade.PurchaseOrder, time.Time) error) (*PurchaseOrderResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, spanName,
		telemetry.WithAttribute("order_id", id.String()),
	)
	defer span.End()

	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := apply(order, s.now()); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.orderRepo.SaveWithLock(ctx, order); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	ledger.PublishCommitted(ctx, s.eventPublisher, s.logger, order.PullDomainEvents())

	telemetry.SetAttributes(span, "status", order.Status.String())
	telemetry.SetOK(span)
	resp := ToPurchaseOrderResponse(order)
	return &resp, nil
}
