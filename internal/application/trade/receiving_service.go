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
	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReceivingService turns purchase receipts into lots and supplier payments,
// and reverses them while no sale depends on the received stock
type ReceivingService struct {
	scope          ledger.TransactionScope
	orderRepo      trade.PurchaseOrderRepository
	locker         appinventory.ProductLocker
	ledgerService  *appfinance.LedgerService
	eventPublisher shared.EventPublisher
	metrics        *telemetry.LedgerMetrics
	logger         *zap.Logger
	now            func() time.Time
}

// NewReceivingService creates a new ReceivingService
func NewReceivingService(
	scope ledger.TransactionScope,
	orderRepo trade.PurchaseOrderRepository,
	locker appinventory.ProductLocker,
	ledgerService *appfinance.LedgerService,
	logger *zap.Logger,
) *ReceivingService {
	return &ReceivingService{
		scope:         scope,
		orderRepo:     orderRepo,
		locker:        locker,
		ledgerService: ledgerService,
		logger:        logger,
		now:           time.Now,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ReceivingService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLedgerMetrics sets the metrics collector
func (s *ReceivingService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// ReceiveOrder records the receipt of a purchase order. Each received line
// gets its landed unit cost, one lot, and the order total is booked as a
// supplier payment. A run interrupted halfway can be repeated: lines whose
// lots already exist get no second lot and an order that already carries a
// live payment gets no second payment.
func (s *ReceivingService) ReceiveOrder(ctx context.Context, orderID uuid.UUID, req ReceivePurchaseOrderRequest) (*ReceiptResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "purchase_order.receive",
		telemetry.WithAttribute("order_id", orderID.String()),
	)
	defer span.End()

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if order.Status == trade.PurchaseOrderStatusReceived || order.Status == trade.PurchaseOrderStatusCancelled {
		err := shared.NewInvalidTransitionError("purchase order", order.Status.String(), trade.PurchaseOrderStatusReceived.String())
		s.reject(ctx, "receive", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, order.ProductIDs())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	var (
		resp   *ReceiptResponse
		events []shared.DomainEvent
	)
	err = s.scope.Execute(ctx, func(repos ledger.Repositories) error {
		// Reload under the lock so a concurrent receive is seen.
		order, err := repos.PurchaseOrderRepo().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		now := s.now()
		receipt, err := order.Receive(req.Quantities(), now)
		if err != nil {
			return err
		}

		lotIDs, err := s.createLots(ctx, repos.LotRepo(), receipt, now)
		if err != nil {
			return err
		}
		paymentID, err := s.bookPayment(ctx, repos.FinanceRepo(), order.ID, receipt, now)
		if err != nil {
			return err
		}
		if err := repos.PurchaseOrderRepo().SaveWithLock(ctx, order); err != nil {
			return fmt.Errorf("save purchase order %s: %w", order.ID, err)
		}

		resp = toReceiptResponse(order, receipt, lotIDs, paymentID)
		events = order.PullDomainEvents()
		return nil
	})
	if err != nil {
		s.reject(ctx, "receive", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	ledger.PublishCommitted(ctx, s.eventPublisher, s.logger, events)
	s.metrics.RecordReceipt(ctx, "received", len(resp.Lines))
	s.logger.Info("purchase order received",
		zap.String("order_id", orderID.String()),
		zap.Int("lines", len(resp.Lines)),
		zap.Int("skipped", len(resp.SkippedLines)),
		zap.String("total_cost", resp.TotalCost.String()))

	telemetry.SetAttributes(span, "lines", len(resp.Lines), "total_cost", resp.TotalCost.String())
	telemetry.SetOK(span)
	return resp, nil
}

// createLots creates one lot per received line that does not have one yet
func (s *ReceivingService) createLots(ctx context.Context, lotRepo inventory.LotRepository, receipt *trade.Receipt, now time.Time) (map[uuid.UUID]uuid.UUID, error) {
	lineIDs := make([]uuid.UUID, len(receipt.Lines))
	for i, l := range receipt.Lines {
		lineIDs[i] = l.LineID
	}
	existing, err := lotRepo.FindByLines(ctx, lineIDs)
	if err != nil {
		return nil, fmt.Errorf("load lots of receipt: %w", err)
	}

	lotIDs := make(map[uuid.UUID]uuid.UUID, len(receipt.Lines))
	for _, l := range existing {
		if l.PurchaseOrderLineID != nil {
			lotIDs[*l.PurchaseOrderLineID] = l.ID
		}
	}

	lots := make([]*inventory.Lot, 0, len(receipt.Lines))
	for _, line := range receipt.Lines {
		if _, ok := lotIDs[line.LineID]; ok {
			continue
		}
		lineID := line.LineID
		lot, err := inventory.NewLot(line.ProductID, &lineID, inventory.LotSourcePurchase,
			line.ReceivedQty, line.UnitCost, s.ledgerService.Currency(), now)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
		lotIDs[line.LineID] = lot.ID
	}
	if len(lots) == 0 {
		return lotIDs, nil
	}
	if err := lotRepo.SaveBatch(ctx, lots); err != nil {
		return nil, fmt.Errorf("create lots: %w", err)
	}
	return lotIDs, nil
}

// bookPayment appends the supplier payment unless the receipt is free or a
// live payment for this order already exists
func (s *ReceivingService) bookPayment(ctx context.Context, repo finance.TransactionRepository, orderID uuid.UUID, receipt *trade.Receipt, now time.Time) (*uuid.UUID, error) {
	if !receipt.TotalCost.IsPositive() {
		return nil, nil
	}
	existing, err := repo.FindByPurchaseOrder(ctx, orderID, finance.TransactionTypeSupplierPayment)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &existing[0].ID, nil
	}
	tx, err := s.ledgerService.Append(ctx, repo,
		finance.SupplierPayment(orderID, receipt.TotalCost, s.ledgerService.Currency(), now))
	if err != nil {
		return nil, err
	}
	return &tx.ID, nil
}

// UnreceiveOrder reverts a received order to draft. It refuses, without
// changing anything, while any active or delivered sale exists for a product
// the order received. On success the order's lots are zeroed and removed and
// its supplier payments are reversed.
func (s *ReceivingService) UnreceiveOrder(ctx context.Context, orderID uuid.UUID) (*UnreceiveResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "purchase_order.unreceive",
		telemetry.WithAttribute("order_id", orderID.String()),
	)
	defer span.End()

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !order.IsReceived() {
		err := shared.NewInvalidTransitionError("purchase order", order.Status.String(), trade.PurchaseOrderStatusDraft.String())
		s.reject(ctx, "unreceive", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, order.ReceivedProductIDs())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	var (
		resp   *UnreceiveResponse
		events []shared.DomainEvent
	)
	err = s.scope.Execute(ctx, func(repos ledger.Repositories) error {
		order, err := repos.PurchaseOrderRepo().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.IsReceived() {
			return shared.NewInvalidTransitionError("purchase order", order.Status.String(), trade.PurchaseOrderStatusDraft.String())
		}

		if err := s.guardUnreceive(ctx, repos.SaleRepo(), order); err != nil {
			return err
		}

		reverted, err := order.Unreceive(s.now())
		if err != nil {
			return err
		}
		lotsRemoved, err := repos.LotRepo().ZeroAndDeleteByLines(ctx, reverted)
		if err != nil {
			return fmt.Errorf("remove lots of order %s: %w", order.ID, err)
		}
		paymentsReversed, err := s.ledgerService.SoftDeleteLinked(ctx, repos.FinanceRepo(), order.ID, finance.TransactionTypeSupplierPayment)
		if err != nil {
			return err
		}
		if err := repos.PurchaseOrderRepo().SaveWithLock(ctx, order); err != nil {
			return fmt.Errorf("save purchase order %s: %w", order.ID, err)
		}

		resp = &UnreceiveResponse{
			OrderID:          order.ID,
			Status:           order.Status.String(),
			RevertedLines:    reverted,
			LotsRemoved:      lotsRemoved,
			PaymentsReversed: paymentsReversed,
		}
		events = order.PullDomainEvents()
		return nil
	})
	if err != nil {
		s.reject(ctx, "unreceive", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	ledger.PublishCommitted(ctx, s.eventPublisher, s.logger, events)
	s.metrics.RecordReceipt(ctx, "unreceived", 0)
	s.logger.Info("purchase order unreceived",
		zap.String("order_id", orderID.String()),
		zap.Int64("lots_removed", resp.LotsRemoved),
		zap.Int64("payments_reversed", resp.PaymentsReversed))

	telemetry.SetOK(span)
	return resp, nil
}

// guardUnreceive fails with a precondition violation naming every received
// product that still has active or delivered sales
func (s *ReceivingService) guardUnreceive(ctx context.Context, saleRepo trade.SaleRepository, order *trade.PurchaseOrder) error {
	productIDs := order.ReceivedProductIDs()
	if len(productIDs) == 0 {
		return nil
	}
	counts, err := saleRepo.CountConsumingByProducts(ctx, productIDs)
	if err != nil {
		return fmt.Errorf("count sales of received products: %w", err)
	}

	blockers := make(map[string]int64)
	for _, id := range productIDs {
		if n := counts[id]; n > 0 {
			blockers[id.String()] = n
		}
	}
	if len(blockers) > 0 {
		return shared.NewPreconditionError("unreceive purchase order", blockers)
	}
	return nil
}

func (s *ReceivingService) reject(ctx context.Context, workflow string, err error) {
	var de *shared.DomainError
	if errors.As(err, &de) {
		s.metrics.RecordRejected(ctx, workflow, de.Code)
	}
}

func toReceiptResponse(order *trade.PurchaseOrder, receipt *trade.Receipt, lotIDs map[uuid.UUID]uuid.UUID, paymentID *uuid.UUID) *ReceiptResponse {
	lines := make([]ReceivedLineResponse, len(receipt.Lines))
	for i, l := range receipt.Lines {
		lines[i] = ReceivedLineResponse{
			LineID:      l.LineID,
			ProductID:   l.ProductID,
			ReceivedQty: l.ReceivedQty,
			UnitCost:    l.UnitCost,
			TotalCost:   l.TotalCost,
			LotID:       lotIDs[l.LineID],
		}
	}
	return &ReceiptResponse{
		OrderID:              order.ID,
		Status:               order.Status.String(),
		SharedPerItem:        receipt.SharedPerItem,
		Lines:                lines,
		SkippedLines:         receipt.Skipped,
		TotalCost:            receipt.TotalCost,
		FinanceTransactionID: paymentID,
	}
}
