package inventory

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LotService manages lots that do not come from a purchase receipt and
// exposes the lot ledger for reading
type LotService struct {
	scope    ledger.TransactionScope
	lotRepo  inventory.LotRepository
	locker   ProductLocker
	currency string
	logger   *zap.Logger
}

// NewLotService creates a new LotService
func NewLotService(scope ledger.TransactionScope, lotRepo inventory.LotRepository, locker ProductLocker, currency string, logger *zap.Logger) *LotService {
	if currency == "" {
		currency = shared.DefaultCurrency
	}
	return &LotService{
		scope:    scope,
		lotRepo:  lotRepo,
		locker:   locker,
		currency: currency,
		logger:   logger,
	}
}

// CreateOpeningBalance records a synthetic lot for onboarding stock or a
// counted adjustment
func (s *LotService) CreateOpeningBalance(ctx context.Context, req CreateOpeningBalanceRequest) (*LotResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "lot.create_opening_balance",
		telemetry.WithAttribute("product_id", req.ProductID.String()),
	)
	defer span.End()

	source := inventory.LotSource(req.Source)
	if source == "" {
		source = inventory.LotSourceOpeningBalance
	}
	if !source.IsSynthetic() {
		err := shared.NewInvalidInputError("opening balance lots must be opening_balance or adjustment")
		telemetry.RecordError(span, err)
		return nil, err
	}
	receivedAt := time.Now()
	if req.ReceivedAt != nil {
		receivedAt = *req.ReceivedAt
	}

	lot, err := inventory.NewLot(req.ProductID, nil, source, req.Quantity, shared.RoundMoney(req.UnitCost), s.currency, receivedAt)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, []uuid.UUID{req.ProductID})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	if err := s.scope.Execute(ctx, func(repos ledger.Repositories) error {
		return repos.LotRepo().Save(ctx, lot)
	}); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("synthetic lot created",
		zap.String("lot_id", lot.ID.String()),
		zap.String("product_id", lot.ProductID.String()),
		zap.String("source", lot.Source.String()),
		zap.String("quantity", lot.InitialQty.String()))
	telemetry.SetOK(span)
	resp := ToLotResponse(lot)
	return &resp, nil
}

// ListLots returns a product's live lots in FIFO order
func (s *LotService) ListLots(ctx context.Context, productID uuid.UUID) ([]LotResponse, error) {
	lots, err := s.lotRepo.FindByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return ToLotResponses(lots), nil
}
