package handler

import (
	"context"
	"net/http"

	inventoryapp "github.com/erp/ledger/internal/application/inventory"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotService creates and lists lots
type LotService interface {
	CreateOpeningBalance(ctx context.Context, req inventoryapp.CreateOpeningBalanceRequest) (*inventoryapp.LotResponse, error)
	ListLots(ctx context.Context, productID uuid.UUID) ([]inventoryapp.LotResponse, error)
}

// AvailabilityService derives how many units of a product can be sold
type AvailabilityService interface {
	Available(ctx context.Context, productID uuid.UUID) (*inventoryapp.AvailabilityResponse, error)
}

// CostQuoter prices a quantity without consuming stock
type CostQuoter interface {
	Quote(ctx context.Context, method strategy.CostMethod, productID uuid.UUID, quantity decimal.Decimal) (*inventoryapp.CostQuoteResponse, error)
}

// CostQuery holds the query parameters of GET /products/:id/cost
type CostQuery struct {
	Quantity decimal.Decimal `form:"quantity" binding:"required"`
	Method   string          `form:"method" binding:"omitempty,oneof=weighted_average fifo"`
}

// LotHandler handles lot, availability and cost quote endpoints
type LotHandler struct {
	BaseHandler
	lots         LotService
	availability AvailabilityService
	costing      CostQuoter
}

// NewLotHandler creates a new LotHandler
func NewLotHandler(lots LotService, availability AvailabilityService, costing CostQuoter) *LotHandler {
	return &LotHandler{lots: lots, availability: availability, costing: costing}
}

// CreateOpeningBalance handles POST /lots/opening-balance
func (h *LotHandler) CreateOpeningBalance(c *gin.Context) {
	var req inventoryapp.CreateOpeningBalanceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	lot, err := h.lots.CreateOpeningBalance(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, lot)
}

// ListLots handles GET /products/:id/lots
func (h *LotHandler) ListLots(c *gin.Context) {
	productID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	lots, err := h.lots.ListLots(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lots)
}

// Availability handles GET /products/:id/availability
func (h *LotHandler) Availability(c *gin.Context) {
	productID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.availability.Available(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Cost handles GET /products/:id/cost?quantity=&method=. Without a method
// the configured default policy prices the quote.
func (h *LotHandler) Cost(c *gin.Context) {
	productID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	var q CostQuery
	if !h.bindQuery(c, &q) {
		return
	}
	if !q.Quantity.IsPositive() {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "quantity must be positive")
		return
	}

	quote, err := h.costing.Quote(c.Request.Context(), strategy.CostMethod(q.Method), productID, q.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, quote)
}
