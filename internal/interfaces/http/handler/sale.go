package handler

import (
	"context"

	tradeapp "github.com/erp/ledger/internal/application/trade"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SaleService records sales, returns and write-offs
type SaleService interface {
	GetSale(ctx context.Context, id uuid.UUID) (*tradeapp.SaleResponse, error)
	CreateSale(ctx context.Context, req tradeapp.CreateSaleRequest) (*tradeapp.SaleResultResponse, error)
	ReturnSale(ctx context.Context, saleID uuid.UUID) (*tradeapp.SaleResultResponse, error)
	WriteOff(ctx context.Context, req tradeapp.WriteOffRequest) (*tradeapp.SaleResultResponse, error)
}

// SaleHandler handles sale and write-off endpoints
type SaleHandler struct {
	BaseHandler
	sales SaleService
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(sales SaleService) *SaleHandler {
	return &SaleHandler{sales: sales}
}

// Create handles POST /sales. The recording user comes from the X-User-ID
// header, never from the body.
func (h *SaleHandler) Create(c *gin.Context) {
	var req tradeapp.CreateSaleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.RecordedBy = middleware.GetUserID(c)

	result, err := h.sales.CreateSale(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// GetByID handles GET /sales/:id
func (h *SaleHandler) GetByID(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	sale, err := h.sales.GetSale(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sale)
}

// Return handles POST /sales/:id/return
func (h *SaleHandler) Return(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.sales.ReturnSale(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// WriteOff handles POST /write-offs
func (h *SaleHandler) WriteOff(c *gin.Context) {
	var req tradeapp.WriteOffRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.RecordedBy = middleware.GetUserID(c)

	result, err := h.sales.WriteOff(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}
