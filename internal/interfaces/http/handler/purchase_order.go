package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	tradeapp "github.com/erp/ledger/internal/application/trade"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PurchaseOrderService is the order lifecycle used by PurchaseOrderHandler
type PurchaseOrderService interface {
	Create(ctx context.Context, req tradeapp.CreatePurchaseOrderRequest) (*tradeapp.PurchaseOrderResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*tradeapp.PurchaseOrderResponse, error)
	List(ctx context.Context, filter tradeapp.PurchaseOrderListFilter) (shared.Paginated[tradeapp.PurchaseOrderResponse], error)
	MarkOrdered(ctx context.Context, id uuid.UUID) (*tradeapp.PurchaseOrderResponse, error)
	MarkShipped(ctx context.Context, id uuid.UUID) (*tradeapp.PurchaseOrderResponse, error)
	Cancel(ctx context.Context, id uuid.UUID) (*tradeapp.PurchaseOrderResponse, error)
}

// ReceivingService books and reverts purchase order receipts
type ReceivingService interface {
	ReceiveOrder(ctx context.Context, orderID uuid.UUID, req tradeapp.ReceivePurchaseOrderRequest) (*tradeapp.ReceiptResponse, error)
	UnreceiveOrder(ctx context.Context, orderID uuid.UUID) (*tradeapp.UnreceiveResponse, error)
}

// PurchaseOrderHandler handles purchase order endpoints
type PurchaseOrderHandler struct {
	BaseHandler
	orders    PurchaseOrderService
	receiving ReceivingService
}

// NewPurchaseOrderHandler creates a new PurchaseOrderHandler
func NewPurchaseOrderHandler(orders PurchaseOrderService, receiving ReceivingService) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{orders: orders, receiving: receiving}
}

// Create handles POST /purchase-orders
func (h *PurchaseOrderHandler) Create(c *gin.Context) {
	var req tradeapp.CreatePurchaseOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}

	order, err := h.orders.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// GetByID handles GET /purchase-orders/:id
func (h *PurchaseOrderHandler) GetByID(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// List handles GET /purchase-orders
func (h *PurchaseOrderHandler) List(c *gin.Context) {
	var filter tradeapp.PurchaseOrderListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	page, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// MarkOrdered handles POST /purchase-orders/:id/order
func (h *PurchaseOrderHandler) MarkOrdered(c *gin.Context) {
	h.transition(c, h.orders.MarkOrdered)
}

// MarkShipped handles POST /purchase-orders/:id/ship
func (h *PurchaseOrderHandler) MarkShipped(c *gin.Context) {
	h.transition(c, h.orders.MarkShipped)
}

// Cancel handles POST /purchase-orders/:id/cancel
func (h *PurchaseOrderHandler) Cancel(c *gin.Context) {
	h.transition(c, h.orders.Cancel)
}

func (h *PurchaseOrderHandler) transition(c *gin.Context, fn func(context.Context, uuid.UUID) (*tradeapp.PurchaseOrderResponse, error)) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	order, err := fn(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Receive handles POST /purchase-orders/:id/receive. An empty body receives
// every line in full.
func (h *PurchaseOrderHandler) Receive(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	var req tradeapp.ReceivePurchaseOrderRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			h.bindFailed(c, err, dto.ErrCodeInvalidJSON)
			return
		}
	}

	receipt, err := h.receiving.ReceiveOrder(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receipt)
}

// Unreceive handles POST /purchase-orders/:id/unreceive
func (h *PurchaseOrderHandler) Unreceive(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.receiving.UnreceiveOrder(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
