package handler

import (
	"net/http"
	"testing"

	tradeapp "github.com/erp/ledger/internal/application/trade"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupSaleRouter(sales *mockSaleService) *gin.Engine {
	h := NewSaleHandler(sales)
	r := newTestEngine()
	r.POST("/sales", h.Create)
	r.GET("/sales/:id", h.GetByID)
	r.POST("/sales/:id/return", h.Return)
	r.POST("/write-offs", h.WriteOff)
	return r
}

func TestSaleHandler_Create(t *testing.T) {
	productID := uuid.New()
	saleID := uuid.New()

	t.Run("records the calling user and reports shortfall", func(t *testing.T) {
		sales := new(mockSaleService)
		sales.On("CreateSale", mock.Anything, mock.MatchedBy(func(req tradeapp.CreateSaleRequest) bool {
			return req.RecordedBy == "clerk-1" && req.Channel == "shop" &&
				req.Quantity.Equal(decimal.NewFromInt(3)) && *req.ProductID == productID
		})).Return(&tradeapp.SaleResultResponse{
			Sale:      tradeapp.SaleResponse{ID: saleID, Channel: "shop"},
			Shortfall: decimal.NewFromInt(1),
		}, nil)

		w := doJSON(setupSaleRouter(sales), http.MethodPost, "/sales", map[string]any{
			"channel":        "shop",
			"product_id":     productID,
			"quantity":       "3",
			"price_per_unit": "12.00",
			"recorded_by":    "spoofed",
		}, map[string]string{middleware.HeaderUserID: "clerk-1"})

		assert.Equal(t, http.StatusCreated, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, "1", data["shortfall"])
		sales.AssertExpectations(t)
	})

	t.Run("duplicate channel order", func(t *testing.T) {
		sales := new(mockSaleService)
		sales.On("CreateSale", mock.Anything, mock.Anything).Return(nil, shared.ErrAlreadyExists)

		w := doJSON(setupSaleRouter(sales), http.MethodPost, "/sales", map[string]any{
			"channel": "shop", "channel_order_id": "A-1", "quantity": "1",
		}, nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dto.ErrCodeAlreadyExists, decodeResponse(t, w).Error.Code)
	})

	t.Run("rejects unknown costing method", func(t *testing.T) {
		sales := new(mockSaleService)
		w := doJSON(setupSaleRouter(sales), http.MethodPost, "/sales", map[string]any{
			"channel": "shop", "quantity": "1", "costing_method": "lifo",
		}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.Len(t, resp.Error.Fields, 1)
		assert.Equal(t, "costing_method", resp.Error.Fields[0].Field)
		sales.AssertNotCalled(t, "CreateSale", mock.Anything, mock.Anything)
	})
}

func TestSaleHandler_GetByID(t *testing.T) {
	id := uuid.New()
	sales := new(mockSaleService)
	sales.On("GetSale", mock.Anything, id).Return(&tradeapp.SaleResponse{ID: id, Status: "active"}, nil)

	w := doJSON(setupSaleRouter(sales), http.MethodGet, "/sales/"+id.String(), nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "active", decodeResponse(t, w).Data.(map[string]any)["status"])
}

func TestSaleHandler_Return(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"returned", nil, http.StatusOK},
		{"already returned", shared.NewInvalidTransitionError("sale", "returned", "returned"), http.StatusUnprocessableEntity},
		{"unknown sale", shared.NewNotFoundError("sale", id), http.StatusNotFound},
		{"lost update", shared.ErrConcurrencyConflict, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sales := new(mockSaleService)
			if tt.err != nil {
				sales.On("ReturnSale", mock.Anything, id).Return(nil, tt.err)
			} else {
				sales.On("ReturnSale", mock.Anything, id).Return(&tradeapp.SaleResultResponse{
					Sale: tradeapp.SaleResponse{ID: id, Status: "returned"},
				}, nil)
			}

			w := doJSON(setupSaleRouter(sales), http.MethodPost, "/sales/"+id.String()+"/return", nil, nil)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestSaleHandler_WriteOff(t *testing.T) {
	productID := uuid.New()

	t.Run("recorded", func(t *testing.T) {
		sales := new(mockSaleService)
		sales.On("WriteOff", mock.Anything, mock.MatchedBy(func(req tradeapp.WriteOffRequest) bool {
			return req.ProductID == productID && req.Reason == "damaged" && req.RecordedBy == "ops"
		})).Return(&tradeapp.SaleResultResponse{Sale: tradeapp.SaleResponse{Channel: "write_off"}}, nil)

		w := doJSON(setupSaleRouter(sales), http.MethodPost, "/write-offs", map[string]any{
			"product_id": productID, "quantity": "2", "reason": "damaged",
		}, map[string]string{middleware.HeaderUserID: "ops"})

		assert.Equal(t, http.StatusCreated, w.Code)
		sales.AssertExpectations(t)
	})

	t.Run("reason required", func(t *testing.T) {
		sales := new(mockSaleService)
		w := doJSON(setupSaleRouter(sales), http.MethodPost, "/write-offs", map[string]any{
			"product_id": productID, "quantity": "2",
		}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		sales.AssertNotCalled(t, "WriteOff", mock.Anything, mock.Anything)
	})
}
