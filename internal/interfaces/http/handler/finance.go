package handler

import (
	"context"
	"net/http"
	"time"

	financeapp "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// LedgerService reads the finance ledger
type LedgerService interface {
	List(ctx context.Context, filter shared.Filter) (shared.Paginated[financeapp.TransactionResponse], error)
	Summarize(ctx context.Context, filter finance.SummaryFilter) (*financeapp.LedgerSummary, error)
}

// TransactionQuery holds the query parameters of GET /finance/transactions
type TransactionQuery struct {
	Type            string     `form:"type" binding:"omitempty,oneof=sale_revenue supplier_payment refund adjustment"`
	Direction       string     `form:"direction" binding:"omitempty,oneof=income expense"`
	Category        string     `form:"category"`
	SaleID          string     `form:"sale_id" binding:"omitempty,uuid"`
	PurchaseOrderID string     `form:"purchase_order_id" binding:"omitempty,uuid"`
	ProductID       string     `form:"product_id" binding:"omitempty,uuid"`
	RecordedBy      string     `form:"user"`
	Search          string     `form:"search"`
	From            *time.Time `form:"from" time_format:"2006-01-02" time_utc:"1"`
	To              *time.Time `form:"to" time_format:"2006-01-02" time_utc:"1"`
	Page            int        `form:"page" binding:"omitempty,min=1"`
	PageSize        int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy         string     `form:"order_by"`
	OrderDir        string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// Filter converts the query into a repository filter
func (q TransactionQuery) Filter() shared.Filter {
	f := shared.DefaultFilter()
	if q.Page > 0 {
		f.Page = q.Page
	}
	if q.PageSize > 0 {
		f.PageSize = q.PageSize
	}
	if q.OrderBy != "" {
		f.OrderBy = q.OrderBy
	}
	if q.OrderDir != "" {
		f.OrderDir = q.OrderDir
	}
	f.Search = q.Search

	for column, value := range map[string]string{
		"type":              q.Type,
		"direction":         q.Direction,
		"category":          q.Category,
		"sale_id":           q.SaleID,
		"purchase_order_id": q.PurchaseOrderID,
		"product_id":        q.ProductID,
		"recorded_by":       q.RecordedBy,
	} {
		if value != "" {
			f = f.WithEqual(column, value)
		}
	}
	return f.WithRange(q.From, endOfDay(q.To))
}

// FinanceHandler handles finance ledger endpoints
type FinanceHandler struct {
	BaseHandler
	ledger LedgerService
}

// NewFinanceHandler creates a new FinanceHandler
func NewFinanceHandler(ledger LedgerService) *FinanceHandler {
	return &FinanceHandler{ledger: ledger}
}

// ListTransactions handles GET /finance/transactions
func (h *FinanceHandler) ListTransactions(c *gin.Context) {
	var q TransactionQuery
	if !h.bindQuery(c, &q) {
		return
	}

	page, err := h.ledger.List(c.Request.Context(), q.Filter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// SummaryQuery holds the query parameters of GET /finance/summary
type SummaryQuery struct {
	From       *time.Time `form:"from" time_format:"2006-01-02" time_utc:"1"`
	To         *time.Time `form:"to" time_format:"2006-01-02" time_utc:"1"`
	Channel    string     `form:"channel"`
	RecordedBy string     `form:"user"`
}

// Summary handles GET /finance/summary
func (h *FinanceHandler) Summary(c *gin.Context) {
	var q SummaryQuery
	if !h.bindQuery(c, &q) {
		return
	}

	summary, err := h.ledger.Summarize(c.Request.Context(), finance.SummaryFilter{
		From:       q.From,
		To:         endOfDay(q.To),
		Channel:    q.Channel,
		RecordedBy: q.RecordedBy,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

func endOfDay(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	end := t.Add(24*time.Hour - time.Nanosecond)
	return &end
}
