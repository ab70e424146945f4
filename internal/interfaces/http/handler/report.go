package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	reportapp "github.com/erp/ledger/internal/application/report"
	"github.com/gin-gonic/gin"
)

// ReportService computes the ledger reports
type ReportService interface {
	ProfitAndLoss(ctx context.Context, filter reportapp.PeriodFilter) (*reportapp.ProfitAndLossResponse, error)
	UnitEconomics(ctx context.Context, filter reportapp.PeriodFilter) (*reportapp.UnitEconomicsResponse, error)
	StockValuation(ctx context.Context) (*reportapp.StockValuationResponse, error)
}

// RepriceService re-prices sales recorded at zero cost
type RepriceService interface {
	RepriceZeroCostSales(ctx context.Context, from, to *time.Time) (*reportapp.RepricedSalesResponse, error)
}

// ValuationExporter renders the stock valuation as a workbook
type ValuationExporter interface {
	ExportStockValuation(ctx context.Context) ([]byte, string, error)
}

// ReportHandler handles report endpoints
type ReportHandler struct {
	BaseHandler
	reports  ReportService
	reprice  RepriceService
	exporter ValuationExporter
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reports ReportService, reprice RepriceService, exporter ValuationExporter) *ReportHandler {
	return &ReportHandler{reports: reports, reprice: reprice, exporter: exporter}
}

// ProfitAndLoss handles GET /reports/pnl?from=&to=&channel=&user=
func (h *ReportHandler) ProfitAndLoss(c *gin.Context) {
	filter, ok := h.period(c)
	if !ok {
		return
	}

	result, err := h.reports.ProfitAndLoss(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// UnitEconomics handles GET /reports/unit-economics?from=&to=&channel=
func (h *ReportHandler) UnitEconomics(c *gin.Context) {
	filter, ok := h.period(c)
	if !ok {
		return
	}

	result, err := h.reports.UnitEconomics(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// StockValuation handles GET /reports/stock-valuation
func (h *ReportHandler) StockValuation(c *gin.Context) {
	result, err := h.reports.StockValuation(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ExportStockValuation handles GET /reports/stock-valuation/export
func (h *ReportHandler) ExportStockValuation(c *gin.Context) {
	data, name, err := h.exporter.ExportStockValuation(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, reportapp.ContentTypeXLSX, data)
}

// RepricedSales handles GET /reports/repriced-sales?from=&to=
func (h *ReportHandler) RepricedSales(c *gin.Context) {
	filter, ok := h.period(c)
	if !ok {
		return
	}

	result, err := h.reprice.RepriceZeroCostSales(c.Request.Context(), filter.From, filter.To)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// period binds the shared from/to query. A bare "to" date covers that
// whole day.
func (h *ReportHandler) period(c *gin.Context) (reportapp.PeriodFilter, bool) {
	var filter reportapp.PeriodFilter
	if !h.bindQuery(c, &filter) {
		return filter, false
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		h.BadRequest(c, "to must not be before from")
		return filter, false
	}
	filter.To = endOfDay(filter.To)
	return filter, true
}
