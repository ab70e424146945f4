package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	importapp "github.com/erp/ledger/internal/application/import"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// SaleImporter imports a channel sale export
type SaleImporter interface {
	Import(ctx context.Context, r io.Reader, recordedBy string) (*importapp.SaleImportResult, error)
}

// OpeningBalanceImporter imports a stock sheet
type OpeningBalanceImporter interface {
	Import(ctx context.Context, r io.Reader) (*importapp.OpeningBalanceImportResult, error)
}

// ImportHandler handles CSV bulk uploads
type ImportHandler struct {
	BaseHandler
	sales SaleImporter
	lots  OpeningBalanceImporter
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(sales SaleImporter, lots OpeningBalanceImporter) *ImportHandler {
	return &ImportHandler{sales: sales, lots: lots}
}

// ImportSales handles POST /sales/import
func (h *ImportHandler) ImportSales(c *gin.Context) {
	file, ok := h.upload(c)
	if !ok {
		return
	}
	defer file.Close()

	result, err := h.sales.Import(c.Request.Context(), file, middleware.GetUserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.respond(c, result, result.Validated)
}

// ImportOpeningBalances handles POST /lots/opening-balance/import
func (h *ImportHandler) ImportOpeningBalances(c *gin.Context) {
	file, ok := h.upload(c)
	if !ok {
		return
	}
	defer file.Close()

	result, err := h.lots.Import(c.Request.Context(), file)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.respond(c, result, result.Validated)
}

// upload returns the multipart "file" part, or the raw body for text/csv
func (h *ImportHandler) upload(c *gin.Context) (io.ReadCloser, bool) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			h.BadRequest(c, "multipart upload needs a 'file' part")
			return nil, false
		}
		f, err := header.Open()
		if err != nil {
			h.BadRequest(c, "cannot read uploaded file")
			return nil, false
		}
		return f, true
	}
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		h.BadRequest(c, "request body is empty")
		return nil, false
	}
	return c.Request.Body, true
}

// respond answers 200 with the row report, or 422 with the same report when
// the file failed validation and nothing was imported
func (h *ImportHandler) respond(c *gin.Context, result any, validated bool) {
	if validated {
		h.Success(c, result)
		return
	}
	resp := dto.NewErrorResponseWithRequestID(dto.ErrCodeImportRows, "CSV rows failed validation; nothing was imported", getRequestID(c))
	resp.Data = result
	c.JSON(http.StatusUnprocessableEntity, resp)
}
