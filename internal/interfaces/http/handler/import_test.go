package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	importapp "github.com/erp/ledger/internal/application/import"
	"github.com/erp/ledger/internal/domain/shared"
	csvimport "github.com/erp/ledger/internal/infrastructure/import"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const salesCSV = "channel,quantity\nshop,2\n"

func setupImportRouter() (*gin.Engine, *mockSaleImporter, *mockOpeningBalanceImporter) {
	sales, lots := new(mockSaleImporter), new(mockOpeningBalanceImporter)
	h := NewImportHandler(sales, lots)
	r := newTestEngine()
	r.POST("/sales/import", h.ImportSales)
	r.POST("/lots/opening-balance/import", h.ImportOpeningBalances)
	return r, sales, lots
}

func postCSV(r http.Handler, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestImportHandler_ImportSalesRawBody(t *testing.T) {
	r, sales, _ := setupImportRouter()
	sales.On("Import", mock.Anything, salesCSV, "clerk-3").Return(&importapp.SaleImportResult{
		ImportResult: importapp.ImportResult{Validated: true, TotalRows: 1, ImportedRows: 1},
		TotalCOGS:    decimal.NewFromInt(20),
	}, nil)

	w := postCSV(r, "/sales/import", salesCSV, map[string]string{"X-User-ID": "clerk-3"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.EqualValues(t, 1, data["imported_rows"])
	sales.AssertExpectations(t)
}

func TestImportHandler_ImportSalesMultipart(t *testing.T) {
	r, sales, _ := setupImportRouter()
	sales.On("Import", mock.Anything, salesCSV, "").Return(&importapp.SaleImportResult{
		ImportResult: importapp.ImportResult{Validated: true, TotalRows: 1, ImportedRows: 1},
	}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "orders.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte(salesCSV))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/sales/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	sales.AssertExpectations(t)
}

func TestImportHandler_RowFailuresAre422(t *testing.T) {
	r, _, lots := setupImportRouter()
	lots.On("Import", mock.Anything, mock.Anything).Return(&importapp.OpeningBalanceImportResult{
		ImportResult: importapp.ImportResult{
			TotalRows: 1,
			ErrorRows: 1,
			Errors:    []csvimport.RowError{{Row: 2, Column: "unit_cost", Code: csvimport.ErrCodeInvalidRange, Message: "must be at least 0"}},
		},
	}, nil)

	w := postCSV(r, "/lots/opening-balance/import", "product_id,quantity,unit_cost\nx,1,-1\n", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeImportRows, resp.Error.Code)
	errs := resp.Data.(map[string]any)["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "unit_cost", errs[0].(map[string]any)["column"])
}

func TestImportHandler_FileErrors(t *testing.T) {
	r, sales, _ := setupImportRouter()
	sales.On("Import", mock.Anything, "garbage", "").Return(nil, shared.NewInvalidInputError("missing columns: channel, quantity"))

	w := postCSV(r, "/sales/import", "garbage", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidInput, decodeResponse(t, w).Error.Code)

	w = postCSV(r, "/sales/import", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/sales/import", strings.NewReader("--x--"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
