package dto

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorStatus(t *testing.T) {
	tests := []struct {
		err      error
		wantCode string
		status   int
	}{
		{shared.NewNotFoundError("sale", "s-1"), ErrCodeNotFound, http.StatusNotFound},
		{shared.NewInvalidTransitionError("purchase_order", "cancelled", "received"), ErrCodeInvalidStateTransition, http.StatusUnprocessableEntity},
		{shared.NewPreconditionError("unreceive", map[string]int64{"p-1": 2}), ErrCodePreconditionViolation, http.StatusConflict},
		{shared.NewInvalidInputError("quantity must be positive"), ErrCodeInvalidInput, http.StatusBadRequest},
		{shared.ErrAlreadyExists, ErrCodeAlreadyExists, http.StatusConflict},
		{fmt.Errorf("save sale: %w", shared.ErrConcurrencyConflict), ErrCodeConcurrencyConflict, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			var de *shared.DomainError
			require.ErrorAs(t, tt.err, &de)
			code := NormalizeErrorCode(de.Code)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.status, GetHTTPStatus(code))
		})
	}
}

func TestGetHTTPStatus_Unknown(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus("SOMETHING_ELSE"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, GetHTTPStatus(ErrCodeTooLarge))
}

func TestNormalizeErrorCode_PassThrough(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, NormalizeErrorCode(ErrCodeNotFound))
	assert.Equal(t, "CUSTOM", NormalizeErrorCode("CUSTOM"))
}

func TestEveryWireCodeHasStatus(t *testing.T) {
	for domain, wire := range domainCodes {
		_, ok := ErrorCodeHTTPStatus[wire]
		assert.True(t, ok, "%s -> %s has no status", domain, wire)
	}
}

func TestNewDomainErrorResponse(t *testing.T) {
	err := shared.NewInvalidTransitionError("sale", "returned", "returned")
	resp := NewDomainErrorResponse(err, "req-1")

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidStateTransition, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Equal(t, "returned", resp.Error.Details["current"])

	data, mErr := json.Marshal(resp)
	require.NoError(t, mErr)
	assert.Contains(t, string(data), `"details":{`)
	assert.NotContains(t, string(data), `"fields"`)
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-2", []ValidationDetail{
		{Field: "quantity", Message: "This field is required"},
	})

	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	require.Len(t, resp.Error.Fields, 1)
	assert.Equal(t, "quantity", resp.Error.Fields[0].Field)
}

func TestErrorResponseTimestamp(t *testing.T) {
	before := time.Now()
	resp := NewErrorResponse(shared.CodeNotFound, "missing")
	after := time.Now()

	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.False(t, resp.Error.Timestamp.Before(before))
	assert.False(t, resp.Error.Timestamp.After(after))
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	tests := []struct {
		total         int64
		pageSize      int
		expectedPages int
		expectedSize  int
	}{
		{100, 10, 10, 10},
		{101, 10, 11, 10},
		{0, 10, 0, 10},
		{100, 0, 5, 20},
		{100, -1, 5, 20},
	}

	for _, tt := range tests {
		resp := NewSuccessResponseWithMeta(nil, tt.total, 1, tt.pageSize)
		assert.Equal(t, tt.expectedPages, resp.Meta.TotalPages)
		assert.Equal(t, tt.expectedSize, resp.Meta.PageSize)
	}
}

func TestNewPaginatedResponse(t *testing.T) {
	resp := NewPaginatedResponse(shared.NewPaginated([]string{"a", "b"}, 12, 2, 5))

	assert.True(t, resp.Success)
	assert.Equal(t, []string{"a", "b"}, resp.Data)
	assert.Equal(t, 3, resp.Meta.TotalPages)
	assert.Equal(t, 2, resp.Meta.Page)
}
