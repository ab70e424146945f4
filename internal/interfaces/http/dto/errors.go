package dto

import (
	"net/http"

	"github.com/erp/ledger/internal/domain/shared"
)

// Error codes returned on the wire. Format: ERR_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Request error codes
const (
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeTooLarge     = "ERR_REQUEST_TOO_LARGE"
	ErrCodeImportRows   = "ERR_IMPORT_ROWS_INVALID"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeDuplicateRequest    = "ERR_DUPLICATE_REQUEST"
)

// Ledger rule error codes
const (
	// ErrCodeInvalidStateTransition is used when an entity cannot move to the requested state
	ErrCodeInvalidStateTransition = "ERR_INVALID_STATE_TRANSITION"
	// ErrCodePreconditionViolation is used when dependent records block an operation
	ErrCodePreconditionViolation = "ERR_PRECONDITION_VIOLATION"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,
	ErrCodeImportRows:   http.StatusUnprocessableEntity,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeDuplicateRequest:    http.StatusConflict,

	ErrCodeInvalidStateTransition: http.StatusUnprocessableEntity,
	ErrCodePreconditionViolation:  http.StatusConflict,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainCodes maps shared.DomainError codes to wire codes
var domainCodes = map[string]string{
	shared.CodeNotFound:               ErrCodeNotFound,
	shared.CodeAlreadyExists:          ErrCodeAlreadyExists,
	shared.CodeInvalidInput:           ErrCodeInvalidInput,
	shared.CodeInvalidStateTransition: ErrCodeInvalidStateTransition,
	shared.CodePreconditionViolation:  ErrCodePreconditionViolation,
	shared.CodeConcurrencyConflict:    ErrCodeConcurrencyConflict,
}

// NormalizeErrorCode converts a domain error code to the wire format.
// Codes already in wire format, and unknown codes, pass through.
func NormalizeErrorCode(code string) string {
	if wire, ok := domainCodes[code]; ok {
		return wire
	}
	return code
}
