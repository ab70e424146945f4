package csvimport

import (
	"errors"
	"fmt"
)

// Row error codes
const (
	ErrCodeRequiredField = "ERR_IMPORT_REQUIRED_FIELD"
	ErrCodeInvalidType   = "ERR_IMPORT_INVALID_TYPE"
	ErrCodeInvalidLength = "ERR_IMPORT_INVALID_LENGTH"
	ErrCodeInvalidRange  = "ERR_IMPORT_INVALID_RANGE"
	ErrCodeInvalidValue  = "ERR_IMPORT_INVALID_VALUE"
	ErrCodeDuplicate     = "ERR_IMPORT_DUPLICATE_IN_FILE"
	ErrCodeRejected      = "ERR_IMPORT_REJECTED"
)

var (
	ErrEmptyFile       = errors.New("CSV file is empty")
	ErrInvalidEncoding = errors.New("CSV file is not valid UTF-8")
	ErrMissingHeader   = errors.New("CSV file missing header row")
	ErrTooManyRows     = errors.New("CSV file has too many rows")
)

// RowError is a problem with one cell or one whole row
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ErrorCollection keeps the first max errors and counts the rest
type ErrorCollection struct {
	errors []RowError
	max    int
	total  int
}

// NewErrorCollection creates a collection; max <= 0 means 100
func NewErrorCollection(max int) *ErrorCollection {
	if max <= 0 {
		max = 100
	}
	return &ErrorCollection{max: max}
}

// Add records an error
func (c *ErrorCollection) Add(err RowError) {
	c.total++
	if len(c.errors) < c.max {
		c.errors = append(c.errors, err)
	}
}

// Errors returns the kept errors
func (c *ErrorCollection) Errors() []RowError {
	if c.errors == nil {
		return []RowError{}
	}
	return c.errors
}

// TotalCount includes errors past the cap
func (c *ErrorCollection) TotalCount() int {
	return c.total
}

// HasErrors reports whether anything was added
func (c *ErrorCollection) HasErrors() bool {
	return c.total > 0
}

// IsTruncated reports whether errors were dropped at the cap
func (c *ErrorCollection) IsTruncated() bool {
	return c.total > c.max
}
