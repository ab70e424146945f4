// Package importapp loads channel sale exports and opening stock sheets from
// CSV into the ledger. Every row goes through the same workflow a single API
// call would use, so locking, costing and finance entries are unchanged.
package importapp

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	csvimport "github.com/erp/ledger/internal/infrastructure/import"
)

// Default limits for one upload
const (
	DefaultMaxRows   = 5000
	DefaultMaxErrors = 100
)

// Options bounds an import
type Options struct {
	MaxRows   int
	MaxErrors int
}

func (o Options) withDefaults() Options {
	if o.MaxRows <= 0 {
		o.MaxRows = DefaultMaxRows
	}
	if o.MaxErrors <= 0 {
		o.MaxErrors = DefaultMaxErrors
	}
	return o
}

// ImportResult reports what happened to each row of an upload. When any row
// fails validation nothing is imported and Validated is false.
type ImportResult struct {
	Validated     bool                 `json:"validated"`
	TotalRows     int                  `json:"total_rows"`
	ImportedRows  int                  `json:"imported_rows"`
	DuplicateRows int                  `json:"duplicate_rows"`
	ErrorRows     int                  `json:"error_rows"`
	Errors        []csvimport.RowError `json:"errors"`
	IsTruncated   bool                 `json:"is_truncated,omitempty"`
	TotalErrors   int                  `json:"total_errors,omitempty"`
}

func (r *ImportResult) setErrors(c *csvimport.ErrorCollection) {
	r.Errors = c.Errors()
	r.IsTruncated = c.IsTruncated()
	r.TotalErrors = c.TotalCount()
}

// readRows parses the upload and checks the header. File-level problems are
// invalid input; row-level problems are left to the validator.
func readRows(r io.Reader, opts Options, required ...string) ([]*csvimport.Row, error) {
	parser, err := csvimport.NewParser(r, csvimport.WithMaxRows(opts.MaxRows))
	if err != nil {
		return nil, fileError(err)
	}
	if missing := parser.Missing(required...); len(missing) > 0 {
		return nil, shared.NewInvalidInputError("missing columns: " + strings.Join(missing, ", "))
	}
	rows, err := parser.ReadAll()
	if err != nil {
		return nil, fileError(err)
	}
	if len(rows) == 0 {
		return nil, shared.NewInvalidInputError("CSV file contains no data rows")
	}
	return rows, nil
}

func fileError(err error) error {
	switch {
	case errors.Is(err, csvimport.ErrTooManyRows),
		errors.Is(err, csvimport.ErrEmptyFile),
		errors.Is(err, csvimport.ErrInvalidEncoding),
		errors.Is(err, csvimport.ErrMissingHeader):
		return shared.NewInvalidInputError(err.Error())
	}
	return shared.NewInvalidInputError(fmt.Sprintf("unreadable CSV: %v", err))
}

// validate runs every row through the rules, plus an optional row check for
// constraints that span columns
func validate(rows []*csvimport.Row, rules []csvimport.FieldRule, maxErrors int, extra func(*csvimport.Row) *csvimport.RowError) (*csvimport.ErrorCollection, int) {
	v := csvimport.NewValidator(rules, maxErrors)
	bad := 0
	for _, row := range rows {
		ok := v.ValidateRow(row)
		if ok && extra != nil {
			if e := extra(row); e != nil {
				v.Errors().Add(*e)
				ok = false
			}
		}
		if !ok {
			bad++
		}
	}
	return v.Errors(), bad
}

// rejected turns a workflow error into a row error
func rejected(line int, err error) csvimport.RowError {
	msg := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) {
		msg = de.Message
	}
	return csvimport.RowError{Row: line, Code: csvimport.ErrCodeRejected, Message: msg}
}

func optionalDecimalString(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
