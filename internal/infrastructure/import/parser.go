// Package csvimport reads channel exports and stock sheets for bulk ledger
// imports: header-keyed rows, per-column rules and row-level error reports.
package csvimport

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const peekSize = 4096

// Parser reads a CSV file whose first line names the columns
type Parser struct {
	reader  *csv.Reader
	headers []string
	index   map[string]int
	line    int
	maxRows int
	rows    int
}

// ParserOption configures a Parser
type ParserOption func(*Parser, *csv.Reader)

// WithDelimiter sets the field delimiter (default comma)
func WithDelimiter(d rune) ParserOption {
	return func(_ *Parser, r *csv.Reader) {
		r.Comma = d
	}
}

// WithMaxRows caps the number of data rows; zero means no limit
func WithMaxRows(n int) ParserOption {
	return func(p *Parser, _ *csv.Reader) {
		p.maxRows = n
	}
}

// NewParser strips a UTF-8 BOM, checks the encoding and reads the header.
// Header names are trimmed and lower-cased.
func NewParser(r io.Reader, opts ...ParserOption) (*Parser, error) {
	buf := bufio.NewReader(r)

	head, err := buf.Peek(peekSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrEmptyFile
	}
	if !utf8.Valid(trimPartialRune(head, len(head) == peekSize)) {
		return nil, ErrInvalidEncoding
	}
	if len(head) >= 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		_, _ = buf.Discard(3)
	}

	cr := csv.NewReader(buf)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	p := &Parser{reader: cr, index: make(map[string]int)}
	for _, opt := range opts {
		opt(p, cr)
	}

	record, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	p.line = 1
	for i, h := range record {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "" {
			continue
		}
		p.headers = append(p.headers, name)
		p.index[name] = i
	}
	if len(p.headers) == 0 {
		return nil, ErrMissingHeader
	}
	return p, nil
}

// a full peek may end inside a multi-byte rune
func trimPartialRune(b []byte, full bool) []byte {
	if !full {
		return b
	}
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		start := len(b) - i
		if utf8.RuneStart(b[start]) {
			if !utf8.FullRune(b[start:]) {
				return b[:start]
			}
			return b
		}
	}
	return b
}

// Headers returns the column names in file order
func (p *Parser) Headers() []string {
	return p.headers
}

// Missing returns the required columns the header does not name
func (p *Parser) Missing(required ...string) []string {
	var missing []string
	for _, h := range required {
		if _, ok := p.index[h]; !ok {
			missing = append(missing, h)
		}
	}
	return missing
}

// Row is one data line keyed by column name
type Row struct {
	Line int
	Data map[string]string
}

// Get returns the trimmed value of a column, or "" when absent
func (r *Row) Get(column string) string {
	return r.Data[column]
}

// IsEmpty reports whether every cell is blank
func (r *Row) IsEmpty() bool {
	for _, v := range r.Data {
		if v != "" {
			return false
		}
	}
	return true
}

// Next returns the next data row, or io.EOF
func (p *Parser) Next() (*Row, error) {
	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	p.line++
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", p.line, err)
	}
	p.rows++
	if p.maxRows > 0 && p.rows > p.maxRows {
		return nil, ErrTooManyRows
	}

	row := &Row{Line: p.line, Data: make(map[string]string, len(p.headers))}
	for name, i := range p.index {
		if i < len(record) {
			row.Data[name] = strings.TrimSpace(record[i])
		} else {
			row.Data[name] = ""
		}
	}
	return row, nil
}

// ReadAll returns every non-blank data row
func (p *Parser) ReadAll() ([]*Row, error) {
	var rows []*Row
	for {
		row, err := p.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		if row.IsEmpty() {
			continue
		}
		rows = append(rows, row)
	}
}
