package shared

import "time"

// Filter represents query filter options.
//
// Equal, In and Contains are keyed by column; each repository whitelists the
// columns it accepts.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
	Equal    map[string]any
	In       map[string][]any
	Contains map[string]string // case-insensitive substring
	From     *time.Time
	To       *time.Time
}

// DefaultFilter returns a filter with default values
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: 20,
		OrderBy:  "created_at",
		OrderDir: "desc",
		Equal:    make(map[string]any),
		In:       make(map[string][]any),
		Contains: make(map[string]string),
	}
}

// WithEqual adds an equality predicate
func (f Filter) WithEqual(column string, value any) Filter {
	if f.Equal == nil {
		f.Equal = make(map[string]any)
	}
	f.Equal[column] = value
	return f
}

// WithRange sets an inclusive time range
func (f Filter) WithRange(from, to *time.Time) Filter {
	f.From = from
	f.To = to
	return f
}

// Unpaged drops pagination, used by reports that need every row
func (f Filter) Unpaged() Filter {
	f.Page = 0
	f.PageSize = 0
	return f
}

// Paginated represents a paginated result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated creates a new paginated result
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(total) / pageSize
		if int(total)%pageSize > 0 {
			totalPages++
		}
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
