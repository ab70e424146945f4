package persistence

import (
	"fmt"
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// PurchaseOrderSortFields contains allowed sort fields for purchase orders
var PurchaseOrderSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"supplier_ref": true,
	"status":       true,
	"ordered_at":   true,
	"expected_at":  true,
	"received_at":  true,
}

// LotSortFields contains allowed sort fields for lots
var LotSortFields = map[string]bool{
	"id":            true,
	"created_at":    true,
	"received_at":   true,
	"initial_qty":   true,
	"remaining_qty": true,
	"unit_cost":     true,
}

// SaleSortFields contains allowed sort fields for sales
var SaleSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"sold_at":    true,
	"channel":    true,
	"quantity":   true,
	"revenue":    true,
	"total_cogs": true,
	"status":     true,
}

// FinanceTransactionSortFields contains allowed sort fields for ledger entries
var FinanceTransactionSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"transaction_date": true,
	"amount":           true,
	"type":             true,
}

// filterColumns describes which columns a table exposes to shared.Filter
type filterColumns struct {
	// columns accepted by Equal, In and Contains
	columns map[string]bool
	// sortFields accepted by OrderBy
	sortFields   map[string]bool
	defaultOrder string
	// timeColumn is the column From/To range over
	timeColumn string
	// searchColumns are matched case-insensitively by Search
	searchColumns []string
}

// applyFilter applies predicates, ordering and pagination. Column names are
// checked against the whitelist so filter keys never reach SQL unvalidated.
func applyFilter(query *gorm.DB, filter shared.Filter, fields filterColumns) *gorm.DB {
	query = applyPredicates(query, filter, fields)

	orderBy := ValidateSortField(filter.OrderBy, fields.sortFields, "")
	if orderBy != "" {
		query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
	} else if fields.defaultOrder != "" {
		query = query.Order(fields.defaultOrder)
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}
	return query
}

// applyPredicates applies the filter without ordering or pagination, for counts
func applyPredicates(query *gorm.DB, filter shared.Filter, fields filterColumns) *gorm.DB {
	for col, v := range filter.Equal {
		if fields.columns[col] {
			query = query.Where(fmt.Sprintf("%s = ?", col), v)
		}
	}
	for col, vs := range filter.In {
		if fields.columns[col] && len(vs) > 0 {
			query = query.Where(fmt.Sprintf("%s IN ?", col), vs)
		}
	}
	for col, v := range filter.Contains {
		if fields.columns[col] && v != "" {
			query = query.Where(fmt.Sprintf("LOWER(%s) LIKE ?", col), likePattern(v))
		}
	}
	if filter.Search != "" && len(fields.searchColumns) > 0 {
		clauses := make([]string, len(fields.searchColumns))
		args := make([]any, len(fields.searchColumns))
		for i, col := range fields.searchColumns {
			clauses[i] = fmt.Sprintf("LOWER(%s) LIKE ?", col)
			args[i] = likePattern(filter.Search)
		}
		query = query.Where(strings.Join(clauses, " OR "), args...)
	}
	if fields.timeColumn != "" {
		if filter.From != nil {
			query = query.Where(fmt.Sprintf("%s >= ?", fields.timeColumn), *filter.From)
		}
		if filter.To != nil {
			query = query.Where(fmt.Sprintf("%s <= ?", fields.timeColumn), *filter.To)
		}
	}
	return query
}

func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}
