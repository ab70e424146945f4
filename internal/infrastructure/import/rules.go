package csvimport

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FieldType is the expected type of a column
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeDecimal FieldType = "decimal"
	TypeDate    FieldType = "date"
	TypeUUID    FieldType = "uuid"
)

// DefaultDateLayouts are tried in order for TypeDate columns
var DefaultDateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// FieldRule constrains one column
type FieldRule struct {
	Column    string
	Required  bool
	Type      FieldType
	MaxLength int
	Min       *decimal.Decimal
	Positive  bool
	OneOf     []string
	Unique    bool
}

// FieldRuleBuilder builds a FieldRule fluently
type FieldRuleBuilder struct {
	rule FieldRule
}

// Field starts a rule for column; the type defaults to string
func Field(column string) *FieldRuleBuilder {
	return &FieldRuleBuilder{rule: FieldRule{Column: column, Type: TypeString}}
}

// Required rejects empty values
func (b *FieldRuleBuilder) Required() *FieldRuleBuilder {
	b.rule.Required = true
	return b
}

// Decimal expects a decimal number
func (b *FieldRuleBuilder) Decimal() *FieldRuleBuilder {
	b.rule.Type = TypeDecimal
	return b
}

// Date expects one of DefaultDateLayouts
func (b *FieldRuleBuilder) Date() *FieldRuleBuilder {
	b.rule.Type = TypeDate
	return b
}

// UUID expects a UUID
func (b *FieldRuleBuilder) UUID() *FieldRuleBuilder {
	b.rule.Type = TypeUUID
	return b
}

// Unique rejects a value already seen in an earlier row
func (b *FieldRuleBuilder) Unique() *FieldRuleBuilder {
	b.rule.Unique = true
	return b
}

// MaxLength limits the value's length in runes
func (b *FieldRuleBuilder) MaxLength(n int) *FieldRuleBuilder {
	b.rule.MaxLength = n
	return b
}

// Min sets an inclusive lower bound for decimal columns
func (b *FieldRuleBuilder) Min(v decimal.Decimal) *FieldRuleBuilder {
	b.rule.Min = &v
	return b
}

// Positive requires a decimal strictly above zero
func (b *FieldRuleBuilder) Positive() *FieldRuleBuilder {
	b.rule.Positive = true
	return b
}

// OneOf restricts the value to a fixed set
func (b *FieldRuleBuilder) OneOf(values ...string) *FieldRuleBuilder {
	b.rule.OneOf = values
	return b
}

// Build returns the rule
func (b *FieldRuleBuilder) Build() FieldRule {
	return b.rule
}

// Validator checks rows against rules and collects their errors. Unique
// columns are tracked across every row it sees.
type Validator struct {
	rules  []FieldRule
	seen   map[string]map[string]int
	errors *ErrorCollection
}

// NewValidator creates a validator keeping at most maxErrors errors
func NewValidator(rules []FieldRule, maxErrors int) *Validator {
	return &Validator{
		rules:  rules,
		seen:   make(map[string]map[string]int),
		errors: NewErrorCollection(maxErrors),
	}
}

// Errors returns the collected errors
func (v *Validator) Errors() *ErrorCollection {
	return v.errors
}

// ValidateRow reports whether every rule holds for row
func (v *Validator) ValidateRow(row *Row) bool {
	ok := true
	for _, rule := range v.rules {
		if err := v.check(rule, row); err != nil {
			v.errors.Add(*err)
			ok = false
		}
	}
	return ok
}

func (v *Validator) check(rule FieldRule, row *Row) *RowError {
	value := row.Get(rule.Column)
	fail := func(code, msg string) *RowError {
		return &RowError{Row: row.Line, Column: rule.Column, Code: code, Message: msg, Value: value}
	}

	if value == "" {
		if rule.Required {
			return fail(ErrCodeRequiredField, fmt.Sprintf("field '%s' is required", rule.Column))
		}
		return nil
	}
	if rule.MaxLength > 0 && len([]rune(value)) > rule.MaxLength {
		return fail(ErrCodeInvalidLength, fmt.Sprintf("length must be at most %d", rule.MaxLength))
	}

	switch rule.Type {
	case TypeDecimal:
		d, err := decimal.NewFromString(value)
		if err != nil {
			return fail(ErrCodeInvalidType, "expected a decimal number")
		}
		if rule.Positive && !d.IsPositive() {
			return fail(ErrCodeInvalidRange, "must be greater than zero")
		}
		if rule.Min != nil && d.LessThan(*rule.Min) {
			return fail(ErrCodeInvalidRange, fmt.Sprintf("must be at least %s", rule.Min))
		}
	case TypeDate:
		if _, err := ParseDate(value); err != nil {
			return fail(ErrCodeInvalidType, "expected a date (YYYY-MM-DD or RFC 3339)")
		}
	case TypeUUID:
		if _, err := uuid.Parse(value); err != nil {
			return fail(ErrCodeInvalidType, "expected a UUID")
		}
	}

	if len(rule.OneOf) > 0 && !slices.Contains(rule.OneOf, value) {
		return fail(ErrCodeInvalidValue, "must be one of "+strings.Join(rule.OneOf, ", "))
	}

	if rule.Unique {
		if v.seen[rule.Column] == nil {
			v.seen[rule.Column] = make(map[string]int)
		}
		if first, dup := v.seen[rule.Column][value]; dup {
			return fail(ErrCodeDuplicate, fmt.Sprintf("duplicate value (first seen in row %d)", first))
		}
		v.seen[rule.Column][value] = row.Line
	}
	return nil
}

// ParseDate parses value with DefaultDateLayouts; date-only values are UTC midnight
func ParseDate(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range DefaultDateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
