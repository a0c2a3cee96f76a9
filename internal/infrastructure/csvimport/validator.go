package csvimport

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/erp/bff/internal/domain/shared"
)

// FieldType is the expected content of a column
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeDecimal FieldType = "decimal"
)

// FieldRule validates one column
type FieldRule struct {
	Column    string
	Type      FieldType
	Required  bool
	MaxLength int
	MinValue  *decimal.Decimal
	MaxValue  *decimal.Decimal
}

// FieldRuleBuilder builds a FieldRule
type FieldRuleBuilder struct {
	rule FieldRule
}

// Field starts a rule for column
func Field(column string) *FieldRuleBuilder {
	return &FieldRuleBuilder{rule: FieldRule{Column: column, Type: TypeString}}
}

// Required rejects blank cells
func (b *FieldRuleBuilder) Required() *FieldRuleBuilder {
	b.rule.Required = true
	return b
}

// Decimal expects a number; see ParseDecimal for accepted formats
func (b *FieldRuleBuilder) Decimal() *FieldRuleBuilder {
	b.rule.Type = TypeDecimal
	return b
}

// MaxLength bounds the cell length in characters
func (b *FieldRuleBuilder) MaxLength(n int) *FieldRuleBuilder {
	b.rule.MaxLength = n
	return b
}

// Min sets the lowest accepted number
func (b *FieldRuleBuilder) Min(v decimal.Decimal) *FieldRuleBuilder {
	b.rule.MinValue = &v
	return b
}

// Max sets the highest accepted number
func (b *FieldRuleBuilder) Max(v decimal.Decimal) *FieldRuleBuilder {
	b.rule.MaxValue = &v
	return b
}

// Build returns the rule
func (b *FieldRuleBuilder) Build() FieldRule {
	return b.rule
}

// Columns returns the column names of rules
func Columns(rules []FieldRule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Column
	}
	return out
}

// RequiredColumns returns the columns that must be present in the header
func RequiredColumns(rules []FieldRule) []string {
	var out []string
	for _, r := range rules {
		if r.Required {
			out = append(out, r.Column)
		}
	}
	return out
}

// Validator checks rows against rules in rule order. With a unique key, rows
// repeating the folded key of an earlier row are rejected.
type Validator struct {
	rules  []FieldRule
	key    []string
	seen   map[string]int
	errors *ErrorCollection
}

// NewValidator creates a validator collecting up to maxErrors errors
func NewValidator(rules []FieldRule, maxErrors int, uniqueKey ...string) *Validator {
	return &Validator{
		rules:  rules,
		key:    uniqueKey,
		seen:   make(map[string]int),
		errors: NewErrorCollection(maxErrors),
	}
}

// ValidateRow validates every rule and reports whether the row is clean
func (v *Validator) ValidateRow(row *Row) bool {
	ok := true
	for _, rule := range v.rules {
		if !v.validateField(row, rule) {
			ok = false
		}
	}
	if ok && len(v.key) > 0 {
		ok = v.validateUnique(row)
	}
	return ok
}

func (v *Validator) validateField(row *Row, rule FieldRule) bool {
	value := row.Get(rule.Column)
	if value == "" {
		if rule.Required {
			v.errors.Add(RowError{Row: row.Line, Column: rule.Column, Code: CodeRequired,
				Message: rule.Column + " is required"})
			return false
		}
		return true
	}

	if rule.MaxLength > 0 && utf8.RuneCountInString(value) > rule.MaxLength {
		v.errors.Add(RowError{Row: row.Line, Column: rule.Column, Code: CodeTooLong,
			Message: fmt.Sprintf("at most %d characters", rule.MaxLength), Value: value})
		return false
	}

	if rule.Type == TypeDecimal {
		d, err := ParseDecimal(value)
		if err != nil {
			v.errors.Add(RowError{Row: row.Line, Column: rule.Column, Code: CodeInvalidValue,
				Message: "not a number", Value: value})
			return false
		}
		if rule.MinValue != nil && d.LessThan(*rule.MinValue) {
			v.errors.Add(RowError{Row: row.Line, Column: rule.Column, Code: CodeOutOfRange,
				Message: "must be at least " + rule.MinValue.String(), Value: value})
			return false
		}
		if rule.MaxValue != nil && d.GreaterThan(*rule.MaxValue) {
			v.errors.Add(RowError{Row: row.Line, Column: rule.Column, Code: CodeOutOfRange,
				Message: "must be at most " + rule.MaxValue.String(), Value: value})
			return false
		}
	}
	return true
}

func (v *Validator) validateUnique(row *Row) bool {
	parts := make([]string, len(v.key))
	for i, c := range v.key {
		parts[i] = shared.FoldKey(row.Get(c))
	}
	key := strings.Join(parts, "\x00")
	if first, dup := v.seen[key]; dup {
		v.errors.Add(RowError{Row: row.Line, Code: CodeDuplicate,
			Message: fmt.Sprintf("repeats row %d", first), Value: strings.Join(parts, " / ")})
		return false
	}
	v.seen[key] = row.Line
	return true
}

// Errors returns the collected errors
func (v *Validator) Errors() *ErrorCollection {
	return v.errors
}

// ParseDecimal reads numbers as typed in spreadsheets: "1234.5", "1234,5",
// "1.234,50" and "1,234.50". When both separators appear the last one is the
// decimal mark; a lone comma is always decimal.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return decimal.Zero, fmt.Errorf("invalid number %q", s)
		}
		s = strings.Replace(s, ",", ".", 1)
	}
	return decimal.NewFromString(s)
}
