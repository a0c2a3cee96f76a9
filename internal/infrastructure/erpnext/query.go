package erpnext

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Filter operators accepted by Frappe
const (
	OpEquals      = "="
	OpNotEquals   = "!="
	OpLike        = "like"
	OpNotLike     = "not like"
	OpIn          = "in"
	OpNotIn       = "not in"
	OpLess        = "<"
	OpGreater     = ">"
	OpLessOrEq    = "<="
	OpGreaterOrEq = ">="
	OpBetween     = "between"
	OpIs          = "is"
)

// Filter is one [field, operator, value] condition
type Filter struct {
	Field    string
	Operator string
	Value    any
}

// Eq is shorthand for an equality filter
func Eq(field string, value any) Filter {
	return Filter{Field: field, Operator: OpEquals, Value: value}
}

// MarshalJSON encodes the Frappe array form
func (f Filter) MarshalJSON() ([]byte, error) {
	op := f.Operator
	if op == "" {
		op = OpEquals
	}
	return json.Marshal([]any{f.Field, op, f.Value})
}

// ListQuery parameterizes GetList
type ListQuery struct {
	Fields     []string
	Filters    []Filter
	OrFilters  []Filter
	OrderBy    string
	Start      int
	PageLength int // 0 keeps the upstream default
}

func (q ListQuery) values() (url.Values, error) {
	v := url.Values{}
	if len(q.Fields) > 0 {
		if err := setJSON(v, "fields", q.Fields); err != nil {
			return nil, err
		}
	}
	if err := setFilters(v, "filters", q.Filters); err != nil {
		return nil, err
	}
	if err := setFilters(v, "or_filters", q.OrFilters); err != nil {
		return nil, err
	}
	if q.OrderBy != "" {
		v.Set("order_by", q.OrderBy)
	}
	if q.Start > 0 {
		v.Set("limit_start", strconv.Itoa(q.Start))
	}
	if q.PageLength > 0 {
		v.Set("limit_page_length", strconv.Itoa(q.PageLength))
	}
	return v, nil
}

func setFilters(v url.Values, key string, filters []Filter) error {
	if len(filters) == 0 {
		return nil
	}
	return setJSON(v, key, filters)
}

func setJSON(v url.Values, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("erpnext: encode %s: %w", key, err)
	}
	v.Set(key, string(b))
	return nil
}
