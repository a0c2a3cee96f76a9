package csvimport

import (
	"errors"
	"fmt"
	"strings"
)

// Row error codes
const (
	CodeRequired     = "REQUIRED"
	CodeInvalidValue = "INVALID_VALUE"
	CodeOutOfRange   = "OUT_OF_RANGE"
	CodeTooLong      = "TOO_LONG"
	CodeDuplicate    = "DUPLICATE"
	CodeMalformedRow = "MALFORMED_ROW"
	CodeTooManyRows  = "TOO_MANY_ROWS"
)

// File level errors
var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrInvalidEncoding = errors.New("file is not UTF-8 text")
	ErrMissingHeader   = errors.New("file has no header row")
	ErrNoDataRows      = errors.New("file has no data rows")
)

// MissingColumnsError reports required columns absent from the header
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing columns: " + strings.Join(e.Columns, ", ")
}

// RowError is a problem with one cell or row
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column %s: %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ErrorCollection keeps the first max errors and counts the rest
type ErrorCollection struct {
	errors []RowError
	max    int
	total  int
}

// NewErrorCollection creates a collection; max <= 0 keeps 100
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

// Errors returns the kept errors, never nil
func (c *ErrorCollection) Errors() []RowError {
	if c.errors == nil {
		return []RowError{}
	}
	return c.errors
}

// Total counts every error added, kept or not
func (c *ErrorCollection) Total() int {
	return c.total
}

// HasErrors reports whether anything was added
func (c *ErrorCollection) HasErrors() bool {
	return c.total > 0
}

// Truncated reports whether errors were dropped
func (c *ErrorCollection) Truncated() bool {
	return c.total > len(c.errors)
}
