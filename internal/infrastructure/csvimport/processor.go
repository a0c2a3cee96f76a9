package csvimport

import (
	"context"
	"errors"
	"io"
)

// Result is a validated file. Rows holds the clean rows in file order.
type Result struct {
	TotalRows   int        `json:"total_rows"`
	ValidRows   int        `json:"valid_rows"`
	ErrorRows   int        `json:"error_rows"`
	Errors      []RowError `json:"errors"`
	TotalErrors int        `json:"total_errors"`
	Truncated   bool       `json:"truncated,omitempty"`
	Rows        []*Row     `json:"-"`
}

// IsValid reports whether every row passed
func (r *Result) IsValid() bool {
	return r.ErrorRows == 0
}

// Processor validates whole files
type Processor struct {
	maxRows    int
	maxErrors  int
	parserOpts []ParserOption
}

// ProcessorOption configures a Processor
type ProcessorOption func(*Processor)

// WithMaxRows stops reading after n data rows
func WithMaxRows(n int) ProcessorOption {
	return func(p *Processor) {
		p.maxRows = n
	}
}

// WithMaxErrors bounds the errors kept in the result
func WithMaxErrors(n int) ProcessorOption {
	return func(p *Processor) {
		p.maxErrors = n
	}
}

// WithParserOptions passes options to every parser
func WithParserOptions(opts ...ParserOption) ProcessorOption {
	return func(p *Processor) {
		p.parserOpts = append(p.parserOpts, opts...)
	}
}

// NewProcessor creates a processor; defaults are 10000 rows and 100 errors
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{maxRows: 10000, maxErrors: 100}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process reads r and validates each row against rules. File level problems
// (encoding, header, required columns, no rows) are returned as errors; row
// problems are collected in the result. uniqueKey names the columns that
// identify a row.
func (p *Processor) Process(ctx context.Context, r io.Reader, rules []FieldRule, uniqueKey ...string) (*Result, error) {
	parser, err := NewParser(r, p.parserOpts...)
	if err != nil {
		return nil, err
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, err
	}
	if missing := parser.Missing(RequiredColumns(rules)); len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	validator := NewValidator(rules, p.maxErrors, uniqueKey...)
	errs := validator.Errors()
	result := &Result{}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := parser.ReadRow()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, ErrInvalidEncoding) {
			return nil, err
		}
		if err != nil {
			errs.Add(RowError{Row: parser.Line(), Code: CodeMalformedRow, Message: err.Error()})
			result.TotalRows++
			result.ErrorRows++
			continue
		}
		if row.IsEmpty() {
			continue
		}

		if result.TotalRows >= p.maxRows {
			errs.Add(RowError{Row: row.Line, Code: CodeTooManyRows, Message: "row limit reached, the rest of the file was not read"})
			result.ErrorRows++
			break
		}
		result.TotalRows++

		if validator.ValidateRow(row) {
			result.ValidRows++
			result.Rows = append(result.Rows, row)
		} else {
			result.ErrorRows++
		}
	}

	if result.TotalRows == 0 && !errs.HasErrors() {
		return nil, ErrNoDataRows
	}

	result.Errors = errs.Errors()
	result.TotalErrors = errs.Total()
	result.Truncated = errs.Truncated()
	return result, nil
}
