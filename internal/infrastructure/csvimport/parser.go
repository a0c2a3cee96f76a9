// Package csvimport reads spreadsheet exports saved as CSV and validates them
// row by row, collecting errors per row instead of failing on the first one.
package csvimport

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/erp/bff/internal/domain/shared"
)

const (
	// sniffSize is how much of the file is inspected for BOM, encoding and delimiter
	sniffSize = 4096
	utf8BOM   = "\xEF\xBB\xBF"
)

// Parser reads a CSV file with a header row. Header cells are folded
// (accents and case removed) and mapped to column names through aliases.
type Parser struct {
	reader  *csv.Reader
	aliases map[string]string
	columns []string
	index   map[string]int
	line    int
	rows    int
}

type parserOptions struct {
	delimiter rune
	aliases   map[string]string
}

// ParserOption configures a Parser
type ParserOption func(*parserOptions)

// WithDelimiter forces the field delimiter. Without it the delimiter is
// detected from the header line among comma, semicolon and tab.
func WithDelimiter(d rune) ParserOption {
	return func(o *parserOptions) {
		o.delimiter = d
	}
}

// WithAliases maps folded header texts ("CANTIDAD") to column names ("qty")
func WithAliases(aliases map[string]string) ParserOption {
	return func(o *parserOptions) {
		o.aliases = aliases
	}
}

// NewParser prepares r for reading. Files must be UTF-8; a leading BOM is dropped.
func NewParser(r io.Reader, opts ...ParserOption) (*Parser, error) {
	var o parserOptions
	for _, opt := range opts {
		opt(&o)
	}

	br := bufio.NewReaderSize(r, sniffSize*2)
	head, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if bytes.HasPrefix(head, []byte(utf8BOM)) {
		_, _ = br.Discard(len(utf8BOM))
		head = head[len(utf8BOM):]
	}
	if len(bytes.TrimSpace(head)) == 0 {
		return nil, ErrEmptyFile
	}
	// Peek only succeeds when the whole sniff window was filled
	if !validUTF8Prefix(head, err == nil) {
		return nil, ErrInvalidEncoding
	}

	if o.delimiter == 0 {
		o.delimiter = sniffDelimiter(head)
	}

	reader := csv.NewReader(br)
	reader.Comma = o.delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	return &Parser{
		reader:  reader,
		aliases: o.aliases,
		index:   make(map[string]int),
	}, nil
}

// validUTF8Prefix checks the sniffed bytes. A truncated sniff may end in the
// middle of a rune, so the last incomplete rune is ignored.
func validUTF8Prefix(b []byte, truncated bool) bool {
	if truncated {
		for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
			if utf8.Valid(b) {
				return true
			}
			b = b[:len(b)-1]
		}
	}
	return utf8.Valid(b)
}

// validRecord checks the cells past the sniff window, which NewParser never saw
func validRecord(record []string) bool {
	for _, cell := range record {
		if !utf8.ValidString(cell) {
			return false
		}
	}
	return true
}

// sniffDelimiter picks the most frequent candidate on the first line
func sniffDelimiter(head []byte) rune {
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// ParseHeader reads the header row
func (p *Parser) ParseHeader() error {
	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	p.line, _ = p.reader.FieldPos(0)
	if !validRecord(record) {
		return fmt.Errorf("line %d: %w", p.line, ErrInvalidEncoding)
	}
	p.columns = make([]string, len(record))
	empty := true
	for i, cell := range record {
		name := p.column(cell)
		p.columns[i] = name
		if name == "" {
			continue
		}
		empty = false
		if _, dup := p.index[name]; !dup {
			p.index[name] = i
		}
	}
	if empty {
		return ErrMissingHeader
	}
	return nil
}

// column turns a header cell into a column name
func (p *Parser) column(cell string) string {
	key := shared.FoldKey(cell)
	if key == "" {
		return ""
	}
	if name, ok := p.aliases[key]; ok {
		return name
	}
	return strings.ToLower(strings.ReplaceAll(key, " ", "_"))
}

// Columns returns the column names in file order
func (p *Parser) Columns() []string {
	return p.columns
}

// HasColumn reports whether the header has the column
func (p *Parser) HasColumn(name string) bool {
	_, ok := p.index[name]
	return ok
}

// Missing returns the columns of required absent from the header
func (p *Parser) Missing(required []string) []string {
	var missing []string
	for _, name := range required {
		if !p.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Row is one data row keyed by column name
type Row struct {
	Line   int
	Values map[string]string
}

// Get returns the trimmed cell of a column, "" when absent
func (r *Row) Get(column string) string {
	return r.Values[column]
}

// IsEmpty reports whether every cell is blank
func (r *Row) IsEmpty() bool {
	for _, v := range r.Values {
		if v != "" {
			return false
		}
	}
	return true
}

// ReadRow reads the next data row; io.EOF ends the file. Line is the file
// line the row starts on, so quoted multi-line cells do not shift it.
// A row that is not UTF-8 fails with ErrInvalidEncoding.
func (p *Parser) ReadRow() (*Row, error) {
	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			p.line = pe.StartLine
		}
		return nil, err
	}

	p.line, _ = p.reader.FieldPos(0)
	if !validRecord(record) {
		return nil, fmt.Errorf("line %d: %w", p.line, ErrInvalidEncoding)
	}
	p.rows++

	row := &Row{Line: p.line, Values: make(map[string]string, len(p.index))}
	for name, i := range p.index {
		if i < len(record) {
			row.Values[name] = strings.TrimSpace(record[i])
		} else {
			row.Values[name] = ""
		}
	}
	return row, nil
}

// Line returns the line of the last row read
func (p *Parser) Line() int {
	return p.line
}

// Rows returns how many data rows were read
func (p *Parser) Rows() int {
	return p.rows
}
