package erpnext

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Document is an ERPNext document as decoded from JSON. Numbers are kept as
// json.Number so currency values survive without float rounding.
type Document map[string]any

// Name returns the document name (primary key)
func (d Document) Name() string {
	return d.String("name")
}

// String returns the field as a string; numbers are formatted, nil is ""
func (d Document) String(key string) string {
	switch v := d[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the field as an int; unparsable values are 0
func (d Document) Int(key string) int {
	switch v := d[key].(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
		if f, err := v.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// Decimal returns the field as a decimal; unparsable values are zero
func (d Document) Decimal(key string) decimal.Decimal {
	switch v := d[key].(type) {
	case json.Number:
		if dec, err := decimal.NewFromString(v.String()); err == nil {
			return dec
		}
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case string:
		if dec, err := decimal.NewFromString(v); err == nil {
			return dec
		}
	case decimal.Decimal:
		return v
	}
	return decimal.Zero
}

// Bool reads Frappe check fields, which arrive as 0/1
func (d Document) Bool(key string) bool {
	switch v := d[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return d.Int(key) != 0
	}
}

// Children returns a child table
func (d Document) Children(key string) []Document {
	rows, ok := d[key].([]any)
	if !ok {
		if docs, ok := d[key].([]Document); ok {
			return docs
		}
		return nil
	}
	out := make([]Document, 0, len(rows))
	for _, r := range rows {
		if m, ok := r.(map[string]any); ok {
			out = append(out, Document(m))
		}
	}
	return out
}

// decodeEnvelope decodes the value under key ("data" or "message") into dest
func decodeEnvelope(body []byte, key string, dest any) error {
	var env map[string]json.RawMessage
	if err := decodeJSON(body, &env); err != nil {
		return &Error{Message: "malformed JSON body", kind: ErrInvalidResponse}
	}
	raw, ok := env[key]
	if !ok {
		return &Error{Message: fmt.Sprintf("missing %q in response", key), kind: ErrInvalidResponse}
	}
	if dest == nil {
		return nil
	}
	if err := decodeJSON(raw, dest); err != nil {
		return &Error{Message: fmt.Sprintf("unexpected %q: %v", key, err), kind: ErrInvalidResponse}
	}
	return nil
}

func decodeJSON(b []byte, dest any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(dest)
}
