package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/bff/internal/domain/shared"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "notes", Doctype: "Note"}))

	err := r.Register(Definition{Name: "notes", Doctype: "ToDo"})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	err = r.Register(Definition{Name: "empty"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	def, err := r.Lookup("notes")
	require.NoError(t, err)
	assert.Equal(t, "Note", def.Doctype)

	_, err = r.Lookup("missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	names := make([]string, 0)
	for _, d := range r.Definitions() {
		names = append(names, d.Name)
		for _, f := range d.SearchFields {
			assert.True(t, d.Listed(f) || f == "description", "%s searches unlisted field %s", d.Name, f)
		}
	}
	assert.Equal(t, []string{
		"accounts", "cost-centers", "customers", "items", "payment-terms",
		"price-lists", "purchase-invoices", "sales-invoices", "suppliers", "warehouses",
	}, names)

	tests := []struct {
		name     string
		doctype  string
		scope    string
		readOnly bool
	}{
		{"customers", "Customer", "custom_company", false},
		{"suppliers", "Supplier", "custom_company", false},
		{"items", "Item", "", false},
		{"warehouses", "Warehouse", "company", true},
		{"accounts", "Account", "company", true},
		{"cost-centers", "Cost Center", "company", true},
		{"price-lists", "Price List", "", false},
		{"payment-terms", "Payment Terms Template", "", false},
		{"sales-invoices", "Sales Invoice", "company", true},
		{"purchase-invoices", "Purchase Invoice", "company", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := r.Lookup(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.doctype, def.Doctype)
			assert.Equal(t, tt.scope, def.ScopeField)
			assert.Equal(t, tt.readOnly, def.ReadOnly)
		})
	}
}
