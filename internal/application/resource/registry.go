// Package resource exposes ERPNext doctypes as table-driven CRUD resources
// scoped to the session company.
package resource

import (
	"slices"
	"sort"
	"sync"

	"github.com/erp/bff/internal/domain/shared"
)

// Definition maps a BFF resource name onto an ERPNext doctype
type Definition struct {
	Name    string
	Doctype string
	// ScopeField holds the owning company; empty means shared by all companies.
	ScopeField   string
	ListFields   []string
	SearchFields []string
	DefaultOrder string
	ReadOnly     bool
	// TaxIDField carries a CUIT that is validated and normalized on write.
	TaxIDField string
}

// Scoped reports whether documents belong to a company
func (d Definition) Scoped() bool {
	return d.ScopeField != ""
}

// Listed reports whether field is one of the list fields
func (d Definition) Listed(field string) bool {
	return field == "name" || slices.Contains(d.ListFields, field)
}

// Registry holds resource definitions by name
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition; names must be unique
func (r *Registry) Register(def Definition) error {
	if def.Name == "" || def.Doctype == "" {
		return shared.Errorf(shared.ErrInvalidInput, "resource needs a name and a doctype")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return shared.Errorf(shared.ErrAlreadyExists, "resource %q is already registered", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// MustRegister is Register that panics, for static tables
func (r *Registry) MustRegister(defs ...Definition) *Registry {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

// Lookup returns the definition for name
func (r *Registry) Lookup(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	if !ok {
		return Definition{}, shared.Errorf(shared.ErrNotFound, "unknown resource %q", name)
	}
	return def, nil
}

// Definitions returns every definition sorted by name
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DefaultRegistry returns the built-in resources
func DefaultRegistry() *Registry {
	return NewRegistry().MustRegister(
		Definition{
			Name:         "customers",
			Doctype:      "Customer",
			ScopeField:   "custom_company",
			ListFields:   []string{"customer_name", "customer_type", "customer_group", "territory", "tax_id", "custom_condicion_iva", "disabled"},
			SearchFields: []string{"name", "customer_name", "tax_id"},
			DefaultOrder: "customer_name asc",
			TaxIDField:   "tax_id",
		},
		Definition{
			Name:         "suppliers",
			Doctype:      "Supplier",
			ScopeField:   "custom_company",
			ListFields:   []string{"supplier_name", "supplier_type", "supplier_group", "country", "tax_id", "custom_condicion_iva", "disabled"},
			SearchFields: []string{"name", "supplier_name", "tax_id"},
			DefaultOrder: "supplier_name asc",
			TaxIDField:   "tax_id",
		},
		Definition{
			Name:         "items",
			Doctype:      "Item",
			ListFields:   []string{"item_code", "item_name", "item_group", "stock_uom", "is_stock_item", "disabled"},
			SearchFields: []string{"item_code", "item_name", "description"},
			DefaultOrder: "item_name asc",
		},
		Definition{
			Name:         "warehouses",
			Doctype:      "Warehouse",
			ScopeField:   "company",
			ListFields:   []string{"warehouse_name", "parent_warehouse", "is_group", "disabled", "company"},
			SearchFields: []string{"name", "warehouse_name"},
			DefaultOrder: "name asc",
			ReadOnly:     true,
		},
		Definition{
			Name:         "accounts",
			Doctype:      "Account",
			ScopeField:   "company",
			ListFields:   []string{"account_name", "account_number", "root_type", "account_type", "parent_account", "is_group", "company"},
			SearchFields: []string{"name", "account_name", "account_number"},
			DefaultOrder: "lft asc",
			ReadOnly:     true,
		},
		Definition{
			Name:         "cost-centers",
			Doctype:      "Cost Center",
			ScopeField:   "company",
			ListFields:   []string{"cost_center_name", "parent_cost_center", "is_group", "company"},
			SearchFields: []string{"name", "cost_center_name"},
			DefaultOrder: "lft asc",
			ReadOnly:     true,
		},
		Definition{
			Name:         "price-lists",
			Doctype:      "Price List",
			ListFields:   []string{"price_list_name", "currency", "buying", "selling", "enabled"},
			SearchFields: []string{"name", "price_list_name"},
			DefaultOrder: "name asc",
		},
		Definition{
			Name:         "payment-terms",
			Doctype:      "Payment Terms Template",
			ListFields:   []string{"template_name"},
			SearchFields: []string{"name", "template_name"},
			DefaultOrder: "name asc",
		},
		Definition{
			Name:         "sales-invoices",
			Doctype:      "Sales Invoice",
			ScopeField:   "company",
			ListFields:   []string{"customer", "customer_name", "posting_date", "grand_total", "outstanding_amount", "status", "docstatus", "is_return", "company"},
			SearchFields: []string{"name", "customer", "customer_name"},
			DefaultOrder: "posting_date desc",
			ReadOnly:     true,
		},
		Definition{
			Name:         "purchase-invoices",
			Doctype:      "Purchase Invoice",
			ScopeField:   "company",
			ListFields:   []string{"supplier", "supplier_name", "bill_no", "bill_date", "posting_date", "grand_total", "outstanding_amount", "status", "docstatus", "company"},
			SearchFields: []string{"name", "supplier", "supplier_name", "bill_no"},
			DefaultOrder: "posting_date desc",
			ReadOnly:     true,
		},
	)
}
