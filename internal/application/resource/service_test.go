package resource

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/infrastructure/erpnext"
	"github.com/erp/bff/internal/infrastructure/erpnext/erpnexttest"
)

func setup(t *testing.T) (*erpnexttest.Server, *Service, *identity.Session) {
	t.Helper()
	srv := erpnexttest.NewServer(t)
	srv.Seed("Customer",
		erpnext.Document{"name": "CUST-1", "customer_name": "Lopez Hnos", "tax_id": "20123456786", "custom_company": "Acme SA"},
		erpnext.Document{"name": "CUST-2", "customer_name": "Garcia SRL", "tax_id": "30712345671", "custom_company": "Acme SA", "territory": "Cordoba"},
		erpnext.Document{"name": "CUST-3", "customer_name": "Lopez Norte", "custom_company": "Beta SA"},
		erpnext.Document{"name": "CUST-4", "customer_name": "Alvarez", "custom_company": "Acme SA", "territory": "Cordoba"},
	)
	srv.Seed("Item",
		erpnext.Document{"name": "SKU-1", "item_code": "SKU-1", "item_name": "Yerba"},
	)
	srv.Seed("Warehouse",
		erpnext.Document{"name": "Stores - AS", "company": "Acme SA"},
	)
	sid := srv.Session("jane@acme.com")

	session, err := identity.NewSession("jane@acme.com", "Jane", sid, []string{"Acme SA", "Beta SA"}, time.Hour, time.Now())
	require.NoError(t, err)
	return srv, NewService(srv.Client(t), DefaultRegistry()), session
}

func names(docs []erpnext.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Name())
	}
	return out
}

func TestService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("scoped to the session company", func(t *testing.T) {
		srv, svc, session := setup(t)

		res, err := svc.List(ctx, session, "customers", ListParams{})
		require.NoError(t, err)
		assert.Equal(t, []string{"CUST-4", "CUST-2", "CUST-1"}, names(res.Items))
		assert.Equal(t, 3, res.Total)
		assert.Equal(t, 1, res.Page)
		assert.Equal(t, DefaultPageSize, res.PageSize)

		reqs := srv.Requests("/api/resource/Customer")
		require.NotEmpty(t, reqs)
		var filters [][]any
		require.NoError(t, json.Unmarshal([]byte(reqs[0].Query.Get("filters")), &filters))
		assert.Equal(t, [][]any{{"custom_company", "=", "Acme SA"}}, filters)
	})

	t.Run("search uses or filters", func(t *testing.T) {
		_, svc, session := setup(t)
		res, err := svc.List(ctx, session, "customers", ListParams{Search: "lopez"})
		require.NoError(t, err)
		assert.Equal(t, []string{"CUST-1"}, names(res.Items))
		assert.Equal(t, 1, res.Total)
	})

	t.Run("equality filters and paging", func(t *testing.T) {
		_, svc, session := setup(t)
		res, err := svc.List(ctx, session, "customers", ListParams{
			Filters:  map[string]string{"territory": "Cordoba"},
			OrderBy:  "name desc",
			Page:     2,
			PageSize: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"CUST-2"}, names(res.Items))
		assert.Equal(t, 2, res.Total)
	})

	t.Run("unscoped resource", func(t *testing.T) {
		_, svc, session := setup(t)
		res, err := svc.List(ctx, session, "items", ListParams{})
		require.NoError(t, err)
		assert.Equal(t, []string{"SKU-1"}, names(res.Items))
	})

	tests := []struct {
		name     string
		resource string
		params   ListParams
		want     *shared.DomainError
	}{
		{"unknown resource", "widgets", ListParams{}, shared.ErrNotFound},
		{"filter on unlisted field", "customers", ListParams{Filters: map[string]string{"credit_limit": "0"}}, shared.ErrInvalidInput},
		{"page size too large", "customers", ListParams{PageSize: MaxPageSize + 1}, shared.ErrInvalidInput},
		{"negative page", "customers", ListParams{Page: -1}, shared.ErrInvalidInput},
		{"order by unlisted field", "customers", ListParams{OrderBy: "credit_limit"}, shared.ErrInvalidInput},
		{"bad order direction", "customers", ListParams{OrderBy: "name sideways"}, shared.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, svc, session := setup(t)
			_, err := svc.List(ctx, session, tt.resource, tt.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_Get(t *testing.T) {
	ctx := context.Background()
	_, svc, session := setup(t)

	doc, err := svc.Get(ctx, session, "customers", "CUST-1")
	require.NoError(t, err)
	assert.Equal(t, "Lopez Hnos", doc.String("customer_name"))

	_, err = svc.Get(ctx, session, "customers", "CUST-3")
	assert.ErrorIs(t, err, shared.ErrNotFound, "other company documents look missing")

	_, err = svc.Get(ctx, session, "customers", "CUST-99")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("forces the company and normalizes the CUIT", func(t *testing.T) {
		srv, svc, session := setup(t)
		doc, err := svc.Create(ctx, session, "customers", map[string]any{
			"customer_name":  "Nuevo SA",
			"tax_id":         "30-71234567-1",
			"custom_company": "Beta SA",
			"docstatus":      1,
		})
		require.NoError(t, err)

		stored, ok := srv.Doc("Customer", doc.Name())
		require.True(t, ok)
		assert.Equal(t, "Acme SA", stored.String("custom_company"))
		assert.Equal(t, "30712345671", stored.String("tax_id"))
		assert.Equal(t, 0, stored.Int("docstatus"))
	})

	t.Run("rejects invalid CUIT", func(t *testing.T) {
		_, svc, session := setup(t)
		_, err := svc.Create(ctx, session, "customers", map[string]any{"customer_name": "X", "tax_id": "20-12345678-0"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("read-only resource", func(t *testing.T) {
		_, svc, session := setup(t)
		_, err := svc.Create(ctx, session, "warehouses", map[string]any{"warehouse_name": "X"})
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("duplicate name is a conflict", func(t *testing.T) {
		_, svc, session := setup(t)
		_, err := svc.Create(ctx, session, "items", map[string]any{"name": "SKU-1", "item_code": "SKU-1"})
		assert.ErrorIs(t, err, shared.ErrConflict)
	})

	t.Run("empty payload", func(t *testing.T) {
		_, svc, session := setup(t)
		_, err := svc.Create(ctx, session, "items", nil)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("updates own document", func(t *testing.T) {
		srv, svc, session := setup(t)
		_, err := svc.Update(ctx, session, "customers", "CUST-1", map[string]any{
			"territory":      "Mendoza",
			"custom_company": "Acme SA",
		})
		require.NoError(t, err)
		stored, _ := srv.Doc("Customer", "CUST-1")
		assert.Equal(t, "Mendoza", stored.String("territory"))
	})

	t.Run("cannot move to another company", func(t *testing.T) {
		_, svc, session := setup(t)
		_, err := svc.Update(ctx, session, "customers", "CUST-1", map[string]any{"custom_company": "Beta SA"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("other company document", func(t *testing.T) {
		srv, svc, session := setup(t)
		_, err := svc.Update(ctx, session, "customers", "CUST-3", map[string]any{"territory": "Salta"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
		for _, r := range srv.Requests("/api/resource/Customer/CUST-3") {
			assert.NotEqual(t, "PUT", r.Method)
		}
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	srv, svc, session := setup(t)

	require.NoError(t, svc.Delete(ctx, session, "customers", "CUST-1"))
	_, ok := srv.Doc("Customer", "CUST-1")
	assert.False(t, ok)

	err := svc.Delete(ctx, session, "customers", "CUST-3")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, ok = srv.Doc("Customer", "CUST-3")
	assert.True(t, ok)

	err = svc.Delete(ctx, session, "accounts", "Cash - AS")
	assert.ErrorIs(t, err, shared.ErrForbidden)
}
