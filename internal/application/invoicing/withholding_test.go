package invoicing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/bff/internal/domain/fiscal"
	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/infrastructure/erpnext"
)

func TestService_PreviewWithholding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	payment := func(name, party, date string, amount, docstatus int) erpnext.Document {
		return erpnext.Document{
			"name":         name,
			"company":      "Acme SA",
			"party_type":   "Supplier",
			"party":        party,
			"payment_type": "Pay",
			"posting_date": date,
			"paid_amount":  amount,
			"docstatus":    docstatus,
		}
	}
	f.srv.Seed(DoctypePaymentEntry,
		payment("PE-1", supplierSA, "2026-03-02", 60000, 1),
		payment("PE-2", supplierSA, "2026-03-10", 30000, 1),
		payment("PE-3", supplierSA, "2026-03-18", 99999, 1),
		payment("PE-4", supplierSA, "2026-02-27", 99999, 1),
		payment("PE-5", supplierSA, "2026-03-05", 99999, 0),
		payment("PE-6", "Proveedor Informal", "2026-03-05", 99999, 1),
	)

	got, err := f.svc.PreviewWithholding(ctx, f.session, supplierSA, dec("50000"), "")
	require.NoError(t, err)
	assert.Equal(t, supplierSA, got.Supplier)
	assert.Equal(t, "2026-03-18", got.Date)
	assert.Equal(t, fiscal.TaxGanancias, got.Rule.Kind)
	assertDecimal(t, "90000", got.Withholding.PreviousBase)
	assertDecimal(t, "40000", got.Withholding.Taxable)
	assertDecimal(t, "800", got.Withholding.Amount)

	t.Run("first payment of the month under threshold", func(t *testing.T) {
		got, err := f.svc.PreviewWithholding(ctx, f.session, supplierSA, dec("1000"), "2026-03-01")
		require.NoError(t, err)
		assertDecimal(t, "0", got.Withholding.PreviousBase)
		assertDecimal(t, "0", got.Withholding.Amount)
	})

	t.Run("rejects", func(t *testing.T) {
		_, err := f.svc.PreviewWithholding(ctx, f.session, supplierSA, dec("0"), "")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		_, err = f.svc.PreviewWithholding(ctx, f.session, supplierSA, dec("10"), "2026/03/01")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		_, err = f.svc.PreviewWithholding(ctx, f.session, "", dec("10"), "")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		_, err = f.svc.PreviewWithholding(ctx, f.session, "Nadie", dec("10"), "")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestService_PreviewWithholding_Pages(t *testing.T) {
	f := newFixture(t)
	n := paymentPageSize + 5
	docs := make([]erpnext.Document, 0, n)
	for i := 1; i <= n; i++ {
		docs = append(docs, erpnext.Document{
			"name":         fmt.Sprintf("ACC-PAY-%05d", i),
			"company":      "Acme SA",
			"party_type":   "Supplier",
			"party":        supplierSA,
			"payment_type": "Pay",
			"posting_date": "2026-03-02",
			"paid_amount":  100,
			"docstatus":    1,
		})
	}
	f.srv.Seed(DoctypePaymentEntry, docs...)

	got, err := f.svc.PreviewWithholding(context.Background(), f.session, supplierSA, dec("1000"), "")
	require.NoError(t, err)
	assertDecimal(t, fmt.Sprint(n*100), got.Withholding.PreviousBase)
	assert.Len(t, f.srv.Requests("/api/resource/"+DoctypePaymentEntry), 2)
}
