package invoicing

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/infrastructure/erpnext"
)

func seedBook(f *fixture) {
	f.srv.Seed(DoctypeSalesInvoice,
		erpnext.Document{
			"name": "FE-FAC-A-00003-00000001", "company": "Acme SA", "docstatus": 1, "posting_date": "2026-03-02",
			"customer": customerRI, "customer_name": "Cliente Responsable", "tax_id": "20123456786",
			FieldVoucherType: 1, "net_total": 300, "grand_total": 358,
			"items": []any{
				map[string]any{"item_code": "SKU-1", "qty": 2, "rate": 100, "amount": 200, FieldAliquot: 21},
				map[string]any{"item_code": "LIBRO", "qty": 1, "rate": 100, "amount": 100, FieldAliquot: 0},
			},
			"taxes": []any{
				map[string]any{"account_head": "IVA Débito 21% - AS", "tax_amount": 42, FieldTaxKind: "IVA", FieldAliquotCode: 5},
				map[string]any{"account_head": "Percepción IIBB Buenos Aires - AS", "tax_amount": 16, FieldTaxKind: "IIBB"},
			},
		},
		erpnext.Document{
			"name": "FE-FAC-B-00003-00000001", "company": "Acme SA", "docstatus": 1, "posting_date": "2026-03-01",
			"customer": customerCF, FieldVoucherType: 6, "net_total": 100, "grand_total": 121,
			"items": []any{map[string]any{"item_code": "SKU-1", "qty": 1, "rate": 100, FieldAliquot: 21}},
			"taxes": []any{
				map[string]any{"account_head": "IVA Débito 21% - AS", "tax_amount": 21},
			},
		},
		erpnext.Document{
			"name": "FE-NC-A-00003-00000001", "company": "Acme SA", "docstatus": 1, "posting_date": "2026-03-20",
			"customer": customerRI, "customer_name": "Cliente Responsable", "tax_id": "20123456786",
			"is_return": 1, FieldVoucherType: 3, "net_total": -100, "grand_total": -121,
			"items": []any{map[string]any{"item_code": "SKU-1", "qty": -1, "rate": 100, "amount": -100, FieldAliquot: 21}},
			"taxes": []any{
				map[string]any{"account_head": "IVA Débito 21% - AS", "tax_amount": -21, FieldTaxKind: "IVA", FieldAliquotCode: 5},
			},
		},
		erpnext.Document{"name": "FE-FAC-A-00003-00000002", "company": "Acme SA", "docstatus": 0, "posting_date": "2026-03-10", "grand_total": 50},
		erpnext.Document{"name": "FE-FAC-A-00003-00000003", "company": "Acme SA", "docstatus": 2, "posting_date": "2026-03-11", "grand_total": 60},
		erpnext.Document{"name": "FE-FAC-A-00003-00000004", "company": "Acme SA", "docstatus": 1, "posting_date": "2026-04-01", "grand_total": 70},
		erpnext.Document{"name": "FE-FAC-C-00001-00000001", "company": "Beta SA", "docstatus": 1, "posting_date": "2026-03-05", "grand_total": 80},
	)
}

func TestService_SalesVATBook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedBook(f)

	book, err := f.svc.SalesVATBook(ctx, f.session, "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	assert.Equal(t, "Acme SA", book.Company)
	assert.Equal(t, "2026-03-01", book.From)
	require.Len(t, book.Rows, 3)

	b := book.Rows[0]
	assert.Equal(t, "FE-FAC-B-00003-00000001", b.Name)
	assert.Equal(t, customerCF, b.Customer, "falls back to the customer id")
	assertDecimal(t, "100", b.Net)
	assertDecimal(t, "21", b.IVA) // untagged rows are classified by account
	assertDecimal(t, "0", b.Perceptions)

	a := book.Rows[1]
	assert.Equal(t, "FE-FAC-A-00003-00000001", a.Name)
	assert.Equal(t, 1, a.VoucherCode)
	assert.Equal(t, 3, a.PointOfSale)
	assert.Equal(t, 1, a.Number)
	assert.Equal(t, "Cliente Responsable", a.Customer)
	assert.Equal(t, "20-12345678-6", a.CUIT)
	assertDecimal(t, "200", a.Net)
	assertDecimal(t, "100", a.Exempt)
	assertDecimal(t, "42", a.IVA)
	assertDecimal(t, "16", a.Perceptions)
	assertDecimal(t, "358", a.Total)

	nc := book.Rows[2]
	assert.Equal(t, 3, nc.VoucherCode)
	assertDecimal(t, "-100", nc.Net)
	assertDecimal(t, "-21", nc.IVA)
	assertDecimal(t, "-121", nc.Total)

	assertDecimal(t, "200", book.Totals.Net)
	assertDecimal(t, "42", book.Totals.IVA)
	assertDecimal(t, "16", book.Totals.Perceptions)
	assertDecimal(t, "100", book.Totals.Exempt)
	assertDecimal(t, "358", book.Totals.Total)

	_, err = f.svc.SalesVATBook(ctx, f.session, "2026-03-31", "2026-03-01")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestService_SalesVATBook_Pages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	docs := make([]erpnext.Document, 0, vatBookPageSize+5)
	for i := 1; i <= vatBookPageSize+5; i++ {
		docs = append(docs, erpnext.Document{
			"name":         fmt.Sprintf("ACC-SINV-%05d", i),
			"company":      "Acme SA",
			"docstatus":    1,
			"posting_date": "2026-02-10",
			"net_total":    10,
			"grand_total":  10,
		})
	}
	f.srv.Seed(DoctypeSalesInvoice, docs...)

	book, err := f.svc.SalesVATBook(ctx, f.session, "2026-02-01", "2026-02-28")
	require.NoError(t, err)
	assert.Len(t, book.Rows, vatBookPageSize+5)
	assertDecimal(t, "2050", book.Totals.Total)
	assert.Equal(t, 0, book.Rows[0].VoucherCode)
}

func TestService_ExportSalesVATBook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedBook(f)

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportSalesVATBook(ctx, f.session, "2026-03-01", "2026-03-31", &buf))

	x, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer x.Close()

	rows, err := x.GetRows("Libro IVA Ventas", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Comprobante", rows[0][1])
	assert.Equal(t, "FE-FAC-B-00003-00000001", rows[1][1])
	assert.Equal(t, "Totales", rows[4][1])
	assert.Equal(t, "358", rows[4][11])

	err = f.svc.ExportSalesVATBook(ctx, f.session, "", "", &buf)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
