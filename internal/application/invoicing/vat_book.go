package invoicing

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/erp/bff/internal/domain/fiscal"
	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/infrastructure/erpnext"
	"github.com/erp/bff/internal/infrastructure/export"
	"github.com/erp/bff/internal/infrastructure/telemetry"
)

// vatBookFetchLimit bounds concurrent voucher fetches
const vatBookFetchLimit = 4

// vatBookPageSize is the list page used while walking the period
const vatBookPageSize = 200

// SalesVATBook lists the submitted sales vouchers of the period with
// their net, IVA, perceptions and exempt amounts.
func (s *Service) SalesVATBook(ctx context.Context, session *identity.Session, from, to string) (*VATBook, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "sales_vat_book", telemetry.SpanAttrCompany, session.Company)
	defer span.End()

	start, end, err := dateRange(from, to)
	if err != nil {
		return nil, err
	}
	filters := []erpnext.Filter{
		erpnext.Eq("company", session.Company),
		erpnext.Eq("docstatus", 1),
		{Field: "posting_date", Operator: erpnext.OpGreaterOrEq, Value: start.Format(dateLayout)},
		{Field: "posting_date", Operator: erpnext.OpLessOrEq, Value: end.Format(dateLayout)},
	}

	var names []string
	for offset := 0; ; offset += vatBookPageSize {
		docs, err := s.upstream.GetList(ctx, session.UpstreamSID, DoctypeSalesInvoice, erpnext.ListQuery{
			Fields:     []string{"name"},
			Filters:    filters,
			OrderBy:    "posting_date asc, name asc",
			Start:      offset,
			PageLength: vatBookPageSize,
		})
		if err != nil {
			return nil, telemetry.RecordError(span, erpnext.AsDomainError(err))
		}
		for _, d := range docs {
			names = append(names, d.Name())
		}
		if len(docs) < vatBookPageSize {
			break
		}
	}

	accounts, err := s.taxAccounts(ctx, session, SideSales)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	iva := ivaAccounts(accounts)

	rows := make([]VATBookRow, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(vatBookFetchLimit)
	for i, name := range names {
		g.Go(func() error {
			doc, err := s.upstream.GetDoc(gctx, session.UpstreamSID, DoctypeSalesInvoice, name)
			if err != nil {
				return erpnext.AsDomainError(err)
			}
			rows[i] = s.vatBookRow(doc, iva)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, telemetry.RecordError(span, err)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date < rows[j].Date
		}
		return rows[i].Name < rows[j].Name
	})

	book := &VATBook{
		Company: session.Company,
		From:    start.Format(dateLayout),
		To:      end.Format(dateLayout),
		Rows:    rows,
	}
	for _, r := range rows {
		book.Totals.Net = book.Totals.Net.Add(r.Net)
		book.Totals.IVA = book.Totals.IVA.Add(r.IVA)
		book.Totals.Perceptions = book.Totals.Perceptions.Add(r.Perceptions)
		book.Totals.Exempt = book.Totals.Exempt.Add(r.Exempt)
		book.Totals.Total = book.Totals.Total.Add(r.Total)
	}
	return book, nil
}

func (s *Service) vatBookRow(doc erpnext.Document, iva map[string]bool) VATBookRow {
	row := VATBookRow{
		Date:     doc.String("posting_date"),
		Name:     doc.Name(),
		Customer: doc.String("customer_name"),
		CUIT:     fiscal.FormatCUIT(doc.String("tax_id")),
		Net:      doc.Decimal("net_total"),
		Total:    doc.Decimal("grand_total"),
	}
	if row.Customer == "" {
		row.Customer = doc.String("customer")
	}
	if info := s.afipInfo(doc); info != nil {
		row.VoucherCode = info.VoucherType.Code
		row.PointOfSale = info.PointOfSale
		row.Number = info.Number
	}

	for _, it := range doc.Children("items") {
		if _, tagged := it[FieldAliquot]; !tagged || !it.Decimal(FieldAliquot).IsZero() {
			continue
		}
		amount := it.Decimal("amount")
		if _, ok := it["amount"]; !ok {
			amount = it.Decimal("qty").Mul(it.Decimal("rate"))
		}
		row.Exempt = row.Exempt.Add(amount.Abs())
	}
	// net_total includes exempt lines; the book reports the taxed net
	row.Net = row.Net.Abs().Sub(row.Exempt)
	for _, t := range doc.Children("taxes") {
		amount := t.Decimal("tax_amount")
		isIVA := iva[t.String("account_head")]
		if kind := fiscal.TaxKind(t.String(FieldTaxKind)); kind != "" {
			isIVA = kind == fiscal.TaxIVA && t.Int(FieldAliquotCode) != 0
		}
		if isIVA {
			row.IVA = row.IVA.Add(amount)
		} else {
			row.Perceptions = row.Perceptions.Add(amount)
		}
	}

	if doc.Bool("is_return") {
		row.Net = negative(row.Net)
		row.IVA = negative(row.IVA)
		row.Perceptions = negative(row.Perceptions)
		row.Exempt = negative(row.Exempt)
		row.Total = negative(row.Total)
	}
	return row
}

func negative(d decimal.Decimal) decimal.Decimal {
	return d.Abs().Neg()
}

// ExportSalesVATBook writes the sales VAT book as an xlsx workbook
func (s *Service) ExportSalesVATBook(ctx context.Context, session *identity.Session, from, to string, w io.Writer) error {
	book, err := s.SalesVATBook(ctx, session, from, to)
	if err != nil {
		return err
	}

	sheet := export.Sheet{
		Name: "Libro IVA Ventas",
		Columns: []export.Column{
			{Header: "Fecha", Kind: export.KindDate},
			{Header: "Comprobante", Kind: export.KindText, Width: 28},
			{Header: "Tipo", Kind: export.KindNumber},
			{Header: "Punto de venta", Kind: export.KindNumber},
			{Header: "Número", Kind: export.KindNumber},
			{Header: "Cliente", Kind: export.KindText, Width: 32},
			{Header: "CUIT", Kind: export.KindText},
			{Header: "Neto gravado", Kind: export.KindMoney},
			{Header: "IVA", Kind: export.KindMoney},
			{Header: "Percepciones", Kind: export.KindMoney},
			{Header: "Exento", Kind: export.KindMoney},
			{Header: "Total", Kind: export.KindMoney},
		},
	}
	for _, r := range book.Rows {
		sheet.Rows = append(sheet.Rows, []any{
			bookDate(r.Date), r.Name, r.VoucherCode, r.PointOfSale, r.Number, r.Customer, r.CUIT,
			r.Net, r.IVA, r.Perceptions, r.Exempt, r.Total,
		})
	}
	t := book.Totals
	sheet.Rows = append(sheet.Rows, []any{
		nil, "Totales", nil, nil, nil, nil, nil, t.Net, t.IVA, t.Perceptions, t.Exempt, t.Total,
	})
	return export.WriteXLSX(w, sheet)
}

func bookDate(s string) any {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t
	}
	return s
}
