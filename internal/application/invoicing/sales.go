package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/bff/internal/domain/fiscal"
	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/infrastructure/erpnext"
	"github.com/erp/bff/internal/infrastructure/logger"
	"github.com/erp/bff/internal/infrastructure/telemetry"
)

// Paging limits for voucher lists
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// netRatePlaces is the precision of letter B item rates once IVA is removed
const netRatePlaces = 6

var salesListFields = []string{
	"name", "customer", "customer_name", "posting_date", "grand_total",
	"status", "docstatus", "is_return", FieldVoucherType,
}

// CreateSalesInvoice builds a draft sales voucher: letter from the IVA
// conditions, AFIP voucher type, naming series for the point of sale and
// the IVA and perception rows.
func (s *Service) CreateSalesInvoice(ctx context.Context, session *identity.Session, req SalesInvoiceRequest) (*SalesInvoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "create_sales_invoice",
		telemetry.SpanAttrCompany, session.Company)
	defer span.End()

	kind := req.Kind
	if kind == "" {
		kind = fiscal.KindInvoice
	}
	if !kind.IsValid() {
		return nil, shared.Errorf(shared.ErrInvalidInput, "unknown voucher kind %q", req.Kind)
	}
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}
	posting, err := parseDate("posting_date", req.PostingDate, s.now())
	if err != nil {
		return nil, err
	}
	due, err := parseDate("due_date", req.DueDate, posting)
	if err != nil {
		return nil, err
	}
	if due.Before(posting) {
		return nil, shared.Errorf(shared.ErrInvalidInput, "due_date must not be before posting_date")
	}

	profile, err := s.profiles.Profile(ctx, session, session.Company)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	customer, err := s.party(ctx, session, "Customer", req.Customer)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	condition, err := partyCondition(customer)
	if err != nil {
		return nil, err
	}

	letter, err := profile.LetterFor(condition)
	if err != nil {
		if errors.Is(err, fiscal.ErrUnsupportedIssuer) {
			return nil, shared.Wrap(shared.ErrInvalidState, fmt.Sprintf("company %s cannot issue vouchers", profile.Name), err)
		}
		return nil, shared.Wrap(shared.ErrInvalidInput, "cannot determine voucher letter", err)
	}
	if letter == fiscal.LetterA || letter == fiscal.LetterM {
		if err := fiscal.ValidateCUIT(customer.String("tax_id")); err != nil {
			return nil, shared.Wrap(shared.ErrInvalidInput, fmt.Sprintf("letter %s requires a valid customer CUIT", letter), err)
		}
	}

	vt, ok := fiscal.LookupVoucherType(kind, letter, req.FCE)
	if !ok {
		return nil, shared.Errorf(shared.ErrInvalidInput, "no AFIP voucher type for %s %s (FCE %t)", kind, letter, req.FCE)
	}
	pos, err := profile.ResolvePointOfSale(req.PointOfSale)
	if err != nil {
		return nil, shared.Wrap(shared.ErrInvalidInput, "invalid point of sale", err)
	}
	series, err := fiscal.NamingSeries(s.prefixFor(req), kind, letter, pos)
	if err != nil {
		return nil, shared.Wrap(shared.ErrInvalidState, "invalid naming series", err)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrVoucherType, vt.Code, telemetry.SpanAttrPointOfSale, pos)

	if err := s.checkReturnAgainst(ctx, session, kind, req); err != nil {
		return nil, telemetry.RecordError(span, err)
	}

	accounts, err := s.accountMap(ctx, session, SideSales)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	lines := make([]fiscal.NetLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, fiscal.NetLine{IVARate: it.IVARate, Amount: it.Qty.Mul(it.Rate)})
	}
	summary, err := fiscal.BuildTaxLines(letter, lines, req.Perceptions, accounts)
	if err != nil {
		if errors.Is(err, fiscal.ErrMissingAccount) {
			return nil, shared.Wrap(shared.ErrInvalidState, "tax accounts are not configured", err)
		}
		return nil, shared.Wrap(shared.ErrInvalidInput, "cannot compute taxes", err)
	}

	sign := decimal.NewFromInt(1)
	if kind == fiscal.KindCreditNote {
		sign = sign.Neg()
	}
	doc := map[string]any{
		"naming_series":         series,
		"company":               session.Company,
		"customer":              customer.Name(),
		"posting_date":          posting.Format(dateLayout),
		"set_posting_time":      1,
		"due_date":              due.Format(dateLayout),
		FieldVoucherType:        vt.Code,
		FieldPointOfSale:        pos,
		"items":                 salesItems(req.Items, letter, sign),
		"taxes":                 taxRows(summary.Lines, sign),
		"disable_rounded_total": 1,
	}
	switch kind {
	case fiscal.KindCreditNote:
		doc["is_return"] = 1
		doc["return_against"] = req.ReturnAgainst
	case fiscal.KindDebitNote:
		doc["is_debit_note"] = 1
		if req.ReturnAgainst != "" {
			doc["return_against"] = req.ReturnAgainst
		}
	}

	created, err := s.upstream.InsertDoc(ctx, session.UpstreamSID, DoctypeSalesInvoice, doc)
	if err != nil {
		return nil, telemetry.RecordError(span, erpnext.AsDomainError(err))
	}

	s.metrics.RecordVoucher("created", string(letter))
	logger.L(ctx).Info("Sales voucher created",
		zap.String("name", created.Name()),
		zap.Int("voucher_type", vt.Code),
		zap.Int("point_of_sale", pos),
		zap.String("customer", customer.Name()))
	return &SalesInvoice{Document: created, AFIP: s.afipInfo(created), Taxes: &summary}, nil
}

func validateItems(items []InvoiceItem) error {
	if len(items) == 0 {
		return shared.Errorf(shared.ErrInvalidInput, "at least one item is required")
	}
	for i, it := range items {
		if it.ItemCode == "" {
			return shared.Errorf(shared.ErrInvalidInput, "items[%d]: item_code is required", i)
		}
		if !it.Qty.IsPositive() {
			return shared.Errorf(shared.ErrInvalidInput, "items[%d]: qty must be positive", i)
		}
		if it.Rate.IsNegative() {
			return shared.Errorf(shared.ErrInvalidInput, "items[%d]: rate must not be negative", i)
		}
	}
	return nil
}

// partyCondition reads the IVA condition of a customer or supplier; unset means Consumidor Final
func partyCondition(doc erpnext.Document) (fiscal.IVACondition, error) {
	raw := strings.TrimSpace(doc.String(FieldCondition))
	if raw == "" {
		return fiscal.ConditionCF, nil
	}
	c, err := fiscal.ParseIVACondition(raw)
	if err != nil {
		return "", shared.Wrap(shared.ErrInvalidInput, fmt.Sprintf("%s has an unknown IVA condition %q", doc.Name(), raw), err)
	}
	return c, nil
}

func (s *Service) prefixFor(req SalesInvoiceRequest) string {
	switch {
	case req.FCE:
		return s.config.FCEPrefix
	case req.Electronic:
		return s.config.ElectronicPrefix
	default:
		return s.config.ManualPrefix
	}
}

// checkReturnAgainst validates the voucher a credit or debit note refers to
func (s *Service) checkReturnAgainst(ctx context.Context, session *identity.Session, kind fiscal.VoucherKind, req SalesInvoiceRequest) error {
	if req.ReturnAgainst == "" {
		if kind == fiscal.KindCreditNote {
			return shared.Errorf(shared.ErrInvalidInput, "credit notes require return_against")
		}
		return nil
	}
	if kind == fiscal.KindInvoice {
		return shared.Errorf(shared.ErrInvalidInput, "return_against is only valid for credit and debit notes")
	}
	original, err := s.voucher(ctx, session, DoctypeSalesInvoice, req.ReturnAgainst)
	if err != nil {
		return err
	}
	if original.Int("docstatus") != 1 {
		return shared.Errorf(shared.ErrInvalidState, "%s is not submitted", req.ReturnAgainst)
	}
	if original.Bool("is_return") {
		return shared.Errorf(shared.ErrInvalidInput, "%s is itself a credit note", req.ReturnAgainst)
	}
	if original.String("customer") != req.Customer {
		return shared.Errorf(shared.ErrInvalidInput, "%s belongs to another customer", req.ReturnAgainst)
	}
	return nil
}

func salesItems(items []InvoiceItem, letter fiscal.Letter, sign decimal.Decimal) []map[string]any {
	hundred := decimal.NewFromInt(100)
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		rate := it.Rate
		if letter == fiscal.LetterB {
			rate = rate.Mul(hundred).Div(hundred.Add(it.IVARate)).Round(netRatePlaces)
		}
		row := map[string]any{
			"item_code":  it.ItemCode,
			"qty":        money(it.Qty.Mul(sign)),
			"rate":       money(rate),
			FieldAliquot: money(it.IVARate),
		}
		if it.Description != "" {
			row["description"] = it.Description
		}
		out = append(out, row)
	}
	return out
}

// taxRows renders tax lines as Actual charges; amounts carry the voucher sign
func taxRows(lines []fiscal.TaxLine, sign decimal.Decimal) []map[string]any {
	out := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		row := map[string]any{
			"charge_type":  "Actual",
			"account_head": l.AccountHead,
			"description":  l.Description,
			"tax_amount":   money(l.Amount.Mul(sign)),
			FieldTaxKind:   string(l.Kind),
		}
		if l.AliquotCode != 0 {
			row[FieldAliquotCode] = l.AliquotCode
		}
		out = append(out, row)
	}
	return out
}

// SubmitSalesInvoice submits a draft voucher of the session company
func (s *Service) SubmitSalesInvoice(ctx context.Context, session *identity.Session, name string) (*SalesInvoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "submit_sales_invoice", telemetry.SpanAttrDocName, name)
	defer span.End()

	doc, err := s.voucher(ctx, session, DoctypeSalesInvoice, name)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	if doc.Int("docstatus") != 0 {
		return nil, shared.Errorf(shared.ErrInvalidState, "%s is not a draft", name)
	}
	submitted, err := s.upstream.SubmitDoc(ctx, session.UpstreamSID, DoctypeSalesInvoice, name)
	if err != nil {
		return nil, telemetry.RecordError(span, erpnext.AsDomainError(err))
	}

	info := s.afipInfo(submitted)
	s.metrics.RecordVoucher("submitted", letterOf(info))
	logger.L(ctx).Info("Sales voucher submitted", zap.String("name", name))
	return &SalesInvoice{Document: submitted, AFIP: info}, nil
}

// CancelSalesInvoice cancels a submitted voucher of the session company
func (s *Service) CancelSalesInvoice(ctx context.Context, session *identity.Session, name string) (*SalesInvoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "cancel_sales_invoice", telemetry.SpanAttrDocName, name)
	defer span.End()

	doc, err := s.voucher(ctx, session, DoctypeSalesInvoice, name)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	if doc.Int("docstatus") != 1 {
		return nil, shared.Errorf(shared.ErrInvalidState, "%s is not submitted", name)
	}
	if err := s.upstream.CancelDoc(ctx, session.UpstreamSID, DoctypeSalesInvoice, name); err != nil {
		return nil, telemetry.RecordError(span, erpnext.AsDomainError(err))
	}
	cancelled, err := s.upstream.GetDoc(ctx, session.UpstreamSID, DoctypeSalesInvoice, name)
	if err != nil {
		return nil, telemetry.RecordError(span, erpnext.AsDomainError(err))
	}

	info := s.afipInfo(cancelled)
	s.metrics.RecordVoucher("cancelled", letterOf(info))
	logger.L(ctx).Info("Sales voucher cancelled", zap.String("name", name))
	return &SalesInvoice{Document: cancelled, AFIP: info}, nil
}

// GetSalesInvoice returns a voucher of the session company
func (s *Service) GetSalesInvoice(ctx context.Context, session *identity.Session, name string) (*SalesInvoice, error) {
	doc, err := s.voucher(ctx, session, DoctypeSalesInvoice, name)
	if err != nil {
		return nil, err
	}
	return &SalesInvoice{Document: doc, AFIP: s.afipInfo(doc)}, nil
}

// ListSalesInvoices pages through the company vouchers posted between from and to (both optional)
func (s *Service) ListSalesInvoices(ctx context.Context, session *identity.Session, from, to string, page, pageSize int) (*SalesInvoicePage, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "list_sales_invoices", telemetry.SpanAttrCompany, session.Company)
	defer span.End()

	if page < 0 || pageSize < 0 || pageSize > maxPageSize {
		return nil, shared.Errorf(shared.ErrInvalidInput, "page must be positive and page_size at most %d", maxPageSize)
	}
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}

	filters := []erpnext.Filter{erpnext.Eq("company", session.Company)}
	if from != "" {
		if _, err := parseDate("from", from, s.now()); err != nil {
			return nil, err
		}
		filters = append(filters, erpnext.Filter{Field: "posting_date", Operator: erpnext.OpGreaterOrEq, Value: from})
	}
	if to != "" {
		if _, err := parseDate("to", to, s.now()); err != nil {
			return nil, err
		}
		filters = append(filters, erpnext.Filter{Field: "posting_date", Operator: erpnext.OpLessOrEq, Value: to})
	}

	docs, err := s.upstream.GetList(ctx, session.UpstreamSID, DoctypeSalesInvoice, erpnext.ListQuery{
		Fields:     salesListFields,
		Filters:    filters,
		OrderBy:    "posting_date desc, name desc",
		Start:      (page - 1) * pageSize,
		PageLength: pageSize,
	})
	if err != nil {
		return nil, telemetry.RecordError(span, erpnext.AsDomainError(err))
	}
	total, err := s.upstream.Count(ctx, session.UpstreamSID, DoctypeSalesInvoice, filters)
	if err != nil {
		return nil, telemetry.RecordError(span, erpnext.AsDomainError(err))
	}

	rows := make([]SalesInvoiceRow, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, SalesInvoiceRow{
			Name:         d.Name(),
			Customer:     d.String("customer"),
			CustomerName: d.String("customer_name"),
			PostingDate:  d.String("posting_date"),
			GrandTotal:   d.Decimal("grand_total"),
			Status:       d.String("status"),
			DocStatus:    d.Int("docstatus"),
			IsReturn:     d.Bool("is_return"),
			AFIP:         s.afipInfo(d),
		})
	}
	return &SalesInvoicePage{Items: rows, Total: total, Page: page, PageSize: pageSize}, nil
}

// afipInfo decodes the AFIP identity from the document name, preferring the
// stored voucher type code. Non-AFIP names yield nil.
func (s *Service) afipInfo(doc erpnext.Document) *AFIPInfo {
	v, err := fiscal.ParseDocumentName(doc.Name())
	if err != nil {
		return nil
	}
	vt, ok := fiscal.VoucherTypeByCode(doc.Int(FieldVoucherType))
	if !ok {
		fce := strings.EqualFold(v.Prefix, s.config.FCEPrefix)
		if vt, ok = fiscal.LookupVoucherType(v.Kind, v.Letter, fce); !ok {
			return nil
		}
	}
	return &AFIPInfo{
		VoucherType: vt,
		Letter:      v.Letter,
		PointOfSale: v.PointOfSale,
		Number:      v.Number,
		Formatted:   fiscal.FormatVoucherNumber(v.PointOfSale, v.Number),
	}
}

func letterOf(info *AFIPInfo) string {
	if info == nil {
		return ""
	}
	return string(info.Letter)
}
