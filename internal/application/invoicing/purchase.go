package invoicing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/bff/internal/domain/fiscal"
	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/infrastructure/erpnext"
	"github.com/erp/bff/internal/infrastructure/lock"
	"github.com/erp/bff/internal/infrastructure/logger"
	"github.com/erp/bff/internal/infrastructure/telemetry"
)

// RegisterPurchaseInvoice records a supplier voucher as a Purchase Invoice
// draft. Registration is serialized per voucher so concurrent submissions of
// the same paper voucher cannot both pass the duplicate check.
func (s *Service) RegisterPurchaseInvoice(ctx context.Context, session *identity.Session, req PurchaseInvoiceRequest) (erpnext.Document, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "register_purchase_invoice",
		telemetry.SpanAttrCompany, session.Company,
		telemetry.SpanAttrVoucherType, req.VoucherTypeCode,
		telemetry.SpanAttrPointOfSale, req.PointOfSale)
	defer span.End()

	vt, ok := fiscal.VoucherTypeByCode(req.VoucherTypeCode)
	if !ok {
		return nil, shared.Errorf(shared.ErrInvalidInput, "unknown AFIP voucher type %d", req.VoucherTypeCode)
	}
	if err := fiscal.ValidatePointOfSale(req.PointOfSale); err != nil {
		return nil, shared.Wrap(shared.ErrInvalidInput, "invalid point of sale", err)
	}
	if err := fiscal.ValidateVoucherNumber(req.Number); err != nil {
		return nil, shared.Wrap(shared.ErrInvalidInput, "invalid voucher number", err)
	}
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}
	posting, err := parseDate("posting_date", req.PostingDate, s.now())
	if err != nil {
		return nil, err
	}
	billDate, err := parseDate("bill_date", req.BillDate, posting)
	if err != nil {
		return nil, err
	}
	due, err := parseDate("due_date", req.DueDate, posting)
	if err != nil {
		return nil, err
	}

	supplier, err := s.party(ctx, session, "Supplier", req.Supplier)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	if err := fiscal.ValidateCUIT(supplier.String("tax_id")); err != nil {
		return nil, shared.Wrap(shared.ErrInvalidInput, fmt.Sprintf("supplier %s has no valid CUIT", supplier.Name()), err)
	}

	accounts, err := s.accountMap(ctx, session, SidePurchases)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	sign := decimal.NewFromInt(1)
	if vt.Kind == fiscal.KindCreditNote {
		sign = sign.Neg()
	}
	taxes, err := purchaseTaxRows(vt.Letter, req.Taxes, req.Perceptions, accounts, sign)
	if err != nil {
		return nil, err
	}

	billNo := fiscal.FormatVoucherNumber(req.PointOfSale, req.Number)
	doc := map[string]any{
		"company":               session.Company,
		"supplier":              supplier.Name(),
		"posting_date":          posting.Format(dateLayout),
		"set_posting_time":      1,
		"bill_no":               billNo,
		"bill_date":             billDate.Format(dateLayout),
		"due_date":              due.Format(dateLayout),
		FieldVoucherType:        vt.Code,
		FieldPointOfSale:        req.PointOfSale,
		FieldNumber:             req.Number,
		"items":                 purchaseItems(req.Items, sign),
		"taxes":                 taxes,
		"disable_rounded_total": 1,
	}
	if vt.Kind == fiscal.KindCreditNote {
		doc["is_return"] = 1
	}

	key := fmt.Sprintf("purchase-invoice|%s|%s|%d|%d|%d", session.Company, supplier.Name(), vt.Code, req.PointOfSale, req.Number)
	var created erpnext.Document
	err = lock.Guard(ctx, s.locker, key, s.config.LockTTL, func(ctx context.Context) error {
		dup, err := s.findPurchaseDuplicate(ctx, session, supplier.Name(), billNo, vt.Code)
		if err != nil {
			return err
		}
		if dup != "" {
			s.metrics.RecordPurchaseInvoice("duplicate")
			return shared.Errorf(shared.ErrAlreadyExists, "voucher %s %s of %s is already registered as %s", vt.Description, billNo, supplier.Name(), dup)
		}
		created, err = s.upstream.InsertDoc(ctx, session.UpstreamSID, DoctypePurchaseInvoice, doc)
		return erpnext.AsDomainError(err)
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			return nil, telemetry.RecordError(span, shared.Wrap(shared.ErrConflict, "voucher is being registered by another request", err))
		}
		return nil, telemetry.RecordError(span, err)
	}

	s.metrics.RecordPurchaseInvoice("registered")
	logger.L(ctx).Info("Purchase voucher registered",
		zap.String("name", created.Name()),
		zap.String("supplier", supplier.Name()),
		zap.Int("voucher_type", vt.Code),
		zap.String("bill_no", billNo))
	return created, nil
}

// findPurchaseDuplicate returns the name of a non-cancelled registration of the same voucher
func (s *Service) findPurchaseDuplicate(ctx context.Context, session *identity.Session, supplier, billNo string, code int) (string, error) {
	docs, err := s.upstream.GetList(ctx, session.UpstreamSID, DoctypePurchaseInvoice, erpnext.ListQuery{
		Fields: []string{"name"},
		Filters: []erpnext.Filter{
			erpnext.Eq("company", session.Company),
			erpnext.Eq("supplier", supplier),
			erpnext.Eq("bill_no", billNo),
			erpnext.Eq(FieldVoucherType, code),
			{Field: "docstatus", Operator: erpnext.OpLess, Value: 2},
		},
		PageLength: 1,
	})
	if err != nil {
		return "", erpnext.AsDomainError(err)
	}
	if len(docs) == 0 {
		return "", nil
	}
	return docs[0].Name(), nil
}

func purchaseItems(items []InvoiceItem, sign decimal.Decimal) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		row := map[string]any{
			"item_code":  it.ItemCode,
			"qty":        money(it.Qty.Mul(sign)),
			"rate":       money(it.Rate),
			FieldAliquot: money(it.IVARate),
		}
		if it.Description != "" {
			row["description"] = it.Description
		}
		out = append(out, row)
	}
	return out
}

// purchaseTaxRows books the IVA and perceptions printed on the supplier
// voucher. Letters B and C carry no creditable IVA.
func purchaseTaxRows(letter fiscal.Letter, taxes []PurchaseTax, perceptions []PurchasePerception, accounts *fiscal.AccountMap, sign decimal.Decimal) ([]map[string]any, error) {
	lines := make([]fiscal.TaxLine, 0, len(taxes)+len(perceptions))
	if len(taxes) > 0 && !letter.DiscriminatesIVA() {
		return nil, shared.Errorf(shared.ErrInvalidInput, "letter %s vouchers do not discriminate IVA", letter)
	}
	for i, t := range taxes {
		a, ok := fiscal.AliquotByRate(t.IVARate)
		if !ok {
			return nil, shared.Errorf(shared.ErrInvalidInput, "taxes[%d]: %s%% is not an AFIP aliquot", i, t.IVARate)
		}
		if t.Amount.IsNegative() {
			return nil, shared.Errorf(shared.ErrInvalidInput, "taxes[%d]: amount must not be negative", i)
		}
		if t.Amount.IsZero() {
			continue
		}
		account, ok := accounts.IVAAccount(a.Rate)
		if !ok {
			return nil, shared.Errorf(shared.ErrInvalidState, "no purchase account configured for IVA %s%%", a.Rate)
		}
		lines = append(lines, fiscal.TaxLine{
			Kind:        fiscal.TaxIVA,
			Description: "IVA Crédito Fiscal " + a.Rate.String() + "%",
			AccountHead: account,
			AliquotCode: a.Code,
			Rate:        a.Rate,
			Amount:      fiscal.Round2(t.Amount),
		})
	}
	for i, p := range perceptions {
		if !p.Kind.IsValid() {
			return nil, shared.Errorf(shared.ErrInvalidInput, "perceptions[%d]: invalid kind %q", i, p.Kind)
		}
		if !p.Amount.IsPositive() {
			return nil, shared.Errorf(shared.ErrInvalidInput, "perceptions[%d]: amount must be positive", i)
		}
		account, ok := accounts.PerceptionAccount(p.Kind, p.Jurisdiction)
		if !ok {
			return nil, shared.Errorf(shared.ErrInvalidState, "no purchase account configured for %s perception %s", p.Kind, p.Jurisdiction)
		}
		desc := "Percepción " + string(p.Kind)
		if p.Jurisdiction != "" {
			desc += " " + p.Jurisdiction
		}
		lines = append(lines, fiscal.TaxLine{
			Kind:        p.Kind,
			Description: desc,
			AccountHead: account,
			Amount:      fiscal.Round2(p.Amount),
		})
	}
	return taxRows(lines, sign), nil
}
