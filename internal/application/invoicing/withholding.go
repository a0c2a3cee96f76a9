package invoicing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/bff/internal/domain/fiscal"
	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/infrastructure/erpnext"
	"github.com/erp/bff/internal/infrastructure/telemetry"
)

// paymentPageSize is the list page used while summing a month of payments
const paymentPageSize = 200

// PreviewWithholding computes the withholding a payment of amount to
// supplier on date would carry, given the payments already made to it in
// the same calendar month.
func (s *Service) PreviewWithholding(ctx context.Context, session *identity.Session, supplier string, amount decimal.Decimal, date string) (*WithholdingPreview, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "preview_withholding", telemetry.SpanAttrCompany, session.Company)
	defer span.End()

	if !amount.IsPositive() {
		return nil, shared.Errorf(shared.ErrInvalidInput, "amount must be positive")
	}
	day, err := parseDate("date", date, s.now())
	if err != nil {
		return nil, err
	}
	if _, err := s.party(ctx, session, "Supplier", supplier); err != nil {
		return nil, telemetry.RecordError(span, err)
	}

	monthStart := day.AddDate(0, 0, 1-day.Day())
	previous, err := s.paidThisMonth(ctx, session, supplier, monthStart, day)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}

	return &WithholdingPreview{
		Supplier:    supplier,
		Date:        day.Format(dateLayout),
		Rule:        s.config.Withholding,
		Withholding: fiscal.ComputeWithholding(s.config.Withholding, previous, amount),
	}, nil
}

// paidThisMonth sums the submitted payments to supplier from monthStart up
// to the day before day
func (s *Service) paidThisMonth(ctx context.Context, session *identity.Session, supplier string, monthStart, day time.Time) (decimal.Decimal, error) {
	filters := []erpnext.Filter{
		erpnext.Eq("company", session.Company),
		erpnext.Eq("party_type", "Supplier"),
		erpnext.Eq("party", supplier),
		erpnext.Eq("payment_type", "Pay"),
		erpnext.Eq("docstatus", 1),
		{Field: "posting_date", Operator: erpnext.OpGreaterOrEq, Value: monthStart.Format(dateLayout)},
		{Field: "posting_date", Operator: erpnext.OpLess, Value: day.Format(dateLayout)},
	}

	total := decimal.Zero
	for offset := 0; ; offset += paymentPageSize {
		payments, err := s.upstream.GetList(ctx, session.UpstreamSID, DoctypePaymentEntry, erpnext.ListQuery{
			Fields:     []string{"name", "paid_amount"},
			Filters:    filters,
			OrderBy:    "posting_date asc, name asc",
			Start:      offset,
			PageLength: paymentPageSize,
		})
		if err != nil {
			return decimal.Zero, erpnext.AsDomainError(err)
		}
		for _, p := range payments {
			total = total.Add(p.Decimal("paid_amount"))
		}
		if len(payments) < paymentPageSize {
			return total, nil
		}
	}
}
