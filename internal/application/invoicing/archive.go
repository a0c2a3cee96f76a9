package invoicing

import (
	"context"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/infrastructure/erpnext"
	"github.com/erp/bff/internal/infrastructure/logger"
	"github.com/erp/bff/internal/infrastructure/telemetry"
)

const contentTypePDF = "application/pdf"

// ArchivePDF renders a submitted sales voucher and stores it under
// <company abbr>/<year>/<name>.pdf, returning a temporary download URL.
func (s *Service) ArchivePDF(ctx context.Context, session *identity.Session, name string) (*ArchivedPDF, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "archive_pdf", telemetry.SpanAttrDocName, name)
	defer span.End()

	if s.storage == nil {
		return nil, shared.Errorf(shared.ErrInvalidState, "PDF archiving is disabled")
	}
	doc, err := s.voucher(ctx, session, DoctypeSalesInvoice, name)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	if doc.Int("docstatus") != 1 {
		return nil, shared.Errorf(shared.ErrInvalidState, "only submitted vouchers can be archived")
	}
	profile, err := s.profiles.Profile(ctx, session, session.Company)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}

	posted, err := parseDate("posting_date", doc.String("posting_date"), s.now())
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	abbr := profile.Abbr
	if abbr == "" {
		abbr = profile.Name
	}
	key := path.Join(abbr, strconv.Itoa(posted.Year()), name+".pdf")

	pdf, err := s.upstream.DownloadPDF(ctx, session.UpstreamSID, DoctypeSalesInvoice, name, s.config.PrintFormat)
	if err != nil {
		return nil, telemetry.RecordError(span, erpnext.AsDomainError(err))
	}
	if err := s.storage.Put(ctx, key, pdf, contentTypePDF); err != nil {
		return nil, telemetry.RecordError(span, shared.Wrap(shared.ErrUpstreamUnavailable, "storing PDF failed", err))
	}
	url, expires, err := s.storage.DownloadURL(ctx, key)
	if err != nil {
		return nil, telemetry.RecordError(span, shared.Wrap(shared.ErrUpstreamUnavailable, "signing PDF URL failed", err))
	}

	s.metrics.RecordArchived()
	logger.L(ctx).Info("Voucher PDF archived", zap.String("name", name), zap.String("key", key), zap.Int("bytes", len(pdf)))
	return &ArchivedPDF{Key: key, URL: url, ExpiresAt: expires.UTC().Format(time.RFC3339)}, nil
}
