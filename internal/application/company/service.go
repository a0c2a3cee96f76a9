// Package company lists the companies a session may use and reads their
// fiscal profile from the Company doctype.
package company

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/bff/internal/domain/fiscal"
	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/infrastructure/cache"
	"github.com/erp/bff/internal/infrastructure/erpnext"
	"github.com/erp/bff/internal/infrastructure/logger"
	"github.com/erp/bff/internal/infrastructure/telemetry"
)

// Company custom fields holding the fiscal profile
const (
	FieldTaxID         = "tax_id"
	FieldIVACondition  = "custom_condicion_iva"
	FieldPointsOfSale  = "custom_puntos_de_venta"
	FieldGrossIncome   = "custom_iibb"
	FieldActivityStart = "custom_inicio_actividades"
	FieldIssuesM       = "custom_emite_m"
)

const (
	profileCachePrefix  = "bff:company-profile:"
	companyListPageSize = 500
)

// Upstream is the part of the ERPNext client used here
type Upstream interface {
	GetList(ctx context.Context, sid, doctype string, q erpnext.ListQuery) ([]erpnext.Document, error)
	GetDoc(ctx context.Context, sid, doctype, name string) (erpnext.Document, error)
}

// Summary is a company as listed in the company switcher
type Summary struct {
	Name            string              `json:"name"`
	Abbr            string              `json:"abbr"`
	CUIT            string              `json:"cuit,omitempty"`
	IVACondition    fiscal.IVACondition `json:"iva_condition,omitempty"`
	DefaultCurrency string              `json:"default_currency,omitempty"`
	Active          bool                `json:"active"`
}

// Service reads companies and their fiscal profiles
type Service struct {
	upstream   Upstream
	cache      cache.Store
	profileTTL time.Duration
}

// NewService creates a company service. Profiles are cached for profileTTL;
// a nil store disables caching.
func NewService(upstream Upstream, store cache.Store, profileTTL time.Duration) *Service {
	return &Service{upstream: upstream, cache: store, profileTTL: profileTTL}
}

// ListAllowed returns the companies the session may switch to, in name order
func (s *Service) ListAllowed(ctx context.Context, session *identity.Session) ([]Summary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "company", "list_allowed")
	defer span.End()

	allowed := make([]any, len(session.Companies))
	for i, c := range session.Companies {
		allowed[i] = c
	}
	docs, err := s.upstream.GetList(ctx, session.UpstreamSID, "Company", erpnext.ListQuery{
		Fields:     []string{"name", "abbr", FieldTaxID, FieldIVACondition, "default_currency"},
		Filters:    []erpnext.Filter{{Field: "name", Operator: erpnext.OpIn, Value: allowed}},
		OrderBy:    "name asc",
		PageLength: companyListPageSize,
	})
	if err != nil {
		return nil, telemetry.RecordError(span, erpnext.AsDomainError(err))
	}

	out := make([]Summary, 0, len(docs))
	for _, d := range docs {
		cond, _ := fiscal.ParseIVACondition(d.String(FieldIVACondition))
		out = append(out, Summary{
			Name:            d.Name(),
			Abbr:            d.String("abbr"),
			CUIT:            fiscal.FormatCUIT(d.String(FieldTaxID)),
			IVACondition:    cond,
			DefaultCurrency: d.String("default_currency"),
			Active:          d.Name() == session.Company,
		})
	}
	return out, nil
}

// Profile returns the fiscal profile of company, which must be allowed for the session
func (s *Service) Profile(ctx context.Context, session *identity.Session, company string) (*fiscal.CompanyProfile, error) {
	if company == "" {
		company = session.Company
	}
	if !session.CanAccess(company) {
		return nil, shared.Errorf(shared.ErrForbidden, "company %q is not allowed", company)
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "company", "profile", telemetry.SpanAttrCompany, company)
	defer span.End()

	key := profileCachePrefix + company
	if s.cache != nil {
		var cached fiscal.CompanyProfile
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			logger.L(ctx).Warn("Company profile cache read failed", zap.String("company", company), zap.Error(err))
		} else if found {
			return &cached, nil
		}
	}

	doc, err := s.upstream.GetDoc(ctx, session.UpstreamSID, "Company", company)
	if err != nil {
		return nil, telemetry.RecordError(span, erpnext.AsDomainError(err))
	}
	profile, err := ProfileFromDocument(doc)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, profile, s.profileTTL); err != nil {
			logger.L(ctx).Warn("Company profile cache write failed", zap.String("company", company), zap.Error(err))
		}
	}
	return profile, nil
}

// Invalidate drops the cached profile of company
func (s *Service) Invalidate(ctx context.Context, company string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, profileCachePrefix+company)
}

// ProfileFromDocument reads a fiscal profile from a Company document. A
// company that cannot issue vouchers yields shared.ErrInvalidState.
func ProfileFromDocument(doc erpnext.Document) (*fiscal.CompanyProfile, error) {
	name := doc.Name()
	p := &fiscal.CompanyProfile{
		Name:              name,
		Abbr:              doc.String("abbr"),
		GrossIncomeNumber: strings.TrimSpace(doc.String(FieldGrossIncome)),
		ActivityStart:     doc.String(FieldActivityStart),
		IssuesM:           doc.Bool(FieldIssuesM),
	}

	if raw := doc.String(FieldTaxID); raw != "" {
		if err := fiscal.ValidateCUIT(raw); err != nil {
			return nil, shared.Wrap(shared.ErrInvalidState, fmt.Sprintf("company %s has an invalid CUIT", name), err)
		}
		p.CUIT = fiscal.NormalizeCUIT(raw)
	}

	cond, err := fiscal.ParseIVACondition(doc.String(FieldIVACondition))
	if err != nil {
		return nil, shared.Wrap(shared.ErrInvalidState, fmt.Sprintf("company %s has no valid IVA condition", name), err)
	}
	p.IVACondition = cond

	pos, err := fiscal.ParsePointsOfSale(doc.String(FieldPointsOfSale))
	if err != nil {
		return nil, shared.Wrap(shared.ErrInvalidState, fmt.Sprintf("company %s has invalid points of sale", name), err)
	}
	p.PointsOfSale = pos
	if len(pos) > 0 {
		p.DefaultPointOfSale = pos[0]
	}
	return p, nil
}
