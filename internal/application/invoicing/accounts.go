package invoicing

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/bff/internal/domain/fiscal"
	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/infrastructure/erpnext"
	"github.com/erp/bff/internal/infrastructure/logger"
)

// Side selects the ledger accounts for sales or purchases
type Side string

const (
	SideSales     Side = "sales"
	SidePurchases Side = "purchases"
)

// Account custom fields tagging tax ledgers
const (
	FieldAccountTaxKind      = "custom_tipo_impuesto"
	FieldAccountJurisdiction = "custom_jurisdiccion"
	FieldAccountOperation    = "custom_operacion"
)

const accountsCachePrefix = "bff:tax-accounts:"

// taxAccount is a cached Account row
type taxAccount struct {
	Name         string          `json:"name"`
	Kind         fiscal.TaxKind  `json:"kind"`
	Jurisdiction string          `json:"jurisdiction,omitempty"`
	Rate         decimal.Decimal `json:"rate"`
}

// operationMatches reads the Account operation tag. Untagged accounts serve both sides.
func operationMatches(tag string, side Side) bool {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "":
		return true
	case "venta", "ventas", "sales":
		return side == SideSales
	case "compra", "compras", "purchases":
		return side == SidePurchases
	}
	return false
}

// accountMap builds the tax account map of the session company from its
// Tax accounts: IVA accounts by tax_rate, perceptions by kind and
// jurisdiction. An IVA account with a zero rate books IVA perceptions.
func (s *Service) accountMap(ctx context.Context, session *identity.Session, side Side) (*fiscal.AccountMap, error) {
	accounts, err := s.taxAccounts(ctx, session, side)
	if err != nil {
		return nil, err
	}
	m := fiscal.NewAccountMap()
	for _, a := range accounts {
		if a.Kind == fiscal.TaxIVA && !a.Rate.IsZero() {
			m.SetIVA(a.Rate, a.Name)
			continue
		}
		m.SetPerception(a.Kind, a.Jurisdiction, a.Name)
	}
	return m, nil
}

func (s *Service) taxAccounts(ctx context.Context, session *identity.Session, side Side) ([]taxAccount, error) {
	key := accountsCachePrefix + string(side) + ":" + session.Company
	if s.cache != nil {
		var cached []taxAccount
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			logger.L(ctx).Warn("Tax account cache read failed", zap.Error(err))
		} else if found {
			return cached, nil
		}
	}

	docs, err := s.upstream.GetList(ctx, session.UpstreamSID, "Account", erpnext.ListQuery{
		Fields: []string{"name", "tax_rate", FieldAccountTaxKind, FieldAccountJurisdiction, FieldAccountOperation},
		Filters: []erpnext.Filter{
			erpnext.Eq("company", session.Company),
			erpnext.Eq("account_type", "Tax"),
			erpnext.Eq("is_group", 0),
		},
		OrderBy:    "name asc",
		PageLength: 500,
	})
	if err != nil {
		return nil, erpnext.AsDomainError(err)
	}

	out := make([]taxAccount, 0, len(docs))
	for _, d := range docs {
		if !operationMatches(d.String(FieldAccountOperation), side) {
			continue
		}
		kind := fiscal.TaxKind(strings.ToUpper(strings.TrimSpace(d.String(FieldAccountTaxKind))))
		if kind == "" {
			kind = fiscal.TaxIVA
		}
		if !kind.IsValid() {
			continue
		}
		out = append(out, taxAccount{
			Name:         d.Name(),
			Kind:         kind,
			Jurisdiction: d.String(FieldAccountJurisdiction),
			Rate:         d.Decimal("tax_rate"),
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, out, s.config.AccountsCacheTTL); err != nil {
			logger.L(ctx).Warn("Tax account cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

// ivaAccounts is the set of accounts booking IVA debits, as opposed to perceptions
func ivaAccounts(accounts []taxAccount) map[string]bool {
	out := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		if a.Kind == fiscal.TaxIVA && !a.Rate.IsZero() {
			out[a.Name] = true
		}
	}
	return out
}
