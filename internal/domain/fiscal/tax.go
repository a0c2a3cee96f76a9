package fiscal

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// TaxKind identifies the tax a row or withholding belongs to
type TaxKind string

const (
	TaxIVA       TaxKind = "IVA"
	TaxIIBB      TaxKind = "IIBB"
	TaxGanancias TaxKind = "GANANCIAS"
	TaxMunicipal TaxKind = "MUNICIPAL"
)

// IsValid reports whether k is a known tax kind
func (k TaxKind) IsValid() bool {
	switch k {
	case TaxIVA, TaxIIBB, TaxGanancias, TaxMunicipal:
		return true
	}
	return false
}

var (
	ErrUnknownAliquot = errors.New("IVA rate is not an AFIP aliquot")
	ErrMissingAccount = errors.New("no account configured for tax")
	ErrExportWithIVA  = errors.New("export vouchers (letter E) only accept 0% IVA")
)

var hundred = decimal.NewFromInt(100)

// NetLine is one item line reduced to what taxes need. For letter B vouchers
// Amount is the final IVA-included price; for every other letter it is net.
type NetLine struct {
	IVARate decimal.Decimal
	Amount  decimal.Decimal
}

// Perception is a tax the seller collects on top of the invoice. Rate is a percentage.
type Perception struct {
	Kind         TaxKind         `json:"kind"`
	Jurisdiction string          `json:"jurisdiction,omitempty"`
	Rate         decimal.Decimal `json:"rate"`
}

// TaxLine is a computed tax row ready to become an ERPNext taxes entry
type TaxLine struct {
	Kind            TaxKind         `json:"kind"`
	Description     string          `json:"description"`
	AccountHead     string          `json:"account_head"`
	AliquotCode     int             `json:"aliquot_code,omitempty"`
	Rate            decimal.Decimal `json:"rate"`
	Base            decimal.Decimal `json:"base"`
	Amount          decimal.Decimal `json:"amount"`
	IncludedInPrice bool            `json:"included_in_price"`
}

// AccountMap resolves ledger accounts for IVA rates and perceptions
type AccountMap struct {
	iva         map[string]string
	perceptions map[string]string
}

// NewAccountMap creates an empty map
func NewAccountMap() *AccountMap {
	return &AccountMap{iva: map[string]string{}, perceptions: map[string]string{}}
}

func perceptionKey(kind TaxKind, jurisdiction string) string {
	return string(kind) + "|" + strings.ToUpper(strings.TrimSpace(jurisdiction))
}

// SetIVA maps an IVA rate to an account
func (m *AccountMap) SetIVA(rate decimal.Decimal, account string) *AccountMap {
	m.iva[rate.String()] = account
	return m
}

// SetPerception maps a perception kind and jurisdiction to an account.
// An empty jurisdiction acts as the fallback for the kind.
func (m *AccountMap) SetPerception(kind TaxKind, jurisdiction, account string) *AccountMap {
	m.perceptions[perceptionKey(kind, jurisdiction)] = account
	return m
}

// IVAAccount returns the account for an IVA rate
func (m *AccountMap) IVAAccount(rate decimal.Decimal) (string, bool) {
	a, ok := m.iva[rate.String()]
	return a, ok
}

// PerceptionAccount returns the account for a perception, falling back to the kind default
func (m *AccountMap) PerceptionAccount(kind TaxKind, jurisdiction string) (string, bool) {
	if a, ok := m.perceptions[perceptionKey(kind, jurisdiction)]; ok {
		return a, true
	}
	a, ok := m.perceptions[perceptionKey(kind, "")]
	return a, ok
}

// Round2 rounds half away from zero to cents
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// TaxSummary is the outcome of BuildTaxLines
type TaxSummary struct {
	Lines    []TaxLine       `json:"lines"`
	NetTotal decimal.Decimal `json:"net_total"`
	TaxTotal decimal.Decimal `json:"tax_total"`
}

// BuildTaxLines computes the IVA and perception rows for a voucher.
//
// A and M discriminate IVA per aliquot. E accepts only 0% and emits no IVA rows.
// B treats amounts as IVA-included and emits rows flagged IncludedInPrice.
// C emits no IVA rows. Perceptions apply on the total net.
func BuildTaxLines(letter Letter, lines []NetLine, perceptions []Perception, accounts *AccountMap) (TaxSummary, error) {
	if accounts == nil {
		accounts = NewAccountMap()
	}

	type bucket struct {
		aliquot Aliquot
		amount  decimal.Decimal
	}
	buckets := map[int]*bucket{}
	for _, l := range lines {
		if letter == LetterC {
			continue
		}
		a, ok := AliquotByRate(l.IVARate)
		if !ok {
			return TaxSummary{}, fmt.Errorf("rate %s: %w", l.IVARate, ErrUnknownAliquot)
		}
		if letter == LetterE && !a.Rate.IsZero() {
			return TaxSummary{}, ErrExportWithIVA
		}
		b, ok := buckets[a.Code]
		if !ok {
			b = &bucket{aliquot: a}
			buckets[a.Code] = b
		}
		b.amount = b.amount.Add(l.Amount)
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].aliquot.Rate.LessThan(ordered[j].aliquot.Rate) })

	var summary TaxSummary
	if letter == LetterC {
		for _, l := range lines {
			summary.NetTotal = summary.NetTotal.Add(l.Amount)
		}
	}

	for _, b := range ordered {
		rate := b.aliquot.Rate
		base := b.amount
		var amount decimal.Decimal
		if letter == LetterB {
			base = Round2(b.amount.Mul(hundred).Div(hundred.Add(rate)))
			amount = b.amount.Sub(base)
		} else {
			amount = Round2(base.Mul(rate).Div(hundred))
		}
		summary.NetTotal = summary.NetTotal.Add(base)

		if rate.IsZero() {
			continue
		}
		account, ok := accounts.IVAAccount(rate)
		if !ok {
			return TaxSummary{}, fmt.Errorf("IVA %s%%: %w", rate, ErrMissingAccount)
		}
		summary.Lines = append(summary.Lines, TaxLine{
			Kind:            TaxIVA,
			Description:     b.aliquot.Description,
			AccountHead:     account,
			AliquotCode:     b.aliquot.Code,
			Rate:            rate,
			Base:            base,
			Amount:          amount,
			IncludedInPrice: letter == LetterB,
		})
		summary.TaxTotal = summary.TaxTotal.Add(amount)
	}

	for _, p := range perceptions {
		if !p.Kind.IsValid() {
			return TaxSummary{}, fmt.Errorf("perception kind %q is not valid", p.Kind)
		}
		if p.Rate.IsNegative() {
			return TaxSummary{}, fmt.Errorf("perception %s: negative rate", p.Kind)
		}
		account, ok := accounts.PerceptionAccount(p.Kind, p.Jurisdiction)
		if !ok {
			return TaxSummary{}, fmt.Errorf("perception %s %s: %w", p.Kind, p.Jurisdiction, ErrMissingAccount)
		}
		amount := Round2(summary.NetTotal.Mul(p.Rate).Div(hundred))
		desc := "Percepción " + string(p.Kind)
		if p.Jurisdiction != "" {
			desc += " " + p.Jurisdiction
		}
		summary.Lines = append(summary.Lines, TaxLine{
			Kind:        p.Kind,
			Description: desc,
			AccountHead: account,
			Rate:        p.Rate,
			Base:        summary.NetTotal,
			Amount:      amount,
		})
		summary.TaxTotal = summary.TaxTotal.Add(amount)
	}

	return summary, nil
}
