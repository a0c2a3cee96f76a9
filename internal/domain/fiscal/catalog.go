// Package fiscal holds the Argentine (AFIP) rules layered on top of ERPNext:
// voucher catalog, invoice letters, naming series, CUIT checks, tax rows and
// withholdings. Everything here is pure and safe for concurrent use.
package fiscal

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/erp/bff/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// VoucherKind is the voucher class: invoice, debit note or credit note
type VoucherKind string

const (
	KindInvoice    VoucherKind = "FAC"
	KindDebitNote  VoucherKind = "ND"
	KindCreditNote VoucherKind = "NC"
)

// IsValid reports whether k is a known voucher kind
func (k VoucherKind) IsValid() bool {
	switch k {
	case KindInvoice, KindDebitNote, KindCreditNote:
		return true
	}
	return false
}

// Letter is the AFIP voucher letter
type Letter string

const (
	LetterA Letter = "A"
	LetterB Letter = "B"
	LetterC Letter = "C"
	LetterE Letter = "E"
	LetterM Letter = "M"
)

// IsValid reports whether l is a known letter
func (l Letter) IsValid() bool {
	switch l {
	case LetterA, LetterB, LetterC, LetterE, LetterM:
		return true
	}
	return false
}

// DiscriminatesIVA reports whether vouchers of this letter show IVA as separate rows
func (l Letter) DiscriminatesIVA() bool {
	return l == LetterA || l == LetterM || l == LetterE
}

// VoucherType is an entry of the AFIP voucher type table
type VoucherType struct {
	Code        int         `json:"code"`
	Kind        VoucherKind `json:"kind"`
	Letter      Letter      `json:"letter"`
	FCE         bool        `json:"fce"`
	Description string      `json:"description"`
}

// Aliquot is an AFIP IVA aliquot
type Aliquot struct {
	Code        int             `json:"code"`
	Rate        decimal.Decimal `json:"rate"`
	Description string          `json:"description"`
}

type conditionEntry struct {
	Code     IVACondition `yaml:"code"`
	AFIPCode int          `yaml:"afip_code"`
	Name     string       `yaml:"name"`
	Aliases  []string     `yaml:"aliases"`
}

type catalogFile struct {
	VoucherTypes []struct {
		Code        int    `yaml:"code"`
		Kind        string `yaml:"kind"`
		Letter      string `yaml:"letter"`
		FCE         bool   `yaml:"fce"`
		Description string `yaml:"description"`
	} `yaml:"voucher_types"`
	Aliquots []struct {
		Code        int    `yaml:"code"`
		Rate        string `yaml:"rate"`
		Description string `yaml:"description"`
	} `yaml:"aliquots"`
	Conditions []conditionEntry `yaml:"iva_conditions"`
}

type voucherKey struct {
	kind   VoucherKind
	letter Letter
	fce    bool
}

type catalog struct {
	vouchers    []VoucherType
	byCode      map[int]VoucherType
	byKey       map[voucherKey]VoucherType
	aliquots    []Aliquot
	conditions  map[IVACondition]conditionEntry
	conditionBy map[string]IVACondition
}

//go:embed catalog.yaml
var catalogYAML []byte

var defaultCatalog = mustLoadCatalog(catalogYAML)

func mustLoadCatalog(data []byte) *catalog {
	c, err := loadCatalog(data)
	if err != nil {
		panic(fmt.Sprintf("fiscal: invalid embedded catalog: %v", err))
	}
	return c
}

func loadCatalog(data []byte) (*catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &catalog{
		byCode:      make(map[int]VoucherType, len(f.VoucherTypes)),
		byKey:       make(map[voucherKey]VoucherType, len(f.VoucherTypes)),
		conditions:  make(map[IVACondition]conditionEntry, len(f.Conditions)),
		conditionBy: make(map[string]IVACondition),
	}

	for _, raw := range f.VoucherTypes {
		vt := VoucherType{
			Code:        raw.Code,
			Kind:        VoucherKind(raw.Kind),
			Letter:      Letter(raw.Letter),
			FCE:         raw.FCE,
			Description: raw.Description,
		}
		if !vt.Kind.IsValid() || !vt.Letter.IsValid() {
			return nil, fmt.Errorf("voucher type %d: invalid kind %q or letter %q", raw.Code, raw.Kind, raw.Letter)
		}
		if _, dup := c.byCode[vt.Code]; dup {
			return nil, fmt.Errorf("voucher type %d: duplicate code", vt.Code)
		}
		key := voucherKey{vt.Kind, vt.Letter, vt.FCE}
		if _, dup := c.byKey[key]; dup {
			return nil, fmt.Errorf("voucher type %d: duplicate kind/letter/fce", vt.Code)
		}
		c.byCode[vt.Code] = vt
		c.byKey[key] = vt
		c.vouchers = append(c.vouchers, vt)
	}
	sort.Slice(c.vouchers, func(i, j int) bool { return c.vouchers[i].Code < c.vouchers[j].Code })

	for _, raw := range f.Aliquots {
		rate, err := decimal.NewFromString(raw.Rate)
		if err != nil {
			return nil, fmt.Errorf("aliquot %d: %w", raw.Code, err)
		}
		c.aliquots = append(c.aliquots, Aliquot{Code: raw.Code, Rate: rate, Description: raw.Description})
	}
	sort.Slice(c.aliquots, func(i, j int) bool { return c.aliquots[i].Rate.LessThan(c.aliquots[j].Rate) })

	for _, entry := range f.Conditions {
		if _, dup := c.conditions[entry.Code]; dup {
			return nil, fmt.Errorf("iva condition %s: duplicate code", entry.Code)
		}
		c.conditions[entry.Code] = entry
		keys := append([]string{string(entry.Code), entry.Name}, entry.Aliases...)
		for _, k := range keys {
			folded := shared.FoldKey(k)
			if prev, dup := c.conditionBy[folded]; dup && prev != entry.Code {
				return nil, fmt.Errorf("iva condition alias %q used by %s and %s", k, prev, entry.Code)
			}
			c.conditionBy[folded] = entry.Code
		}
	}

	return c, nil
}

// VoucherTypes returns the full voucher table ordered by code
func VoucherTypes() []VoucherType {
	out := make([]VoucherType, len(defaultCatalog.vouchers))
	copy(out, defaultCatalog.vouchers)
	return out
}

// VoucherTypeByCode looks up a voucher type by its AFIP code
func VoucherTypeByCode(code int) (VoucherType, bool) {
	vt, ok := defaultCatalog.byCode[code]
	return vt, ok
}

// LookupVoucherType finds the voucher type for a kind and letter.
// FCE variants exist only for letters A, B and C.
func LookupVoucherType(kind VoucherKind, letter Letter, fce bool) (VoucherType, bool) {
	vt, ok := defaultCatalog.byKey[voucherKey{kind, letter, fce}]
	return vt, ok
}

// Aliquots returns the IVA aliquots ordered by rate
func Aliquots() []Aliquot {
	out := make([]Aliquot, len(defaultCatalog.aliquots))
	copy(out, defaultCatalog.aliquots)
	return out
}

// AliquotByRate finds the aliquot for a percentage rate (21, 10.5, ...)
func AliquotByRate(rate decimal.Decimal) (Aliquot, bool) {
	for _, a := range defaultCatalog.aliquots {
		if a.Rate.Equal(rate) {
			return a, true
		}
	}
	return Aliquot{}, false
}

// AliquotByCode finds the aliquot for an AFIP aliquot code
func AliquotByCode(code int) (Aliquot, bool) {
	for _, a := range defaultCatalog.aliquots {
		if a.Code == code {
			return a, true
		}
	}
	return Aliquot{}, false
}
