package fiscal

import (
	"errors"

	"github.com/erp/bff/internal/domain/shared"
)

// IVACondition is a party's status before IVA
type IVACondition string

const (
	ConditionRI  IVACondition = "RI"  // Responsable Inscripto
	ConditionMT  IVACondition = "MT"  // Monotributo
	ConditionEX  IVACondition = "EX"  // Exento
	ConditionCF  IVACondition = "CF"  // Consumidor Final
	ConditionNR  IVACondition = "NR"  // No Responsable / No Alcanzado
	ConditionEXT IVACondition = "EXT" // Cliente o proveedor del exterior
)

// ErrUnknownIVACondition is returned when a condition text matches no known condition
var ErrUnknownIVACondition = errors.New("unknown IVA condition")

// ParseIVACondition accepts short codes and the Spanish names used in ERPNext
// custom fields, ignoring case, accents and extra spaces.
func ParseIVACondition(s string) (IVACondition, error) {
	key := shared.FoldKey(s)
	if key == "" {
		return "", ErrUnknownIVACondition
	}
	if c, ok := defaultCatalog.conditionBy[key]; ok {
		return c, nil
	}
	return "", ErrUnknownIVACondition
}

// IsValid reports whether c is a known condition
func (c IVACondition) IsValid() bool {
	_, ok := defaultCatalog.conditions[c]
	return ok
}

// Name returns the AFIP display name
func (c IVACondition) Name() string {
	return defaultCatalog.conditions[c].Name
}

// AFIPCode returns the AFIP receiver condition code, 0 if unknown
func (c IVACondition) AFIPCode() int {
	return defaultCatalog.conditions[c].AFIPCode
}
