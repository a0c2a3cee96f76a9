// Package stock interprets ERPNext warehouse names and turns physical counts
// into stock reconciliation documents.
//
// Warehouses follow the naming convention
//
//	BASE[-ROLE[-OWNER]] - ABBR
//
// where BASE is the physical location, ABBR the ERPNext company suffix and
// ROLE one of CON (third-party stock we hold, OWNER required), CSG (our stock
// held by a customer, OWNER required) or TRN (in transit, no owner).
// A name without ROLE is the company's own stock at BASE.
package stock

import (
	"errors"
	"regexp"
	"strings"

	"github.com/erp/bff/internal/domain/shared"
)

// Role is the ownership role encoded in a warehouse name
type Role string

const (
	RoleOwn         Role = "OWN"
	RoleConsignment Role = "CON"
	RoleConsigned   Role = "CSG"
	RoleTransit     Role = "TRN"
)

const companySeparator = " - "

var (
	ErrEmptyWarehouseCode    = errors.New("warehouse code is empty")
	ErrInvalidWarehouseToken = errors.New("warehouse code has an invalid token")
	ErrUnknownRole           = errors.New("warehouse role is not CON, CSG or TRN")
	ErrOwnerRequired         = errors.New("warehouse role requires an owner")
	ErrUnexpectedOwner       = errors.New("warehouse role does not take an owner")
	ErrNotALocation          = errors.New("location must not carry a role")
)

var tokenPattern = regexp.MustCompile(`^[A-Z0-9]+( [A-Z0-9]+)*$`)

// WarehouseCode is a tokenized warehouse name
type WarehouseCode struct {
	Base    string `json:"base"`
	Role    Role   `json:"role"`
	Owner   string `json:"owner,omitempty"`
	Company string `json:"company,omitempty"`
}

// TokenizeWarehouseCode parses an ERPNext warehouse name. Tokens are
// upper-cased and stripped of diacritics; the company suffix is split on
// the last " - ".
func TokenizeWarehouseCode(name string) (WarehouseCode, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return WarehouseCode{}, ErrEmptyWarehouseCode
	}

	label, abbr := name, ""
	if i := strings.LastIndex(name, companySeparator); i >= 0 {
		label, abbr = name[:i], name[i+len(companySeparator):]
		abbr = shared.FoldKey(abbr)
		if abbr == "" {
			return WarehouseCode{}, ErrInvalidWarehouseToken
		}
	}

	parts := strings.Split(label, "-")
	tokens := make([]string, len(parts))
	for i, p := range parts {
		tokens[i] = shared.FoldKey(p)
		if !tokenPattern.MatchString(tokens[i]) {
			return WarehouseCode{}, ErrInvalidWarehouseToken
		}
	}

	code := WarehouseCode{Base: tokens[0], Role: RoleOwn, Company: abbr}
	if len(tokens) == 1 {
		return code, nil
	}
	if len(tokens) > 3 {
		return WarehouseCode{}, ErrInvalidWarehouseToken
	}

	code.Role = Role(tokens[1])
	switch code.Role {
	case RoleConsignment, RoleConsigned:
		if len(tokens) != 3 {
			return WarehouseCode{}, ErrOwnerRequired
		}
		code.Owner = tokens[2]
	case RoleTransit:
		if len(tokens) == 3 {
			return WarehouseCode{}, ErrUnexpectedOwner
		}
	default:
		return WarehouseCode{}, ErrUnknownRole
	}
	return code, nil
}

// String rebuilds the canonical warehouse name
func (w WarehouseCode) String() string {
	var b strings.Builder
	b.WriteString(w.Base)
	if w.Role != RoleOwn && w.Role != "" {
		b.WriteString("-")
		b.WriteString(string(w.Role))
		if w.Owner != "" {
			b.WriteString("-")
			b.WriteString(w.Owner)
		}
	}
	if w.Company != "" {
		b.WriteString(companySeparator)
		b.WriteString(w.Company)
	}
	return b.String()
}

// Location returns BASE - ABBR, the physical place the warehouse belongs to
func (w WarehouseCode) Location() string {
	if w.Company == "" {
		return w.Base
	}
	return w.Base + companySeparator + w.Company
}

// IsPhysical reports whether stock in this warehouse sits at its location
func (w WarehouseCode) IsPhysical() bool {
	return w.Role != RoleTransit
}

// IsOwn reports whether this is the company's own stock at the location
func (w WarehouseCode) IsOwn() bool {
	return w.Role == RoleOwn || w.Role == ""
}

// NormalizeLocation canonicalizes a location typed by a user ("Depósito - ac")
// and rejects names that carry a role.
func NormalizeLocation(location string) (string, error) {
	code, err := TokenizeWarehouseCode(location)
	if err != nil {
		return "", err
	}
	if !code.IsOwn() {
		return "", ErrNotALocation
	}
	return code.Location(), nil
}
