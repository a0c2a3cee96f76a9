package fiscal

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CompanyProfile is the fiscal identity of an ERPNext company
type CompanyProfile struct {
	Name               string       `json:"name"`
	Abbr               string       `json:"abbr"`
	CUIT               string       `json:"cuit"`
	IVACondition       IVACondition `json:"iva_condition"`
	PointsOfSale       []int        `json:"points_of_sale"`
	DefaultPointOfSale int          `json:"default_point_of_sale"`
	GrossIncomeNumber  string       `json:"gross_income_number,omitempty"`
	ActivityStart      string       `json:"activity_start,omitempty"`
	// IssuesM marks RI issuers AFIP restricted to letter M instead of A.
	IssuesM bool `json:"issues_m,omitempty"`
}

// ParsePointsOfSale reads the custom field value, "1, 3;5" or "1 3 5"
func ParsePointsOfSale(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t'
	})
	seen := map[int]bool{}
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("point of sale %q: not a number", f)
		}
		if err := ValidatePointOfSale(n); err != nil {
			return nil, fmt.Errorf("point of sale %d: %w", n, err)
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out, nil
}

// ResolvePointOfSale returns pos when the company owns it, or the default when pos is 0
func (p CompanyProfile) ResolvePointOfSale(pos int) (int, error) {
	if pos == 0 {
		pos = p.DefaultPointOfSale
	}
	if pos == 0 {
		return 0, fmt.Errorf("company %s has no point of sale configured", p.Name)
	}
	for _, owned := range p.PointsOfSale {
		if owned == pos {
			return pos, nil
		}
	}
	return 0, fmt.Errorf("point of sale %d does not belong to company %s", pos, p.Name)
}

// LetterFor picks the letter this company must use for a receiver
func (p CompanyProfile) LetterFor(receiver IVACondition) (Letter, error) {
	l, err := DetermineLetter(p.IVACondition, receiver)
	if err != nil {
		return "", err
	}
	if l == LetterA && p.IssuesM {
		return LetterM, nil
	}
	return l, nil
}
