package fiscal

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	MaxPointOfSale   = 99999
	MaxVoucherNumber = 99999999
)

var (
	ErrInvalidPointOfSale   = errors.New("point of sale must be between 1 and 99999")
	ErrInvalidVoucherNumber = errors.New("voucher number must be between 1 and 99999999")
	ErrInvalidPrefix        = errors.New("naming prefix must be 1 to 5 letters or digits")
	ErrNotAFIPName          = errors.New("not an AFIP voucher name")
)

var (
	prefixPattern  = regexp.MustCompile(`^[A-Z0-9]{1,5}$`)
	namePattern    = regexp.MustCompile(`^([A-Z0-9]{1,5})-(FAC|ND|NC)-([ABCEM])-(\d{5})-(\d{8})(?:-(\d{1,3}))?$`)
	numberSplitter = regexp.MustCompile(`^\s*(\d{1,5})\s*-\s*(\d{1,8})\s*$`)
)

// VoucherName is the decoded form of an ERPNext document name like
// FE-FAC-A-00003-00000042 (prefix, kind, letter, point of sale, number).
// ERPNext appends -1, -2... when a cancelled document is amended.
type VoucherName struct {
	Prefix      string      `json:"prefix"`
	Kind        VoucherKind `json:"kind"`
	Letter      Letter      `json:"letter"`
	PointOfSale int         `json:"point_of_sale"`
	Number      int         `json:"number"`
	Amendment   int         `json:"amendment,omitempty"`
}

// ValidatePointOfSale checks the AFIP point of sale range
func ValidatePointOfSale(pos int) error {
	if pos < 1 || pos > MaxPointOfSale {
		return ErrInvalidPointOfSale
	}
	return nil
}

// ValidateVoucherNumber checks the AFIP voucher number range
func ValidateVoucherNumber(number int) error {
	if number < 1 || number > MaxVoucherNumber {
		return ErrInvalidVoucherNumber
	}
	return nil
}

// NamingSeries builds the ERPNext naming series for a voucher class,
// e.g. FE-FAC-A-00003-.######## where the hashes are filled by ERPNext.
func NamingSeries(prefix string, kind VoucherKind, letter Letter, pos int) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if !prefixPattern.MatchString(prefix) {
		return "", ErrInvalidPrefix
	}
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid voucher kind %q", kind)
	}
	if !letter.IsValid() {
		return "", fmt.Errorf("invalid letter %q", letter)
	}
	if err := ValidatePointOfSale(pos); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s-%05d-.########", prefix, kind, letter, pos), nil
}

// DocumentName renders the name ERPNext assigns to the voucher
func DocumentName(v VoucherName) (string, error) {
	series, err := NamingSeries(v.Prefix, v.Kind, v.Letter, v.PointOfSale)
	if err != nil {
		return "", err
	}
	if err := ValidateVoucherNumber(v.Number); err != nil {
		return "", err
	}
	name := strings.TrimSuffix(series, ".########") + fmt.Sprintf("%08d", v.Number)
	if v.Amendment > 0 {
		name += "-" + strconv.Itoa(v.Amendment)
	}
	return name, nil
}

// ParseDocumentName decodes an AFIP voucher name, case-insensitively
func ParseDocumentName(name string) (VoucherName, error) {
	m := namePattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(name)))
	if m == nil {
		return VoucherName{}, ErrNotAFIPName
	}

	pos, _ := strconv.Atoi(m[4])
	number, _ := strconv.Atoi(m[5])
	if ValidatePointOfSale(pos) != nil || ValidateVoucherNumber(number) != nil {
		return VoucherName{}, ErrNotAFIPName
	}

	v := VoucherName{
		Prefix:      m[1],
		Kind:        VoucherKind(m[2]),
		Letter:      Letter(m[3]),
		PointOfSale: pos,
		Number:      number,
	}
	if m[6] != "" {
		v.Amendment, _ = strconv.Atoi(m[6])
	}
	return v, nil
}

// FormatVoucherNumber renders the printed voucher number, e.g. 00003-00000042.
// Callers validate ranges first.
func FormatVoucherNumber(pos, number int) string {
	return fmt.Sprintf("%05d-%08d", pos, number)
}

// ParseVoucherNumber accepts "3-42" or "00003-00000042"
func ParseVoucherNumber(s string) (pos, number int, err error) {
	m := numberSplitter.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("voucher number %q: expected POS-NUMBER", s)
	}
	pos, _ = strconv.Atoi(m[1])
	number, _ = strconv.Atoi(m[2])
	if err := ValidatePointOfSale(pos); err != nil {
		return 0, 0, err
	}
	if err := ValidateVoucherNumber(number); err != nil {
		return 0, 0, err
	}
	return pos, number, nil
}
