package fiscal

import (
	"errors"
	"strings"
)

var (
	ErrInvalidCUITLength     = errors.New("CUIT must have 11 digits")
	ErrInvalidCUITPrefix     = errors.New("CUIT prefix is not valid")
	ErrInvalidCUITCheckDigit = errors.New("CUIT check digit does not match")
)

var (
	validCUITPrefixes = map[string]bool{"20": true, "23": true, "24": true, "25": true, "26": true, "27": true, "30": true, "33": true, "34": true}
	cuitWeights       = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}
)

// NormalizeCUIT keeps only the ASCII digits of s
func NormalizeCUIT(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// ValidateCUIT checks length, prefix and the mod-11 check digit.
// Separators are ignored.
func ValidateCUIT(s string) error {
	digits := NormalizeCUIT(s)
	if len(digits) != 11 {
		return ErrInvalidCUITLength
	}
	if !validCUITPrefixes[digits[:2]] {
		return ErrInvalidCUITPrefix
	}

	sum := 0
	for i, w := range cuitWeights {
		sum += int(digits[i]-'0') * w
	}
	check := 11 - sum%11
	switch check {
	case 11:
		check = 0
	case 10:
		return ErrInvalidCUITCheckDigit
	}
	if check != int(digits[10]-'0') {
		return ErrInvalidCUITCheckDigit
	}
	return nil
}

// FormatCUIT renders 20123456786 as 20-12345678-6; other input is returned unchanged
func FormatCUIT(s string) string {
	digits := NormalizeCUIT(s)
	if len(digits) != 11 {
		return s
	}
	return digits[:2] + "-" + digits[2:10] + "-" + digits[10:]
}
