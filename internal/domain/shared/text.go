package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldKey turns user or ERPNext supplied text into a comparison key:
// diacritics removed, upper-cased, inner whitespace collapsed to one space.
// "  Depósito   Central " becomes "DEPOSITO CENTRAL".
func FoldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Upper(language.Und).String(stripped)), " ")
}
