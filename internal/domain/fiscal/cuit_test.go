package fiscal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCUIT(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"valid plain", "20123456786", nil},
		{"valid formatted", "20-12345678-6", nil},
		{"valid with dots and spaces", "30.71234567 1", nil},
		{"check digit eleven maps to zero", "20000000060", nil},
		{"wrong check digit", "20123456787", ErrInvalidCUITCheckDigit},
		{"check digit ten is never valid", "20000000019", ErrInvalidCUITCheckDigit},
		{"bad prefix", "21123456786", ErrInvalidCUITPrefix},
		{"too short", "2012345678", ErrInvalidCUITLength},
		{"too long", "201234567861", ErrInvalidCUITLength},
		{"empty", "", ErrInvalidCUITLength},
		{"arabic-indic digit is not a digit", "20000000\u06607", ErrInvalidCUITLength},
		{"fullwidth digits", "２０１２３４５６７８６", ErrInvalidCUITLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCUIT(tt.in)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNormalizeAndFormatCUIT(t *testing.T) {
	assert.Equal(t, "20123456786", NormalizeCUIT("20-12345678-6"))
	assert.Equal(t, "20-12345678-6", FormatCUIT("20123456786"))
	assert.Equal(t, "20-12345678-6", FormatCUIT("20 12345678 6"))
	assert.Equal(t, "123", FormatCUIT("123"))
	assert.Equal(t, "200000007", NormalizeCUIT("20000000\u06607"))
	assert.Equal(t, "20000000\u06607", FormatCUIT("20000000\u06607"))
}
