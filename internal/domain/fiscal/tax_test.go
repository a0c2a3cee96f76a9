package fiscal

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testAccounts() *AccountMap {
	return NewAccountMap().
		SetIVA(d("21"), "IVA Débito Fiscal 21% - AC").
		SetIVA(d("10.5"), "IVA Débito Fiscal 10.5% - AC").
		SetPerception(TaxIIBB, "", "Percepción IIBB - AC").
		SetPerception(TaxIIBB, "CABA", "Percepción IIBB CABA - AC")
}

func TestBuildTaxLines_LetterA(t *testing.T) {
	lines := []NetLine{
		{IVARate: d("21"), Amount: d("1000")},
		{IVARate: d("10.5"), Amount: d("200")},
		{IVARate: d("21.0"), Amount: d("0.5")},
		{IVARate: d("0"), Amount: d("50")},
	}
	perceptions := []Perception{{Kind: TaxIIBB, Jurisdiction: "Buenos Aires", Rate: d("3")}}

	summary, err := BuildTaxLines(LetterA, lines, perceptions, testAccounts())
	require.NoError(t, err)

	require.Len(t, summary.Lines, 3)
	iva105 := summary.Lines[0]
	assert.Equal(t, TaxIVA, iva105.Kind)
	assert.Equal(t, 4, iva105.AliquotCode)
	assert.True(t, iva105.Base.Equal(d("200")))
	assert.True(t, iva105.Amount.Equal(d("21")))
	assert.False(t, iva105.IncludedInPrice)

	iva21 := summary.Lines[1]
	assert.Equal(t, 5, iva21.AliquotCode)
	assert.Equal(t, "IVA Débito Fiscal 21% - AC", iva21.AccountHead)
	assert.True(t, iva21.Base.Equal(d("1000.5")))
	assert.True(t, iva21.Amount.Equal(d("210.11")), "1000.5 * 21%% = 210.105 rounds half up, got %s", iva21.Amount)

	perc := summary.Lines[2]
	assert.Equal(t, TaxIIBB, perc.Kind)
	assert.Equal(t, "Percepción IIBB - AC", perc.AccountHead, "falls back to the kind default")
	assert.True(t, perc.Base.Equal(d("1250.5")))
	assert.True(t, perc.Amount.Equal(d("37.52")), "got %s", perc.Amount)

	assert.True(t, summary.NetTotal.Equal(d("1250.5")))
	assert.True(t, summary.TaxTotal.Equal(d("268.63")), "got %s", summary.TaxTotal)
}

func TestBuildTaxLines_LetterB_IncludedInPrice(t *testing.T) {
	summary, err := BuildTaxLines(LetterB, []NetLine{
		{IVARate: d("21"), Amount: d("121")},
		{IVARate: d("21"), Amount: d("100")},
	}, nil, testAccounts())
	require.NoError(t, err)

	require.Len(t, summary.Lines, 1)
	line := summary.Lines[0]
	assert.True(t, line.IncludedInPrice)
	// 221 / 1.21 = 182.644... -> 182.64
	assert.True(t, line.Base.Equal(d("182.64")), "got %s", line.Base)
	assert.True(t, line.Amount.Equal(d("38.36")), "got %s", line.Amount)
	assert.True(t, summary.NetTotal.Equal(d("182.64")))
}

func TestBuildTaxLines_LetterC_NoIVA(t *testing.T) {
	summary, err := BuildTaxLines(LetterC, []NetLine{
		{IVARate: d("21"), Amount: d("100")},
		{IVARate: d("19"), Amount: d("100")},
	}, []Perception{{Kind: TaxIIBB, Jurisdiction: "caba", Rate: d("1.5")}}, testAccounts())
	require.NoError(t, err)

	require.Len(t, summary.Lines, 1)
	assert.Equal(t, "Percepción IIBB CABA - AC", summary.Lines[0].AccountHead)
	assert.True(t, summary.Lines[0].Amount.Equal(d("3")))
	assert.True(t, summary.NetTotal.Equal(d("200")))
}

func TestBuildTaxLines_LetterE(t *testing.T) {
	summary, err := BuildTaxLines(LetterE, []NetLine{{IVARate: d("0"), Amount: d("500")}}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, summary.Lines)
	assert.True(t, summary.NetTotal.Equal(d("500")))

	_, err = BuildTaxLines(LetterE, []NetLine{{IVARate: d("21"), Amount: d("500")}}, nil, testAccounts())
	assert.ErrorIs(t, err, ErrExportWithIVA)
}

func TestBuildTaxLines_Errors(t *testing.T) {
	_, err := BuildTaxLines(LetterA, []NetLine{{IVARate: d("19"), Amount: d("1")}}, nil, testAccounts())
	assert.ErrorIs(t, err, ErrUnknownAliquot)

	_, err = BuildTaxLines(LetterA, []NetLine{{IVARate: d("27"), Amount: d("1")}}, nil, testAccounts())
	assert.ErrorIs(t, err, ErrMissingAccount)

	_, err = BuildTaxLines(LetterA, nil, []Perception{{Kind: TaxGanancias, Rate: d("1")}}, testAccounts())
	assert.ErrorIs(t, err, ErrMissingAccount)

	_, err = BuildTaxLines(LetterA, nil, []Perception{{Kind: "OTHER", Rate: d("1")}}, testAccounts())
	assert.Error(t, err)

	_, err = BuildTaxLines(LetterA, nil, []Perception{{Kind: TaxIIBB, Rate: d("-1")}}, testAccounts())
	assert.Error(t, err)
}

func TestBuildTaxLines_CreditNoteNegativeAmounts(t *testing.T) {
	summary, err := BuildTaxLines(LetterA, []NetLine{{IVARate: d("21"), Amount: d("-100")}}, nil, testAccounts())
	require.NoError(t, err)
	require.Len(t, summary.Lines, 1)
	assert.True(t, summary.Lines[0].Amount.Equal(d("-21")))
}
