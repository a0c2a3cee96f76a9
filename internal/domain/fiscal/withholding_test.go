package fiscal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeWithholding(t *testing.T) {
	rule := WithholdingRule{Kind: TaxGanancias, Rate: d("2"), Threshold: d("67170"), Minimum: d("240")}

	tests := []struct {
		name          string
		prev, cur     string
		taxable, want string
	}{
		{"first payment over threshold", "0", "100000", "32830", "656.6"},
		{"accumulated still under threshold", "50000", "10000", "0", "0"},
		{"threshold crossed by this payment", "60000", "30000", "22830", "456.6"},
		{"threshold already exceeded, below minimum", "70000", "10000", "10000", "0"},
		{"threshold already exceeded", "70000", "20000", "20000", "400"},
		{"zero payment", "80000", "0", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ComputeWithholding(rule, d(tt.prev), d(tt.cur))
			assert.True(t, w.Taxable.Equal(d(tt.taxable)), "taxable got %s", w.Taxable)
			assert.True(t, w.Amount.Equal(d(tt.want)), "amount got %s", w.Amount)
			assert.True(t, w.PreviousBase.Equal(d(tt.prev)))
		})
	}
}

func TestComputeWithholding_Rounding(t *testing.T) {
	rule := WithholdingRule{Kind: TaxIIBB, Rate: d("1.75"), Threshold: d("0"), Minimum: d("0")}
	w := ComputeWithholding(rule, d("0"), d("1000.30"))
	// 1000.30 * 1.75% = 17.50525
	assert.True(t, w.Amount.Equal(d("17.51")), "got %s", w.Amount)
}
