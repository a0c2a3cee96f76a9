package fiscal

import "github.com/shopspring/decimal"

// WithholdingRule is a payer-side withholding regime. Rate is a percentage,
// Threshold is the monthly non-taxable amount and Minimum the smallest
// amount worth withholding.
type WithholdingRule struct {
	Kind      TaxKind         `json:"kind"`
	Rate      decimal.Decimal `json:"rate"`
	Threshold decimal.Decimal `json:"threshold"`
	Minimum   decimal.Decimal `json:"minimum"`
}

// Withholding is the result of applying a rule to a payment
type Withholding struct {
	PreviousBase decimal.Decimal `json:"previous_base"`
	CurrentBase  decimal.Decimal `json:"current_base"`
	Taxable      decimal.Decimal `json:"taxable"`
	Amount       decimal.Decimal `json:"amount"`
}

// ComputeWithholding applies rule to a payment of currentBase when payments
// of previousBase were already made to the same supplier in the period.
// Only the part of the accumulated base over Threshold that was not taxed
// before is taxable: max(0, prev+cur-T) - max(0, prev-T).
func ComputeWithholding(rule WithholdingRule, previousBase, currentBase decimal.Decimal) Withholding {
	zero := decimal.Zero
	taxable := decimal.Max(zero, previousBase.Add(currentBase).Sub(rule.Threshold)).
		Sub(decimal.Max(zero, previousBase.Sub(rule.Threshold)))
	if taxable.IsNegative() {
		taxable = zero
	}

	amount := Round2(taxable.Mul(rule.Rate).Div(hundred))
	if amount.LessThan(rule.Minimum) {
		amount = zero
	}

	return Withholding{
		PreviousBase: previousBase,
		CurrentBase:  currentBase,
		Taxable:      taxable,
		Amount:       amount,
	}
}
