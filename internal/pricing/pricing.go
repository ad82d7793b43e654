package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DiscountQuote keeps the exact (unrounded) discounted total alongside the
// original amount so the pre-discount value stays recoverable for display.
type DiscountQuote struct {
	OriginalAmount decimal.Decimal
	DiscountPct    int
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}

// Discount computes amount * (1 - pct/100) exactly. Rounding happens only at
// the display boundary, never here.
func Discount(amount decimal.Decimal, pct int) (*DiscountQuote, error) {
	if pct < 0 || pct > 100 {
		return nil, fmt.Errorf("Discount: percentage out of range: %d", pct)
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, fmt.Errorf("Discount: amount must be positive, got %s", amount)
	}

	factor := hundred.Sub(decimal.NewFromInt(int64(pct))).Div(hundred)
	final := amount.Mul(factor)

	return &DiscountQuote{
		OriginalAmount: amount,
		DiscountPct:    pct,
		DiscountAmount: amount.Sub(final),
		FinalAmount:    final,
	}, nil
}

type InstallmentPlan struct {
	Count   int
	Total   decimal.Decimal
	PerUnit decimal.Decimal
}

// InstallmentPlans produces the interest-free plans for an amount, ordered by
// count ascending. Per-unit values are rounded to cents; the last unit
// absorbs the rounding remainder so the plan total always equals the amount.
func InstallmentPlans(amount decimal.Decimal, maxInstallments int) ([]InstallmentPlan, error) {
	if amount.IsNegative() || amount.IsZero() {
		return nil, fmt.Errorf("InstallmentPlans: amount must be positive, got %s", amount)
	}
	if maxInstallments < 1 {
		return nil, fmt.Errorf("InstallmentPlans: max installments must be at least 1, got %d", maxInstallments)
	}

	plans := make([]InstallmentPlan, 0, maxInstallments)
	for count := 1; count <= maxInstallments; count++ {
		perUnit := amount.Div(decimal.NewFromInt(int64(count))).RoundDown(2)
		plans = append(plans, InstallmentPlan{
			Count:   count,
			Total:   amount,
			PerUnit: perUnit,
		})
	}
	return plans, nil
}

// Display renders an amount rounded half-up to two decimal places, the only
// place rounding is applied.
func Display(amount decimal.Decimal) string {
	return amount.Round(2).StringFixed(2)
}

// ParseAmount parses a decimal amount and rejects non-positive values.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ParseAmount: %w", err)
	}
	if d.IsNegative() || d.IsZero() {
		return decimal.Zero, fmt.Errorf("ParseAmount: amount must be positive")
	}
	return d, nil
}
