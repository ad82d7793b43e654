package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestDiscount(t *testing.T) {
	q, err := Discount(d("181.70"), 5)
	require.NoError(t, err)

	// Exact, unrounded total; rounding is a display concern.
	assert.True(t, q.FinalAmount.Equal(d("172.615")), "got %s", q.FinalAmount)
	assert.True(t, q.OriginalAmount.Equal(d("181.70")))
	assert.True(t, q.DiscountAmount.Equal(d("9.085")))
	assert.Equal(t, "172.62", Display(q.FinalAmount))
	assert.Equal(t, "181.70", Display(q.OriginalAmount))
}

func TestDiscountBounds(t *testing.T) {
	_, err := Discount(d("100"), -1)
	require.Error(t, err)

	_, err = Discount(d("100"), 101)
	require.Error(t, err)

	_, err = Discount(d("0"), 5)
	require.Error(t, err)

	q, err := Discount(d("100"), 0)
	require.NoError(t, err)
	assert.True(t, q.FinalAmount.Equal(d("100")))

	q, err = Discount(d("100"), 100)
	require.NoError(t, err)
	assert.True(t, q.FinalAmount.IsZero())
}

func TestInstallmentPlans(t *testing.T) {
	plans, err := InstallmentPlans(d("181.70"), 12)
	require.NoError(t, err)
	require.Len(t, plans, 12)

	assert.Equal(t, 1, plans[0].Count)
	assert.True(t, plans[0].PerUnit.Equal(d("181.70")))

	three := plans[2]
	assert.Equal(t, 3, three.Count)
	assert.True(t, three.PerUnit.Equal(d("60.56")), "got %s", three.PerUnit)
	assert.True(t, three.Total.Equal(d("181.70")))
}

func TestInstallmentPlansBounds(t *testing.T) {
	_, err := InstallmentPlans(d("-1"), 12)
	require.Error(t, err)

	_, err = InstallmentPlans(d("10"), 0)
	require.Error(t, err)

	plans, err := InstallmentPlans(d("10"), 1)
	require.NoError(t, err)
	require.Len(t, plans, 1)
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("181.70")
	require.NoError(t, err)
	assert.True(t, v.Equal(d("181.70")))

	_, err = ParseAmount("")
	require.Error(t, err)

	_, err = ParseAmount("-5")
	require.Error(t, err)

	_, err = ParseAmount("0")
	require.Error(t, err)
}
