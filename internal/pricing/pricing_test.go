package pricing

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestComputeTotals_TaxableLine(t *testing.T) {
	totals := ComputeTotals([]Line{{UnitPrice: dec("5.99"), Quantity: 2, Taxable: true}}, dec("0.0875"))

	// 11.98 * 0.0875 = 1.04825 -> 1.05
	assertAmount(t, "11.98", totals.Subtotal)
	assertAmount(t, "1.05", totals.Tax)
	assertAmount(t, "13.03", totals.Total)
}

func TestComputeTotals_NonTaxableLinesCarryNoTax(t *testing.T) {
	totals := ComputeTotals([]Line{
		{UnitPrice: dec("12.50"), Quantity: 1, Taxable: false},
		{UnitPrice: dec("5.99"), Quantity: 1, Taxable: true},
	}, dec("0.0875"))

	// tax only on 5.99: 0.524125 -> 0.52
	assertAmount(t, "18.49", totals.Subtotal)
	assertAmount(t, "0.52", totals.Tax)
	assertAmount(t, "19.01", totals.Total)
}

func TestComputeTotals_RoundsAggregateNotPerLine(t *testing.T) {
	lines := []Line{
		{UnitPrice: dec("0.10"), Quantity: 1, Taxable: true},
		{UnitPrice: dec("0.10"), Quantity: 1, Taxable: true},
		{UnitPrice: dec("0.10"), Quantity: 1, Taxable: true},
	}
	rate := dec("0.05")

	// Each line owes 0.005. Rounding per line would give 3 x 0.01 = 0.03;
	// rounding the 0.015 aggregate gives 0.02.
	perLine := decimal.Zero
	for _, l := range lines {
		perLine = perLine.Add(l.UnitPrice.Mul(rate).Round(CentPlaces))
	}
	assertAmount(t, "0.03", perLine)

	totals := ComputeTotals(lines, rate)
	assertAmount(t, "0.02", totals.Tax)
	assertAmount(t, "0.32", totals.Total)
}

func TestComputeTotals_HalfCentRoundsUp(t *testing.T) {
	// 0.10 * 0.25 = 0.025 -> 0.03
	totals := ComputeTotals([]Line{{UnitPrice: dec("0.10"), Quantity: 1, Taxable: true}}, dec("0.25"))
	assertAmount(t, "0.03", totals.Tax)

	// 0.10 * 0.24 = 0.024 -> 0.02
	totals = ComputeTotals([]Line{{UnitPrice: dec("0.10"), Quantity: 1, Taxable: true}}, dec("0.24"))
	assertAmount(t, "0.02", totals.Tax)
}

func TestComputeTotals_Empty(t *testing.T) {
	totals := ComputeTotals(nil, dec("0.0875"))
	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.Tax.IsZero())
	assert.True(t, totals.Total.IsZero())
}

func TestComputeTotals_SubtotalPlusTaxEqualsTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	rate := dec("0.0875")

	for i := 0; i < 500; i++ {
		n := rng.Intn(6) + 1
		lines := make([]Line, 0, n)
		for j := 0; j < n; j++ {
			lines = append(lines, Line{
				UnitPrice: decimal.New(int64(rng.Intn(10000)), -2),
				Quantity:  rng.Intn(9) + 1,
				Taxable:   rng.Intn(2) == 0,
			})
		}
		totals := ComputeTotals(lines, rate)
		assert.True(t, totals.Subtotal.Add(totals.Tax).Equal(totals.Total))
		assert.LessOrEqual(t, -totals.Tax.Exponent(), int32(CentPlaces))
	}
}
