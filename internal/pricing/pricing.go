// Package pricing computes cart and order totals with exact decimal arithmetic.
//
// Sums are accumulated unrounded. Subtotal and tax are each rounded to cents
// once, on the aggregate, and the total is the sum of those rounded values, so
// Subtotal + Tax == Total holds exactly for every stored order.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/mohamedebada21/last-online-halal/internal/domain"
)

// CentPlaces is the precision of every stored or displayed amount.
const CentPlaces = 2

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
	Taxable   bool
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"taxAmount"`
	Total    decimal.Decimal `json:"totalAmount"`
}

func ComputeTotals(lines []Line, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for _, l := range lines {
		amount := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		subtotal = subtotal.Add(amount)
		if l.Taxable {
			tax = tax.Add(amount.Mul(taxRate))
		}
	}

	subtotal = subtotal.Round(CentPlaces)
	tax = tax.Round(CentPlaces)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

func LinesFromItems(items []domain.OrderItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity, Taxable: it.Taxable})
	}
	return lines
}
