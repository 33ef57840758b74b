// Package cart holds per-session shopping carts. Every mutation is checked
// against the product as it is in the catalog at that moment.
package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/internal/pricing"
)

// Line keeps the name, price and tax flag the product had when it was added.
type Line struct {
	ProductID domain.ProductID `json:"productId"`
	Name      string           `json:"name"`
	UnitPrice decimal.Decimal  `json:"price"`
	Unit      string           `json:"unit"`
	Taxable   bool             `json:"taxable"`
	Quantity  int              `json:"quantity"`
}

type Cart struct {
	ID        string    `json:"id"`
	Lines     []Line    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Cart) index(id domain.ProductID) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == id {
			return i
		}
	}
	return -1
}

// AddItem puts one unit of p in the cart. The cart is left unchanged on error.
func (c *Cart) AddItem(p domain.Product) error {
	const op = "cart.AddItem"
	if p.Stock <= 0 {
		return apperr.New(op, apperr.ErrOutOfStock).WithID(string(p.ID))
	}

	i := c.index(p.ID)
	if i < 0 {
		c.Lines = append(c.Lines, Line{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Unit:      p.Unit,
			Taxable:   p.Taxable,
			Quantity:  1,
		})
		return nil
	}
	if c.Lines[i].Quantity+1 > p.Stock {
		return apperr.New(op, apperr.ErrStockExceeded).WithID(string(p.ID)).WithDetail("only %d available", p.Stock)
	}
	c.Lines[i].Quantity++
	return nil
}

// SetQuantity sets the line for p to qty. A qty of zero or less removes the
// line. A qty above current stock is clamped to the stock and reported as
// ErrStockExceeded; the clamped cart is still valid and should be kept.
func (c *Cart) SetQuantity(p domain.Product, qty int) error {
	const op = "cart.SetQuantity"
	if qty <= 0 {
		c.RemoveItem(p.ID)
		return nil
	}

	i := c.index(p.ID)
	if i < 0 {
		return apperr.New(op, apperr.ErrNotFound).WithID(string(p.ID)).WithDetail("product is not in the cart")
	}
	if qty > p.Stock {
		if p.Stock <= 0 {
			c.RemoveItem(p.ID)
		} else {
			c.Lines[i].Quantity = p.Stock
		}
		return apperr.New(op, apperr.ErrStockExceeded).WithID(string(p.ID)).WithDetail("clamped to %d available", max(p.Stock, 0))
	}
	c.Lines[i].Quantity = qty
	return nil
}

// RemoveItem drops the line for id; removing an absent line is a no-op.
func (c *Cart) RemoveItem(id domain.ProductID) {
	if i := c.index(id); i >= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	}
}

func (c *Cart) Clear() {
	c.Lines = nil
}

func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}

func (c Cart) Quantity(id domain.ProductID) int {
	if i := c.index(id); i >= 0 {
		return c.Lines[i].Quantity
	}
	return 0
}

func (c Cart) PricingLines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity, Taxable: l.Taxable})
	}
	return lines
}
