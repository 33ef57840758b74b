package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
)

func product(id string, stock int) domain.Product {
	return domain.Product{
		ID:      domain.ProductID(id),
		Name:    "Product " + id,
		Price:   decimal.RequireFromString("5.99"),
		Unit:    "each",
		Stock:   stock,
		Taxable: true,
	}
}

func TestAddItem_InsertsThenIncrements(t *testing.T) {
	var c Cart
	p := product("p1", 3)

	require.NoError(t, c.AddItem(p))
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 1, c.Lines[0].Quantity)
	assert.Equal(t, "Product p1", c.Lines[0].Name)
	assert.True(t, c.Lines[0].Taxable)

	require.NoError(t, c.AddItem(p))
	assert.Equal(t, 2, c.Quantity("p1"))
	assert.Len(t, c.Lines, 1)
}

func TestAddItem_OutOfStockNeverMutates(t *testing.T) {
	c := Cart{Lines: []Line{{ProductID: "p2", Quantity: 1}}}
	before := append([]Line(nil), c.Lines...)

	err := c.AddItem(product("p1", 0))
	assert.ErrorIs(t, err, apperr.ErrOutOfStock)
	assert.Equal(t, before, c.Lines)

	// also when the product is already in the cart
	c.Lines = append(c.Lines, Line{ProductID: "p1", Quantity: 2})
	before = append([]Line(nil), c.Lines...)
	err = c.AddItem(product("p1", 0))
	assert.ErrorIs(t, err, apperr.ErrOutOfStock)
	assert.Equal(t, before, c.Lines)
}

func TestAddItem_IncrementPastStockIsRejected(t *testing.T) {
	var c Cart
	p := product("p1", 2)
	require.NoError(t, c.AddItem(p))
	require.NoError(t, c.AddItem(p))

	err := c.AddItem(p)
	assert.ErrorIs(t, err, apperr.ErrStockExceeded)
	assert.Equal(t, 2, c.Quantity("p1"))
}

func TestAddItem_RechecksAgainstCurrentStock(t *testing.T) {
	var c Cart
	require.NoError(t, c.AddItem(product("p1", 5)))
	require.NoError(t, c.AddItem(product("p1", 5)))

	// stock dropped to 2 elsewhere: incrementing to 3 must fail
	err := c.AddItem(product("p1", 2))
	assert.ErrorIs(t, err, apperr.ErrStockExceeded)
	assert.Equal(t, 2, c.Quantity("p1"))
}

func TestSetQuantity_ClampsToStock(t *testing.T) {
	for _, requested := range []int{4, 5, 100} {
		var c Cart
		p := product("p1", 4)
		require.NoError(t, c.AddItem(p))

		err := c.SetQuantity(p, requested)
		if requested > p.Stock {
			assert.ErrorIs(t, err, apperr.ErrStockExceeded)
		} else {
			assert.NoError(t, err)
		}
		assert.Equal(t, 4, c.Quantity("p1"))
		assert.LessOrEqual(t, c.Quantity("p1"), p.Stock)
	}
}

func TestSetQuantity_WithinStock(t *testing.T) {
	var c Cart
	p := product("p1", 10)
	require.NoError(t, c.AddItem(p))

	require.NoError(t, c.SetQuantity(p, 7))
	assert.Equal(t, 7, c.Quantity("p1"))
}

func TestSetQuantity_ZeroOrNegativeRemoves(t *testing.T) {
	for _, qty := range []int{0, -3} {
		var c Cart
		p := product("p1", 10)
		require.NoError(t, c.AddItem(p))

		require.NoError(t, c.SetQuantity(p, qty))
		assert.True(t, c.Empty())
	}
}

func TestSetQuantity_StockGoneRemovesLine(t *testing.T) {
	var c Cart
	require.NoError(t, c.AddItem(product("p1", 3)))

	err := c.SetQuantity(product("p1", 0), 2)
	assert.ErrorIs(t, err, apperr.ErrStockExceeded)
	assert.True(t, c.Empty())
}

func TestSetQuantity_AbsentLine(t *testing.T) {
	var c Cart
	err := c.SetQuantity(product("p1", 3), 2)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.True(t, c.Empty())
}

func TestRemoveItem_IsIdempotent(t *testing.T) {
	var c Cart
	require.NoError(t, c.AddItem(product("p1", 3)))
	require.NoError(t, c.AddItem(product("p2", 3)))

	c.RemoveItem("p1")
	c.RemoveItem("p1")
	c.RemoveItem("missing")

	require.Len(t, c.Lines, 1)
	assert.Equal(t, domain.ProductID("p2"), c.Lines[0].ProductID)
}

func TestClear(t *testing.T) {
	var c Cart
	require.NoError(t, c.AddItem(product("p1", 3)))
	c.Clear()
	assert.True(t, c.Empty())
	assert.Empty(t, c.PricingLines())
}
