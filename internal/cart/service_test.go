package cart_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/cart"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/internal/store/memory"
)

func setup(t *testing.T) (*cart.Service, *memory.Store) {
	t.Helper()
	products := memory.New("events")
	svc := cart.NewService(cart.NewMemoryStore(), products, decimal.RequireFromString("0.0875"), nil)
	return svc, products
}

func seed(t *testing.T, products *memory.Store, id string, price string, stock int, taxable bool) {
	t.Helper()
	require.NoError(t, products.InsertProduct(context.Background(), domain.Product{
		ID:      domain.ProductID(id),
		Name:    id,
		Price:   decimal.RequireFromString(price),
		Stock:   stock,
		Taxable: taxable,
	}))
}

func TestService_AddItemPersists(t *testing.T) {
	ctx := context.Background()
	svc, products := setup(t)
	seed(t, products, "watermelon", "5.99", 10, true)

	c, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, c.ID, "watermelon")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, c.ID, "watermelon")
	require.NoError(t, err)

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Quantity("watermelon"))

	totals := svc.Totals(got)
	assert.Equal(t, "11.98", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "1.05", totals.Tax.StringFixed(2))
	assert.Equal(t, "13.03", totals.Total.StringFixed(2))
}

func TestService_AddItemFailureIsNotSaved(t *testing.T) {
	ctx := context.Background()
	svc, products := setup(t)
	seed(t, products, "sold-out", "1.00", 0, false)

	c, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, c.ID, "sold-out")
	assert.ErrorIs(t, err, apperr.ErrOutOfStock)

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestService_SetQuantityKeepsClampedCart(t *testing.T) {
	ctx := context.Background()
	svc, products := setup(t)
	seed(t, products, "chicken", "12.50", 3, false)

	c, err := svc.Create(ctx)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, c.ID, "chicken")
	require.NoError(t, err)

	returned, err := svc.SetQuantity(ctx, c.ID, "chicken", 9)
	assert.ErrorIs(t, err, apperr.ErrStockExceeded)
	assert.Equal(t, 3, returned.Quantity("chicken"))

	stored, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Quantity("chicken"))
}

func TestService_SetQuantityOnDeletedProductDropsLine(t *testing.T) {
	ctx := context.Background()
	svc, products := setup(t)
	seed(t, products, "chicken", "12.50", 3, false)

	c, err := svc.Create(ctx)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, c.ID, "chicken")
	require.NoError(t, err)
	require.NoError(t, products.DeleteProduct(ctx, "chicken"))

	_, err = svc.SetQuantity(ctx, c.ID, "chicken", 2)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	stored, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, stored.Empty())
}

func TestService_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	svc, products := setup(t)
	seed(t, products, "a", "1.00", 5, false)
	seed(t, products, "b", "2.00", 5, false)

	c, err := svc.Create(ctx)
	require.NoError(t, err)
	for _, id := range []domain.ProductID{"a", "b"} {
		_, err = svc.AddItem(ctx, c.ID, id)
		require.NoError(t, err)
	}

	got, err := svc.RemoveItem(ctx, c.ID, "a")
	require.NoError(t, err)
	assert.Len(t, got.Lines, 1)

	_, err = svc.RemoveItem(ctx, c.ID, "a")
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, c.ID))
	got, err = svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestService_UnknownCart(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.AddItem(context.Background(), "nope", "a")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
