package client_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/cart"
	"github.com/mohamedebada21/last-online-halal/internal/catalog"
	"github.com/mohamedebada21/last-online-halal/internal/client"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/internal/httpapi"
	"github.com/mohamedebada21/last-online-halal/internal/identity"
	"github.com/mohamedebada21/last-online-halal/internal/order"
	"github.com/mohamedebada21/last-online-halal/internal/store/memory"
)

func newServer(t *testing.T) string {
	t.Helper()
	store := memory.New("events")
	rate := decimal.RequireFromString("0.0875")
	ids := identity.NewService(store, identity.NewMemorySessions(), time.Hour)
	ids.Cost = bcrypt.MinCost
	_, err := ids.EnsureAdmin(context.Background(), identity.Registration{Name: "Admin", Email: "admin@example.com", Password: "admin-pass"})
	require.NoError(t, err)

	carts := cart.NewService(cart.NewMemoryStore(), store, rate, nil)
	h := httpapi.New(httpapi.Deps{
		Catalog:  catalog.NewService(store),
		Carts:    carts,
		Orders:   order.NewService(store, carts, store, order.Config{TaxRate: rate}, nil),
		Identity: ids,
	})
	srv := httptest.NewServer(h.Router(nil, 0))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	url := newServer(t)

	admin := client.New(url)
	_, err := admin.Login(ctx, "admin@example.com", "admin-pass")
	require.NoError(t, err)
	p, err := admin.UpsertProduct(ctx, client.ProductForm{Name: "Dates", Price: "7.25", Stock: "2", Category: "pantry"})
	require.NoError(t, err)

	shopper := client.New(url)
	_, err = shopper.Register(ctx, identity.Registration{Name: "Amina", Email: "amina@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = shopper.Register(ctx, identity.Registration{Name: "Amina", Email: "amina@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperr.ErrDuplicateEmail)
	_, err = shopper.Login(ctx, "amina@example.com", "secret1")
	require.NoError(t, err)

	products, err := shopper.Products(ctx, "pantry")
	require.NoError(t, err)
	require.Len(t, products, 1)

	c, err := shopper.CreateCart(ctx)
	require.NoError(t, err)
	_, err = shopper.AddItem(ctx, c.ID, p.ID)
	require.NoError(t, err)
	v, err := shopper.SetQuantity(ctx, c.ID, p.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, "stock_exceeded", v.Warning)
	assert.Equal(t, 2, v.Quantity(p.ID))
	assert.Equal(t, "14.50", v.Subtotal.StringFixed(2))

	_, err = shopper.Inventory(ctx)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	in := client.Checkout{
		CartID:          c.ID,
		PaymentMethod:   "card",
		CustomerDetails: domain.CustomerDetails{Name: "Amina", Phone: "555", Address: "1 Market St"},
	}
	o, replayed, err := shopper.PlaceOrder(ctx, in, "key-1")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, domain.PaymentStatusPaid, o.PaymentStatus)

	again, replayed, err := shopper.PlaceOrder(ctx, in, "key-1")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, o.ID, again.ID)

	mine, err := shopper.Orders(ctx)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	rows, err := admin.Inventory(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.OutOfStock, rows[0].Level)

	done, err := admin.SetOrderStatus(ctx, o.ID, domain.OrderStatusFulfilled)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFulfilled, done.Status)

	_, err = admin.SetOrderStatus(ctx, o.ID, domain.OrderStatusFulfilled)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	require.NoError(t, shopper.Logout(ctx))
	_, err = shopper.Me(ctx)
	assert.ErrorIs(t, err, apperr.ErrAuthFailed)
}
