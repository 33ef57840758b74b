package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/cart"
	"github.com/mohamedebada21/last-online-halal/internal/catalog"
	"github.com/mohamedebada21/last-online-halal/internal/client"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/internal/identity"
)

type fakeAPI struct {
	products []domain.Product
	cart     client.CartView
	user     domain.User
	placed   int
	keys     []string
	saved    []client.ProductForm
	deleted  []domain.ProductID
}

func (f *fakeAPI) Login(_ context.Context, email, _ string) (identity.Session, error) {
	if email != f.user.Email {
		return identity.Session{}, apperr.ErrAuthFailed
	}
	return identity.Session{Token: "t", User: f.user}, nil
}
func (f *fakeAPI) Logout(context.Context) error { return nil }
func (f *fakeAPI) Products(context.Context, string) ([]domain.Product, error) {
	return f.products, nil
}
func (f *fakeAPI) CreateCart(context.Context) (client.CartView, error) {
	f.cart.ID = "cart-1"
	return f.cart, nil
}
func (f *fakeAPI) Cart(context.Context, string) (client.CartView, error) { return f.cart, nil }
func (f *fakeAPI) AddItem(_ context.Context, cartID string, id domain.ProductID) (client.CartView, error) {
	f.cart.ID = cartID
	f.cart.Lines = append(f.cart.Lines, cartLine(id, 1))
	return f.cart, nil
}
func (f *fakeAPI) SetQuantity(_ context.Context, _ string, id domain.ProductID, qty int) (client.CartView, error) {
	f.cart.Lines = []cart.Line{cartLine(id, min(qty, 2))}
	if qty > 2 {
		f.cart.Warning = "stock_exceeded"
	}
	return f.cart, nil
}
func (f *fakeAPI) RemoveItem(context.Context, string, domain.ProductID) (client.CartView, error) {
	return f.cart, nil
}
func (f *fakeAPI) PlaceOrder(_ context.Context, _ client.Checkout, key string) (domain.Order, bool, error) {
	f.placed++
	f.keys = append(f.keys, key)
	f.cart.Lines = nil
	return domain.Order{Number: "ORD-1", Total: decimal.RequireFromString("5.00")}, false, nil
}
func (f *fakeAPI) Orders(context.Context) ([]domain.Order, error) { return nil, nil }
func (f *fakeAPI) Inventory(context.Context) ([]catalog.InventoryRow, error) {
	rows := []catalog.InventoryRow{}
	for _, p := range f.products {
		rows = append(rows, catalog.InventoryRow{Product: p, Level: p.StockLevel()})
	}
	return rows, nil
}
func (f *fakeAPI) AllOrders(context.Context) ([]domain.Order, error) { return nil, nil }
func (f *fakeAPI) SetOrderStatus(context.Context, domain.OrderID, domain.OrderStatus) (domain.Order, error) {
	return domain.Order{}, nil
}

func (f *fakeAPI) UpsertProduct(_ context.Context, form client.ProductForm) (domain.Product, error) {
	if form.Price == "" {
		return domain.Product{}, &client.APIError{Status: 422, Code: "invalid_product", Message: "price is required"}
	}
	f.saved = append(f.saved, form)
	return domain.Product{ID: domain.ProductID(form.ID), Name: form.Name}, nil
}
func (f *fakeAPI) DeleteProduct(_ context.Context, id domain.ProductID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func cartLine(id domain.ProductID, qty int) cart.Line {
	return cart.Line{ProductID: id, Name: "Dates", UnitPrice: decimal.RequireFromString("2.50"), Quantity: qty}
}

// run applies msg and then every command it produces, depth first.
func run(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	for cmd != nil {
		out := cmd()
		if out == nil {
			break
		}
		next, cmd = m.Update(out)
		m = next.(Model)
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestAdminScreensAreGated(t *testing.T) {
	api := &fakeAPI{user: domain.User{Name: "Amina", Email: "a@x.io"}}
	m := New(api, Options{})

	m, _ = m.Navigate(ScreenInventory)
	assert.Equal(t, ScreenLogin, m.view.screen())

	m.user = &domain.User{Name: "Amina"}
	m.view = catalogView{}
	m, _ = m.Navigate(ScreenInventory)
	assert.Equal(t, ScreenCatalog, m.view.screen())
	assert.Equal(t, "Admin access required", m.status)

	m.user.IsAdmin = true
	m = run(t, m, key("i"))
	assert.Equal(t, ScreenInventory, m.view.screen())
}

func TestLoginFlow(t *testing.T) {
	api := &fakeAPI{user: domain.User{Name: "Amina", Email: "a@x.io"}}
	m := New(api, Options{})
	m = run(t, m, key("l"))
	require.Equal(t, ScreenLogin, m.view.screen())

	m = run(t, m, key("a@x.io"))
	m = run(t, m, key("tab"))
	m = run(t, m, key("pw"))
	lv := m.view.(loginView)
	assert.Equal(t, "a@x.io", lv.email)
	assert.Equal(t, "pw", lv.password)

	m = run(t, m, key("enter"))
	require.NotNil(t, m.user)
	assert.Equal(t, ScreenCatalog, m.view.screen())
}

func TestShopAndCheckout(t *testing.T) {
	api := &fakeAPI{
		user:     domain.User{Name: "Amina", Email: "a@x.io"},
		products: []domain.Product{{ID: "p1", Name: "Dates", Price: decimal.RequireFromString("2.50"), Stock: 2}},
	}
	m := New(api, Options{Customer: domain.CustomerDetails{Name: "Amina", Phone: "1", Address: "x"}})
	m = run(t, m, m.Init()())

	m = run(t, m, key("enter"))
	require.Equal(t, ScreenProduct, m.view.screen())
	m = run(t, m, key("enter"))
	assert.Equal(t, "cart-1", m.cartID)

	m = run(t, m, key("v"))
	require.Equal(t, ScreenCart, m.view.screen())
	m = run(t, m, key("+"))
	m = run(t, m, key("+"))
	assert.Contains(t, m.status, "quantity adjusted")

	m = run(t, m, key("p"))
	assert.Equal(t, ScreenLogin, m.view.screen())
	assert.Equal(t, 0, api.placed)

	m.user = &api.user
	m.view = cartView{cart: api.cart}
	m = run(t, m, key("p"))
	assert.Equal(t, 1, api.placed)
	assert.Contains(t, m.status, "ORD-1")
	assert.Contains(t, m.View(), "Your cart is empty")
}

func TestCheckoutReusesKeyUntilCartChanges(t *testing.T) {
	api := &fakeAPI{user: domain.User{Name: "Amina"}}
	m := New(api, Options{})
	m.user = &api.user
	m.cartID = "cart-1"
	c := client.CartView{Cart: cart.Cart{ID: "cart-1", Lines: []cart.Line{cartLine("p1", 1)}, UpdatedAt: time.Unix(100, 5)}}

	m.checkout(c)()
	m.checkout(c)()
	c.UpdatedAt = c.UpdatedAt.Add(time.Millisecond)
	m.checkout(c)()

	require.Len(t, api.keys, 3)
	assert.Equal(t, api.keys[0], api.keys[1])
	assert.NotEqual(t, api.keys[0], api.keys[2])
}

func adminOnInventory(t *testing.T, api *fakeAPI) Model {
	t.Helper()
	m := New(api, Options{})
	m.user = &domain.User{Name: "Root", IsAdmin: true}
	m = run(t, m, key("i"))
	require.Equal(t, ScreenInventory, m.view.screen())
	return m
}

func TestAdminEditsProduct(t *testing.T) {
	api := &fakeAPI{products: []domain.Product{
		{ID: "p1", Name: "Dates", Price: decimal.RequireFromString("2.50"), Unit: "box", Stock: 4, Taxable: true},
	}}
	m := adminOnInventory(t, api)

	m = run(t, m, key("e"))
	require.Equal(t, ScreenProductForm, m.view.screen())
	for i := 0; i < fieldPrice; i++ {
		m = run(t, m, key("tab"))
	}
	for i := 0; i < len("2.50"); i++ {
		m = run(t, m, key("backspace"))
	}
	m = run(t, m, key("3.10"))
	assert.Contains(t, m.View(), "3.10")

	m = run(t, m, key("enter"))
	require.Len(t, api.saved, 1)
	assert.Equal(t, "p1", api.saved[0].ID)
	assert.Equal(t, "3.10", api.saved[0].Price)
	assert.Equal(t, "4", api.saved[0].Stock)
	assert.Equal(t, "box", api.saved[0].Unit)
	assert.True(t, api.saved[0].Taxable)
	assert.Equal(t, ScreenInventory, m.view.screen())
	assert.Equal(t, "Saved Dates", m.status)
}

func TestAdminAddsProduct(t *testing.T) {
	api := &fakeAPI{}
	m := adminOnInventory(t, api)

	m = run(t, m, key("n"))
	require.Equal(t, ScreenProductForm, m.view.screen())
	m = run(t, m, key("Honey"))

	m = run(t, m, key("enter"))
	assert.Empty(t, api.saved)
	assert.Equal(t, ScreenProductForm, m.view.screen())
	assert.Contains(t, m.status, "price is required")

	for i := 0; i < fieldPrice; i++ {
		m = run(t, m, key("tab"))
	}
	m = run(t, m, key("4"))
	for i := fieldPrice; i < fieldTaxable; i++ {
		m = run(t, m, key("tab"))
	}
	m = run(t, m, key("x"))
	m = run(t, m, key("enter"))

	require.Len(t, api.saved, 1)
	assert.Empty(t, api.saved[0].ID)
	assert.Equal(t, "Honey", api.saved[0].Name)
	assert.Equal(t, "4", api.saved[0].Price)
	assert.Equal(t, "each", api.saved[0].Unit)
	assert.False(t, api.saved[0].Taxable)
}

func TestAdminDeletesProductAfterConfirmation(t *testing.T) {
	api := &fakeAPI{products: []domain.Product{
		{ID: "p1", Name: "Dates", Price: decimal.RequireFromString("2.50"), Stock: 4},
	}}
	m := adminOnInventory(t, api)

	m = run(t, m, key("d"))
	assert.Empty(t, api.deleted)
	assert.Equal(t, "Press d again to delete Dates", m.status)

	m = run(t, m, key("d"))
	assert.Equal(t, []domain.ProductID{"p1"}, api.deleted)
	assert.Equal(t, "Deleted Dates", m.status)
}

func TestProductFormNeedsAdmin(t *testing.T) {
	m := New(&fakeAPI{}, Options{})
	m.user = &domain.User{Name: "Amina"}
	m, _ = m.Navigate(ScreenProductForm)
	assert.Equal(t, "Admin access required", m.status)
	assert.NotEqual(t, ScreenProductForm, m.view.screen())
}
