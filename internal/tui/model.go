// Package tui is a terminal storefront built on bubbletea.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/catalog"
	"github.com/mohamedebada21/last-online-halal/internal/client"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/internal/identity"
)

// API is the part of *client.Client the console uses.
type API interface {
	Login(ctx context.Context, email, password string) (identity.Session, error)
	Logout(ctx context.Context) error
	Products(ctx context.Context, category string) ([]domain.Product, error)
	CreateCart(ctx context.Context) (client.CartView, error)
	Cart(ctx context.Context, cartID string) (client.CartView, error)
	AddItem(ctx context.Context, cartID string, productID domain.ProductID) (client.CartView, error)
	SetQuantity(ctx context.Context, cartID string, productID domain.ProductID, qty int) (client.CartView, error)
	RemoveItem(ctx context.Context, cartID string, productID domain.ProductID) (client.CartView, error)
	PlaceOrder(ctx context.Context, in client.Checkout, idemKey string) (domain.Order, bool, error)
	Orders(ctx context.Context) ([]domain.Order, error)
	Inventory(ctx context.Context) ([]catalog.InventoryRow, error)
	AllOrders(ctx context.Context) ([]domain.Order, error)
	SetOrderStatus(ctx context.Context, id domain.OrderID, status domain.OrderStatus) (domain.Order, error)
	UpsertProduct(ctx context.Context, f client.ProductForm) (domain.Product, error)
	DeleteProduct(ctx context.Context, id domain.ProductID) error
}

var _ API = (*client.Client)(nil)

type Options struct {
	Category      string
	Customer      domain.CustomerDetails
	PaymentMethod string
	Timeout       time.Duration
}

type Model struct {
	api  API
	opts Options

	user   *domain.User
	cartID string
	view   view
	status string
	busy   bool
}

func New(api API, opts Options) Model {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.PaymentMethod == "" {
		opts.PaymentMethod = "cod"
	}
	return Model{api: api, opts: opts, view: catalogView{}, status: "Loading catalog..."}
}

type viewLoadedMsg struct{ view view }

type cartLoadedMsg struct {
	cart    client.CartView
	message string
}

type sessionMsg struct{ user *domain.User }

type statusMsg string

type errMsg struct{ err error }

type inventoryMsg struct {
	rows    []catalog.InventoryRow
	message string
}

func (m Model) Init() tea.Cmd {
	return m.load(ScreenCatalog, nil)
}

// Navigate moves to s, refusing admin screens without an admin session and
// account screens without any session.
func (m Model) Navigate(s Screen) (Model, tea.Cmd) {
	if s.needsLogin() && m.user == nil {
		m.view = loginView{}
		m.status = "Please log in first"
		return m, nil
	}
	if s.adminOnly() && !m.user.IsAdmin {
		m.status = "Admin access required"
		return m, nil
	}
	if s == ScreenLogin {
		m.view = loginView{}
		m.status = ""
		return m, nil
	}
	m.busy = true
	return m, m.load(s, nil)
}

func (m Model) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.opts.Timeout)
}

func (m Model) load(s Screen, selected *domain.Product) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.ctx()
		defer cancel()
		switch s {
		case ScreenCatalog:
			products, err := m.api.Products(ctx, m.opts.Category)
			if err != nil {
				return errMsg{err}
			}
			return viewLoadedMsg{catalogView{products: products}}
		case ScreenProduct:
			if selected == nil {
				return statusMsg("No product selected")
			}
			return viewLoadedMsg{productView{product: *selected}}
		case ScreenCart:
			if m.cartID == "" {
				return viewLoadedMsg{cartView{}}
			}
			c, err := m.api.Cart(ctx, m.cartID)
			if err != nil {
				return errMsg{err}
			}
			return viewLoadedMsg{cartView{cart: c}}
		case ScreenOrders:
			orders, err := m.api.Orders(ctx)
			if err != nil {
				return errMsg{err}
			}
			return viewLoadedMsg{ordersView{orders: orders}}
		case ScreenInventory:
			rows, err := m.api.Inventory(ctx)
			if err != nil {
				return errMsg{err}
			}
			return viewLoadedMsg{inventoryView{rows: rows}}
		case ScreenAdminOrders:
			orders, err := m.api.AllOrders(ctx)
			if err != nil {
				return errMsg{err}
			}
			return viewLoadedMsg{adminOrdersView{orders: orders}}
		case ScreenProductForm:
			return viewLoadedMsg{newProductForm(selected)}
		}
		return statusMsg("Unknown screen")
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case viewLoadedMsg:
		m.busy = false
		m.view = msg.view
		m.status = ""
		return m, nil
	case cartLoadedMsg:
		m.busy = false
		m.cartID = msg.cart.ID
		if cv, ok := m.view.(cartView); ok {
			cv.cart = msg.cart
			if cv.cursor >= len(msg.cart.Lines) {
				cv.cursor = max(0, len(msg.cart.Lines)-1)
			}
			m.view = cv
		}
		m.status = msg.message
		return m, nil
	case sessionMsg:
		m.busy = false
		m.user = msg.user
		if m.user != nil {
			m.status = "Logged in as " + m.user.Name
		} else {
			m.status = "Logged out"
		}
		m.view = catalogView{}
		return m, m.load(ScreenCatalog, nil)
	case statusMsg:
		m.busy = false
		m.status = string(msg)
		return m, nil
	case errMsg:
		m.busy = false
		m.status = describe(msg.err)
		return m, nil
	case inventoryMsg:
		m.busy = false
		m.view = inventoryView{rows: msg.rows}
		m.status = msg.message
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if k.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if lv, ok := m.view.(loginView); ok {
		return m.handleLoginKey(lv, k)
	}
	if fv, ok := m.view.(productFormView); ok {
		return m.handleFormKey(fv, k)
	}

	switch k.String() {
	case "q":
		return m, tea.Quit
	case "c":
		return m.Navigate(ScreenCatalog)
	case "v":
		return m.Navigate(ScreenCart)
	case "o":
		return m.Navigate(ScreenOrders)
	case "i":
		return m.Navigate(ScreenInventory)
	case "a":
		return m.Navigate(ScreenAdminOrders)
	case "l":
		if m.user != nil {
			return m, m.logout()
		}
		return m.Navigate(ScreenLogin)
	}
	if m.busy {
		return m, nil
	}

	switch v := m.view.(type) {
	case catalogView:
		switch k.String() {
		case "up", "k":
			v.cursor = max(0, v.cursor-1)
		case "down", "j":
			v.cursor = min(len(v.products)-1, v.cursor+1)
		case "enter":
			if len(v.products) > 0 {
				p := v.products[v.cursor]
				return m, m.load(ScreenProduct, &p)
			}
		}
		v.cursor = max(0, v.cursor)
		m.view = v
	case productView:
		switch k.String() {
		case "enter", "+":
			m.busy = true
			return m, m.addToCart(v.product.ID)
		case "esc", "backspace":
			return m.Navigate(ScreenCatalog)
		}
	case cartView:
		lines := v.cart.Lines
		switch k.String() {
		case "up", "k":
			v.cursor = max(0, v.cursor-1)
		case "down", "j":
			v.cursor = min(len(lines)-1, v.cursor+1)
		case "+", "-", "x":
			if len(lines) == 0 {
				break
			}
			line := lines[v.cursor]
			qty := line.Quantity + 1
			if k.String() == "-" {
				qty = line.Quantity - 1
			}
			if k.String() == "x" {
				qty = 0
			}
			m.view = v
			m.busy = true
			return m, m.setQuantity(line.ProductID, qty)
		case "p":
			if m.user == nil {
				m.view = loginView{}
				m.status = "Log in to check out"
				return m, nil
			}
			m.busy = true
			return m, m.checkout(v.cart)
		}
		if v.cursor < 0 {
			v.cursor = 0
		}
		m.view = v
	case inventoryView:
		switch k.String() {
		case "up", "k":
			v.cursor = max(0, v.cursor-1)
			v.pendingDelete = ""
		case "down", "j":
			v.cursor = min(len(v.rows)-1, v.cursor+1)
			v.pendingDelete = ""
		case "n":
			m.view = newProductForm(nil)
			m.status = ""
			return m, nil
		case "e", "enter":
			if len(v.rows) > 0 {
				p := v.rows[v.cursor].Product
				m.view = newProductForm(&p)
				m.status = ""
				return m, nil
			}
		case "d":
			if len(v.rows) == 0 {
				break
			}
			p := v.rows[v.cursor].Product
			if v.pendingDelete != p.ID {
				v.pendingDelete = p.ID
				m.view = v
				m.status = "Press d again to delete " + p.Name
				return m, nil
			}
			m.busy = true
			return m, m.deleteProduct(p)
		}
		v.cursor = max(0, v.cursor)
		m.view = v
	case adminOrdersView:
		switch k.String() {
		case "up", "k":
			v.cursor = max(0, v.cursor-1)
		case "down", "j":
			v.cursor = min(len(v.orders)-1, v.cursor+1)
		case "f", "enter":
			if len(v.orders) > 0 {
				m.busy = true
				return m, m.fulfill(v.orders[v.cursor].ID)
			}
		}
		if v.cursor < 0 {
			v.cursor = 0
		}
		m.view = v
	}
	return m, nil
}

func (m Model) handleLoginKey(lv loginView, k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.Type {
	case tea.KeyEsc:
		return m.Navigate(ScreenCatalog)
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		lv.field = 1 - lv.field
	case tea.KeyBackspace:
		if lv.field == 0 && len(lv.email) > 0 {
			lv.email = lv.email[:len(lv.email)-1]
		} else if lv.field == 1 && len(lv.password) > 0 {
			lv.password = lv.password[:len(lv.password)-1]
		}
	case tea.KeyEnter:
		m.busy = true
		m.view = lv
		return m, m.login(lv.email, lv.password)
	case tea.KeyRunes:
		if lv.field == 0 {
			lv.email += string(k.Runes)
		} else {
			lv.password += string(k.Runes)
		}
	}
	m.view = lv
	return m, nil
}

func (m Model) handleFormKey(fv productFormView, k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	switch k.Type {
	case tea.KeyEsc:
		return m.Navigate(ScreenInventory)
	case tea.KeyTab, tea.KeyDown:
		fv.field = (fv.field + 1) % formFields
	case tea.KeyShiftTab, tea.KeyUp:
		fv.field = (fv.field + formFields - 1) % formFields
	case tea.KeyBackspace:
		if t := fv.text(fv.field); t != nil && len(*t) > 0 {
			r := []rune(*t)
			*t = string(r[:len(r)-1])
		}
	case tea.KeyEnter:
		m.busy = true
		m.view = fv
		return m, m.saveProduct(fv.form)
	case tea.KeySpace, tea.KeyRunes:
		if t := fv.text(fv.field); t != nil {
			if k.Type == tea.KeySpace {
				*t += " "
			} else {
				*t += string(k.Runes)
			}
		} else {
			fv.form.Taxable = !fv.form.Taxable
		}
	}
	m.view = fv
	return m, nil
}

func (m Model) saveProduct(f client.ProductForm) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.ctx()
		defer cancel()
		p, err := m.api.UpsertProduct(ctx, f)
		if err != nil {
			return errMsg{err}
		}
		rows, err := m.api.Inventory(ctx)
		if err != nil {
			return errMsg{err}
		}
		return inventoryMsg{rows: rows, message: "Saved " + p.Name}
	}
}

func (m Model) deleteProduct(p domain.Product) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.ctx()
		defer cancel()
		if err := m.api.DeleteProduct(ctx, p.ID); err != nil {
			return errMsg{err}
		}
		rows, err := m.api.Inventory(ctx)
		if err != nil {
			return errMsg{err}
		}
		return inventoryMsg{rows: rows, message: "Deleted " + p.Name}
	}
}

func (m Model) login(email, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.ctx()
		defer cancel()
		sess, err := m.api.Login(ctx, email, password)
		if err != nil {
			return errMsg{err}
		}
		return sessionMsg{user: &sess.User}
	}
}

func (m Model) logout() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.ctx()
		defer cancel()
		if err := m.api.Logout(ctx); err != nil {
			return errMsg{err}
		}
		return sessionMsg{}
	}
}

func (m Model) addToCart(id domain.ProductID) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.ctx()
		defer cancel()
		cartID := m.cartID
		if cartID == "" {
			c, err := m.api.CreateCart(ctx)
			if err != nil {
				return errMsg{err}
			}
			cartID = c.ID
		}
		c, err := m.api.AddItem(ctx, cartID, id)
		if err != nil {
			return errMsg{err}
		}
		return cartLoadedMsg{cart: c, message: "Added to cart"}
	}
}

func (m Model) setQuantity(id domain.ProductID, qty int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.ctx()
		defer cancel()
		c, err := m.api.SetQuantity(ctx, m.cartID, id, qty)
		if err != nil {
			return errMsg{err}
		}
		msg := ""
		if c.Warning != "" {
			msg = "Only limited stock available; quantity adjusted"
		}
		return cartLoadedMsg{cart: c, message: msg}
	}
}

// checkoutKey stays the same until the cart changes, so a repeated submit
// replays the order already placed from it.
func checkoutKey(c client.CartView) string {
	return c.ID + ":" + strconv.FormatInt(c.UpdatedAt.UnixNano(), 10)
}

func (m Model) checkout(c client.CartView) tea.Cmd {
	key := checkoutKey(c)
	return func() tea.Msg {
		ctx, cancel := m.ctx()
		defer cancel()
		o, _, err := m.api.PlaceOrder(ctx, client.Checkout{
			CartID:          m.cartID,
			CustomerDetails: m.opts.Customer,
			PaymentMethod:   m.opts.PaymentMethod,
		}, key)
		if err != nil {
			return errMsg{err}
		}
		c, err := m.api.Cart(ctx, m.cartID)
		if err != nil {
			return statusMsg(fmt.Sprintf("Order %s placed", o.Number))
		}
		return cartLoadedMsg{cart: c, message: fmt.Sprintf("Order %s placed, total $%s", o.Number, o.Total.StringFixed(2))}
	}
}

func (m Model) fulfill(id domain.OrderID) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.ctx()
		defer cancel()
		if _, err := m.api.SetOrderStatus(ctx, id, domain.OrderStatusFulfilled); err != nil {
			return errMsg{err}
		}
		orders, err := m.api.AllOrders(ctx)
		if err != nil {
			return errMsg{err}
		}
		return viewLoadedMsg{adminOrdersView{orders: orders}}
	}
}

func describe(err error) string {
	switch {
	case errors.Is(err, apperr.ErrOutOfStock):
		return "That product is out of stock"
	case errors.Is(err, apperr.ErrStockExceeded):
		return "No more stock available for that product"
	case errors.Is(err, apperr.ErrInsufficientStock):
		return "Some items are no longer available in that quantity"
	case errors.Is(err, apperr.ErrEmptyCart):
		return "Your cart is empty"
	case errors.Is(err, apperr.ErrAuthFailed):
		return "Login failed"
	case errors.Is(err, apperr.ErrUnauthorized):
		return "Admin access required"
	case errors.Is(err, apperr.ErrInvalidTransition):
		return "Order is already fulfilled"
	case errors.Is(err, apperr.ErrInvalidProduct):
		return "Product rejected: " + productProblem(err)
	case errors.Is(err, apperr.ErrInvalidInput):
		return "Checkout details are incomplete"
	}
	return "Error: " + strings.TrimSpace(err.Error())
}

func productProblem(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
