package tui

import (
	"strconv"

	"github.com/mohamedebada21/last-online-halal/internal/catalog"
	"github.com/mohamedebada21/last-online-halal/internal/client"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
)

type Screen int

const (
	ScreenCatalog Screen = iota
	ScreenProduct
	ScreenCart
	ScreenOrders
	ScreenLogin
	ScreenInventory
	ScreenAdminOrders
	ScreenProductForm
)

func (s Screen) String() string {
	switch s {
	case ScreenCatalog:
		return "catalog"
	case ScreenProduct:
		return "product"
	case ScreenCart:
		return "cart"
	case ScreenOrders:
		return "orders"
	case ScreenLogin:
		return "login"
	case ScreenInventory:
		return "inventory"
	case ScreenAdminOrders:
		return "admin orders"
	case ScreenProductForm:
		return "edit product"
	}
	return "unknown"
}

func (s Screen) adminOnly() bool {
	return s == ScreenInventory || s == ScreenAdminOrders || s == ScreenProductForm
}

func (s Screen) needsLogin() bool {
	return s == ScreenOrders || s.adminOnly()
}

// view is one screen together with only the data that screen renders.
type view interface {
	screen() Screen
}

type catalogView struct {
	products []domain.Product
	cursor   int
}

type productView struct {
	product domain.Product
}

type cartView struct {
	cart   client.CartView
	cursor int
}

type ordersView struct {
	orders []domain.Order
}

type loginView struct {
	email    string
	password string
	field    int
}

type inventoryView struct {
	rows   []catalog.InventoryRow
	cursor int
	// pendingDelete is set by the first "d" and confirmed by the second.
	pendingDelete domain.ProductID
}

// Editable fields of productFormView, in display order.
const (
	fieldName = iota
	fieldDescription
	fieldCategory
	fieldPrice
	fieldUnit
	fieldStock
	fieldThreshold
	fieldImage
	fieldTaxable
	formFields
)

var fieldLabels = [formFields]string{"Name", "Description", "Category", "Price", "Unit", "Stock", "Low stock at", "Image URL", "Taxable"}

// productFormView adds a product when form.ID is empty and edits it otherwise.
type productFormView struct {
	form  client.ProductForm
	field int
}

func newProductForm(p *domain.Product) productFormView {
	if p == nil {
		return productFormView{form: client.ProductForm{Unit: "each", Stock: "0", LowStockThreshold: "0", Taxable: true}}
	}
	return productFormView{form: client.ProductForm{
		ID:                string(p.ID),
		Name:              p.Name,
		Description:       p.Description,
		Category:          p.Category,
		Price:             p.Price.StringFixed(2),
		Unit:              p.Unit,
		Stock:             strconv.Itoa(p.Stock),
		LowStockThreshold: strconv.Itoa(p.LowStockThreshold),
		ImageURL:          p.ImageURL,
		Taxable:           p.Taxable,
	}}
}

// text returns the editable string behind field, or nil for the taxable flag.
func (v *productFormView) text(field int) *string {
	switch field {
	case fieldName:
		return &v.form.Name
	case fieldDescription:
		return &v.form.Description
	case fieldCategory:
		return &v.form.Category
	case fieldPrice:
		return &v.form.Price
	case fieldUnit:
		return &v.form.Unit
	case fieldStock:
		return &v.form.Stock
	case fieldThreshold:
		return &v.form.LowStockThreshold
	case fieldImage:
		return &v.form.ImageURL
	}
	return nil
}

type adminOrdersView struct {
	orders []domain.Order
	cursor int
}

func (catalogView) screen() Screen     { return ScreenCatalog }
func (productView) screen() Screen     { return ScreenProduct }
func (cartView) screen() Screen        { return ScreenCart }
func (ordersView) screen() Screen      { return ScreenOrders }
func (loginView) screen() Screen       { return ScreenLogin }
func (inventoryView) screen() Screen   { return ScreenInventory }
func (adminOrdersView) screen() Screen { return ScreenAdminOrders }
func (productFormView) screen() Screen { return ScreenProductForm }
