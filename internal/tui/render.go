package tui

import (
	"fmt"
	"strings"
)

func (m Model) View() string {
	b := &strings.Builder{}
	who := "guest"
	if m.user != nil {
		who = m.user.Name
		if m.user.IsAdmin {
			who += " (admin)"
		}
	}
	fmt.Fprintf(b, "Storefront - %s - %s\n\n", m.view.screen(), who)

	switch v := m.view.(type) {
	case catalogView:
		if len(v.products) == 0 {
			fmt.Fprintln(b, "No products.")
		}
		for i, p := range v.products {
			fmt.Fprintf(b, " %s %-28s $%8s  %-10s %s\n", marker(i == v.cursor), p.Name, p.Price.StringFixed(2), p.StockLevel(), p.Category)
		}
	case productView:
		p := v.product
		fmt.Fprintf(b, "%s\n%s\n\n", p.Name, p.Description)
		fmt.Fprintf(b, "Price: $%s / %s\n", p.Price.StringFixed(2), p.Unit)
		fmt.Fprintf(b, "Stock: %d (%s)\n", p.Stock, p.StockLevel())
		fmt.Fprintln(b, "\nenter: add to cart, esc: back")
	case cartView:
		if len(v.cart.Lines) == 0 {
			fmt.Fprintln(b, "Your cart is empty.")
			break
		}
		for i, l := range v.cart.Lines {
			fmt.Fprintf(b, " %s %-28s %3d x $%s\n", marker(i == v.cursor), l.Name, l.Quantity, l.UnitPrice.StringFixed(2))
		}
		fmt.Fprintf(b, "\nSubtotal: $%s\nTax:      $%s\nTotal:    $%s\n",
			v.cart.Subtotal.StringFixed(2), v.cart.Tax.StringFixed(2), v.cart.Total.StringFixed(2))
		fmt.Fprintln(b, "\n+/-: quantity, x: remove, p: place order")
	case ordersView:
		if len(v.orders) == 0 {
			fmt.Fprintln(b, "No orders yet.")
		}
		for _, o := range v.orders {
			fmt.Fprintf(b, " %s  %s  $%s  %s  delivery %s\n", o.Number, o.CreatedAt.Format("2006-01-02"), o.Total.StringFixed(2), o.Status, o.DeliveryDate.Format("Jan 2"))
		}
	case loginView:
		fmt.Fprintf(b, " %s Email:    %s\n", marker(v.field == 0), v.email)
		fmt.Fprintf(b, " %s Password: %s\n", marker(v.field == 1), strings.Repeat("*", len(v.password)))
		fmt.Fprintln(b, "\ntab: switch field, enter: log in, esc: cancel")
	case inventoryView:
		for i, r := range v.rows {
			fmt.Fprintf(b, " %s %-28s %5d  %s\n", marker(i == v.cursor), r.Product.Name, r.Product.Stock, r.Level)
		}
		fmt.Fprintln(b, "\nn: new product, e: edit, d: delete")
	case productFormView:
		title := "New product"
		if v.form.ID != "" {
			title = "Editing " + v.form.ID
		}
		fmt.Fprintf(b, "%s\n\n", title)
		for f := 0; f < formFields; f++ {
			value := "no"
			if t := v.text(f); t != nil {
				value = *t
			} else if v.form.Taxable {
				value = "yes"
			}
			fmt.Fprintf(b, " %s %-13s %s\n", marker(f == v.field), fieldLabels[f]+":", value)
		}
		fmt.Fprintln(b, "\ntab: next field, space on Taxable: toggle, enter: save, esc: cancel")
	case adminOrdersView:
		for i, o := range v.orders {
			fmt.Fprintf(b, " %s %s  %-20s $%8s  %s\n", marker(i == v.cursor), o.Number, o.Customer.Name, o.Total.StringFixed(2), o.Status)
		}
		fmt.Fprintln(b, "\nf: mark fulfilled")
	}

	if m.status != "" {
		fmt.Fprintf(b, "\n%s\n", m.status)
	}
	fmt.Fprintln(b, "\nc: catalog  v: cart  o: my orders  i: inventory  a: all orders  l: login/logout  q: quit")
	return b.String()
}

func marker(selected bool) string {
	if selected {
		return ">"
	}
	return " "
}
