package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mohamedebada21/last-online-halal/internal/client"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/internal/tui"
)

func main() {
	baseURL := flag.String("base-url", getenv("STOREFRONT_BASE_URL", "http://localhost:8080"), "storefront base URL")
	category := flag.String("category", "", "only show products in this category")
	name := flag.String("name", getenv("CUSTOMER_NAME", ""), "delivery name used at checkout")
	phone := flag.String("phone", getenv("CUSTOMER_PHONE", ""), "delivery phone used at checkout")
	address := flag.String("address", getenv("CUSTOMER_ADDRESS", ""), "delivery address used at checkout")
	payment := flag.String("payment", "cod", "payment method: cod|card")
	timeout := flag.Duration("timeout", 5*time.Second, "per-request timeout")
	list := flag.Bool("list", false, "print the catalogue and exit")
	flag.Parse()

	api := client.New(*baseURL)
	api.HTTP.Timeout = *timeout

	if *list {
		if err := printCatalog(api, *category, *timeout); err != nil {
			fmt.Println("error:", err)
			os.Exit(1)
		}
		return
	}

	p := tea.NewProgram(tui.New(api, tui.Options{
		Category:      *category,
		Customer:      domain.CustomerDetails{Name: *name, Phone: *phone, Address: *address},
		PaymentMethod: *payment,
		Timeout:       *timeout,
	}))
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func printCatalog(api *client.Client, category string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	products, err := api.Products(ctx, category)
	if err != nil {
		return err
	}
	for _, p := range products {
		fmt.Printf("%-36s  %-30s  $%8s  stock=%d\n", p.ID, p.Name, p.Price.StringFixed(2), p.Stock)
	}
	return nil
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
