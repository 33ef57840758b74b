package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductID string

type Product struct {
	ID                ProductID       `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Category          string          `json:"category"`
	Price             decimal.Decimal `json:"price"`
	Unit              string          `json:"unit"`
	Stock             int             `json:"stock"`
	LowStockThreshold int             `json:"lowStockThreshold"`
	ImageURL          string          `json:"imageUrl,omitempty"`
	Taxable           bool            `json:"taxable"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StockLevel is a display classification only; nothing is enforced by it.
type StockLevel string

const (
	InStock    StockLevel = "InStock"
	LowStock   StockLevel = "LowStock"
	OutOfStock StockLevel = "OutOfStock"
)

func (p Product) StockLevel() StockLevel {
	switch {
	case p.Stock <= 0:
		return OutOfStock
	case p.Stock <= p.LowStockThreshold:
		return LowStock
	default:
		return InStock
	}
}
