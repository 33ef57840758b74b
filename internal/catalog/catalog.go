// Package catalog owns product records: admin upserts and deletes, shopper
// reads, and the inventory view.
package catalog

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/internal/pricing"
	"github.com/mohamedebada21/last-online-halal/pkg/logging"
)

const service = "catalog"

// Upper bounds of stored product numbers.
var (
	MaxPrice = decimal.RequireFromString("9999999999.99")
	MaxCount = math.MaxInt32
)

type Filter struct {
	Category string
	Limit    int
}

type Store interface {
	ListProducts(ctx context.Context, f Filter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id domain.ProductID) (domain.Product, error)
	InsertProduct(ctx context.Context, p domain.Product) error
	// UpdateProduct overwrites every mutable field; ErrNotFound if id is unknown.
	UpdateProduct(ctx context.Context, p domain.Product) error
	DeleteProduct(ctx context.Context, id domain.ProductID) error
}

// ProductInput is admin form data. Numeric fields arrive as text and are
// validated by Upsert.
type ProductInput struct {
	ID                string
	Name              string
	Description       string
	Category          string
	Price             string
	Unit              string
	Stock             string
	LowStockThreshold string
	ImageURL          string
	Taxable           bool
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) List(ctx context.Context, f Filter) ([]domain.Product, error) {
	return s.store.ListProducts(ctx, f)
}

func (s *Service) Get(ctx context.Context, id domain.ProductID) (domain.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// Upsert overwrites an existing product when in.ID names one, and otherwise
// creates a product under a fresh id.
func (s *Service) Upsert(ctx context.Context, in ProductInput) (domain.Product, error) {
	p, err := parseInput(in)
	if err != nil {
		return domain.Product{}, err
	}
	now := s.now().UTC()
	p.UpdatedAt = now

	if id := domain.ProductID(strings.TrimSpace(in.ID)); id != "" {
		existing, err := s.store.GetProduct(ctx, id)
		switch {
		case err == nil:
			p.ID = existing.ID
			p.CreatedAt = existing.CreatedAt
			if err := s.store.UpdateProduct(ctx, p); err != nil {
				return domain.Product{}, err
			}
			logging.Log(logging.Fields{Service: service, ProductID: string(p.ID), Step: "upsert", Status: "updated"})
			return p, nil
		case apperr.Kind(err) != apperr.ErrNotFound:
			return domain.Product{}, err
		}
	}

	p.ID = domain.ProductID(uuid.NewString())
	p.CreatedAt = now
	if err := s.store.InsertProduct(ctx, p); err != nil {
		return domain.Product{}, err
	}
	logging.Log(logging.Fields{Service: service, ProductID: string(p.ID), Step: "upsert", Status: "created"})
	return p, nil
}

// Delete removes the product. Placed orders keep their own item snapshots.
func (s *Service) Delete(ctx context.Context, id domain.ProductID) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	logging.Log(logging.Fields{Service: service, ProductID: string(id), Step: "delete", Status: "deleted"})
	return nil
}

type InventoryRow struct {
	Product domain.Product    `json:"product"`
	Level   domain.StockLevel `json:"level"`
}

// Inventory lists every product, lowest stock first.
func (s *Service) Inventory(ctx context.Context) ([]InventoryRow, error) {
	products, err := s.store.ListProducts(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(products, func(i, j int) bool { return products[i].Stock < products[j].Stock })

	rows := make([]InventoryRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, InventoryRow{Product: p, Level: p.StockLevel()})
	}
	return rows, nil
}

func parseInput(in ProductInput) (domain.Product, error) {
	const op = "catalog.Upsert"
	invalid := func(format string, args ...any) error {
		return apperr.New(op, apperr.ErrInvalidProduct).WithID(in.ID).WithDetail(format, args...)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Product{}, invalid("name is required")
	}

	price, err := decimal.NewFromString(strings.TrimSpace(in.Price))
	if err != nil || price.IsNegative() {
		return domain.Product{}, invalid("price %q is not a non-negative number", in.Price)
	}
	price = price.Round(pricing.CentPlaces)
	if price.GreaterThan(MaxPrice) {
		return domain.Product{}, invalid("price %q exceeds %s", in.Price, MaxPrice.StringFixed(pricing.CentPlaces))
	}
	stock, err := parseCount(in.Stock)
	if err != nil {
		return domain.Product{}, invalid("stock %q is not an integer between 0 and %d", in.Stock, MaxCount)
	}
	threshold := 0
	if strings.TrimSpace(in.LowStockThreshold) != "" {
		threshold, err = parseCount(in.LowStockThreshold)
	}
	if err != nil {
		return domain.Product{}, invalid("low stock threshold %q is not an integer between 0 and %d", in.LowStockThreshold, MaxCount)
	}

	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = "each"
	}
	return domain.Product{
		Name:              name,
		Description:       strings.TrimSpace(in.Description),
		Category:          strings.TrimSpace(in.Category),
		Price:             price,
		Unit:              unit,
		Stock:             stock,
		LowStockThreshold: threshold,
		ImageURL:          strings.TrimSpace(in.ImageURL),
		Taxable:           in.Taxable,
	}, nil
}

func parseCount(v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	if n < 0 || n > MaxCount {
		return 0, strconv.ErrRange
	}
	return n, nil
}
