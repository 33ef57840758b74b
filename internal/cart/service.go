package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/internal/pricing"
	"github.com/mohamedebada21/last-online-halal/pkg/metrics"
)

type Store interface {
	Load(ctx context.Context, id string) (Cart, error)
	Save(ctx context.Context, c Cart) error
	Delete(ctx context.Context, id string) error
}

type ProductReader interface {
	GetProduct(ctx context.Context, id domain.ProductID) (domain.Product, error)
}

type Service struct {
	carts    Store
	products ProductReader
	taxRate  decimal.Decimal
	metrics  *metrics.ShopMetrics
	now      func() time.Time
}

func NewService(carts Store, products ProductReader, taxRate decimal.Decimal, m *metrics.ShopMetrics) *Service {
	return &Service{carts: carts, products: products, taxRate: taxRate, metrics: m, now: time.Now}
}

func (s *Service) Create(ctx context.Context) (Cart, error) {
	c := Cart{ID: uuid.NewString(), Lines: []Line{}, UpdatedAt: s.now().UTC()}
	if err := s.carts.Save(ctx, c); err != nil {
		return Cart{}, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (Cart, error) {
	return s.carts.Load(ctx, id)
}

func (s *Service) Totals(c Cart) pricing.Totals {
	return pricing.ComputeTotals(c.PricingLines(), s.taxRate)
}

func (s *Service) AddItem(ctx context.Context, cartID string, productID domain.ProductID) (Cart, error) {
	c, err := s.carts.Load(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return c, err
	}
	if err := c.AddItem(p); err != nil {
		s.countConflict(err)
		return c, err
	}
	return c, s.save(ctx, &c)
}

// SetQuantity saves the cart even when it returns ErrStockExceeded, because
// the clamped quantity is the new state.
func (s *Service) SetQuantity(ctx context.Context, cartID string, productID domain.ProductID, qty int) (Cart, error) {
	c, err := s.carts.Load(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}
	if qty <= 0 {
		c.RemoveItem(productID)
		return c, s.save(ctx, &c)
	}

	p, err := s.products.GetProduct(ctx, productID)
	if apperr.Kind(err) == apperr.ErrNotFound {
		// The product was deleted since it was added.
		c.RemoveItem(productID)
		if serr := s.save(ctx, &c); serr != nil {
			return c, serr
		}
		return c, err
	}
	if err != nil {
		return c, err
	}

	setErr := c.SetQuantity(p, qty)
	if setErr != nil && !errors.Is(setErr, apperr.ErrStockExceeded) {
		return c, setErr
	}
	s.countConflict(setErr)
	if err := s.save(ctx, &c); err != nil {
		return c, err
	}
	return c, setErr
}

func (s *Service) RemoveItem(ctx context.Context, cartID string, productID domain.ProductID) (Cart, error) {
	c, err := s.carts.Load(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}
	c.RemoveItem(productID)
	return c, s.save(ctx, &c)
}

func (s *Service) Clear(ctx context.Context, cartID string) error {
	c, err := s.carts.Load(ctx, cartID)
	if err != nil {
		return err
	}
	c.Clear()
	return s.save(ctx, &c)
}

func (s *Service) Delete(ctx context.Context, cartID string) error {
	return s.carts.Delete(ctx, cartID)
}

func (s *Service) save(ctx context.Context, c *Cart) error {
	c.UpdatedAt = s.now().UTC()
	return s.carts.Save(ctx, *c)
}

func (s *Service) countConflict(err error) {
	switch apperr.Kind(err) {
	case apperr.ErrOutOfStock:
		s.metrics.StockConflict("out_of_stock")
	case apperr.ErrStockExceeded:
		s.metrics.StockConflict("stock_exceeded")
	}
}
