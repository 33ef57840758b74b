package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/catalog"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
)

var productColumns = []string{
	"id", "name", "description", "category", "price::text", "unit", "stock",
	"low_stock_threshold", "image_url", "taxable", "created_at", "updated_at",
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &price, &p.Unit, &p.Stock,
		&p.LowStockThreshold, &p.ImageURL, &p.Taxable, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Product{}, fmt.Errorf("product %s price %q: %w", p.ID, price, err)
	}
	return p, nil
}

func productValues(p domain.Product) map[string]any {
	return map[string]any{
		"name":                p.Name,
		"description":         p.Description,
		"category":            p.Category,
		"price":               p.Price.String(),
		"unit":                p.Unit,
		"stock":               p.Stock,
		"low_stock_threshold": p.LowStockThreshold,
		"image_url":           p.ImageURL,
		"taxable":             p.Taxable,
		"updated_at":          p.UpdatedAt,
	}
}

func (s *Store) ListProducts(ctx context.Context, f catalog.Filter) ([]domain.Product, error) {
	q := psql.Select(productColumns...).From("products").OrderBy("name", "id")
	if f.Category != "" {
		q = q.Where(sq.Expr("lower(category) = lower(?)", f.Category))
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build product query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id domain.ProductID) (domain.Product, error) {
	query, args, err := psql.Select(productColumns...).From("products").Where(sq.Eq{"id": string(id)}).ToSql()
	if err != nil {
		return domain.Product{}, fmt.Errorf("build product query: %w", err)
	}
	p, err := scanProduct(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, apperr.New("store.GetProduct", apperr.ErrNotFound).WithID(string(id))
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

func (s *Store) InsertProduct(ctx context.Context, p domain.Product) error {
	values := productValues(p)
	values["id"] = string(p.ID)
	values["created_at"] = p.CreatedAt
	query, args, err := psql.Insert("products").SetMap(values).ToSql()
	if err != nil {
		return fmt.Errorf("build product insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperr.New("store.InsertProduct", apperr.ErrDuplicate).WithID(string(p.ID))
		}
		return fmt.Errorf("insert product %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product) error {
	query, args, err := psql.Update("products").SetMap(productValues(p)).Where(sq.Eq{"id": string(p.ID)}).ToSql()
	if err != nil {
		return fmt.Errorf("build product update: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update product %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New("store.UpdateProduct", apperr.ErrNotFound).WithID(string(p.ID))
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id domain.ProductID) error {
	query, args, err := psql.Delete("products").Where(sq.Eq{"id": string(id)}).ToSql()
	if err != nil {
		return fmt.Errorf("build product delete: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New("store.DeleteProduct", apperr.ErrNotFound).WithID(string(id))
	}
	return nil
}
