package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/pkg/contracts"
	"github.com/mohamedebada21/last-online-halal/pkg/outbox"
)

const orderColumns = `id, number, user_id, subtotal::text, tax::text, total::text,
	customer_name, phone, address, payment_method, payment_status, status,
	delivery_date, created_at, updated_at, fulfilled_at`

// CreateOrder decrements stock product by product in id order so concurrent
// checkouts lock rows in the same sequence. Each decrement only applies while
// stock covers the quantity; any miss rolls the whole transaction back.
func (s *Store) CreateOrder(ctx context.Context, o domain.Order, evt contracts.Event) error {
	const op = "store.CreateOrder"
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// A concurrent checkout holding the same key blocks here until the first
	// one commits, then fails without touching stock.
	for _, key := range o.ReplayKeys() {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_idempotency(idempotency_key, order_id) VALUES ($1, $2)`,
			key, string(o.ID),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperr.New(op, apperr.ErrDuplicate).WithDetail("idempotency key already used")
			}
			return fmt.Errorf("claim idempotency key: %w", err)
		}
	}

	need := map[domain.ProductID]int{}
	for _, it := range o.Items {
		need[it.ProductID] += it.Quantity
	}
	ids := make([]string, 0, len(need))
	for id := range need {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	for _, id := range ids {
		qty := need[domain.ProductID(id)]
		tag, err := tx.Exec(ctx,
			`UPDATE products SET stock = stock - $2, updated_at = $3 WHERE id = $1 AND stock >= $2`,
			id, qty, o.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("decrement stock %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			var have int
			if err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&have); err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("read stock %s: %w", id, err)
			}
			return apperr.New(op, apperr.ErrInsufficientStock).WithID(id).WithDetail("requested %d, available %d", qty, have)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO orders(id, number, user_id, subtotal, tax, total, customer_name, phone, address,
			payment_method, payment_status, status, delivery_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		string(o.ID), o.Number, string(o.UserID), o.Subtotal.String(), o.Tax.String(), o.Total.String(),
		o.Customer.Name, o.Customer.Phone, o.Customer.Address,
		string(o.PaymentMethod), string(o.PaymentStatus), string(o.Status), o.DeliveryDate, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, it := range o.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items(order_id, line, product_id, name, quantity, unit_price, taxable)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			string(o.ID), i, string(it.ProductID), it.Name, it.Quantity, it.UnitPrice.String(), it.Taxable,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := outbox.Insert(ctx, tx, s.topic, evt); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) GetOrder(ctx context.Context, id domain.OrderID) (domain.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, apperr.New("store.GetOrder", apperr.ErrNotFound).WithID(string(id))
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	if err := s.loadItems(ctx, []*domain.Order{&o}); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (domain.Order, error) {
	var orderID string
	err := s.pool.QueryRow(ctx, `SELECT order_id FROM order_idempotency WHERE idempotency_key = $1`, key).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, apperr.New("store.GetOrderByIdempotencyKey", apperr.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, err
	}
	return s.GetOrder(ctx, domain.OrderID(orderID))
}

func (s *Store) ListOrders(ctx context.Context, userID domain.UserID) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, string(userID))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ptrs := make([]*domain.Order, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	if err := s.loadItems(ctx, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

// TransitionOrder guards on the current status in the UPDATE itself, so two
// admins fulfilling the same order produce one transition and one event.
func (s *Store) TransitionOrder(ctx context.Context, id domain.OrderID, from, to domain.OrderStatus, at time.Time, evt contracts.Event) (domain.Order, error) {
	const op = "store.TransitionOrder"
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var fulfilledAt *time.Time
	if to == domain.OrderStatusFulfilled {
		fulfilledAt = &at
	}
	tag, err := tx.Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = $4, fulfilled_at = COALESCE($5, fulfilled_at) WHERE id = $1 AND status = $2`,
		string(id), string(from), string(to), at, fulfilledAt,
	)
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, string(id)).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, apperr.New(op, apperr.ErrNotFound).WithID(string(id))
		}
		if err != nil {
			return domain.Order{}, err
		}
		return domain.Order{}, apperr.New(op, apperr.ErrInvalidTransition).WithID(string(id)).WithDetail("order is %s", current)
	}

	if err := outbox.Insert(ctx, tx, s.topic, evt); err != nil {
		return domain.Order{}, fmt.Errorf("insert outbox: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return s.GetOrder(ctx, id)
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o                      domain.Order
		subtotal, tax, total   string
		method, payment, state string
	)
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &subtotal, &tax, &total,
		&o.Customer.Name, &o.Customer.Phone, &o.Customer.Address, &method, &payment, &state,
		&o.DeliveryDate, &o.CreatedAt, &o.UpdatedAt, &o.FulfilledAt)
	if err != nil {
		return domain.Order{}, err
	}
	o.PaymentMethod = domain.PaymentMethod(method)
	o.PaymentStatus = domain.PaymentStatus(payment)
	o.Status = domain.OrderStatus(state)
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&o.Subtotal, subtotal}, {&o.Tax, tax}, {&o.Total, total}} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return domain.Order{}, fmt.Errorf("order %s amount %q: %w", o.ID, f.src, err)
		}
	}
	return o, nil
}

func (s *Store) loadItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		o.Items = []domain.OrderItem{}
		byID[string(o.ID)] = o
		ids = append(ids, string(o.ID))
	}

	rows, err := s.pool.Query(ctx,
		`SELECT order_id, product_id, name, quantity, unit_price::text, taxable
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line`, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID, price string
			it             domain.OrderItem
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.Quantity, &price, &it.Taxable); err != nil {
			return err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("order item price %q: %w", price, err)
		}
		if o := byID[orderID]; o != nil {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}
