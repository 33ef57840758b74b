// Package memory is the in-process persistence used by tests and by the
// server when no DATABASE_URL is configured. A single mutex makes every
// multi-record operation atomic.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/catalog"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/pkg/contracts"
	"github.com/mohamedebada21/last-online-halal/pkg/outbox"
)

type Store struct {
	mu sync.Mutex

	products    map[domain.ProductID]domain.Product
	orders      map[domain.OrderID]domain.Order
	idempotency map[string]domain.OrderID
	users       map[domain.UserID]domain.User
	emails      map[string]domain.UserID
	outbox      []outbox.Record
	inbox       map[string]time.Time

	topic string
	now   func() time.Time
}

func New(topic string) *Store {
	return &Store{
		products:    make(map[domain.ProductID]domain.Product),
		orders:      make(map[domain.OrderID]domain.Order),
		idempotency: make(map[string]domain.OrderID),
		users:       make(map[domain.UserID]domain.User),
		emails:      make(map[string]domain.UserID),
		inbox:       make(map[string]time.Time),
		topic:       topic,
		now:         time.Now,
	}
}

// Products

func (s *Store) ListProducts(_ context.Context, f catalog.Filter) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, id domain.ProductID) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, apperr.New("store.GetProduct", apperr.ErrNotFound).WithID(string(id))
	}
	return p, nil
}

func (s *Store) InsertProduct(_ context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; ok {
		return apperr.New("store.InsertProduct", apperr.ErrDuplicate).WithID(string(p.ID))
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return apperr.New("store.UpdateProduct", apperr.ErrNotFound).WithID(string(p.ID))
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id domain.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return apperr.New("store.DeleteProduct", apperr.ErrNotFound).WithID(string(id))
	}
	delete(s.products, id)
	return nil
}

// Orders

// CreateOrder checks every line before touching any stock, so a shortfall on
// one product leaves all stock unchanged.
func (s *Store) CreateOrder(_ context.Context, o domain.Order, evt contracts.Event) error {
	const op = "store.CreateOrder"
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range o.ReplayKeys() {
		if _, taken := s.idempotency[k]; taken {
			return apperr.New(op, apperr.ErrDuplicate).WithDetail("idempotency key already used")
		}
	}

	need := make(map[domain.ProductID]int, len(o.Items))
	for _, it := range o.Items {
		need[it.ProductID] += it.Quantity
	}
	for id, qty := range need {
		p, ok := s.products[id]
		if !ok || p.Stock < qty {
			have := 0
			if ok {
				have = p.Stock
			}
			return apperr.New(op, apperr.ErrInsufficientStock).WithID(string(id)).WithDetail("requested %d, available %d", qty, have)
		}
	}

	rec, err := s.newRecord(evt)
	if err != nil {
		return err
	}
	for id, qty := range need {
		p := s.products[id]
		p.Stock -= qty
		p.UpdatedAt = o.CreatedAt
		s.products[id] = p
	}
	s.orders[o.ID] = cloneOrder(o)
	for _, k := range o.ReplayKeys() {
		s.idempotency[k] = o.ID
	}
	s.outbox = append(s.outbox, rec)
	return nil
}

func (s *Store) GetOrder(_ context.Context, id domain.OrderID) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, apperr.New("store.GetOrder", apperr.ErrNotFound).WithID(string(id))
	}
	return cloneOrder(o), nil
}

func (s *Store) GetOrderByIdempotencyKey(_ context.Context, key string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.idempotency[key]
	if !ok {
		return domain.Order{}, apperr.New("store.GetOrderByIdempotencyKey", apperr.ErrNotFound)
	}
	return cloneOrder(s.orders[id]), nil
}

// ListOrders returns the orders of userID, or every order when userID is
// empty, newest first.
func (s *Store) ListOrders(_ context.Context, userID domain.UserID) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Order{}
	for _, o := range s.orders {
		if userID != "" && o.UserID != userID {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) TransitionOrder(_ context.Context, id domain.OrderID, from, to domain.OrderStatus, at time.Time, evt contracts.Event) (domain.Order, error) {
	const op = "store.TransitionOrder"
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, apperr.New(op, apperr.ErrNotFound).WithID(string(id))
	}
	if o.Status != from {
		return domain.Order{}, apperr.New(op, apperr.ErrInvalidTransition).WithID(string(id)).WithDetail("order is %s", o.Status)
	}
	rec, err := s.newRecord(evt)
	if err != nil {
		return domain.Order{}, err
	}

	o.Status = to
	o.UpdatedAt = at
	if to == domain.OrderStatusFulfilled {
		fulfilled := at
		o.FulfilledAt = &fulfilled
	}
	s.orders[id] = o
	s.outbox = append(s.outbox, rec)
	return cloneOrder(o), nil
}

// Users

func (s *Store) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, taken := s.emails[email]; taken {
		return apperr.New("store.CreateUser", apperr.ErrDuplicateEmail).WithID(u.Email)
	}
	s.users[u.ID] = u
	s.emails[email] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id domain.UserID) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, apperr.New("store.GetUser", apperr.ErrNotFound).WithID(string(id))
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return domain.User{}, apperr.New("store.GetUserByEmail", apperr.ErrNotFound)
	}
	return s.users[id], nil
}

// Outbox

func (s *Store) FetchPending(_ context.Context, limit int) ([]outbox.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []outbox.Record{}
	for _, rec := range s.outbox {
		if rec.SentAt != nil {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkSent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].ID == id {
			sent := s.now().UTC()
			s.outbox[i].SentAt = &sent
			return nil
		}
	}
	return apperr.New("store.MarkSent", apperr.ErrNotFound)
}

// Outbox returns every record written so far, sent or not.
func (s *Store) Outbox() []outbox.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Record(nil), s.outbox...)
}

func (s *Store) newRecord(evt contracts.Event) (outbox.Record, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return outbox.Record{}, err
	}
	return outbox.Record{
		ID:        int64(len(s.outbox) + 1),
		EventID:   evt.EventID,
		Topic:     s.topic,
		Key:       evt.OrderID,
		Payload:   data,
		CreatedAt: evt.CreatedAt,
	}, nil
}

// Inbox

// MarkReceived records evt and reports whether it had not been seen before.
func (s *Store) MarkReceived(_ context.Context, evt contracts.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.inbox[evt.EventID]; seen {
		return false, nil
	}
	s.inbox[evt.EventID] = s.now().UTC()
	return true, nil
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.FulfilledAt != nil {
		at := *o.FulfilledAt
		o.FulfilledAt = &at
	}
	return o
}
