// Package order turns carts into orders and moves orders through their
// lifecycle. Stock, order rows and the outgoing event are written by the
// Store in one atomic step.
package order

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/cart"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/internal/pricing"
	"github.com/mohamedebada21/last-online-halal/pkg/contracts"
	"github.com/mohamedebada21/last-online-halal/pkg/logging"
	"github.com/mohamedebada21/last-online-halal/pkg/metrics"
)

const service = "order"

var tracer = otel.Tracer("github.com/mohamedebada21/last-online-halal/internal/order")

type Store interface {
	// CreateOrder decrements stock for every item, stores o and records evt,
	// or does none of it. It fails with ErrInsufficientStock when any line
	// cannot be covered and with ErrDuplicate when any of o.ReplayKeys() is
	// taken.
	CreateOrder(ctx context.Context, o domain.Order, evt contracts.Event) error
	GetOrder(ctx context.Context, id domain.OrderID) (domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (domain.Order, error)
	ListOrders(ctx context.Context, userID domain.UserID) ([]domain.Order, error)
	// TransitionOrder moves the order from -> to and records evt only if the
	// order is still in from.
	TransitionOrder(ctx context.Context, id domain.OrderID, from, to domain.OrderStatus, at time.Time, evt contracts.Event) (domain.Order, error)
}

type Carts interface {
	Get(ctx context.Context, id string) (cart.Cart, error)
	Clear(ctx context.Context, id string) error
}

type Users interface {
	GetUser(ctx context.Context, id domain.UserID) (domain.User, error)
}

type Config struct {
	TaxRate      decimal.Decimal
	DeliveryLead time.Duration
}

type Service struct {
	store   Store
	carts   Carts
	users   Users
	cfg     Config
	metrics *metrics.ShopMetrics
	now     func() time.Time
}

func NewService(store Store, carts Carts, users Users, cfg Config, m *metrics.ShopMetrics) *Service {
	return &Service{store: store, carts: carts, users: users, cfg: cfg, metrics: m, now: time.Now}
}

type PlaceOrderInput struct {
	CartID         string
	User           *domain.User
	Customer       domain.CustomerDetails
	PaymentMethod  string
	IdempotencyKey string
}

// PlaceOrder converts the cart into an order. The bool result is true when
// the order already existed under the same idempotency key and nothing new
// was written.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (o domain.Order, replayed bool, err error) {
	const op = "order.PlaceOrder"
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("cart.id", in.CartID),
		attribute.String("order.payment_method", in.PaymentMethod),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("order.id", string(o.ID)), attribute.Bool("order.replayed", replayed))
		}
		span.End()
	}()

	if in.User == nil {
		return domain.Order{}, false, apperr.New(op, apperr.ErrAuthFailed)
	}

	key := scopedKey(in.User.ID, in.IdempotencyKey)
	if key != "" {
		existing, err := s.store.GetOrderByIdempotencyKey(ctx, key)
		if err == nil {
			return existing, true, nil
		}
		if apperr.Kind(err) != apperr.ErrNotFound {
			return domain.Order{}, false, err
		}
	}

	c, err := s.carts.Get(ctx, in.CartID)
	if err != nil {
		return domain.Order{}, false, err
	}
	if c.Empty() {
		return domain.Order{}, false, apperr.New(op, apperr.ErrEmptyCart).WithID(in.CartID)
	}
	if !in.Customer.Complete() {
		return domain.Order{}, false, apperr.New(op, apperr.ErrInvalidInput).WithDetail("name, phone and address are required")
	}
	method, ok := domain.ParsePaymentMethod(in.PaymentMethod)
	if !ok {
		return domain.Order{}, false, apperr.New(op, apperr.ErrInvalidInput).WithDetail("unknown payment method %q", in.PaymentMethod)
	}

	start := s.now()
	o = s.build(c, in.User.ID, in.Customer, method, key, start.UTC())
	o.CheckoutKey = checkoutKey(in.User.ID, c)
	evt, err := contracts.NewEvent(contracts.EventOrderPlaced, string(o.ID), notice(o, in.User.Email), o.CreatedAt)
	if err != nil {
		return domain.Order{}, false, err
	}

	if err := s.store.CreateOrder(ctx, o, evt); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			// Lost a race with a request carrying the same key or submitting
			// the same cart state.
			for _, k := range o.ReplayKeys() {
				if existing, qerr := s.store.GetOrderByIdempotencyKey(ctx, k); qerr == nil {
					return existing, true, nil
				}
			}
		}
		if errors.Is(err, apperr.ErrInsufficientStock) {
			s.metrics.StockConflict("insufficient_stock")
		}
		logging.Log(logging.Fields{
			Service: service,
			OrderID: string(o.ID),
			UserID:  string(in.User.ID),
			Step:    "create",
			Status:  "rejected",
			Error:   err.Error(),
		})
		return domain.Order{}, false, err
	}

	if err := s.carts.Clear(ctx, in.CartID); err != nil {
		logging.Log(logging.Fields{
			Service: service,
			OrderID: string(o.ID),
			Step:    "clear_cart",
			Error:   err.Error(),
		})
	}

	s.metrics.OrderPlaced()
	logging.Log(logging.Fields{
		Service:    service,
		OrderID:    string(o.ID),
		EventID:    evt.EventID,
		UserID:     string(in.User.ID),
		Step:       "create",
		Status:     string(o.Status),
		DurationMS: time.Since(start).Milliseconds(),
		Message:    "order placed",
	})
	return o, false, nil
}

func (s *Service) build(c cart.Cart, userID domain.UserID, customer domain.CustomerDetails, method domain.PaymentMethod, key string, at time.Time) domain.Order {
	items := make([]domain.OrderItem, 0, len(c.Lines))
	for _, l := range c.Lines {
		items = append(items, domain.OrderItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Taxable:   l.Taxable,
		})
	}
	totals := pricing.ComputeTotals(pricing.LinesFromItems(items), s.cfg.TaxRate)

	payment := domain.PaymentStatusPending
	if method.Prepaid() {
		payment = domain.PaymentStatusPaid
	}
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Phone = strings.TrimSpace(customer.Phone)
	customer.Address = strings.TrimSpace(customer.Address)

	id := domain.OrderID(uuid.NewString())
	return domain.Order{
		ID:             id,
		Number:         domain.OrderNumber(id),
		UserID:         userID,
		Items:          items,
		Subtotal:       totals.Subtotal,
		Tax:            totals.Tax,
		Total:          totals.Total,
		Customer:       customer,
		PaymentMethod:  method,
		PaymentStatus:  payment,
		Status:         domain.OrderStatusPending,
		DeliveryDate:   at.Add(s.cfg.DeliveryLead),
		IdempotencyKey: key,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

// UpdateOrderStatus applies an administrative status change. Only
// Pending -> Fulfilled is accepted; repeating it fails with
// ErrInvalidTransition and emits nothing.
func (s *Service) UpdateOrderStatus(ctx context.Context, id domain.OrderID, to domain.OrderStatus) (o domain.Order, err error) {
	const op = "order.UpdateOrderStatus"
	ctx, span := tracer.Start(ctx, op)
	span.SetAttributes(attribute.String("order.id", string(id)), attribute.String("order.status", string(to)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.metrics.Transition(string(to), "rejected")
		} else {
			s.metrics.Transition(string(to), "ok")
		}
		span.End()
	}()

	current, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !current.Status.CanTransitionTo(to) {
		return domain.Order{}, apperr.New(op, apperr.ErrInvalidTransition).WithID(string(id)).WithDetail("%s -> %s", current.Status, to)
	}

	var email string
	if u, uerr := s.users.GetUser(ctx, current.UserID); uerr == nil {
		email = u.Email
	} else {
		logging.Log(logging.Fields{
			Service: service,
			OrderID: string(id),
			UserID:  string(current.UserID),
			Step:    "lookup_customer",
			Error:   uerr.Error(),
		})
	}

	at := s.now().UTC()
	evt, err := contracts.NewEvent(contracts.EventOrderFulfilled, string(id), notice(current, email), at)
	if err != nil {
		return domain.Order{}, err
	}
	o, err = s.store.TransitionOrder(ctx, id, current.Status, to, at, evt)
	if err != nil {
		return domain.Order{}, err
	}

	logging.Log(logging.Fields{
		Service: service,
		OrderID: string(id),
		EventID: evt.EventID,
		Step:    "transition",
		Status:  string(o.Status),
		Message: "order status updated",
	})
	return o, nil
}

func (s *Service) Get(ctx context.Context, id domain.OrderID) (domain.Order, error) {
	return s.store.GetOrder(ctx, id)
}

// GetForUser hides orders that belong to someone else behind ErrNotFound.
func (s *Service) GetForUser(ctx context.Context, u domain.User, id domain.OrderID) (domain.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if o.UserID != u.ID && !u.IsAdmin {
		return domain.Order{}, apperr.New("order.GetForUser", apperr.ErrNotFound).WithID(string(id))
	}
	return o, nil
}

func (s *Service) ListForUser(ctx context.Context, userID domain.UserID) ([]domain.Order, error) {
	if userID == "" {
		return nil, apperr.New("order.ListForUser", apperr.ErrAuthFailed)
	}
	return s.store.ListOrders(ctx, userID)
}

func (s *Service) ListAll(ctx context.Context) ([]domain.Order, error) {
	return s.store.ListOrders(ctx, "")
}

func scopedKey(userID domain.UserID, key string) string {
	if key == "" {
		return ""
	}
	return string(userID) + ":" + key
}

// checkoutKey identifies one state of one cart for one user. Any change to
// the cart, including the clear after checkout, moves UpdatedAt.
func checkoutKey(userID domain.UserID, c cart.Cart) string {
	return string(userID) + ":cart:" + c.ID + ":" + strconv.FormatInt(c.UpdatedAt.UnixNano(), 10)
}

func notice(o domain.Order, email string) contracts.OrderNotice {
	items := make([]contracts.NoticeItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, contracts.NoticeItem{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(pricing.CentPlaces),
		})
	}
	return contracts.OrderNotice{
		OrderNumber:   o.Number,
		UserID:        string(o.UserID),
		CustomerName:  o.Customer.Name,
		CustomerEmail: email,
		Phone:         o.Customer.Phone,
		Address:       o.Customer.Address,
		Items:         items,
		Subtotal:      o.Subtotal.StringFixed(pricing.CentPlaces),
		Tax:           o.Tax.StringFixed(pricing.CentPlaces),
		Total:         o.Total.StringFixed(pricing.CentPlaces),
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		DeliveryDate:  o.DeliveryDate,
	}
}
