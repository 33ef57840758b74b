// Package httpapi exposes the storefront over JSON/HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/cart"
	"github.com/mohamedebada21/last-online-halal/internal/catalog"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/internal/identity"
	"github.com/mohamedebada21/last-online-halal/internal/order"
	"github.com/mohamedebada21/last-online-halal/pkg/logging"
	"github.com/mohamedebada21/last-online-halal/pkg/metrics"
)

const service = "storefront-api"

type Handler struct {
	catalog  *catalog.Service
	carts    *cart.Service
	orders   *order.Service
	identity *identity.Service
	metrics  *metrics.ServerMetrics
	ping     func(context.Context) error
}

type Deps struct {
	Catalog  *catalog.Service
	Carts    *cart.Service
	Orders   *order.Service
	Identity *identity.Service
	Metrics  *metrics.ServerMetrics
	// Ping checks the backing store for /health. Optional.
	Ping func(context.Context) error
}

func New(d Deps) *Handler {
	return &Handler{
		catalog:  d.Catalog,
		carts:    d.Carts,
		orders:   d.Orders,
		identity: d.Identity,
		metrics:  d.Metrics,
		ping:     d.Ping,
	}
}

// Router builds the full route tree. gatherer backs /metrics and may be nil.
func (h *Handler) Router(gatherer prometheus.Gatherer, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}
	r.Use(h.observe)

	r.Get("/health", h.Health)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/users/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)

		r.Get("/products", h.ListProducts)
		r.Get("/products/{productID}", h.GetProduct)

		r.Post("/carts", h.CreateCart)
		r.Route("/carts/{cartID}", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.DeleteCart)
			r.Post("/items", h.AddCartItem)
			r.Put("/items/{productID}", h.SetCartQuantity)
			r.Delete("/items/{productID}", h.RemoveCartItem)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)
			r.Get("/me", h.Me)
			r.Post("/orders", h.PlaceOrder)
			r.Get("/orders", h.ListMyOrders)
			r.Get("/orders/{orderID}", h.GetOrder)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAdmin)
				r.Post("/products", h.UpsertProduct)
				r.Delete("/products/{productID}", h.DeleteProduct)
				r.Get("/inventory", h.Inventory)
				r.Get("/orders", h.ListAllOrders)
				r.Patch("/orders/{orderID}/status", h.UpdateOrderStatus)
			})
		})
	})
	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "db_error"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = r.Method + " " + rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.Observe(route, status, start)
	})
}

type userKey struct{}

func userFrom(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userKey{}).(domain.User)
	return u, ok
}

func bearerToken(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := h.identity.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, _ := userFrom(r.Context())
		if err := identity.RequireAdmin(u); err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var errorCodes = []struct {
	kind   error
	status int
	code   string
}{
	{apperr.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperr.ErrOutOfStock, http.StatusConflict, "out_of_stock"},
	{apperr.ErrStockExceeded, http.StatusConflict, "stock_exceeded"},
	{apperr.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
	{apperr.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{apperr.ErrDuplicateEmail, http.StatusConflict, "duplicate_email"},
	{apperr.ErrDuplicate, http.StatusConflict, "duplicate"},
	{apperr.ErrInvalidProduct, http.StatusUnprocessableEntity, "invalid_product"},
	{apperr.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input"},
	{apperr.ErrEmptyCart, http.StatusUnprocessableEntity, "empty_cart"},
	{apperr.ErrAuthFailed, http.StatusUnauthorized, "auth_failed"},
	{apperr.ErrUnauthorized, http.StatusForbidden, "forbidden"},
	{apperr.ErrConfirmationRequired, http.StatusBadRequest, "confirmation_required"},
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, c := range errorCodes {
		if errors.Is(err, c.kind) {
			writeJSON(w, c.status, ErrorResponse{Error: c.code, Message: err.Error()})
			return
		}
	}
	logging.Log(logging.Fields{
		Service: service,
		Step:    r.Method + " " + r.URL.Path,
		Status:  "internal_error",
		Error:   err.Error(),
	})
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: message})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
