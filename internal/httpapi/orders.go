package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/internal/order"
	"github.com/mohamedebada21/last-online-halal/pkg/idempotency"
)

type PlaceOrderRequest struct {
	CartID          string                 `json:"cartId"`
	CustomerDetails domain.CustomerDetails `json:"customerDetails"`
	PaymentMethod   string                 `json:"paymentMethod"`
}

type StatusRequest struct {
	OrderStatus string `json:"orderStatus"`
}

// PlaceOrder answers 201 for a new order and 200 when the Idempotency-Key
// replays an earlier one.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := decode(r, &req); err != nil || req.CartID == "" {
		writeBadRequest(w, "cartId is required")
		return
	}
	key, err := idempotency.Key(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	u, _ := userFrom(r.Context())
	o, replayed, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderInput{
		CartID:         req.CartID,
		User:           &u,
		Customer:       req.CustomerDetails,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: key,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, o)
}

func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	orders, err := h.orders.ListForUser(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	o, err := h.orders.GetForUser(r.Context(), u, domain.OrderID(chi.URLParam(r, "orderID")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid JSON body")
		return
	}
	id := chi.URLParam(r, "orderID")
	status, ok := domain.ParseOrderStatus(req.OrderStatus)
	if !ok {
		writeError(w, r, apperr.New("httpapi.UpdateOrderStatus", apperr.ErrInvalidInput).WithID(id).WithDetail("unknown status %q", req.OrderStatus))
		return
	}
	o, err := h.orders.UpdateOrderStatus(r.Context(), domain.OrderID(id), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
