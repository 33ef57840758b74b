package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/cart"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/internal/pricing"
)

const warningStockExceeded = "stock_exceeded"

type CartResponse struct {
	cart.Cart
	pricing.Totals
	Warning string `json:"warning,omitempty"`
}

type AddItemRequest struct {
	ProductID string `json:"productId"`
}

type SetQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *Handler) cartResponse(c cart.Cart) CartResponse {
	if c.Lines == nil {
		c.Lines = []cart.Line{}
	}
	return CartResponse{Cart: c, Totals: h.carts.Totals(c)}
}

func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Create(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.cartResponse(c))
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartResponse(c))
}

func (h *Handler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Delete(r.Context(), chi.URLParam(r, "cartID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := decode(r, &req); err != nil || req.ProductID == "" {
		writeBadRequest(w, "productId is required")
		return
	}
	c, err := h.carts.AddItem(r.Context(), chi.URLParam(r, "cartID"), domain.ProductID(req.ProductID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartResponse(c))
}

// SetCartQuantity answers 200 with the clamped cart and a warning when the
// requested quantity exceeded stock.
func (h *Handler) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req SetQuantityRequest
	if err := decode(r, &req); err != nil || req.Quantity == nil {
		writeBadRequest(w, "quantity is required")
		return
	}
	c, err := h.carts.SetQuantity(r.Context(), chi.URLParam(r, "cartID"), domain.ProductID(chi.URLParam(r, "productID")), *req.Quantity)
	if errors.Is(err, apperr.ErrStockExceeded) {
		resp := h.cartResponse(c)
		resp.Warning = warningStockExceeded
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartResponse(c))
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveItem(r.Context(), chi.URLParam(r, "cartID"), domain.ProductID(chi.URLParam(r, "productID")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartResponse(c))
}
