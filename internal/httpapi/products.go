package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/catalog"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
)

// formValue accepts a JSON string or number and keeps its text.
type formValue string

func (v *formValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = formValue(s)
		return nil
	}
	*v = formValue(b)
	return nil
}

type ProductRequest struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Category          string    `json:"category"`
	Price             formValue `json:"price"`
	Unit              string    `json:"unit"`
	Stock             formValue `json:"stock"`
	LowStockThreshold formValue `json:"lowStockThreshold"`
	ImageURL          string    `json:"imageUrl"`
	Taxable           bool      `json:"taxable"`
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	f := catalog.Filter{Category: r.URL.Query().Get("category")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	products, err := h.catalog.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), domain.ProductID(chi.URLParam(r, "productID")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "Invalid JSON body")
		return
	}
	p, err := h.catalog.Upsert(r.Context(), catalog.ProductInput{
		ID:                req.ID,
		Name:              req.Name,
		Description:       req.Description,
		Category:          req.Category,
		Price:             string(req.Price),
		Unit:              req.Unit,
		Stock:             string(req.Stock),
		LowStockThreshold: string(req.LowStockThreshold),
		ImageURL:          req.ImageURL,
		Taxable:           req.Taxable,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProduct requires ?confirm=true.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")
	if confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); !confirm {
		writeError(w, r, apperr.New("httpapi.DeleteProduct", apperr.ErrConfirmationRequired).WithID(id))
		return
	}
	if err := h.catalog.Delete(r.Context(), domain.ProductID(id)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	rows, err := h.catalog.Inventory(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
