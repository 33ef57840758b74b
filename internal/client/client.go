// Package client is a typed client for the storefront HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/cart"
	"github.com/mohamedebada21/last-online-halal/internal/catalog"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/internal/identity"
	"github.com/mohamedebada21/last-online-halal/internal/pricing"
	"github.com/mohamedebada21/last-online-halal/pkg/idempotency"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
	// Token is sent as a bearer token when set.
	Token string
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

// APIError is a non-2xx answer. It unwraps to the matching apperr sentinel.
type APIError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Code)
}

var codes = map[string]error{
	"not_found":             apperr.ErrNotFound,
	"out_of_stock":          apperr.ErrOutOfStock,
	"stock_exceeded":        apperr.ErrStockExceeded,
	"insufficient_stock":    apperr.ErrInsufficientStock,
	"invalid_transition":    apperr.ErrInvalidTransition,
	"duplicate_email":       apperr.ErrDuplicateEmail,
	"duplicate":             apperr.ErrDuplicate,
	"invalid_product":       apperr.ErrInvalidProduct,
	"invalid_input":         apperr.ErrInvalidInput,
	"empty_cart":            apperr.ErrEmptyCart,
	"auth_failed":           apperr.ErrAuthFailed,
	"forbidden":             apperr.ErrUnauthorized,
	"confirmation_required": apperr.ErrConfirmationRequired,
}

func (e *APIError) Unwrap() error {
	return codes[e.Code]
}

type CartView struct {
	cart.Cart
	pricing.Totals
	Warning string `json:"warning,omitempty"`
}

type Checkout struct {
	CartID          string                 `json:"cartId"`
	CustomerDetails domain.CustomerDetails `json:"customerDetails"`
	PaymentMethod   string                 `json:"paymentMethod"`
}

type ProductForm struct {
	ID                string `json:"id,omitempty"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	Category          string `json:"category,omitempty"`
	Price             string `json:"price"`
	Unit              string `json:"unit,omitempty"`
	Stock             string `json:"stock"`
	LowStockThreshold string `json:"lowStockThreshold,omitempty"`
	ImageURL          string `json:"imageUrl,omitempty"`
	Taxable           bool   `json:"taxable"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, headers ...string) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, apiErr) != nil {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return resp.StatusCode, apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

// Accounts

func (c *Client) Register(ctx context.Context, r identity.Registration) (domain.User, error) {
	var u domain.User
	_, err := c.do(ctx, http.MethodPost, "/api/users/register", r, &u)
	return u, err
}

// Login stores the session token on c.
func (c *Client) Login(ctx context.Context, email, password string) (identity.Session, error) {
	var s identity.Session
	_, err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, &s)
	if err == nil {
		c.Token = s.Token
	}
	return s, err
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.Token = ""
	return err
}

func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var u domain.User
	_, err := c.do(ctx, http.MethodGet, "/api/me", nil, &u)
	return u, err
}

// Catalog

func (c *Client) Products(ctx context.Context, category string) ([]domain.Product, error) {
	path := "/api/products"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var out []domain.Product
	_, err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Product(ctx context.Context, id domain.ProductID) (domain.Product, error) {
	var p domain.Product
	_, err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(string(id)), nil, &p)
	return p, err
}

func (c *Client) UpsertProduct(ctx context.Context, f ProductForm) (domain.Product, error) {
	var p domain.Product
	_, err := c.do(ctx, http.MethodPost, "/api/admin/products", f, &p)
	return p, err
}

func (c *Client) DeleteProduct(ctx context.Context, id domain.ProductID) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/admin/products/"+url.PathEscape(string(id))+"?confirm=true", nil, nil)
	return err
}

func (c *Client) Inventory(ctx context.Context) ([]catalog.InventoryRow, error) {
	var rows []catalog.InventoryRow
	_, err := c.do(ctx, http.MethodGet, "/api/admin/inventory", nil, &rows)
	return rows, err
}

// Carts

func (c *Client) CreateCart(ctx context.Context) (CartView, error) {
	var v CartView
	_, err := c.do(ctx, http.MethodPost, "/api/carts", nil, &v)
	return v, err
}

func (c *Client) Cart(ctx context.Context, cartID string) (CartView, error) {
	var v CartView
	_, err := c.do(ctx, http.MethodGet, "/api/carts/"+url.PathEscape(cartID), nil, &v)
	return v, err
}

func (c *Client) AddItem(ctx context.Context, cartID string, productID domain.ProductID) (CartView, error) {
	var v CartView
	_, err := c.do(ctx, http.MethodPost, "/api/carts/"+url.PathEscape(cartID)+"/items", map[string]string{"productId": string(productID)}, &v)
	return v, err
}

// SetQuantity reports clamping through CartView.Warning, not as an error.
func (c *Client) SetQuantity(ctx context.Context, cartID string, productID domain.ProductID, qty int) (CartView, error) {
	var v CartView
	path := "/api/carts/" + url.PathEscape(cartID) + "/items/" + url.PathEscape(string(productID))
	_, err := c.do(ctx, http.MethodPut, path, map[string]int{"quantity": qty}, &v)
	return v, err
}

func (c *Client) RemoveItem(ctx context.Context, cartID string, productID domain.ProductID) (CartView, error) {
	var v CartView
	path := "/api/carts/" + url.PathEscape(cartID) + "/items/" + url.PathEscape(string(productID))
	_, err := c.do(ctx, http.MethodDelete, path, nil, &v)
	return v, err
}

// Orders

// PlaceOrder sends idemKey as the Idempotency-Key header when it is not
// empty. The bool result is true when the server replayed an earlier order.
func (c *Client) PlaceOrder(ctx context.Context, in Checkout, idemKey string) (domain.Order, bool, error) {
	var o domain.Order
	var headers []string
	if idemKey != "" {
		headers = []string{idempotency.Header, idemKey}
	}
	status, err := c.do(ctx, http.MethodPost, "/api/orders", in, &o, headers...)
	return o, status == http.StatusOK, err
}

func (c *Client) Orders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	_, err := c.do(ctx, http.MethodGet, "/api/orders", nil, &out)
	return out, err
}

func (c *Client) Order(ctx context.Context, id domain.OrderID) (domain.Order, error) {
	var o domain.Order
	_, err := c.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(string(id)), nil, &o)
	return o, err
}

func (c *Client) AllOrders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	_, err := c.do(ctx, http.MethodGet, "/api/admin/orders", nil, &out)
	return out, err
}

func (c *Client) SetOrderStatus(ctx context.Context, id domain.OrderID, status domain.OrderStatus) (domain.Order, error) {
	var o domain.Order
	_, err := c.do(ctx, http.MethodPatch, "/api/admin/orders/"+url.PathEscape(string(id))+"/status", map[string]string{"orderStatus": string(status)}, &o)
	return o, err
}
