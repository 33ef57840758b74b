package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderID string
type UserID string

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusFulfilled OrderStatus = "Fulfilled"
)

// CanTransitionTo reports whether s may move to next. Pending -> Fulfilled is
// the only legal move; Fulfilled is terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == OrderStatusPending && next == OrderStatusFulfilled
}

func ParseOrderStatus(v string) (OrderStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "pending":
		return OrderStatusPending, true
	case "fulfilled":
		return OrderStatusFulfilled, true
	}
	return "", false
}

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cod"
	PaymentCard           PaymentMethod = "card"
)

// Prepaid methods are settled before delivery.
func (m PaymentMethod) Prepaid() bool {
	return m == PaymentCard
}

func ParsePaymentMethod(v string) (PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "cod":
		return PaymentCashOnDelivery, true
	case "card", "stripe":
		return PaymentCard, true
	}
	return "", false
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
)

// OrderItem is frozen at placement and never follows later product edits.
type OrderItem struct {
	ProductID ProductID       `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
	Taxable   bool            `json:"taxable"`
}

type CustomerDetails struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (c CustomerDetails) Complete() bool {
	return strings.TrimSpace(c.Name) != "" && strings.TrimSpace(c.Phone) != "" && strings.TrimSpace(c.Address) != ""
}

type Order struct {
	ID     OrderID     `json:"id"`
	Number string      `json:"orderNumber"`
	UserID UserID      `json:"userId"`
	Items  []OrderItem `json:"items"`

	// Total == Subtotal + Tax, all rounded to cents once at placement.
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"taxAmount"`
	Total    decimal.Decimal `json:"totalAmount"`

	Customer      CustomerDetails `json:"customerDetails"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	Status        OrderStatus     `json:"orderStatus"`
	DeliveryDate  time.Time       `json:"deliveryDate"`

	IdempotencyKey string `json:"-"`
	// CheckoutKey names the user and cart state the order was placed from.
	// Stores keep it unique alongside IdempotencyKey.
	CheckoutKey string `json:"-"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	FulfilledAt *time.Time `json:"fulfilledAt,omitempty"`
}

// ReplayKeys lists the keys under which the order can be found again.
func (o Order) ReplayKeys() []string {
	keys := make([]string, 0, 2)
	for _, k := range []string{o.IdempotencyKey, o.CheckoutKey} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// OrderNumber derives the customer-facing reference from an order id.
func OrderNumber(id OrderID) string {
	ref := strings.ToUpper(strings.ReplaceAll(string(id), "-", ""))
	if len(ref) > 8 {
		ref = ref[:8]
	}
	return "ORD-" + ref
}
