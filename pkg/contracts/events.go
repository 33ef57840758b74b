package contracts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	EventID   string          `json:"event_id"`
	OrderID   string          `json:"order_id"`
	CreatedAt time.Time       `json:"created_at"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

const (
	EventOrderPlaced    = "order.placed"
	EventOrderFulfilled = "order.fulfilled"
)

// OrderNotice is the payload of both order events. Amounts are fixed
// two-place decimal strings.
type OrderNotice struct {
	OrderNumber   string       `json:"order_number"`
	UserID        string       `json:"user_id"`
	CustomerName  string       `json:"customer_name"`
	CustomerEmail string       `json:"customer_email,omitempty"`
	Phone         string       `json:"phone,omitempty"`
	Address       string       `json:"address,omitempty"`
	Items         []NoticeItem `json:"items"`
	Subtotal      string       `json:"subtotal"`
	Tax           string       `json:"tax"`
	Total         string       `json:"total"`
	PaymentMethod string       `json:"payment_method"`
	PaymentStatus string       `json:"payment_status"`
	DeliveryDate  time.Time    `json:"delivery_date"`
}

type NoticeItem struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

func NewEvent(eventType, orderID string, payload any, at time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{
		EventID:   uuid.NewString(),
		OrderID:   orderID,
		CreatedAt: at.UTC(),
		Type:      eventType,
		Payload:   data,
	}, nil
}

func (e Event) Notice() (OrderNotice, error) {
	var n OrderNotice
	if err := json.Unmarshal(e.Payload, &n); err != nil {
		return OrderNotice{}, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return n, nil
}
