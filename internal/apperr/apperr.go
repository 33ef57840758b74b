// Package apperr defines the storefront's error taxonomy. Validation errors
// are returned before any state changes; callers compare with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// Cart and checkout stock errors
	ErrOutOfStock        = errors.New("out of stock")
	ErrStockExceeded     = errors.New("stock exceeded")
	ErrInsufficientStock = errors.New("insufficient stock")

	ErrInvalidProduct    = errors.New("invalid product")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidInput      = errors.New("invalid input")

	// Identity errors
	ErrAuthFailed     = errors.New("authentication failed")
	ErrUnauthorized   = errors.New("not allowed")
	ErrDuplicateEmail = errors.New("email already registered")

	ErrNotFound             = errors.New("not found")
	ErrDuplicate            = errors.New("duplicate")
	ErrConfirmationRequired = errors.New("confirmation required")

	// ErrNotificationFailed is logged by the notifier and never returned from
	// an order operation.
	ErrNotificationFailed = errors.New("notification failed")
)

// Error carries the failing operation and the entity involved.
type Error struct {
	Op     string // e.g. "cart.AddItem"
	ID     string // product, order or user id
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.ID != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Op, e.ID, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(op string, kind error) *Error {
	return &Error{Op: op, Err: kind}
}

func (e *Error) WithID(id string) *Error {
	e.ID = id
	return e
}

func (e *Error) WithDetail(format string, args ...any) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Kind returns the taxonomy sentinel err wraps, or nil for unexpected errors.
func Kind(err error) error {
	for _, kind := range []error{
		ErrOutOfStock, ErrStockExceeded, ErrInsufficientStock, ErrInvalidProduct,
		ErrInvalidTransition, ErrEmptyCart, ErrInvalidInput, ErrAuthFailed,
		ErrUnauthorized, ErrDuplicateEmail, ErrNotFound, ErrDuplicate,
		ErrConfirmationRequired, ErrNotificationFailed,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
