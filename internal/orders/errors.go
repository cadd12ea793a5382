package orders

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrDuplicateItem      = errors.New("product already in cart")
	ErrItemNotFound       = errors.New("product not in cart")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCartConflict       = errors.New("cart was modified concurrently")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrInvalidTransition  = errors.New("order status cannot be changed")
	ErrStatusConflict     = errors.New("order status changed concurrently")
	ErrLockBusy           = errors.New("lock is held by another caller")

	// ErrNotificationDelivery is logged by the notifier, never returned to
	// order callers.
	ErrNotificationDelivery = errors.New("notification delivery failed")
)

// InsufficientStockError identifies the product that could not be reserved.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// ProductError attaches a product id to a sentinel such as ErrProductNotFound.
type ProductError struct {
	ProductID string
	Err       error
}

func (e *ProductError) Error() string { return fmt.Sprintf("%v: %s", e.Err, e.ProductID) }

func (e *ProductError) Unwrap() error { return e.Err }

// ProductOf returns the product id carried by err, if any.
func ProductOf(err error) string {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise.ProductID
	}
	var pe *ProductError
	if errors.As(err, &pe) {
		return pe.ProductID
	}
	return ""
}
