package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrCartLocked indicates a mutation was attempted on a cart that is no
	// longer active (converted, abandoned or expired).
	ErrCartLocked = errors.New("cart is not active")

	// ErrEmptyCart indicates checkout was requested for a cart with no items.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrProductUnavailable indicates the variant is inactive or out of stock
	// at add-to-cart time.
	ErrProductUnavailable = errors.New("product variant not found or unavailable")

	// ErrInvalidAddress indicates a checkout address does not exist or is not
	// owned by the requesting user.
	ErrInvalidAddress = errors.New("invalid address")
)

// InsufficientStockError reports a requested quantity exceeding live stock.
type InsufficientStockError struct {
	VariantID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("only %d units of %q available, but %d requested", e.Available, e.Name, e.Requested)
	}
	return fmt.Sprintf("only %d units available, but %d requested", e.Available, e.Requested)
}

// CartValidationError carries every failing line collected by cart validation.
type CartValidationError struct {
	Errors []string
}

func (e *CartValidationError) Error() string {
	return "cart validation failed: " + strings.Join(e.Errors, "; ")
}

// CouponValidationError carries every reason a coupon was rejected.
type CouponValidationError struct {
	Code   string
	Errors []string
}

func (e *CouponValidationError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, strings.Join(e.Errors, "; "))
}

// InvalidTransitionError reports an order status change outside the allowed
// transition set.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order cannot transition from %s to %s", e.From, e.To)
}
