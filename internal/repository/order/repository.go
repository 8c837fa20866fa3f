package order

import (
	"context"

	"storefront/internal/domain"
)

// CreateOrderInput carries everything the checkout transaction needs. The
// item snapshots are built from the cart's live lines inside the
// transaction, after the cart row is locked.
type CreateOrderInput struct {
	CartID          string
	UserID          string
	OrderNumber     string
	Currency        string
	Totals          domain.Totals
	CouponID        *string
	CouponCode      string
	ShippingAddress domain.Address
	BillingAddress  domain.Address
	PaymentMethod   string
	Notes           string

	// CapturePayment marks the payment method as immediately capturable:
	// the order is created already confirmed with payment captured.
	CapturePayment bool
}

// ListFilter narrows and pages an order history query.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

// Repository persists orders. CreateFromCart and the compensating
// transitions (Cancel, Refund) each run as a single transaction so order
// state and the inventory ledger can never diverge.
type Repository interface {
	CreateFromCart(ctx context.Context, in CreateOrderInput) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByIDForUser(ctx context.Context, id, userID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, f ListFilter) ([]domain.Order, int, error)
	Cancel(ctx context.Context, id string) (*domain.Order, error)
	MarkShipped(ctx context.Context, id, carrier, trackingNumber string) (*domain.Order, error)
	MarkDelivered(ctx context.Context, id string) (*domain.Order, error)
	Refund(ctx context.Context, id string, amountCents int64) (*domain.Order, error)
	SetPaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) error
}
