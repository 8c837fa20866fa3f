package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/events"
	orderrepo "storefront/internal/repository/order"
	cartsvc "storefront/internal/service/cart"
)

// ErrSignInRequired rejects guest checkout: orders always belong to a user
// account, never to an anonymous session.
var ErrSignInRequired = errors.New("sign in required to check out")

// ErrUnknownPaymentStatus rejects payment callbacks with a status outside
// the accepted set.
var ErrUnknownPaymentStatus = errors.New("unknown payment status")

// ErrUnsupportedPaymentMethod rejects checkout with a payment method the
// payment collaborator does not handle.
var ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")

// capturable lists accepted payment methods; true means the method settles
// immediately, so the order is created confirmed with payment captured.
var capturable = map[string]bool{
	"credit_card":      true,
	"paypal":           true,
	"bank_transfer":    false,
	"cash_on_delivery": false,
}

type orderRepo interface {
	CreateFromCart(ctx context.Context, in orderrepo.CreateOrderInput) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByIDForUser(ctx context.Context, id, userID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, f orderrepo.ListFilter) ([]domain.Order, int, error)
	Cancel(ctx context.Context, id string) (*domain.Order, error)
	MarkShipped(ctx context.Context, id, carrier, trackingNumber string) (*domain.Order, error)
	MarkDelivered(ctx context.Context, id string) (*domain.Order, error)
	Refund(ctx context.Context, id string, amountCents int64) (*domain.Order, error)
	SetPaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) error
}

type cartService interface {
	GetOrCreate(ctx context.Context, shopper domain.Shopper) (*domain.Cart, error)
	ValidateCart(ctx context.Context, cart *domain.Cart) (*cartsvc.ValidationResult, error)
	Totals(ctx context.Context, cart *domain.Cart) (domain.Totals, []string, error)
}

type addressRepo interface {
	GetForUser(ctx context.Context, id, userID string) (*domain.Address, error)
}

type couponRepo interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
}

// Service drives checkout and the order lifecycle. Checkout itself is a
// precondition chain here and a single transaction in the repository; the
// transitions delegate their guards to the repository so they run under the
// order row lock.
type Service struct {
	repo      orderRepo
	carts     cartService
	addresses addressRepo
	coupons   couponRepo
	recorder  events.Recorder
	currency  string
}

func New(repo orderRepo, carts cartService, addresses addressRepo, coupons couponRepo, recorder events.Recorder, currency string) *Service {
	if recorder == nil {
		recorder = events.Noop{}
	}
	if currency == "" {
		currency = "USD"
	}
	return &Service{
		repo:      repo,
		carts:     carts,
		addresses: addresses,
		coupons:   coupons,
		recorder:  recorder,
		currency:  currency,
	}
}

// CheckoutInput is the shopper-supplied half of an order; everything else
// is snapshotted from the cart.
type CheckoutInput struct {
	ShippingAddressID string
	BillingAddressID  string
	PaymentMethod     string
	Notes             string
}

// Checkout converts the shopper's active cart into an order. Preconditions
// run first (signed-in shopper, active non-empty cart, every line still
// purchasable, owned addresses); the repository then performs the
// order-create, stock-reserve, coupon-usage and cart-convert steps in one
// transaction, so a failed reservation leaves the cart untouched.
func (s *Service) Checkout(ctx context.Context, shopper domain.Shopper, in CheckoutInput) (*domain.Order, error) {
	if shopper.UserID == nil {
		return nil, ErrSignInRequired
	}
	userID := *shopper.UserID

	method := strings.TrimSpace(in.PaymentMethod)
	capture, ok := capturable[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPaymentMethod, in.PaymentMethod)
	}
	if in.ShippingAddressID == "" {
		return nil, domain.ErrInvalidAddress
	}

	cart, err := s.carts.GetOrCreate(ctx, shopper)
	if err != nil {
		return nil, err
	}
	if !cart.IsActive() {
		return nil, domain.ErrCartLocked
	}
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	validation, err := s.carts.ValidateCart(ctx, cart)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, &domain.CartValidationError{Errors: validation.Errors}
	}

	// Validation commits snapshot price re-syncs to the cart rows. Reload so
	// totals are computed from the same prices the order items will snapshot.
	cart, err = s.carts.GetOrCreate(ctx, shopper)
	if err != nil {
		return nil, err
	}

	shipping, err := s.resolveAddress(ctx, in.ShippingAddressID, userID)
	if err != nil {
		return nil, err
	}
	billing := shipping
	if in.BillingAddressID != "" && in.BillingAddressID != in.ShippingAddressID {
		billing, err = s.resolveAddress(ctx, in.BillingAddressID, userID)
		if err != nil {
			return nil, err
		}
	}

	totals, warnings, err := s.carts.Totals(ctx, cart)
	if err != nil {
		return nil, err
	}

	// A coupon that no longer validates is dropped from the order rather
	// than blocking checkout; totals already exclude its discount.
	var couponID *string
	couponCode := ""
	if cart.AppliedCoupon != nil && len(warnings) == 0 {
		coupon, err := s.coupons.GetByCode(ctx, cart.AppliedCoupon.Code)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if coupon != nil {
			couponID = &coupon.ID
			couponCode = coupon.Code
		}
	}

	order, err := s.repo.CreateFromCart(ctx, orderrepo.CreateOrderInput{
		CartID:          cart.ID,
		UserID:          userID,
		OrderNumber:     newOrderNumber(time.Now()),
		Currency:        s.currency,
		Totals:          totals,
		CouponID:        couponID,
		CouponCode:      couponCode,
		ShippingAddress: *shipping,
		BillingAddress:  *billing,
		PaymentMethod:   method,
		Notes:           in.Notes,
		CapturePayment:  capture,
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, events.Event{
		Type:       "order_created",
		UserID:     shopper.UserID,
		SessionID:  shopper.SessionID,
		EntityType: "order",
		EntityID:   order.ID,
		Metadata: map[string]interface{}{
			"order_number": order.OrderNumber,
			"total_cents":  order.TotalCents,
			"item_count":   order.ItemCount(),
		},
	})

	return order, nil
}

// Get returns one of the shopper's orders.
func (s *Service) Get(ctx context.Context, shopper domain.Shopper, orderID string) (*domain.Order, error) {
	if shopper.UserID == nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByIDForUser(ctx, orderID, *shopper.UserID)
}

// List pages through the shopper's order history, newest first.
func (s *Service) List(ctx context.Context, shopper domain.Shopper, f orderrepo.ListFilter) ([]domain.Order, int, error) {
	if shopper.UserID == nil {
		return nil, 0, nil
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.ListByUser(ctx, *shopper.UserID, f)
}

// Cancel cancels one of the shopper's orders while it is still pending or
// confirmed, releasing its stock reservations.
func (s *Service) Cancel(ctx context.Context, shopper domain.Shopper, orderID, reason string) (*domain.Order, error) {
	current, err := s.Get(ctx, shopper, orderID)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.Cancel(ctx, current.ID)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, events.Event{
		Type:       "order_cancelled",
		UserID:     shopper.UserID,
		SessionID:  shopper.SessionID,
		EntityType: "order",
		EntityID:   order.ID,
		Metadata:   map[string]interface{}{"reason": reason},
	})
	return order, nil
}

// Ship marks an order shipped with carrier and tracking details. Called by
// the fulfillment surface, so it is not owner scoped.
func (s *Service) Ship(ctx context.Context, orderID, carrier, trackingNumber string) (*domain.Order, error) {
	return s.repo.MarkShipped(ctx, orderID, carrier, trackingNumber)
}

// Deliver marks a shipped order delivered.
func (s *Service) Deliver(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.repo.MarkDelivered(ctx, orderID)
}

// Refund refunds a shipped or delivered captured order. A zero amount or an
// amount covering the full total refunds fully and releases stock; anything
// lower records a partial refund without restocking. Partial refunds can be
// topped up by further calls until the total is covered.
func (s *Service) Refund(ctx context.Context, orderID string, amountCents int64) (*domain.Order, error) {
	if amountCents < 0 {
		return nil, errors.New("refund amount cannot be negative")
	}
	return s.repo.Refund(ctx, orderID, amountCents)
}

// SetPaymentStatus applies a payment collaborator callback. Capturing a
// pending order also confirms it; repeated callbacks are idempotent.
func (s *Service) SetPaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error {
	switch status {
	case domain.PaymentPending, domain.PaymentAuthorized, domain.PaymentCaptured,
		domain.PaymentFailed, domain.PaymentRefunded, domain.PaymentPartiallyRefunded:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPaymentStatus, status)
	}
	return s.repo.SetPaymentStatus(ctx, orderID, status)
}

func (s *Service) resolveAddress(ctx context.Context, id, userID string) (*domain.Address, error) {
	addr, err := s.addresses.GetForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidAddress
		}
		return nil, err
	}
	return addr, nil
}

// newOrderNumber builds a human-quotable order number: date plus a short
// random suffix. Uniqueness is enforced by the orders.order_number unique
// index; collisions at this entropy are not a practical concern.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}
