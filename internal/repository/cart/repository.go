package cart

import (
	"context"

	"storefront/internal/domain"
)

// CreateCartInput names the owner of a new cart: exactly one of UserID or
// SessionID must be set.
type CreateCartInput struct {
	UserID    *string
	SessionID *string
}

// PriceChange reports a cart line whose snapshot price was re-synced to the
// live variant price.
type PriceChange struct {
	ItemID        string
	Name          string
	OldPriceCents int64
	NewPriceCents int64
}

// Repository persists carts and their lines. Mutations run in a transaction
// that locks the cart row, rejecting non-active carts and serializing
// concurrent updates from multiple tabs.
type Repository interface {
	Create(ctx context.Context, in CreateCartInput) (*domain.Cart, error)
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
	GetActiveByUser(ctx context.Context, userID string) (*domain.Cart, error)
	GetActiveBySession(ctx context.Context, sessionID string) (*domain.Cart, error)
	AddItem(ctx context.Context, cartID string, v domain.Variant, quantity int) error
	UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error
	Clear(ctx context.Context, cartID string) error
	SetCoupon(ctx context.Context, cartID string, coupon *domain.AppliedCoupon) error
	SyncPrices(ctx context.Context, cartID string) ([]PriceChange, error)
}
