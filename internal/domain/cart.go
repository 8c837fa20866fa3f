package domain

import "time"

// CartStatus enumerates cart lifecycle states. Only an active cart accepts
// mutations; the other three states are terminal.
type CartStatus string

const (
	CartActive    CartStatus = "active"
	CartAbandoned CartStatus = "abandoned"
	CartConverted CartStatus = "converted"
	CartExpired   CartStatus = "expired"
)

// AppliedCoupon is the typed coupon-on-cart state: the code the shopper
// applied plus the discount computed at application time.
type AppliedCoupon struct {
	Code          string `json:"code"`
	DiscountCents int64  `json:"discountCents"`
}

// Cart is a mutable collection of line items owned by exactly one of a
// registered user or an anonymous session. All money math is delegated to
// the pricing package; the cart holds structural state only.
type Cart struct {
	ID            string         `json:"id"`
	UserID        *string        `json:"userId,omitempty"`
	SessionID     *string        `json:"-"`
	Status        CartStatus     `json:"status"`
	AppliedCoupon *AppliedCoupon `json:"appliedCoupon,omitempty"`
	ExpiresAt     time.Time      `json:"expiresAt"`
	CreatedAt     time.Time      `json:"createdAt"`
	Items         []CartItem     `json:"items"`
}

// CartItem is one cart line. PriceCents is a snapshot taken when the item
// was added; it is re-synced to the live variant price on every
// cart-visibility operation.
type CartItem struct {
	ID         string    `json:"id"`
	CartID     string    `json:"cartId"`
	VariantID  string    `json:"variantId"`
	Quantity   int       `json:"quantity"`
	PriceCents int64     `json:"priceCents"`
	CreatedAt  time.Time `json:"createdAt"`

	// SavingsCents is the line total saved against the variant's compare-at
	// price. Zero when the variant has no compare-at price.
	SavingsCents int64 `json:"savingsCents,omitempty"`

	// Variant is the live variant joined in by the repository for
	// validation and snapshot building. Nil when not loaded.
	Variant *Variant `json:"variant,omitempty"`
}

// IsActive reports whether the cart still accepts mutations.
func (c Cart) IsActive() bool {
	return c.Status == CartActive
}

// IsEmpty reports whether the cart has no items. An empty active cart is a
// valid state and is not auto-destroyed.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemByVariant returns the line holding the given variant, or nil. At most
// one line exists per (cart, variant) pair.
func (c Cart) ItemByVariant(variantID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			return &c.Items[i]
		}
	}
	return nil
}

// ItemByID returns the line with the given id, or nil.
func (c Cart) ItemByID(itemID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i]
		}
	}
	return nil
}

// TotalQuantity sums the quantities across all lines.
func (c Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// LineTotalCents is quantity times the snapshot price.
func (i CartItem) LineTotalCents() int64 {
	return i.PriceCents * int64(i.Quantity)
}
