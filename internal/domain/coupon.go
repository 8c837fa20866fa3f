package domain

import "time"

// DiscountType enumerates coupon discount kinds.
type DiscountType string

const (
	DiscountPercentage   DiscountType = "percentage"
	DiscountFixed        DiscountType = "fixed"
	DiscountFreeShipping DiscountType = "free_shipping"
)

// Coupon is a user-supplied discount code. Coupons are created and edited
// by an external admin surface; this core only reads and validates them.
//
// DiscountValue is percent units (0-100) for percentage coupons and cents
// for fixed coupons; it is unused for free_shipping.
type Coupon struct {
	ID                   string       `json:"id"`
	Code                 string       `json:"code"`
	Name                 string       `json:"name,omitempty"`
	DiscountType         DiscountType `json:"discountType"`
	DiscountValue        int64        `json:"discountValue"`
	MinimumAmountCents   *int64       `json:"minimumAmountCents,omitempty"`
	MaximumDiscountCents *int64       `json:"maximumDiscountCents,omitempty"`
	UsageLimit           *int         `json:"usageLimit,omitempty"`
	UsageLimitPerUser    int          `json:"usageLimitPerUser"`
	UsageCount           int          `json:"usageCount"`
	ValidFrom            *time.Time   `json:"validFrom,omitempty"`
	ValidUntil           *time.Time   `json:"validUntil,omitempty"`
	IsActive             bool         `json:"isActive"`
	CreatedAt            time.Time    `json:"createdAt"`
}
