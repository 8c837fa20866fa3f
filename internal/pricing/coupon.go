package pricing

import (
	"fmt"
	"time"

	"storefront/internal/domain"
)

// Validation is the outcome of coupon validation. Every failing reason is
// collected so callers can report them all at once.
type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidateCoupon checks a coupon against the cart subtotal, the wall clock
// and the user's historical usage count. Checks are independent and do not
// short-circuit.
func ValidateCoupon(c domain.Coupon, subtotalCents int64, userUsageCount int, now time.Time) Validation {
	var errs []string

	if !c.IsActive {
		errs = append(errs, "Coupon is not active")
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		errs = append(errs, "Coupon is not yet valid")
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		errs = append(errs, "Coupon has expired")
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		errs = append(errs, "Coupon usage limit exceeded")
	}
	if c.MinimumAmountCents != nil && subtotalCents < *c.MinimumAmountCents {
		errs = append(errs, fmt.Sprintf("Minimum order amount of $%.2f required", float64(*c.MinimumAmountCents)/100))
	}
	if c.UsageLimitPerUser > 0 && userUsageCount >= c.UsageLimitPerUser {
		errs = append(errs, "You have already used this coupon the maximum number of times")
	}

	return Validation{Valid: len(errs) == 0, Errors: errs}
}

// CalculateDiscount computes the discount a coupon grants for the given
// subtotal. The result is capped at the coupon's maximum discount when set,
// then at the subtotal so a discount can never push it negative.
// free_shipping coupons discount nothing here; they zero the shipping
// figure instead.
func CalculateDiscount(c domain.Coupon, subtotalCents int64) int64 {
	var discount int64
	switch c.DiscountType {
	case domain.DiscountPercentage:
		discount = subtotalCents * c.DiscountValue / 100
	case domain.DiscountFixed:
		discount = c.DiscountValue
	default:
		return 0
	}

	if c.MaximumDiscountCents != nil && discount > *c.MaximumDiscountCents {
		discount = *c.MaximumDiscountCents
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	return discount
}
