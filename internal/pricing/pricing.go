// Package pricing computes cart totals from immutable value snapshots.
// It holds no persistence and performs no I/O; the cart aggregate delegates
// all money math here.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
)

// ErrNegativeTotal signals an invariant violation: the discount/tax caps
// should make a negative total impossible, so hitting this is a bug, not a
// business outcome.
var ErrNegativeTotal = errors.New("pricing: computed total is negative")

// Engine computes subtotal, tax, shipping and discount figures. Tax is a
// flat configured rate and shipping a single flat/free threshold; real
// jurisdiction and carrier lookups live behind external collaborators and
// are out of scope here.
type Engine struct {
	TaxRateBasisPoints         int64
	StandardShippingCents      int64
	FreeShippingThresholdCents int64
}

// NewEngine builds an Engine from configured rates.
func NewEngine(taxRateBasisPoints, standardShippingCents, freeShippingThresholdCents int64) Engine {
	return Engine{
		TaxRateBasisPoints:         taxRateBasisPoints,
		StandardShippingCents:      standardShippingCents,
		FreeShippingThresholdCents: freeShippingThresholdCents,
	}
}

// ComputeTotals prices a cart snapshot. A present but invalid coupon is
// dropped: totals are computed with zero discount and the validation
// failures come back as warnings, never as an error. The caller supplies
// the user's historical usage count for the coupon (external usage log).
func (e Engine) ComputeTotals(items []domain.CartItem, coupon *domain.Coupon, userUsageCount int, now time.Time) (domain.Totals, []string, error) {
	var totals domain.Totals
	var warnings []string

	for _, item := range items {
		totals.SubtotalCents += item.LineTotalCents()
		totals.ItemCount += item.Quantity
	}

	freeShipping := false
	if coupon != nil {
		validation := ValidateCoupon(*coupon, totals.SubtotalCents, userUsageCount, now)
		if validation.Valid {
			totals.DiscountCents = CalculateDiscount(*coupon, totals.SubtotalCents)
			freeShipping = coupon.DiscountType == domain.DiscountFreeShipping
		} else {
			for _, reason := range validation.Errors {
				warnings = append(warnings, fmt.Sprintf("coupon %s dropped: %s", coupon.Code, reason))
			}
		}
	}

	totals.TaxCents = (totals.SubtotalCents - totals.DiscountCents) * e.TaxRateBasisPoints / 10000
	totals.ShippingCents = e.shipping(totals.SubtotalCents, freeShipping)
	totals.TotalCents = totals.SubtotalCents + totals.TaxCents + totals.ShippingCents - totals.DiscountCents

	if totals.TotalCents < 0 {
		return domain.Totals{}, nil, ErrNegativeTotal
	}
	return totals, warnings, nil
}

// shipping is a step function of subtotal: flat standard rate below the
// free-shipping threshold, zero at or above it. A valid free_shipping
// coupon overrides to zero regardless of threshold. An empty cart ships
// nothing.
func (e Engine) shipping(subtotalCents int64, freeShippingCoupon bool) int64 {
	if subtotalCents == 0 {
		return 0
	}
	if freeShippingCoupon || subtotalCents >= e.FreeShippingThresholdCents {
		return 0
	}
	return e.StandardShippingCents
}
