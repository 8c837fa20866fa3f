package coupon

import (
	"context"

	"storefront/internal/domain"
)

// Repository reads coupons and their usage history. Coupon administration
// lives elsewhere; the usage counter is only incremented inside the
// checkout transaction (see the order repository).
type Repository interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	UserUsageCount(ctx context.Context, couponID, userID string) (int, error)
}
