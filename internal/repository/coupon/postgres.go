package coupon

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	const q = `
SELECT id::text, code, COALESCE(name, ''), discount_type, discount_value,
       minimum_amount_cents, maximum_discount_cents, usage_limit,
       usage_limit_per_user, usage_count, valid_from, valid_until, is_active, created_at
FROM coupons
WHERE code = $1
`
	var c domain.Coupon
	err := r.pool.QueryRow(ctx, q, strings.ToUpper(strings.TrimSpace(code))).Scan(
		&c.ID,
		&c.Code,
		&c.Name,
		&c.DiscountType,
		&c.DiscountValue,
		&c.MinimumAmountCents,
		&c.MaximumDiscountCents,
		&c.UsageLimit,
		&c.UsageLimitPerUser,
		&c.UsageCount,
		&c.ValidFrom,
		&c.ValidUntil,
		&c.IsActive,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("coupon repo: get code=%s error=%v", code, err)
		return nil, err
	}
	return &c, nil
}

func (r *postgresRepo) UserUsageCount(ctx context.Context, couponID, userID string) (int, error) {
	const q = `
SELECT COUNT(*)
FROM coupon_usages
WHERE coupon_id = $1 AND user_id = $2
`
	var count int
	if err := r.pool.QueryRow(ctx, q, couponID, userID).Scan(&count); err != nil {
		r.logger.Printf("coupon repo: usage count coupon_id=%s user_id=%s error=%v", couponID, userID, err)
		return 0, err
	}
	return count, nil
}
