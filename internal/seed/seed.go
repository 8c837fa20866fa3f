package seed

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type productSeed struct {
	Name        string
	SKU         string
	Description string
	Variants    []variantSeed
}

type variantSeed struct {
	SKU                 string
	Name                string
	PriceCents          int64
	CompareAtPriceCents *int64
	Stock               int
	Attributes          string
}

type couponSeed struct {
	Code                 string
	Name                 string
	DiscountType         string
	DiscountValue        int64
	MinimumAmountCents   *int64
	MaximumDiscountCents *int64
	UsageLimitPerUser    int
	ValidDays            int
}

// Apply inserts demo catalog, coupon and address data for manual testing.
// It is idempotent via ON CONFLICT.
func Apply(ctx context.Context, pool *pgxpool.Pool, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	products := []productSeed{
		{
			Name:        "Trail Shoe",
			SKU:         "SKU-TRAIL-SHOE",
			Description: "Lightweight trail running shoe",
			Variants: []variantSeed{
				{SKU: "SKU-TRAIL-SHOE-41", Name: "Trail Shoe 41", PriceCents: 8999, Stock: 25, Attributes: `{"size": "41"}`},
				{SKU: "SKU-TRAIL-SHOE-42", Name: "Trail Shoe 42", PriceCents: 8999, CompareAtPriceCents: int64Ptr(10999), Stock: 12, Attributes: `{"size": "42"}`},
				{SKU: "SKU-TRAIL-SHOE-43", Name: "Trail Shoe 43", PriceCents: 8999, Stock: 3, Attributes: `{"size": "43"}`},
			},
		},
		{
			Name:        "Merino Running Sock",
			SKU:         "SKU-MERINO-SOCK",
			Description: "Seamless merino wool sock, sold as a pair",
			Variants: []variantSeed{
				{SKU: "SKU-MERINO-SOCK-M", Name: "Merino Sock M", PriceCents: 1499, Stock: 80, Attributes: `{"size": "M"}`},
				{SKU: "SKU-MERINO-SOCK-L", Name: "Merino Sock L", PriceCents: 1499, Stock: 64, Attributes: `{"size": "L"}`},
			},
		},
		{
			Name:        "Hydration Vest",
			SKU:         "SKU-HYDRA-VEST",
			Description: "5L running vest with two soft flasks",
			Variants: []variantSeed{
				{SKU: "SKU-HYDRA-VEST-STD", Name: "", PriceCents: 12900, Stock: 7, Attributes: `{}`},
			},
		},
	}

	for _, p := range products {
		if err := upsertProduct(ctx, pool, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.SKU, err)
		}
		logger.Printf("seeded product %s (%d variants)", p.SKU, len(p.Variants))
	}

	coupons := []couponSeed{
		{
			Code:               "SAVE10",
			Name:               "10% off",
			DiscountType:       "percentage",
			DiscountValue:      10,
			MinimumAmountCents: int64Ptr(2000),
			UsageLimitPerUser:  3,
			ValidDays:          365,
		},
		{
			Code:              "FLAT5",
			Name:              "$5 off",
			DiscountType:      "fixed",
			DiscountValue:     500,
			UsageLimitPerUser: 1,
			ValidDays:         90,
		},
		{
			Code:               "FREESHIP",
			Name:               "Free shipping",
			DiscountType:       "free_shipping",
			MinimumAmountCents: int64Ptr(1000),
			UsageLimitPerUser:  5,
			ValidDays:          365,
		},
	}

	for _, c := range coupons {
		if err := upsertCoupon(ctx, pool, c); err != nil {
			return fmt.Errorf("upsert coupon %s: %w", c.Code, err)
		}
		logger.Printf("seeded coupon %s (%s)", c.Code, c.DiscountType)
	}

	if err := ensureDemoAddress(ctx, pool); err != nil {
		return fmt.Errorf("ensure demo address: %w", err)
	}

	return nil
}

func upsertProduct(ctx context.Context, pool *pgxpool.Pool, p productSeed) error {
	const q = `
INSERT INTO products (name, sku, description)
VALUES ($1, $2, $3)
ON CONFLICT (sku) DO UPDATE
SET name = EXCLUDED.name,
    description = EXCLUDED.description
RETURNING id::text
`
	var productID string
	if err := pool.QueryRow(ctx, q, p.Name, p.SKU, p.Description).Scan(&productID); err != nil {
		return err
	}

	for _, v := range p.Variants {
		const vq = `
INSERT INTO product_variants (product_id, sku, name, price_cents, compare_at_price_cents, stock, attributes)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7::jsonb)
ON CONFLICT (sku) DO UPDATE
SET name = EXCLUDED.name,
    price_cents = EXCLUDED.price_cents,
    compare_at_price_cents = EXCLUDED.compare_at_price_cents,
    attributes = EXCLUDED.attributes
`
		if _, err := pool.Exec(ctx, vq, productID, v.SKU, v.Name, v.PriceCents, v.CompareAtPriceCents, v.Stock, v.Attributes); err != nil {
			return err
		}
	}
	return nil
}

func upsertCoupon(ctx context.Context, pool *pgxpool.Pool, c couponSeed) error {
	validUntil := time.Now().AddDate(0, 0, c.ValidDays)
	const q = `
INSERT INTO coupons (code, name, discount_type, discount_value, minimum_amount_cents,
                     maximum_discount_cents, usage_limit_per_user, valid_from, valid_until)
VALUES ($1, $2, $3, $4, $5, $6, $7, now(), $8)
ON CONFLICT (code) DO UPDATE
SET name = EXCLUDED.name,
    discount_type = EXCLUDED.discount_type,
    discount_value = EXCLUDED.discount_value,
    minimum_amount_cents = EXCLUDED.minimum_amount_cents,
    maximum_discount_cents = EXCLUDED.maximum_discount_cents,
    usage_limit_per_user = EXCLUDED.usage_limit_per_user,
    valid_until = EXCLUDED.valid_until
`
	_, err := pool.Exec(ctx, q, c.Code, c.Name, c.DiscountType, c.DiscountValue,
		c.MinimumAmountCents, c.MaximumDiscountCents, c.UsageLimitPerUser, validUntil)
	return err
}

// ensureDemoAddress gives the demo user one shipping address so checkout
// can be exercised immediately after seeding.
func ensureDemoAddress(ctx context.Context, pool *pgxpool.Pool) error {
	const q = `
INSERT INTO addresses (user_id, line1, city, state, postal_code, country)
SELECT 'demo-user', '1 Main St', 'Springfield', 'IL', '62701', 'US'
WHERE NOT EXISTS (SELECT 1 FROM addresses WHERE user_id = 'demo-user')
`
	_, err := pool.Exec(ctx, q)
	return err
}

func int64Ptr(v int64) *int64 {
	return &v
}
