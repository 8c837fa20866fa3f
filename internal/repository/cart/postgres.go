package cart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
)

type postgresRepo struct {
	pool    *pgxpool.Pool
	ttlDays int
	logger  *log.Logger
}

// NewPostgres builds the cart repository. ttlDays sets how far every
// mutation pushes the cart's expiration into the future.
func NewPostgres(pool *pgxpool.Pool, ttlDays int, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if ttlDays <= 0 {
		ttlDays = 30
	}
	return &postgresRepo{pool: pool, ttlDays: ttlDays, logger: logger}
}

const cartColumns = `
id::text, user_id::text, session_id, status, coupon_code, coupon_discount_cents, expires_at, created_at
`

func (r *postgresRepo) Create(ctx context.Context, in CreateCartInput) (*domain.Cart, error) {
	q := fmt.Sprintf(`
INSERT INTO carts (user_id, session_id, status, expires_at)
VALUES ($1, $2, 'active', now() + interval '%d days')
RETURNING `+cartColumns, r.ttlDays)

	row := r.pool.QueryRow(ctx, q, in.UserID, in.SessionID)
	cart, err := scanCart(row)
	if err != nil {
		r.logger.Printf("cart repo: create error=%v", err)
		return nil, err
	}
	cart.Items = []domain.CartItem{}
	return cart, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Cart, error) {
	return r.fetchCart(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id)
}

func (r *postgresRepo) GetActiveByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	return r.fetchCart(ctx, `
SELECT `+cartColumns+`
FROM carts
WHERE user_id = $1 AND status = 'active'
ORDER BY created_at DESC
LIMIT 1
`, userID)
}

func (r *postgresRepo) GetActiveBySession(ctx context.Context, sessionID string) (*domain.Cart, error) {
	return r.fetchCart(ctx, `
SELECT `+cartColumns+`
FROM carts
WHERE session_id = $1 AND status = 'active'
ORDER BY created_at DESC
LIMIT 1
`, sessionID)
}

func (r *postgresRepo) AddItem(ctx context.Context, cartID string, v domain.Variant, quantity int) error {
	return r.mutate(ctx, cartID, func(tx pgx.Tx) error {
		// One line per (cart, variant): repeated adds increment quantity.
		// The snapshot price is refreshed to the live price either way.
		const q = `
INSERT INTO cart_items (cart_id, variant_id, quantity, price_cents)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cart_id, variant_id) DO UPDATE
SET quantity = cart_items.quantity + EXCLUDED.quantity,
    price_cents = EXCLUDED.price_cents
`
		_, err := tx.Exec(ctx, q, cartID, v.ID, quantity, v.PriceCents)
		return err
	})
}

func (r *postgresRepo) UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error {
	return r.mutate(ctx, cartID, func(tx pgx.Tx) error {
		if quantity <= 0 {
			cmd, err := tx.Exec(ctx, `
DELETE FROM cart_items
WHERE id = $1 AND cart_id = $2
`, itemID, cartID)
			if err != nil {
				return err
			}
			if cmd.RowsAffected() == 0 {
				return domain.ErrNotFound
			}
			return nil
		}

		// Refresh the snapshot price to the current variant price on update.
		cmd, err := tx.Exec(ctx, `
UPDATE cart_items ci
SET quantity = $3,
    price_cents = v.price_cents
FROM product_variants v
WHERE ci.id = $1 AND ci.cart_id = $2 AND v.id = ci.variant_id
`, itemID, cartID, quantity)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *postgresRepo) Clear(ctx context.Context, cartID string) error {
	return r.mutate(ctx, cartID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
		return err
	})
}

func (r *postgresRepo) SetCoupon(ctx context.Context, cartID string, coupon *domain.AppliedCoupon) error {
	return r.mutate(ctx, cartID, func(tx pgx.Tx) error {
		var code *string
		var discount *int64
		if coupon != nil {
			code = &coupon.Code
			discount = &coupon.DiscountCents
		}
		_, err := tx.Exec(ctx, `
UPDATE carts
SET coupon_code = $2, coupon_discount_cents = $3
WHERE id = $1
`, cartID, code, discount)
		return err
	})
}

func (r *postgresRepo) SyncPrices(ctx context.Context, cartID string) ([]PriceChange, error) {
	const q = `
WITH stale AS (
	SELECT ci.id, ci.price_cents AS old_price, v.price_cents AS new_price,
	       COALESCE(NULLIF(v.name, ''), p.name) AS name
	FROM cart_items ci
	JOIN product_variants v ON v.id = ci.variant_id
	JOIN products p ON p.id = v.product_id
	WHERE ci.cart_id = $1 AND ci.price_cents <> v.price_cents
)
UPDATE cart_items ci
SET price_cents = stale.new_price
FROM stale
WHERE ci.id = stale.id
RETURNING ci.id::text, stale.name, stale.old_price, stale.new_price
`
	rows, err := r.pool.Query(ctx, q, cartID)
	if err != nil {
		r.logger.Printf("cart repo: sync prices cart_id=%s error=%v", cartID, err)
		return nil, err
	}
	defer rows.Close()

	var changes []PriceChange
	for rows.Next() {
		var c PriceChange
		if err := rows.Scan(&c.ItemID, &c.Name, &c.OldPriceCents, &c.NewPriceCents); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return changes, nil
}

// mutate wraps a cart mutation in a transaction that locks the cart row,
// rejects non-active carts and extends the expiration window. The row lock
// serializes concurrent mutations so neither clobbers the other.
func (r *postgresRepo) mutate(ctx context.Context, cartID string, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM carts WHERE id = $1 FOR UPDATE`, cartID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	if domain.CartStatus(status) != domain.CartActive {
		return domain.ErrCartLocked
	}

	if err := fn(tx); err != nil {
		return err
	}

	extend := fmt.Sprintf(`UPDATE carts SET expires_at = now() + interval '%d days' WHERE id = $1`, r.ttlDays)
	if _, err := tx.Exec(ctx, extend, cartID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *postgresRepo) fetchCart(ctx context.Context, query string, args ...interface{}) (*domain.Cart, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	cart, err := scanCart(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	const itemsQuery = `
SELECT ci.id::text, ci.cart_id::text, ci.variant_id::text, ci.quantity, ci.price_cents, ci.created_at,
       v.id::text, v.product_id::text, p.name, p.sku, v.sku, COALESCE(v.name, ''),
       v.price_cents, v.compare_at_price_cents, v.stock, v.low_stock_threshold,
       v.attributes, v.is_active, v.created_at
FROM cart_items ci
JOIN product_variants v ON v.id = ci.variant_id
JOIN products p ON p.id = v.product_id
WHERE ci.cart_id = $1
ORDER BY ci.created_at ASC
`
	rows, err := r.pool.Query(ctx, itemsQuery, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cart.Items = []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		var v domain.Variant
		if err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.VariantID,
			&item.Quantity,
			&item.PriceCents,
			&item.CreatedAt,
			&v.ID,
			&v.ProductID,
			&v.ProductName,
			&v.ProductSKU,
			&v.SKU,
			&v.Name,
			&v.PriceCents,
			&v.CompareAtPriceCents,
			&v.Stock,
			&v.LowStockThreshold,
			&v.Attributes,
			&v.IsActive,
			&v.CreatedAt,
		); err != nil {
			return nil, err
		}
		item.Variant = &v
		item.SavingsCents = v.SavingsCents() * int64(item.Quantity)
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cart, nil
}

func scanCart(row pgx.Row) (*domain.Cart, error) {
	var cart domain.Cart
	var userID, sessionID, couponCode *string
	var couponDiscount *int64
	if err := row.Scan(
		&cart.ID,
		&userID,
		&sessionID,
		&cart.Status,
		&couponCode,
		&couponDiscount,
		&cart.ExpiresAt,
		&cart.CreatedAt,
	); err != nil {
		return nil, err
	}
	cart.UserID = userID
	cart.SessionID = sessionID
	if couponCode != nil {
		applied := domain.AppliedCoupon{Code: *couponCode}
		if couponDiscount != nil {
			applied.DiscountCents = *couponDiscount
		}
		cart.AppliedCoupon = &applied
	}
	return &cart, nil
}
