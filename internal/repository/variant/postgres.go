package variant

import (
	"context"
	"errors"
	"io"
	"log"

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

const variantColumns = `
v.id::text, v.product_id::text, p.name, p.sku, v.sku, COALESCE(v.name, ''),
v.price_cents, v.compare_at_price_cents, v.stock, v.low_stock_threshold,
v.attributes, v.is_active, v.created_at
`

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Variant, error) {
	q := `
SELECT ` + variantColumns + `
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = $1
`
	var v domain.Variant
	err := r.pool.QueryRow(ctx, q, id).Scan(
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
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("variant repo: get id=%s error=%v", id, err)
		return nil, err
	}
	return &v, nil
}

func (r *postgresRepo) Reserve(ctx context.Context, variantID string, quantity int) error {
	return Reserve(ctx, r.pool, variantID, quantity)
}

func (r *postgresRepo) Release(ctx context.Context, variantID string, quantity int) error {
	return Release(ctx, r.pool, variantID, quantity)
}

// Reserve atomically decrements on-hand stock. The guard in the WHERE
// clause is what keeps stock non-negative under concurrent checkouts: the
// decrement only lands when enough stock remains, and competing callers
// serialize on the row.
func Reserve(ctx context.Context, db DB, variantID string, quantity int) error {
	const q = `
UPDATE product_variants
SET stock = stock - $2
WHERE id = $1 AND stock >= $2
`
	cmd, err := db.Exec(ctx, q, variantID, quantity)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}

	// No row matched: the variant is missing or stock is short. Look it up
	// to name the failure.
	var name string
	var stock int
	err = db.QueryRow(ctx, `
SELECT COALESCE(NULLIF(v.name, ''), p.name), v.stock
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = $1
`, variantID).Scan(&name, &stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	return &domain.InsufficientStockError{
		VariantID: variantID,
		Name:      name,
		Requested: quantity,
		Available: stock,
	}
}

// Release atomically returns stock to the ledger. Used when orders are
// cancelled or refunded; carts never hold reservations, so removing a cart
// item releases nothing.
func Release(ctx context.Context, db DB, variantID string, quantity int) error {
	const q = `
UPDATE product_variants
SET stock = stock + $2
WHERE id = $1
`
	cmd, err := db.Exec(ctx, q, variantID, quantity)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
