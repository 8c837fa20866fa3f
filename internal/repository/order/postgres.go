package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
	variantrepo "storefront/internal/repository/variant"
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

const orderColumns = `
id::text, order_number, user_id::text, status, payment_status,
subtotal_cents, tax_cents, shipping_cents, discount_cents, total_cents, currency,
COALESCE(coupon_code, ''), shipping_address, billing_address,
COALESCE(payment_method, ''), COALESCE(notes, ''),
COALESCE(shipping_carrier, ''), COALESCE(tracking_number, ''),
refunded_amount_cents, shipped_at, delivered_at, created_at
`

// CreateFromCart converts an active cart into an order in one transaction:
// lock and re-check the cart, snapshot its lines into order items, reserve
// stock per line, record coupon usage and mark the cart converted. Any
// failure rolls the whole thing back, leaving the cart active and the
// ledger untouched.
func (r *postgresRepo) CreateFromCart(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// The row lock is the double-checkout defense: a second checkout blocks
	// here, then sees the cart already converted.
	var cartStatus string
	err = tx.QueryRow(ctx, `SELECT status FROM carts WHERE id = $1 FOR UPDATE`, in.CartID).Scan(&cartStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if domain.CartStatus(cartStatus) != domain.CartActive {
		return nil, domain.ErrCartLocked
	}

	lines, err := cartLines(ctx, tx, in.CartID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	status, paymentStatus := domain.OrderPending, domain.PaymentPending
	if in.CapturePayment {
		status, paymentStatus = domain.OrderConfirmed, domain.PaymentCaptured
	}

	var orderID string
	err = tx.QueryRow(ctx, `
INSERT INTO orders (order_number, user_id, status, payment_status,
                    subtotal_cents, tax_cents, shipping_cents, discount_cents, total_cents,
                    currency, coupon_code, shipping_address, billing_address,
                    payment_method, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13, $14, NULLIF($15, ''))
RETURNING id::text
`,
		in.OrderNumber, in.UserID, status, paymentStatus,
		in.Totals.SubtotalCents, in.Totals.TaxCents, in.Totals.ShippingCents,
		in.Totals.DiscountCents, in.Totals.TotalCents,
		in.Currency, in.CouponCode, in.ShippingAddress, in.BillingAddress,
		in.PaymentMethod, in.Notes,
	).Scan(&orderID)
	if err != nil {
		r.logger.Printf("order repo: insert order number=%s error=%v", in.OrderNumber, err)
		return nil, err
	}

	for _, line := range lines {
		if _, err := tx.Exec(ctx, `
INSERT INTO order_items (order_id, variant_id, quantity, price_cents, total_cents,
                         product_name, product_sku, variant_name, variant_sku, variant_attributes)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
`,
			orderID, line.VariantID, line.Quantity, line.PriceCents,
			line.PriceCents*int64(line.Quantity),
			line.ProductName, line.ProductSKU, line.VariantName, line.VariantSKU,
			line.Attributes,
		); err != nil {
			return nil, err
		}

		// Reserving inside the tx means a mid-loop failure undoes every
		// earlier decrement on rollback.
		if err := variantrepo.Reserve(ctx, tx, line.VariantID, line.Quantity); err != nil {
			return nil, fmt.Errorf("reserve %s: %w", line.VariantSKU, err)
		}
	}

	if in.CouponID != nil {
		if _, err := tx.Exec(ctx, `
UPDATE coupons SET usage_count = usage_count + 1 WHERE id = $1
`, *in.CouponID); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO coupon_usages (coupon_id, user_id, order_id, discount_cents, cart_total_cents)
VALUES ($1, $2, $3, $4, $5)
`, *in.CouponID, in.UserID, orderID, in.Totals.DiscountCents, in.Totals.SubtotalCents); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE carts SET status = 'converted' WHERE id = $1`, in.CartID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Printf("order repo: created order=%s number=%s items=%d total_cents=%d",
		orderID, in.OrderNumber, len(lines), in.Totals.TotalCents)
	return r.GetByID(ctx, orderID)
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.fetchOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *postgresRepo) GetByIDForUser(ctx context.Context, id, userID string) (*domain.Order, error) {
	return r.fetchOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID)
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string, f ListFilter) ([]domain.Order, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}

	var total int
	countQ := `SELECT COUNT(*) FROM orders WHERE user_id = $1`
	countArgs := []interface{}{userID}
	if f.Status != "" {
		countQ += ` AND status = $2`
		countArgs = append(countArgs, f.Status)
	}
	if err := r.pool.QueryRow(ctx, countQ, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1`
	args := []interface{}{userID}
	if f.Status != "" {
		q += ` AND status = $2`
		args = append(args, f.Status)
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range orders {
		items, err := r.fetchItems(ctx, orders[i].ID)
		if err != nil {
			return nil, 0, err
		}
		orders[i].Items = items
	}
	return orders, total, nil
}

// Cancel moves a pending or confirmed order to cancelled and releases the
// reserved stock of every item, all in one transaction.
func (r *postgresRepo) Cancel(ctx context.Context, id string) (*domain.Order, error) {
	err := r.transition(ctx, id, domain.OrderCancelled, func(tx pgx.Tx, o *domain.Order) error {
		if !o.CanBeCancelled() {
			return &domain.InvalidTransitionError{From: o.Status, To: domain.OrderCancelled}
		}
		if _, err := tx.Exec(ctx, `UPDATE orders SET status = 'cancelled' WHERE id = $1`, id); err != nil {
			return err
		}
		return releaseItems(ctx, tx, o.Items)
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *postgresRepo) MarkShipped(ctx context.Context, id, carrier, trackingNumber string) (*domain.Order, error) {
	err := r.transition(ctx, id, domain.OrderShipped, func(tx pgx.Tx, o *domain.Order) error {
		if !o.CanBeShipped() {
			return &domain.InvalidTransitionError{From: o.Status, To: domain.OrderShipped}
		}
		_, err := tx.Exec(ctx, `
UPDATE orders
SET status = 'shipped', shipped_at = now(),
    shipping_carrier = NULLIF($2, ''), tracking_number = NULLIF($3, '')
WHERE id = $1
`, id, carrier, trackingNumber)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *postgresRepo) MarkDelivered(ctx context.Context, id string) (*domain.Order, error) {
	err := r.transition(ctx, id, domain.OrderDelivered, func(tx pgx.Tx, o *domain.Order) error {
		if !o.CanBeDelivered() {
			return &domain.InvalidTransitionError{From: o.Status, To: domain.OrderDelivered}
		}
		_, err := tx.Exec(ctx, `UPDATE orders SET status = 'delivered', delivered_at = now() WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Refund handles both full and partial refunds. A full refund (amount 0 or
// cumulative amount covering the total) releases every item's stock; a
// partial refund records the amount only and restores nothing. Partial
// refunds can be repeated until the total is reached, at which point the
// order flips to fully refunded.
func (r *postgresRepo) Refund(ctx context.Context, id string, amountCents int64) (*domain.Order, error) {
	err := r.transition(ctx, id, domain.OrderRefunded, func(tx pgx.Tx, o *domain.Order) error {
		if !o.CanBeRefunded() {
			return &domain.InvalidTransitionError{From: o.Status, To: domain.OrderRefunded}
		}

		full := amountCents <= 0 || o.RefundedAmountCents+amountCents >= o.TotalCents
		if full {
			if _, err := tx.Exec(ctx, `
UPDATE orders
SET status = 'refunded', payment_status = 'refunded', refunded_amount_cents = total_cents
WHERE id = $1
`, id); err != nil {
				return err
			}
			return releaseItems(ctx, tx, o.Items)
		}

		_, err := tx.Exec(ctx, `
UPDATE orders
SET status = 'partially_refunded', payment_status = 'partially_refunded',
    refunded_amount_cents = refunded_amount_cents + $2
WHERE id = $1
`, id, amountCents)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// SetPaymentStatus is the idempotent setter for the payment collaborator.
// A capture also confirms a still-pending order.
func (r *postgresRepo) SetPaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	cmd, err := r.pool.Exec(ctx, `
UPDATE orders
SET payment_status = $2,
    status = CASE WHEN $2 = 'captured' AND status = 'pending' THEN 'confirmed' ELSE status END
WHERE id = $1
`, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// transition loads and locks the order with its items, applies fn and
// commits. fn performs the guarded status update plus any inventory
// compensation inside the same transaction.
func (r *postgresRepo) transition(ctx context.Context, id string, to domain.OrderStatus, fn func(tx pgx.Tx, o *domain.Order) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	o.Items, err = fetchItemsTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if err := fn(tx, o); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.logger.Printf("order repo: order=%s %s -> %s", id, o.Status, to)
	return nil
}

func releaseItems(ctx context.Context, tx pgx.Tx, items []domain.OrderItem) error {
	for _, item := range items {
		if err := variantrepo.Release(ctx, tx, item.VariantID, item.Quantity); err != nil {
			// The variant may have been deleted from the catalog since the
			// order was placed; nothing to restock then.
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}

type cartLine struct {
	VariantID   string
	Quantity    int
	PriceCents  int64
	ProductName string
	ProductSKU  string
	VariantName string
	VariantSKU  string
	Attributes  map[string]interface{}
}

func cartLines(ctx context.Context, tx pgx.Tx, cartID string) ([]cartLine, error) {
	const q = `
SELECT ci.variant_id::text, ci.quantity, ci.price_cents,
       p.name, p.sku, COALESCE(v.name, ''), v.sku, v.attributes
FROM cart_items ci
JOIN product_variants v ON v.id = ci.variant_id
JOIN products p ON p.id = v.product_id
WHERE ci.cart_id = $1
ORDER BY ci.created_at ASC
`
	rows, err := tx.Query(ctx, q, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []cartLine
	for rows.Next() {
		var l cartLine
		if err := rows.Scan(&l.VariantID, &l.Quantity, &l.PriceCents,
			&l.ProductName, &l.ProductSKU, &l.VariantName, &l.VariantSKU, &l.Attributes); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *postgresRepo) fetchOrder(ctx context.Context, query string, args ...interface{}) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	o.Items, err = r.fetchItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

const itemColumns = `
id::text, order_id::text, variant_id::text, quantity, price_cents, total_cents,
product_name, product_sku, COALESCE(variant_name, ''), variant_sku, variant_attributes
`

func (r *postgresRepo) fetchItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

func fetchItemsTx(ctx context.Context, tx pgx.Tx, orderID string) ([]domain.OrderItem, error) {
	rows, err := tx.Query(ctx, `SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

func scanItems(rows pgx.Rows) ([]domain.OrderItem, error) {
	items := []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.VariantID,
			&item.Quantity,
			&item.PriceCents,
			&item.TotalCents,
			&item.ProductName,
			&item.ProductSKU,
			&item.VariantName,
			&item.VariantSKU,
			&item.VariantAttributes,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	if err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.Status,
		&o.PaymentStatus,
		&o.SubtotalCents,
		&o.TaxCents,
		&o.ShippingCents,
		&o.DiscountCents,
		&o.TotalCents,
		&o.Currency,
		&o.CouponCode,
		&o.ShippingAddress,
		&o.BillingAddress,
		&o.PaymentMethod,
		&o.Notes,
		&o.ShippingCarrier,
		&o.TrackingNumber,
		&o.RefundedAmountCents,
		&o.ShippedAt,
		&o.DeliveredAt,
		&o.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &o, nil
}
