package order

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
	"storefront/internal/migrate"
)

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return pool
}

func resetTables(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(ctx, `
TRUNCATE user_events, order_items, orders, addresses, coupon_usages, coupons,
         cart_items, carts, product_variants, products RESTART IDENTITY CASCADE
`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

type fixture struct {
	cartID    string
	variantID string
}

// seedCheckout builds a user cart holding `quantity` units of a variant
// stocked with `stock`.
func seedCheckout(ctx context.Context, t *testing.T, pool *pgxpool.Pool, stock, quantity int) fixture {
	t.Helper()

	var productID string
	if err := pool.QueryRow(ctx, `
INSERT INTO products (name, sku) VALUES ('Trail Shoe', 'SKU-CHK-P') RETURNING id::text
`).Scan(&productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	var variantID string
	if err := pool.QueryRow(ctx, `
INSERT INTO product_variants (product_id, sku, name, price_cents, stock)
VALUES ($1, 'SKU-CHK-42', 'Trail Shoe 42', 5000, $2)
RETURNING id::text
`, productID, stock).Scan(&variantID); err != nil {
		t.Fatalf("insert variant: %v", err)
	}

	var cartID string
	if err := pool.QueryRow(ctx, `
INSERT INTO carts (user_id, status, expires_at)
VALUES ('u1', 'active', now() + interval '30 days')
RETURNING id::text
`).Scan(&cartID); err != nil {
		t.Fatalf("insert cart: %v", err)
	}

	if _, err := pool.Exec(ctx, `
INSERT INTO cart_items (cart_id, variant_id, quantity, price_cents)
VALUES ($1, $2, $3, 5000)
`, cartID, variantID, quantity); err != nil {
		t.Fatalf("insert cart item: %v", err)
	}

	return fixture{cartID: cartID, variantID: variantID}
}

func checkoutInput(cartID string) CreateOrderInput {
	addr := domain.Address{Line1: "1 Main St", City: "Springfield", PostalCode: "62701", Country: "US"}
	return CreateOrderInput{
		CartID:          cartID,
		UserID:          "u1",
		OrderNumber:     "ORD-20260826-TEST0001",
		Currency:        "USD",
		Totals:          domain.Totals{SubtotalCents: 10000, TaxCents: 800, TotalCents: 10800, ItemCount: 2},
		ShippingAddress: addr,
		BillingAddress:  addr,
		PaymentMethod:   "credit_card",
		CapturePayment:  true,
	}
}

func variantStock(ctx context.Context, t *testing.T, pool *pgxpool.Pool, variantID string) int {
	t.Helper()
	var stock int
	if err := pool.QueryRow(ctx, `SELECT stock FROM product_variants WHERE id = $1`, variantID).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return stock
}

func cartStatus(ctx context.Context, t *testing.T, pool *pgxpool.Pool, cartID string) string {
	t.Helper()
	var status string
	if err := pool.QueryRow(ctx, `SELECT status FROM carts WHERE id = $1`, cartID).Scan(&status); err != nil {
		t.Fatalf("read cart status: %v", err)
	}
	return status
}

func TestPostgresCreateFromCart(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	fx := seedCheckout(ctx, t, pool, 5, 2)

	order, err := repo.CreateFromCart(ctx, checkoutInput(fx.cartID))
	if err != nil {
		t.Fatalf("CreateFromCart: %v", err)
	}
	if order.Status != domain.OrderConfirmed || order.PaymentStatus != domain.PaymentCaptured {
		t.Fatalf("capture should confirm the order: %+v", order)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 2 || order.Items[0].ProductSKU != "SKU-CHK-P" {
		t.Fatalf("unexpected items: %+v", order.Items)
	}
	if order.Items[0].TotalCents != 10000 {
		t.Fatalf("unexpected line total: %d", order.Items[0].TotalCents)
	}
	if got := variantStock(ctx, t, pool, fx.variantID); got != 3 {
		t.Fatalf("stock not reserved: %d", got)
	}
	if got := cartStatus(ctx, t, pool, fx.cartID); got != "converted" {
		t.Fatalf("cart not converted: %s", got)
	}

	// Double checkout hits the converted cart.
	if _, err := repo.CreateFromCart(ctx, checkoutInput(fx.cartID)); !errors.Is(err, domain.ErrCartLocked) {
		t.Fatalf("expected cart locked on second checkout, got %v", err)
	}
}

func TestPostgresCreateFromCartInsufficientStockRollsBack(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	fx := seedCheckout(ctx, t, pool, 1, 2)

	_, err := repo.CreateFromCart(ctx, checkoutInput(fx.cartID))
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if stockErr.Available != 1 || stockErr.Requested != 2 {
		t.Fatalf("unexpected stock error: %+v", stockErr)
	}

	// Everything rolled back: cart still active, ledger untouched, no order.
	if got := cartStatus(ctx, t, pool, fx.cartID); got != "active" {
		t.Fatalf("cart must stay active: %s", got)
	}
	if got := variantStock(ctx, t, pool, fx.variantID); got != 1 {
		t.Fatalf("stock must be untouched: %d", got)
	}
	var orders int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&orders); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orders != 0 {
		t.Fatalf("expected no orders, got %d", orders)
	}
}

func TestPostgresCreateFromCartRecordsCouponUsage(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	fx := seedCheckout(ctx, t, pool, 5, 2)

	var couponID string
	if err := pool.QueryRow(ctx, `
INSERT INTO coupons (code, discount_type, discount_value) VALUES ('SAVE10', 'percentage', 10)
RETURNING id::text
`).Scan(&couponID); err != nil {
		t.Fatalf("insert coupon: %v", err)
	}

	in := checkoutInput(fx.cartID)
	in.CouponID = &couponID
	in.CouponCode = "SAVE10"
	in.Totals.DiscountCents = 1000
	in.Totals.TotalCents = 9720

	order, err := repo.CreateFromCart(ctx, in)
	if err != nil {
		t.Fatalf("CreateFromCart: %v", err)
	}
	if order.CouponCode != "SAVE10" || order.DiscountCents != 1000 {
		t.Fatalf("coupon not on order: %+v", order)
	}

	var usageCount, usages int
	if err := pool.QueryRow(ctx, `SELECT usage_count FROM coupons WHERE id = $1`, couponID).Scan(&usageCount); err != nil {
		t.Fatalf("read usage count: %v", err)
	}
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = 'u1'`, couponID).Scan(&usages); err != nil {
		t.Fatalf("count usages: %v", err)
	}
	if usageCount != 1 || usages != 1 {
		t.Fatalf("usage not recorded: count=%d usages=%d", usageCount, usages)
	}
}

func TestPostgresCancelRestoresStock(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	fx := seedCheckout(ctx, t, pool, 5, 2)

	order, err := repo.CreateFromCart(ctx, checkoutInput(fx.cartID))
	if err != nil {
		t.Fatalf("CreateFromCart: %v", err)
	}

	cancelled, err := repo.Cancel(ctx, order.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != domain.OrderCancelled {
		t.Fatalf("unexpected status: %s", cancelled.Status)
	}
	if got := variantStock(ctx, t, pool, fx.variantID); got != 5 {
		t.Fatalf("stock not restored: %d", got)
	}

	// Cancelling twice is an invalid transition.
	var transitionErr *domain.InvalidTransitionError
	if _, err := repo.Cancel(ctx, order.ID); !errors.As(err, &transitionErr) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestPostgresShipDeliverRefund(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	fx := seedCheckout(ctx, t, pool, 5, 2)

	order, err := repo.CreateFromCart(ctx, checkoutInput(fx.cartID))
	if err != nil {
		t.Fatalf("CreateFromCart: %v", err)
	}

	shipped, err := repo.MarkShipped(ctx, order.ID, "UPS", "1Z999")
	if err != nil {
		t.Fatalf("MarkShipped: %v", err)
	}
	if shipped.Status != domain.OrderShipped || shipped.ShippingCarrier != "UPS" || shipped.ShippedAt == nil {
		t.Fatalf("unexpected shipped order: %+v", shipped)
	}

	delivered, err := repo.MarkDelivered(ctx, order.ID)
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if delivered.Status != domain.OrderDelivered || delivered.DeliveredAt == nil {
		t.Fatalf("unexpected delivered order: %+v", delivered)
	}

	// Partial refund records the amount without restocking.
	partial, err := repo.Refund(ctx, order.ID, 2000)
	if err != nil {
		t.Fatalf("Refund partial: %v", err)
	}
	if partial.Status != domain.OrderPartiallyRefunded || partial.RefundedAmountCents != 2000 {
		t.Fatalf("unexpected partial refund: %+v", partial)
	}
	if got := variantStock(ctx, t, pool, fx.variantID); got != 3 {
		t.Fatalf("partial refund must not restock: %d", got)
	}

	// Topping up to the total flips the order to fully refunded and restocks.
	topped, err := repo.Refund(ctx, order.ID, partial.TotalCents-2000)
	if err != nil {
		t.Fatalf("Refund top-up: %v", err)
	}
	if topped.Status != domain.OrderRefunded || topped.PaymentStatus != domain.PaymentRefunded {
		t.Fatalf("unexpected top-up refund: %+v", topped)
	}
	if topped.RefundedAmountCents != topped.TotalCents {
		t.Fatalf("top-up must cover the total: %+v", topped)
	}
	if got := variantStock(ctx, t, pool, fx.variantID); got != 5 {
		t.Fatalf("top-up refund must restock: %d", got)
	}
}

func TestPostgresFullRefundRestocks(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	fx := seedCheckout(ctx, t, pool, 5, 2)

	order, err := repo.CreateFromCart(ctx, checkoutInput(fx.cartID))
	if err != nil {
		t.Fatalf("CreateFromCart: %v", err)
	}
	if _, err := repo.MarkShipped(ctx, order.ID, "UPS", "1Z999"); err != nil {
		t.Fatalf("MarkShipped: %v", err)
	}

	refunded, err := repo.Refund(ctx, order.ID, 0)
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if refunded.Status != domain.OrderRefunded || refunded.PaymentStatus != domain.PaymentRefunded {
		t.Fatalf("unexpected refund: %+v", refunded)
	}
	if refunded.RefundedAmountCents != refunded.TotalCents {
		t.Fatalf("full refund must cover the total: %+v", refunded)
	}
	if got := variantStock(ctx, t, pool, fx.variantID); got != 5 {
		t.Fatalf("full refund must restock: %d", got)
	}
}

func TestPostgresSetPaymentStatusConfirmsPending(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool, nil)
	fx := seedCheckout(ctx, t, pool, 5, 2)

	in := checkoutInput(fx.cartID)
	in.PaymentMethod = "cash_on_delivery"
	in.CapturePayment = false

	order, err := repo.CreateFromCart(ctx, in)
	if err != nil {
		t.Fatalf("CreateFromCart: %v", err)
	}
	if order.Status != domain.OrderPending || order.PaymentStatus != domain.PaymentPending {
		t.Fatalf("deferred payment should stay pending: %+v", order)
	}

	if err := repo.SetPaymentStatus(ctx, order.ID, domain.PaymentCaptured); err != nil {
		t.Fatalf("SetPaymentStatus: %v", err)
	}
	// Idempotent on repeat.
	if err := repo.SetPaymentStatus(ctx, order.ID, domain.PaymentCaptured); err != nil {
		t.Fatalf("SetPaymentStatus repeat: %v", err)
	}

	got, err := repo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.OrderConfirmed || got.PaymentStatus != domain.PaymentCaptured {
		t.Fatalf("capture should confirm: %+v", got)
	}
}
