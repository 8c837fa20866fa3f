package cart

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/pricing"
	cartrepo "storefront/internal/repository/cart"
)

type stubRepo struct {
	createCart      *domain.Cart
	createErr       error
	createCalls     int
	getByIDCart     *domain.Cart
	getByIDErr      error
	activeCart      *domain.Cart
	activeErr       error
	addItemErr      error
	updateQtyErr    error
	clearErr        error
	setCouponErr    error
	syncChanges     []cartrepo.PriceChange
	syncErr         error
	lastAddCartID   string
	lastAddVariant  domain.Variant
	lastAddQty      int
	lastQtyCartID   string
	lastQtyItemID   string
	lastQtyValue    int
	lastCouponCart  string
	lastCoupon      *domain.AppliedCoupon
	setCouponCalled bool
}

func (s *stubRepo) Create(_ context.Context, _ cartrepo.CreateCartInput) (*domain.Cart, error) {
	s.createCalls++
	return s.createCart, s.createErr
}

func (s *stubRepo) GetByID(_ context.Context, _ string) (*domain.Cart, error) {
	if s.getByIDErr != nil {
		return nil, s.getByIDErr
	}
	if s.getByIDCart != nil {
		return s.getByIDCart, nil
	}
	return s.activeCart, nil
}

func (s *stubRepo) GetActiveByUser(_ context.Context, _ string) (*domain.Cart, error) {
	return s.activeCart, s.activeErr
}

func (s *stubRepo) GetActiveBySession(_ context.Context, _ string) (*domain.Cart, error) {
	return s.activeCart, s.activeErr
}

func (s *stubRepo) AddItem(_ context.Context, cartID string, v domain.Variant, quantity int) error {
	s.lastAddCartID = cartID
	s.lastAddVariant = v
	s.lastAddQty = quantity
	return s.addItemErr
}

func (s *stubRepo) UpdateItemQuantity(_ context.Context, cartID, itemID string, quantity int) error {
	s.lastQtyCartID = cartID
	s.lastQtyItemID = itemID
	s.lastQtyValue = quantity
	return s.updateQtyErr
}

func (s *stubRepo) Clear(_ context.Context, _ string) error {
	return s.clearErr
}

func (s *stubRepo) SetCoupon(_ context.Context, cartID string, coupon *domain.AppliedCoupon) error {
	s.setCouponCalled = true
	s.lastCouponCart = cartID
	s.lastCoupon = coupon
	return s.setCouponErr
}

func (s *stubRepo) SyncPrices(_ context.Context, _ string) ([]cartrepo.PriceChange, error) {
	return s.syncChanges, s.syncErr
}

type stubVariantRepo struct {
	variant *domain.Variant
	err     error
	lastID  string
}

func (s *stubVariantRepo) GetByID(_ context.Context, id string) (*domain.Variant, error) {
	s.lastID = id
	return s.variant, s.err
}

type stubCouponRepo struct {
	coupon   *domain.Coupon
	err      error
	usage    int
	usageErr error
	lastCode string
}

func (s *stubCouponRepo) GetByCode(_ context.Context, code string) (*domain.Coupon, error) {
	s.lastCode = code
	return s.coupon, s.err
}

func (s *stubCouponRepo) UserUsageCount(_ context.Context, _, _ string) (int, error) {
	return s.usage, s.usageErr
}

type recordedEvents struct {
	events []events.Event
}

func (r *recordedEvents) Record(_ context.Context, e events.Event) {
	r.events = append(r.events, e)
}

func strPtr(v string) *string { return &v }

func int64Ptr(v int64) *int64 { return &v }

func shopper(userID string) domain.Shopper {
	return domain.Shopper{UserID: strPtr(userID)}
}

func activeVariant(id string, priceCents int64, stock int) *domain.Variant {
	return &domain.Variant{
		ID:          id,
		ProductID:   "p1",
		ProductName: "Trail Shoe",
		Name:        "Trail Shoe 42",
		PriceCents:  priceCents,
		Stock:       stock,
		IsActive:    true,
	}
}

func activeCart(items ...domain.CartItem) *domain.Cart {
	return &domain.Cart{
		ID:     "cart-1",
		UserID: strPtr("u1"),
		Status: domain.CartActive,
		Items:  items,
	}
}

func newService(repo *stubRepo, variants *stubVariantRepo, coupons *stubCouponRepo, rec events.Recorder) *Service {
	return New(repo, variants, coupons, pricing.NewEngine(800, 999, 5000), rec)
}

func TestGetOrCreateRequiresIdentity(t *testing.T) {
	svc := newService(&stubRepo{}, &stubVariantRepo{}, &stubCouponRepo{}, nil)
	_, err := svc.GetOrCreate(context.Background(), domain.Shopper{})
	if err == nil || err.Error() != "shopper identity required" {
		t.Fatalf("expected identity error, got %v", err)
	}
}

func TestGetOrCreateReturnsExisting(t *testing.T) {
	existing := activeCart()
	repo := &stubRepo{activeCart: existing}
	svc := newService(repo, &stubVariantRepo{}, &stubCouponRepo{}, nil)
	got, err := svc.GetOrCreate(context.Background(), shopper("u1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != existing {
		t.Fatalf("unexpected cart: %+v", got)
	}
	if repo.createCalls != 0 {
		t.Fatalf("should not create when active cart exists")
	}
}

func TestGetOrCreateLazilyCreates(t *testing.T) {
	created := activeCart()
	repo := &stubRepo{activeErr: domain.ErrNotFound, createCart: created}
	svc := newService(repo, &stubVariantRepo{}, &stubCouponRepo{}, nil)
	got, err := svc.GetOrCreate(context.Background(), shopper("u1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != created || repo.createCalls != 1 {
		t.Fatalf("expected lazy create, got %+v (creates=%d)", got, repo.createCalls)
	}
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	svc := newService(&stubRepo{}, &stubVariantRepo{}, &stubCouponRepo{}, nil)
	_, err := svc.AddItem(context.Background(), shopper("u1"), "v1", 0)
	if err == nil || err.Error() != "quantity must be positive" {
		t.Fatalf("expected quantity error, got %v", err)
	}
}

func TestAddItemUnknownVariant(t *testing.T) {
	svc := newService(&stubRepo{}, &stubVariantRepo{err: domain.ErrNotFound}, &stubCouponRepo{}, nil)
	_, err := svc.AddItem(context.Background(), shopper("u1"), "v1", 1)
	if !errors.Is(err, domain.ErrProductUnavailable) {
		t.Fatalf("expected product unavailable, got %v", err)
	}
}

func TestAddItemInactiveVariant(t *testing.T) {
	v := activeVariant("v1", 1000, 5)
	v.IsActive = false
	svc := newService(&stubRepo{}, &stubVariantRepo{variant: v}, &stubCouponRepo{}, nil)
	_, err := svc.AddItem(context.Background(), shopper("u1"), "v1", 1)
	if !errors.Is(err, domain.ErrProductUnavailable) {
		t.Fatalf("expected product unavailable, got %v", err)
	}
}

func TestAddItemLockedCart(t *testing.T) {
	cart := activeCart()
	cart.Status = domain.CartConverted
	repo := &stubRepo{activeCart: cart}
	svc := newService(repo, &stubVariantRepo{variant: activeVariant("v1", 1000, 5)}, &stubCouponRepo{}, nil)
	_, err := svc.AddItem(context.Background(), shopper("u1"), "v1", 1)
	if !errors.Is(err, domain.ErrCartLocked) {
		t.Fatalf("expected cart locked, got %v", err)
	}
}

func TestAddItemInsufficientStockCountsExistingLine(t *testing.T) {
	cart := activeCart(domain.CartItem{ID: "li1", VariantID: "v1", Quantity: 3, PriceCents: 1000})
	repo := &stubRepo{activeCart: cart}
	svc := newService(repo, &stubVariantRepo{variant: activeVariant("v1", 1000, 4)}, &stubCouponRepo{}, nil)
	_, err := svc.AddItem(context.Background(), shopper("u1"), "v1", 2)
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if stockErr.Requested != 5 || stockErr.Available != 4 {
		t.Fatalf("unexpected stock error: %+v", stockErr)
	}
}

func TestAddItemSuccessRecordsEvent(t *testing.T) {
	cart := activeCart()
	reloaded := activeCart(domain.CartItem{
		ID: "li1", VariantID: "v1", Quantity: 2, PriceCents: 1000,
		Variant: activeVariant("v1", 1000, 5),
	})
	repo := &stubRepo{activeCart: cart, getByIDCart: reloaded}
	rec := &recordedEvents{}
	svc := newService(repo, &stubVariantRepo{variant: activeVariant("v1", 1000, 5)}, &stubCouponRepo{}, rec)

	view, err := svc.AddItem(context.Background(), shopper("u1"), "v1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view == nil || view.Cart == nil {
		t.Fatalf("expected a view, got %+v", view)
	}
	if repo.lastAddCartID != "cart-1" || repo.lastAddQty != 2 || repo.lastAddVariant.ID != "v1" {
		t.Fatalf("add item not called as expected")
	}
	if len(rec.events) != 1 || rec.events[0].Type != "add_to_cart" || rec.events[0].EntityID != "v1" {
		t.Fatalf("unexpected events: %+v", rec.events)
	}
	if rec.events[0].Metadata["cart_quantity"] != 2 {
		t.Fatalf("cart quantity not recorded: %+v", rec.events[0].Metadata)
	}
}

func TestUpdateItemRemoveIsIdempotent(t *testing.T) {
	cart := activeCart()
	repo := &stubRepo{activeCart: cart, updateQtyErr: domain.ErrNotFound}
	svc := newService(repo, &stubVariantRepo{}, &stubCouponRepo{}, nil)
	if _, err := svc.RemoveItem(context.Background(), shopper("u1"), "li-gone"); err != nil {
		t.Fatalf("removing an absent line should succeed, got %v", err)
	}
	if repo.lastQtyItemID != "li-gone" || repo.lastQtyValue != 0 {
		t.Fatalf("unexpected repo call: %s %d", repo.lastQtyItemID, repo.lastQtyValue)
	}
}

func TestUpdateItemUnknownLine(t *testing.T) {
	cart := activeCart()
	repo := &stubRepo{activeCart: cart}
	svc := newService(repo, &stubVariantRepo{}, &stubCouponRepo{}, nil)
	_, err := svc.UpdateItem(context.Background(), shopper("u1"), "li-gone", 2)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateItemInsufficientStock(t *testing.T) {
	v := activeVariant("v1", 1000, 2)
	cart := activeCart(domain.CartItem{ID: "li1", VariantID: "v1", Quantity: 1, PriceCents: 1000, Variant: v})
	repo := &stubRepo{activeCart: cart}
	svc := newService(repo, &stubVariantRepo{}, &stubCouponRepo{}, nil)
	_, err := svc.UpdateItem(context.Background(), shopper("u1"), "li1", 5)
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if stockErr.Requested != 5 || stockErr.Available != 2 {
		t.Fatalf("unexpected stock error: %+v", stockErr)
	}
}

func TestUpdateItemSuccess(t *testing.T) {
	v := activeVariant("v1", 1000, 10)
	cart := activeCart(domain.CartItem{ID: "li1", VariantID: "v1", Quantity: 1, PriceCents: 1000, Variant: v})
	repo := &stubRepo{activeCart: cart}
	svc := newService(repo, &stubVariantRepo{}, &stubCouponRepo{}, nil)
	if _, err := svc.UpdateItem(context.Background(), shopper("u1"), "li1", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastQtyCartID != "cart-1" || repo.lastQtyItemID != "li1" || repo.lastQtyValue != 4 {
		t.Fatalf("update quantity not called as expected")
	}
}

func TestApplyCouponCollectsAllFailures(t *testing.T) {
	cart := activeCart(domain.CartItem{ID: "li1", VariantID: "v1", Quantity: 1, PriceCents: 500})
	expired := time.Now().Add(-time.Hour)
	coupon := &domain.Coupon{
		ID:                 "cp1",
		Code:               "SAVE10",
		DiscountType:       domain.DiscountPercentage,
		DiscountValue:      10,
		MinimumAmountCents: int64Ptr(2000),
		ValidUntil:         &expired,
		IsActive:           true,
	}
	repo := &stubRepo{activeCart: cart}
	svc := newService(repo, &stubVariantRepo{}, &stubCouponRepo{coupon: coupon}, nil)

	_, err := svc.ApplyCoupon(context.Background(), shopper("u1"), "SAVE10")
	var vErr *domain.CouponValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected coupon validation error, got %v", err)
	}
	if len(vErr.Errors) != 2 {
		t.Fatalf("expected both failures reported, got %v", vErr.Errors)
	}
	joined := strings.Join(vErr.Errors, "; ")
	if !strings.Contains(joined, "expired") || !strings.Contains(joined, "Minimum order amount") {
		t.Fatalf("unexpected failure reasons: %v", vErr.Errors)
	}
	if repo.setCouponCalled {
		t.Fatalf("invalid coupon must not be stored")
	}
}

func TestApplyCouponStoresComputedDiscount(t *testing.T) {
	cart := activeCart(domain.CartItem{ID: "li1", VariantID: "v1", Quantity: 2, PriceCents: 5000})
	coupon := &domain.Coupon{
		ID:            "cp1",
		Code:          "SAVE10",
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: 10,
		IsActive:      true,
	}
	repo := &stubRepo{activeCart: cart}
	svc := newService(repo, &stubVariantRepo{}, &stubCouponRepo{coupon: coupon}, nil)

	if _, err := svc.ApplyCoupon(context.Background(), shopper("u1"), "save10"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.lastCoupon == nil || repo.lastCoupon.Code != "SAVE10" {
		t.Fatalf("coupon not stored: %+v", repo.lastCoupon)
	}
	if repo.lastCoupon.DiscountCents != 1000 {
		t.Fatalf("expected 10%% of $100.00, got %d", repo.lastCoupon.DiscountCents)
	}
}

func TestRemoveCouponClears(t *testing.T) {
	cart := activeCart()
	repo := &stubRepo{activeCart: cart}
	svc := newService(repo, &stubVariantRepo{}, &stubCouponRepo{}, nil)
	if _, err := svc.RemoveCoupon(context.Background(), shopper("u1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.setCouponCalled || repo.lastCoupon != nil {
		t.Fatalf("expected coupon cleared")
	}
}

func TestValidateCollectsLineErrors(t *testing.T) {
	inactive := activeVariant("v1", 1000, 5)
	inactive.IsActive = false
	outOfStock := activeVariant("v2", 2000, 0)
	outOfStock.Name = "Road Shoe 41"
	short := activeVariant("v3", 1500, 1)
	short.Name = "Sandal 40"
	cart := activeCart(
		domain.CartItem{ID: "li1", VariantID: "v1", Quantity: 1, PriceCents: 1000, Variant: inactive},
		domain.CartItem{ID: "li2", VariantID: "v2", Quantity: 1, PriceCents: 2000, Variant: outOfStock},
		domain.CartItem{ID: "li3", VariantID: "v3", Quantity: 3, PriceCents: 1500, Variant: short},
	)
	repo := &stubRepo{activeCart: cart}
	svc := newService(repo, &stubVariantRepo{}, &stubCouponRepo{}, nil)

	result, err := svc.Validate(context.Background(), shopper("u1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Valid {
		t.Fatalf("expected invalid result")
	}
	if len(result.Errors) != 3 {
		t.Fatalf("expected one error per failing line, got %v", result.Errors)
	}
	if !strings.Contains(result.Errors[0], "no longer available") ||
		!strings.Contains(result.Errors[1], "out of stock") ||
		!strings.Contains(result.Errors[2], "Only 1 units") {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
}

func TestGetSurfacesPriceChangeWarnings(t *testing.T) {
	v := activeVariant("v1", 1200, 5)
	cart := activeCart(domain.CartItem{ID: "li1", VariantID: "v1", Quantity: 1, PriceCents: 1200, Variant: v})
	repo := &stubRepo{
		activeCart: cart,
		syncChanges: []cartrepo.PriceChange{
			{ItemID: "li1", Name: "Trail Shoe 42", OldPriceCents: 1000, NewPriceCents: 1200},
		},
	}
	svc := newService(repo, &stubVariantRepo{}, &stubCouponRepo{}, nil)

	view, err := svc.Get(context.Background(), shopper("u1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Warnings) != 1 || !strings.Contains(view.Warnings[0], "$10.00 -> $12.00") {
		t.Fatalf("unexpected warnings: %v", view.Warnings)
	}
}

func TestGetDropsInvalidAppliedCoupon(t *testing.T) {
	cart := activeCart(domain.CartItem{ID: "li1", VariantID: "v1", Quantity: 1, PriceCents: 1000})
	cart.AppliedCoupon = &domain.AppliedCoupon{Code: "SAVE10", DiscountCents: 100}
	coupon := &domain.Coupon{
		ID:                 "cp1",
		Code:               "SAVE10",
		DiscountType:       domain.DiscountPercentage,
		DiscountValue:      10,
		MinimumAmountCents: int64Ptr(2000),
		IsActive:           true,
	}
	repo := &stubRepo{activeCart: cart}
	svc := newService(repo, &stubVariantRepo{}, &stubCouponRepo{coupon: coupon}, nil)

	view, err := svc.Get(context.Background(), shopper("u1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Totals.DiscountCents != 0 {
		t.Fatalf("invalid coupon must not discount, got %d", view.Totals.DiscountCents)
	}
	if len(view.Warnings) == 0 || !strings.Contains(view.Warnings[0], "SAVE10 dropped") {
		t.Fatalf("expected drop warning, got %v", view.Warnings)
	}
}

func TestTotalsHappyPath(t *testing.T) {
	cart := activeCart(domain.CartItem{ID: "li1", VariantID: "v1", Quantity: 2, PriceCents: 5000})
	svc := newService(&stubRepo{activeCart: cart}, &stubVariantRepo{}, &stubCouponRepo{err: domain.ErrNotFound}, nil)

	totals, warnings, err := svc.Totals(context.Background(), cart)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if totals.SubtotalCents != 10000 || totals.TaxCents != 800 || totals.ShippingCents != 0 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
	if totals.TotalCents != 10800 {
		t.Fatalf("unexpected grand total: %d", totals.TotalCents)
	}
}
