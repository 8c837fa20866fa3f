package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/pricing"
	cartrepo "storefront/internal/repository/cart"
)

type cartRepo interface {
	Create(ctx context.Context, in cartrepo.CreateCartInput) (*domain.Cart, error)
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
	GetActiveByUser(ctx context.Context, userID string) (*domain.Cart, error)
	GetActiveBySession(ctx context.Context, sessionID string) (*domain.Cart, error)
	AddItem(ctx context.Context, cartID string, v domain.Variant, quantity int) error
	UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error
	Clear(ctx context.Context, cartID string) error
	SetCoupon(ctx context.Context, cartID string, coupon *domain.AppliedCoupon) error
	SyncPrices(ctx context.Context, cartID string) ([]cartrepo.PriceChange, error)
}

type variantRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Variant, error)
}

type couponRepo interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	UserUsageCount(ctx context.Context, couponID, userID string) (int, error)
}

// Service is the cart aggregate: add/update/remove/clear, coupon
// application, validation and totals. Money math is delegated to the
// pricing engine; persistence and row locking to the repository.
type Service struct {
	repo     cartRepo
	variants variantRepo
	coupons  couponRepo
	engine   pricing.Engine
	recorder events.Recorder
}

func New(repo cartRepo, variants variantRepo, coupons couponRepo, engine pricing.Engine, recorder events.Recorder) *Service {
	if recorder == nil {
		recorder = events.Noop{}
	}
	return &Service{
		repo:     repo,
		variants: variants,
		coupons:  coupons,
		engine:   engine,
		recorder: recorder,
	}
}

// ValidationResult is the outcome of cart validation: one error per failing
// line, plus non-fatal price-change warnings.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// View is what a shopper sees: the cart, its computed totals and any
// non-fatal warnings (price changes, dropped coupon).
type View struct {
	Cart     *domain.Cart  `json:"cart"`
	Totals   domain.Totals `json:"totals"`
	Warnings []string      `json:"warnings,omitempty"`
}

// GetOrCreate resolves the shopper's active cart, creating one lazily on
// first access.
func (s *Service) GetOrCreate(ctx context.Context, shopper domain.Shopper) (*domain.Cart, error) {
	if !shopper.IsKnown() {
		return nil, errors.New("shopper identity required")
	}

	var cart *domain.Cart
	var err error
	if shopper.UserID != nil {
		cart, err = s.repo.GetActiveByUser(ctx, *shopper.UserID)
	} else {
		cart, err = s.repo.GetActiveBySession(ctx, *shopper.SessionID)
	}
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return s.repo.Create(ctx, cartrepo.CreateCartInput{
		UserID:    shopper.UserID,
		SessionID: shopper.SessionID,
	})
}

// Get returns the shopper's cart with snapshot prices re-synced and totals
// computed. Price changes and a dropped invalid coupon surface as warnings,
// never as failures.
func (s *Service) Get(ctx context.Context, shopper domain.Shopper) (*View, error) {
	cart, err := s.GetOrCreate(ctx, shopper)
	if err != nil {
		return nil, err
	}
	cart, warnings, err := s.refresh(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	totals, couponWarnings, err := s.Totals(ctx, cart)
	if err != nil {
		return nil, err
	}
	return &View{Cart: cart, Totals: totals, Warnings: append(warnings, couponWarnings...)}, nil
}

// AddItem puts quantity units of a variant in the cart, merging into an
// existing line when present. Stock is checked for availability only;
// nothing is reserved until checkout.
func (s *Service) AddItem(ctx context.Context, shopper domain.Shopper, variantID string, quantity int) (*View, error) {
	if quantity < 1 {
		return nil, errors.New("quantity must be positive")
	}

	variant, err := s.variants.GetByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrProductUnavailable
		}
		return nil, err
	}
	if !variant.IsActive || !variant.IsInStock() {
		return nil, domain.ErrProductUnavailable
	}

	cart, err := s.GetOrCreate(ctx, shopper)
	if err != nil {
		return nil, err
	}
	if !cart.IsActive() {
		return nil, domain.ErrCartLocked
	}

	requested := quantity
	if existing := cart.ItemByVariant(variantID); existing != nil {
		requested += existing.Quantity
	}
	if variant.Stock < requested {
		return nil, &domain.InsufficientStockError{
			VariantID: variantID,
			Name:      variantDisplayName(*variant),
			Requested: requested,
			Available: variant.Stock,
		}
	}

	if err := s.repo.AddItem(ctx, cart.ID, *variant, quantity); err != nil {
		return nil, err
	}

	view, err := s.Get(ctx, shopper)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, events.Event{
		Type:       "add_to_cart",
		UserID:     shopper.UserID,
		SessionID:  shopper.SessionID,
		EntityType: "product_variant",
		EntityID:   variantID,
		Metadata: map[string]interface{}{
			"quantity":      quantity,
			"cart_quantity": view.Cart.TotalQuantity(),
		},
	})

	return view, nil
}

// UpdateItem sets a line's quantity. Quantity 0 removes the line; removing
// an already-removed line is a no-op, so repeated calls are idempotent.
func (s *Service) UpdateItem(ctx context.Context, shopper domain.Shopper, itemID string, quantity int) (*View, error) {
	cart, err := s.GetOrCreate(ctx, shopper)
	if err != nil {
		return nil, err
	}
	if !cart.IsActive() {
		return nil, domain.ErrCartLocked
	}

	if quantity <= 0 {
		err := s.repo.UpdateItemQuantity(ctx, cart.ID, itemID, 0)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return s.Get(ctx, shopper)
	}

	item := cart.ItemByID(itemID)
	if item == nil {
		return nil, domain.ErrNotFound
	}
	if item.Variant != nil && item.Variant.Stock < quantity {
		return nil, &domain.InsufficientStockError{
			VariantID: item.VariantID,
			Name:      variantDisplayName(*item.Variant),
			Requested: quantity,
			Available: item.Variant.Stock,
		}
	}

	if err := s.repo.UpdateItemQuantity(ctx, cart.ID, itemID, quantity); err != nil {
		return nil, err
	}
	return s.Get(ctx, shopper)
}

// RemoveItem deletes a line outright.
func (s *Service) RemoveItem(ctx context.Context, shopper domain.Shopper, itemID string) (*View, error) {
	return s.UpdateItem(ctx, shopper, itemID, 0)
}

// Clear removes every line. The empty active cart remains.
func (s *Service) Clear(ctx context.Context, shopper domain.Shopper) (*View, error) {
	cart, err := s.GetOrCreate(ctx, shopper)
	if err != nil {
		return nil, err
	}
	if !cart.IsActive() {
		return nil, domain.ErrCartLocked
	}
	if err := s.repo.Clear(ctx, cart.ID); err != nil {
		return nil, err
	}
	return s.Get(ctx, shopper)
}

// ApplyCoupon validates a code against the current subtotal and the
// shopper's usage history, then stores it on the cart with its computed
// discount. Every failing reason comes back at once.
func (s *Service) ApplyCoupon(ctx context.Context, shopper domain.Shopper, code string) (*View, error) {
	cart, err := s.GetOrCreate(ctx, shopper)
	if err != nil {
		return nil, err
	}
	if !cart.IsActive() {
		return nil, domain.ErrCartLocked
	}

	coupon, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	cart, _, err = s.refresh(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	subtotal := subtotalCents(cart.Items)

	usage, err := s.userUsage(ctx, coupon.ID, shopper)
	if err != nil {
		return nil, err
	}

	validation := pricing.ValidateCoupon(*coupon, subtotal, usage, time.Now())
	if !validation.Valid {
		return nil, &domain.CouponValidationError{Code: coupon.Code, Errors: validation.Errors}
	}

	applied := &domain.AppliedCoupon{
		Code:          coupon.Code,
		DiscountCents: pricing.CalculateDiscount(*coupon, subtotal),
	}
	if err := s.repo.SetCoupon(ctx, cart.ID, applied); err != nil {
		return nil, err
	}
	return s.Get(ctx, shopper)
}

// RemoveCoupon drops the applied coupon, if any.
func (s *Service) RemoveCoupon(ctx context.Context, shopper domain.Shopper) (*View, error) {
	cart, err := s.GetOrCreate(ctx, shopper)
	if err != nil {
		return nil, err
	}
	if !cart.IsActive() {
		return nil, domain.ErrCartLocked
	}
	if err := s.repo.SetCoupon(ctx, cart.ID, nil); err != nil {
		return nil, err
	}
	return s.Get(ctx, shopper)
}

// Validate re-checks every line against the live catalog: variant still
// active, in stock, and stocked deep enough for the requested quantity.
// Failures are collected per line rather than failing fast; stale snapshot
// prices are auto-corrected and reported as warnings.
func (s *Service) Validate(ctx context.Context, shopper domain.Shopper) (*ValidationResult, error) {
	cart, err := s.GetOrCreate(ctx, shopper)
	if err != nil {
		return nil, err
	}
	return s.ValidateCart(ctx, cart)
}

// ValidateCart is Validate for an already-resolved cart; checkout uses it
// directly.
func (s *Service) ValidateCart(ctx context.Context, cart *domain.Cart) (*ValidationResult, error) {
	cart, warnings, err := s.refresh(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	var errs []string
	for _, item := range cart.Items {
		if item.Variant == nil {
			errs = append(errs, fmt.Sprintf("Product for item %s is no longer available", item.ID))
			continue
		}
		name := variantDisplayName(*item.Variant)
		switch {
		case !item.Variant.IsActive:
			errs = append(errs, fmt.Sprintf("Product %q is no longer available", name))
		case !item.Variant.IsInStock():
			errs = append(errs, fmt.Sprintf("Product %q is out of stock", name))
		case item.Variant.Stock < item.Quantity:
			errs = append(errs, fmt.Sprintf("Only %d units of %q available, but %d requested",
				item.Variant.Stock, name, item.Quantity))
		}
	}

	return &ValidationResult{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}, nil
}

// Totals prices the cart through the engine, resolving the applied coupon
// and the shopper's usage history. An invalid applied coupon is dropped
// with warnings.
func (s *Service) Totals(ctx context.Context, cart *domain.Cart) (domain.Totals, []string, error) {
	var coupon *domain.Coupon
	usage := 0
	if cart.AppliedCoupon != nil {
		c, err := s.coupons.GetByCode(ctx, cart.AppliedCoupon.Code)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.Totals{}, nil, err
		}
		if c != nil {
			coupon = c
			shopper := domain.Shopper{UserID: cart.UserID, SessionID: cart.SessionID}
			usage, err = s.userUsage(ctx, c.ID, shopper)
			if err != nil {
				return domain.Totals{}, nil, err
			}
		}
	}
	return s.engine.ComputeTotals(cart.Items, coupon, usage, time.Now())
}

// refresh re-syncs snapshot prices to the live catalog and reloads the
// cart, returning user-visible warnings for any line whose price moved.
func (s *Service) refresh(ctx context.Context, cartID string) (*domain.Cart, []string, error) {
	changes, err := s.repo.SyncPrices(ctx, cartID)
	if err != nil {
		return nil, nil, err
	}
	var warnings []string
	for _, c := range changes {
		warnings = append(warnings, fmt.Sprintf("Price updated for %q: $%.2f -> $%.2f",
			c.Name, float64(c.OldPriceCents)/100, float64(c.NewPriceCents)/100))
	}
	cart, err := s.repo.GetByID(ctx, cartID)
	if err != nil {
		return nil, nil, err
	}
	return cart, warnings, nil
}

func (s *Service) userUsage(ctx context.Context, couponID string, shopper domain.Shopper) (int, error) {
	if shopper.UserID == nil {
		return 0, nil
	}
	return s.coupons.UserUsageCount(ctx, couponID, *shopper.UserID)
}

func subtotalCents(items []domain.CartItem) int64 {
	var total int64
	for _, item := range items {
		total += item.LineTotalCents()
	}
	return total
}

func variantDisplayName(v domain.Variant) string {
	if v.Name != "" {
		return v.Name
	}
	return v.ProductName
}
