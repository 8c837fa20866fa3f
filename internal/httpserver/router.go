package httpserver

import (
	"context"
	"errors"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
	orderrepo "storefront/internal/repository/order"
	cartsvc "storefront/internal/service/cart"
	ordersvc "storefront/internal/service/order"
)

// CartService is the cart surface the handlers depend on.
type CartService interface {
	Get(ctx context.Context, shopper domain.Shopper) (*cartsvc.View, error)
	AddItem(ctx context.Context, shopper domain.Shopper, variantID string, quantity int) (*cartsvc.View, error)
	UpdateItem(ctx context.Context, shopper domain.Shopper, itemID string, quantity int) (*cartsvc.View, error)
	RemoveItem(ctx context.Context, shopper domain.Shopper, itemID string) (*cartsvc.View, error)
	Clear(ctx context.Context, shopper domain.Shopper) (*cartsvc.View, error)
	ApplyCoupon(ctx context.Context, shopper domain.Shopper, code string) (*cartsvc.View, error)
	RemoveCoupon(ctx context.Context, shopper domain.Shopper) (*cartsvc.View, error)
	Validate(ctx context.Context, shopper domain.Shopper) (*cartsvc.ValidationResult, error)
}

// OrderService is the checkout and order lifecycle surface.
type OrderService interface {
	Checkout(ctx context.Context, shopper domain.Shopper, in ordersvc.CheckoutInput) (*domain.Order, error)
	Get(ctx context.Context, shopper domain.Shopper, orderID string) (*domain.Order, error)
	List(ctx context.Context, shopper domain.Shopper, f orderrepo.ListFilter) ([]domain.Order, int, error)
	Cancel(ctx context.Context, shopper domain.Shopper, orderID, reason string) (*domain.Order, error)
	Ship(ctx context.Context, orderID, carrier, trackingNumber string) (*domain.Order, error)
	Deliver(ctx context.Context, orderID string) (*domain.Order, error)
	Refund(ctx context.Context, orderID string, amountCents int64) (*domain.Order, error)
	SetPaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error
}

// SessionService issues and resolves anonymous shopper tokens.
type SessionService interface {
	Issue(ctx context.Context) (token, sessionID string, err error)
	Resolve(ctx context.Context, token string) (string, error)
}

// Deps carries the services the router needs.
type Deps struct {
	CartSvc    CartService
	OrderSvc   OrderService
	SessionSvc SessionService
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if deps.CartSvc == nil {
		return nil, errors.New("cart service required")
	}
	if deps.OrderSvc == nil {
		return nil, errors.New("order service required")
	}
	if deps.SessionSvc == nil {
		return nil, errors.New("session service required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, headerUserID, headerSessionToken)
	corsCfg.ExposeHeaders = append(corsCfg.ExposeHeaders, headerSessionToken)
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	h := &handlers{carts: deps.CartSvc, orders: deps.OrderSvc, logger: logger}

	api := router.Group("/", identity(deps.SessionSvc))

	api.GET("/cart", h.getCart)
	api.DELETE("/cart", h.clearCart)
	api.POST("/cart/items", h.addCartItem)
	api.PATCH("/cart/items/:itemID", h.updateCartItem)
	api.DELETE("/cart/items/:itemID", h.removeCartItem)
	api.POST("/cart/coupon", h.applyCoupon)
	api.DELETE("/cart/coupon", h.removeCoupon)
	api.POST("/cart/validate", h.validateCart)

	api.POST("/checkout", h.checkout)
	api.GET("/orders", h.listOrders)
	api.GET("/orders/:orderID", h.getOrder)
	api.POST("/orders/:orderID/cancel", h.cancelOrder)
	api.POST("/orders/:orderID/ship", h.shipOrder)
	api.POST("/orders/:orderID/deliver", h.deliverOrder)
	api.POST("/orders/:orderID/refund", h.refundOrder)
	api.PUT("/orders/:orderID/payment-status", h.setPaymentStatus)

	return router, nil
}

type handlers struct {
	carts  CartService
	orders OrderService
	logger *log.Logger
}
