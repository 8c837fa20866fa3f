package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	ordersvc "storefront/internal/service/order"
)

// writeError maps business errors onto HTTP statuses. Anything unrecognized
// is logged and hidden behind a generic 500.
func (h *handlers) writeError(c *gin.Context, err error) {
	var stockErr *domain.InsufficientStockError
	var cartErr *domain.CartValidationError
	var couponErr *domain.CouponValidationError
	var transitionErr *domain.InvalidTransitionError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, ordersvc.ErrSignInRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrCartLocked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrProductUnavailable),
		errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, ordersvc.ErrUnknownPaymentStatus),
		errors.Is(err, ordersvc.ErrUnsupportedPaymentMethod):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     stockErr.Error(),
			"variantId": stockErr.VariantID,
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
	case errors.As(err, &cartErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "cart validation failed", "errors": cartErr.Errors})
	case errors.As(err, &couponErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coupon", "errors": couponErr.Errors})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{"error": transitionErr.Error()})
	default:
		h.logger.Printf("http: unhandled error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
