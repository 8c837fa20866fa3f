package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

const (
	headerUserID       = "X-User-ID"
	headerSessionToken = "X-Session-Token"

	shopperContextKey = "shopper"
)

// identity resolves the caller to a Shopper. Registered users arrive with
// X-User-ID set by the upstream auth gateway; everyone else gets an
// anonymous session, created on first contact and echoed back in the
// X-Session-Token response header.
func identity(sessions SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := strings.TrimSpace(c.GetHeader(headerUserID)); userID != "" {
			c.Set(shopperContextKey, domain.Shopper{UserID: &userID})
			c.Next()
			return
		}

		if token := c.GetHeader(headerSessionToken); token != "" {
			sessionID, err := sessions.Resolve(c.Request.Context(), token)
			if err == nil {
				c.Set(shopperContextKey, domain.Shopper{SessionID: &sessionID})
				c.Next()
				return
			}
			// Expired or unknown token: fall through and issue a new one.
		}

		token, sessionID, err := sessions.Issue(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
			return
		}
		c.Header(headerSessionToken, token)
		c.Set(shopperContextKey, domain.Shopper{SessionID: &sessionID})
		c.Next()
	}
}

func shopperFrom(c *gin.Context) domain.Shopper {
	if v, ok := c.Get(shopperContextKey); ok {
		if shopper, ok := v.(domain.Shopper); ok {
			return shopper
		}
	}
	return domain.Shopper{}
}
