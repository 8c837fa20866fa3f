package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	orderrepo "storefront/internal/repository/order"
	ordersvc "storefront/internal/service/order"
)

type checkoutRequest struct {
	ShippingAddressID string `json:"shippingAddressId" binding:"required"`
	BillingAddressID  string `json:"billingAddressId"`
	PaymentMethod     string `json:"paymentMethod" binding:"required"`
	Notes             string `json:"notes"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type shipRequest struct {
	Carrier        string `json:"carrier" binding:"required"`
	TrackingNumber string `json:"trackingNumber" binding:"required"`
}

type refundRequest struct {
	AmountCents int64 `json:"amountCents"`
}

type paymentStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type orderListResponse struct {
	Orders []domain.Order `json:"orders"`
	Total  int            `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

func (h *handlers) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "shippingAddressId and paymentMethod are required")
		return
	}

	order, err := h.orders.Checkout(c.Request.Context(), shopperFrom(c), ordersvc.CheckoutInput{
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		PaymentMethod:     req.PaymentMethod,
		Notes:             req.Notes,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *handlers) listOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 {
		limit = 20
	}

	orders, total, err := h.orders.List(c.Request.Context(), shopperFrom(c), orderrepo.ListFilter{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, orderListResponse{Orders: orders, Total: total, Page: page, Limit: limit})
}

func (h *handlers) getOrder(c *gin.Context) {
	order, err := h.orders.Get(c.Request.Context(), shopperFrom(c), c.Param("orderID"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) cancelOrder(c *gin.Context) {
	var req cancelRequest
	_ = c.ShouldBindJSON(&req) // reason is optional

	order, err := h.orders.Cancel(c.Request.Context(), shopperFrom(c), c.Param("orderID"), req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) shipOrder(c *gin.Context) {
	var req shipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "carrier and trackingNumber are required")
		return
	}

	order, err := h.orders.Ship(c.Request.Context(), c.Param("orderID"), req.Carrier, req.TrackingNumber)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) deliverOrder(c *gin.Context) {
	order, err := h.orders.Deliver(c.Request.Context(), c.Param("orderID"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) refundOrder(c *gin.Context) {
	var req refundRequest
	_ = c.ShouldBindJSON(&req) // zero amount means full refund

	order, err := h.orders.Refund(c.Request.Context(), c.Param("orderID"), req.AmountCents)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handlers) setPaymentStatus(c *gin.Context) {
	var req paymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}

	if err := h.orders.SetPaymentStatus(c.Request.Context(), c.Param("orderID"), domain.PaymentStatus(req.Status)); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}
