package domain

import "time"

// OrderStatus enumerates order lifecycle states.
type OrderStatus string

const (
	OrderPending           OrderStatus = "pending"
	OrderConfirmed         OrderStatus = "confirmed"
	OrderProcessing        OrderStatus = "processing"
	OrderShipped           OrderStatus = "shipped"
	OrderDelivered         OrderStatus = "delivered"
	OrderCancelled         OrderStatus = "cancelled"
	OrderRefunded          OrderStatus = "refunded"
	OrderPartiallyRefunded OrderStatus = "partially_refunded"
)

// PaymentStatus enumerates payment states reported by the payment collaborator.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentAuthorized        PaymentStatus = "authorized"
	PaymentCaptured          PaymentStatus = "captured"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

// Address is a point-in-time address snapshot copied onto orders at
// checkout. Orders keep the values, not a reference.
type Address struct {
	ID         string `json:"id,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Totals is the money breakdown computed by the pricing engine and copied
// verbatim onto orders. All amounts are cents.
type Totals struct {
	SubtotalCents int64 `json:"subtotalCents"`
	TaxCents      int64 `json:"taxCents"`
	ShippingCents int64 `json:"shippingCents"`
	DiscountCents int64 `json:"discountCents"`
	TotalCents    int64 `json:"totalCents"`
	ItemCount     int   `json:"itemCount"`
}

// Order is created atomically from a cart at checkout and never mutated
// afterwards except for status/tracking fields.
type Order struct {
	ID                  string        `json:"id"`
	OrderNumber         string        `json:"orderNumber"`
	UserID              string        `json:"userId"`
	Status              OrderStatus   `json:"status"`
	PaymentStatus       PaymentStatus `json:"paymentStatus"`
	SubtotalCents       int64         `json:"subtotalCents"`
	TaxCents            int64         `json:"taxCents"`
	ShippingCents       int64         `json:"shippingCents"`
	DiscountCents       int64         `json:"discountCents"`
	TotalCents          int64         `json:"totalCents"`
	Currency            string        `json:"currency"`
	CouponCode          string        `json:"couponCode,omitempty"`
	ShippingAddress     Address       `json:"shippingAddress"`
	BillingAddress      Address       `json:"billingAddress"`
	PaymentMethod       string        `json:"paymentMethod"`
	Notes               string        `json:"notes,omitempty"`
	ShippingCarrier     string        `json:"shippingCarrier,omitempty"`
	TrackingNumber      string        `json:"trackingNumber,omitempty"`
	RefundedAmountCents int64         `json:"refundedAmountCents,omitempty"`
	ShippedAt           *time.Time    `json:"shippedAt,omitempty"`
	DeliveredAt         *time.Time    `json:"deliveredAt,omitempty"`
	CreatedAt           time.Time     `json:"createdAt"`
	Items               []OrderItem   `json:"items"`
}

// OrderItem snapshots the purchased product/variant identity, price and
// attributes at time of purchase. It survives later catalog edits and
// deletions unchanged.
type OrderItem struct {
	ID                string                 `json:"id"`
	OrderID           string                 `json:"orderId"`
	VariantID         string                 `json:"variantId"`
	Quantity          int                    `json:"quantity"`
	PriceCents        int64                  `json:"priceCents"`
	TotalCents        int64                  `json:"totalCents"`
	ProductName       string                 `json:"productName"`
	ProductSKU        string                 `json:"productSku"`
	VariantName       string                 `json:"variantName,omitempty"`
	VariantSKU        string                 `json:"variantSku"`
	VariantAttributes map[string]interface{} `json:"variantAttributes,omitempty"`
}

// CanBeCancelled reports whether the order is still in a cancellable state.
func (o Order) CanBeCancelled() bool {
	return o.Status == OrderPending || o.Status == OrderConfirmed
}

// CanBeShipped reports whether the order may transition to shipped.
func (o Order) CanBeShipped() bool {
	return o.Status == OrderConfirmed || o.Status == OrderProcessing
}

// CanBeDelivered reports whether the order may transition to delivered.
func (o Order) CanBeDelivered() bool {
	return o.Status == OrderShipped
}

// CanBeRefunded reports whether the order qualifies for a refund: it must
// have shipped or been delivered with payment captured. A partially
// refunded order stays refundable so the amount can be topped up to the
// full total.
func (o Order) CanBeRefunded() bool {
	if o.Status == OrderPartiallyRefunded {
		return o.PaymentStatus == PaymentPartiallyRefunded
	}
	return (o.Status == OrderDelivered || o.Status == OrderShipped) &&
		o.PaymentStatus == PaymentCaptured
}

// ItemCount sums quantities across order items.
func (o Order) ItemCount() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}
