package domain

import "time"

// Variant is the purchasable SKU-level unit of a product. Stock and price
// are tracked per variant; the product name/SKU are joined in by the
// repository so snapshots can be built without a second lookup.
type Variant struct {
	ID                  string                 `json:"id"`
	ProductID           string                 `json:"productId"`
	ProductName         string                 `json:"productName"`
	ProductSKU          string                 `json:"productSku"`
	SKU                 string                 `json:"sku"`
	Name                string                 `json:"name,omitempty"`
	PriceCents          int64                  `json:"priceCents"`
	CompareAtPriceCents *int64                 `json:"compareAtPriceCents,omitempty"`
	Stock               int                    `json:"stock"`
	LowStockThreshold   int                    `json:"lowStockThreshold"`
	Attributes          map[string]interface{} `json:"attributes,omitempty"`
	IsActive            bool                   `json:"isActive"`
	CreatedAt           time.Time              `json:"createdAt"`
}

// IsInStock reports whether at least one unit is on hand.
func (v Variant) IsInStock() bool {
	return v.Stock > 0
}

// IsLowStock reports whether stock is at or below the low-stock threshold.
func (v Variant) IsLowStock() bool {
	return v.Stock <= v.LowStockThreshold
}

// SavingsCents returns the per-unit saving against the compare-at price,
// or 0 when no compare-at price is set or it does not exceed the price.
func (v Variant) SavingsCents() int64 {
	if v.CompareAtPriceCents == nil || *v.CompareAtPriceCents <= v.PriceCents {
		return 0
	}
	return *v.CompareAtPriceCents - v.PriceCents
}
