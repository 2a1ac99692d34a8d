package catalog

import (
	"time"

	"github.com/murphys-tech/catalog-api/internal/billing"
)

// Category groups catalog items for navigation.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Icon      string    `json:"icon,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item is one sellable catalog service. Prices are minor units.
type Item struct {
	ID            string    `json:"id"`
	CategoryID    *string   `json:"categoryId,omitempty"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Description   string    `json:"description,omitempty"`
	Price         int64     `json:"price"`
	Currency      string    `json:"currency"`
	HasDiscount   bool      `json:"hasDiscount"`
	DiscountType  string    `json:"discountType,omitempty"`
	DiscountValue int64     `json:"discountValue,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Discount returns the billing discount descriptor, or nil when the item has
// no usable discount.
func (i Item) Discount() *billing.Discount {
	if !i.HasDiscount || i.DiscountValue <= 0 {
		return nil
	}
	return &billing.Discount{Type: billing.DiscountType(i.DiscountType), Value: i.DiscountValue}
}

// EffectivePrice resolves the item's price after its own discount.
func (i Item) EffectivePrice() int64 {
	return billing.ResolveEffectivePrice(i.Price, i.Discount())
}
