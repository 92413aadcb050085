// Package cart holds the shopper-side cart and its durable storage.
package cart

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
)

type Item struct {
	ProductID string          `json:"product"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Qty       int             `json:"qty"`
}

type Cart struct {
	Items           []Item                 `json:"cartItems"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
}

func New() *Cart {
	return &Cart{Items: []Item{}, PaymentMethod: "Stripe"}
}

// Add puts item in the cart. Adding a product already present replaces its
// line, quantity included, rather than accumulating.
func (c *Cart) Add(item Item) {
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i] = item
			return
		}
	}
	c.Items = append(c.Items, item)
}

func (c *Cart) Remove(productID string) {
	c.Items = slices.DeleteFunc(c.Items, func(it Item) bool { return it.ProductID == productID })
}

// ClearItems empties the cart but keeps the shipping address and payment method.
func (c *Cart) ClearItems() {
	c.Items = []Item{}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) ItemsPrice() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(domain.LineTotal(it.Price, it.Qty))
	}
	return total
}

// Totals prices the cart under policy. The server recomputes the same figures
// from catalog prices when the order is placed.
func (c *Cart) Totals(policy domain.PricingPolicy) domain.Totals {
	return domain.Quote(policy, c.ItemsPrice())
}
