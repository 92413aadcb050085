package domain

import "github.com/shopspring/decimal"

// PricingPolicy derives shipping and tax from an items subtotal.
type PricingPolicy interface {
	Quote(itemsPrice decimal.Decimal) (shipping, tax decimal.Decimal)
}

// ThresholdPolicy charges a flat shipping fee unless the subtotal exceeds
// FreeShippingOver, and a proportional tax on the subtotal.
type ThresholdPolicy struct {
	FlatShipping     decimal.Decimal
	FreeShippingOver decimal.Decimal
	TaxRate          decimal.Decimal
}

func DefaultPricing() ThresholdPolicy {
	return ThresholdPolicy{
		FlatShipping:     decimal.NewFromInt(10),
		FreeShippingOver: decimal.NewFromInt(100),
		TaxRate:          decimal.RequireFromString("0.15"),
	}
}

func (p ThresholdPolicy) Quote(itemsPrice decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	shipping := p.FlatShipping
	if itemsPrice.GreaterThan(p.FreeShippingOver) {
		shipping = decimal.Zero
	}
	tax := RoundMoney(itemsPrice.Mul(p.TaxRate))
	return RoundMoney(shipping), tax
}

type Totals struct {
	ItemsPrice    decimal.Decimal `json:"itemsPrice"`
	ShippingPrice decimal.Decimal `json:"shippingPrice"`
	TaxPrice      decimal.Decimal `json:"taxPrice"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
}

// NewTotals sums the components; TotalPrice is always the exact sum of the other three.
func NewTotals(itemsPrice, shippingPrice, taxPrice decimal.Decimal) Totals {
	items := RoundMoney(itemsPrice)
	shipping := RoundMoney(shippingPrice)
	tax := RoundMoney(taxPrice)
	return Totals{
		ItemsPrice:    items,
		ShippingPrice: shipping,
		TaxPrice:      tax,
		TotalPrice:    items.Add(shipping).Add(tax),
	}
}

// Quote prices a subtotal under the policy.
func Quote(policy PricingPolicy, itemsPrice decimal.Decimal) Totals {
	shipping, tax := policy.Quote(itemsPrice)
	return NewTotals(itemsPrice, shipping, tax)
}

// LineTotal is price × quantity.
func LineTotal(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}
