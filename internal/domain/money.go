package domain

import "github.com/shopspring/decimal"

func init() {
	// Prices travel as JSON numbers, matching what storefront clients send.
	decimal.MarshalJSONWithoutQuotes = true
}

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MinorUnits converts an amount to the smallest currency unit (cents).
func MinorUnits(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}
