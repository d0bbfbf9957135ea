package handler

import "github.com/shopspring/decimal"

// Request DTOs bind monetary amounts as float64; the domain works in
// decimals only.

func toDecimalPtr(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

func toDecimal(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
