package models

import "github.com/shopspring/decimal"

// RoundMoney rounds an amount to cents.
func RoundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// SubtractMoney returns a-b rounded to cents, clamped at zero.
func SubtractMoney(a, b float64) float64 {
	d := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b))
	if d.IsNegative() {
		return 0
	}
	return d.Round(2).InexactFloat64()
}

func floatPtr(v float64) *float64 {
	return &v
}

func stringPtr(s string) *string {
	return &s
}
