// Package money holds the rounding rules for prices and currency amounts.
package money

import "github.com/shopspring/decimal"

// Round2 rounds x half away from zero to two decimal places.
func Round2(x float64) float64 {
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}

// Sum adds amounts in decimal arithmetic and rounds the total to two places.
func Sum(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return total.Round(2).InexactFloat64()
}
