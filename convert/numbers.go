// Package convert rounds computed figures for people to read.
package convert

import (
	"github.com/icodeforyou/bessquote/types/maybe"
	"github.com/shopspring/decimal"
)

// Cents rounds an amount of money to two decimals, half away from zero.
func Cents(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

// Years rounds a duration to a tenth of a year. Unset stays unset.
func Years(years maybe.Maybe[float64]) maybe.Maybe[float64] {
	if !years.IsValid() {
		return years
	}
	return maybe.Some(decimal.NewFromFloat(years.Value()).Round(1).InexactFloat64())
}
