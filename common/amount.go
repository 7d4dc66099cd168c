package common

import (
	"math"
	"strconv"
)

// SatsPerCoin is the number of smallest units in one user-facing unit of
// the source asset (8 decimal places).
const SatsPerCoin = 1e8

// RateDecimals is the display precision for exchange rates.
const RateDecimals = 6

// ToSats converts a user-facing decimal amount to satoshis, rounding to
// the nearest integer the way wallet UIs do.
func ToSats(amount float64) int64 {
	return int64(math.Round(amount * SatsPerCoin))
}

// FromSats converts satoshis back to a user-facing decimal amount with
// 8-decimal precision.
func FromSats(sats int64) float64 {
	v := float64(sats) / SatsPerCoin
	return RoundTo(v, 8)
}

// RoundTo rounds v to n decimal places.
func RoundTo(v float64, n int) float64 {
	p := math.Pow10(n)
	return math.Round(v*p) / p
}

// FormatRate renders an exchange rate with the fixed display precision.
func FormatRate(rate float64) string {
	return strconv.FormatFloat(RoundTo(rate, RateDecimals), 'f', RateDecimals, 64)
}

// FloorZero clamps a net amount at zero. A conversion that nets to zero
// or below is reported as zero, never as a negative number.
func FloorZero(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}
