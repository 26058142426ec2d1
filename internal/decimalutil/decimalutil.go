// Package decimalutil centralizes the tick and size rounding rules used by
// the quote calculator and the strategy engine. All monetary
// arithmetic in the core flows through decimal.Decimal — the bot's teacher
// declared shopspring/decimal in its dependency list but never imported it,
// rounding by hand with float64 and math.Pow instead; this package is that
// promise kept, with DivisionPrecision raised so intermediate quotients carry
// at least 8 fractional digits before either boundary below truncates them.
package decimalutil

import (
	"github.com/shopspring/decimal"
)

func init() {
	decimal.DivisionPrecision = 16
}

const SizeStep = "0.01"

var (
	one      = decimal.NewFromInt(1)
	sizeStep = decimal.RequireFromString(SizeStep)
)

// TickDecimals returns the number of fractional digits a tick size encodes,
// e.g. "0.01" -> 2. Returns 2 for a zero tick.
func TickDecimals(tick decimal.Decimal) int32 {
	if tick.IsZero() {
		return 2
	}
	exp := tick.Exponent()
	if exp >= 0 {
		return 0
	}
	return -exp
}

// FloorToTick rounds a price down to the nearest multiple of tick.
func FloorToTick(price, tick decimal.Decimal) decimal.Decimal {
	if tick.IsZero() {
		return price
	}
	steps := price.Div(tick).Floor()
	return steps.Mul(tick)
}

// CeilToTick rounds a price up to the nearest multiple of tick.
func CeilToTick(price, tick decimal.Decimal) decimal.Decimal {
	if tick.IsZero() {
		return price
	}
	steps := price.Div(tick).Ceil()
	return steps.Mul(tick)
}

// ClampPrice constrains a price into [tick, 1-tick], the valid quoting range
// for a binary market.
func ClampPrice(price, tick decimal.Decimal) decimal.Decimal {
	lo := tick
	hi := one.Sub(tick)
	if price.LessThan(lo) {
		return lo
	}
	if price.GreaterThan(hi) {
		return hi
	}
	return price
}

// FloorSize truncates a share count down to the 0.01-share boundary.
func FloorSize(size decimal.Decimal) decimal.Decimal {
	steps := size.Div(sizeStep).Floor()
	return steps.Mul(sizeStep)
}

// MinSize is the smallest tradeable size (one 0.01-share step).
func MinSize() decimal.Decimal {
	return sizeStep
}

// SafeDiv returns a/b, or neutral if b is zero — the "division by zero must
// yield a neutral result" rule for factors and imbalances.
func SafeDiv(a, b, neutral decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return neutral
	}
	return a.Div(b)
}

// Min returns the smaller of two decimals.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of two decimals.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Clamp constrains v into [lo, hi].
func Clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
