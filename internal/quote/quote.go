// Package quote derives target (price, size) per leg per §4.2: entry price
// with inventory skew, a discrete per-series size schedule, a sequential cap
// chain, and the complete-set edge gate. Grounded on the teacher's
// strategy.Maker.computeQuotes in shape (same price-then-size pipeline) but
// replacing the Avellaneda-Stoikov reservation-price formula entirely — this
// core never estimates volatility or inventory risk aversion, it works off
// the displayed book plus a size schedule keyed on time-to-end.
package quote

import (
	"github.com/shopspring/decimal"

	"updown-mm/internal/coretypes"
	"updown-mm/internal/decimalutil"
)

var (
	wideSpreadThreshold = decimal.RequireFromString("0.20")
	two                 = decimal.NewFromInt(2)
	oneTick             = decimal.NewFromInt(1)
)

// Params bundles the per-market knobs the calculator needs for one leg.
type Params struct {
	ImproveTicks                         int
	CompleteSetMaxSkewTicks              int
	CompleteSetImbalanceSharesForMaxSkew decimal.Decimal

	BankrollUsd              decimal.Decimal
	MaxOrderBankrollFraction decimal.Decimal
	MaxTotalBankrollFraction decimal.Decimal
	MaxOrderNotionalUsd      decimal.Decimal

	DirectionalBiasFactor decimal.Decimal // 1 when disabled or not favored/disfavored
}

// EntryPrice computes the maker-mode entry price for one leg (§4.2 steps 1-5).
// skewTicks is the signed per-leg adjustment from Skew below.
func EntryPrice(tob coretypes.TopOfBook, tick decimal.Decimal, improveTicks, skewTicks int) (decimal.Decimal, bool) {
	bestBid, bestAsk := tob.BestBid, tob.BestAsk
	mid := bestBid.Add(bestAsk).Div(two)
	spread := bestAsk.Sub(bestBid)

	effectiveImproveTicks := improveTicks + skewTicks

	var price decimal.Decimal
	if spread.GreaterThanOrEqual(wideSpreadThreshold) {
		backoff := improveTicks - skewTicks
		if backoff < 0 {
			backoff = 0
		}
		price = mid.Sub(tick.Mul(decimal.NewFromInt(int64(backoff))))
	} else {
		improved := bestBid.Add(tick.Mul(decimal.NewFromInt(int64(effectiveImproveTicks))))
		price = decimalutil.Min(improved, mid)
	}

	price = decimalutil.FloorToTick(price, tick)
	price = decimalutil.ClampPrice(price, tick)

	if price.GreaterThanOrEqual(bestAsk) {
		price = bestAsk.Sub(tick)
		if price.LessThan(tick) {
			return decimal.Zero, false
		}
	}

	return price, true
}

// Skew computes the signed per-leg tick adjustment from inventory imbalance.
// Returns (skewUp, skewDown).
func Skew(imbalance decimal.Decimal, refShares decimal.Decimal, maxSkewTicks int) (int, int) {
	if maxSkewTicks <= 0 {
		return 0, 0
	}
	ratio := decimalutil.SafeDiv(imbalance.Abs(), refShares, decimal.Zero)
	ratio = decimalutil.Min(ratio, decimal.NewFromInt(1))
	skewMag := ratio.Mul(decimal.NewFromInt(int64(maxSkewTicks))).Round(0)
	mag := int(skewMag.IntPart())

	if imbalance.GreaterThan(decimal.Zero) {
		return -mag, mag // long UP: penalize UP, improve DOWN
	}
	if imbalance.LessThan(decimal.Zero) {
		return mag, -mag // long DOWN: penalize DOWN, improve UP
	}
	return 0, 0
}

// ScheduledSize returns the discrete share count for (series, secondsToEnd),
// or false if the series has no schedule entry (caller falls back to
// bankroll/config-based sizing).
func ScheduledSize(series coretypes.Series, secondsToEnd int64) (decimal.Decimal, bool) {
	table, ok := sizeSchedules[series]
	if !ok {
		return decimal.Zero, false
	}
	for _, row := range table {
		if secondsToEnd < row.lessThan {
			return row.size, true
		}
	}
	return table[len(table)-1].fallback, true
}

type scheduleRow struct {
	lessThan int64
	size     decimal.Decimal
	fallback decimal.Decimal // only meaningful on the last row
}

func sched(pairs ...interface{}) []scheduleRow {
	rows := make([]scheduleRow, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		rows = append(rows, scheduleRow{
			lessThan: pairs[i].(int64),
			size:     decimal.NewFromInt(pairs[i+1].(int64)),
		})
	}
	rows[len(rows)-1].fallback = rows[len(rows)-1].size
	return rows
}

var sizeSchedules = map[coretypes.Series][]scheduleRow{
	coretypes.SeriesBTC15m: sched(
		int64(60), int64(11),
		int64(180), int64(13),
		int64(300), int64(17),
		int64(600), int64(19),
		int64(1<<62), int64(20),
	),
	coretypes.SeriesETH15m: sched(
		int64(60), int64(8),
		int64(180), int64(10),
		int64(300), int64(12),
		int64(600), int64(13),
		int64(1<<62), int64(14),
	),
	coretypes.SeriesBTC1h: sched(
		int64(60), int64(9),
		int64(180), int64(10),
		int64(300), int64(11),
		int64(600), int64(12),
		int64(900), int64(14),
		int64(1200), int64(15),
		int64(1800), int64(17),
		int64(1<<62), int64(18),
	),
	coretypes.SeriesETH1h: sched(
		int64(60), int64(7),
		int64(300), int64(8),
		int64(600), int64(9),
		int64(900), int64(11),
		int64(1200), int64(12),
		int64(1800), int64(13),
		int64(1<<62), int64(14),
	),
}

// ApplyCaps runs the sequential cap chain (§4.2 "Caps") and returns the final
// floored size, or false if the order should be rejected outright.
func ApplyCaps(size, price decimal.Decimal, currentExposure decimal.Decimal, p Params, biasFactor decimal.Decimal) (decimal.Decimal, bool) {
	if price.IsZero() {
		return decimal.Zero, false
	}

	perOrderCap := decimalutil.SafeDiv(p.BankrollUsd.Mul(p.MaxOrderBankrollFraction), price, decimal.Zero)
	size = decimalutil.Min(size, perOrderCap)

	totalRemainder := p.BankrollUsd.Mul(p.MaxTotalBankrollFraction).Sub(currentExposure)
	if totalRemainder.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, false
	}
	totalCap := decimalutil.SafeDiv(totalRemainder, price, decimal.Zero)
	size = decimalutil.Min(size, totalCap)

	if p.MaxOrderNotionalUsd.GreaterThan(decimal.Zero) {
		notionalCap := decimalutil.SafeDiv(p.MaxOrderNotionalUsd, price, decimal.Zero)
		size = decimalutil.Min(size, notionalCap)
	}

	size = size.Mul(biasFactor)
	size = decimalutil.FloorSize(size)

	if size.LessThan(decimalutil.MinSize()) {
		return decimal.Zero, false
	}
	return size, true
}

// CompleteSetEdge returns 1 - (pUp + pDown), the planned complete-set edge.
func CompleteSetEdge(pUp, pDown decimal.Decimal) decimal.Decimal {
	return oneTick.Sub(pUp.Add(pDown))
}

// TopUpPrice computes the taker-mode top-up price for the lagging leg: its
// bestAsk, gated on spread <= takerMaxSpread. Returns false if the spread is
// too wide to take.
func TopUpPrice(laggingTOB coretypes.TopOfBook, takerMaxSpread decimal.Decimal) (decimal.Decimal, bool) {
	if laggingTOB.Spread().GreaterThan(takerMaxSpread) {
		return decimal.Zero, false
	}
	return laggingTOB.BestAsk, true
}

// HedgedEdge returns 1 - (leadFillPrice + laggingAsk), the edge realized by
// hedging a fill on the lead leg with a taker buy on the lagging leg.
func HedgedEdge(leadFillPrice, laggingAsk decimal.Decimal) decimal.Decimal {
	return oneTick.Sub(leadFillPrice.Add(laggingAsk))
}
