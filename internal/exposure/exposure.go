// Package exposure computes the cheap composite exposure estimate the
// strategy engine gates new orders on (§4.5): open-order notional plus the
// latest positions snapshot's total plus any fills observed since that
// snapshot was taken.
package exposure

import (
	"github.com/shopspring/decimal"

	"updown-mm/internal/coretypes"
)

// Accountant combines open orders, the positions cache, and unbooked fills
// into a single running notional figure.
type Accountant struct {
	unbooked *coretypes.UnbookedFills
}

// New builds an Accountant with an empty unbooked-fills tracker.
func New() *Accountant {
	return &Accountant{unbooked: coretypes.NewUnbookedFills()}
}

// RecordFill adds a fill's notional to the unbooked tracker; call this
// whenever the order manager observes a fill via status polling.
func (a *Accountant) RecordFill(tokenID string, notional decimal.Decimal) {
	a.unbooked.Add(tokenID, notional)
}

// ResetUnbooked clears the unbooked tracker after a successful positions
// refresh folds those fills into the authoritative snapshot.
func (a *Accountant) ResetUnbooked() {
	a.unbooked.Reset()
}

// Total returns openOrderNotional + positionsCache.TotalOpenNotional + unbookedFills.Total.
func (a *Accountant) Total(openOrderNotional decimal.Decimal, positions coretypes.PositionsCache) decimal.Decimal {
	return openOrderNotional.Add(positions.TotalOpenNotional).Add(a.unbooked.Total)
}
