// Package ordermgr implements the order lifecycle: place, cancel, status
// polling, and fill detection (§4.4). Grounded on the teacher's
// strategy.Maker.reconcileOrders/handleFill/handleOrderEvent in shape — the
// diff-then-cancel-then-place pattern survives (price and size are compared
// for exact equality, with no tolerance), but status is
// now learned by polling GetOrder rather than by consuming a user WebSocket
// feed, per §9 "status polling is always-on" and the executor contract (§6).
package ordermgr

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"updown-mm/internal/coretypes"
	"updown-mm/internal/inventory"
)

const (
	statusPollInterval = time.Second
	staleTimeout        = 300 * time.Second
)

var terminalStatusTokens = []string{
	"FILLED", "CANCELED", "CANCELLED", "EXPIRED", "REJECTED", "FAILED", "DONE", "CLOSED",
}

// Target is the (price, size) the strategy engine wants resting on a leg.
type Target struct {
	TokenID      string
	OtherTokenID string
	Market       coretypes.Market
	Direction    coretypes.Direction
	Price        decimal.Decimal
	Size         decimal.Decimal
}

// Manager owns the live OrderState map, keyed by tokenId (one working order
// per leg, per invariant 1 of §8). Single-writer: only ever called from the
// evaluation goroutine.
type Manager struct {
	executor   coretypes.Executor
	publisher  coretypes.Publisher
	inventory  *inventory.Store
	strategy   string
	runID      string
	minReplace time.Duration

	byToken map[string]*coretypes.OrderState
}

// New builds a Manager.
func New(executor coretypes.Executor, publisher coretypes.Publisher, inv *inventory.Store, strategy, runID string, minReplace time.Duration) *Manager {
	return &Manager{
		executor:   executor,
		publisher:  publisher,
		inventory:  inv,
		strategy:   strategy,
		runID:      runID,
		minReplace: minReplace,
		byToken:    make(map[string]*coretypes.OrderState),
	}
}

// Get returns the current order resting on tokenID, if any.
func (m *Manager) Get(tokenID string) (*coretypes.OrderState, bool) {
	o, ok := m.byToken[tokenID]
	return o, ok
}

// Reconcile drives one leg toward target (§4.3 step 9): place if absent,
// skip if within the replace guard or already matching, else cancel+replace.
func (m *Manager) Reconcile(target Target, reason coretypes.Reason, otherTokenID string, book, otherBook coretypes.TopOfBook, now time.Time) {
	existing, ok := m.byToken[target.TokenID]
	if !ok {
		m.place(target, reason, nil, book, otherBook, now)
		return
	}

	if now.Sub(existing.PlacedAt) < m.minReplace {
		return
	}

	priceMatch := existing.Price.Equal(target.Price)
	sizeMatch := existing.Size.Equal(target.Size)
	if priceMatch && sizeMatch {
		return
	}

	replaceReason := coretypes.ReasonReplacePrice
	switch {
	case !priceMatch && !sizeMatch:
		replaceReason = coretypes.ReasonReplacePriceAndSize
	case sizeMatch:
		replaceReason = coretypes.ReasonReplacePrice
	case priceMatch:
		replaceReason = coretypes.ReasonReplaceSize
	}

	prior := *existing
	m.cancel(target.TokenID, replaceReason, now)
	m.place(target, reason, &prior, book, otherBook, now)
}

// PlaceTaker submits a one-shot FOK buy for the top-up/taker paths (§4.3
// steps 5-6). Unlike Reconcile, it never registers a resting OrderState —
// a fill-or-kill order either settles immediately or is already gone.
func (m *Manager) PlaceTaker(target Target, reason coretypes.Reason, book, otherBook coretypes.TopOfBook, now time.Time) (*coretypes.PlaceResult, error) {
	result, err := m.executor.PlaceLimit(target.TokenID, coretypes.Buy, target.Price, target.Size, coretypes.FOK)

	evt := coretypes.LifecycleEvent{
		Strategy:     m.strategy,
		RunID:        m.runID,
		Action:       coretypes.ActionPlace,
		Reason:       reason,
		MarketSlug:   target.Market.Slug,
		MarketType:   target.Market.MarketType,
		TokenID:      target.TokenID,
		Direction:    target.Direction,
		SecondsToEnd: target.Market.SecondsToEnd(now),
		Price:        target.Price,
		Size:         target.Size,
		Book:         book,
		OtherTokenID: target.OtherTokenID,
		OtherBook:    otherBook,
	}

	if err != nil || result == nil || result.OrderID == "" {
		evt.Success = false
		if err != nil {
			evt.Error = err.Error()
		} else {
			evt.Error = "executor returned no order id"
		}
		m.publish(evt)
		ordersPlaced.WithLabelValues(string(reason), "false").Inc()
		return result, err
	}

	evt.Success = true
	evt.OrderID = result.OrderID
	m.publish(evt)
	ordersPlaced.WithLabelValues(string(reason), "true").Inc()
	return result, nil
}

// CancelLeg cancels any resting order on tokenID with the given reason.
func (m *Manager) CancelLeg(tokenID string, reason coretypes.Reason, now time.Time) {
	if _, ok := m.byToken[tokenID]; ok {
		m.cancel(tokenID, reason, now)
	}
}

func (m *Manager) place(target Target, reason coretypes.Reason, prior *coretypes.OrderState, book, otherBook coretypes.TopOfBook, now time.Time) {
	result, err := m.executor.PlaceLimit(target.TokenID, coretypes.Buy, target.Price, target.Size, coretypes.GTC)

	evt := coretypes.LifecycleEvent{
		Strategy:     m.strategy,
		RunID:        m.runID,
		Action:       coretypes.ActionPlace,
		Reason:       reason,
		MarketSlug:   target.Market.Slug,
		MarketType:   target.Market.MarketType,
		TokenID:      target.TokenID,
		Direction:    target.Direction,
		SecondsToEnd: target.Market.SecondsToEnd(now),
		Price:        target.Price,
		Size:         target.Size,
		Book:         book,
		OtherTokenID: target.OtherTokenID,
		OtherBook:    otherBook,
	}
	if prior != nil {
		evt.ReplacedOrderID = prior.OrderID
		evt.ReplacedPrice = prior.Price
		evt.ReplacedSize = prior.Size
	}

	if err != nil || result == nil || result.OrderID == "" {
		evt.Success = false
		if err != nil {
			evt.Error = err.Error()
		} else {
			evt.Error = "executor returned no order id"
		}
		m.publish(evt)
		ordersPlaced.WithLabelValues(string(reason), "false").Inc()
		return
	}

	m.byToken[target.TokenID] = &coretypes.OrderState{
		OrderID:             result.OrderID,
		Market:              target.Market.Slug,
		TokenID:             target.TokenID,
		Direction:           target.Direction,
		Price:               target.Price,
		Size:                target.Size,
		PlacedAt:            now,
		LastStatusCheckAt:   now,
		SecondsToEndAtEntry: target.Market.SecondsToEnd(now),
	}

	evt.Success = true
	evt.OrderID = result.OrderID
	m.publish(evt)
	ordersPlaced.WithLabelValues(string(reason), "true").Inc()
}

func (m *Manager) cancel(tokenID string, reason coretypes.Reason, now time.Time) {
	order, ok := m.byToken[tokenID]
	if !ok {
		return
	}
	ok2, err := m.executor.Cancel(order.OrderID)
	delete(m.byToken, tokenID)

	evt := coretypes.LifecycleEvent{
		Strategy:       m.strategy,
		RunID:          m.runID,
		Action:         coretypes.ActionCancel,
		Reason:         reason,
		MarketSlug:     order.Market,
		TokenID:        order.TokenID,
		Direction:      order.Direction,
		OrderID:        order.OrderID,
		Price:           order.Price,
		Size:            order.Size,
		OrderAgeMillis: now.Sub(order.PlacedAt).Milliseconds(),
		Success:        ok2 && err == nil,
	}
	if err != nil {
		evt.Error = err.Error()
	}
	m.publish(evt)
	ordersCancelled.WithLabelValues(string(reason)).Inc()
}

func (m *Manager) publish(evt coretypes.LifecycleEvent) {
	if m.publisher == nil || !m.publisher.IsEnabled() {
		return
	}
	m.publisher.Publish("executor.order.status", evt.TokenID, evt)
}

// PollDue polls every order whose LastStatusCheckAt is older than 1s,
// cancelling any that have exceeded the 300s staleness timeout (§4.4, §4.3
// step 10). Fill deltas update the inventory store and are returned for the
// exposure accountant to fold into its unbooked-fill tracker.
func (m *Manager) PollDue(now time.Time) []FillDelta {
	var fills []FillDelta

	for tokenID, order := range m.byToken {
		if now.Sub(order.LastStatusCheckAt) < statusPollInterval {
			continue
		}

		status, err := m.executor.GetOrder(order.OrderID)
		order.LastStatusCheckAt = now
		if err != nil {
			if now.Sub(order.PlacedAt) > staleTimeout {
				m.cancel(tokenID, coretypes.ReasonStaleTimeout, now)
			}
			continue
		}

		if status.HasMatchedSize && status.MatchedSize.GreaterThan(order.MatchedSize) {
			delta := status.MatchedSize.Sub(order.MatchedSize)
			order.MatchedSize = status.MatchedSize

			m.inventory.RecordFill(order.Market, order.Direction, delta, order.Price, now)
			fills = append(fills, FillDelta{
				TokenID:  tokenID,
				Delta:    delta,
				Price:    order.Price,
				Notional: delta.Mul(order.Price),
			})
		}

		if isTerminal(status, order) {
			delete(m.byToken, tokenID)
			continue
		}

		if now.Sub(order.PlacedAt) > staleTimeout {
			m.cancel(tokenID, coretypes.ReasonStaleTimeout, now)
		}
	}

	return fills
}

// FillDelta describes a newly observed fill, for the exposure accountant.
type FillDelta struct {
	TokenID  string
	Delta    decimal.Decimal
	Price    decimal.Decimal
	Notional decimal.Decimal
}

func isTerminal(status *coretypes.OrderStatus, order *coretypes.OrderState) bool {
	if status.HasRemainingSize && status.RemainingSize.IsZero() {
		return true
	}
	if status.HasMatchedSize && status.MatchedSize.GreaterThanOrEqual(order.Size) {
		return true
	}
	upper := strings.ToUpper(status.Status)
	for _, tok := range terminalStatusTokens {
		if strings.Contains(upper, tok) {
			return true
		}
	}
	return false
}

// OpenNotional sums price*remainingSize across every resting order — the
// first term of the exposure accountant's composite (§4.5).
func (m *Manager) OpenNotional() decimal.Decimal {
	total := decimal.Zero
	for _, o := range m.byToken {
		total = total.Add(o.Price.Mul(o.RemainingSize()))
	}
	return total
}
