// Package coretypes defines the shared vocabulary of the trading core — market
// identity, top-of-book snapshots, order/inventory state, and the external
// collaborator contracts (executor, TOB feed, event publisher). It has no
// dependency on any other internal package so it can be imported from anywhere.
package coretypes

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction identifies one leg of a binary UP/DOWN market.
type Direction string

const (
	Up   Direction = "UP"
	Down Direction = "DOWN"
)

// Side is the order side submitted to the executor.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderType enumerates the order lifecycles the executor accepts.
type OrderType string

const (
	GTC OrderType = "GTC" // good-til-cancelled, maker-class placements
	FOK OrderType = "FOK" // fill-or-kill, taker-class placements
)

// Series identifies one of the four tradeable market families; it drives the
// size schedule (internal/quote) and the market lifetime (900s or 3600s).
type Series string

const (
	SeriesBTC15m Series = "btc-15m"
	SeriesETH15m Series = "eth-15m"
	SeriesBTC1h  Series = "btc-1h"
	SeriesETH1h  Series = "eth-1h"
)

// MarketType is the coarse duration bucket a Series belongs to.
type MarketType string

const (
	MarketType15m MarketType = "15m"
	MarketType1h  MarketType = "1h"
)

// Lifetime returns the nominal market duration for this type, used by the
// outside-lifetime filter in the strategy engine.
func (mt MarketType) Lifetime() time.Duration {
	if mt == MarketType1h {
		return time.Hour
	}
	return 15 * time.Minute
}

// Market is the immutable identity of one discovered UP/DOWN market.
type Market struct {
	Slug        string
	UpTokenID   string
	DownTokenID string
	EndTime     time.Time
	MarketType  MarketType
	Series      Series
}

// SecondsToEnd returns the signed number of seconds between now and EndTime.
func (m Market) SecondsToEnd(now time.Time) int64 {
	return int64(m.EndTime.Sub(now).Seconds())
}

// TopOfBook is a point-in-time best-bid/best-ask snapshot for one token.
// All price/size fields are decimals — at least 4 fractional digits per the
// source feed, prices in [0.01, 0.99].
type TopOfBook struct {
	BestBid     decimal.Decimal
	BestBidSize decimal.Decimal
	BestAsk     decimal.Decimal
	BestAskSize decimal.Decimal
	UpdatedAt   time.Time
}

const staleAfter = 2 * time.Second

// Stale reports whether this TOB is too old to trust for quoting.
func (t TopOfBook) Stale(now time.Time) bool {
	if t.UpdatedAt.IsZero() {
		return true
	}
	return now.Sub(t.UpdatedAt) > staleAfter
}

// Valid rejects degenerate books (zero prices, crossed or locked market).
func (t TopOfBook) Valid() bool {
	if t.BestBid.IsZero() && t.BestAsk.IsZero() {
		return false
	}
	return t.BestBid.LessThan(t.BestAsk)
}

// Mid returns (bestBid+bestAsk)/2.
func (t TopOfBook) Mid() decimal.Decimal {
	return t.BestBid.Add(t.BestAsk).Div(decimal.NewFromInt(2))
}

// Spread returns bestAsk - bestBid.
func (t TopOfBook) Spread() decimal.Decimal {
	return t.BestAsk.Sub(t.BestBid)
}

// OrderState tracks one resting order. At most one OrderState exists per
// tokenId at any time — enforced by the order manager, not this type.
type OrderState struct {
	OrderID             string
	Market              string // slug
	TokenID             string
	Direction           Direction
	Price               decimal.Decimal
	Size                decimal.Decimal
	PlacedAt            time.Time
	MatchedSize         decimal.Decimal
	LastStatusCheckAt   time.Time
	SecondsToEndAtEntry int64
}

// RemainingSize returns Size - MatchedSize, never negative by invariant.
func (o OrderState) RemainingSize() decimal.Decimal {
	return o.Size.Sub(o.MatchedSize)
}

// Age returns how long this order has been resting.
func (o OrderState) Age(now time.Time) time.Duration {
	return now.Sub(o.PlacedAt)
}

// MarketInventory is the per-market share count for both legs, owned
// exclusively by the strategy engine's single evaluation thread.
type MarketInventory struct {
	UpShares          decimal.Decimal
	DownShares        decimal.Decimal
	LastUpFillAt      time.Time
	LastDownFillAt    time.Time
	LastUpFillPrice   decimal.Decimal
	LastDownFillPrice decimal.Decimal
	LastTopUpAt       time.Time
}

// Imbalance returns the signed difference upShares - downShares.
func (inv MarketInventory) Imbalance() decimal.Decimal {
	return inv.UpShares.Sub(inv.DownShares)
}

// AddUp records a fill on the UP leg.
func (inv *MarketInventory) AddUp(delta decimal.Decimal, now time.Time, price decimal.Decimal) {
	inv.UpShares = inv.UpShares.Add(delta)
	inv.LastUpFillAt = now
	inv.LastUpFillPrice = price
}

// AddDown records a fill on the DOWN leg.
func (inv *MarketInventory) AddDown(delta decimal.Decimal, now time.Time, price decimal.Decimal) {
	inv.DownShares = inv.DownShares.Add(delta)
	inv.LastDownFillAt = now
	inv.LastDownFillPrice = price
}

// Position is one row of the executor's positions snapshot.
type Position struct {
	Asset        string
	Size         decimal.Decimal
	InitialValue decimal.Decimal
	Redeemable   bool
}

// PositionsCache is the last-known external positions snapshot, owned by the
// positions-refresh step that runs on the same single thread as evaluation.
type PositionsCache struct {
	FetchedAt             time.Time
	SharesByTokenID       map[string]decimal.Decimal
	OpenNotionalByTokenID map[string]decimal.Decimal
	TotalOpenNotional     decimal.Decimal
}

// Stale reports whether the cache is older than ttl.
func (p PositionsCache) Stale(now time.Time, ttl time.Duration) bool {
	if p.FetchedAt.IsZero() {
		return true
	}
	return now.Sub(p.FetchedAt) > ttl
}

// UnbookedFills accumulates fill notional observed via status polling that the
// latest PositionsCache doesn't yet reflect, so the exposure accountant never
// double-counts a fill.
type UnbookedFills struct {
	NotionalByTokenID map[string]decimal.Decimal
	Total             decimal.Decimal
}

// NewUnbookedFills returns an empty tracker.
func NewUnbookedFills() *UnbookedFills {
	return &UnbookedFills{NotionalByTokenID: make(map[string]decimal.Decimal)}
}

// Add records delta*price notional against tokenID and the running total.
func (u *UnbookedFills) Add(tokenID string, notional decimal.Decimal) {
	u.NotionalByTokenID[tokenID] = u.NotionalByTokenID[tokenID].Add(notional)
	u.Total = u.Total.Add(notional)
}

// Reset empties the tracker after a successful positions refresh.
func (u *UnbookedFills) Reset() {
	u.NotionalByTokenID = make(map[string]decimal.Decimal)
	u.Total = decimal.Zero
}

// Action is the lifecycle action a published event describes.
type Action string

const (
	ActionPlace  Action = "PLACE"
	ActionCancel Action = "CANCEL"
)

// Reason is the closed set of causes for a PLACE or CANCEL event.
type Reason string

const (
	ReasonQuote               Reason = "QUOTE"
	ReasonReplace             Reason = "REPLACE"
	ReasonTopUp               Reason = "TOP_UP"
	ReasonFastTopUp           Reason = "FAST_TOP_UP"
	ReasonTaker               Reason = "TAKER"
	ReasonBookStale           Reason = "BOOK_STALE"
	ReasonOutsideTimeWindow   Reason = "OUTSIDE_TIME_WINDOW"
	ReasonOutsideLifetime     Reason = "OUTSIDE_LIFETIME"
	ReasonReplacePrice        Reason = "REPLACE_PRICE"
	ReasonReplaceSize         Reason = "REPLACE_SIZE"
	ReasonReplacePriceAndSize Reason = "REPLACE_PRICE_AND_SIZE"
	ReasonStaleTimeout        Reason = "STALE_TIMEOUT"
	ReasonShutdown            Reason = "SHUTDOWN"
	ReasonInsufficientEdge    Reason = "INSUFFICIENT_EDGE"
)

// LifecycleEvent is the authoritative PLACE/CANCEL payload shape (§6).
type LifecycleEvent struct {
	Strategy    string    `json:"strategy"`
	RunID       string    `json:"runId"`
	Action      Action    `json:"action"`
	Reason      Reason    `json:"reason"`
	MarketSlug  string    `json:"marketSlug"`
	MarketType  MarketType `json:"marketType"`
	TokenID     string    `json:"tokenId"`
	Direction   Direction `json:"direction"`
	SecondsToEnd int64    `json:"secondsToEnd"`
	TickSize    decimal.Decimal `json:"tickSize"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	OrderID     string    `json:"orderId,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Size        decimal.Decimal `json:"size"`

	ReplacedOrderID        string          `json:"replacedOrderId,omitempty"`
	ReplacedPrice          decimal.Decimal `json:"replacedPrice,omitempty"`
	ReplacedSize           decimal.Decimal `json:"replacedSize,omitempty"`
	ReplacedOrderAgeMillis int64           `json:"replacedOrderAgeMillis,omitempty"`

	OrderAgeMillis int64      `json:"orderAgeMillis,omitempty"`
	Book           TopOfBook  `json:"book"`
	OtherTokenID   string     `json:"otherTokenId"`
	OtherBook      TopOfBook  `json:"otherBook"`
}

// PlaceResult is the executor's response to PlaceLimit.
type PlaceResult struct {
	OrderID string
	Raw     []byte
}

// OrderStatus is the executor's normalized response to GetOrder. Has* fields
// distinguish "field absent from upstream" from "field present as zero".
type OrderStatus struct {
	Status          string
	MatchedSize     decimal.Decimal
	HasMatchedSize  bool
	RemainingSize   decimal.Decimal
	HasRemainingSize bool
}

// Executor is the HTTP collaborator that signs and submits orders (§6).
// The core never holds credentials; it only calls this contract.
type Executor interface {
	PlaceLimit(tokenID string, side Side, price, size decimal.Decimal, orderType OrderType) (*PlaceResult, error)
	Cancel(orderID string) (bool, error)
	GetOrder(orderID string) (*OrderStatus, error)
	GetTickSize(tokenID string) (decimal.Decimal, error)
	GetPositions(limit, offset int) ([]Position, error)
}

// TOBReader is the read-only view of the TOB cache the engine depends on.
type TOBReader interface {
	GetTopOfBook(tokenID string) (TopOfBook, bool)
}

// TOBSubscriber drives the external feed's subscription set.
type TOBSubscriber interface {
	SetSubscribed(tokenIDs []string)
}

// Publisher is the fire-and-forget event bus collaborator (§6).
type Publisher interface {
	Publish(eventType, key string, payload interface{})
	IsEnabled() bool
}
