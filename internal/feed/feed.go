// Package feed maintains the public market WebSocket channel and writes every
// book/price_change event straight into a tobcache.Cache. Adapted from the
// teacher's exchange.WSFeed: same dial/reconnect/ping shape, collapsed to one
// channel (the core never opens an authenticated user feed — fills are
// observed by polling order status, not by subscribing to user events).
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"updown-mm/internal/coretypes"
	"updown-mm/internal/tobcache"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// Feed manages the market channel WebSocket and keeps a tobcache.Cache current.
type Feed struct {
	url   string
	cache *tobcache.Cache

	conn   *websocket.Conn
	connMu sync.Mutex

	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	logger *slog.Logger
}

// New builds a market-channel feed writing into cache.
func New(wsURL string, cache *tobcache.Cache, logger *slog.Logger) *Feed {
	return &Feed{
		url:        wsURL,
		cache:      cache,
		subscribed: make(map[string]bool),
		logger:     logger.With("component", "feed"),
	}
}

// SetSubscribed implements coretypes.TOBSubscriber: replaces the full
// subscription set and, if connected, pushes the delta to the server.
func (f *Feed) SetSubscribed(tokenIDs []string) {
	want := make(map[string]bool, len(tokenIDs))
	for _, id := range tokenIDs {
		want[id] = true
	}

	f.subscribedMu.Lock()
	var toAdd, toRemove []string
	for id := range want {
		if !f.subscribed[id] {
			toAdd = append(toAdd, id)
		}
	}
	for id := range f.subscribed {
		if !want[id] {
			toRemove = append(toRemove, id)
		}
	}
	f.subscribed = want
	f.subscribedMu.Unlock()

	if len(toAdd) > 0 {
		if err := f.writeJSON(subscribeMsg{Operation: "subscribe", AssetIDs: toAdd}); err != nil {
			f.logger.Warn("subscribe failed", "error", err, "count", len(toAdd))
		}
	}
	if len(toRemove) > 0 {
		if err := f.writeJSON(subscribeMsg{Operation: "unsubscribe", AssetIDs: toRemove}); err != nil {
			f.logger.Warn("unsubscribe failed", "error", err, "count", len(toRemove))
		}
	}
}

// Run connects and maintains the WebSocket connection with exponential
// backoff reconnect. Blocks until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("feed disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.sendInitialSubscription(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("feed connected")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f.dispatchMessage(msg)
	}
}

func (f *Feed) sendInitialSubscription() error {
	f.subscribedMu.RLock()
	ids := make([]string, 0, len(f.subscribed))
	for id := range f.subscribed {
		ids = append(ids, id)
	}
	f.subscribedMu.RUnlock()

	return f.writeJSON(subscribeMsg{Type: "market", AssetIDs: ids})
}

func (f *Feed) dispatchMessage(data []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Debug("ignoring non-json ws message")
		return
	}

	now := time.Now()

	switch envelope.EventType {
	case "book":
		var evt bookEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal book event", "error", err)
			return
		}
		f.applyBookSnapshot(evt, now)

	case "price_change":
		var evt priceChangeEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal price_change event", "error", err)
			return
		}
		f.applyPriceChange(evt, now)

	case "last_trade_price", "tick_size_change", "best_bid_ask", "new_market", "market_resolved":
		f.logger.Debug("ignoring event", "type", envelope.EventType)

	default:
		f.logger.Debug("unknown ws event type", "type", envelope.EventType)
	}
}

func (f *Feed) applyBookSnapshot(evt bookEvent, now time.Time) {
	var tob coretypes.TopOfBook
	tob.UpdatedAt = now
	for _, lvl := range evt.Bids {
		p, err1 := decimal.NewFromString(lvl.Price)
		s, err2 := decimal.NewFromString(lvl.Size)
		if err1 != nil || err2 != nil {
			continue
		}
		if p.GreaterThan(tob.BestBid) {
			tob.BestBid = p
			tob.BestBidSize = s
		}
	}
	for _, lvl := range evt.Asks {
		p, err1 := decimal.NewFromString(lvl.Price)
		s, err2 := decimal.NewFromString(lvl.Size)
		if err1 != nil || err2 != nil {
			continue
		}
		if tob.BestAsk.IsZero() || p.LessThan(tob.BestAsk) {
			tob.BestAsk = p
			tob.BestAskSize = s
		}
	}
	f.cache.Update(evt.AssetID, tob)
}

func (f *Feed) applyPriceChange(evt priceChangeEvent, now time.Time) {
	for _, c := range evt.Changes {
		price, err1 := decimal.NewFromString(c.Price)
		size, err2 := decimal.NewFromString(c.Size)
		if err1 != nil || err2 != nil {
			continue
		}
		if c.Side == "BUY" {
			f.cache.ApplyBid(evt.AssetID, price, size, now)
		} else {
			f.cache.ApplyAsk(evt.AssetID, price, size, now)
		}
	}
}

func (f *Feed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage([]byte("PING")); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *Feed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("feed not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *Feed) writeMessage(data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("feed not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(websocket.TextMessage, data)
}

type subscribeMsg struct {
	Type      string   `json:"type,omitempty"`
	Operation string   `json:"operation,omitempty"`
	AssetIDs  []string `json:"assets_ids"`
}

type level struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type bookEvent struct {
	EventType string  `json:"event_type"`
	AssetID   string  `json:"asset_id"`
	Bids      []level `json:"bids"`
	Asks      []level `json:"asks"`
}

type priceChangeEvent struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Changes   []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
		Side  string `json:"side"`
	} `json:"changes"`
}
