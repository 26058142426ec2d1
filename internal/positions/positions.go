// Package positions refreshes the executor's positions snapshot on a TTL and
// exposes it as a coretypes.PositionsCache. Single-writer: only called from
// the evaluation loop, so it carries no lock of its own.
package positions

import (
	"time"

	"github.com/shopspring/decimal"

	"updown-mm/internal/coretypes"
)

const (
	pageSize  = 100
	maxOffset = 2000
)

// Refresher pulls the account's open positions from an Executor.
type Refresher struct {
	executor coretypes.Executor
	ttl      time.Duration
	cache    coretypes.PositionsCache
}

// New builds a Refresher with the given staleness window.
func New(executor coretypes.Executor, ttl time.Duration) *Refresher {
	return &Refresher{executor: executor, ttl: ttl}
}

// Cache returns the last successfully fetched snapshot.
func (r *Refresher) Cache() coretypes.PositionsCache {
	return r.cache
}

// Stale reports whether the cached snapshot is older than the TTL as of now.
func (r *Refresher) Stale(now time.Time) bool {
	return r.cache.Stale(now, r.ttl)
}

// Refresh re-fetches every page of positions and replaces the cache on
// success. On error, the prior cache is left untouched — a transient failure
// should widen staleness, not clear known state. Open notional comes from
// the exchange-reported InitialValue on each position, not a TOB-derived
// estimate — it's the figure the exchange itself uses for this purpose, and
// it stays correct even when a token has no current book.
func (r *Refresher) Refresh(now time.Time) error {
	shares := make(map[string]decimal.Decimal)
	openNotional := make(map[string]decimal.Decimal)
	total := decimal.Zero

	offset := 0
	for {
		page, err := r.executor.GetPositions(pageSize, offset)
		if err != nil {
			return err
		}
		for _, p := range page {
			shares[p.Asset] = shares[p.Asset].Add(p.Size)
			openNotional[p.Asset] = openNotional[p.Asset].Add(p.InitialValue)
			total = total.Add(p.InitialValue)
		}
		if len(page) < pageSize || offset >= maxOffset {
			break
		}
		offset += pageSize
	}

	r.cache = coretypes.PositionsCache{
		FetchedAt:             now,
		SharesByTokenID:       shares,
		OpenNotionalByTokenID: openNotional,
		TotalOpenNotional:     total,
	}
	return nil
}
