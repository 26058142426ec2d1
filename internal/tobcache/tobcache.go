// Package tobcache holds the latest top-of-book snapshot per token, written by
// the WebSocket feed goroutine and read by the single-threaded evaluation
// loop. This is the one piece of the core that still needs a mutex, grounded
// on the teacher's market.Book: a snapshot crosses a goroutine boundary (feed
// reader -> evaluation loop) so a lock protects it, unlike the rest of the
// engine's per-tick state which never leaves the evaluation goroutine.
package tobcache

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"updown-mm/internal/coretypes"
)

// Cache is a concurrency-safe map of tokenId -> latest TopOfBook.
type Cache struct {
	mu sync.RWMutex
	m  map[string]coretypes.TopOfBook
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{m: make(map[string]coretypes.TopOfBook)}
}

// GetTopOfBook implements coretypes.TOBReader.
func (c *Cache) GetTopOfBook(tokenID string) (coretypes.TopOfBook, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tob, ok := c.m[tokenID]
	return tob, ok
}

// Update replaces the cached book for tokenID wholesale (full snapshot events).
func (c *Cache) Update(tokenID string, tob coretypes.TopOfBook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[tokenID] = tob
}

// ApplyBid updates only the bid side of tokenID's book (incremental price-change events).
func (c *Cache) ApplyBid(tokenID string, price, size decimal.Decimal, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tob := c.m[tokenID]
	tob.BestBid = price
	tob.BestBidSize = size
	tob.UpdatedAt = now
	c.m[tokenID] = tob
}

// ApplyAsk updates only the ask side of tokenID's book (incremental price-change events).
func (c *Cache) ApplyAsk(tokenID string, price, size decimal.Decimal, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tob := c.m[tokenID]
	tob.BestAsk = price
	tob.BestAskSize = size
	tob.UpdatedAt = now
	c.m[tokenID] = tob
}

// Remove drops tokenID from the cache, e.g. once its market is delisted.
func (c *Cache) Remove(tokenID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, tokenID)
}

// Len reports how many tokens currently have a cached book.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
