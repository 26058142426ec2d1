// Package inventory tracks per-market UP/DOWN share counts. Grounded on the
// teacher's strategy.Inventory in shape (OnFill/NetDelta-style accessors) but
// stripped of its RWMutex: per SPEC_FULL.md's single-writer concurrency model,
// only the evaluation goroutine ever touches this store, so no lock is needed.
package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"updown-mm/internal/coretypes"
)

// Store holds one MarketInventory per market slug.
type Store struct {
	byMarket map[string]*coretypes.MarketInventory
}

// New returns an empty inventory store.
func New() *Store {
	return &Store{byMarket: make(map[string]*coretypes.MarketInventory)}
}

// Get returns the inventory for slug, creating an empty one if absent.
func (s *Store) Get(slug string) *coretypes.MarketInventory {
	inv, ok := s.byMarket[slug]
	if !ok {
		inv = &coretypes.MarketInventory{}
		s.byMarket[slug] = inv
	}
	return inv
}

// RecordFill applies a fill delta to the given leg of slug's inventory.
func (s *Store) RecordFill(slug string, dir coretypes.Direction, delta, price decimal.Decimal, now time.Time) {
	inv := s.Get(slug)
	if dir == coretypes.Up {
		inv.AddUp(delta, now, price)
	} else {
		inv.AddDown(delta, now, price)
	}
}

// Remove drops a market's inventory, e.g. once it has settled.
func (s *Store) Remove(slug string) {
	delete(s.byMarket, slug)
}

// Slugs returns every market slug currently tracked.
func (s *Store) Slugs() []string {
	out := make([]string, 0, len(s.byMarket))
	for slug := range s.byMarket {
		out = append(out, slug)
	}
	return out
}
