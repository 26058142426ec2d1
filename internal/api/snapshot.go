// Package api is the read-only dashboard surface around the trading core:
// /health, /api/snapshot, /ws (lifecycle event push), and /metrics. None of
// it is a core responsibility — it only reads snapshot accessors off the
// engine, the same discipline the teacher's dashboard used against
// Engine.GetMarketsSnapshot.
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"updown-mm/internal/config"
	"updown-mm/internal/coretypes"
	"updown-mm/internal/inventory"
)

// MarketSnapshotProvider is the read-only view of the engine the dashboard
// depends on. *engine.Engine satisfies this without any adapter.
type MarketSnapshotProvider interface {
	RunID() string
	Markets() []coretypes.Market
	Inventory() *inventory.Store
	Exposure() decimal.Decimal
	PositionsCache() coretypes.PositionsCache
}

// MarketSnapshot is one market's row in the dashboard snapshot.
type MarketSnapshot struct {
	Slug         string `json:"slug"`
	UpTokenID    string `json:"upTokenId"`
	DownTokenID  string `json:"downTokenId"`
	SecondsToEnd int64  `json:"secondsToEnd"`
	UpShares     string `json:"upShares"`
	DownShares   string `json:"downShares"`
	Imbalance    string `json:"imbalance"`
}

// DashboardSnapshot is the full point-in-time view served by /api/snapshot.
type DashboardSnapshot struct {
	Timestamp          time.Time        `json:"timestamp"`
	RunID              string           `json:"runId"`
	DryRun             bool             `json:"dryRun"`
	Markets            []MarketSnapshot `json:"markets"`
	Exposure           string           `json:"exposure"`
	PositionsFetchedAt time.Time        `json:"positionsFetchedAt"`
	TotalOpenNotional  string           `json:"totalOpenNotional"`
}

// BuildSnapshot aggregates engine state into the dashboard's wire shape.
func BuildSnapshot(provider MarketSnapshotProvider, cfg config.Config) DashboardSnapshot {
	now := time.Now()
	markets := provider.Markets()
	inv := provider.Inventory()

	rows := make([]MarketSnapshot, 0, len(markets))
	for _, m := range markets {
		mi := inv.Get(m.Slug)
		rows = append(rows, MarketSnapshot{
			Slug:         m.Slug,
			UpTokenID:    m.UpTokenID,
			DownTokenID:  m.DownTokenID,
			SecondsToEnd: m.SecondsToEnd(now),
			UpShares:     mi.UpShares.String(),
			DownShares:   mi.DownShares.String(),
			Imbalance:    mi.Imbalance().String(),
		})
	}

	positions := provider.PositionsCache()

	return DashboardSnapshot{
		Timestamp:          now,
		RunID:              provider.RunID(),
		DryRun:             cfg.DryRun,
		Markets:            rows,
		Exposure:           provider.Exposure().String(),
		PositionsFetchedAt: positions.FetchedAt,
		TotalOpenNotional:  positions.TotalOpenNotional.String(),
	}
}
