// Package engine is the orchestrator of the trading core: a single-threaded
// evaluation loop that binds discovery, the quote calculator, the order
// manager, and the exposure accountant together (§4.3). Grounded on the
// teacher's internal/engine/engine.go for lifecycle shape (New/Start/Stop,
// slog component logger, signal-driven shutdown) but not its concurrency
// model — the teacher runs one goroutine per market under mutex-protected
// structs; this core runs everything on one goroutine by mandate, so the
// order map, inventory store, and unbooked-fill counters need no locking.
package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_ticks_total",
		Help: "Evaluation loop ticks processed.",
	})

	marketsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engine_markets_active",
		Help: "Number of markets currently in the active set.",
	})

	evaluationErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_evaluation_errors_total",
		Help: "Evaluation errors by label; failed positions refreshes are counted under _positions.",
	}, []string{"market"})

	fillsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fills_total",
		Help: "Fills observed via status polling, by direction.",
	}, []string{"direction"})

	discoverySetSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "discovery_active_markets",
		Help: "Number of markets in the most recent discovery resolution.",
	})
)

func init() {
	prometheus.MustRegister(ticksTotal, marketsActive, evaluationErrors)
	prometheus.MustRegister(fillsTotal, discoverySetSize)
}
