package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"updown-mm/internal/config"
	"updown-mm/internal/coretypes"
	"updown-mm/internal/decimalutil"
	"updown-mm/internal/discovery"
	"updown-mm/internal/exposure"
	"updown-mm/internal/inventory"
	"updown-mm/internal/ordermgr"
	"updown-mm/internal/positions"
	"updown-mm/internal/quote"
)

// Engine is the single evaluation thread that binds discovery, the quote
// calculator, the order manager, and the exposure accountant together. No
// other goroutine ever mutates the order map, the inventory store, or the
// unbooked-fill counters — only the TOB cache (written by the feed
// goroutine) needs a lock, and that lock lives in internal/tobcache.
type Engine struct {
	cfg config.Config

	discovery *discovery.Client
	tob       coretypes.TOBReader
	tobSub    coretypes.TOBSubscriber
	executor  coretypes.Executor
	orders    *ordermgr.Manager
	inv       *inventory.Store
	positions *positions.Refresher
	exposure  *exposure.Accountant
	logger    *slog.Logger
	runID     string

	markets   map[string]coretypes.Market
	tickSizes map[string]tickSizeEntry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type tickSizeEntry struct {
	size      decimal.Decimal
	fetchedAt time.Time
}

const tickSizeTTL = 10 * time.Minute

// New wires one Engine from its collaborators. publisher may be disabled
// (IsEnabled() == false); the engine never special-cases that, it just
// calls through — the publisher implementation owns the no-op.
func New(cfg config.Config, executor coretypes.Executor, tob coretypes.TOBReader, tobSub coretypes.TOBSubscriber, publisher coretypes.Publisher, logger *slog.Logger) *Engine {
	runID := uuid.New().String()
	logger = logger.With("component", "engine", "runId", runID)

	inv := inventory.New()
	orders := ordermgr.New(executor, publisher, inv, "updown-mm", runID, time.Duration(cfg.Engine.MinReplaceMillis)*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg:       cfg,
		discovery: discovery.NewClient(cfg.Discovery.GammaBaseURL),
		tob:       tob,
		tobSub:    tobSub,
		executor:  executor,
		orders:    orders,
		inv:       inv,
		positions: positions.New(executor, time.Duration(cfg.Strategy.PositionsTTLSeconds)*time.Second),
		exposure:  exposure.New(),
		logger:    logger,
		runID:     runID,
		markets:   make(map[string]coretypes.Market),
		tickSizes: make(map[string]tickSizeEntry),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the evaluation goroutine.
func (e *Engine) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run()
	}()
}

// Stop halts the scheduler and waits for the evaluation goroutine to exit,
// then cancels the resting orders on both legs of every active market
// (reason SHUTDOWN).
func (e *Engine) Stop() {
	e.logger.Info("shutting down")
	e.cancel()
	e.wg.Wait()

	for _, m := range e.markets {
		e.orders.CancelLeg(m.UpTokenID, coretypes.ReasonShutdown, time.Now())
		e.orders.CancelLeg(m.DownTokenID, coretypes.ReasonShutdown, time.Now())
	}
	e.logger.Info("shutdown complete")
}

func (e *Engine) run() {
	if err := e.runDiscovery(); err != nil {
		e.logger.Warn("initial discovery failed", "error", err)
	}

	initialDelay := time.NewTimer(time.Second)
	defer initialDelay.Stop()
	select {
	case <-initialDelay.C:
	case <-e.ctx.Done():
		return
	}

	evalPeriod := time.Duration(e.cfg.Engine.RefreshMillis) * time.Millisecond
	if evalPeriod < 100*time.Millisecond {
		evalPeriod = 100 * time.Millisecond
	}
	evalTicker := time.NewTicker(evalPeriod)
	defer evalTicker.Stop()

	discoveryTicker := time.NewTicker(e.cfg.Discovery.PollInterval)
	defer discoveryTicker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case now := <-evalTicker.C:
			e.tick(now)
		case <-discoveryTicker.C:
			if err := e.runDiscovery(); err != nil {
				e.logger.Warn("discovery refresh failed", "error", err)
			}
		}
	}
}

// runDiscovery refreshes the active market set and recomputes the TOB
// subscription set as the union of every active token (§4.1).
func (e *Engine) runDiscovery() error {
	resolved, err := e.discovery.Resolve(e.ctx, time.Now(), e.cfg.Discovery.SeriesEnabled)
	if err != nil {
		return fmt.Errorf("resolve candidates: %w", err)
	}

	merged := make(map[string]coretypes.Market, len(resolved)+len(e.cfg.Strategy.Markets))
	for _, m := range resolved {
		merged[m.Slug] = m
	}
	for _, seed := range e.cfg.Strategy.Markets {
		if m, ok := staticMarket(seed); ok {
			merged[m.Slug] = m
		}
	}

	now := time.Now()
	for slug, old := range e.markets {
		if _, ok := merged[slug]; ok {
			continue
		}
		e.orders.CancelLeg(old.UpTokenID, coretypes.ReasonOutsideLifetime, now)
		e.orders.CancelLeg(old.DownTokenID, coretypes.ReasonOutsideLifetime, now)
		e.inv.Remove(slug)
	}

	e.markets = merged
	marketsActive.Set(float64(len(e.markets)))
	discoverySetSize.Set(float64(len(e.markets)))

	tokens := make([]string, 0, len(e.markets)*2)
	for _, m := range e.markets {
		tokens = append(tokens, m.UpTokenID, m.DownTokenID)
	}
	e.tobSub.SetSubscribed(tokens)
	return nil
}

// tick runs one full evaluation pass: a positions-cache refresh gate, every
// active market's evaluation, and a final order-status sweep.
func (e *Engine) tick(now time.Time) {
	ticksTotal.Inc()

	if e.positions.Stale(now) {
		if err := e.positions.Refresh(now); err != nil {
			e.logger.Warn("positions refresh failed", "error", err)
			evaluationErrors.WithLabelValues("_positions").Inc()
		} else {
			e.exposure.ResetUnbooked()
		}
	}

	for _, market := range e.markets {
		e.evaluateMarket(market, now)
	}

	for _, fill := range e.orders.PollDue(now) {
		e.exposure.RecordFill(fill.TokenID, fill.Notional)
		fillsTotal.WithLabelValues(string(e.directionForToken(fill.TokenID))).Inc()
	}
}

func (e *Engine) directionForToken(tokenID string) coretypes.Direction {
	for _, m := range e.markets {
		if m.UpTokenID == tokenID {
			return coretypes.Up
		}
		if m.DownTokenID == tokenID {
			return coretypes.Down
		}
	}
	return ""
}

// evaluateMarket runs steps 2-9 of §4.3 for a single market.
func (e *Engine) evaluateMarket(market coretypes.Market, now time.Time) {
	secondsToEnd := market.SecondsToEnd(now)
	lifetime := int64(market.MarketType.Lifetime().Seconds())
	if secondsToEnd < 0 || secondsToEnd > lifetime {
		e.cancelBoth(market, coretypes.ReasonOutsideLifetime, now)
		return
	}
	if int(secondsToEnd) < e.cfg.Engine.MinSecondsToEnd ||
		(e.cfg.Engine.MaxSecondsToEnd > 0 && int(secondsToEnd) > e.cfg.Engine.MaxSecondsToEnd) {
		e.cancelBoth(market, coretypes.ReasonOutsideTimeWindow, now)
		return
	}

	upBook, upOK := e.tob.GetTopOfBook(market.UpTokenID)
	downBook, downOK := e.tob.GetTopOfBook(market.DownTokenID)
	if !upOK || !downOK || upBook.Stale(now) || downBook.Stale(now) || !upBook.Valid() || !downBook.Valid() {
		e.cancelBoth(market, coretypes.ReasonBookStale, now)
		return
	}

	inv := e.inv.Get(market.Slug)
	imbalance := inv.Imbalance()
	refShares := decimalFromFloat(e.cfg.Strategy.CompleteSetImbalanceSharesForMaxSkew)
	skewUp, skewDown := quote.Skew(imbalance, refShares, e.cfg.Strategy.CompleteSetMaxSkewTicks)

	upTick := e.tickSizeFor(market.UpTokenID, now)
	downTick := e.tickSizeFor(market.DownTokenID, now)

	e.maybeTopUp(market, inv, upBook, downBook, secondsToEnd, now)

	upPrice, upOK2 := quote.EntryPrice(upBook, upTick, e.cfg.Strategy.ImproveTicks, skewUp)
	downPrice, downOK2 := quote.EntryPrice(downBook, downTick, e.cfg.Strategy.ImproveTicks, skewDown)
	if !upOK2 || !downOK2 {
		e.cancelBoth(market, coretypes.ReasonInsufficientEdge, now)
		return
	}

	edge := quote.CompleteSetEdge(upPrice, downPrice)
	if edge.LessThan(decimalFromFloat(e.cfg.Strategy.CompleteSetMinEdge)) {
		e.cancelBoth(market, coretypes.ReasonInsufficientEdge, now)
		return
	}

	upFactor, downFactor := e.directionalFactors(upBook, downBook)

	baseSize, scheduled := quote.ScheduledSize(market.Series, secondsToEnd)
	if !scheduled {
		baseSize = e.fallbackSize(upPrice)
	}

	exposureNow := e.currentExposure()
	params := e.capParams()

	upSize, upSizeOK := quote.ApplyCaps(baseSize, upPrice, exposureNow, params, upFactor)
	if !upSizeOK {
		e.orders.CancelLeg(market.UpTokenID, coretypes.ReasonInsufficientEdge, now)
	} else {
		e.orders.Reconcile(ordermgr.Target{
			TokenID: market.UpTokenID, OtherTokenID: market.DownTokenID,
			Market: market, Direction: coretypes.Up, Price: upPrice, Size: upSize,
		}, coretypes.ReasonQuote, market.DownTokenID, upBook, downBook, now)
	}

	downSize, downSizeOK := quote.ApplyCaps(baseSize, downPrice, exposureNow, params, downFactor)
	if !downSizeOK {
		e.orders.CancelLeg(market.DownTokenID, coretypes.ReasonInsufficientEdge, now)
	} else {
		e.orders.Reconcile(ordermgr.Target{
			TokenID: market.DownTokenID, OtherTokenID: market.UpTokenID,
			Market: market, Direction: coretypes.Down, Price: downPrice, Size: downSize,
		}, coretypes.ReasonQuote, market.UpTokenID, downBook, upBook, now)
	}
}

// maybeTopUp implements §4.3 steps 5-6: an immediate FOK buy on the lagging
// leg to rebalance a complete-set imbalance, fast top-up taking precedence
// over the slow (time-to-end-driven) variant.
func (e *Engine) maybeTopUp(market coretypes.Market, inv *coretypes.MarketInventory, upBook, downBook coretypes.TopOfBook, secondsToEnd int64, now time.Time) {
	imbalance := inv.Imbalance()
	if imbalance.IsZero() {
		return
	}
	absImbalance := imbalance.Abs()

	var lagDir coretypes.Direction
	var lagBook, leadBook coretypes.TopOfBook
	var lagTokenID, leadTokenID string
	var lastLeadFillAt time.Time
	var lastLeadFillPrice decimal.Decimal
	if imbalance.GreaterThan(decimal.Zero) {
		lagDir = coretypes.Down
		lagBook, leadBook = downBook, upBook
		lagTokenID, leadTokenID = market.DownTokenID, market.UpTokenID
		lastLeadFillAt, lastLeadFillPrice = inv.LastUpFillAt, inv.LastUpFillPrice
	} else {
		lagDir = coretypes.Up
		lagBook, leadBook = upBook, downBook
		lagTokenID, leadTokenID = market.UpTokenID, market.DownTokenID
		lastLeadFillAt, lastLeadFillPrice = inv.LastDownFillAt, inv.LastDownFillPrice
	}

	s := e.cfg.Strategy

	fast := s.CompleteSetFastTopUpEnabled &&
		absImbalance.GreaterThanOrEqual(decimalFromFloat(s.FastTopUpMinShares)) &&
		!lastLeadFillAt.IsZero() &&
		withinSecondsWindow(now.Sub(lastLeadFillAt), s.FastTopUpMinSecondsAfterFill, s.FastTopUpMaxSecondsAfterFill) &&
		now.Sub(inv.LastTopUpAt) >= time.Duration(s.FastTopUpCooldownMillis)*time.Millisecond

	slow := !fast && s.CompleteSetTopUpEnabled &&
		secondsToEnd <= int64(s.CompleteSetTopUpSecondsToEnd) &&
		absImbalance.GreaterThanOrEqual(decimalFromFloat(s.CompleteSetTopUpMinShares))

	if !fast && !slow {
		return
	}

	price, ok := quote.TopUpPrice(lagBook, decimalFromFloat(s.TakerModeMaxSpread))
	if !ok {
		if fast {
			inv.LastTopUpAt = now
		}
		return
	}

	if fast {
		edge := quote.HedgedEdge(lastLeadFillPrice, price)
		if edge.LessThan(decimalFromFloat(s.FastTopUpMinEdge)) {
			inv.LastTopUpAt = now
			return
		}
	}

	size, capOK := quote.ApplyCaps(absImbalance, price, e.currentExposure(), e.capParams(), decimal.NewFromInt(1))
	inv.LastTopUpAt = now // mark even on failure, to avoid spam (§4.3 step 5)
	if !capOK {
		return
	}

	reason := coretypes.ReasonTopUp
	if fast {
		reason = coretypes.ReasonFastTopUp
	}

	target := ordermgr.Target{
		TokenID: lagTokenID, OtherTokenID: leadTokenID,
		Market: market, Direction: lagDir, Price: price, Size: size,
	}
	if _, err := e.orders.PlaceTaker(target, reason, lagBook, leadBook, now); err != nil {
		e.logger.Warn("top-up placement failed", "market", market.Slug, "error", err)
	}
}

func (e *Engine) directionalFactors(upBook, downBook coretypes.TopOfBook) (decimal.Decimal, decimal.Decimal) {
	one := decimal.NewFromInt(1)
	if !e.cfg.Strategy.DirectionalBiasEnabled {
		return one, one
	}
	total := upBook.BestBidSize.Add(downBook.BestBidSize)
	if total.IsZero() {
		return one, one
	}
	bookImbalance := decimalutil.SafeDiv(upBook.BestBidSize.Sub(downBook.BestBidSize), total, decimal.Zero)
	if bookImbalance.Abs().LessThan(decimalFromFloat(e.cfg.Strategy.ImbalanceThreshold)) {
		return one, one
	}
	factor := decimalFromFloat(e.cfg.Strategy.DirectionalBiasFactor)
	inverse := decimalutil.SafeDiv(one, factor, one)
	if bookImbalance.GreaterThan(decimal.Zero) {
		return factor, inverse
	}
	return inverse, factor
}

func (e *Engine) fallbackSize(price decimal.Decimal) decimal.Decimal {
	s := e.cfg.Strategy
	if s.QuoteSize > 0 {
		return decimalFromFloat(s.QuoteSize)
	}
	if s.QuoteSizeBankrollFraction > 0 && price.GreaterThan(decimal.Zero) {
		notional := decimalFromFloat(s.BankrollUsd).Mul(decimalFromFloat(s.QuoteSizeBankrollFraction))
		return decimalutil.SafeDiv(notional, price, decimal.Zero)
	}
	return decimal.Zero
}

func (e *Engine) capParams() quote.Params {
	s := e.cfg.Strategy
	return quote.Params{
		BankrollUsd:              decimalFromFloat(s.BankrollUsd),
		MaxOrderBankrollFraction: decimalFromFloat(s.MaxOrderBankrollFraction),
		MaxTotalBankrollFraction: decimalFromFloat(s.MaxTotalBankrollFraction),
		MaxOrderNotionalUsd:      decimalFromFloat(s.MaxOrderNotionalUsd),
	}
}

func (e *Engine) currentExposure() decimal.Decimal {
	return e.exposure.Total(e.orders.OpenNotional(), e.positions.Cache())
}

// tickSizeFor returns the cached tick size for tokenID, refreshing from the
// executor when the cache entry is absent or older than 10 minutes.
func (e *Engine) tickSizeFor(tokenID string, now time.Time) decimal.Decimal {
	if entry, ok := e.tickSizes[tokenID]; ok && now.Sub(entry.fetchedAt) < tickSizeTTL {
		return entry.size
	}
	tick, err := e.executor.GetTickSize(tokenID)
	if err != nil {
		e.logger.Warn("tick size fetch failed, using default", "token", tokenID, "error", err)
		tick = decimal.RequireFromString("0.01")
	}
	e.tickSizes[tokenID] = tickSizeEntry{size: tick, fetchedAt: now}
	return tick
}

func (e *Engine) cancelBoth(market coretypes.Market, reason coretypes.Reason, now time.Time) {
	e.orders.CancelLeg(market.UpTokenID, reason, now)
	e.orders.CancelLeg(market.DownTokenID, reason, now)
}

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func withinSecondsWindow(d time.Duration, minSec, maxSec int) bool {
	sec := d.Seconds()
	return sec >= float64(minSec) && sec <= float64(maxSec)
}

func staticMarket(seed config.StaticMarketSeed) (coretypes.Market, bool) {
	if seed.Slug == "" || seed.UpTokenID == "" || seed.DownTokenID == "" {
		return coretypes.Market{}, false
	}
	end, err := time.Parse(time.RFC3339, seed.EndTime)
	if err != nil {
		return coretypes.Market{}, false
	}
	series, marketType := seriesFromSlug(seed.Slug)
	return coretypes.Market{
		Slug:        seed.Slug,
		UpTokenID:   seed.UpTokenID,
		DownTokenID: seed.DownTokenID,
		EndTime:     end,
		MarketType:  marketType,
		Series:      series,
	}, true
}

func seriesFromSlug(slug string) (coretypes.Series, coretypes.MarketType) {
	lower := strings.ToLower(slug)
	switch {
	case strings.Contains(lower, "btc") && strings.Contains(lower, "15m"):
		return coretypes.SeriesBTC15m, coretypes.MarketType15m
	case strings.Contains(lower, "eth") && strings.Contains(lower, "15m"):
		return coretypes.SeriesETH15m, coretypes.MarketType15m
	case strings.Contains(lower, "bitcoin"):
		return coretypes.SeriesBTC1h, coretypes.MarketType1h
	case strings.Contains(lower, "ethereum"):
		return coretypes.SeriesETH1h, coretypes.MarketType1h
	default:
		return coretypes.SeriesBTC15m, coretypes.MarketType15m
	}
}

// RunID exposes the minted run identifier, for the dashboard snapshot.
func (e *Engine) RunID() string { return e.runID }

// Markets returns a snapshot of the active market set, for the dashboard.
func (e *Engine) Markets() []coretypes.Market {
	out := make([]coretypes.Market, 0, len(e.markets))
	for _, m := range e.markets {
		out = append(out, m)
	}
	return out
}

// Inventory exposes the inventory store, for the dashboard snapshot.
func (e *Engine) Inventory() *inventory.Store { return e.inv }

// Exposure returns the current composite exposure, for the dashboard snapshot.
func (e *Engine) Exposure() decimal.Decimal { return e.currentExposure() }

// PositionsCache returns the last-known positions snapshot, for the dashboard.
func (e *Engine) PositionsCache() coretypes.PositionsCache { return e.positions.Cache() }
