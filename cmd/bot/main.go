// updown-mm is an automated market maker for Polymarket's UP/DOWN
// (binary price-direction) crypto prediction markets.
//
// Architecture:
//
//	main.go                 — entry point: loads config, wires collaborators, waits for SIGINT/SIGTERM
//	internal/discovery      — enumerates the live 15-minute/1-hour UP/DOWN market slugs
//	internal/feed           — WebSocket market-data feed with auto-reconnect, feeds the TOB cache
//	internal/tobcache       — best-bid/best-ask cache read by the evaluation loop
//	internal/quote          — entry-price, skew, size-schedule and edge-gate calculations
//	internal/engine         — single-threaded orchestrator: discovery → quote → order manager tick
//	internal/ordermgr       — order placement, cancellation, status polling, fill detection
//	internal/positions      — periodic on-chain/CLOB position refresh, feeds the exposure accountant
//	internal/exposure       — cheap composite notional-exposure accountant
//	internal/executor       — REST client for the CLOB API (place/cancel/status/tick-size)
//	internal/publisher      — WebSocket hub broadcasting order lifecycle events to the dashboard
//	internal/api            — read-only dashboard: health, snapshot, event stream, metrics
//
// The core only ever buys UP and DOWN shares on the same market — it never
// sells. A filled UP share and a filled DOWN share at a combined cost under
// $1 is a locked-in profit at market resolution; the quote calculator exists
// to find and defend that edge.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"

	"updown-mm/internal/api"
	"updown-mm/internal/config"
	"updown-mm/internal/engine"
	"updown-mm/internal/executor"
	"updown-mm/internal/feed"
	"updown-mm/internal/publisher"
	"updown-mm/internal/tobcache"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("UPDOWN_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	printConfigReport(*cfg)

	exec := executor.New(executor.Config{
		BaseURL:    cfg.Executor.CLOBBaseURL,
		Address:    cfg.Executor.Address,
		ApiKey:     cfg.Executor.ApiKey,
		Secret:     cfg.Executor.Secret,
		Passphrase: cfg.Executor.Passphrase,
		DryRun:     cfg.DryRun,
	}, logger)

	tob := tobcache.New()
	mktFeed := feed.New(cfg.Feed.WSMarketURL, tob, logger)

	hub := publisher.NewHub(cfg.Publisher.Enabled, logger)

	eng := engine.New(*cfg, exec, tob, mktFeed, hub, logger)

	feedCtx, cancelFeed := context.WithCancel(context.Background())
	if cfg.Engine.Enabled {
		go func() {
			if err := mktFeed.Run(feedCtx); err != nil && feedCtx.Err() == nil {
				logger.Error("market feed stopped", "error", err)
			}
		}()
	}

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, eng, *cfg, hub, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	if cfg.Engine.Enabled {
		eng.Start()
	} else {
		logger.Warn("engine.enabled is false — trading loop will not start; dashboard, if enabled, serves a static empty snapshot")
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	logger.Info("updown-mm started",
		"run_id", eng.RunID(),
		"engine_enabled", cfg.Engine.Enabled,
		"bankroll_usd", cfg.Strategy.BankrollUsd,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}

	cancelFeed()
	if cfg.Engine.Enabled {
		eng.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// printConfigReport renders the resolved config as a table on startup, so a
// misconfigured env var override is obvious before the evaluation loop ever
// places an order.
func printConfigReport(cfg config.Config) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Setting", "Value")

	rows := [][]string{
		{"engine_enabled", fmt.Sprintf("%v", cfg.Engine.Enabled)},
		{"dry_run", fmt.Sprintf("%v", cfg.DryRun)},
		{"bankroll_usd", fmt.Sprintf("%.2f", cfg.Strategy.BankrollUsd)},
		{"refresh_millis", fmt.Sprintf("%d", cfg.Engine.RefreshMillis)},
		{"min_seconds_to_end", fmt.Sprintf("%d", cfg.Engine.MinSecondsToEnd)},
		{"max_seconds_to_end", fmt.Sprintf("%d", cfg.Engine.MaxSecondsToEnd)},
		{"gamma_base_url", cfg.Discovery.GammaBaseURL},
		{"clob_base_url", cfg.Executor.CLOBBaseURL},
		{"dashboard_enabled", fmt.Sprintf("%v", cfg.Dashboard.Enabled)},
		{"dashboard_port", fmt.Sprintf("%d", cfg.Dashboard.Port)},
		{"publisher_enabled", fmt.Sprintf("%v", cfg.Publisher.Enabled)},
	}
	for _, row := range rows {
		table.Append(row[0], row[1])
	}
	table.Render()
}
