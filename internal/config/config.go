// Package config defines all configuration for the trading core.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via UPDOWN_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun    bool            `mapstructure:"dry_run"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// EngineConfig tunes the evaluation loop's scheduling and time-window gates.
type EngineConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RefreshMillis     int  `mapstructure:"refresh_millis"`
	MinReplaceMillis  int  `mapstructure:"min_replace_millis"`
	MinSecondsToEnd   int  `mapstructure:"min_seconds_to_end"`
	MaxSecondsToEnd   int  `mapstructure:"max_seconds_to_end"`
	StatusPollSeconds int  `mapstructure:"status_poll_seconds"`
	StaleTimeoutSec   int  `mapstructure:"stale_timeout_seconds"`
}

// StrategyConfig tunes the entry-price, skew, sizing, and top-up rules (§4.2/§4.3).
type StrategyConfig struct {
	QuoteSize                 float64 `mapstructure:"quote_size"`
	QuoteSizeBankrollFraction float64 `mapstructure:"quote_size_bankroll_fraction"`

	BankrollUsd              float64 `mapstructure:"bankroll_usd"`
	MaxOrderBankrollFraction float64 `mapstructure:"max_order_bankroll_fraction"`
	MaxTotalBankrollFraction float64 `mapstructure:"max_total_bankroll_fraction"`
	MaxOrderNotionalUsd      float64 `mapstructure:"max_order_notional_usd"`

	ImproveTicks int `mapstructure:"improve_ticks"`

	CompleteSetMinEdge                   float64 `mapstructure:"complete_set_min_edge"`
	CompleteSetMaxSkewTicks              int     `mapstructure:"complete_set_max_skew_ticks"`
	CompleteSetImbalanceSharesForMaxSkew float64 `mapstructure:"complete_set_imbalance_shares_for_max_skew"`

	CompleteSetTopUpEnabled      bool    `mapstructure:"complete_set_top_up_enabled"`
	CompleteSetTopUpSecondsToEnd int     `mapstructure:"complete_set_top_up_seconds_to_end"`
	CompleteSetTopUpMinShares    float64 `mapstructure:"complete_set_top_up_min_shares"`

	CompleteSetFastTopUpEnabled       bool    `mapstructure:"complete_set_fast_top_up_enabled"`
	FastTopUpMinShares                float64 `mapstructure:"fast_top_up_min_shares"`
	FastTopUpMinSecondsAfterFill      int     `mapstructure:"fast_top_up_min_seconds_after_fill"`
	FastTopUpMaxSecondsAfterFill      int     `mapstructure:"fast_top_up_max_seconds_after_fill"`
	FastTopUpCooldownMillis          int     `mapstructure:"fast_top_up_cooldown_millis"`
	FastTopUpMinEdge                  float64 `mapstructure:"fast_top_up_min_edge"`

	DirectionalBiasEnabled bool    `mapstructure:"directional_bias_enabled"`
	DirectionalBiasFactor  float64 `mapstructure:"directional_bias_factor"`
	ImbalanceThreshold     float64 `mapstructure:"imbalance_threshold"`

	TakerModeEnabled  bool    `mapstructure:"taker_mode_enabled"` // defaults to false; no engine path reads it, see SPEC_FULL.md §9
	TakerModeMaxSpread float64 `mapstructure:"taker_mode_max_spread"`

	Markets []StaticMarketSeed `mapstructure:"markets"`

	PositionsTTLSeconds int `mapstructure:"positions_ttl_seconds"`
}

// StaticMarketSeed is an optional statically-configured market merged with
// the discovered set (§6 "markets" option).
type StaticMarketSeed struct {
	Slug        string `mapstructure:"slug"`
	UpTokenID   string `mapstructure:"up_token_id"`
	DownTokenID string `mapstructure:"down_token_id"`
	EndTime     string `mapstructure:"end_time"` // ISO8601
}

// DiscoveryConfig controls how candidate markets are enumerated and polled (§4.1).
type DiscoveryConfig struct {
	GammaBaseURL   string          `mapstructure:"gamma_base_url"`
	PollInterval   time.Duration   `mapstructure:"poll_interval"`
	SeriesEnabled  map[string]bool `mapstructure:"series_enabled"`
}

// ExecutorConfig points the HTTP executor at the CLOB and carries its L2 credentials.
type ExecutorConfig struct {
	CLOBBaseURL string `mapstructure:"clob_base_url"`
	Address     string `mapstructure:"address"` // POLY_ADDRESS header value for L2-signed requests
	ApiKey      string `mapstructure:"api_key"`
	Secret      string `mapstructure:"secret"`
	Passphrase  string `mapstructure:"passphrase"`
}

// FeedConfig points the TOB feed client at the market WebSocket channel.
type FeedConfig struct {
	WSMarketURL string `mapstructure:"ws_market_url"`
}

// PublisherConfig controls the lifecycle-event WebSocket broadcaster.
type PublisherConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the read-only status dashboard.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: UPDOWN_API_KEY, UPDOWN_API_SECRET, UPDOWN_PASSPHRASE.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("UPDOWN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("UPDOWN_API_KEY"); key != "" {
		cfg.Executor.ApiKey = key
	}
	if secret := os.Getenv("UPDOWN_API_SECRET"); secret != "" {
		cfg.Executor.Secret = secret
	}
	if pass := os.Getenv("UPDOWN_PASSPHRASE"); pass != "" {
		cfg.Executor.Passphrase = pass
	}
	if os.Getenv("UPDOWN_DRY_RUN") == "true" || os.Getenv("UPDOWN_DRY_RUN") == "1" {
		cfg.DryRun = true
	}
	// Fast top-up is on unless the config turns it off explicitly.
	if !v.IsSet("strategy.complete_set_fast_top_up_enabled") {
		cfg.Strategy.CompleteSetFastTopUpEnabled = true
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in the spec-mandated defaults for any zero-valued knob.
func (c *Config) applyDefaults() {
	if c.Engine.RefreshMillis == 0 {
		c.Engine.RefreshMillis = 250
	}
	if c.Engine.MinReplaceMillis == 0 {
		c.Engine.MinReplaceMillis = 1000
	}
	if c.Engine.StatusPollSeconds == 0 {
		c.Engine.StatusPollSeconds = 1
	}
	if c.Engine.StaleTimeoutSec == 0 {
		c.Engine.StaleTimeoutSec = 300
	}
	if c.Strategy.ImproveTicks == 0 {
		c.Strategy.ImproveTicks = 1
	}
	if c.Strategy.CompleteSetMinEdge == 0 {
		c.Strategy.CompleteSetMinEdge = 0.01
	}
	if c.Strategy.CompleteSetImbalanceSharesForMaxSkew == 0 {
		c.Strategy.CompleteSetImbalanceSharesForMaxSkew = 40
	}
	if c.Strategy.CompleteSetTopUpSecondsToEnd == 0 {
		c.Strategy.CompleteSetTopUpSecondsToEnd = 60
	}
	if c.Strategy.CompleteSetTopUpMinShares == 0 {
		c.Strategy.CompleteSetTopUpMinShares = 10
	}
	if c.Strategy.FastTopUpCooldownMillis == 0 {
		c.Strategy.FastTopUpCooldownMillis = 5000
	}
	if c.Strategy.TakerModeMaxSpread == 0 {
		c.Strategy.TakerModeMaxSpread = 0.02
	}
	if c.Strategy.DirectionalBiasFactor == 0 {
		c.Strategy.DirectionalBiasFactor = 1
	}
	if c.Strategy.PositionsTTLSeconds == 0 {
		c.Strategy.PositionsTTLSeconds = 5
	}
	if c.Discovery.PollInterval == 0 {
		c.Discovery.PollInterval = 30 * time.Second
	}
	if c.Discovery.SeriesEnabled == nil {
		c.Discovery.SeriesEnabled = map[string]bool{
			"btc-15m": true, "eth-15m": true, "btc-1h": true, "eth-1h": true,
		}
	}
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Executor.CLOBBaseURL == "" {
		return fmt.Errorf("executor.clob_base_url is required")
	}
	if c.Discovery.GammaBaseURL == "" {
		return fmt.Errorf("discovery.gamma_base_url is required")
	}
	if c.Engine.RefreshMillis < 100 {
		return fmt.Errorf("engine.refresh_millis must be >= 100")
	}
	if c.Strategy.BankrollUsd <= 0 {
		return fmt.Errorf("strategy.bankroll_usd must be > 0")
	}
	if c.Strategy.MaxOrderBankrollFraction <= 0 || c.Strategy.MaxOrderBankrollFraction > 1 {
		return fmt.Errorf("strategy.max_order_bankroll_fraction must be in (0,1]")
	}
	if c.Strategy.MaxTotalBankrollFraction <= 0 || c.Strategy.MaxTotalBankrollFraction > 1 {
		return fmt.Errorf("strategy.max_total_bankroll_fraction must be in (0,1]")
	}
	if c.Strategy.DirectionalBiasFactor < 1 {
		return fmt.Errorf("strategy.directional_bias_factor must be >= 1")
	}
	return nil
}
