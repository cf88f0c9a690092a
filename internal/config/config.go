// Package config defines all configuration for the weather trader.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via WXT_* environment variables.
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
	API        APIConfig        `mapstructure:"api"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
	Strategy   StrategyConfig   `mapstructure:"strategy"`
	Gates      GatesConfig      `mapstructure:"gates"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Journal    JournalConfig    `mapstructure:"journal"`
	Cities     []CityConfig     `mapstructure:"cities"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// APIConfig holds the exchange and weather API endpoints. The exchange key
// is sensitive and normally supplied via WXT_EXCHANGE_API_KEY.
type APIConfig struct {
	ExchangeBaseURL string `mapstructure:"exchange_base_url"`
	ExchangeWSURL   string `mapstructure:"exchange_ws_url"`
	ExchangeAPIKey  string `mapstructure:"exchange_api_key"`
	WeatherBaseURL  string `mapstructure:"weather_base_url"`
	UserAgent       string `mapstructure:"user_agent"`
}

// RateLimitConfig is the token-bucket shape for one external API.
// Capacity 0 means "one second's worth of traffic" (round(rate)).
type RateLimitConfig struct {
	Rate     float64 `mapstructure:"rate"` // tokens per second
	Capacity int     `mapstructure:"capacity"`
}

// RateLimitsConfig holds per-API rate limits.
type RateLimitsConfig struct {
	Exchange RateLimitConfig `mapstructure:"exchange"`
	Weather  RateLimitConfig `mapstructure:"weather"`
}

// StrategyConfig tunes the daily-high temperature strategy.
//
//   - MinEdge: minimum expected edge as a fraction (0.03 = 3 cents).
//   - MaxUncertainty: forecast uncertainty above this blocks trading
//     (normalized 0–1, where 1 corresponds to 10°F of forecast spread).
//   - DefaultStdDev: forecast std dev in °F used when the provider
//     doesn't publish one.
//   - TransactionCost: round-trip cost in cents charged against the edge.
type StrategyConfig struct {
	MinEdge         float64 `mapstructure:"min_edge"`
	MaxUncertainty  float64 `mapstructure:"max_uncertainty"`
	DefaultStdDev   float64 `mapstructure:"default_std_dev"`
	TransactionCost float64 `mapstructure:"transaction_cost"`
}

// GatesConfig sets the execution-quality limits checked before any signal
// is acted on.
//
//   - SpreadMaxCents: widest acceptable yes bid/ask spread.
//   - MinEdgeAfterCosts: minimum signal edge as a fraction (converted to
//     cents at check time).
//   - MinLiquidityMultiple: required (volume + open interest) as a multiple
//     of the order quantity. 0 falls back to the package default (3.0).
type GatesConfig struct {
	SpreadMaxCents       int     `mapstructure:"spread_max_cents"`
	MinEdgeAfterCosts    float64 `mapstructure:"min_edge_after_costs"`
	MinLiquidityMultiple float64 `mapstructure:"min_liquidity_multiple"`
}

// EngineConfig controls the evaluation loop.
type EngineConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MetricsInterval time.Duration `mapstructure:"metrics_interval"`
	Quantity        int           `mapstructure:"quantity"` // contracts per intended order
	UseWebsocket    bool          `mapstructure:"use_websocket"`
}

// JournalConfig sets where evaluation outcomes are persisted (JSON files).
type JournalConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// CityConfig binds one city to its market event and forecast endpoint.
type CityConfig struct {
	Name        string `mapstructure:"name"`
	EventTicker string `mapstructure:"event_ticker"` // e.g. KXHIGHNY-26AUG23
	ForecastURL string `mapstructure:"forecast_url"` // NWS gridpoint forecast URL
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: WXT_EXCHANGE_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("WXT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if key := os.Getenv("WXT_EXCHANGE_API_KEY"); key != "" {
		cfg.API.ExchangeAPIKey = key
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limits.exchange.rate", 10.0)
	v.SetDefault("rate_limits.weather.rate", 1.0)

	v.SetDefault("strategy.min_edge", 0.03)
	v.SetDefault("strategy.max_uncertainty", 0.30)
	v.SetDefault("strategy.default_std_dev", 3.0)
	v.SetDefault("strategy.transaction_cost", 1.5)

	v.SetDefault("gates.spread_max_cents", 5)
	v.SetDefault("gates.min_edge_after_costs", 0.02)
	v.SetDefault("gates.min_liquidity_multiple", 3.0)

	v.SetDefault("engine.poll_interval", time.Minute)
	v.SetDefault("engine.metrics_interval", 5*time.Minute)
	v.SetDefault("engine.quantity", 100)

	v.SetDefault("journal.data_dir", "data")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.API.ExchangeBaseURL == "" {
		return fmt.Errorf("api.exchange_base_url is required")
	}
	if c.API.ExchangeAPIKey == "" {
		return fmt.Errorf("api.exchange_api_key is required (set WXT_EXCHANGE_API_KEY)")
	}
	if c.Engine.UseWebsocket && c.API.ExchangeWSURL == "" {
		return fmt.Errorf("api.exchange_ws_url is required when engine.use_websocket is true")
	}
	if c.RateLimits.Exchange.Rate <= 0 {
		return fmt.Errorf("rate_limits.exchange.rate must be > 0")
	}
	if c.RateLimits.Weather.Rate <= 0 {
		return fmt.Errorf("rate_limits.weather.rate must be > 0")
	}
	if c.Strategy.DefaultStdDev <= 0 {
		return fmt.Errorf("strategy.default_std_dev must be > 0")
	}
	if c.Strategy.MinEdge < 0 {
		return fmt.Errorf("strategy.min_edge must be >= 0")
	}
	if c.Gates.SpreadMaxCents <= 0 {
		return fmt.Errorf("gates.spread_max_cents must be > 0")
	}
	if c.Engine.Quantity <= 0 {
		return fmt.Errorf("engine.quantity must be > 0")
	}
	if len(c.Cities) == 0 {
		return fmt.Errorf("at least one city is required")
	}
	for i, city := range c.Cities {
		if city.Name == "" {
			return fmt.Errorf("cities[%d].name is required", i)
		}
		if city.EventTicker == "" {
			return fmt.Errorf("cities[%d] (%s): event_ticker is required", i, city.Name)
		}
		if city.ForecastURL == "" {
			return fmt.Errorf("cities[%d] (%s): forecast_url is required", i, city.Name)
		}
	}
	return nil
}
