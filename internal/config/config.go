// Package config defines all configuration for the quoting engine.
// Config is loaded from a JSON file (path given on the command line) with
// credential fields overridable via QUOTER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"quoter/pkg/types"
)

// Config is the top-level configuration, loaded directly from the JSON
// config file's top-level object.
type Config struct {
	Venue     VenueConfig     `mapstructure:"venue"`
	Symbol    SymbolConfig    `mapstructure:"symbol"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	IsTestnet bool            `mapstructure:"is_testnet"`
}

// VenueConfig holds venue connectivity and credentials. Passphrase is
// required only for the perpetual-swap flavor.
type VenueConfig struct {
	Flavor       types.VenueFlavor `mapstructure:"flavor"`
	RESTBaseURL  string            `mapstructure:"rest_base_url"`
	WSMarketURL  string            `mapstructure:"ws_market_url"`
	WSAccountURL string            `mapstructure:"ws_account_url"`
	APIKey       string            `mapstructure:"api_key"`
	SecretKey    string            `mapstructure:"secret_key"`
	Passphrase   string            `mapstructure:"passphrase"`
	RateLimits   RateLimitConfig   `mapstructure:"rate_limits"`
}

// RateLimitConfig sets the per-category token-bucket burst capacity and
// refill rate this venue publishes for its REST endpoints. Each field pair
// is (burst capacity, tokens refilled per second); zero means "use the
// generic conservative default" and is filled in by Validate.
type RateLimitConfig struct {
	OrderBurst  float64 `mapstructure:"order_burst"`
	OrderRate   float64 `mapstructure:"order_rate"`
	CancelBurst float64 `mapstructure:"cancel_burst"`
	CancelRate  float64 `mapstructure:"cancel_rate"`
	BookBurst   float64 `mapstructure:"book_burst"`
	BookRate    float64 `mapstructure:"book_rate"`
}

// SymbolConfig describes the single instrument this engine instance quotes.
type SymbolConfig struct {
	BaseAsset  string  `mapstructure:"base_asset"`
	QuoteAsset string  `mapstructure:"quote_asset"`
	Symbol     string  `mapstructure:"symbol"`
	OrderQty   float64 `mapstructure:"order_qty"`
	TickSize   float64 `mapstructure:"tick_size"`
}

// StrategyConfig tunes the rolling window capacity, intensity estimation
// window/period, Avellaneda-Stoikov risk aversion, and the volatility
// estimator selection.
type StrategyConfig struct {
	NSpreads         int                  `mapstructure:"n_spreads"`
	EstimateWindowMs uint64               `mapstructure:"estimate_window_ms"`
	PeriodMs         uint64               `mapstructure:"period_ms"`
	SigmaTickPeriod  int                  `mapstructure:"sigma_tick_period"`
	Gamma            float64              `mapstructure:"gamma"`
	SigmaMultiplier  float64              `mapstructure:"sigma_multiplier"`
	VolKind          types.VolatilityKind `mapstructure:"vol_kind"`
	VolWindowT       float64              `mapstructure:"vol_window_t"`
}

// RiskConfig tunes the stop-loss, stop-profit, trailing stop, and the
// stop-loss cool-down sleep.
type RiskConfig struct {
	Stoploss         float64 `mapstructure:"stoploss"`
	StoplossSleepMs  uint64  `mapstructure:"stoploss_sleep_ms"`
	Stopprofit       float64 `mapstructure:"stopprofit"`
	TrailingStop     float64 `mapstructure:"trailing_stop"`
	QMax             float64 `mapstructure:"q_max"`
}

// LoggingConfig controls the slog handler built in cmd/quoter/main.go.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a JSON file with env var overrides for
// credentials. Sensitive fields use env vars: QUOTER_API_KEY,
// QUOTER_SECRET_KEY, QUOTER_PASSPHRASE.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("QUOTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("QUOTER_API_KEY"); key != "" {
		cfg.Venue.APIKey = key
	}
	if secret := os.Getenv("QUOTER_SECRET_KEY"); secret != "" {
		cfg.Venue.SecretKey = secret
	}
	if pass := os.Getenv("QUOTER_PASSPHRASE"); pass != "" {
		cfg.Venue.Passphrase = pass
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Venue.APIKey == "" || c.Venue.SecretKey == "" {
		return fmt.Errorf("venue.api_key and venue.secret_key are required (set QUOTER_API_KEY / QUOTER_SECRET_KEY)")
	}
	if c.Venue.Flavor == types.VenuePerpetualSwap && c.Venue.Passphrase == "" {
		return fmt.Errorf("venue.passphrase is required for perpetual_swap flavor (set QUOTER_PASSPHRASE)")
	}
	if c.Venue.RESTBaseURL == "" {
		return fmt.Errorf("venue.rest_base_url is required")
	}
	if c.Symbol.OrderQty <= 0 {
		return fmt.Errorf("symbol.order_qty must be > 0")
	}
	if c.Symbol.TickSize <= 0 {
		return fmt.Errorf("symbol.tick_size must be > 0")
	}
	if c.Strategy.NSpreads <= 0 {
		return fmt.Errorf("strategy.n_spreads must be > 0")
	}
	if c.Strategy.PeriodMs == 0 {
		return fmt.Errorf("strategy.period_ms must be > 0")
	}
	if c.Strategy.SigmaTickPeriod <= 0 {
		return fmt.Errorf("strategy.sigma_tick_period must be > 0")
	}
	if c.Strategy.Gamma <= 0 {
		return fmt.Errorf("strategy.gamma must be > 0")
	}
	switch c.Strategy.VolKind {
	case types.VolSpread, types.VolClassical, types.VolParkinson, types.VolGarmanKlass:
	case "":
		c.Strategy.VolKind = types.VolSpread
	default:
		return fmt.Errorf("strategy.vol_kind must be one of spread, classical, parkinson, garman_klass")
	}
	if c.Strategy.VolWindowT <= 0 {
		c.Strategy.VolWindowT = 10
	}
	if c.Risk.QMax <= 0 {
		return fmt.Errorf("risk.q_max must be > 0")
	}
	c.Venue.RateLimits.applyDefaults()
	return nil
}

// applyDefaults fills in any zero-valued rate limit with a conservative
// generic default. These are not tied to any specific venue's published
// limits — operators should set venue.rate_limits from the venue's actual
// published REST limits; the defaults exist only so an otherwise-complete
// config doesn't fail validation for omitting them.
func (r *RateLimitConfig) applyDefaults() {
	if r.OrderBurst <= 0 {
		r.OrderBurst = 20
	}
	if r.OrderRate <= 0 {
		r.OrderRate = 5
	}
	if r.CancelBurst <= 0 {
		r.CancelBurst = 20
	}
	if r.CancelRate <= 0 {
		r.CancelRate = 5
	}
	if r.BookBurst <= 0 {
		r.BookBurst = 10
	}
	if r.BookRate <= 0 {
		r.BookRate = 2
	}
}

// TickRound returns the number of fractional digits in tick_size, used to
// quantize quoted prices.
func (c *Config) TickRound() int {
	return tickRoundOf(c.Symbol.TickSize)
}

func tickRoundOf(tickSize float64) int {
	digits := 0
	v := tickSize
	for i := 0; i < 12; i++ {
		if frac := v - float64(int64(v+0.5)); frac < 1e-7 && frac > -1e-7 {
			break
		}
		v *= 10
		digits++
	}
	return digits
}

// refreshPeriod returns strategy.period_ms as a time.Duration.
func (c *Config) refreshPeriod() time.Duration {
	return time.Duration(c.Strategy.PeriodMs) * time.Millisecond
}
