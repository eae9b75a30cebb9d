// Package config defines all configuration for the arbitrage bot.
// Config is loaded entirely from environment variables (no YAML file —
// this bot is a single-instance process meant to run under systemd/docker,
// not a multi-market fleet), via viper's AutomaticEnv binding.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration.
type Config struct {
	DryRun bool

	Ticker        string
	OrderSize     string // decimal string, parsed by the caller
	FillTimeout   time.Duration
	MaxPosition   string

	Maker     MakerConfig
	Taker     TakerConfig
	Threshold ThresholdConfig
	Close     CloseConfig
	Position  PositionConfig
	Logging   LoggingConfig
	DataLog   DataLogConfig
	Metrics   MetricsConfig
}

// MakerConfig configures the venue with resting post-only limit orders
// (EdgeX-shaped: EIP-712 L1 wallet auth deriving an L2 HMAC API key).
type MakerConfig struct {
	BaseURL       string
	WSURL         string
	AccountID     string
	StarkPrivateKey string
	PrivateKey    string // wallet private key for EIP-712 L1 signing
	ChainID       int
}

// TakerConfig configures the venue with aggressive IOC hedges (Lighter-shaped:
// account-index/api-key-index auth, no L1/L2 derivation).
type TakerConfig struct {
	BaseURL        string
	WSURL          string
	AccountIndex   int
	APIKeyIndex    int
	PrivateKey     string
}

// ThresholdConfig tunes the dynamic spread-threshold estimator.
type ThresholdConfig struct {
	UseDynamic      bool
	WindowSize      int
	UpdateInterval  time.Duration
	MinThreshold    string
	MaxThreshold    string
	Percentile      float64
	LongThreshold   string // fixed fallback when UseDynamic is false
	ShortThreshold  string
}

// CloseConfig tunes the time-staged close policy.
type CloseConfig struct {
	CloseThresholdMultiplier string
	MinCloseSpread           string

	Stage1Hours           float64
	Stage1CloseMultiplier string
	Stage1MinSpread       string

	Stage2Hours           float64
	Stage2CloseMultiplier string
	Stage2MinSpread       string

	Stage3Hours           float64
	Stage3CloseMultiplier string
	Stage3MinSpread       string
}

// PositionConfig tunes position resync and naked-position detection.
type PositionConfig struct {
	ResyncInterval   time.Duration
	Tolerance        string
	WarningInterval  time.Duration
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	Level  string
	Format string
}

// DataLogConfig controls CSV trade/BBO logging.
type DataLogConfig struct {
	DataDir       string
	BBOLogInterval time.Duration
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// Load reads configuration entirely from environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bind := []string{
		"DRY_RUN", "TICKER", "ORDER_SIZE", "FILL_TIMEOUT_SEC", "MAX_POSITION",

		"EDGEX_BASE_URL", "EDGEX_WS_URL", "EDGEX_ACCOUNT_ID",
		"EDGEX_STARK_PRIVATE_KEY", "EDGEX_PRIVATE_KEY", "EDGEX_CHAIN_ID",

		"LIGHTER_BASE_URL", "LIGHTER_WS_URL", "LIGHTER_ACCOUNT_INDEX",
		"LIGHTER_API_KEY_INDEX", "LIGHTER_PRIVATE_KEY",

		"USE_DYNAMIC_THRESHOLD", "DYNAMIC_THRESHOLD_WINDOW",
		"DYNAMIC_THRESHOLD_UPDATE_INTERVAL_SEC", "DYNAMIC_THRESHOLD_MIN",
		"DYNAMIC_THRESHOLD_MAX", "DYNAMIC_THRESHOLD_PERCENTILE",
		"LONG_THRESHOLD", "SHORT_THRESHOLD",

		"CLOSE_THRESHOLD_MULTIPLIER", "MIN_CLOSE_SPREAD",
		"TIME_BASED_CLOSE_STAGE1_HOURS", "STAGE1_CLOSE_MULTIPLIER", "STAGE1_MIN_SPREAD",
		"TIME_BASED_CLOSE_STAGE2_HOURS", "STAGE2_CLOSE_MULTIPLIER", "STAGE2_MIN_SPREAD",
		"TIME_BASED_CLOSE_STAGE3_HOURS", "STAGE3_CLOSE_MULTIPLIER", "STAGE3_MIN_SPREAD",

		"POSITION_RESYNC_INTERVAL_SEC", "POSITION_TOLERANCE", "POSITION_WARNING_INTERVAL_SEC",

		"LOG_LEVEL", "LOG_FORMAT",

		"DATA_DIR", "BBO_LOG_INTERVAL_SEC",

		"METRICS_ENABLED", "METRICS_ADDR",
	}
	for _, key := range bind {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	v.SetDefault("FILL_TIMEOUT_SEC", 5)
	v.SetDefault("MAX_POSITION", "0")
	v.SetDefault("EDGEX_BASE_URL", "https://pro.edgex.exchange")
	v.SetDefault("LIGHTER_BASE_URL", "https://mainnet.zklighter.elliot.ai")
	v.SetDefault("USE_DYNAMIC_THRESHOLD", true)
	v.SetDefault("DYNAMIC_THRESHOLD_WINDOW", 1000)
	v.SetDefault("DYNAMIC_THRESHOLD_UPDATE_INTERVAL_SEC", 300)
	v.SetDefault("DYNAMIC_THRESHOLD_MIN", "1.0")
	v.SetDefault("DYNAMIC_THRESHOLD_MAX", "20.0")
	v.SetDefault("DYNAMIC_THRESHOLD_PERCENTILE", 0.70)
	v.SetDefault("LONG_THRESHOLD", "10")
	v.SetDefault("SHORT_THRESHOLD", "10")
	v.SetDefault("CLOSE_THRESHOLD_MULTIPLIER", "0.10")
	v.SetDefault("MIN_CLOSE_SPREAD", "0.15")
	v.SetDefault("TIME_BASED_CLOSE_STAGE1_HOURS", 1.0)
	v.SetDefault("STAGE1_CLOSE_MULTIPLIER", "0.08")
	v.SetDefault("STAGE1_MIN_SPREAD", "0.10")
	v.SetDefault("TIME_BASED_CLOSE_STAGE2_HOURS", 2.0)
	v.SetDefault("STAGE2_CLOSE_MULTIPLIER", "0.05")
	v.SetDefault("STAGE2_MIN_SPREAD", "0")
	v.SetDefault("TIME_BASED_CLOSE_STAGE3_HOURS", 3.0)
	v.SetDefault("STAGE3_CLOSE_MULTIPLIER", "0")
	v.SetDefault("STAGE3_MIN_SPREAD", "0")
	v.SetDefault("POSITION_RESYNC_INTERVAL_SEC", 30)
	v.SetDefault("POSITION_TOLERANCE", "0.001")
	v.SetDefault("POSITION_WARNING_INTERVAL_SEC", 60)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("BBO_LOG_INTERVAL_SEC", 3600)
	v.SetDefault("METRICS_ENABLED", false)
	v.SetDefault("METRICS_ADDR", ":9090")

	cfg := &Config{
		DryRun:      v.GetBool("DRY_RUN"),
		Ticker:      v.GetString("TICKER"),
		OrderSize:   v.GetString("ORDER_SIZE"),
		FillTimeout: time.Duration(v.GetInt("FILL_TIMEOUT_SEC")) * time.Second,
		MaxPosition: v.GetString("MAX_POSITION"),

		Maker: MakerConfig{
			BaseURL:         v.GetString("EDGEX_BASE_URL"),
			WSURL:           v.GetString("EDGEX_WS_URL"),
			AccountID:       v.GetString("EDGEX_ACCOUNT_ID"),
			StarkPrivateKey: v.GetString("EDGEX_STARK_PRIVATE_KEY"),
			PrivateKey:      v.GetString("EDGEX_PRIVATE_KEY"),
			ChainID:         v.GetInt("EDGEX_CHAIN_ID"),
		},
		Taker: TakerConfig{
			BaseURL:      v.GetString("LIGHTER_BASE_URL"),
			WSURL:        v.GetString("LIGHTER_WS_URL"),
			AccountIndex: v.GetInt("LIGHTER_ACCOUNT_INDEX"),
			APIKeyIndex:  v.GetInt("LIGHTER_API_KEY_INDEX"),
			PrivateKey:   v.GetString("LIGHTER_PRIVATE_KEY"),
		},
		Threshold: ThresholdConfig{
			UseDynamic:     v.GetBool("USE_DYNAMIC_THRESHOLD"),
			WindowSize:     v.GetInt("DYNAMIC_THRESHOLD_WINDOW"),
			UpdateInterval: time.Duration(v.GetInt("DYNAMIC_THRESHOLD_UPDATE_INTERVAL_SEC")) * time.Second,
			MinThreshold:   v.GetString("DYNAMIC_THRESHOLD_MIN"),
			MaxThreshold:   v.GetString("DYNAMIC_THRESHOLD_MAX"),
			Percentile:     v.GetFloat64("DYNAMIC_THRESHOLD_PERCENTILE"),
			LongThreshold:  v.GetString("LONG_THRESHOLD"),
			ShortThreshold: v.GetString("SHORT_THRESHOLD"),
		},
		Close: CloseConfig{
			CloseThresholdMultiplier: v.GetString("CLOSE_THRESHOLD_MULTIPLIER"),
			MinCloseSpread:           v.GetString("MIN_CLOSE_SPREAD"),
			Stage1Hours:              v.GetFloat64("TIME_BASED_CLOSE_STAGE1_HOURS"),
			Stage1CloseMultiplier:    v.GetString("STAGE1_CLOSE_MULTIPLIER"),
			Stage1MinSpread:          v.GetString("STAGE1_MIN_SPREAD"),
			Stage2Hours:              v.GetFloat64("TIME_BASED_CLOSE_STAGE2_HOURS"),
			Stage2CloseMultiplier:    v.GetString("STAGE2_CLOSE_MULTIPLIER"),
			Stage2MinSpread:          v.GetString("STAGE2_MIN_SPREAD"),
			Stage3Hours:              v.GetFloat64("TIME_BASED_CLOSE_STAGE3_HOURS"),
			Stage3CloseMultiplier:    v.GetString("STAGE3_CLOSE_MULTIPLIER"),
			Stage3MinSpread:          v.GetString("STAGE3_MIN_SPREAD"),
		},
		Position: PositionConfig{
			ResyncInterval:  time.Duration(v.GetInt("POSITION_RESYNC_INTERVAL_SEC")) * time.Second,
			Tolerance:       v.GetString("POSITION_TOLERANCE"),
			WarningInterval: time.Duration(v.GetInt("POSITION_WARNING_INTERVAL_SEC")) * time.Second,
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		DataLog: DataLogConfig{
			DataDir:        v.GetString("DATA_DIR"),
			BBOLogInterval: time.Duration(v.GetInt("BBO_LOG_INTERVAL_SEC")) * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
			Addr:    v.GetString("METRICS_ADDR"),
		},
	}

	return cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Ticker == "" {
		return fmt.Errorf("ticker is required (set TICKER or --ticker)")
	}
	if c.OrderSize == "" {
		return fmt.Errorf("order_size is required (set ORDER_SIZE or --size)")
	}
	if c.Maker.AccountID == "" {
		return fmt.Errorf("maker.account_id is required (set EDGEX_ACCOUNT_ID)")
	}
	if c.Maker.StarkPrivateKey == "" && c.Maker.PrivateKey == "" {
		return fmt.Errorf("maker private key is required (set EDGEX_STARK_PRIVATE_KEY or EDGEX_PRIVATE_KEY)")
	}
	if c.Taker.PrivateKey == "" {
		return fmt.Errorf("taker private key is required (set LIGHTER_PRIVATE_KEY)")
	}
	if c.Threshold.Percentile <= 0 || c.Threshold.Percentile >= 1 {
		return fmt.Errorf("threshold.percentile must be in (0, 1)")
	}
	if c.Threshold.WindowSize <= 0 {
		return fmt.Errorf("threshold.window_size must be > 0")
	}
	if c.FillTimeout <= 0 {
		return fmt.Errorf("fill_timeout must be > 0")
	}
	return nil
}
