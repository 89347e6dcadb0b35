// Package config defines all configuration for the engine. Config is
// loaded from a layered stack of YAML files — default, run-mode, and
// run-mode secrets — with sensitive fields additionally overridable via
// ARKIN_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly onto the merged
// YAML layers.
type Config struct {
	RunMode     string            `mapstructure:"run_mode"`
	DryRun      bool              `mapstructure:"dry_run"`
	Bus         BusConfig         `mapstructure:"bus"`
	Insights    InsightsConfig    `mapstructure:"insights"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Venue       VenueConfig       `mapstructure:"venue"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Strategy    StrategyConfig    `mapstructure:"strategy"`
	Execution   ExecutionConfig   `mapstructure:"execution"`
	Risk        RiskConfig        `mapstructure:"risk"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Dashboard   DashboardConfig   `mapstructure:"dashboard"`
}

// BusConfig tunes the EventBus.
type BusConfig struct {
	ChannelCapacity int `mapstructure:"channel_capacity"`
	AckWindow       int `mapstructure:"ack_window"`
}

// InsightsConfig tunes the time-series feature store.
type InsightsConfig struct {
	RetentionWindow time.Duration `mapstructure:"retention_window"`
	CandleInterval  time.Duration `mapstructure:"candle_interval"`
}

// LedgerConfig tunes double-entry accounting behavior.
type LedgerConfig struct {
	StrictBalanceCheck bool `mapstructure:"strict_balance_check"`
}

// EngineConfig tunes the ServiceEngine lifecycle.
type EngineConfig struct {
	ShutdownDeadline time.Duration `mapstructure:"shutdown_deadline"`
}

// VenueConfig holds the signing wallet and endpoints for the concrete
// venue gateway adapter.
type VenueConfig struct {
	PrivateKey    string        `mapstructure:"private_key"`
	ChainID       int           `mapstructure:"chain_id"`
	RESTBaseURL   string        `mapstructure:"rest_base_url"`
	WSURL         string        `mapstructure:"ws_url"`
	APIKey        string        `mapstructure:"api_key"`
	APISecret     string        `mapstructure:"api_secret"`
	RateLimitRPS  float64       `mapstructure:"rate_limit_rps"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PersistenceConfig tunes the reference JSON-file persistence adapter.
type PersistenceConfig struct {
	DataDir       string `mapstructure:"data_dir"`
	BatchSize     int    `mapstructure:"batch_size"`
	MaxRetries    int    `mapstructure:"max_retries"`
}

// StrategyConfig tunes the example threshold/crossover strategy.
type StrategyConfig struct {
	FeatureID       string        `mapstructure:"feature_id"`
	LookbackPeriods int           `mapstructure:"lookback_periods"`
	Threshold       float64       `mapstructure:"threshold"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// ExecutionConfig tunes the single-executor order manager.
type ExecutionConfig struct {
	OrderSize            float64 `mapstructure:"order_size"`
	StartingQuoteBalance float64 `mapstructure:"starting_quote_balance"`
}

// RiskConfig sets limits the risk watchdog enforces.
type RiskConfig struct {
	MaxDailyLoss      float64       `mapstructure:"max_daily_loss"`
	CooldownAfterKill time.Duration `mapstructure:"cooldown_after_kill"`
}

// LoggingConfig tunes slog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the observability HTTP+WS server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// envPrefix is the ARKIN_* environment variable prefix used for both
// AutomaticEnv overrides and the explicit sensitive-field overrides below.
const envPrefix = "ARKIN"

// Load reads the layered config stack rooted at dir: `default.yaml`, then
// `<runMode>.yaml`, then `<runMode>_secrets.yaml` (any of which may be
// absent except default.yaml), each merged over the previous, followed by
// ARKIN_* environment variable overrides.
func Load(dir, runMode string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(dir + "/default.yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read default config: %w", err)
	}

	for _, layer := range []string{runMode, runMode + "_secrets"} {
		if layer == "" || layer == "_secrets" {
			continue
		}
		v.SetConfigFile(dir + "/" + layer + ".yaml")
		if err := v.MergeInConfig(); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				continue
			}
			return nil, fmt.Errorf("merge config layer %s: %w", layer, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.RunMode = runMode

	if key := os.Getenv(envPrefix + "_VENUE_PRIVATE_KEY"); key != "" {
		cfg.Venue.PrivateKey = key
	}
	if key := os.Getenv(envPrefix + "_VENUE_API_KEY"); key != "" {
		cfg.Venue.APIKey = key
	}
	if secret := os.Getenv(envPrefix + "_VENUE_API_SECRET"); secret != "" {
		cfg.Venue.APISecret = secret
	}
	if os.Getenv(envPrefix+"_DRY_RUN") == "true" || os.Getenv(envPrefix+"_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills in zero-valued fields with the engine's documented
// defaults, so a minimal default.yaml is sufficient to run.
func applyDefaults(c *Config) {
	if c.Bus.ChannelCapacity == 0 {
		c.Bus.ChannelCapacity = 4096
	}
	if c.Bus.AckWindow == 0 {
		c.Bus.AckWindow = 1
	}
	if c.Insights.RetentionWindow == 0 {
		c.Insights.RetentionWindow = 24 * time.Hour
	}
	if c.Insights.CandleInterval == 0 {
		c.Insights.CandleInterval = time.Minute
	}
	if c.Engine.ShutdownDeadline == 0 {
		c.Engine.ShutdownDeadline = 30 * time.Second
	}
	if c.Persistence.BatchSize == 0 {
		c.Persistence.BatchSize = 4096
	}
	if c.Persistence.MaxRetries == 0 {
		c.Persistence.MaxRetries = 5
	}
	if c.Execution.OrderSize == 0 {
		c.Execution.OrderSize = 0.01
	}
	if c.Execution.StartingQuoteBalance == 0 {
		c.Execution.StartingQuoteBalance = 100000
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Bus.ChannelCapacity <= 0 {
		return fmt.Errorf("bus.channel_capacity must be > 0")
	}
	if c.Bus.AckWindow <= 0 {
		return fmt.Errorf("bus.ack_window must be > 0")
	}
	if c.Insights.RetentionWindow <= 0 {
		return fmt.Errorf("insights.retention_window must be > 0")
	}
	if c.Engine.ShutdownDeadline <= 0 {
		return fmt.Errorf("engine.shutdown_deadline must be > 0")
	}
	if !c.DryRun {
		if c.Venue.PrivateKey == "" {
			return fmt.Errorf("venue.private_key is required when dry_run is false (set ARKIN_VENUE_PRIVATE_KEY)")
		}
		if c.Venue.ChainID == 0 {
			return fmt.Errorf("venue.chain_id is required when dry_run is false")
		}
		if c.Venue.RESTBaseURL == "" {
			return fmt.Errorf("venue.rest_base_url is required when dry_run is false")
		}
	}
	if c.Persistence.DataDir == "" {
		return fmt.Errorf("persistence.data_dir is required")
	}
	return nil
}
