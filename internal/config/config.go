// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Attio      AttioConfig      `yaml:"attio" mapstructure:"attio"`
	Clay       ClayConfig       `yaml:"clay" mapstructure:"clay"`
	Sync       SyncConfig       `yaml:"sync" mapstructure:"sync"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AttioConfig holds CRM API credentials and settings.
type AttioConfig struct {
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	MappingPath string `yaml:"mapping_path" mapstructure:"mapping_path"`
}

// ClayConfig holds enrichment provider credentials and the target table.
type ClayConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	TableID string `yaml:"table_id" mapstructure:"table_id"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SyncConfig configures the reconciliation tick.
type SyncConfig struct {
	// BatchSize caps sends per run. The pull-back pass has no cap.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
	// RateLimitSeconds is the courtesy delay between consecutive sends.
	RateLimitSeconds float64 `yaml:"rate_limit_seconds" mapstructure:"rate_limit_seconds"`
	// TimeoutHours is the age after which a sent record is marked failed.
	TimeoutHours float64 `yaml:"timeout_hours" mapstructure:"timeout_hours"`
	// PollConcurrency bounds concurrent provider polls during pull-back.
	PollConcurrency int `yaml:"poll_concurrency" mapstructure:"poll_concurrency"`
}

// StoreConfig configures the run-history database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RetryConfig tunes HTTP retry behavior for both API clients.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig tunes the provider-submit circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// MonitoringConfig configures run-health alerting.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	LookbackHours        int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// ServerConfig configures the trigger/health server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("attio.base_url", "https://api.attio.com/v2")
	v.SetDefault("clay.base_url", "https://api.clay.com/v1")
	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("sync.rate_limit_seconds", 0.5)
	v.SetDefault("sync.timeout_hours", 2.0)
	v.SetDefault("sync.poll_concurrency", 4)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadsync.db")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that credentials required to touch any record are present.
// A failure here aborts the run before the first CRM call.
func (c *Config) Validate() error {
	var missing []string
	if c.Attio.APIKey == "" {
		missing = append(missing, "attio.api_key")
	}
	if c.Clay.APIKey == "" {
		missing = append(missing, "clay.api_key")
	}
	if c.Clay.TableID == "" {
		missing = append(missing, "clay.table_id")
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}

	if c.Sync.BatchSize <= 0 {
		return eris.Errorf("config: sync.batch_size must be positive, got %d", c.Sync.BatchSize)
	}
	if c.Sync.TimeoutHours <= 0 {
		return eris.Errorf("config: sync.timeout_hours must be positive, got %g", c.Sync.TimeoutHours)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
