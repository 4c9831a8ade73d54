package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"remit-rails/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Fees       FeeConfig        `mapstructure:"fees"`
	Compliance ComplianceConfig `mapstructure:"compliance"`
	Rates      RatesConfig      `mapstructure:"rates"`
	Sampler    SamplerConfig    `mapstructure:"sampler"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Ethereum   EthereumConfig   `mapstructure:"ethereum"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// FeeConfig governs quote pricing.
type FeeConfig struct {
	PlatformFeePct      float64       `mapstructure:"platform_fee_pct"`
	NetworkFee          float64       `mapstructure:"network_fee"`
	MaxAmount           float64       `mapstructure:"max_amount"`
	ComplianceThreshold float64       `mapstructure:"compliance_threshold"`
	QuoteTTL            time.Duration `mapstructure:"quote_ttl"`
}

// ComplianceConfig weights the two screening inputs.
type ComplianceConfig struct {
	IdentityWeight float64 `mapstructure:"identity_weight"`
	RiskWeight     float64 `mapstructure:"risk_weight"`
}

// RatesConfig covers corridor rate sourcing.
type RatesConfig struct {
	Static         map[string]float64 `mapstructure:"static"`
	BaseURL        string             `mapstructure:"base_url"`
	RequestTimeout time.Duration      `mapstructure:"request_timeout"`
	UserAgent      string             `mapstructure:"user_agent"`
	Corridors      []string           `mapstructure:"corridors"`
	MaxAge         time.Duration      `mapstructure:"max_age"`
}

// SamplerConfig governs the corridor rate sampling cadence.
type SamplerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// KafkaConfig routes payment status events.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// EthereumConfig covers the on-chain transfer adapter.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	TokenAddress   string        `mapstructure:"token_address"`
	TokenDecimals  int32         `mapstructure:"token_decimals"`
	PrivateKey     string        `mapstructure:"private_key"`
	ChainID        int64         `mapstructure:"chain_id"`
	GasLimit       uint64        `mapstructure:"gas_limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	WaitForReceipt bool          `mapstructure:"wait_for_receipt"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REMITRAILS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "remitrails")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("fees.platform_fee_pct", 0.015)
	v.SetDefault("fees.network_fee", 0.01)
	v.SetDefault("fees.max_amount", 10000.0)
	v.SetDefault("fees.compliance_threshold", 1000.0)
	v.SetDefault("fees.quote_ttl", "10m")

	v.SetDefault("compliance.identity_weight", 0.4)
	v.SetDefault("compliance.risk_weight", 0.6)

	v.SetDefault("rates.static", map[string]float64{
		"USD:MXN": 18.5,
		"USD:PHP": 56.2,
		"USD:INR": 83.1,
		"USD:NGN": 1540.0,
		"USD:EUR": 0.92,
	})
	v.SetDefault("rates.request_timeout", "10s")
	v.SetDefault("rates.user_agent", "remitrails/1.0")
	v.SetDefault("rates.corridors", []string{"USD:MXN", "USD:PHP", "USD:INR"})
	v.SetDefault("rates.max_age", "15m")

	v.SetDefault("sampler.interval", "5m")
	v.SetDefault("sampler.align_to_bucket", true)
	v.SetDefault("sampler.advisory_lock_key", int64(0x72656d69))
	v.SetDefault("sampler.startup_delay", "0s")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "payment-status")

	v.SetDefault("ethereum.token_decimals", int32(6))
	v.SetDefault("ethereum.gas_limit", uint64(90000))
	v.SetDefault("ethereum.request_timeout", "15s")
	v.SetDefault("ethereum.wait_for_receipt", false)

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Fees.PlatformFeePct < 0 {
		return fmt.Errorf("fees.platform_fee_pct cannot be negative")
	}
	if c.Fees.NetworkFee < 0 {
		return fmt.Errorf("fees.network_fee cannot be negative")
	}
	if c.Fees.MaxAmount <= 0 {
		return fmt.Errorf("fees.max_amount must be greater than zero")
	}
	if c.Fees.QuoteTTL <= 0 {
		return fmt.Errorf("fees.quote_ttl must be greater than zero")
	}
	weightSum := c.Compliance.IdentityWeight + c.Compliance.RiskWeight
	if weightSum < 0.999 || weightSum > 1.001 {
		return fmt.Errorf("compliance weights must sum to 1, got %.3f", weightSum)
	}
	if c.Sampler.Interval <= 0 {
		return fmt.Errorf("sampler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers 必须配置")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
