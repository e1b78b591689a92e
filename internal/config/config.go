package config

import "time"

// Config represents the complete application configuration. Values merge in
// three layers: built-in defaults, the user config file, then COINSYNC_*
// environment variables and runtime overrides.
type Config struct {
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
	Exchange ExchangeConfig `mapstructure:"exchange" yaml:"exchange"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Sync     SyncConfig     `mapstructure:"sync" yaml:"sync"`
	Rate     RateConfig     `mapstructure:"rate" yaml:"rate"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
}

// ProviderConfig contains settings for the coin list provider API.
type ProviderConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ExchangeConfig selects the target exchange and its public API endpoint.
type ExchangeConfig struct {
	Name    string        `mapstructure:"name" yaml:"name"`
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Target  string        `mapstructure:"target_currency" yaml:"target_currency"`
}

// StoreConfig contains database configuration for libsql/Turso or postgres.
type StoreConfig struct {
	Driver    string `mapstructure:"driver" yaml:"driver"`
	Path      string `mapstructure:"path" yaml:"path"`
	URL       string `mapstructure:"url" yaml:"url"`
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token"`
}

// SyncConfig tunes the batch processor.
type SyncConfig struct {
	Job             string        `mapstructure:"job" yaml:"job"`
	BatchSize       int           `mapstructure:"batch_size" yaml:"batch_size"`
	CheckpointEvery int           `mapstructure:"checkpoint_frequency" yaml:"checkpoint_frequency"`
	CheckpointTTL   time.Duration `mapstructure:"checkpoint_ttl" yaml:"checkpoint_ttl"`
	EntityPacing    time.Duration `mapstructure:"entity_pacing" yaml:"entity_pacing"`
	MaxAttempts     int           `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// RateConfig tunes the adaptive rate limiter. When Adaptive is false a fixed
// delay is applied between requests.
type RateConfig struct {
	Adaptive         bool          `mapstructure:"adaptive" yaml:"adaptive"`
	FixedDelay       time.Duration `mapstructure:"fixed_delay" yaml:"fixed_delay"`
	MinPerMinute     float64       `mapstructure:"min_per_minute" yaml:"min_per_minute"`
	MaxPerMinute     float64       `mapstructure:"max_per_minute" yaml:"max_per_minute"`
	InitialPerMinute float64       `mapstructure:"initial_per_minute" yaml:"initial_per_minute"`
	FactorUp         float64       `mapstructure:"factor_up" yaml:"factor_up"`
	FactorDown       float64       `mapstructure:"factor_down" yaml:"factor_down"`
	SuccessStreak    int           `mapstructure:"success_streak" yaml:"success_streak"`
	FailureStreak    int           `mapstructure:"failure_streak" yaml:"failure_streak"`
	WindowSize       int           `mapstructure:"window_size" yaml:"window_size"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// ServerConfig contains HTTP status server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level.
	// Valid values: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`

	// Format selects console or json output.
	Format string `mapstructure:"format" yaml:"format"`
}

// OutputConfig controls where sync results are written.
type OutputConfig struct {
	Format      string `mapstructure:"format" yaml:"format"`
	MappingFile string `mapstructure:"mapping_file" yaml:"mapping_file"`
}
