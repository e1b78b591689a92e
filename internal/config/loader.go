// Package config provides centralized configuration management for coinsync.
// Values merge in three layers: built-in defaults, an optional YAML config
// file, and COINSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	envPrefix       = "COINSYNC"
	configFileName  = "config"
	configDirName   = "coinsync"
	defaultDBName   = "coinsync.db"
	defaultExchange = "kraken"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// Load reads configuration from defaults, the config file (explicit path or
// the standard locations) and environment, then decodes it into a Config.
// Safe to call multiple times.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
		for _, dir := range configSearchPaths() {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
			// Defaults plus environment are a complete configuration.
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	setConfig(cfg)
	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe).
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.timeout", "30s")

	v.SetDefault("exchange.name", defaultExchange)
	v.SetDefault("exchange.base_url", "https://api.kraken.com")
	v.SetDefault("exchange.timeout", "30s")
	v.SetDefault("exchange.target_currency", "USD")

	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("sync.job", defaultExchange+"-sync")
	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("sync.checkpoint_frequency", 50)
	v.SetDefault("sync.checkpoint_ttl", "24h")
	v.SetDefault("sync.entity_pacing", "0s")
	v.SetDefault("sync.max_attempts", 3)

	v.SetDefault("rate.adaptive", true)
	v.SetDefault("rate.fixed_delay", "1500ms")
	v.SetDefault("rate.min_per_minute", 10)
	v.SetDefault("rate.max_per_minute", 50)
	v.SetDefault("rate.initial_per_minute", 10)
	v.SetDefault("rate.factor_up", 1.2)
	v.SetDefault("rate.factor_down", 0.8)
	v.SetDefault("rate.success_streak", 10)
	v.SetDefault("rate.failure_streak", 3)
	v.SetDefault("rate.window_size", 20)
	v.SetDefault("rate.request_timeout", "30s")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8600)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("output.format", "table")
	v.SetDefault("output.mapping_file", "")
}

func configSearchPaths() []string {
	paths := []string{"."}
	if dir := userConfigDir(); dir != "" {
		paths = append(paths, dir)
	}
	return paths
}

func userConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, configDirName)
}

// DefaultConfigPath returns the path where `config init` writes the user
// config file.
func DefaultConfigPath() string {
	dir := userConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// DefaultStorePath returns the default location of the database file.
func DefaultStorePath() string {
	base, err := os.UserCacheDir()
	if err != nil || strings.TrimSpace(base) == "" {
		return "./" + defaultDBName
	}
	return filepath.Join(base, configDirName, defaultDBName)
}
