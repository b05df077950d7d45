// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ipharvest/trademark-harvester/pkg/client"
	"github.com/ipharvest/trademark-harvester/pkg/images"
	"github.com/ipharvest/trademark-harvester/pkg/scheduler"
)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	API    APIConfig    `mapstructure:"api"`
	Fetch  FetchConfig  `mapstructure:"fetch"`
	Retry  RetryConfig  `mapstructure:"retry"`
	Images ImagesConfig `mapstructure:"images"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Log    LogConfig    `mapstructure:"log"`
}

// APIConfig controls access to the trademarks endpoint.
type APIConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	Key            string  `mapstructure:"key"`
	UserAgent      string  `mapstructure:"user_agent"`
	RPS            float64 `mapstructure:"rps"`
	Burst          int     `mapstructure:"burst"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// FetchConfig governs date chunking and scheduler behavior.
type FetchConfig struct {
	ChunkSizeDays int `mapstructure:"chunk_size_days"`
	Concurrency   int `mapstructure:"concurrency"`
}

// RetryConfig configures per-chunk retry behavior.
type RetryConfig struct {
	MaxAttempts      int     `mapstructure:"max_attempts"`
	InitialBackoffMs int     `mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `mapstructure:"max_backoff_ms"`
	Multiplier       float64 `mapstructure:"multiplier"`
}

// ImagesConfig controls document image downloads.
type ImagesConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Dir            string `mapstructure:"dir"`
	Concurrency    int    `mapstructure:"concurrency"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CacheConfig controls the optional Redis chunk-page cache.
type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load builds a Config from disk/environment. Environment variables use the
// HARVESTER_ prefix with dots replaced by underscores, e.g. HARVESTER_API_KEY.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", client.DefaultBaseURL)
	v.SetDefault("api.user_agent", "trademark-harvester/0.1.0")
	v.SetDefault("api.rps", 5.0)
	v.SetDefault("api.burst", 5)
	v.SetDefault("api.timeout_seconds", 30)
	v.SetDefault("fetch.chunk_size_days", 1)
	v.SetDefault("fetch.concurrency", 5)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("images.enabled", false)
	v.SetDefault("images.dir", "images")
	v.SetDefault("images.concurrency", 5)
	v.SetDefault("images.timeout_seconds", 60)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl_seconds", 86400)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Validate checks invariants that would otherwise surface mid-run.
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	if c.API.UserAgent == "" {
		return fmt.Errorf("api.user_agent must not be empty")
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds must be positive")
	}
	if c.Fetch.ChunkSizeDays <= 0 {
		return fmt.Errorf("fetch.chunk_size_days must be positive")
	}
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be positive")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1")
	}
	if c.Images.Enabled {
		if c.Images.Dir == "" {
			return fmt.Errorf("images.dir must not be empty when images are enabled")
		}
		if c.Images.Concurrency <= 0 {
			return fmt.Errorf("images.concurrency must be positive")
		}
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("cache.addr must not be empty when cache is enabled")
	}
	return nil
}

// ClientConfig converts the API section into a client configuration.
// Limiter and Cache stay nil; the caller wires those.
func (c Config) ClientConfig() client.Config {
	return client.Config{
		BaseURL:   c.API.BaseURL,
		APIKey:    c.API.Key,
		UserAgent: c.API.UserAgent,
		Timeout:   time.Duration(c.API.TimeoutSeconds) * time.Second,
	}
}

// RetryPolicy converts the retry section into a scheduler policy.
func (c Config) RetryPolicy() scheduler.RetryPolicy {
	return scheduler.RetryPolicy{
		MaxAttempts:    c.Retry.MaxAttempts,
		InitialBackoff: time.Duration(c.Retry.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(c.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:     c.Retry.Multiplier,
	}
}

// DownloaderConfig converts the images section into a downloader configuration.
func (c Config) DownloaderConfig() images.Config {
	return images.Config{
		Dir:         c.Images.Dir,
		Concurrency: c.Images.Concurrency,
		Timeout:     time.Duration(c.Images.TimeoutSeconds) * time.Second,
	}
}

// CacheTTL returns the configured cache entry lifetime.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
