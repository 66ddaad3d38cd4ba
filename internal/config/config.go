// Package config loads curve-engine settings from an optional config file
// and the environment. Environment variables use the upper-cased key
// (PORT, DATABASE_URL, ...) and override the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/volumefi/curve-engine/internal/precision"
)

type Config struct {
	Port            string        `mapstructure:"port"`
	DatabaseURL     string        `mapstructure:"database_url"`
	RedisURL        string        `mapstructure:"redis_url"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	PrecisionDigits int32         `mapstructure:"precision_digits"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	LogLevel        string        `mapstructure:"log_level"`
	MinReserveIn    string        `mapstructure:"min_reserve_in"`
	MaxHolding      string        `mapstructure:"max_holding"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

const (
	DefaultPort            = "8080"
	DefaultCacheTTL        = 30 * time.Second
	DefaultRateLimit       = 20.0
	DefaultRateBurst       = 40
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 5 * time.Second
	DefaultConnectTimeout  = 30 * time.Second
)

// Load reads the config file at path, if any, and overlays the environment.
// An empty path loads from the environment and defaults only.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]any{
		"port":             DefaultPort,
		"database_url":     "",
		"redis_url":        "",
		"cache_ttl":        DefaultCacheTTL,
		"precision_digits": precision.DefaultDigits,
		"rate_limit":       DefaultRateLimit,
		"rate_burst":       DefaultRateBurst,
		"log_level":        DefaultLogLevel,
		"min_reserve_in":   "0",
		"max_holding":      "0",
		"shutdown_timeout": DefaultShutdownTimeout,
		"connect_timeout":  DefaultConnectTimeout,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, cfg.Validate()
}

// Validate checks ranges and formats that viper cannot.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if _, err := precision.New(c.PrecisionDigits); err != nil {
		return fmt.Errorf("invalid precision_digits: %w", err)
	}
	if c.CacheTTL <= 0 {
		return errors.New("cache_ttl must be positive")
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return errors.New("rate_limit and rate_burst must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.DatabaseURL != "" {
		if err := validateURL(c.DatabaseURL, "postgres"); err != nil {
			return fmt.Errorf("invalid database_url: %w", err)
		}
	}
	if c.RedisURL != "" {
		if err := validateURL(c.RedisURL, "redis"); err != nil {
			return fmt.Errorf("invalid redis_url: %w", err)
		}
	}
	if _, _, err := c.TradeLimits(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel into a slog level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return l, nil
}

// TradeLimits parses the minimum purchase and maximum holding, both in
// smallest units. Zero disables the limit.
func (c *Config) TradeLimits() (minReserveIn, maxHolding decimal.Decimal, err error) {
	minReserveIn, err = parseAmount("min_reserve_in", c.MinReserveIn)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	maxHolding, err = parseAmount("max_holding", c.MaxHolding)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return minReserveIn, maxHolding, nil
}

func parseAmount(key, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() || !v.IsInteger() {
		return decimal.Zero, fmt.Errorf("invalid %s %q: want a non-negative integer amount", key, raw)
	}
	return v, nil
}

func validateURL(rawURL, scheme string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, scheme) {
		return fmt.Errorf("scheme %q, want %s", parsed.Scheme, scheme)
	}
	return nil
}
