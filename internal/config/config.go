// Package config handles application configuration from environment
// variables. Env is the single source of truth; values in code are only
// defaults and an explicit env setting always wins.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	Port     string `env:"PORT" envDefault:"8000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// APIKeys is the comma-separated list of accepted API keys. Each
	// key is also the caller identity for rate limiting.
	APIKeys []string `env:"API_KEYS" envSeparator:","`

	// RedisURL enables the shared cache tier when set, e.g.
	// redis://localhost:6379/0. Empty runs local-only.
	RedisURL string `env:"REDIS_URL"`

	Cache     CacheConfig
	RateLimit RateLimitConfig
	Upstream  UpstreamConfig
	TTL       TTLConfig
	Fanout    FanoutConfig
}

// CacheConfig holds the local cache tier settings.
type CacheConfig struct {
	Capacity    int    `env:"CACHE_CAPACITY" envDefault:"2048"`
	RedisPrefix string `env:"CACHE_REDIS_PREFIX" envDefault:"socialflood:"`
}

// RateLimitConfig holds the per-identity fixed-window settings.
type RateLimitConfig struct {
	Limit  int           `env:"RATE_LIMIT" envDefault:"100"`
	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// UpstreamConfig holds the shared outbound transport settings.
type UpstreamConfig struct {
	MaxConnsPerHost       int           `env:"UPSTREAM_MAX_CONNS_PER_HOST" envDefault:"16"`
	MaxIdleConns          int           `env:"UPSTREAM_MAX_IDLE_CONNS" envDefault:"32"`
	MaxIdleConnsPerHost   int           `env:"UPSTREAM_MAX_IDLE_CONNS_PER_HOST" envDefault:"8"`
	IdleConnTimeout       time.Duration `env:"UPSTREAM_IDLE_CONN_TIMEOUT" envDefault:"90s"`
	DialTimeout           time.Duration `env:"UPSTREAM_DIAL_TIMEOUT" envDefault:"5s"`
	TLSHandshakeTimeout   time.Duration `env:"UPSTREAM_TLS_TIMEOUT" envDefault:"5s"`
	ResponseHeaderTimeout time.Duration `env:"UPSTREAM_HEADER_TIMEOUT" envDefault:"10s"`
	RequestTimeout        time.Duration `env:"UPSTREAM_REQUEST_TIMEOUT" envDefault:"15s"`
	MaxAttempts           int           `env:"UPSTREAM_MAX_ATTEMPTS" envDefault:"3"`
	UserAgent             string        `env:"UPSTREAM_USER_AGENT" envDefault:"social-flood/1.0"`
}

// TTLConfig holds per-operation cache TTLs. Stable content gets long
// TTLs, volatile content short ones.
type TTLConfig struct {
	News         time.Duration `env:"TTL_NEWS" envDefault:"10m"`
	Autocomplete time.Duration `env:"TTL_AUTOCOMPLETE" envDefault:"1h"`
	Trends       time.Duration `env:"TTL_TRENDS" envDefault:"5m"`
	Transcripts  time.Duration `env:"TTL_TRANSCRIPTS" envDefault:"24h"`
}

// FanoutConfig bounds parallel sub-requests per batch.
type FanoutConfig struct {
	MaxParallel int `env:"FANOUT_MAX_PARALLEL" envDefault:"5"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	keys := c.APIKeys[:0]
	for _, k := range c.APIKeys {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	c.APIKeys = keys
	if len(c.APIKeys) == 0 {
		return fmt.Errorf("config: API_KEYS must be set to at least one key")
	}
	if c.RateLimit.Limit <= 0 {
		return fmt.Errorf("config: RATE_LIMIT must be positive, got %d", c.RateLimit.Limit)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimit.Window)
	}
	if c.Fanout.MaxParallel <= 0 {
		return fmt.Errorf("config: FANOUT_MAX_PARALLEL must be positive, got %d", c.Fanout.MaxParallel)
	}
	return nil
}
