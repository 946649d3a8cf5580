// Package config loads triage service settings from an optional YAML file
// with environment-variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clearpath/triage/internal/triage"
)

// Environment variables honored as overrides.
const (
	ConfigPathEnv         = "TRIAGE_CONFIG"
	ListenAddrEnv         = "LISTEN_ADDR"
	NATSURLEnv            = "NATS_URL"
	RedisAddrEnv          = "REDIS_ADDR"
	DatabaseDSNEnv        = "DATABASE_DSN"
	ModerationEndpointEnv = "MODERATION_ENDPOINT"
	ModerationModelEnv    = "MODERATION_MODEL"
	ModerationAPIKeyEnv   = "MODERATION_API_KEY"
)

// Config holds all settings for the triage service. Durations are YAML
// strings in Go duration syntax ("2h", "5m", "30s").
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`

	Redis struct {
		Addr     string `yaml:"addr"`
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"redis"`

	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	Moderation struct {
		Endpoint string `yaml:"endpoint"`
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"moderation"`

	Batch struct {
		MaxItems           int    `yaml:"max_items"`
		MaxEstimatedTokens int    `yaml:"max_estimated_tokens"`
		MaxBatchAge        string `yaml:"max_batch_age"`
	} `yaml:"batch"`

	FlushInterval        string `yaml:"flush_interval"`
	MaxInflightImmediate int64  `yaml:"max_inflight_immediate"`
	TrackCleared         bool   `yaml:"track_cleared"`
}

// Load reads the YAML file at path (or at $TRIAGE_CONFIG when path is
// empty), fills in defaults, and applies environment overrides. A missing
// file is not an error: the service can run on defaults plus environment.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8090"
	}
	if c.NATS.URL == "" {
		c.NATS.URL = "nats://localhost:4222"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.CacheTTL == "" {
		c.Redis.CacheTTL = "24h"
	}
	if c.Moderation.Timeout == "" {
		c.Moderation.Timeout = "30s"
	}
	if c.Batch.MaxItems == 0 {
		c.Batch.MaxItems = triage.DefaultMaxItems
	}
	if c.Batch.MaxEstimatedTokens == 0 {
		c.Batch.MaxEstimatedTokens = triage.DefaultMaxEstimatedTokens
	}
	if c.Batch.MaxBatchAge == "" {
		c.Batch.MaxBatchAge = "2h"
	}
	if c.FlushInterval == "" {
		c.FlushInterval = "5m"
	}
	if c.MaxInflightImmediate == 0 {
		c.MaxInflightImmediate = 8
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(ListenAddrEnv); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv(NATSURLEnv); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv(RedisAddrEnv); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv(DatabaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(ModerationEndpointEnv); v != "" {
		c.Moderation.Endpoint = v
	}
	if v := os.Getenv(ModerationModelEnv); v != "" {
		c.Moderation.Model = v
	}
	if v := os.Getenv(ModerationAPIKeyEnv); v != "" {
		c.Moderation.APIKey = v
	}
}

func (c *Config) validate() error {
	for name, value := range map[string]string{
		"redis.cache_ttl":     c.Redis.CacheTTL,
		"moderation.timeout":  c.Moderation.Timeout,
		"batch.max_batch_age": c.Batch.MaxBatchAge,
		"flush_interval":      c.FlushInterval,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("config: invalid duration for %s: %w", name, err)
		}
	}
	if c.Batch.MaxItems < 1 {
		return fmt.Errorf("config: batch.max_items must be at least 1")
	}
	if c.Batch.MaxEstimatedTokens < 1 {
		return fmt.Errorf("config: batch.max_estimated_tokens must be at least 1")
	}
	return nil
}

// BatchConfig converts the batch section into engine thresholds.
func (c *Config) BatchConfig() triage.BatchConfig {
	return triage.BatchConfig{
		MaxItems:           c.Batch.MaxItems,
		MaxEstimatedTokens: c.Batch.MaxEstimatedTokens,
		MaxBatchAge:        c.duration(c.Batch.MaxBatchAge),
	}
}

// ModerationTimeout returns the external-call timeout.
func (c *Config) ModerationTimeout() time.Duration {
	return c.duration(c.Moderation.Timeout)
}

// FlushEvery returns the background flusher's periodic wake interval.
func (c *Config) FlushEvery() time.Duration {
	return c.duration(c.FlushInterval)
}

// CacheTTL returns the verdict cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return c.duration(c.Redis.CacheTTL)
}

// duration parses a value validate() already checked.
func (c *Config) duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}
