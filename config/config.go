// Package config defines the configuration surface from spec §6 and loads it
// from YAML, grounded on the teacher's config/loader.go + llm/config/types.go
// shape: typed structs, a Default constructor, env var lookups for
// secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/docagents/substrate/types"
)

// ProviderEntry configures one model-serving endpoint (spec §6).
type ProviderEntry struct {
	Kind              types.Provider `yaml:"kind"`
	APIKeyEnv         string         `yaml:"api_key_env"`
	BaseURL           string         `yaml:"base_url"`
	ModelName         string         `yaml:"model_name"`
	MaxConcurrent     int            `yaml:"max_concurrent"`
	RequestsPerMinute int            `yaml:"requests_per_minute"`
	TokensPerMinute   int            `yaml:"tokens_per_minute"`
	// CostInPer1M and CostOutPer1M are the per-token cost in micro-cents
	// (spec §4.5), despite the "per1M" name: metering.Rate stores them
	// scaled to per-1,000,000-token granularity so fractional per-token
	// rates survive as exact integers (see metering.Instance.CostOf).
	CostInPer1M  float64 `yaml:"cost_in_per_1m"`
	CostOutPer1M float64 `yaml:"cost_out_per_1m"`
}

// APIKey resolves the credential from the configured environment variable.
// Never stored in the struct itself so config dumps/logs don't leak it.
func (p ProviderEntry) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// RetryConfig mirrors spec §6's retry surface.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	JitterRatio float64       `yaml:"jitter_ratio"`
}

// BreakerConfig mirrors spec §6's breaker surface.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	OpenDuration     time.Duration `yaml:"open_duration"`
	HalfOpenProbe    int           `yaml:"half_open_probe"`
}

// PoolConfig mirrors spec §6's pool surface.
type PoolConfig struct {
	CoreSize      int `yaml:"core_size"`
	MaxSize       int `yaml:"max_size"`
	QueueCapacity int `yaml:"queue_capacity"`
}

// Config is the full configuration surface enumerated in spec §6.
type Config struct {
	Providers            []ProviderEntry `yaml:"providers"`
	Retry                RetryConfig     `yaml:"retry"`
	Breaker              BreakerConfig   `yaml:"breaker"`
	Pool                 PoolConfig      `yaml:"pool"`
	LocalProviderEnabled bool            `yaml:"local_provider_enabled"`
}

// Default returns the spec §4.3/§4.4's documented defaults.
func Default() Config {
	return Config{
		Providers: []ProviderEntry{
			{Kind: types.ProviderPrimaryCloudA, ModelName: "gpt-4o", MaxConcurrent: 4, RequestsPerMinute: 60, TokensPerMinute: 90_000, CostInPer1M: 2.5, CostOutPer1M: 10.0},
			{Kind: types.ProviderPrimaryCloudB, ModelName: "claude-3-5-sonnet", MaxConcurrent: 4, RequestsPerMinute: 60, TokensPerMinute: 90_000, CostInPer1M: 3.0, CostOutPer1M: 15.0},
			{Kind: types.ProviderResearchCloud, ModelName: "sonar-pro", MaxConcurrent: 2, RequestsPerMinute: 20, TokensPerMinute: 40_000, CostInPer1M: 1.0, CostOutPer1M: 1.0},
			{Kind: types.ProviderLocal, ModelName: "local-twin", MaxConcurrent: 2, RequestsPerMinute: 0, TokensPerMinute: 0, CostInPer1M: 0, CostOutPer1M: 0},
		},
		Retry:                RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second, JitterRatio: 0.2},
		Breaker:              BreakerConfig{FailureThreshold: 5, OpenDuration: 60 * time.Second, HalfOpenProbe: 1},
		Pool:                 PoolConfig{CoreSize: 4, MaxSize: 16, QueueCapacity: 256},
		LocalProviderEnabled: true,
	}
}

// Load reads and parses a YAML config file, filling unset fields from
// Default().
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ProviderByKind looks up one provider's config entry.
func (c Config) ProviderByKind(kind types.Provider) (ProviderEntry, bool) {
	for _, p := range c.Providers {
		if p.Kind == kind {
			return p, true
		}
	}
	return ProviderEntry{}, false
}
