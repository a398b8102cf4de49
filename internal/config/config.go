// Package config loads the harvester configuration from a YAML file with
// environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the harvester configuration.
type Config struct {
	Congress SourceConfig `yaml:"congress"`
	GovInfo  SourceConfig `yaml:"govinfo"`

	Pool struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"pool"`

	Ledger struct {
		// Backend is one of "memory", "leveldb", "redis".
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
	} `yaml:"ledger"`

	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// SourceConfig configures one upstream API.
type SourceConfig struct {
	BaseURL     string `yaml:"baseUrl"`
	APIKey      string `yaml:"apiKey"`
	Quota       int    `yaml:"quota"`
	QuotaWindow string `yaml:"quotaWindow"`
	PageSize    int    `yaml:"pageSize"`

	// parsed from QuotaWindow
	Window time.Duration `yaml:"-"`
}

// Load reads path (optional: empty path yields pure defaults), applies
// environment overrides and validates. Environment variables win over the
// file: CONGRESS_API_KEY, GOVINFO_API_KEY, REDIS_URL.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	if err := parseWindow(&cfg.Congress, "congress"); err != nil {
		return Config{}, err
	}
	if err := parseWindow(&cfg.GovInfo, "govinfo"); err != nil {
		return Config{}, err
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseWindow(sc *SourceConfig, name string) error {
	d, err := time.ParseDuration(sc.QuotaWindow)
	if err != nil {
		return fmt.Errorf("%s.quotaWindow: %w", name, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s.quotaWindow must be > 0 (got %s)", name, d)
	}
	sc.Window = d
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Congress.BaseURL == "" {
		cfg.Congress.BaseURL = "https://api.congress.gov/v3"
	}
	if cfg.Congress.Quota == 0 {
		cfg.Congress.Quota = 5000
	}
	if cfg.Congress.QuotaWindow == "" {
		cfg.Congress.QuotaWindow = "1h"
	}
	if cfg.Congress.PageSize == 0 {
		cfg.Congress.PageSize = 250
	}

	if cfg.GovInfo.BaseURL == "" {
		cfg.GovInfo.BaseURL = "https://api.govinfo.gov"
	}
	if cfg.GovInfo.Quota == 0 {
		cfg.GovInfo.Quota = 1000
	}
	if cfg.GovInfo.QuotaWindow == "" {
		cfg.GovInfo.QuotaWindow = "1h"
	}
	if cfg.GovInfo.PageSize == 0 {
		cfg.GovInfo.PageSize = 1000
	}

	if cfg.Pool.Concurrency == 0 {
		cfg.Pool.Concurrency = 4
	}
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = "memory"
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = "govharvest.db"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CONGRESS_API_KEY"); v != "" {
		cfg.Congress.APIKey = v
	}
	if v := os.Getenv("GOVINFO_API_KEY"); v != "" {
		cfg.GovInfo.APIKey = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func validate(cfg Config) error {
	switch cfg.Ledger.Backend {
	case "memory", "leveldb", "redis":
	default:
		return fmt.Errorf("ledger.backend must be memory, leveldb or redis (got %q)", cfg.Ledger.Backend)
	}
	if cfg.Ledger.Backend == "redis" && cfg.Redis.URL == "" {
		return fmt.Errorf("redis ledger backend requires redis.url or REDIS_URL")
	}
	if cfg.Pool.Concurrency <= 0 {
		return fmt.Errorf("pool.concurrency must be > 0 (got %d)", cfg.Pool.Concurrency)
	}
	if cfg.Congress.Quota <= 0 || cfg.GovInfo.Quota <= 0 {
		return fmt.Errorf("source quotas must be > 0")
	}
	if cfg.Congress.PageSize <= 0 || cfg.GovInfo.PageSize <= 0 {
		return fmt.Errorf("source page sizes must be > 0")
	}
	if !strings.HasPrefix(cfg.Congress.BaseURL, "http") || !strings.HasPrefix(cfg.GovInfo.BaseURL, "http") {
		return fmt.Errorf("source base URLs must be http(s)")
	}
	return nil
}
