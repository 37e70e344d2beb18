package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvDSN       = "COLLECTOR_DB_DSN"
	EnvAPIKey    = "EODHD_API_KEY"
	EnvRedisAddr = "COLLECTOR_REDIS_ADDR"
)

type Config struct {
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`

	DB struct {
		Driver             string `toml:"driver"` // postgres | sqlite
		DSN                string `toml:"dsn"`
		Path               string `toml:"path"`
		MaxOpenConns       int    `toml:"max_open_conns"`
		MaxIdleConns       int    `toml:"max_idle_conns"`
		ConnMaxLifetimeSec int    `toml:"conn_max_lifetime_sec"`
	} `toml:"db"`

	Provider struct {
		BaseURL        string   `toml:"base_url"`
		APIKey         string   `toml:"api_key"`
		EquityExchange string   `toml:"equity_exchange"`
		EquityTypes    []string `toml:"equity_types"`
		TimeoutSec     int      `toml:"timeout_sec"`
		RatePerSec     float64  `toml:"rate_per_sec"`
		Burst          int      `toml:"burst"`
		MaxRetries     int      `toml:"max_retries"`
	} `toml:"provider"`

	Ingest struct {
		Concurrency  int      `toml:"concurrency"`
		LookbackDays int      `toml:"lookback_days"`
		Equities     []string `toml:"equities"` // empty = everything listed
		FX           []string `toml:"fx"`
	} `toml:"ingest"`

	Redis struct {
		Enabled  bool   `toml:"enabled"`
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		Prefix   string `toml:"prefix"`
		Stream   string `toml:"stream"`
		Channel  string `toml:"channel"`
		TTLSec   int    `toml:"ttl_sec"` // expiry of the last-run hash; 0 keeps it
	} `toml:"redis"`

	Metrics struct {
		PushgatewayURL string `toml:"pushgateway_url"`
		Job            string `toml:"job"`
	} `toml:"metrics"`
}

// Load reads the toml file, then lets the environment (and an optional .env
// next to the working directory) override secrets.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvDSN)); v != "" {
		cfg.DB.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		cfg.Redis.Addr = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = DriverSQLite
	}
	if cfg.DB.Driver == DriverSQLite && cfg.DB.Path == "" {
		cfg.DB.Path = "data/collector.db"
	}
	if cfg.Provider.EquityExchange == "" {
		cfg.Provider.EquityExchange = "US"
	}
	if cfg.Provider.TimeoutSec <= 0 {
		cfg.Provider.TimeoutSec = 15
	}
	if cfg.Provider.RatePerSec <= 0 {
		cfg.Provider.RatePerSec = 5
	}
	if cfg.Provider.Burst <= 0 {
		cfg.Provider.Burst = 1
	}
	if cfg.Provider.MaxRetries <= 0 {
		cfg.Provider.MaxRetries = 3
	}
	if cfg.Ingest.Concurrency <= 0 {
		cfg.Ingest.Concurrency = 4
	}
	if cfg.Ingest.LookbackDays <= 0 {
		cfg.Ingest.LookbackDays = 365
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "collector"
	}
	if cfg.Redis.Stream == "" {
		cfg.Redis.Stream = "collector:reports"
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "collector:reports"
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = "mktdata_collector"
	}
}

func validate(cfg *Config) error {
	cfg.Ingest.Equities = normalizeSymbols(cfg.Ingest.Equities)
	cfg.Ingest.FX = normalizeSymbols(cfg.Ingest.FX)

	switch cfg.DB.Driver {
	case DriverPostgres:
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return errors.New("db.dsn empty but driver is postgres")
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("db.driver %q unsupported", cfg.DB.Driver)
	}

	if cfg.Redis.TTLSec < 0 {
		return errors.New("redis.ttl_sec must not be negative")
	}
	if cfg.Redis.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("redis.addr empty but enabled")
	}
	return nil
}

// Timeout returns the provider request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSec) * time.Second
}

// RedisTTL returns the expiry of the last-run summary hash.
func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Redis.TTLSec) * time.Second
}

// Lookback returns the first-fetch window for instruments without bars.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.Ingest.LookbackDays) * 24 * time.Hour
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
