// Package config loads service configuration from an optional TOML file,
// with environment variables taking precedence for deployment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Geo cache backends.
const (
	GeoBackendMemory = "memory"
	GeoBackendRedis  = "redis"
)

// Config holds everything cmd/api needs to wire the service.
type Config struct {
	Service           string  `toml:"service"`
	Addr              string  `toml:"addr"`
	CertFile          string  `toml:"cert_file"`
	KeyFile           string  `toml:"key_file"`
	DatabaseURL       string  `toml:"database_url"`
	RedisAddr         string  `toml:"redis_addr"`
	OtelHost          string  `toml:"otel_host"`
	TraceProbability  float64 `toml:"trace_probability"`
	SessionTTLMinutes int     `toml:"session_ttl_minutes"`
	GeoBackend        string  `toml:"geo_backend"`
}

// Load reads the file at path (if non-empty), applies env overrides, fills
// defaults, and validates.
func Load(path string) (Config, error) {
	cfg := Config{
		Service:           "truckflow",
		Addr:              ":8443",
		CertFile:          "certs/server.crt",
		KeyFile:           "certs/server.key",
		RedisAddr:         "localhost:6379",
		TraceProbability:  1.0,
		SessionTTLMinutes: 60,
		GeoBackend:        GeoBackendMemory,
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("OTEL_HOST"); v != "" {
		cfg.OtelHost = v
	}
	if v := os.Getenv("GEO_BACKEND"); v != "" {
		cfg.GeoBackend = v
	}
	if v := os.Getenv("SESSION_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SessionTTLMinutes = n
		}
	}
}

func validate(cfg Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("config missing addr")
	}
	if cfg.RedisAddr == "" {
		return fmt.Errorf("config missing redis_addr")
	}
	if cfg.GeoBackend != GeoBackendMemory && cfg.GeoBackend != GeoBackendRedis {
		return fmt.Errorf("config geo_backend must be %q or %q, got %q",
			GeoBackendMemory, GeoBackendRedis, cfg.GeoBackend)
	}
	if cfg.SessionTTLMinutes <= 0 {
		return fmt.Errorf("config session_ttl_minutes must be positive")
	}
	if cfg.TraceProbability < 0 || cfg.TraceProbability > 1 {
		return fmt.Errorf("config trace_probability must be within [0,1]")
	}
	return nil
}
