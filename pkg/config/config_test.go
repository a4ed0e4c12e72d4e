package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "truckflow.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8443" {
		t.Errorf("expected default addr :8443, got %s", cfg.Addr)
	}
	if cfg.GeoBackend != GeoBackendMemory {
		t.Errorf("expected default geo backend memory, got %s", cfg.GeoBackend)
	}
	if cfg.SessionTTLMinutes != 60 {
		t.Errorf("expected default session ttl 60, got %d", cfg.SessionTTLMinutes)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
addr = ":9000"
redis_addr = "redis:6379"
geo_backend = "redis"
session_ttl_minutes = 15
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.RedisAddr != "redis:6379" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.GeoBackend != GeoBackendRedis || cfg.SessionTTLMinutes != 15 {
		t.Errorf("file values not applied: %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `redis_addr = "from-file:6379"`)
	t.Setenv("REDIS_ADDR", "from-env:6379")
	t.Setenv("GEO_BACKEND", "redis")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RedisAddr != "from-env:6379" {
		t.Errorf("expected env override, got %s", cfg.RedisAddr)
	}
	if cfg.GeoBackend != GeoBackendRedis {
		t.Errorf("expected env geo backend, got %s", cfg.GeoBackend)
	}
}

func TestValidation(t *testing.T) {
	if _, err := Load(writeConfig(t, `geo_backend = "postgis"`)); err == nil {
		t.Error("expected error for unknown geo backend")
	}
	if _, err := Load(writeConfig(t, `session_ttl_minutes = -1`)); err == nil {
		t.Error("expected error for negative session ttl")
	}
	if _, err := Load(writeConfig(t, `trace_probability = 2.0`)); err == nil {
		t.Error("expected error for out-of-range trace probability")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
