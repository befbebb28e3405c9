package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig carries everything the server needs. Environment variables are
// the primary source; an optional YAML file pointed at by CONFIG_FILE is
// applied first and the environment overrides it.
type AppConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	SessionTTLSec   int `yaml:"session_ttl_sec"`
	SessionSweepSec int `yaml:"session_sweep_sec"`
	MovesWaitSec    int `yaml:"moves_wait_sec"`
	ResultWaitSec   int `yaml:"result_wait_sec"`
	DefaultRating   int `yaml:"default_rating"`
}

// Load builds the config from CONFIG_FILE (optional) and the environment.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:        ":5000",
		SessionTTLSec:   7200,
		SessionSweepSec: 300,
		MovesWaitSec:    10,
		ResultWaitSec:   120,
		DefaultRating:   1200,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	overrides := []struct {
		dst *int
		key string
	}{
		{&cfg.SessionTTLSec, "SESSION_TTL"},
		{&cfg.SessionSweepSec, "SESSION_SWEEP"},
		{&cfg.MovesWaitSec, "MOVES_WAIT"},
		{&cfg.ResultWaitSec, "RESULT_WAIT"},
		{&cfg.DefaultRating, "DEFAULT_RATING"},
	}
	for _, o := range overrides {
		if err := overrideInt(o.dst, o.key); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func overrideInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return fmt.Errorf("%s: must be positive, got %d", key, n)
	}
	*dst = n
	return nil
}
