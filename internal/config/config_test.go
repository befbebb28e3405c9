package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":5000" {
		t.Fatalf("HTTPAddr = %q, want :5000", cfg.HTTPAddr)
	}
	if cfg.SessionTTLSec != 7200 || cfg.ResultWaitSec != 120 {
		t.Fatalf("unexpected defaults: ttl=%d resultWait=%d", cfg.SessionTTLSec, cfg.ResultWaitSec)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("RESULT_WAIT", "30")
	t.Setenv("DEFAULT_RATING", "1600")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
	}
	if cfg.ResultWaitSec != 30 {
		t.Fatalf("ResultWaitSec = %d, want 30", cfg.ResultWaitSec)
	}
	if cfg.DefaultRating != 1600 {
		t.Fatalf("DefaultRating = %d, want 1600", cfg.DefaultRating)
	}
}

func TestLoadRejectsUnparseableOverride(t *testing.T) {
	t.Setenv("RESULT_WAIT", "2m")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unparseable RESULT_WAIT")
	} else if !strings.Contains(err.Error(), "RESULT_WAIT") {
		t.Fatalf("error %q does not name the offending variable", err)
	}
}

func TestLoadRejectsNonPositiveOverride(t *testing.T) {
	t.Setenv("SESSION_TTL", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-positive SESSION_TTL")
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insight.yaml")
	raw := "http_addr: \":7000\"\nmoves_wait_sec: 5\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MOVES_WAIT", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Fatalf("HTTPAddr = %q, want :7000 from file", cfg.HTTPAddr)
	}
	if cfg.MovesWaitSec != 7 {
		t.Fatalf("MovesWaitSec = %d, want env to override file", cfg.MovesWaitSec)
	}
}
