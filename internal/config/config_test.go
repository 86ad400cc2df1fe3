package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ADK_CONFIG",
		"ADK_LOG_LEVEL",
		"ADK_LOG_FORMAT",
		"ADK_MANIFEST_DIR",
		"ADK_DATA_ROOT",
		"ADK_CACHE_DIR",
		"ADK_HTTP_TIMEOUT",
		"ADK_METRICS_TEXTFILE",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adk.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesFileOntoDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
logging:
  level: debug
storage:
  dataRoot: /srv/data
  httpTimeout: 5s
metrics:
  textfile: /tmp/adk.prom
`)

	cfg := Load(path)
	if cfg.Source != path {
		t.Fatalf("expected source %q, got %q", path, cfg.Source)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected level=debug, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected default format=json, got %q", cfg.Logging.Format)
	}
	if cfg.Storage.DataRoot != "/srv/data" {
		t.Fatalf("expected dataRoot=/srv/data, got %q", cfg.Storage.DataRoot)
	}
	if cfg.Storage.HTTPTimeout != 5*time.Second {
		t.Fatalf("expected httpTimeout=5s, got %s", cfg.Storage.HTTPTimeout)
	}
	if cfg.Metrics.Textfile != "/tmp/adk.prom" {
		t.Fatalf("expected textfile, got %q", cfg.Metrics.Textfile)
	}
	if cfg.Manifest.Dir != "." {
		t.Fatalf("expected default manifest dir, got %q", cfg.Manifest.Dir)
	}
}

func TestLoadFallsBackToDefaultsOnInvalidFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "logging: [unterminated")

	cfg := Load(path)
	if cfg.Source != "" {
		t.Fatalf("expected no source for invalid file, got %q", cfg.Source)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default level, got %q", cfg.Logging.Level)
	}
}

func TestLoadUsesConfigEnvPath(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "manifest:\n  dir: /algo\n")
	t.Setenv("ADK_CONFIG", path)

	cfg := Load("")
	if cfg.Manifest.Dir != "/algo" {
		t.Fatalf("expected manifest dir from ADK_CONFIG file, got %q", cfg.Manifest.Dir)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "logging:\n  level: debug\nstorage:\n  httpTimeout: 5s\n")
	t.Setenv("ADK_LOG_LEVEL", "warn")
	t.Setenv("ADK_HTTP_TIMEOUT", "12")
	t.Setenv("ADK_CACHE_DIR", "/var/cache/adk")

	cfg := Load(path)
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected env level=warn, got %q", cfg.Logging.Level)
	}
	if cfg.Storage.HTTPTimeout != 12*time.Second {
		t.Fatalf("expected 12s timeout, got %s", cfg.Storage.HTTPTimeout)
	}
	if cfg.Storage.CacheDir != "/var/cache/adk" {
		t.Fatalf("expected env cache dir, got %q", cfg.Storage.CacheDir)
	}
}

func TestInvalidEnvDurationKeepsFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADK_HTTP_TIMEOUT", "soon")

	cfg := Default()
	ApplyEnvOverrides(&cfg)
	if cfg.Storage.HTTPTimeout != 60*time.Second {
		t.Fatalf("expected fallback timeout, got %s", cfg.Storage.HTTPTimeout)
	}
}
