package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
feed:
  ws_url: wss://testnet.example.com:9443
  quote: BUSD
watch:
  symbols: [btc, eth]
  interval: 5m
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feed.WSURL != "wss://testnet.example.com:9443" {
		t.Errorf("Feed.WSURL = %q", cfg.Feed.WSURL)
	}
	if cfg.Feed.Quote != "BUSD" {
		t.Errorf("Feed.Quote = %q, want BUSD", cfg.Feed.Quote)
	}
	if len(cfg.Watch.Symbols) != 2 || cfg.Watch.Symbols[0] != "btc" {
		t.Errorf("Watch.Symbols = %v", cfg.Watch.Symbols)
	}
	if cfg.Watch.Interval != "5m" {
		t.Errorf("Watch.Interval = %q", cfg.Watch.Interval)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_WS_URL", "wss://private.example.com")

	yaml := `
feed:
  ws_url: ${TEST_WS_URL}
watch:
  symbols: [btc]
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feed.WSURL != "wss://private.example.com" {
		t.Errorf("Feed.WSURL = %q, want env-expanded value", cfg.Feed.WSURL)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
watch:
  symbols: [btc]
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Feed.WSURL != DefaultWSURL {
		t.Errorf("Feed.WSURL = %q, want default", cfg.Feed.WSURL)
	}
	if cfg.Feed.Quote != DefaultQuote {
		t.Errorf("Feed.Quote = %q, want default", cfg.Feed.Quote)
	}
	if cfg.Stream.RetryDelay != 3*time.Second {
		t.Errorf("Stream.RetryDelay = %v, want 3s", cfg.Stream.RetryDelay)
	}
	if cfg.Store.TapeDepth != 50 {
		t.Errorf("Store.TapeDepth = %d, want 50", cfg.Store.TapeDepth)
	}
	if cfg.Store.FlashClear != 500*time.Millisecond {
		t.Errorf("Store.FlashClear = %v, want 500ms", cfg.Store.FlashClear)
	}
	if cfg.Metrics.Port != DefaultMetricsPort || cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics = %+v, want defaults", cfg.Metrics)
	}
}

func TestLoadWithDefaultsEmptyPath(t *testing.T) {
	cfg, err := LoadWithDefaults("")
	if err != nil {
		t.Fatalf("LoadWithDefaults(\"\") failed: %v", err)
	}
	if cfg.Feed.WSURL != DefaultWSURL {
		t.Errorf("Feed.WSURL = %q, want default", cfg.Feed.WSURL)
	}
	if len(cfg.Watch.Symbols) != 0 {
		t.Errorf("Watch.Symbols = %v, want empty", cfg.Watch.Symbols)
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Watch.Symbols = []string{"BTC"}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*WatchConfig)
	}{
		{"bad ws scheme", func(c *WatchConfig) { c.Feed.WSURL = "https://example.com" }},
		{"missing quote", func(c *WatchConfig) { c.Feed.Quote = "" }},
		{"no symbols or top", func(c *WatchConfig) { c.Watch.Symbols = nil; c.Watch.Top = 0 }},
		{"zero tape depth", func(c *WatchConfig) { c.Store.TapeDepth = 0 }},
		{"buffer size", func(c *WatchConfig) { c.Stream.BufferSize = 0 }},
		{"metrics port", func(c *WatchConfig) { c.Metrics.Port = 70000 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Watch.Symbols = []string{"BTC"}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidateTopOnly(t *testing.T) {
	cfg := Default()
	cfg.Watch.Top = 10
	if err := cfg.Validate(); err != nil {
		t.Errorf("top-only config rejected: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
