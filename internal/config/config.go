// Package config loads watcher configuration from YAML with
// environment-variable expansion, applies defaults, and validates.
package config

import "time"

// WatchConfig is the root configuration for a watcher process.
type WatchConfig struct {
	Feed    FeedConfig      `yaml:"feed"`
	Stream  StreamConfig    `yaml:"stream"`
	Store   StoreConfig     `yaml:"store"`
	Watch   WatchlistConfig `yaml:"watch"`
	Metrics MetricsConfig   `yaml:"metrics"`
}

// FeedConfig holds exchange endpoint settings.
type FeedConfig struct {
	WSURL   string `yaml:"ws_url"`
	RestURL string `yaml:"rest_url"`
	Quote   string `yaml:"quote"` // fixed quote asset, e.g. USDT
}

// StreamConfig holds socket supervision settings.
type StreamConfig struct {
	RetryDelay       time.Duration `yaml:"retry_delay"` // fixed reconnect delay
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	BufferSize       int           `yaml:"buffer_size"` // inbound frame channel
}

// StoreConfig holds reconciliation store settings.
type StoreConfig struct {
	TapeDepth  int           `yaml:"tape_depth"`  // trade tape length per symbol
	FlashClear time.Duration `yaml:"flash_clear"` // how long a flash stays set
}

// WatchlistConfig selects what to follow.
type WatchlistConfig struct {
	Symbols  []string `yaml:"symbols"`  // base-asset tickers
	Interval string   `yaml:"interval"` // kline interval (coerced to >= 1m)
	Top      int      `yaml:"top"`      // if > 0, follow the top N gainers instead of Symbols
}

// MetricsConfig holds the Prometheus exposition endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}
