package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultWSURL            = "wss://stream.binance.com:9443"
	DefaultRestURL          = "https://api.binance.com/api/v3"
	DefaultQuote            = "USDT"
	DefaultRetryDelay       = 3 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultBufferSize       = 256
	DefaultTapeDepth        = 50
	DefaultFlashClear       = 500 * time.Millisecond
	DefaultInterval         = "1m"
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
)

func (c *WatchConfig) applyDefaults() {
	// Feed defaults
	if c.Feed.WSURL == "" {
		c.Feed.WSURL = DefaultWSURL
	}
	if c.Feed.RestURL == "" {
		c.Feed.RestURL = DefaultRestURL
	}
	if c.Feed.Quote == "" {
		c.Feed.Quote = DefaultQuote
	}

	// Stream defaults
	if c.Stream.RetryDelay == 0 {
		c.Stream.RetryDelay = DefaultRetryDelay
	}
	if c.Stream.HandshakeTimeout == 0 {
		c.Stream.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultBufferSize
	}

	// Store defaults
	if c.Store.TapeDepth == 0 {
		c.Store.TapeDepth = DefaultTapeDepth
	}
	if c.Store.FlashClear == 0 {
		c.Store.FlashClear = DefaultFlashClear
	}

	// Watch defaults
	if c.Watch.Interval == "" {
		c.Watch.Interval = DefaultInterval
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
