package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *WatchConfig) Validate() error {
	if !strings.HasPrefix(c.Feed.WSURL, "ws://") && !strings.HasPrefix(c.Feed.WSURL, "wss://") {
		return fmt.Errorf("feed.ws_url must be a ws:// or wss:// URL, got %q", c.Feed.WSURL)
	}
	if c.Feed.Quote == "" {
		return errors.New("feed.quote is required")
	}

	if c.Stream.RetryDelay < 0 {
		return errors.New("stream.retry_delay must be >= 0")
	}
	if c.Stream.BufferSize < 1 {
		return errors.New("stream.buffer_size must be >= 1")
	}

	if c.Store.TapeDepth < 1 {
		return errors.New("store.tape_depth must be >= 1")
	}
	if c.Store.FlashClear < 0 {
		return errors.New("store.flash_clear must be >= 0")
	}

	if len(c.Watch.Symbols) == 0 && c.Watch.Top == 0 {
		return errors.New("watch.symbols or watch.top is required")
	}
	if c.Watch.Top < 0 {
		return errors.New("watch.top must be >= 0")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}
