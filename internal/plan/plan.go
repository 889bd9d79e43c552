// Package plan implements the Subscription Planner: it turns a symbol
// set and channel set into the stream names, connection target, and
// SUBSCRIBE control frame for one socket.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Channel is a feed subscription type.
type Channel string

const (
	ChannelTicker Channel = "ticker"
	ChannelTrade  Channel = "trade"
	ChannelKline  Channel = "kline"
)

// Errors returned for invalid subscription requests. These surface to
// the caller synchronously, before any socket is dialed.
var (
	ErrNoSymbols      = errors.New("subscription request has no symbols")
	ErrNoChannels     = errors.New("subscription request has no channels")
	ErrUnknownChannel = errors.New("unknown channel")
)

// DefaultInterval is the feed's minimum candle resolution. Requested
// sub-minute intervals are coerced to it.
const DefaultInterval = "1m"

// Request describes the logical subscription set for one socket.
type Request struct {
	BaseURL  string    // e.g. "wss://stream.binance.com:9443"
	Quote    string    // fixed quote asset, e.g. "USDT"
	Symbols  []string  // base-asset tickers, e.g. ["BTC", "ETH"]
	Channels []Channel // desired channels
	Interval string    // kline interval; coerced to at least 1m
}

// Command is the control frame sent immediately after the socket opens.
type Command struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// Plan is the planner output: where to connect and what to subscribe.
// Building a Plan is deterministic; the same Request always yields an
// identical Command, so it can be replayed exactly after a reconnect.
type Plan struct {
	Target   string   // websocket URL to dial
	Streams  []string // lowercase stream names
	Combined bool     // true when Target uses the combined-stream path
	Command  Command
}

// Build validates the request and produces a Plan.
func Build(req Request) (Plan, error) {
	symbols := dedup(req.Symbols)
	if len(symbols) == 0 {
		return Plan{}, ErrNoSymbols
	}
	if len(req.Channels) == 0 {
		return Plan{}, ErrNoChannels
	}

	quote := req.Quote
	if quote == "" {
		quote = "USDT"
	}
	interval := CoerceInterval(req.Interval)

	channels := dedupChannels(req.Channels)
	streams := make([]string, 0, len(symbols)*len(channels))
	for _, sym := range symbols {
		pair := strings.ToLower(sym + quote)
		for _, ch := range channels {
			switch ch {
			case ChannelTicker, ChannelTrade:
				streams = append(streams, pair+"@"+string(ch))
			case ChannelKline:
				streams = append(streams, pair+"@kline_"+interval)
			default:
				return Plan{}, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
			}
		}
	}

	p := Plan{
		Streams: streams,
		Command: Command{
			Method: "SUBSCRIBE",
			Params: streams,
			ID:     1,
		},
	}

	// A single stream uses the raw stream path; anything more is
	// multiplexed over the combined-stream endpoint.
	if len(streams) == 1 {
		p.Target = req.BaseURL + "/ws/" + streams[0]
	} else {
		p.Target = req.BaseURL + "/stream?streams=" + strings.Join(streams, "/")
		p.Combined = true
	}

	return p, nil
}

// CommandJSON marshals the control frame for sending on the wire.
func (p Plan) CommandJSON() []byte {
	data, _ := json.Marshal(p.Command)
	return data
}

// CoerceInterval maps a requested kline interval onto one the feed can
// serve. The feed's minimum candle resolution is one minute, so empty
// and sub-minute intervals become "1m"; anything else passes through.
func CoerceInterval(interval string) string {
	switch interval {
	case "", "1s", "5s", "15s", "30s":
		return DefaultInterval
	}
	return interval
}

// dedup removes duplicate symbols, preserving first-occurrence order so
// planner output stays deterministic.
func dedup(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func dedupChannels(channels []Channel) []Channel {
	seen := make(map[Channel]struct{}, len(channels))
	out := make([]Channel, 0, len(channels))
	for _, c := range channels {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
