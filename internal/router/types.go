package router

import "encoding/json"

// combinedFrame is the one-level envelope used by the combined-stream
// endpoint: {"stream": "...", "data": {...}}.
type combinedFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// eventHeader carries the discriminant shared by every data event.
type eventHeader struct {
	Event string `json:"e"`
}

// Event kinds the feed emits on the subscribed channels.
const (
	eventTicker = "24hrTicker"
	eventTrade  = "trade"
	eventKline  = "kline"
)

// tickerEvent is a 24h rolling-window ticker update.
type tickerEvent struct {
	Event       string `json:"e"` // "24hrTicker"
	EventTime   int64  `json:"E"` // Event time (ms)
	Symbol      string `json:"s"` // Composite pair, e.g. "BTCUSDT"
	Last        string `json:"c"` // Last price
	Change      string `json:"p"` // 24h absolute price change
	ChangePct   string `json:"P"` // 24h price change percent
	High        string `json:"h"` // 24h high
	Low         string `json:"l"` // 24h low
	QuoteVolume string `json:"q"` // 24h quote-asset volume
}

// tradeEvent is one executed trade.
type tradeEvent struct {
	Event        string `json:"e"` // "trade"
	Symbol       string `json:"s"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"` // Trade time (ms)
	IsBuyerMaker bool   `json:"m"` // true = buyer is maker (aggressive sell)
}

// klineEvent is an update for the still-forming candle.
type klineEvent struct {
	Event  string `json:"e"` // "kline"
	Symbol string `json:"s"`
	Kline  struct {
		OpenTime int64  `json:"t"` // Bucket open time (ms)
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
	} `json:"k"`
}

// Stats contains runtime routing statistics.
type Stats struct {
	FramesReceived int64
	EventsRouted   int64
	DecodeErrors   int64
	UnknownFrames  int64
	FilteredFrames int64
}
