package market

import "time"

// FlashDirection indicates the direction of the most recent price move.
// It is transient: the store clears it back to FlashNone shortly after
// setting it.
type FlashDirection string

const (
	FlashNone FlashDirection = "none"
	FlashUp   FlashDirection = "up"
	FlashDown FlashDirection = "down"
)

// TradeSide indicates which side initiated a trade.
type TradeSide string

const (
	// SideBuy means the buyer was the taker (aggressive buy).
	SideBuy TradeSide = "buy"
	// SideSell means the buyer was the maker (aggressive sell).
	SideSell TradeSide = "sell"
)

// TickerSnapshot is the rolling 24h view of one symbol. Each inbound
// ticker event replaces it wholesale; there is no partial merge.
type TickerSnapshot struct {
	Price        float64   // Last traded price
	Change24h    float64   // Absolute 24h price change
	ChangePct24h float64   // 24h price change percent
	QuoteVol24h  float64   // 24h quote-asset volume
	High24h      float64   // 24h high
	Low24h       float64   // 24h low
	EventTime    time.Time // Exchange event timestamp
}

// Trade is a single executed trade on the tape.
type Trade struct {
	Price  float64   // Trade price
	Amount float64   // Base-asset amount
	Value  float64   // Quote value (price * amount)
	Time   time.Time // Exchange trade timestamp
	Side   TradeSide // Taker side
}

// Candle is the still-forming OHLC bar for the active interval bucket.
// Events sharing an open time overwrite it in place; a new open time
// replaces it entirely.
type Candle struct {
	OpenTime time.Time // Bucket open time
	Open     float64
	High     float64
	Low      float64
	Close    float64
}

// SymbolState is a point-in-time copy of everything the store knows
// about one symbol. Trades are ordered most-recent-first.
type SymbolState struct {
	Symbol    string
	Ticker    TickerSnapshot
	HasTicker bool
	Trades    []Trade
	Candle    Candle
	HasCandle bool
	Flash     FlashDirection
}
