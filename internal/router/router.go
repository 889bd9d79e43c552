// Package router implements the Message Router: it decodes raw frames,
// unwraps the combined-stream envelope, extracts the symbol, and
// dispatches typed events to the Reconciliation Store.
//
// Malformed and unrecognized frames are dropped, never surfaced: the
// feed may push data before acknowledging a subscribe, and network
// jitter makes occasional garbage expected.
package router

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"marketsync/internal/market"
	"marketsync/internal/metrics"
)

// Sink receives typed events keyed by extracted symbol. Implemented by
// *market.Store.
type Sink interface {
	ApplyTicker(symbol string, snap market.TickerSnapshot)
	ApplyTrade(symbol string, t market.Trade)
	ApplyKline(symbol string, c market.Candle)
}

// Router routes raw frames from one socket to a Sink.
type Router struct {
	quote   string
	sink    Sink
	logger  *slog.Logger
	allowed map[string]struct{} // nil means every symbol passes

	mu       sync.Mutex
	received int64
	routed   int64
	decode   int64
	unknown  int64
	filtered int64
}

// NewRouter creates a Router. quote is the fixed quote asset stripped
// from the feed's composite pair identifier (e.g. "USDT").
func NewRouter(quote string, sink Sink, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if quote == "" {
		quote = "USDT"
	}
	return &Router{
		quote:  strings.ToUpper(quote),
		sink:   sink,
		logger: logger,
	}
}

// Restrict limits routing to the given symbols. Events for any other
// symbol are dropped without touching the sink. Symbols are compared
// after quote stripping, so pass base assets ("BTC", not "BTCUSDT").
func (r *Router) Restrict(symbols ...string) {
	allowed := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		allowed[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	r.allowed = allowed
}

// Route decodes and dispatches one raw frame.
func (r *Router) Route(data []byte) {
	r.count(&r.received)

	payload := data

	// Combined-stream frames wrap the event one level deep.
	var env combinedFrame
	if err := json.Unmarshal(data, &env); err != nil {
		r.dropDecode("invalid frame json", err)
		return
	}
	if env.Stream != "" && len(env.Data) > 0 {
		payload = env.Data
	}

	var head eventHeader
	if err := json.Unmarshal(payload, &head); err != nil {
		r.dropDecode("invalid event json", err)
		return
	}

	switch head.Event {
	case eventTicker:
		r.routeTicker(payload)
	case eventTrade:
		r.routeTrade(payload)
	case eventKline:
		r.routeKline(payload)
	default:
		// Subscribe acks and any event kind we did not ask for.
		r.count(&r.unknown)
		metrics.UnknownFrames.Inc()
		r.logger.Debug("dropping unrecognized frame", "event", head.Event)
	}
}

// Stats returns cumulative routing statistics.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		FramesReceived: r.received,
		EventsRouted:   r.routed,
		DecodeErrors:   r.decode,
		UnknownFrames:  r.unknown,
		FilteredFrames: r.filtered,
	}
}

// pass reports whether the symbol survives the Restrict allowlist.
func (r *Router) pass(symbol string) bool {
	if r.allowed == nil {
		return true
	}
	if _, ok := r.allowed[symbol]; ok {
		return true
	}
	r.count(&r.filtered)
	r.logger.Debug("dropping frame for unsubscribed symbol", "symbol", symbol)
	return false
}

func (r *Router) routeTicker(payload []byte) {
	var ev tickerEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.dropDecode("invalid ticker event", err)
		return
	}

	price, err1 := parseFloat(ev.Last)
	change, err2 := parseFloat(ev.Change)
	pct, err3 := parseFloat(ev.ChangePct)
	vol, err4 := parseFloat(ev.QuoteVolume)
	high, err5 := parseFloat(ev.High)
	low, err6 := parseFloat(ev.Low)
	if err := firstErr(err1, err2, err3, err4, err5, err6); err != nil {
		r.dropDecode("invalid ticker fields", err)
		return
	}

	sym := r.symbol(ev.Symbol)
	if !r.pass(sym) {
		return
	}

	r.sink.ApplyTicker(sym, market.TickerSnapshot{
		Price:        price,
		Change24h:    change,
		ChangePct24h: pct,
		QuoteVol24h:  vol,
		High24h:      high,
		Low24h:       low,
		EventTime:    time.UnixMilli(ev.EventTime),
	})
	r.routedInc("ticker")
}

func (r *Router) routeTrade(payload []byte) {
	var ev tradeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.dropDecode("invalid trade event", err)
		return
	}

	price, err1 := parseFloat(ev.Price)
	amount, err2 := parseFloat(ev.Quantity)
	if err := firstErr(err1, err2); err != nil {
		r.dropDecode("invalid trade fields", err)
		return
	}

	side := market.SideBuy
	if ev.IsBuyerMaker {
		side = market.SideSell
	}

	sym := r.symbol(ev.Symbol)
	if !r.pass(sym) {
		return
	}

	r.sink.ApplyTrade(sym, market.Trade{
		Price:  price,
		Amount: amount,
		Value:  price * amount,
		Time:   time.UnixMilli(ev.TradeTime),
		Side:   side,
	})
	r.routedInc("trade")
}

func (r *Router) routeKline(payload []byte) {
	var ev klineEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.dropDecode("invalid kline event", err)
		return
	}

	open, err1 := parseFloat(ev.Kline.Open)
	high, err2 := parseFloat(ev.Kline.High)
	low, err3 := parseFloat(ev.Kline.Low)
	closeP, err4 := parseFloat(ev.Kline.Close)
	if err := firstErr(err1, err2, err3, err4); err != nil {
		r.dropDecode("invalid kline fields", err)
		return
	}

	sym := r.symbol(ev.Symbol)
	if !r.pass(sym) {
		return
	}

	r.sink.ApplyKline(sym, market.Candle{
		OpenTime: time.UnixMilli(ev.Kline.OpenTime),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closeP,
	})
	r.routedInc("kline")
}

// symbol strips the fixed quote-asset suffix from the composite pair
// identifier ("BTCUSDT" -> "BTC"). Pairs in another quote are passed
// through uppercased.
func (r *Router) symbol(pair string) string {
	pair = strings.ToUpper(pair)
	return strings.TrimSuffix(pair, r.quote)
}

func (r *Router) dropDecode(msg string, err error) {
	r.count(&r.decode)
	metrics.DecodeErrors.Inc()
	r.logger.Debug(msg, "error", err)
}

func (r *Router) routedInc(kind string) {
	r.count(&r.routed)
	metrics.EventsRouted.WithLabelValues(kind).Inc()
}

func (r *Router) count(field *int64) {
	r.mu.Lock()
	*field++
	r.mu.Unlock()
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
