package router

import (
	"testing"
	"time"

	"marketsync/internal/market"
)

// recordingSink captures dispatched events for assertions.
type recordingSink struct {
	tickers map[string][]market.TickerSnapshot
	trades  map[string][]market.Trade
	klines  map[string][]market.Candle
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		tickers: make(map[string][]market.TickerSnapshot),
		trades:  make(map[string][]market.Trade),
		klines:  make(map[string][]market.Candle),
	}
}

func (s *recordingSink) ApplyTicker(symbol string, snap market.TickerSnapshot) {
	s.tickers[symbol] = append(s.tickers[symbol], snap)
}

func (s *recordingSink) ApplyTrade(symbol string, t market.Trade) {
	s.trades[symbol] = append(s.trades[symbol], t)
}

func (s *recordingSink) ApplyKline(symbol string, c market.Candle) {
	s.klines[symbol] = append(s.klines[symbol], c)
}

func TestRouter_TickerEvent(t *testing.T) {
	sink := newRecordingSink()
	r := NewRouter("USDT", sink, nil)

	r.Route([]byte(`{
		"e":"24hrTicker","E":1700000000123,"s":"BTCUSDT",
		"c":"42000.50","p":"-1200.10","P":"-2.78",
		"h":"43500.00","l":"41800.00","q":"1234567.89"
	}`))

	got := sink.tickers["BTC"]
	if len(got) != 1 {
		t.Fatalf("tickers for BTC = %d, want 1", len(got))
	}
	snap := got[0]
	if snap.Price != 42000.50 {
		t.Errorf("Price = %v", snap.Price)
	}
	if snap.Change24h != -1200.10 || snap.ChangePct24h != -2.78 {
		t.Errorf("Change = %v / %v", snap.Change24h, snap.ChangePct24h)
	}
	if snap.High24h != 43500 || snap.Low24h != 41800 {
		t.Errorf("High/Low = %v / %v", snap.High24h, snap.Low24h)
	}
	if snap.QuoteVol24h != 1234567.89 {
		t.Errorf("QuoteVol24h = %v", snap.QuoteVol24h)
	}
	if !snap.EventTime.Equal(time.UnixMilli(1700000000123)) {
		t.Errorf("EventTime = %v", snap.EventTime)
	}
}

func TestRouter_CombinedEnvelopeUnwrapped(t *testing.T) {
	sink := newRecordingSink()
	r := NewRouter("USDT", sink, nil)

	r.Route([]byte(`{
		"stream":"ethusdt@ticker",
		"data":{"e":"24hrTicker","E":1,"s":"ETHUSDT","c":"2500","p":"1","P":"0.1","h":"2600","l":"2400","q":"99"}
	}`))

	if len(sink.tickers["ETH"]) != 1 {
		t.Fatalf("combined envelope not unwrapped: %v", sink.tickers)
	}
}

func TestRouter_TradeEventSides(t *testing.T) {
	sink := newRecordingSink()
	r := NewRouter("USDT", sink, nil)

	// m=false: buyer is taker (aggressive buy).
	r.Route([]byte(`{"e":"trade","s":"BTCUSDT","p":"100.0","q":"0.5","T":1700000000456,"m":false}`))
	// m=true: buyer is maker (aggressive sell).
	r.Route([]byte(`{"e":"trade","s":"BTCUSDT","p":"99.0","q":"2","T":1700000000789,"m":true}`))

	trades := sink.trades["BTC"]
	if len(trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(trades))
	}
	if trades[0].Side != market.SideBuy {
		t.Errorf("trade[0].Side = %s, want buy", trades[0].Side)
	}
	if trades[0].Value != 50 {
		t.Errorf("trade[0].Value = %v, want 50", trades[0].Value)
	}
	if trades[1].Side != market.SideSell {
		t.Errorf("trade[1].Side = %s, want sell", trades[1].Side)
	}
	if !trades[1].Time.Equal(time.UnixMilli(1700000000789)) {
		t.Errorf("trade[1].Time = %v", trades[1].Time)
	}
}

func TestRouter_KlineEvent(t *testing.T) {
	sink := newRecordingSink()
	r := NewRouter("USDT", sink, nil)

	r.Route([]byte(`{
		"e":"kline","s":"SOLUSDT",
		"k":{"t":1700000040000,"o":"60.1","h":"60.9","l":"59.8","c":"60.5"}
	}`))

	klines := sink.klines["SOL"]
	if len(klines) != 1 {
		t.Fatalf("klines = %d, want 1", len(klines))
	}
	c := klines[0]
	if !c.OpenTime.Equal(time.UnixMilli(1700000040000)) {
		t.Errorf("OpenTime = %v", c.OpenTime)
	}
	if c.Open != 60.1 || c.High != 60.9 || c.Low != 59.8 || c.Close != 60.5 {
		t.Errorf("candle = %+v", c)
	}
}

func TestRouter_DropsMalformedAndUnknown(t *testing.T) {
	sink := newRecordingSink()
	r := NewRouter("USDT", sink, nil)

	frames := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"result":null,"id":1}`),                                       // subscribe ack
		[]byte(`{"e":"depthUpdate","s":"BTCUSDT"}`),                            // unsubscribed kind
		[]byte(`{"e":"24hrTicker","s":"BTCUSDT","c":"not-a-number"}`),          // bad field
		[]byte(`{"e":"trade","s":"BTCUSDT","p":"1","q":"oops","T":1}`),         // bad field
		[]byte(`{"stream":"x@kline_1m","data":{"e":"kline","k":{"o":"bad"}}}`), // bad nested
	}
	for _, f := range frames {
		r.Route(f)
	}

	if len(sink.tickers)+len(sink.trades)+len(sink.klines) != 0 {
		t.Errorf("bad frames reached the sink: %v %v %v", sink.tickers, sink.trades, sink.klines)
	}

	stats := r.Stats()
	if stats.FramesReceived != int64(len(frames)) {
		t.Errorf("FramesReceived = %d, want %d", stats.FramesReceived, len(frames))
	}
	if stats.EventsRouted != 0 {
		t.Errorf("EventsRouted = %d, want 0", stats.EventsRouted)
	}
	if stats.DecodeErrors == 0 || stats.UnknownFrames == 0 {
		t.Errorf("stats = %+v, want both decode and unknown drops counted", stats)
	}
}

func TestRouter_SymbolExtraction(t *testing.T) {
	tests := []struct {
		quote string
		pair  string
		want  string
	}{
		{"USDT", "BTCUSDT", "BTC"},
		{"USDT", "btcusdt", "BTC"},
		{"BUSD", "ETHBUSD", "ETH"},
		{"USDT", "ETHBTC", "ETHBTC"}, // foreign quote passes through
	}
	for _, tt := range tests {
		r := NewRouter(tt.quote, newRecordingSink(), nil)
		if got := r.symbol(tt.pair); got != tt.want {
			t.Errorf("symbol(%q) with quote %q = %q, want %q", tt.pair, tt.quote, got, tt.want)
		}
	}
}

func TestRouter_StatsCountRouted(t *testing.T) {
	sink := newRecordingSink()
	r := NewRouter("USDT", sink, nil)

	r.Route([]byte(`{"e":"trade","s":"BTCUSDT","p":"1","q":"1","T":1,"m":false}`))
	r.Route([]byte(`{"e":"trade","s":"BTCUSDT","p":"2","q":"1","T":2,"m":false}`))

	stats := r.Stats()
	if stats.EventsRouted != 2 {
		t.Errorf("EventsRouted = %d, want 2", stats.EventsRouted)
	}
}

func TestRouter_RestrictDropsOtherSymbols(t *testing.T) {
	sink := newRecordingSink()
	r := NewRouter("USDT", sink, nil)
	r.Restrict("btc", "ETH")

	r.Route([]byte(`{"stream":"btcusdt@ticker","data":{"e":"24hrTicker","E":1,"s":"BTCUSDT","c":"1","p":"0","P":"0","h":"1","l":"1","q":"1"}}`))
	r.Route([]byte(`{"stream":"solusdt@ticker","data":{"e":"24hrTicker","E":1,"s":"SOLUSDT","c":"2","p":"0","P":"0","h":"2","l":"2","q":"2"}}`))
	r.Route([]byte(`{"e":"trade","s":"DOGEUSDT","p":"1","q":"1","T":1,"m":false}`))
	r.Route([]byte(`{"e":"trade","s":"ETHUSDT","p":"3000","q":"1","T":1,"m":false}`))

	if len(sink.tickers["BTC"]) != 1 {
		t.Errorf("BTC tickers = %d, want 1", len(sink.tickers["BTC"]))
	}
	if len(sink.tickers["SOL"]) != 0 || len(sink.trades["DOGE"]) != 0 {
		t.Error("events for unsubscribed symbols reached the sink")
	}
	if len(sink.trades["ETH"]) != 1 {
		t.Errorf("ETH trades = %d, want 1", len(sink.trades["ETH"]))
	}

	stats := r.Stats()
	if stats.FilteredFrames != 2 {
		t.Errorf("FilteredFrames = %d, want 2", stats.FilteredFrames)
	}
	if stats.EventsRouted != 2 {
		t.Errorf("EventsRouted = %d, want 2", stats.EventsRouted)
	}
}
