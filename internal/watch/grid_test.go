package watch

import (
	"context"
	"testing"
	"time"

	"marketsync/internal/market"
)

const seedBatch = `[
	{"symbol":"BTCUSDT","priceChange":"1","priceChangePercent":"0.1","lastPrice":"41000","highPrice":"42000","lowPrice":"40000","quoteVolume":"100"},
	{"symbol":"ETHUSDT","priceChange":"2","priceChangePercent":"0.2","lastPrice":"2500","highPrice":"2600","lowPrice":"2400","quoteVolume":"50"}
]`

func newTestGrid(t *testing.T, server *feedServer, withSeed bool, symbols ...string) *Grid {
	t.Helper()
	cfg := GridConfig{
		BaseURL: server.wsURL(),
		Symbols: symbols,
	}
	if withSeed {
		cfg.RestURL = server.rest.URL
	}
	g, err := NewGrid(cfg, nil)
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}
	return g
}

func TestGrid_SharedSocket(t *testing.T) {
	server := newFeedServer(t, seedBatch)

	g := newTestGrid(t, server, true, "BTC", "ETH", "SOL")
	ctx := context.Background()
	if err := g.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer g.Close(ctx)

	server.push(t, `{"stream":"btcusdt@ticker","data":{"e":"24hrTicker","E":1,"s":"BTCUSDT","c":"42000","p":"1","P":"0.1","h":"43000","l":"41000","q":"5"}}`)
	server.push(t, `{"stream":"solusdt@ticker","data":{"e":"24hrTicker","E":2,"s":"SOLUSDT","c":"150","p":"1","P":"0.1","h":"160","l":"140","q":"5"}}`)

	waitState(t, func() (market.SymbolState, bool) { return g.State("SOL") },
		func(st market.SymbolState) bool { return st.Ticker.Price == 150 })

	if st, ok := g.State("BTC"); !ok || st.Ticker.Price != 42000 {
		t.Errorf("BTC state = %+v, %v", st, ok)
	}

	// Three symbols multiplex onto a single connection.
	if n := server.upgradeCount(); n != 1 {
		t.Errorf("websocket connections = %d, want 1", n)
	}
}

func TestGrid_UnsubscribedSymbolFrameDropped(t *testing.T) {
	server := newFeedServer(t, "")

	g := newTestGrid(t, server, false, "BTC", "ETH")
	ctx := context.Background()
	if err := g.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer g.Close(ctx)

	// A frame for a symbol outside the grid, then one inside it. Once
	// the second frame is visible the first has been fully processed.
	server.push(t, `{"stream":"dogeusdt@ticker","data":{"e":"24hrTicker","E":1,"s":"DOGEUSDT","c":"0.1","p":"0","P":"0","h":"0.1","l":"0.1","q":"1"}}`)
	server.push(t, `{"stream":"btcusdt@ticker","data":{"e":"24hrTicker","E":2,"s":"BTCUSDT","c":"42000","p":"1","P":"0.1","h":"43000","l":"41000","q":"5"}}`)

	waitState(t, func() (market.SymbolState, bool) { return g.State("BTC") },
		func(st market.SymbolState) bool { return st.HasTicker })

	if _, ok := g.State("DOGE"); ok {
		t.Error("frame for unsubscribed symbol mutated state")
	}
	if got := g.States(); len(got) != 1 || got[0].Symbol != "BTC" {
		t.Errorf("States() = %+v, want only BTC", got)
	}
}

func TestGrid_BatchSeedAndOrder(t *testing.T) {
	server := newFeedServer(t, seedBatch)

	g := newTestGrid(t, server, true, "eth", "btc")
	ctx := context.Background()
	if err := g.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer g.Close(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(g.States()) == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	states := g.States()
	if len(states) != 2 {
		t.Fatalf("States() = %d entries, want 2", len(states))
	}
	// Configured order, not alphabetical.
	if states[0].Symbol != "ETH" || states[1].Symbol != "BTC" {
		t.Errorf("order = %s, %s; want ETH, BTC", states[0].Symbol, states[1].Symbol)
	}
	if states[0].Ticker.Price != 2500 || states[1].Ticker.Price != 41000 {
		t.Errorf("seeded prices = %v, %v", states[0].Ticker.Price, states[1].Ticker.Price)
	}
	if states[0].Flash != market.FlashNone {
		t.Errorf("seed must not flash, got %s", states[0].Flash)
	}
}

func TestGrid_CloseClosesUpdates(t *testing.T) {
	server := newFeedServer(t, "")

	g := newTestGrid(t, server, false, "BTC")
	ctx := context.Background()
	if err := g.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := g.Close(closeCtx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case _, open := <-g.Updates():
		if open {
			// Drain a buffered notification; the channel must still close.
			for range g.Updates() {
			}
		}
	case <-time.After(time.Second):
		t.Fatal("updates channel not closed after Close")
	}
}
