package watch

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"marketsync/internal/feed"
	"marketsync/internal/market"
	"marketsync/internal/plan"
	"marketsync/internal/router"
	"marketsync/internal/stream"
)

// WatcherConfig configures a single-symbol Watcher.
type WatcherConfig struct {
	BaseURL  string // websocket base URL
	RestURL  string // REST base URL for the seed snapshot; empty disables seeding
	Quote    string
	Symbol   string
	Interval string // kline interval (coerced to >= 1m)

	Stream stream.Config      // RetryDelay and socket tuning; URL/symbol fields are overwritten
	Store  market.StoreConfig // tape depth and flash timing
}

// Watcher follows one symbol across the ticker, trade, and kline
// channels and exposes its reconciled state reactively.
type Watcher struct {
	symbol string
	store  *market.Store
	mgr    *stream.Manager
	seed   *feed.Client
	logger *slog.Logger

	subID   uuid.UUID
	updates <-chan string
}

// NewWatcher wires a store, router, and stream manager for one symbol.
func NewWatcher(cfg WatcherConfig, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("symbol", cfg.Symbol)

	store := market.NewStore(cfg.Store, logger)
	rt := router.NewRouter(cfg.Quote, store, logger)
	rt.Restrict(cfg.Symbol)

	mcfg := cfg.Stream
	mcfg.BaseURL = cfg.BaseURL
	mcfg.Quote = cfg.Quote
	mcfg.Symbols = []string{cfg.Symbol}
	mcfg.Channels = []plan.Channel{plan.ChannelTicker, plan.ChannelTrade, plan.ChannelKline}
	mcfg.Interval = cfg.Interval

	mgr, err := stream.NewManager(mcfg, rt, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	w := &Watcher{
		symbol: normalizeSymbol(cfg.Symbol),
		store:  store,
		mgr:    mgr,
		logger: logger,
	}
	if cfg.RestURL != "" {
		w.seed = feed.NewClient(cfg.RestURL, cfg.Quote, feed.WithLogger(logger))
	}
	w.subID, w.updates = store.Subscribe()

	return w, nil
}

// Start seeds the store from REST (best effort) and opens the stream.
func (w *Watcher) Start(ctx context.Context) error {
	if w.seed != nil {
		go func() {
			snap, err := w.seed.Ticker24h(ctx, w.symbol)
			if err != nil {
				// The stream supersedes the seed anyway.
				w.logger.Warn("seed snapshot failed", "error", err)
				return
			}
			w.store.SeedSnapshot(w.symbol, snap)
		}()
	}

	return w.mgr.Start(ctx)
}

// Symbol returns the watched base-asset symbol.
func (w *Watcher) Symbol() string {
	return w.symbol
}

// State returns the symbol's current reconciled state.
func (w *Watcher) State() (market.SymbolState, bool) {
	return w.store.State(w.symbol)
}

// Updates returns the change-notification channel.
func (w *Watcher) Updates() <-chan string {
	return w.updates
}

// Connected reports whether the feed is live.
func (w *Watcher) Connected() bool {
	return w.mgr.Connected()
}

// Connectivity returns live/offline transitions.
func (w *Watcher) Connectivity() <-chan bool {
	return w.mgr.Connectivity()
}

// Close tears the watcher down: the socket is closed, retry waits are
// cancelled, and pending flash timers stopped. Late frames and timer
// fires after Close are no-ops.
func (w *Watcher) Close(ctx context.Context) error {
	err := w.mgr.Stop(ctx)
	w.store.Close()
	return err
}
