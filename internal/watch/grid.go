package watch

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"marketsync/internal/feed"
	"marketsync/internal/market"
	"marketsync/internal/plan"
	"marketsync/internal/router"
	"marketsync/internal/stream"
)

// GridConfig configures a multi-symbol Grid.
type GridConfig struct {
	BaseURL string
	RestURL string // REST base URL for the batch seed; empty disables seeding
	Quote   string
	Symbols []string

	Stream stream.Config
	Store  market.StoreConfig
}

// Grid follows many symbols' ticker channels over one shared socket.
// All symbols in the grid multiplex onto a single connection rather
// than opening one socket each.
type Grid struct {
	symbols []string
	store   *market.Store
	mgr     *stream.Manager
	seed    *feed.Client
	logger  *slog.Logger

	subID   uuid.UUID
	updates <-chan string
}

// NewGrid wires one store, router, and stream manager shared by all
// the grid's symbols.
func NewGrid(cfg GridConfig, logger *slog.Logger) (*Grid, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("grid_size", len(cfg.Symbols))

	store := market.NewStore(cfg.Store, logger)
	rt := router.NewRouter(cfg.Quote, store, logger)
	rt.Restrict(cfg.Symbols...)

	mcfg := cfg.Stream
	mcfg.BaseURL = cfg.BaseURL
	mcfg.Quote = cfg.Quote
	mcfg.Symbols = cfg.Symbols
	mcfg.Channels = []plan.Channel{plan.ChannelTicker}

	mgr, err := stream.NewManager(mcfg, rt, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	symbols := make([]string, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols = append(symbols, normalizeSymbol(s))
	}

	g := &Grid{
		symbols: symbols,
		store:   store,
		mgr:     mgr,
		logger:  logger,
	}
	if cfg.RestURL != "" {
		g.seed = feed.NewClient(cfg.RestURL, cfg.Quote, feed.WithLogger(logger))
	}
	g.subID, g.updates = store.Subscribe()

	return g, nil
}

// Start seeds every symbol from one batch REST fetch (best effort) and
// opens the shared stream.
func (g *Grid) Start(ctx context.Context) error {
	if g.seed != nil {
		go func() {
			snaps, err := g.seed.Tickers24h(ctx, g.symbols)
			if err != nil {
				g.logger.Warn("batch seed failed", "error", err)
				return
			}
			for sym, snap := range snaps {
				g.store.SeedSnapshot(sym, snap)
			}
		}()
	}

	return g.mgr.Start(ctx)
}

// Symbols returns the grid's symbols in configured order.
func (g *Grid) Symbols() []string {
	return g.symbols
}

// State returns one symbol's current state.
func (g *Grid) State(symbol string) (market.SymbolState, bool) {
	return g.store.State(normalizeSymbol(symbol))
}

// States returns the grid's symbol states in configured order,
// skipping symbols with no data yet.
func (g *Grid) States() []market.SymbolState {
	out := make([]market.SymbolState, 0, len(g.symbols))
	for _, sym := range g.symbols {
		if st, ok := g.store.State(sym); ok {
			out = append(out, st)
		}
	}
	return out
}

// Updates returns the change-notification channel.
func (g *Grid) Updates() <-chan string {
	return g.updates
}

// Connected reports whether the shared feed is live.
func (g *Grid) Connected() bool {
	return g.mgr.Connected()
}

// Connectivity returns live/offline transitions.
func (g *Grid) Connectivity() <-chan bool {
	return g.mgr.Connectivity()
}

// Close tears the grid down along with its shared socket and timers.
func (g *Grid) Close(ctx context.Context) error {
	err := g.mgr.Stop(ctx)
	g.store.Close()
	return err
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
