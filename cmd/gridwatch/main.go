// Command gridwatch follows many symbols' tickers over one shared
// connection and renders them as a console table. Symbols come from
// flags, the config file, or the exchange's top gainers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"marketsync/internal/config"
	"marketsync/internal/feed"
	"marketsync/internal/market"
	"marketsync/internal/metrics"
	"marketsync/internal/stream"
	"marketsync/internal/version"
	"marketsync/internal/watch"
)

const renderInterval = time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	symbolsFlag := flag.String("symbols", "", "comma-separated base assets, e.g. BTC,ETH,SOL")
	top := flag.Int("top", 0, "follow the top N gainers instead of a fixed symbol list")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting gridwatch",
		"version", version.Version,
		"commit", version.Commit,
	)

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Flags override the file.
	if *symbolsFlag != "" {
		cfg.Watch.Symbols = strings.Split(*symbolsFlag, ",")
	}
	if *top > 0 {
		cfg.Watch.Top = *top
	}
	if len(cfg.Watch.Symbols) == 0 && cfg.Watch.Top == 0 {
		cfg.Watch.Symbols = feed.DefaultSymbols
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	symbols := cfg.Watch.Symbols
	if cfg.Watch.Top > 0 {
		symbols, err = moverSymbols(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to fetch top gainers", "error", err)
			os.Exit(1)
		}
	}

	grid, err := watch.NewGrid(watch.GridConfig{
		BaseURL: cfg.Feed.WSURL,
		RestURL: cfg.Feed.RestURL,
		Quote:   cfg.Feed.Quote,
		Symbols: symbols,
		Stream: stream.Config{
			RetryDelay:       cfg.Stream.RetryDelay,
			HandshakeTimeout: cfg.Stream.HandshakeTimeout,
			WriteTimeout:     cfg.Stream.WriteTimeout,
			BufferSize:       cfg.Stream.BufferSize,
		},
		Store: market.StoreConfig{
			TapeDepth:  cfg.Store.TapeDepth,
			FlashClear: cfg.Store.FlashClear,
		},
	}, logger)
	if err != nil {
		logger.Error("failed to create grid", "error", err)
		os.Exit(1)
	}

	if err := grid.Start(ctx); err != nil {
		logger.Error("failed to start grid", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := grid.Close(shutdownCtx); err != nil {
			logger.Warn("grid close", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		metrics.Register()
		serveMetrics(gctx, g, cfg.Metrics, logger)
	}

	g.Go(func() error {
		return renderLoop(gctx, grid)
	})
	g.Go(func() error {
		return connectivityLoop(gctx, grid.Connectivity(), logger)
	})

	logger.Info("gridwatch running", "symbols", len(symbols))

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("gridwatch failed", "error", err)
		os.Exit(1)
	}
	logger.Info("gridwatch stopped")
}

// moverSymbols resolves the top-N-gainers watchlist via REST.
func moverSymbols(ctx context.Context, cfg *config.WatchConfig, logger *slog.Logger) ([]string, error) {
	client := feed.NewClient(cfg.Feed.RestURL, cfg.Feed.Quote, feed.WithLogger(logger))

	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	gainers, err := client.TopGainers(fetchCtx, cfg.Watch.Top)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(gainers))
	for _, p := range gainers {
		symbols = append(symbols, p.Symbol)
	}
	return symbols, nil
}

// renderLoop redraws the table at most once per renderInterval, and
// only when something changed.
func renderLoop(ctx context.Context, grid *watch.Grid) error {
	tick := time.NewTicker(renderInterval)
	defer tick.Stop()

	dirty := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-grid.Updates():
			if !ok {
				return nil
			}
			dirty = true
		case <-tick.C:
			if !dirty {
				continue
			}
			dirty = false
			renderTable(grid.States())
		}
	}
}

func renderTable(states []market.SymbolState) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tNAME\tPRICE\t24H%\tHIGH\tLOW\tVOLUME")
	for _, st := range states {
		arrow := ""
		switch st.Flash {
		case market.FlashUp:
			arrow = " ▲"
		case market.FlashDown:
			arrow = " ▼"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f%s\t%+.2f%%\t%.2f\t%.2f\t%.0f\n",
			st.Symbol, feed.CoinName(st.Symbol),
			st.Ticker.Price, arrow,
			st.Ticker.ChangePct24h,
			st.Ticker.High24h, st.Ticker.Low24h,
			st.Ticker.QuoteVol24h,
		)
	}
	tw.Flush()
	fmt.Println()
}

func connectivityLoop(ctx context.Context, transitions <-chan bool, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case live, ok := <-transitions:
			if !ok {
				return nil
			}
			if live {
				logger.Info("feed connected")
			} else {
				logger.Warn("feed offline, retrying")
			}
		}
	}
}

// serveMetrics exposes the Prometheus endpoint until ctx is cancelled.
func serveMetrics(ctx context.Context, g *errgroup.Group, cfg config.MetricsConfig, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	g.Go(func() error {
		logger.Info("metrics server listening", "port", cfg.Port, "path", cfg.Path)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return ctx.Err()
	})
}
