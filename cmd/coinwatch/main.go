// Command coinwatch follows a single symbol's live market data on the
// console: ticker with directional price flash, recent trades, and the
// forming one-minute candle.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
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

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	symbol := flag.String("symbol", "", "base asset to watch, e.g. BTC")
	interval := flag.String("interval", "", "kline interval (minimum 1m)")
	flag.Parse()

	// Log to stderr; stdout carries the rendered market lines.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting coinwatch",
		"version", version.Version,
		"commit", version.Commit,
	)

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Flags override the file.
	if *symbol != "" {
		cfg.Watch.Symbols = []string{*symbol}
	}
	if *interval != "" {
		cfg.Watch.Interval = *interval
	}
	if len(cfg.Watch.Symbols) == 0 {
		cfg.Watch.Symbols = []string{"BTC"}
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

	w, err := watch.NewWatcher(watch.WatcherConfig{
		BaseURL:  cfg.Feed.WSURL,
		RestURL:  cfg.Feed.RestURL,
		Quote:    cfg.Feed.Quote,
		Symbol:   cfg.Watch.Symbols[0],
		Interval: cfg.Watch.Interval,
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
		logger.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := w.Close(shutdownCtx); err != nil {
			logger.Warn("watcher close", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		metrics.Register()
		serveMetrics(gctx, g, cfg.Metrics, logger)
	}

	g.Go(func() error {
		return renderLoop(gctx, w)
	})
	g.Go(func() error {
		return connectivityLoop(gctx, w.Connectivity(), logger)
	})

	// Typing a symbol on stdin prints a one-shot 24h quote. Input is
	// debounced so only the settled line triggers a fetch.
	if cfg.Feed.RestURL != "" {
		quotes := feed.NewClient(cfg.Feed.RestURL, cfg.Feed.Quote, feed.WithLogger(logger))
		lookup := watch.NewDebouncer(watch.DefaultDebounce, func(ctx context.Context, input string) {
			fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			snap, err := quotes.Ticker24h(fetchCtx, input)
			if err != nil {
				logger.Warn("quote lookup failed", "symbol", input, "error", err)
				return
			}
			sym := strings.ToUpper(input)
			fmt.Printf("%-5s %12.2f  %+7.2f%%  (%s)\n",
				sym, snap.Price, snap.ChangePct24h, feed.CoinName(sym))
		})
		defer lookup.Close()
		g.Go(func() error {
			return quoteLoop(gctx, lookup)
		})
	}

	logger.Info("coinwatch running",
		"symbol", w.Symbol(),
		"name", feed.CoinName(w.Symbol()),
	)

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("coinwatch failed", "error", err)
		os.Exit(1)
	}
	logger.Info("coinwatch stopped")
}

// renderLoop prints one line per state change.
func renderLoop(ctx context.Context, w *watch.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-w.Updates():
			if !ok {
				return nil
			}
			if st, found := w.State(); found {
				fmt.Println(renderLine(st))
			}
		}
	}
}

// renderLine formats one symbol state as a console line.
func renderLine(st market.SymbolState) string {
	arrow := " "
	switch st.Flash {
	case market.FlashUp:
		arrow = "▲"
	case market.FlashDown:
		arrow = "▼"
	}

	line := fmt.Sprintf("%-5s %s %12.2f  %+7.2f%%  24h %.2f/%.2f  vol %.0f",
		st.Symbol, arrow,
		st.Ticker.Price, st.Ticker.ChangePct24h,
		st.Ticker.Low24h, st.Ticker.High24h,
		st.Ticker.QuoteVol24h,
	)
	if len(st.Trades) > 0 {
		last := st.Trades[0]
		line += fmt.Sprintf("  last %s %.6g @ %.2f", last.Side, last.Amount, last.Price)
	}
	if st.HasCandle {
		line += fmt.Sprintf("  1m o %.2f c %.2f", st.Candle.Open, st.Candle.Close)
	}
	return line
}

// quoteLoop feeds stdin lines to the debounced quote lookup.
func quoteLoop(ctx context.Context, lookup *watch.Debouncer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line != "" {
				lookup.Trigger(line)
			}
		}
	}
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
