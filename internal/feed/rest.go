package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"marketsync/internal/market"
)

// APIError represents an error response from the exchange REST API.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("feed api error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Client provides access to the exchange's public REST API.
type Client struct {
	baseURL    string
	quote      string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a REST client. quote is the fixed quote asset used
// to build composite pair identifiers (default "USDT").
func NewClient(baseURL, quote string, opts ...ClientOption) *Client {
	if quote == "" {
		quote = "USDT"
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		quote:   strings.ToUpper(quote),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// restTicker is the wire shape of one 24h ticker row.
type restTicker struct {
	Symbol             string `json:"symbol"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	LastPrice          string `json:"lastPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	QuoteVolume        string `json:"quoteVolume"`
}

// PairStats is one symbol's 24h snapshot as returned by the mover queries.
type PairStats struct {
	Symbol   string // base asset, quote suffix stripped
	Name     string // display name from the catalog
	Snapshot market.TickerSnapshot
}

// Ticker24h fetches the 24h snapshot for one symbol, for seeding the
// store before the first streaming event arrives.
func (c *Client) Ticker24h(ctx context.Context, symbol string) (market.TickerSnapshot, error) {
	query := url.Values{}
	query.Set("symbol", strings.ToUpper(symbol)+c.quote)

	body, err := c.get(ctx, "/ticker/24hr", query)
	if err != nil {
		return market.TickerSnapshot{}, err
	}

	var t restTicker
	if err := json.Unmarshal(body, &t); err != nil {
		return market.TickerSnapshot{}, fmt.Errorf("parse ticker response: %w", err)
	}

	return t.snapshot()
}

// Tickers24h fetches 24h snapshots for several symbols in one request,
// keyed by base asset.
func (c *Client) Tickers24h(ctx context.Context, symbols []string) (map[string]market.TickerSnapshot, error) {
	pairs := make([]string, 0, len(symbols))
	for _, s := range symbols {
		pairs = append(pairs, strings.ToUpper(s)+c.quote)
	}
	pairsJSON, _ := json.Marshal(pairs)

	query := url.Values{}
	query.Set("symbols", string(pairsJSON))

	body, err := c.get(ctx, "/ticker/24hr", query)
	if err != nil {
		return nil, err
	}

	var rows []restTicker
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse tickers response: %w", err)
	}

	out := make(map[string]market.TickerSnapshot, len(rows))
	for _, row := range rows {
		snap, err := row.snapshot()
		if err != nil {
			c.logger.Debug("skipping unparseable ticker row", "symbol", row.Symbol, "error", err)
			continue
		}
		out[strings.TrimSuffix(row.Symbol, c.quote)] = snap
	}
	return out, nil
}

// TopGainers returns the pairs with the highest 24h percent change
// among the 50 highest-volume pairs in the client's quote asset.
func (c *Client) TopGainers(ctx context.Context, limit int) ([]PairStats, error) {
	return c.movers(ctx, limit, func(a, b PairStats) bool {
		return a.Snapshot.ChangePct24h > b.Snapshot.ChangePct24h
	})
}

// TopLosers returns the pairs with the lowest 24h percent change among
// the 50 highest-volume pairs in the client's quote asset.
func (c *Client) TopLosers(ctx context.Context, limit int) ([]PairStats, error) {
	return c.movers(ctx, limit, func(a, b PairStats) bool {
		return a.Snapshot.ChangePct24h < b.Snapshot.ChangePct24h
	})
}

// movers fetches the full 24h ticker table, keeps the 50 highest-volume
// pairs in the quote asset, and returns the top entries by the given
// ordering. Leveraged UP/DOWN tokens are excluded.
func (c *Client) movers(ctx context.Context, limit int, less func(a, b PairStats) bool) ([]PairStats, error) {
	if limit <= 0 {
		limit = 10
	}

	body, err := c.get(ctx, "/ticker/24hr", nil)
	if err != nil {
		return nil, err
	}

	var rows []restTicker
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse tickers response: %w", err)
	}

	stats := make([]PairStats, 0, len(rows))
	for _, row := range rows {
		if !strings.HasSuffix(row.Symbol, c.quote) {
			continue
		}
		base := strings.TrimSuffix(row.Symbol, c.quote)
		if base == "" || strings.Contains(base, "UP") || strings.Contains(base, "DOWN") {
			continue
		}
		snap, err := row.snapshot()
		if err != nil {
			continue
		}
		stats = append(stats, PairStats{
			Symbol:   base,
			Name:     CoinName(base),
			Snapshot: snap,
		})
	}

	// Rank by volume first so movers come from liquid pairs only.
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Snapshot.QuoteVol24h > stats[j].Snapshot.QuoteVol24h
	})
	if len(stats) > 50 {
		stats = stats[:50]
	}

	sort.Slice(stats, func(i, j int) bool {
		return less(stats[i], stats[j])
	})
	if len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: body}
	}

	return body, nil
}

func (t restTicker) snapshot() (market.TickerSnapshot, error) {
	price, err1 := strconv.ParseFloat(t.LastPrice, 64)
	change, err2 := strconv.ParseFloat(t.PriceChange, 64)
	pct, err3 := strconv.ParseFloat(t.PriceChangePercent, 64)
	high, err4 := strconv.ParseFloat(t.HighPrice, 64)
	low, err5 := strconv.ParseFloat(t.LowPrice, 64)
	vol, err6 := strconv.ParseFloat(t.QuoteVolume, 64)
	for _, err := range []error{err1, err2, err3, err4, err5, err6} {
		if err != nil {
			return market.TickerSnapshot{}, fmt.Errorf("ticker %s: %w", t.Symbol, err)
		}
	}

	return market.TickerSnapshot{
		Price:        price,
		Change24h:    change,
		ChangePct24h: pct,
		High24h:      high,
		Low24h:       low,
		QuoteVol24h:  vol,
		EventTime:    time.Now(),
	}, nil
}
