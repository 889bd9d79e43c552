package market

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketsync/internal/metrics"
)

// DefaultTapeDepth is the bounded length of the trade tape per symbol.
const DefaultTapeDepth = 50

// DefaultFlashClear is how long a flash direction stays set before the
// store clears it back to FlashNone.
const DefaultFlashClear = 500 * time.Millisecond

// StoreConfig configures a Store.
type StoreConfig struct {
	TapeDepth  int           // Max trades kept per symbol (default 50)
	FlashClear time.Duration // Flash reset delay (default 500ms)
	NotifyBuf  int           // Per-subscriber notification buffer (default 64)
}

func (c *StoreConfig) applyDefaults() {
	if c.TapeDepth <= 0 {
		c.TapeDepth = DefaultTapeDepth
	}
	if c.FlashClear <= 0 {
		c.FlashClear = DefaultFlashClear
	}
	if c.NotifyBuf <= 0 {
		c.NotifyBuf = 64
	}
}

// symbolState is the store-internal mutable state for one symbol.
type symbolState struct {
	ticker    TickerSnapshot
	hasTicker bool
	live      bool // true once a streaming ticker event has arrived
	trades    []Trade
	candle    Candle
	hasCandle bool

	flash FlashDirection

	// previousPrice is the comparison base for the next flash decision.
	previousPrice float64
	hasPrevious   bool

	// flashTimer clears flash after FlashClear. flashGen guards against
	// a stale timer firing after a superseding update rescheduled it.
	flashTimer *time.Timer
	flashGen   uint64
}

// Store is the Reconciliation Store: per-symbol state merged from the
// REST seed and streaming events, with change notifications.
//
// All Apply* calls for a given symbol must come from a single dispatch
// goroutine; the internal lock only protects readers and timer fires.
type Store struct {
	cfg    StoreConfig
	logger *slog.Logger

	mu     sync.Mutex
	states map[string]*symbolState
	subs   map[uuid.UUID]chan string
	closed bool
}

// NewStore creates a Store.
func NewStore(cfg StoreConfig, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	return &Store{
		cfg:    cfg,
		logger: logger,
		states: make(map[string]*symbolState),
		subs:   make(map[uuid.UUID]chan string),
	}
}

// state returns the symbol's state, creating it lazily. Caller holds mu.
func (s *Store) state(symbol string) *symbolState {
	st, ok := s.states[symbol]
	if !ok {
		st = &symbolState{flash: FlashNone}
		s.states[symbol] = st
	}
	return st
}

// SeedSnapshot pre-populates a symbol from a REST 24h ticker fetched
// before the socket opened. The seed is advisory: it never overwrites
// state already produced by a streaming ticker event.
func (s *Store) SeedSnapshot(symbol string, snap TickerSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	st := s.state(symbol)
	if st.live {
		return
	}

	st.ticker = snap
	st.hasTicker = true
	st.previousPrice = snap.Price
	st.hasPrevious = true

	s.notifyLocked(symbol)
}

// ApplyTicker replaces the symbol's 24h snapshot wholesale and computes
// the flash direction against the previously stored price.
func (s *Store) ApplyTicker(symbol string, snap TickerSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	st := s.state(symbol)
	st.ticker = snap
	st.hasTicker = true
	st.live = true

	if st.hasPrevious {
		switch {
		case snap.Price > st.previousPrice:
			s.setFlashLocked(symbol, st, FlashUp)
		case snap.Price < st.previousPrice:
			s.setFlashLocked(symbol, st, FlashDown)
		}
		// Equal price leaves the current flash untouched.
	}
	st.previousPrice = snap.Price
	st.hasPrevious = true

	s.notifyLocked(symbol)
}

// ApplyTrade prepends a trade to the symbol's tape and truncates it to
// the configured depth, dropping the oldest entries.
func (s *Store) ApplyTrade(symbol string, t Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	st := s.state(symbol)
	st.trades = append(st.trades, Trade{})
	copy(st.trades[1:], st.trades)
	st.trades[0] = t
	if len(st.trades) > s.cfg.TapeDepth {
		st.trades = st.trades[:s.cfg.TapeDepth]
	}

	s.notifyLocked(symbol)
}

// ApplyKline updates the forming candle. An event for the same open
// time overwrites fields in place; a new open time replaces the candle
// entirely (the feed supplies its own open, no carry-forward).
func (s *Store) ApplyKline(symbol string, c Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	st := s.state(symbol)
	st.candle = c
	st.hasCandle = true

	s.notifyLocked(symbol)
}

// State returns a copy of the symbol's current state.
func (s *Store) State(symbol string) (SymbolState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[symbol]
	if !ok {
		return SymbolState{}, false
	}

	out := SymbolState{
		Symbol:    symbol,
		Ticker:    st.ticker,
		HasTicker: st.hasTicker,
		Candle:    st.candle,
		HasCandle: st.hasCandle,
		Flash:     st.flash,
	}
	if len(st.trades) > 0 {
		out.Trades = make([]Trade, len(st.trades))
		copy(out.Trades, st.trades)
	}
	return out, true
}

// Symbols returns all symbols the store currently tracks.
func (s *Store) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.states))
	for sym := range s.states {
		out = append(out, sym)
	}
	return out
}

// Subscribe registers a change listener. The returned channel receives
// the symbol whose state changed; notifications are dropped rather than
// blocking when the subscriber falls behind (a reader re-fetching State
// sees the latest values either way).
func (s *Store) Subscribe() (uuid.UUID, <-chan string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	ch := make(chan string, s.cfg.NotifyBuf)
	if s.closed {
		close(ch)
		return id, ch
	}
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *Store) Unsubscribe(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// Close tears the store down: pending flash timers are cancelled and
// subscriber channels closed. Late timer fires and Apply* calls after
// Close are no-ops.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	for _, st := range s.states {
		if st.flashTimer != nil {
			st.flashTimer.Stop()
			st.flashTimer = nil
		}
	}
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// setFlashLocked sets the flash direction and (re)schedules its clear.
// Caller holds mu.
func (s *Store) setFlashLocked(symbol string, st *symbolState, dir FlashDirection) {
	st.flash = dir
	metrics.FlashTransitions.WithLabelValues(string(dir)).Inc()

	if st.flashTimer != nil {
		st.flashTimer.Stop()
	}
	st.flashGen++
	gen := st.flashGen
	st.flashTimer = time.AfterFunc(s.cfg.FlashClear, func() {
		s.clearFlash(symbol, gen)
	})
}

// clearFlash resets the flash direction if the timer that fired is
// still the current one.
func (s *Store) clearFlash(symbol string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	st, ok := s.states[symbol]
	if !ok || st.flashGen != gen {
		return
	}

	st.flash = FlashNone
	st.flashTimer = nil
	s.notifyLocked(symbol)
}

// notifyLocked fans the changed symbol out to all subscribers without
// blocking. Caller holds mu.
func (s *Store) notifyLocked(symbol string) {
	for _, ch := range s.subs {
		select {
		case ch <- symbol:
		default:
		}
	}
}
