package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"marketsync/internal/metrics"
	"marketsync/internal/plan"
	"marketsync/internal/router"
	"marketsync/internal/socket"
)

// DefaultRetryDelay is the fixed wait between a socket close and the
// next connection attempt. There is no growth, jitter, or retry cap.
const DefaultRetryDelay = 3 * time.Second

// Phase is the supervisor's lifecycle phase.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseConnecting     Phase = "connecting"
	PhaseOpen           Phase = "open"
	PhaseWaitingToRetry Phase = "waiting_to_retry"
)

// Config configures a Manager.
type Config struct {
	BaseURL  string         // websocket base URL
	Quote    string         // fixed quote asset
	Symbols  []string       // base-asset tickers
	Channels []plan.Channel // channels to subscribe
	Interval string         // kline interval (coerced to >= 1m)

	RetryDelay       time.Duration // fixed reconnect delay (default 3s)
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	BufferSize       int
}

// Manager supervises one subscription set over a sequence of physical
// sockets, reconnecting indefinitely with a fixed delay.
type Manager struct {
	cfg    Config
	pl     plan.Plan
	cmd    []byte // subscribe control frame, marshaled once for exact replay
	rt     *router.Router
	logger *slog.Logger

	mu     sync.RWMutex
	phase  Phase
	client socket.Client

	connectivity chan bool

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewManager builds the subscription plan and creates a Manager. An
// invalid subscription request (empty symbol or channel set) fails
// here, synchronously, before any socket is dialed.
func NewManager(cfg Config, rt *router.Router, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	pl, err := plan.Build(plan.Request{
		BaseURL:  cfg.BaseURL,
		Quote:    cfg.Quote,
		Symbols:  cfg.Symbols,
		Channels: cfg.Channels,
		Interval: cfg.Interval,
	})
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:          cfg,
		pl:           pl,
		cmd:          pl.CommandJSON(),
		rt:           rt,
		logger:       logger.With("streams", len(pl.Streams)),
		phase:        PhaseIdle,
		connectivity: make(chan bool, 8),
	}, nil
}

// Plan returns the subscription plan the manager replays on every
// (re)connect.
func (m *Manager) Plan() plan.Plan {
	return m.pl
}

// Start begins the connect/subscribe/pump loop in the background.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run()

	m.logger.Info("stream manager started", "target", m.pl.Target)
	return nil
}

// Stop tears the manager down: the current socket is closed and every
// pending retry wait cancelled. No further connection attempt occurs.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	client := m.client
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if client != nil {
		client.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("stream manager stopped")
	case <-ctx.Done():
		m.logger.Warn("stream manager stop timed out")
	}

	m.setPhase(PhaseIdle)
	return nil
}

// Connected reports whether the feed is currently live.
func (m *Manager) Connected() bool {
	return m.CurrentPhase() == PhaseOpen
}

// CurrentPhase returns the supervisor's lifecycle phase.
func (m *Manager) CurrentPhase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// Connectivity returns a channel of live/offline transitions. Sends
// are coalesced: a slow reader misses intermediate flips, not the
// final state.
func (m *Manager) Connectivity() <-chan bool {
	return m.connectivity
}

// run is the supervisor loop.
func (m *Manager) run() {
	defer m.wg.Done()

	// Fixed delay, no exponential growth, no retry cap.
	bo := backoff.NewConstantBackOff(m.cfg.RetryDelay)

	for {
		if m.ctx.Err() != nil {
			return
		}

		m.setPhase(PhaseConnecting)

		client := socket.NewClient(socket.Config{
			URL:              m.pl.Target,
			HandshakeTimeout: m.cfg.HandshakeTimeout,
			WriteTimeout:     m.cfg.WriteTimeout,
			BufferSize:       m.cfg.BufferSize,
		}, m.logger)
		m.setClient(client)

		if err := client.Connect(m.ctx); err != nil {
			m.logger.Warn("connect failed", "error", err)
			client.Close()
			if !m.waitRetry(bo) {
				return
			}
			continue
		}

		// The exchange forgets subscriptions across reconnects; the
		// identical control frame is sent after every open.
		if err := client.Send(m.cmd); err != nil {
			m.logger.Warn("subscribe failed", "error", err)
			client.Close()
			if !m.waitRetry(bo) {
				return
			}
			continue
		}

		m.setPhase(PhaseOpen)
		m.logger.Info("subscribed", "target", m.pl.Target)

		m.pump(client)
		client.Close()

		if m.ctx.Err() != nil {
			return
		}

		m.logger.Warn("connection lost, retrying", "delay", m.cfg.RetryDelay)
		if !m.waitRetry(bo) {
			return
		}
	}
}

// pump routes frames until the connection ends or the manager stops.
func (m *Manager) pump(client socket.Client) {
	for {
		select {
		case <-m.ctx.Done():
			return

		case err := <-client.Errors():
			m.logger.Warn("socket error", "error", err)
			return

		case f := <-client.Messages():
			m.rt.Route(f.Data)
		}
	}
}

// waitRetry blocks for the fixed retry delay. Returns false when the
// manager was stopped during the wait.
func (m *Manager) waitRetry(bo backoff.BackOff) bool {
	m.setPhase(PhaseWaitingToRetry)
	metrics.Reconnects.Inc()

	select {
	case <-m.ctx.Done():
		return false
	case <-time.After(bo.NextBackOff()):
		return true
	}
}

func (m *Manager) setClient(c socket.Client) {
	m.mu.Lock()
	m.client = c
	m.mu.Unlock()
}

func (m *Manager) setPhase(p Phase) {
	m.mu.Lock()
	prev := m.phase
	m.phase = p
	m.mu.Unlock()

	wasOpen := prev == PhaseOpen
	isOpen := p == PhaseOpen
	if wasOpen == isOpen {
		return
	}

	select {
	case m.connectivity <- isOpen:
	default:
	}
}
