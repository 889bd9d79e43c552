package socket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"marketsync/internal/metrics"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
)

// State is the lifecycle state of one physical connection.
type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

// Frame is one raw inbound text frame with its receive timestamp.
type Frame struct {
	Data       []byte
	ReceivedAt time.Time
}

// Config configures a Client.
type Config struct {
	URL              string        // websocket URL to dial
	HandshakeTimeout time.Duration // dial handshake timeout
	WriteTimeout     time.Duration // write deadline for sends
	BufferSize       int           // frame channel buffer size
}

// DefaultConfig returns sensible defaults for everything but URL.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// Client is a single WebSocket connection to the feed.
type Client interface {
	// Connect establishes the connection. Valid once per Client.
	Connect(ctx context.Context) error

	// Send writes raw bytes. Returns ErrNotConnected unless the
	// connection is Open; the message is never queued.
	Send(data []byte) error

	// Messages returns the inbound frame channel. Frames are delivered
	// strictly in arrival order.
	Messages() <-chan Frame

	// Errors returns a channel carrying the read error that ended the
	// connection.
	Errors() <-chan error

	// Close gracefully closes the connection.
	Close() error

	// State returns the current connection state.
	State() State
}

type client struct {
	cfg    Config
	logger *slog.Logger

	conn *websocket.Conn

	messages chan Frame
	errs     chan error
	done     chan struct{}

	writeMu sync.Mutex

	mu     sync.RWMutex
	state  State
	closed bool
}

// NewClient creates a Client. It does not dial.
func NewClient(cfg Config, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}

	return &client{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan Frame, cfg.BufferSize),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
		state:    StateConnecting,
	}
}

func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.state = StateConnecting
	c.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	// The feed pings periodically and expects a pong echo.
	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	go c.readLoop()

	c.logger.Debug("websocket connected", "url", c.cfg.URL)

	return nil
}

func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateClosed
	c.mu.Unlock()

	close(c.done)

	if c.conn != nil {
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return c.conn.Close()
	}

	return nil
}

func (c *client) Send(data []byte) error {
	c.mu.RLock()
	if c.state != StateOpen {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) Messages() <-chan Frame {
	return c.messages
}

func (c *client) Errors() <-chan error {
	return c.errs
}

func (c *client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// readLoop delivers inbound frames until the connection ends.
func (c *client) readLoop() {
	defer func() {
		c.mu.Lock()
		if c.state == StateOpen {
			c.state = StateClosed
		}
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Errors after Close() are expected and dropped.
			select {
			case <-c.done:
				return
			default:
				select {
				case c.errs <- err:
				default:
				}
				return
			}
		}

		metrics.FramesTotal.Inc()

		select {
		case c.messages <- Frame{Data: data, ReceivedAt: receivedAt}:
		case <-c.done:
			return
		default:
			metrics.BufferDrops.Inc()
			c.logger.Warn("frame buffer full, dropping frame")
		}
	}
}
