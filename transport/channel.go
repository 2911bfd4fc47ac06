// Package transport maintains the bidirectional channel between a client
// session and the analysis backend.
//
// The package separates transport-level concerns (connect, send, deliver,
// reconnect with backoff) from the orchestration logic that decides what to
// send and what to do with delivered results. The channel itself never
// buffers: while disconnected, queuing outbound work is the caller's job.
package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	promkit "github.com/theralink/sessionkit/metrics/prometheus"
	"github.com/theralink/sessionkit/types"
	"github.com/theralink/sessionkit/version"
)

// Default channel configuration constants.
const (
	DefaultDialTimeout    = 10 * time.Second
	DefaultWriteWait      = 10 * time.Second
	DefaultMaxMessageSize = 16 * 1024 * 1024 // 16MB

	// DefaultReconnectBase is the linear backoff unit: attempt n waits
	// n * base before redialing.
	DefaultReconnectBase = 1 * time.Second

	// DefaultMaxReconnectAttempts bounds reconnection; after this many
	// failed attempts the channel stays down and reports exhaustion.
	DefaultMaxReconnectAttempts = 5
)

// Sentinel errors reported by the channel.
var (
	// ErrNotConnected is returned by Send when the channel is not in
	// StateConnected.
	ErrNotConnected = errors.New("channel is not connected")

	// ErrChannelClosed is returned once Close has been called.
	ErrChannelClosed = errors.New("channel is closed")

	// ErrReconnectExhausted is surfaced to the handler after the final
	// failed reconnection attempt.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// ConnectionState describes the channel's lifecycle phase.
type ConnectionState int32

const (
	// StateDisconnected means no connection exists and none is being dialed.
	StateDisconnected ConnectionState = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateConnected means the channel is live and Send dispatches
	// immediately.
	StateConnected
)

// String implements fmt.Stringer.
func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Envelope is the wire framing for both directions: a named event with a
// JSON payload.
type Envelope struct {
	Event   types.EventKind `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handler receives channel lifecycle and delivery callbacks. All callbacks
// are invoked from the channel's own goroutines; implementations must not
// call back into Close from within them.
type Handler interface {
	// HandleConnected fires after every successful (re)connection. The
	// orchestrator drains its pending queue here.
	HandleConnected()

	// HandleDeliver forwards a validated inbound event verbatim.
	HandleDeliver(event types.EventKind, payload json.RawMessage)

	// HandleReconnectExhausted fires once after the final failed
	// reconnection attempt.
	HandleReconnectExhausted(err error)
}

// Logger is an optional interface for structured logging.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// noopLogger discards all log output.
type noopLogger struct{}

// Debug implements Logger.
func (noopLogger) Debug(_ string, _ ...interface{}) {}

// Info implements Logger.
func (noopLogger) Info(_ string, _ ...interface{}) {}

// Warn implements Logger.
func (noopLogger) Warn(_ string, _ ...interface{}) {}

// Error implements Logger.
func (noopLogger) Error(_ string, _ ...interface{}) {}

// ChannelConfig configures the channel behavior.
type ChannelConfig struct {
	// URL is the WebSocket endpoint URL.
	URL string

	// Headers are sent during the WebSocket handshake.
	Headers http.Header

	// DialTimeout is the handshake timeout. Defaults to DefaultDialTimeout.
	DialTimeout time.Duration

	// WriteWait is the write deadline for each message. Defaults to
	// DefaultWriteWait.
	WriteWait time.Duration

	// MaxMessageSize is the read limit. Defaults to DefaultMaxMessageSize.
	MaxMessageSize int64

	// ReconnectBase is the linear backoff unit. Defaults to
	// DefaultReconnectBase.
	ReconnectBase time.Duration

	// MaxReconnectAttempts bounds automatic reconnection. Defaults to
	// DefaultMaxReconnectAttempts.
	MaxReconnectAttempts int

	// Handler receives lifecycle and delivery callbacks. Required.
	Handler Handler

	// Logger receives debug/warn/error log messages. Optional.
	Logger Logger
}

func (c *ChannelConfig) defaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteWait == 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.ReconnectBase == 0 {
		c.ReconnectBase = DefaultReconnectBase
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
}

// Channel manages a single logical WebSocket connection with linear-backoff
// reconnection. Individual failed sends are not retried; reconnection is the
// only retry mechanism, and the handler decides what to re-queue.
type Channel struct {
	cfg ChannelConfig

	mu      sync.Mutex
	writeMu sync.Mutex // serializes writes (gorilla/websocket requirement)

	conn           *websocket.Conn
	state          ConnectionState
	attempts       int
	reconnectTimer *time.Timer
	closed         bool
}

// NewChannel creates a channel. Call Connect to establish the connection.
func NewChannel(cfg *ChannelConfig) (*Channel, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("channel handler is required")
	}
	cfg.defaults()
	return &Channel{cfg: *cfg}, nil
}

// State returns the current connection state.
func (c *Channel) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the WebSocket connection. It is idempotent: when the
// channel is already Connected (or a dial is in flight) it returns nil
// without side effects. On success it resets the reconnect-attempt counter
// and fires Handler.HandleConnected so the caller can drain queued work.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.DialTimeout,
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
	}

	headers := http.Header{}
	for k, v := range c.cfg.Headers {
		headers[k] = v
	}
	if headers.Get("User-Agent") == "" {
		headers.Set("User-Agent", version.UserAgent())
	}

	c.cfg.Logger.Debug("connecting to analysis backend", "url", c.cfg.URL)

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return fmt.Errorf("failed to connect: %w", err)
	}

	conn.SetReadLimit(c.cfg.MaxMessageSize)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrChannelClosed
	}
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.mu.Unlock()

	c.cfg.Logger.Info("analysis channel connected")

	go c.readLoop(conn)

	c.cfg.Handler.HandleConnected()
	return nil
}

// Send dispatches one event immediately. If the channel is not Connected it
// returns ErrNotConnected; the channel never buffers on the caller's behalf.
func (c *Channel) Send(event types.EventKind, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return c.sendEnvelope(&Envelope{Event: event, Payload: data})
}

func (c *Channel) sendEnvelope(env *Envelope) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	if c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// readLoop reads inbound frames from one connection until it fails or the
// channel is closed. A read failure on the current connection triggers the
// disconnect path; a stale loop left over from a previous connection exits
// silently.
func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := c.conn != conn
			c.mu.Unlock()
			if stale {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.cfg.Logger.Info("analysis channel closed by backend")
			} else {
				c.cfg.Logger.Warn("analysis channel read failed", "error", err)
			}
			c.handleDisconnect()
			return
		}

		c.deliver(data)
	}
}

// deliver validates one inbound frame and forwards it to the handler.
// Malformed frames and backend-reported errors are logged and skipped; they
// never tear down the connection.
func (c *Channel) deliver(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.cfg.Logger.Warn("discarding malformed inbound frame", "error", err)
		return
	}
	if env.Event == "" {
		c.cfg.Logger.Warn("discarding inbound frame without event name")
		return
	}
	if env.Event == types.EventError {
		c.cfg.Logger.Error("backend reported error", "payload", string(env.Payload))
		return
	}

	c.cfg.Handler.HandleDeliver(env.Event, env.Payload)
}

// handleDisconnect transitions to Disconnected and schedules the next
// reconnection attempt with linear backoff. After the final failed attempt
// it reports exhaustion instead.
func (c *Channel) handleDisconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected

	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.mu.Unlock()
		c.cfg.Logger.Error("reconnect attempts exhausted",
			"attempts", c.cfg.MaxReconnectAttempts)
		c.cfg.Handler.HandleReconnectExhausted(ErrReconnectExhausted)
		return
	}

	c.attempts++
	attempt := c.attempts
	delay := c.cfg.ReconnectBase * time.Duration(attempt)
	c.reconnectTimer = time.AfterFunc(delay, func() {
		if err := c.Connect(context.Background()); err != nil {
			if errors.Is(err, ErrChannelClosed) {
				return
			}
			promkit.RecordReconnect("failure")
			c.handleDisconnect()
		}
	})
	c.mu.Unlock()

	c.cfg.Logger.Warn("analysis channel disconnected, reconnect scheduled",
		"attempt", attempt, "maxAttempts", c.cfg.MaxReconnectAttempts, "delay", delay)
}

// Close tears down the connection and cancels any scheduled reconnection
// timer. The channel cannot be reused afterwards.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.state = StateDisconnected

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}

	if c.conn == nil {
		return nil
	}

	c.writeMu.Lock()
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, closeMsg)
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.conn = nil
	return err
}
