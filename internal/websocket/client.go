package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/raihanakbr/realtime-stream-client/internal/metrics"
	"github.com/raihanakbr/realtime-stream-client/internal/transcript"
)

// ErrClosed is returned by Connect when Close ran while the dial was in flight
var ErrClosed = errors.New("connection manager closed")

// ErrClosing is returned by Connect while Close is tearing the connection down
var ErrClosing = errors.New("connection manager is closing")

// WebsocketDialer opens websocket connections. *websocket.Dialer implements it.
type WebsocketDialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Timer is a pending reconnect. *time.Timer implements it.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ManagerConfig configures a Manager. Zero values select the defaults.
type ManagerConfig struct {
	URL              string
	ConnectionID     string
	ReconnectDelay   time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration

	Dialer    WebsocketDialer
	AfterFunc AfterFunc
	Logger    *slog.Logger
	Metrics   *metrics.Metrics

	// OnEvent receives recognized transcript events from the read loop.
	OnEvent func(transcript.Event)

	// OnState observes every state transition. It runs with the manager
	// lock held and must not call back into the Manager.
	OnState func(State)
}

// Manager owns the socket to the transcription service. It reconnects after
// a fixed delay whenever the connection fails or drops, until Close.
type Manager struct {
	url            string
	id             string
	dialer         WebsocketDialer
	afterFunc      AfterFunc
	reconnectDelay time.Duration
	writeTimeout   time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
	onEvent        func(transcript.Event)
	onState        func(State)

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	armed      bool
	life       context.Context
	cancel     context.CancelFunc
	stopLife   func() bool
	timer      Timer
	timerSeq   uint64
	attemptSeq uint64
	epoch      uint64
	reconnects int
}

// NewManager creates a disconnected Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultServerURL
	}
	if cfg.ConnectionID == "" {
		cfg.ConnectionID = ulid.Make().String()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		}
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = realAfterFunc
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("server URL must use ws or wss, got %q", u.Scheme)
	}
	q := u.Query()
	q.Set(ConnectionIDParam, cfg.ConnectionID)
	u.RawQuery = q.Encode()

	return &Manager{
		url:            u.String(),
		id:             cfg.ConnectionID,
		dialer:         cfg.Dialer,
		afterFunc:      cfg.AfterFunc,
		reconnectDelay: cfg.ReconnectDelay,
		writeTimeout:   cfg.WriteTimeout,
		logger:         cfg.Logger.With("connection_id", cfg.ConnectionID),
		metrics:        cfg.Metrics,
		onEvent:        cfg.OnEvent,
		onState:        cfg.OnState,
		state:          StateDisconnected,
	}, nil
}

// ID returns the connection id sent to the receiver
func (m *Manager) ID() string {
	return m.id
}

// URL returns the dial URL including the connection id
func (m *Manager) URL() string {
	return m.url
}

// State returns the current connection state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reconnects returns how many reconnect attempts have been scheduled
func (m *Manager) Reconnects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnects
}

// Connect arms auto-reconnect and dials the server. A failed dial is
// retried after the reconnect delay until Close is called or ctx is done;
// the returned error is informational. Connect returns ErrClosing while a
// Close is in progress.
//
// Calling Connect again while armed binds the manager's lifetime to the new
// ctx: cancelling an earlier ctx no longer closes it. No dial is made while a
// connection is being established or is open.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateClosing {
		m.mu.Unlock()
		return ErrClosing
	}
	if m.armed {
		m.stopLife()
	} else {
		m.armed = true
		m.life, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	}
	m.stopLife = context.AfterFunc(ctx, func() {
		_ = m.Close()
	})
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.stopTimer()
	m.mu.Unlock()

	return m.attempt()
}

// attempt dials once. It must not be called with the lock held.
func (m *Manager) attempt() error {
	m.mu.Lock()
	if !m.armed || m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.attemptSeq++
	seq := m.attemptSeq
	life := m.life
	m.setState(StateConnecting)
	m.mu.Unlock()

	m.logger.Debug("Connecting", "url", m.url)
	conn, resp, err := m.dialer.DialContext(life, m.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if seq != m.attemptSeq || m.state != StateConnecting {
		if conn != nil {
			conn.Close()
		}
		return ErrClosed
	}

	if err != nil {
		m.logger.Warn("Connection error", "error", err)
		m.setState(StateDisconnected)
		m.scheduleReconnect()
		return fmt.Errorf("failed to connect to %s: %w", m.url, err)
	}

	m.epoch++
	m.conn = conn
	m.setState(StateOpen)
	m.logger.Info("WebSocket connection established")

	go m.readLoop(conn, m.epoch)
	return nil
}

// scheduleReconnect arms the reconnect timer. Caller holds the lock.
func (m *Manager) scheduleReconnect() {
	if !m.armed || m.life.Err() != nil {
		return
	}
	m.stopTimer()
	m.reconnects++
	m.metrics.ReconnectScheduled()
	m.logger.Info("Disconnected. Trying to reconnect...", "delay", m.reconnectDelay, "attempt", m.reconnects)

	seq := m.timerSeq
	m.timer = m.afterFunc(m.reconnectDelay, func() {
		m.mu.Lock()
		if seq != m.timerSeq {
			m.mu.Unlock()
			return
		}
		m.timer = nil
		m.mu.Unlock()
		_ = m.attempt()
	})
}

// stopTimer cancels a pending reconnect. Caller holds the lock.
func (m *Manager) stopTimer() {
	m.timerSeq++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// setState records a transition. Caller holds the lock.
func (m *Manager) setState(s State) {
	if m.state == s {
		return
	}
	m.state = s
	m.metrics.SetConnectionState(int(s))
	if m.onState != nil {
		m.onState(s)
	}
}

// Send writes one binary message if the connection is open. Messages sent
// in any other state are dropped and Send reports false; nothing is queued.
// A failed write drops the connection and schedules a reconnect.
func (m *Manager) Send(msg []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateOpen || m.conn == nil {
		m.metrics.FrameDropped()
		return false
	}

	if err := m.conn.SetWriteDeadline(time.Now().Add(m.writeTimeout)); err == nil {
		err = m.conn.WriteMessage(websocket.BinaryMessage, msg)
		if err == nil {
			m.metrics.FrameSent(len(msg))
			return true
		}
		m.logger.Warn("Failed to send audio", "error", err)
	}

	m.metrics.FrameDropped()
	m.dropLocked()
	return false
}

// readLoop dispatches inbound messages until the connection fails
func (m *Manager) readLoop(conn *websocket.Conn, epoch uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			if epoch == m.epoch && m.state == StateOpen {
				m.logger.Warn("WebSocket connection closed", "error", err)
				m.dropLocked()
			}
			m.mu.Unlock()
			return
		}
		m.dispatch(data)
	}
}

// dropLocked tears down the open connection after an abrupt close.
// Caller holds the lock.
func (m *Manager) dropLocked() {
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.epoch++
	m.setState(StateDisconnected)
	m.scheduleReconnect()
}

func (m *Manager) dispatch(data []byte) {
	e, ok := transcript.ParseEvent(data)
	if !ok {
		m.metrics.MessageIgnored()
		m.logger.Debug("Ignoring unrecognized message", "size", len(data))
		return
	}
	m.metrics.TranscriptReceived(e.Kind.String())
	if m.onEvent != nil {
		m.onEvent(e)
	}
}

// Close disconnects and disables auto-reconnect until the next Connect. It
// is safe to call in any state.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.armed {
		m.armed = false
		m.cancel()
		m.stopLife()
	}
	m.stopTimer()
	m.attemptSeq++

	if m.state == StateDisconnected {
		m.mu.Unlock()
		return nil
	}

	m.setState(StateClosing)
	conn := m.conn
	m.conn = nil
	m.epoch++
	m.mu.Unlock()

	var err error
	if conn != nil {
		deadline := time.Now().Add(closeGracePeriod)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = conn.Close()
	}

	m.mu.Lock()
	if m.state == StateClosing {
		m.setState(StateDisconnected)
	}
	m.mu.Unlock()

	m.logger.Info("Connection closed")
	return err
}
