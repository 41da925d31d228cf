package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	apperrors "github.com/smartcapture/sessionlink/internal/errors"
	"github.com/smartcapture/sessionlink/internal/metrics"
)

const (
	// defaultMaxQueueSize bounds the outbound queue while disconnected.
	defaultMaxQueueSize = 100

	// defaultMaxMessageAge is the oldest a queued message may be and
	// still be sent on drain.
	defaultMaxMessageAge = 60 * time.Second

	// defaultHeartbeatTimeout is how long the channel may stay silent
	// before it is considered dead. The monitor ticks at half this.
	defaultHeartbeatTimeout = 30 * time.Second

	// defaultReconnectBaseDelay seeds the exponential backoff.
	defaultReconnectBaseDelay = time.Second

	// defaultMaxReconnectAttempts bounds automatic reconnection before
	// connectionFailed is reported.
	defaultMaxReconnectAttempts = 10

	// reconnectMaxDelay caps the computed backoff delay.
	reconnectMaxDelay = 30 * time.Second

	// reconnectJitterMax is the upper bound of the uniform random
	// jitter added to each backoff delay so parallel workstations don't
	// retry in lockstep.
	reconnectJitterMax = time.Second

	// maxBackoffShift caps the bit-shift exponent in the backoff to
	// prevent integer overflow of time.Duration.
	maxBackoffShift = 16
)

// Config holds the tunables for a Client. Zero values fall back to the
// package defaults.
type Config struct {
	// Endpoint is the base WebSocket URL, e.g. "wss://host:port". The
	// per-session endpoint is derived as Endpoint + "/sessions/" + id.
	Endpoint string

	MaxQueueSize         int
	MaxMessageAge        time.Duration
	HeartbeatTimeout     time.Duration
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int

	// Dial overrides the transport dialer. Defaults to coder/websocket.
	Dial DialFunc
}

// Client maintains at most one logical duplex channel to a session
// endpoint.
//
// Architecture: a reader goroutine feeds inbound frames to the
// dispatcher while a heartbeat goroutine monitors liveness; both are
// bound to a per-connection context so an explicit Disconnect or a
// detected failure stops them deterministically. Reconnection is a
// single-shot timer armed with exponential backoff and jitter; the
// shouldReconnect flag guards against the timer firing after
// Disconnect.
type Client struct {
	emitter

	logger *slog.Logger
	dial   DialFunc

	endpoint             string
	heartbeatTimeout     time.Duration
	reconnectBaseDelay   time.Duration
	maxReconnectAttempts int

	queue *messageQueue

	mu              sync.Mutex
	state           ConnectionState
	sessionID       string
	connID          string
	conn            Transport
	connCancel      context.CancelFunc
	shouldReconnect bool
	attempts        int
	reconnectTimer  *time.Timer
	ctx             context.Context

	lastSeen   time.Time
	lastSeenMu sync.Mutex
}

// NewClient creates a Client from the given config.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = defaultMaxQueueSize
	}

	if cfg.MaxMessageAge <= 0 {
		cfg.MaxMessageAge = defaultMaxMessageAge
	}

	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = defaultHeartbeatTimeout
	}

	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = defaultReconnectBaseDelay
	}

	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}

	if cfg.Dial == nil {
		cfg.Dial = dialWebSocket
	}

	return &Client{
		logger:               logger,
		dial:                 cfg.Dial,
		endpoint:             cfg.Endpoint,
		heartbeatTimeout:     cfg.HeartbeatTimeout,
		reconnectBaseDelay:   cfg.ReconnectBaseDelay,
		maxReconnectAttempts: cfg.MaxReconnectAttempts,
		queue:                newMessageQueue(cfg.MaxQueueSize, cfg.MaxMessageAge),
	}
}

// On registers a handler for the given event type. Handlers run on the
// client's goroutines and must not block.
func (c *Client) On(t EventType, h Handler) {
	c.emitter.on(t, h)
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// QueueLen returns the number of messages waiting for the next drain.
func (c *Client) QueueLen() int {
	return c.queue.len()
}

// Connect opens the channel for the given session. No-op while already
// connecting or connected. The context governs the connection lifetime,
// including all reconnection attempts.
func (c *Client) Connect(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return apperrors.ErrEmptySessionID
	}

	c.mu.Lock()

	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}

	c.ctx = ctx
	c.sessionID = sessionID
	c.shouldReconnect = true
	c.attempts = 0
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	go c.establish(ctx)

	return nil
}

// Disconnect closes the channel with a normal closure and cancels all
// pending reconnection and heartbeat work. Terminal for this client; a
// new Connect call is required to resume.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.shouldReconnect = false

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}

	if c.connCancel != nil {
		c.connCancel()
		c.connCancel = nil
	}

	conn := c.conn
	c.conn = nil
	connID := c.connID
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client disconnect")
		c.emit(Event{
			Type:   EventDisconnected,
			ConnID: connID,
			Code:   websocket.StatusNormalClosure,
			Reason: "client disconnect",
		})
	}

	c.logger.Info("disconnected by client")
}

// Send transmits a message on the live channel and reports true. In any
// other state, or when the transmit fails, the message is queued for
// the next drain and Send reports false. Send never panics.
func (c *Client) Send(payload any) bool {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected && conn != nil
	ctx := c.ctx
	c.mu.Unlock()

	if !connected {
		c.queue.enqueue(payload)
		return false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// Not transient; queueing would never succeed.
		c.logger.Warn("dropping unserializable message", slog.String("error", err.Error()))
		return false
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if err := conn.Write(ctx, data); err != nil {
		c.logger.Debug("send failed, queueing", slog.String("error", err.Error()))
		c.queue.enqueue(payload)

		return false
	}

	metrics.MessagesSent.Inc()

	return true
}

// Retry makes a single immediate connection attempt outside the backoff
// schedule. Used by the recovery engine's retry-connection action and
// by manual retry from the UI.
func (c *Client) Retry(ctx context.Context) error {
	c.mu.Lock()

	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}

	if c.sessionID == "" {
		c.mu.Unlock()
		return apperrors.ErrEmptySessionID
	}

	sessionID := c.sessionID
	c.ctx = ctx
	c.shouldReconnect = true
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	conn, err := c.dial(ctx, c.endpoint+"/sessions/"+sessionID)
	if err != nil {
		c.mu.Lock()
		c.setStateLocked(StateDisconnected)
		c.mu.Unlock()

		return err
	}

	c.onOpen(ctx, conn)

	return nil
}

// establish dials the session endpoint and, on success, wires up the
// connection. On failure it routes through the close path so backoff
// reconnection applies.
func (c *Client) establish(ctx context.Context) {
	c.mu.Lock()

	if !c.shouldReconnect {
		c.mu.Unlock()
		return
	}

	url := c.endpoint + "/sessions/" + c.sessionID
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	conn, err := c.dial(ctx, url)
	if err != nil {
		c.logger.Warn("dial failed",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		c.transportError(err)
		c.handleClose(websocket.StatusAbnormalClosure, "dial failed")

		return
	}

	c.onOpen(ctx, conn)
}

// onOpen transitions to Connected, resets the backoff window, drains
// the queue and starts the reader and heartbeat goroutines.
func (c *Client) onOpen(ctx context.Context, conn Transport) {
	connCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()

	if !c.shouldReconnect {
		// Disconnect raced the dial. Drop the fresh connection.
		c.mu.Unlock()
		cancel()
		conn.Close(websocket.StatusNormalClosure, "client disconnect")

		return
	}

	c.conn = conn
	c.connCancel = cancel
	c.connID = uuid.NewString()
	c.attempts = 0
	c.setStateLocked(StateConnected)
	connID := c.connID
	sessionID := c.sessionID
	c.mu.Unlock()

	c.touchLastSeen()
	c.logger.Info("connected",
		slog.String("conn_id", connID),
		slog.String("session_id", sessionID),
	)
	c.emit(Event{Type: EventConnected, ConnID: connID})

	c.drainQueue()

	go c.readLoop(connCtx, conn)
	go c.heartbeatLoop(connCtx, conn)
}

// drainQueue flushes messages buffered during the outage, oldest first.
// Entries past maxMessageAge were already discarded by drain.
func (c *Client) drainQueue() {
	entries := c.queue.drain()
	for _, m := range entries {
		c.Send(m.payload)
	}

	if len(entries) > 0 {
		c.logger.Info("queued messages flushed", slog.Int("count", len(entries)))
	}
}

// readLoop feeds inbound frames to the dispatcher until the connection
// context is cancelled or a read error occurs.
func (c *Client) readLoop(connCtx context.Context, conn Transport) {
	for {
		data, err := conn.Read(connCtx)
		if err != nil {
			if connCtx.Err() != nil {
				// Explicit disconnect or heartbeat close already
				// handled the teardown.
				return
			}

			code := websocket.CloseStatus(err)
			if code == -1 {
				// Not a close frame: surface as a transport error,
				// then treat as an abnormal closure.
				c.transportError(err)

				code = websocket.StatusAbnormalClosure
			}

			c.handleClose(code, err.Error())

			return
		}

		c.touchLastSeen()
		c.handleInbound(data)
	}
}

// handleInbound parses one inbound frame and dispatches by envelope
// type. Parse failures are logged and dropped, never fatal and never a
// reconnect trigger.
func (c *Client) handleInbound(data []byte) {
	if !gjson.ValidBytes(data) {
		metrics.ParseFailures.Inc()
		c.logger.Debug("dropping unparseable frame", slog.Int("bytes", len(data)))

		return
	}

	typ := gjson.GetBytes(data, "type").Str

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		metrics.ParseFailures.Inc()
		c.logger.Debug("dropping unparseable frame",
			slog.Int("bytes", len(data)),
			slog.String("error", err.Error()),
		)

		return
	}

	metrics.MessagesReceived.WithLabelValues(typ).Inc()

	c.mu.Lock()
	connID := c.connID
	c.mu.Unlock()

	switch typ {
	case MsgHeartbeat:
		// Server-initiated liveness check, answered immediately.
		c.Send(heartbeatResponse{Type: MsgHeartbeatResponse, Timestamp: time.Now().UnixMilli()})

	case MsgSegmentCompleted, MsgRecordingStatus, MsgThumbnailReady,
		MsgMarkerAdded, MsgError, MsgWarning, MsgSessionInfo, MsgBufferStatus:
		c.emit(Event{Type: EventMessage, ConnID: connID, Envelope: &env})

	default:
		c.emit(Event{Type: EventUnknownMessage, ConnID: connID, Envelope: &env})
	}
}

// heartbeatLoop probes liveness at half the heartbeat timeout. Any
// inbound frame refreshes lastSeen, so a channel carrying regular
// traffic never pays for probe round-trips. A silent channel is
// force-closed so the reconnect path takes over.
func (c *Client) heartbeatLoop(connCtx context.Context, conn Transport) {
	ticker := time.NewTicker(c.heartbeatTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-connCtx.Done():
			return

		case <-ticker.C:
			c.lastSeenMu.Lock()
			elapsed := time.Since(c.lastSeen)
			c.lastSeenMu.Unlock()

			if elapsed > c.heartbeatTimeout {
				metrics.HeartbeatTimeouts.Inc()
				c.logger.Warn("connection stale, closing", slog.Duration("silent_for", elapsed))
				conn.Close(websocket.StatusGoingAway, "heartbeat timeout")
				// Synthesize a reconnect-eligible close; the going-away
				// code sent to the peer would suppress reconnection.
				c.handleClose(websocket.StatusAbnormalClosure, apperrors.ErrHeartbeatTimeout.Error())

				return
			}

			// Fire-and-forget probe; a failed send just queues it.
			c.Send(pingMessage{Type: MsgPing, Timestamp: time.Now().UnixMilli()})
		}
	}
}

// transportError transitions to Error and surfaces the raw error.
func (c *Client) transportError(err error) {
	c.mu.Lock()
	c.setStateLocked(StateError)
	connID := c.connID
	c.mu.Unlock()

	c.emit(Event{Type: EventError, ConnID: connID, Err: err})
}

// handleClose tears down the current connection, emits disconnected and
// evaluates reconnection eligibility. Safe to call from the read loop,
// the heartbeat monitor and the dial path; only the first caller for a
// given connection does the work.
func (c *Client) handleClose(code websocket.StatusCode, reason string) {
	c.mu.Lock()

	if c.connCancel != nil {
		c.connCancel()
		c.connCancel = nil
	} else if c.conn == nil && c.state == StateDisconnected {
		// Another path already handled this close.
		c.mu.Unlock()
		return
	}

	if c.conn != nil {
		c.conn.Close(code, reason)
		c.conn = nil
	}

	c.setStateLocked(StateDisconnected)
	connID := c.connID
	eligible := c.shouldReconnect && reconnectEligible(code)
	c.mu.Unlock()

	c.logger.Info("disconnected",
		slog.String("conn_id", connID),
		slog.Int("code", int(code)),
		slog.String("reason", reason),
	)
	c.emit(Event{Type: EventDisconnected, ConnID: connID, Code: code, Reason: reason})

	if eligible {
		c.scheduleReconnect()
	} else {
		c.logger.Info("close code not eligible for reconnect", slog.Int("code", int(code)))
	}
}

// scheduleReconnect arms a single-shot timer for the next connection
// attempt, growing the delay exponentially with uniform jitter. After
// maxReconnectAttempts the client stops until an explicit Connect.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()

	if !c.shouldReconnect {
		c.mu.Unlock()
		return
	}

	if c.attempts >= c.maxReconnectAttempts {
		attempts := c.attempts
		// Terminal until an explicit Connect call.
		c.shouldReconnect = false
		c.mu.Unlock()

		c.logger.Error("reconnect attempts exhausted", slog.Int("attempts", attempts))
		c.emit(Event{
			Type:     EventConnectionFailed,
			Attempts: attempts,
			Err:      apperrors.ErrReconnectExhausted,
		})

		return
	}

	c.attempts++
	attempt := c.attempts
	delay := reconnectDelay(c.reconnectBaseDelay, attempt)
	ctx := c.ctx
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()

		if !c.shouldReconnect {
			// Disconnect won the race with the timer.
			c.mu.Unlock()
			return
		}

		c.reconnectTimer = nil
		c.mu.Unlock()

		c.establish(ctx)
	})
	c.mu.Unlock()

	metrics.ReconnectAttempts.Inc()
	c.logger.Info("reconnect scheduled",
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay),
	)
}

// reconnectDelay computes the backoff for a 1-based attempt number:
// min(base * 2^(attempt-1) + jitter, 30s), jitter uniform in [0, 1s).
func reconnectDelay(base time.Duration, attempt int) time.Duration {
	shift := attempt - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}

	delay := base << shift
	if delay <= 0 || delay > reconnectMaxDelay {
		delay = reconnectMaxDelay
	}

	delay += time.Duration(rand.Int64N(int64(reconnectJitterMax))) //nolint:gosec // G404: math/rand is fine for reconnect jitter, no security impact
	if delay > reconnectMaxDelay {
		delay = reconnectMaxDelay
	}

	return delay
}

func (c *Client) setStateLocked(s ConnectionState) {
	c.state = s
	metrics.ConnectionState.Set(float64(s))
}

func (c *Client) touchLastSeen() {
	c.lastSeenMu.Lock()
	c.lastSeen = time.Now()
	c.lastSeenMu.Unlock()
}
