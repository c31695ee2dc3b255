package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatsync/internal/domain/entity"
	"chatsync/pkg/errors"
	"chatsync/pkg/logger"
)

// Handler processes the payload of one named inbound event. Handlers run on
// the read pump goroutine, one event at a time.
type Handler func(data json.RawMessage)

// StatusListener observes connection status transitions.
type StatusListener func(status entity.ConnectionStatus)

type Options struct {
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	HandshakeTimeout     time.Duration
}

// Client owns the single logical connection to the event stream for one
// authenticated session. It performs the handshake, re-registers the user
// after every successful reconnect, and retries a lost transport up to
// MaxReconnectAttempts times with a fixed delay.
type Client struct {
	url    string
	user   *entity.User
	dialer *websocket.Dialer
	opts   Options

	mu             sync.Mutex
	conn           *websocket.Conn
	status         entity.ConnectionStatus
	handlers       map[string]Handler
	statusListener StatusListener
	pending        map[uint64]chan bool
	nextAckID      uint64
	closed         bool

	writeMu sync.Mutex
}

func NewClient(url string, user *entity.User, opts Options) *Client {
	if opts.MaxReconnectAttempts == 0 {
		opts.MaxReconnectAttempts = 5
	}
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = time.Second
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}

	return &Client{
		url:      url,
		user:     user,
		dialer:   &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout},
		opts:     opts,
		status:   entity.ConnectionDisconnected,
		handlers: make(map[string]Handler),
		pending:  make(map[uint64]chan bool),
	}
}

// On registers the handler for a named inbound event. The last registration
// for an event wins.
func (c *Client) On(event string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = handler
}

func (c *Client) OnStatusChange(listener StatusListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusListener = listener
}

func (c *Client) Status() entity.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connect dials the server, transitions to connected and sends registerUser.
// The read pump keeps running until Close or until the reconnect bound is
// exhausted after a transport loss.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.ConnectionClosed("Client is closed", nil)
	}
	if c.conn != nil {
		c.mu.Unlock()
		return errors.Internal("Already connected", nil)
	}
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.url, c.handshakeHeader())
	if err != nil {
		return errors.ConnectionClosed("Failed to connect", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.setStatus(entity.ConnectionConnected)
	go c.run(conn)

	if err := c.register(); err != nil {
		logger.Warn("WebSocket: Failed to register user %s: %v", c.user.ID, err)
	}

	return nil
}

// Close tears the session's connection down: all handlers are released,
// pending acknowledgments fail, and no reconnection is attempted.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.handlers = make(map[string]Handler)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.failPending()
	if conn != nil {
		conn.Close()
	}
	c.setStatus(entity.ConnectionDisconnected)
}

// Emit sends a fire-and-forget event.
func (c *Client) Emit(event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Internal("Failed to encode event payload", err)
	}
	return c.write(Envelope{Event: event, Data: raw})
}

// EmitWithAck sends an event carrying an ackId and blocks until the matching
// ack arrives, the connection is lost, or ctx expires. Only the caller's
// goroutine is suspended.
func (c *Client) EmitWithAck(ctx context.Context, event string, data interface{}) (bool, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return false, errors.Internal("Failed to encode event payload", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, errors.ConnectionClosed("Client is closed", nil)
	}
	c.nextAckID++
	ackID := c.nextAckID
	ch := make(chan bool, 1)
	c.pending[ackID] = ch
	c.mu.Unlock()

	if err := c.write(Envelope{Event: event, Data: raw, AckID: ackID}); err != nil {
		c.removePending(ackID)
		return false, err
	}

	select {
	case ok := <-ch:
		return ok, nil
	case <-ctx.Done():
		c.removePending(ackID)
		return false, errors.AckTimeout("No acknowledgment for "+event, ctx.Err())
	}
}

func (c *Client) run(conn *websocket.Conn) {
	for {
		c.readLoop(conn)

		if c.isClosed() {
			return
		}

		c.setStatus(entity.ConnectionReconnecting)
		c.failPending()

		next, ok := c.redial()
		if !ok {
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			c.setStatus(entity.ConnectionDisconnected)
			return
		}
		conn = next
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !c.isClosed() && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("WebSocket: Read error: %v", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Warn("WebSocket: Dropping malformed frame: %v", err)
			continue
		}

		if env.Event == EventAck {
			c.resolveAck(env)
			continue
		}

		c.mu.Lock()
		handler := c.handlers[env.Event]
		c.mu.Unlock()

		if handler == nil {
			logger.Debug("WebSocket: No handler for event '%s'", env.Event)
			continue
		}
		handler(env.Data)
	}
}

func (c *Client) resolveAck(env Envelope) {
	var result AckResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		logger.Warn("WebSocket: Dropping malformed ack: %v", err)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[env.AckID]
	if ok {
		delete(c.pending, env.AckID)
	}
	c.mu.Unlock()

	if ok {
		ch <- result.Success
	}
}

func (c *Client) redial() (*websocket.Conn, bool) {
	for attempt := 1; attempt <= c.opts.MaxReconnectAttempts; attempt++ {
		time.Sleep(c.opts.ReconnectDelay)
		if c.isClosed() {
			return nil, false
		}

		conn, _, err := c.dialer.Dial(c.url, c.handshakeHeader())
		if err != nil {
			logger.Warn("WebSocket: Reconnect attempt %d/%d failed: %v", attempt, c.opts.MaxReconnectAttempts, err)
			continue
		}

		// Close may have raced the dial; a closed client never takes a
		// fresh connection.
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return nil, false
		}
		c.conn = conn
		c.mu.Unlock()

		c.setStatus(entity.ConnectionConnected)
		logger.Info("WebSocket: Reconnected after %d attempt(s)", attempt)

		if err := c.register(); err != nil {
			logger.Warn("WebSocket: Failed to re-register user %s: %v", c.user.ID, err)
		}
		return conn, true
	}

	logger.Error("WebSocket: Giving up after %d reconnect attempts", c.opts.MaxReconnectAttempts)
	return nil, false
}

func (c *Client) register() error {
	return c.Emit(EventRegisterUser, RegisterUserPayload{
		UserID:   c.user.ID,
		UserName: c.user.Name,
	})
}

func (c *Client) handshakeHeader() http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.user.Token)
	header.Set("X-User-ID", c.user.ID)
	header.Set("X-User-Name", c.user.Name)
	return header
}

func (c *Client) write(env Envelope) error {
	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()

	if closed || conn == nil {
		return errors.ConnectionClosed("No live connection", nil)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(env); err != nil {
		return errors.ConnectionClosed("Failed to write event", err)
	}
	return nil
}

func (c *Client) setStatus(status entity.ConnectionStatus) {
	c.mu.Lock()
	if c.status == status {
		c.mu.Unlock()
		return
	}
	c.status = status
	listener := c.statusListener
	c.mu.Unlock()

	if listener != nil {
		listener(status)
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) removePending(ackID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, ackID)
}

func (c *Client) failPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[uint64]chan bool)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- false
	}
}
