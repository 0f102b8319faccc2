package presence

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/waymate/internal/models"
	"github.com/example/waymate/internal/observability"
	"github.com/example/waymate/internal/session"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

var ErrNotConnected = errors.New("presence channel not connected")

// Conn is the subset of a websocket connection the channel needs. The gorilla
// *websocket.Conn satisfies it; tests substitute fakes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

type Dialer func(ctx context.Context, rawURL string) (Conn, error)

// GorillaDialer dials with the default gorilla websocket dialer.
func GorillaDialer(ctx context.Context, rawURL string) (Conn, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

const (
	defaultHeartbeatInterval = 60 * time.Second
	dialAttempts             = 5
	dialBackoffStart         = 500 * time.Millisecond
	dialBackoffCap           = 8 * time.Second
)

// Channel maintains the single live presence connection for one client. It
// owns the PresenceSet, applies status updates in arrival order on a single
// read loop, heartbeats while connected, and clears all presence state on
// disconnect or logout so no stale online entries survive.
type Channel struct {
	endpoint  string
	dial      Dialer
	logger    *slog.Logger
	heartbeat time.Duration

	// chat receives every non-presence message delivered on the socket.
	chat func(Message)

	connectMu sync.Mutex // serializes Connect/Close

	mu        sync.Mutex
	state     State
	conn      Conn
	done      chan struct{}
	gen       int
	set       *Set
	locations map[string]models.LocationUpdate
	subs      map[int]func(userID string, online bool)
	nextSub   int

	writeMu sync.Mutex
}

type Option func(*Channel)

func WithHeartbeatInterval(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.heartbeat = d
		}
	}
}

func WithDialer(d Dialer) Option {
	return func(c *Channel) { c.dial = d }
}

// WithChatSink routes new_message/typing/stop_typing/messages_read frames to
// the chat layer instead of dropping them.
func WithChatSink(fn func(Message)) Option {
	return func(c *Channel) { c.chat = fn }
}

func NewChannel(endpoint string, logger *slog.Logger, opts ...Option) *Channel {
	c := &Channel{
		endpoint:  endpoint,
		dial:      GorillaDialer,
		logger:    logger,
		heartbeat: defaultHeartbeatInterval,
		set:       NewSet(),
		locations: make(map[string]models.LocationUpdate),
		subs:      make(map[int]func(string, bool)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect establishes the presence connection using the given session token.
// Any previous connection is closed first; there is at most one live
// connection per client. Transient dial failures are retried with bounded
// exponential backoff.
func (c *Channel) Connect(ctx context.Context, token string) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.teardown()

	c.mu.Lock()
	c.state = StateConnecting
	gen := c.gen
	c.mu.Unlock()

	target, err := c.connectURL(token)
	if err != nil {
		c.setDisconnected(gen)
		return err
	}

	conn, err := c.dialWithBackoff(ctx, target)
	if err != nil {
		c.setDisconnected(gen)
		return err
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.done = done
	c.state = StateConnected
	c.mu.Unlock()

	go c.readLoop(conn, gen)
	go c.heartbeatLoop(conn, done)

	c.logger.Info("presence channel connected")
	return nil
}

// Close tears the channel down: connection closed, heartbeat stopped,
// presence set emptied. Called on logout so no stale online status crosses an
// identity change.
func (c *Channel) Close() {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()
	c.teardown()
}

// BindSessions drives connect/teardown from session lifecycle events: a valid
// session connects (or reconnects), logout closes.
func (c *Channel) BindSessions(ctx context.Context, store *session.Store) func() {
	return store.Subscribe(func(s session.Session) {
		if s.Valid() {
			if err := c.Connect(ctx, s.Token); err != nil {
				c.logger.Error("presence connect failed", "error", err)
			}
			return
		}
		c.Close()
	})
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Online returns a snapshot of the user IDs currently online.
func (c *Channel) Online() []string { return c.set.Snapshot() }

func (c *Channel) IsOnline(userID string) bool { return c.set.Contains(userID) }

// Subscribe registers a callback invoked on every presence change. The
// returned func cancels the subscription.
func (c *Channel) Subscribe(fn func(userID string, online bool)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// SendTyping signals typing activity in a conversation.
func (c *Channel) SendTyping(conversationID string) error {
	return c.send(Message{Type: TypeTyping, ConversationID: conversationID})
}

// SendStopTyping signals the end of typing activity.
func (c *Channel) SendStopTyping(conversationID string) error {
	return c.send(Message{Type: TypeStopTyping, ConversationID: conversationID})
}

// SendReadMessages marks a conversation read.
func (c *Channel) SendReadMessages(conversationID string) error {
	return c.send(Message{Type: TypeReadMessages, ConversationID: conversationID})
}

// SendLocation shares the client's position with peers on the channel.
func (c *Channel) SendLocation(lat, lng float64) error {
	return c.send(Message{Type: TypeLocationUpdate, Lat: lat, Lng: lng, Timestamp: time.Now().UnixMilli()})
}

func (c *Channel) send(m Message) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}
	return c.writeJSON(conn, m)
}

func (c *Channel) writeJSON(conn Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (c *Channel) connectURL(token string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Channel) dialWithBackoff(ctx context.Context, rawURL string) (Conn, error) {
	delay := dialBackoffStart
	var lastErr error
	for attempt := 0; attempt < dialAttempts; attempt++ {
		conn, err := c.dial(ctx, rawURL)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		c.logger.Warn("presence dial failed", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > dialBackoffCap {
			delay = dialBackoffCap
		}
	}
	return nil, lastErr
}

// readLoop is the only goroutine that mutates presence state for its
// connection, so status updates apply strictly in arrival order.
func (c *Channel) readLoop(conn Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleConnectionLoss(gen, err)
			return
		}
		c.handleMessage(data)
	}
}

func (c *Channel) heartbeatLoop(conn Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.writeJSON(conn, Message{Type: TypeHeartbeat}); err != nil {
				c.logger.Warn("heartbeat write failed", "error", err)
			}
		}
	}
}

func (c *Channel) handleMessage(data []byte) {
	m, err := parseMessage(data)
	if err != nil {
		observability.MessagesDropped.Inc()
		c.logger.Warn("discarding malformed message", "error", err)
		return
	}
	switch m.Type {
	case TypeStatusUpdate:
		if m.UserID == "" {
			observability.MessagesDropped.Inc()
			return
		}
		observability.StatusUpdatesTotal.Inc()
		if c.set.Apply(m.UserID, m.IsOnline) {
			c.notify(m.UserID, m.IsOnline)
		}
	case TypeLocationUpdate:
		if m.UserID == "" {
			observability.MessagesDropped.Inc()
			return
		}
		c.mu.Lock()
		c.locations[m.UserID] = models.LocationUpdate{
			UserID:    m.UserID,
			Lat:       m.Lat,
			Lng:       m.Lng,
			Timestamp: time.UnixMilli(m.Timestamp),
		}
		c.mu.Unlock()
	case TypeNewMessage, TypeTyping, TypeStopTyping, TypeMessagesRead:
		if c.chat != nil {
			c.chat(m)
		}
	default:
		observability.MessagesDropped.Inc()
		c.logger.Warn("discarding unknown message type", "type", m.Type)
	}
}

func (c *Channel) notify(userID string, online bool) {
	c.mu.Lock()
	subs := make([]func(string, bool), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(userID, online)
	}
}

// handleConnectionLoss transitions to disconnected and clears the set. A
// false offline beats a stale online entry. Reconnection is not attempted
// here; it is driven by session events through BindSessions.
func (c *Channel) handleConnectionLoss(gen int, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
	c.mu.Unlock()

	c.logger.Info("presence channel disconnected", "error", cause)
	c.clearAndNotify()
}

// teardown closes the current connection, if any, without touching newer
// generations. Caller holds connectMu.
func (c *Channel) teardown() {
	c.mu.Lock()
	c.gen++
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
	c.mu.Unlock()

	c.clearAndNotify()
}

// Location returns the last received position for a peer. Locations are
// ephemeral and vanish with the connection.
func (c *Channel) Location(userID string) (models.LocationUpdate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	loc, ok := c.locations[userID]
	return loc, ok
}

func (c *Channel) clearAndNotify() {
	c.mu.Lock()
	c.locations = make(map[string]models.LocationUpdate)
	c.mu.Unlock()
	online := c.set.Snapshot()
	c.set.Clear()
	for _, u := range online {
		c.notify(u, false)
	}
}

func (c *Channel) setDisconnected(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen {
		c.state = StateDisconnected
	}
}
