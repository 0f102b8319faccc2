package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/waymate/internal/session"
)

// fakeConn feeds scripted frames to the channel's read loop and records
// everything written to it.
type fakeConn struct {
	mu      sync.Mutex
	inbound chan []byte
	written []any
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 32)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-f.inbound
	if !ok {
		return 0, nil, io.EOF
	}
	return 1, data, nil
}

func (f *fakeConn) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("write on closed conn")
	}
	f.written = append(f.written, v)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbound)
	}
	return nil
}

func (f *fakeConn) deliver(t *testing.T, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	f.inbound <- b
}

func (f *fakeConn) writtenTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.written))
	for _, v := range f.written {
		if m, ok := v.(Message); ok {
			out = append(out, m.Type)
		}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dialTo(conn Conn) Dialer {
	return func(ctx context.Context, rawURL string) (Conn, error) { return conn, nil }
}

func connectedChannel(t *testing.T, conn *fakeConn, opts ...Option) *Channel {
	t.Helper()
	opts = append(opts, WithDialer(dialTo(conn)))
	c := NewChannel("ws://example/ws", testLogger(), opts...)
	if err := c.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestStatusUpdateConvergence(t *testing.T) {
	conn := newFakeConn()
	c := connectedChannel(t, conn)
	defer c.Close()

	// Arbitrary interleaving; only the most recent event per user counts.
	events := []struct {
		user   string
		online bool
	}{
		{"u1", true}, {"u2", true}, {"u1", false}, {"u3", true},
		{"u2", false}, {"u2", true}, {"u1", true}, {"u1", false},
	}
	for _, e := range events {
		conn.deliver(t, Message{Type: TypeStatusUpdate, UserID: e.user, IsOnline: e.online})
	}

	waitFor(t, func() bool {
		online := c.Online()
		return len(online) == 2 && online[0] == "u2" && online[1] == "u3"
	})
	if c.IsOnline("u1") {
		t.Fatal("u1's most recent event was offline")
	}
}

func TestStatusUpdateOnThenOff(t *testing.T) {
	conn := newFakeConn()
	c := connectedChannel(t, conn)
	defer c.Close()

	conn.deliver(t, Message{Type: TypeStatusUpdate, UserID: "u1", IsOnline: true})
	waitFor(t, func() bool { return c.IsOnline("u1") })

	conn.deliver(t, Message{Type: TypeStatusUpdate, UserID: "u1", IsOnline: false})
	waitFor(t, func() bool { return !c.IsOnline("u1") })

	if n := len(c.Online()); n != 0 {
		t.Fatalf("expected empty presence set, got %d entries", n)
	}
}

func TestChatMessagesDoNotDisturbPresence(t *testing.T) {
	conn := newFakeConn()
	var chatMu sync.Mutex
	var chat []string
	c := connectedChannel(t, conn, WithChatSink(func(m Message) {
		chatMu.Lock()
		chat = append(chat, m.Type)
		chatMu.Unlock()
	}))
	defer c.Close()

	conn.deliver(t, Message{Type: TypeStatusUpdate, UserID: "u1", IsOnline: true})
	conn.deliver(t, Message{Type: TypeTyping, ConversationID: "c1"})
	conn.deliver(t, Message{Type: TypeNewMessage, ConversationID: "c1"})
	conn.deliver(t, Message{Type: TypeMessagesRead, ConversationID: "c1"})

	waitFor(t, func() bool {
		chatMu.Lock()
		defer chatMu.Unlock()
		return len(chat) == 3
	})
	if !c.IsOnline("u1") {
		t.Fatal("chat traffic must not disturb presence bookkeeping")
	}
}

func TestMalformedAndUnknownMessagesDropped(t *testing.T) {
	conn := newFakeConn()
	c := connectedChannel(t, conn)
	defer c.Close()

	conn.inbound <- []byte("{not json")
	conn.deliver(t, Message{Type: "mystery"})
	conn.deliver(t, Message{Type: TypeStatusUpdate, UserID: "u1", IsOnline: true})

	// The connection survives the garbage and keeps processing.
	waitFor(t, func() bool { return c.IsOnline("u1") })
	if c.State() != StateConnected {
		t.Fatalf("state = %v, want connected", c.State())
	}
}

func TestCloseClearsPresenceAndNotifies(t *testing.T) {
	conn := newFakeConn()
	c := connectedChannel(t, conn)

	var mu sync.Mutex
	offline := map[string]bool{}
	c.Subscribe(func(userID string, online bool) {
		mu.Lock()
		if !online {
			offline[userID] = true
		}
		mu.Unlock()
	})

	conn.deliver(t, Message{Type: TypeStatusUpdate, UserID: "u1", IsOnline: true})
	conn.deliver(t, Message{Type: TypeStatusUpdate, UserID: "u2", IsOnline: true})
	waitFor(t, func() bool { return c.IsOnline("u1") && c.IsOnline("u2") })

	c.Close()

	if c.State() != StateDisconnected {
		t.Fatalf("state = %v, want disconnected", c.State())
	}
	if n := len(c.Online()); n != 0 {
		t.Fatalf("presence set must be empty after teardown, got %d", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if !offline["u1"] || !offline["u2"] {
		t.Fatal("subscribers must hear offline for every cleared user")
	}
}

func TestConnectionLossClearsSet(t *testing.T) {
	conn := newFakeConn()
	c := connectedChannel(t, conn)
	defer c.Close()

	conn.deliver(t, Message{Type: TypeStatusUpdate, UserID: "u1", IsOnline: true})
	waitFor(t, func() bool { return c.IsOnline("u1") })

	// Server drops the connection.
	_ = conn.Close()

	waitFor(t, func() bool { return c.State() == StateDisconnected })
	if n := len(c.Online()); n != 0 {
		t.Fatalf("stale online entries must not survive a disconnect, got %d", n)
	}
}

func TestLocationUpdatesAreEphemeral(t *testing.T) {
	conn := newFakeConn()
	c := connectedChannel(t, conn)

	conn.deliver(t, Message{Type: TypeLocationUpdate, UserID: "u1", Lat: 44.4268, Lng: 26.1025, Timestamp: 1700000000000})
	waitFor(t, func() bool {
		_, ok := c.Location("u1")
		return ok
	})
	loc, _ := c.Location("u1")
	if loc.Lat != 44.4268 || loc.Lng != 26.1025 {
		t.Fatalf("unexpected location %+v", loc)
	}

	// Overwritten per user on each update.
	conn.deliver(t, Message{Type: TypeLocationUpdate, UserID: "u1", Lat: 44.4300, Lng: 26.1100, Timestamp: 1700000005000})
	waitFor(t, func() bool {
		loc, _ := c.Location("u1")
		return loc.Lat == 44.4300
	})

	c.Close()
	if _, ok := c.Location("u1"); ok {
		t.Fatal("locations must not survive the connection")
	}
}

func TestHeartbeatWhileConnected(t *testing.T) {
	conn := newFakeConn()
	c := connectedChannel(t, conn, WithHeartbeatInterval(20*time.Millisecond))
	defer c.Close()

	waitFor(t, func() bool {
		for _, typ := range conn.writtenTypes() {
			if typ == TypeHeartbeat {
				return true
			}
		}
		return false
	})
}

func TestReconnectReplacesConnection(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	conns := []Conn{first, second}
	var idx int
	var mu sync.Mutex
	dial := func(ctx context.Context, rawURL string) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		c := conns[idx]
		idx++
		return c, nil
	}

	c := NewChannel("ws://example/ws", testLogger(), WithDialer(dial))
	if err := c.Connect(context.Background(), "tok1"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	first.deliver(t, Message{Type: TypeStatusUpdate, UserID: "u1", IsOnline: true})
	waitFor(t, func() bool { return c.IsOnline("u1") })

	// A second connect (new credential) must displace the first connection
	// and start from an empty set.
	if err := c.Connect(context.Background(), "tok2"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	defer c.Close()

	first.mu.Lock()
	firstClosed := first.closed
	first.mu.Unlock()
	if !firstClosed {
		t.Fatal("previous connection must be closed on reconnect")
	}
	if n := len(c.Online()); n != 0 {
		t.Fatalf("presence must reset across identity changes, got %d entries", n)
	}
}

func TestDialBackoffEventuallySucceeds(t *testing.T) {
	conn := newFakeConn()
	var mu sync.Mutex
	attempts := 0
	dial := func(ctx context.Context, rawURL string) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return nil, fmt.Errorf("transient dial failure %d", attempts)
		}
		return conn, nil
	}

	c := NewChannel("ws://example/ws", testLogger(), WithDialer(dial))
	if err := c.Connect(context.Background(), "tok"); err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	defer c.Close()
	if attempts != 3 {
		t.Fatalf("expected 3 dial attempts, got %d", attempts)
	}
}

func TestBindSessionsDrivesLifecycle(t *testing.T) {
	conn := newFakeConn()
	c := NewChannel("ws://example/ws", testLogger(), WithDialer(dialTo(conn)))

	store := session.NewStore()
	cancel := c.BindSessions(context.Background(), store)
	defer cancel()

	if c.State() != StateDisconnected {
		t.Fatal("no session yet, channel must stay down")
	}

	store.Set(session.Session{UserID: "me", Token: "tok"})
	waitFor(t, func() bool { return c.State() == StateConnected })

	conn.deliver(t, Message{Type: TypeStatusUpdate, UserID: "u1", IsOnline: true})
	waitFor(t, func() bool { return c.IsOnline("u1") })

	store.Clear()
	waitFor(t, func() bool { return c.State() == StateDisconnected })
	if n := len(c.Online()); n != 0 {
		t.Fatalf("logout must empty the presence set, got %d", n)
	}
}

func TestSendRequiresConnection(t *testing.T) {
	c := NewChannel("ws://example/ws", testLogger())
	if err := c.SendTyping("c1"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := c.SendLocation(44.4268, 26.1025); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestSendLocationWritesFrame(t *testing.T) {
	conn := newFakeConn()
	c := connectedChannel(t, conn)
	defer c.Close()

	if err := c.SendLocation(44.4268, 26.1025); err != nil {
		t.Fatalf("send location: %v", err)
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	for _, v := range conn.written {
		if m, ok := v.(Message); ok && m.Type == TypeLocationUpdate {
			if m.Lat != 44.4268 || m.Lng != 26.1025 {
				t.Fatalf("unexpected coordinates %+v", m)
			}
			if m.Timestamp <= 0 {
				t.Fatal("location frame must carry a timestamp")
			}
			return
		}
	}
	t.Fatal("no location_update frame written")
}
