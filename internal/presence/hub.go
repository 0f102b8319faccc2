package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/example/waymate/internal/models"
	"github.com/example/waymate/internal/observability"
)

// LastSeenStore records heartbeat liveness per user.
type LastSeenStore interface {
	Touch(ctx context.Context, userID string, at time.Time) error
}

// EventPublisher receives presence transitions for downstream consumers.
type EventPublisher interface {
	PublishPresence(ev models.PresenceEvent) error
}

type peer struct {
	conn Conn
	mu   sync.Mutex
}

func (p *peer) write(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(v)
}

// Hub is the server-side presence tracker: one registered connection per
// authenticated user, status_update fan-out on join/leave, heartbeat
// bookkeeping, and relay of chat-scoped frames between peers.
type Hub struct {
	logger   *slog.Logger
	lastSeen LastSeenStore
	events   EventPublisher

	mu    sync.RWMutex
	peers map[string]*peer
}

func NewHub(logger *slog.Logger, lastSeen LastSeenStore, events EventPublisher) *Hub {
	return &Hub{
		logger:   logger,
		lastSeen: lastSeen,
		events:   events,
		peers:    make(map[string]*peer),
	}
}

// Add registers a connection for a user, displacing any previous one, sends
// the newcomer a status_update per user already online, announces the user to
// everyone else, then serves the connection's read loop until it drops.
// It blocks; callers run it from the connection's handler goroutine.
func (h *Hub) Add(ctx context.Context, userID string, conn Conn) {
	p := &peer{conn: conn}

	h.mu.Lock()
	if prev, ok := h.peers[userID]; ok {
		_ = prev.conn.Close()
	}
	h.peers[userID] = p
	online := make([]string, 0, len(h.peers))
	for u := range h.peers {
		if u != userID {
			online = append(online, u)
		}
	}
	h.mu.Unlock()

	observability.UsersOnline.Set(float64(h.Count()))

	for _, u := range online {
		_ = p.write(Message{Type: TypeStatusUpdate, UserID: u, IsOnline: true})
	}
	h.broadcast(Message{Type: TypeStatusUpdate, UserID: userID, IsOnline: true}, userID)
	h.publish(userID, true)

	h.readPump(ctx, userID, p)
}

// Online returns a snapshot of registered user IDs.
func (h *Hub) Online() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.peers))
	for u := range h.peers {
		out = append(out, u)
	}
	return out
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

func (h *Hub) readPump(ctx context.Context, userID string, p *peer) {
	defer h.remove(userID, p)
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		m, err := parseMessage(data)
		if err != nil {
			observability.MessagesDropped.Inc()
			h.logger.Warn("discarding malformed frame", "user_id", userID, "error", err)
			continue
		}
		switch m.Type {
		case TypeHeartbeat:
			observability.HeartbeatsTotal.Inc()
			if h.lastSeen != nil {
				if err := h.lastSeen.Touch(ctx, userID, time.Now()); err != nil {
					h.logger.Warn("last-seen update failed", "user_id", userID, "error", err)
				}
			}
		case TypeLocationUpdate, TypeTyping, TypeStopTyping, TypeReadMessages, TypeNewMessage:
			// Location and chat traffic share the presence socket; relay
			// the original frame stamped with the sender so payload
			// fields the envelope does not model survive the hop.
			h.broadcast(stampFrame(m, userID), userID)
		default:
			observability.MessagesDropped.Inc()
			h.logger.Warn("discarding unknown frame type", "user_id", userID, "type", m.Type)
		}
	}
}

func (h *Hub) remove(userID string, p *peer) {
	h.mu.Lock()
	current, ok := h.peers[userID]
	if !ok || current != p {
		// A newer connection for this user already took over.
		h.mu.Unlock()
		return
	}
	delete(h.peers, userID)
	h.mu.Unlock()

	_ = p.conn.Close()
	observability.UsersOnline.Set(float64(h.Count()))
	h.broadcast(Message{Type: TypeStatusUpdate, UserID: userID, IsOnline: false}, userID)
	h.publish(userID, false)
	h.logger.Info("user disconnected", "user_id", userID)
}

// stampFrame rewrites the sender identity into the original frame bytes and
// translates the outbound read_messages verb into the inbound messages_read
// one, which is what receiving channels understand.
func stampFrame(m Message, senderID string) map[string]any {
	frame := map[string]any{}
	if err := json.Unmarshal(m.Raw(), &frame); err != nil {
		frame["type"] = m.Type
	}
	frame["userId"] = senderID
	if m.Type == TypeReadMessages {
		frame["type"] = TypeMessagesRead
	}
	return frame
}

func (h *Hub) broadcast(m any, except string) {
	h.mu.RLock()
	targets := make([]*peer, 0, len(h.peers))
	for u, p := range h.peers {
		if u == except {
			continue
		}
		targets = append(targets, p)
	}
	h.mu.RUnlock()
	for _, p := range targets {
		if err := p.write(m); err != nil {
			h.logger.Warn("broadcast write failed", "error", err)
		}
	}
}

func (h *Hub) publish(userID string, online bool) {
	if h.events == nil {
		return
	}
	ev := models.PresenceEvent{UserID: userID, IsOnline: online, Timestamp: time.Now().UTC()}
	if err := h.events.PublishPresence(ev); err != nil {
		h.logger.Warn("presence event publish failed", "user_id", userID, "error", err)
	}
}
