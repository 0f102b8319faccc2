package presence

import "encoding/json"

// Socket message vocabulary. Presence consumes status_update; the chat types
// travel over the same connection and are relayed, never dropped.
const (
	TypeHeartbeat      = "heartbeat"
	TypeStatusUpdate   = "status_update"
	TypeLocationUpdate = "location_update"
	TypeNewMessage     = "new_message"
	TypeTyping         = "typing"
	TypeStopTyping     = "stop_typing"
	TypeMessagesRead   = "messages_read"
	TypeReadMessages   = "read_messages"
)

// Message is the JSON envelope for every frame on the presence socket.
// Fields beyond Type are populated per message kind.
type Message struct {
	Type           string  `json:"type"`
	UserID         string  `json:"userId,omitempty"`
	IsOnline       bool    `json:"isOnline,omitempty"`
	ConversationID string  `json:"conversationId,omitempty"`
	Lat            float64 `json:"lat,omitempty"`
	Lng            float64 `json:"lng,omitempty"`
	Timestamp      int64   `json:"timestamp,omitempty"`

	// raw keeps the full frame so chat messages can be relayed untouched.
	raw json.RawMessage
}

func parseMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	m.raw = append(json.RawMessage(nil), data...)
	return m, nil
}

// Raw returns the original frame bytes.
func (m Message) Raw() json.RawMessage { return m.raw }
