package router

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/Dongkey-Dev/chat-app/domain/chat"
)

// Inbound event types.
const (
	EventJoinRoom   = "join_room"
	EventMessage    = "message"
	EventCreateRoom = "create_room"
)

// Outbound event names. Notification frames are named in the fanout
// package.
const (
	EventConnected = "connected"
	EventMessages  = "messages"
	EventError     = "error"
)

// inboundEvent is a decoded client frame. Only the fields relevant to Type
// are set.
type inboundEvent struct {
	Type    string   `json:"type"`
	RoomID  string   `json:"room_id"`
	Content jsonText `json:"content"`
	Title   jsonText `json:"title"`
}

// jsonText is a string field that records whether the client sent it as
// valid UTF-8. Decoding into a plain string silently replaces bad bytes.
type jsonText struct {
	value   string
	invalid bool
}

func (t *jsonText) UnmarshalJSON(data []byte) error {
	t.invalid = !utf8.Valid(data)
	return json.Unmarshal(data, &t.value)
}

// ConnectedEvent is the handshake sent once a session is open.
type ConnectedEvent struct {
	Event  string            `json:"event"`
	UserID string            `json:"user_id"`
	Rooms  []chat.RankedRoom `json:"rooms"`
}

// MessagesEvent carries a room's history to a joining user.
type MessagesEvent struct {
	Event    string         `json:"event"`
	Messages []chat.Message `json:"messages"`
}

// ErrorEvent reports a failed operation to the acting connection only.
type ErrorEvent struct {
	Event  string `json:"event"`
	Error  string `json:"error"`
	RoomID string `json:"room_id,omitempty"`
}

