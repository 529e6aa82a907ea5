package fanout

import "time"

// Event names of the notification frames.
const (
	EventMessage     = "message"
	EventUserJoined  = "user_joined"
	EventUserLeft    = "user_left"
	EventRoomCreated = "room_created"
)

// MessageFrame is a chat message delivered to a room's active users.
type MessageFrame struct {
	Event     string    `json:"event"`
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	RoomID    string    `json:"room_id"`
	Timestamp time.Time `json:"timestamp"`
	MessageID string    `json:"message_id"`
}

// PresenceFrame announces a user joining or leaving a room.
type PresenceFrame struct {
	Event   string `json:"event"`
	RoomID  string `json:"room_id"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// RoomCreatedFrame announces a new room.
type RoomCreatedFrame struct {
	Event  string `json:"event"`
	RoomID string `json:"room_id"`
	Title  string `json:"title"`
}
