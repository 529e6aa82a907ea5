package chat

import "time"

// ActiveWindow is how long after a user's last activity in a room they still
// count as active there.
const ActiveWindow = 30 * time.Minute

// Room represents a chat room.
type Room struct {
	ID        string    `json:"room_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Message represents a persisted chat message. CreatedAt is assigned by the
// message store, never by the client.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"message"`
	CreatedAt time.Time `json:"timestamp"`
}

// RankedRoom is one row of the room directory listing.
type RankedRoom struct {
	RoomID        string  `json:"room_id"`
	Title         string  `json:"title"`
	UserCount     int     `json:"user_count"`
	LatestMessage *string `json:"latest_message"`
}
