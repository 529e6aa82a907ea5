// Package events defines the chat events published on the mono event bus.
// Each event names the users it is addressed to, resolved by the publisher
// against the room's presence at the time of the operation.
package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// MessageSentEvent is emitted when a message has been persisted.
type MessageSentEvent struct {
	MessageID  string    `json:"message_id"`
	RoomID     string    `json:"room_id"`
	Sender     string    `json:"sender"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Recipients []string  `json:"recipients"`
}

// UserJoinedEvent is emitted when a user becomes active in a room.
type UserJoinedEvent struct {
	RoomID     string   `json:"room_id"`
	UserID     string   `json:"user_id"`
	Recipients []string `json:"recipients"`
}

// UserLeftEvent is emitted when a disconnected user is removed from a room.
type UserLeftEvent struct {
	RoomID     string   `json:"room_id"`
	UserID     string   `json:"user_id"`
	Recipients []string `json:"recipients"`
}

// RoomCreatedEvent is emitted when a room is created. It goes to every
// connected user.
type RoomCreatedEvent struct {
	RoomID string `json:"room_id"`
	Title  string `json:"title"`
}

// Event definitions for the chat domain.
var (
	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"chat",
		"MessageSent",
		"v1",
	)

	UserJoinedV1 = helper.EventDefinition[UserJoinedEvent](
		"chat",
		"UserJoined",
		"v1",
	)

	UserLeftV1 = helper.EventDefinition[UserLeftEvent](
		"chat",
		"UserLeft",
		"v1",
	)

	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
		"chat",
		"RoomCreated",
		"v1",
	)
)
