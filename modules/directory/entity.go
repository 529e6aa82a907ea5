package directory

import (
	"time"

	"github.com/Dongkey-Dev/chat-app/domain/chat"
)

type roomRecord struct {
	ID        string    `gorm:"primarykey;size:32"`
	Title     string    `gorm:"size:100;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for roomRecord.
func (roomRecord) TableName() string {
	return "rooms"
}

func (r roomRecord) toRoom() chat.Room {
	return chat.Room{ID: r.ID, Title: r.Title, CreatedAt: r.CreatedAt}
}

// participantRecord marks a user as a durable participant of a room.
type participantRecord struct {
	RoomID   string    `gorm:"primarykey;size:32"`
	UserID   string    `gorm:"primarykey;size:100;index"`
	JoinedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for participantRecord.
func (participantRecord) TableName() string {
	return "room_participants"
}
