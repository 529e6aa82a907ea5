package history

import (
	"time"

	"github.com/Dongkey-Dev/chat-app/domain/chat"
)

// messageRecord is the persisted form of a chat message. Seq breaks ties
// between messages stamped with the same time.
type messageRecord struct {
	Seq       uint      `gorm:"primarykey;autoIncrement;index:idx_messages_room_time,priority:3"`
	ID        string    `gorm:"size:36;uniqueIndex;not null"`
	RoomID    string    `gorm:"size:32;index:idx_messages_room_time,priority:1;not null"`
	Sender    string    `gorm:"size:100;not null"`
	Content   string    `gorm:"size:5000;not null"`
	CreatedAt time.Time `gorm:"index:idx_messages_room_time,priority:2;not null"`
}

// TableName returns the table name for messageRecord.
func (messageRecord) TableName() string {
	return "messages"
}

func (r messageRecord) toMessage() chat.Message {
	return chat.Message{
		ID:        r.ID,
		RoomID:    r.RoomID,
		Sender:    r.Sender,
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
	}
}
