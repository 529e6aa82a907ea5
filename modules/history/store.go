package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Dongkey-Dev/chat-app/domain/chat"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store persists chat messages per room, ordered by timestamp.
type Store struct {
	db  *gorm.DB
	now func() time.Time

	mu   sync.Mutex
	last time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp appended messages.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a message store on top of db. Migrate must have been run.
func NewStore(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates or updates the messages table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&messageRecord{}); err != nil {
		return fmt.Errorf("failed to migrate messages: %w", err)
	}
	return nil
}

// Append persists a message and returns it with its store-assigned id and
// timestamp. Timestamps never go backwards across appends of this store.
func (s *Store) Append(ctx context.Context, roomID, sender, content string) (chat.Message, error) {
	rec := messageRecord{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Sender:    sender,
		Content:   content,
		CreatedAt: s.stamp(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return chat.Message{}, fmt.Errorf("failed to append message: %w: %w", chat.ErrStoreUnavailable, err)
	}
	return rec.toMessage(), nil
}

func (s *Store) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now().UTC()
	if at.Before(s.last) {
		at = s.last
	}
	s.last = at
	return at
}

// History returns the most recent limit messages of a room, oldest first.
// A limit of zero or less returns the whole history. Messages are ordered by
// timestamp, ties broken by insertion.
func (s *Store) History(ctx context.Context, roomID string, limit int) ([]chat.Message, error) {
	var records []messageRecord

	q := s.db.WithContext(ctx).Where("room_id = ?", roomID)
	if limit > 0 {
		q = q.Order("created_at DESC, seq DESC").Limit(limit)
	} else {
		q = q.Order("created_at ASC, seq ASC")
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load history: %w: %w", chat.ErrStoreUnavailable, err)
	}

	messages := make([]chat.Message, len(records))
	for i, rec := range records {
		messages[i] = rec.toMessage()
	}
	if limit > 0 {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	return messages, nil
}

// Latest returns the most recent message of a room, or nil if it has none.
func (s *Store) Latest(ctx context.Context, roomID string) (*chat.Message, error) {
	var rec messageRecord
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, seq DESC").
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest message: %w: %w", chat.ErrStoreUnavailable, err)
	}
	msg := rec.toMessage()
	return &msg, nil
}
