package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dongkey-Dev/chat-app/domain/chat"
	nanoid "github.com/jaevor/go-nanoid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// roomIDLength is the length of generated room identifiers.
const roomIDLength = 21

// Directory is the durable record of rooms and their participants.
type Directory struct {
	db    *gorm.DB
	newID func() string
	now   func() time.Time
}

// Option configures a Directory.
type Option func(*Directory)

// WithIDGenerator overrides how room identifiers are generated.
func WithIDGenerator(gen func() string) Option {
	return func(d *Directory) {
		d.newID = gen
	}
}

// New creates a Directory on top of db. Migrate must have been run.
func New(db *gorm.DB, opts ...Option) (*Directory, error) {
	d := &Directory{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.newID == nil {
		gen, err := nanoid.Standard(roomIDLength)
		if err != nil {
			return nil, fmt.Errorf("failed to create id generator: %w", err)
		}
		d.newID = gen
	}
	return d, nil
}

// Migrate creates or updates the rooms and participants tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&roomRecord{}, &participantRecord{}); err != nil {
		return fmt.Errorf("failed to migrate rooms: %w", err)
	}
	return nil
}

// CreateRoom creates a room with a fresh identifier. Titles need not be unique.
func (d *Directory) CreateRoom(ctx context.Context, title string) (chat.Room, error) {
	if err := chat.ValidateRoomTitle(title); err != nil {
		return chat.Room{}, err
	}

	rec := roomRecord{
		ID:        d.newID(),
		Title:     title,
		CreatedAt: d.now().UTC(),
	}
	if err := d.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return chat.Room{}, fmt.Errorf("failed to create room: %w: %w", chat.ErrStoreUnavailable, err)
	}
	return rec.toRoom(), nil
}

// GetRoom returns a room by id.
func (d *Directory) GetRoom(ctx context.Context, roomID string) (chat.Room, error) {
	var rec roomRecord
	if err := d.db.WithContext(ctx).Take(&rec, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Room{}, chat.ErrRoomNotFound
		}
		return chat.Room{}, fmt.Errorf("failed to find room: %w: %w", chat.ErrStoreUnavailable, err)
	}
	return rec.toRoom(), nil
}

// RoomExists reports whether a room with the given id exists.
func (d *Directory) RoomExists(ctx context.Context, roomID string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&roomRecord{}).Where("id = ?", roomID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check room: %w: %w", chat.ErrStoreUnavailable, err)
	}
	return count > 0, nil
}

// ListRooms returns every room ordered by id.
func (d *Directory) ListRooms(ctx context.Context) ([]chat.Room, error) {
	var records []roomRecord
	if err := d.db.WithContext(ctx).Order("id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w: %w", chat.ErrStoreUnavailable, err)
	}
	rooms := make([]chat.Room, len(records))
	for i, rec := range records {
		rooms[i] = rec.toRoom()
	}
	return rooms, nil
}

// AddParticipant records userID as a participant of roomID. Adding an
// existing participant is a no-op.
func (d *Directory) AddParticipant(ctx context.Context, roomID, userID string) error {
	if err := d.mustExist(ctx, roomID); err != nil {
		return err
	}

	rec := participantRecord{RoomID: roomID, UserID: userID, JoinedAt: d.now().UTC()}
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to add participant: %w: %w", chat.ErrStoreUnavailable, err)
	}
	return nil
}

// RemoveParticipant removes userID from roomID. Removing a non-participant
// is a no-op.
func (d *Directory) RemoveParticipant(ctx context.Context, roomID, userID string) error {
	if err := d.mustExist(ctx, roomID); err != nil {
		return err
	}

	err := d.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&participantRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w: %w", chat.ErrStoreUnavailable, err)
	}
	return nil
}

// GetParticipants returns the durable participants of a room, ordered by
// user id. A room without participants yields an empty slice.
func (d *Directory) GetParticipants(ctx context.Context, roomID string) ([]string, error) {
	users := []string{}
	err := d.db.WithContext(ctx).
		Model(&participantRecord{}).
		Where("room_id = ?", roomID).
		Order("user_id ASC").
		Pluck("user_id", &users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w: %w", chat.ErrStoreUnavailable, err)
	}
	return users, nil
}

// RoomsOf returns the rooms in which userID is a durable participant.
func (d *Directory) RoomsOf(ctx context.Context, userID string) ([]string, error) {
	rooms := []string{}
	err := d.db.WithContext(ctx).
		Model(&participantRecord{}).
		Where("user_id = ?", userID).
		Order("room_id ASC").
		Pluck("room_id", &rooms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms of user: %w: %w", chat.ErrStoreUnavailable, err)
	}
	return rooms, nil
}

func (d *Directory) mustExist(ctx context.Context, roomID string) error {
	ok, err := d.RoomExists(ctx, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return chat.ErrRoomNotFound
	}
	return nil
}
