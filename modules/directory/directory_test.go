package directory

import (
	"context"
	"fmt"
	"testing"

	"github.com/Dongkey-Dev/chat-app/domain/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDirectory creates a Directory on an in-memory SQLite database.
func setupTestDirectory(t *testing.T, opts ...Option) *Directory {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	dir, err := New(db, opts...)
	require.NoError(t, err)
	return dir
}

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("room-%d", n)
	})
}

func TestDirectory_CreateRoom(t *testing.T) {
	ctx := context.Background()
	dir := setupTestDirectory(t)

	tests := []struct {
		name    string
		title   string
		wantErr error
	}{
		{name: "valid title", title: "General"},
		{name: "duplicate title allowed", title: "General"},
		{name: "empty title", title: "", wantErr: chat.ErrRoomTitleEmpty},
		{name: "title too long", title: string(make([]byte, chat.MaxRoomTitleLength+1)), wantErr: chat.ErrRoomTitleTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, err := dir.CreateRoom(ctx, tt.title)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, room.ID, roomIDLength)
			assert.Equal(t, tt.title, room.Title)
			assert.False(t, room.CreatedAt.IsZero())

			exists, err := dir.RoomExists(ctx, room.ID)
			require.NoError(t, err)
			assert.True(t, exists)
		})
	}
}

func TestDirectory_GetRoom(t *testing.T) {
	ctx := context.Background()
	dir := setupTestDirectory(t, sequentialIDs())

	created, err := dir.CreateRoom(ctx, "Lobby")
	require.NoError(t, err)

	room, err := dir.GetRoom(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "room-1", room.ID)
	assert.Equal(t, "Lobby", room.Title)

	_, err = dir.GetRoom(ctx, "missing")
	assert.ErrorIs(t, err, chat.ErrRoomNotFound)
}

func TestDirectory_ListRooms(t *testing.T) {
	ctx := context.Background()
	dir := setupTestDirectory(t, sequentialIDs())

	rooms, err := dir.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	for _, title := range []string{"a", "b", "c"} {
		_, err := dir.CreateRoom(ctx, title)
		require.NoError(t, err)
	}

	rooms, err = dir.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 3)
	assert.Equal(t, "room-1", rooms[0].ID)
	assert.Equal(t, "c", rooms[2].Title)
}

func TestDirectory_Participants(t *testing.T) {
	ctx := context.Background()
	dir := setupTestDirectory(t, sequentialIDs())

	room, err := dir.CreateRoom(ctx, "General")
	require.NoError(t, err)

	t.Run("no participants", func(t *testing.T) {
		users, err := dir.GetParticipants(ctx, room.ID)
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("add is idempotent", func(t *testing.T) {
		require.NoError(t, dir.AddParticipant(ctx, room.ID, "bob"))
		require.NoError(t, dir.AddParticipant(ctx, room.ID, "alice"))
		require.NoError(t, dir.AddParticipant(ctx, room.ID, "alice"))

		users, err := dir.GetParticipants(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, users)
	})

	t.Run("rooms of user", func(t *testing.T) {
		other, err := dir.CreateRoom(ctx, "Random")
		require.NoError(t, err)
		require.NoError(t, dir.AddParticipant(ctx, other.ID, "alice"))

		rooms, err := dir.RoomsOf(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{room.ID, other.ID}, rooms)

		rooms, err = dir.RoomsOf(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, rooms)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		require.NoError(t, dir.RemoveParticipant(ctx, room.ID, "bob"))
		require.NoError(t, dir.RemoveParticipant(ctx, room.ID, "bob"))

		users, err := dir.GetParticipants(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, users)
	})

	t.Run("unknown room", func(t *testing.T) {
		assert.ErrorIs(t, dir.AddParticipant(ctx, "missing", "alice"), chat.ErrRoomNotFound)
		assert.ErrorIs(t, dir.RemoveParticipant(ctx, "missing", "alice"), chat.ErrRoomNotFound)

		exists, err := dir.RoomExists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}
