package history

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// every pooled connection would get its own :memory: database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func TestStore_Append(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(setupTestDB(t), WithClock(func() time.Time { return now }))

	msg, err := store.Append(ctx, "room-1", "alice", "hello")
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "room-1", msg.RoomID)
	assert.Equal(t, "alice", msg.Sender)
	assert.Equal(t, "hello", msg.Content)
	assert.True(t, msg.CreatedAt.Equal(now), "CreatedAt = %v, want %v", msg.CreatedAt, now)
}

func TestStore_AppendTimestampsNeverGoBackwards(t *testing.T) {
	ctx := context.Background()
	clock := []time.Time{
		time.Date(2024, 5, 1, 12, 0, 10, 0, time.UTC),
		time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC),
	}
	i := 0
	store := NewStore(setupTestDB(t), WithClock(func() time.Time {
		at := clock[i]
		i++
		return at
	}))

	first, err := store.Append(ctx, "room-1", "alice", "one")
	require.NoError(t, err)
	second, err := store.Append(ctx, "room-1", "bob", "two")
	require.NoError(t, err)

	assert.False(t, second.CreatedAt.Before(first.CreatedAt))
}

func TestStore_History(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	for i := 1; i <= 5; i++ {
		_, err := store.Append(ctx, "room-1", "alice", fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}
	_, err := store.Append(ctx, "room-2", "bob", "elsewhere")
	require.NoError(t, err)

	tests := []struct {
		name  string
		room  string
		limit int
		want  []string
	}{
		{
			name:  "whole history",
			room:  "room-1",
			limit: 0,
			want:  []string{"msg-1", "msg-2", "msg-3", "msg-4", "msg-5"},
		},
		{
			name:  "most recent two oldest first",
			room:  "room-1",
			limit: 2,
			want:  []string{"msg-4", "msg-5"},
		},
		{
			name:  "limit above size",
			room:  "room-2",
			limit: 50,
			want:  []string{"elsewhere"},
		},
		{
			name:  "unknown room",
			room:  "missing",
			limit: 10,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages, err := store.History(ctx, tt.room, tt.limit)
			require.NoError(t, err)

			got := make([]string, len(messages))
			for i, m := range messages {
				got[i] = m.Content
				assert.Equal(t, tt.room, m.RoomID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_Latest(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	latest, err := store.Latest(ctx, "room-1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = store.Append(ctx, "room-1", "alice", "first")
	require.NoError(t, err)
	_, err = store.Append(ctx, "room-1", "bob", "second")
	require.NoError(t, err)

	latest, err = store.Latest(ctx, "room-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "second", latest.Content)
	assert.Equal(t, "bob", latest.Sender)
}

func TestStore_ConcurrentAppendKeepsEveryMessage(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t))

	const senders = 4
	const perSender = 10

	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := store.Append(ctx, "room-1", sender, fmt.Sprintf("%s-%d", sender, i))
				assert.NoError(t, err)
			}
		}(fmt.Sprintf("user-%d", s))
	}
	wg.Wait()

	messages, err := store.History(ctx, "room-1", 0)
	require.NoError(t, err)
	require.Len(t, messages, senders*perSender)

	// per sender, history preserves send order
	next := map[string]int{}
	for i, m := range messages {
		assert.Equal(t, fmt.Sprintf("%s-%d", m.Sender, next[m.Sender]), m.Content)
		next[m.Sender]++
		if i > 0 {
			assert.False(t, m.CreatedAt.Before(messages[i-1].CreatedAt))
		}
	}
}

func TestStore_HistoryOrdersByTimestampAcrossWriters(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// two processes sharing a database, the second one's clock running behind
	ahead := NewStore(db, WithClock(func() time.Time { return base.Add(2 * time.Second) }))
	behind := NewStore(db, WithClock(func() time.Time { return base.Add(time.Second) }))

	_, err := ahead.Append(ctx, "room-1", "alice", "later")
	require.NoError(t, err)
	_, err = behind.Append(ctx, "room-1", "bob", "earlier")
	require.NoError(t, err)

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{name: "whole history", limit: 0, want: []string{"earlier", "later"}},
		{name: "limited", limit: 1, want: []string{"later"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages, err := ahead.History(ctx, "room-1", tt.limit)
			require.NoError(t, err)

			got := make([]string, len(messages))
			for i, m := range messages {
				got[i] = m.Content
			}
			assert.Equal(t, tt.want, got)
		})
	}

	latest, err := behind.Latest(ctx, "room-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "later", latest.Content)
}

func TestStore_AppendDoesNotSerializeWrites(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	err := db.Callback().Create().Before("gorm:begin_transaction").Register("test:hold_first_insert", func(*gorm.DB) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
	})
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	store := NewStore(db, WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}))

	slow := make(chan error, 1)
	go func() {
		_, err := store.Append(ctx, "room-1", "alice", "slow")
		slow <- err
	}()
	<-entered

	fast := make(chan error, 1)
	go func() {
		_, err := store.Append(ctx, "room-1", "bob", "fast")
		fast <- err
	}()

	select {
	case err := <-fast:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("append blocked behind an in-flight insert")
	}
	close(release)
	require.NoError(t, <-slow)

	// the held insert got the earlier stamp and a later seq
	messages, err := store.History(ctx, "room-1", 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "slow", messages[0].Content)
	assert.Equal(t, "fast", messages[1].Content)
}
