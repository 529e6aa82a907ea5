package router

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Dongkey-Dev/chat-app/modules/directory"
	"github.com/Dongkey-Dev/chat-app/modules/fanout"
	"github.com/Dongkey-Dev/chat-app/modules/history"
	"github.com/Dongkey-Dev/chat-app/modules/presence"
	"github.com/Dongkey-Dev/chat-app/modules/registry"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeChannel records every payload sent to one client.
type fakeChannel struct {
	mu       sync.Mutex
	payloads [][]byte
	closed   bool
}

func (c *fakeChannel) Send(_ context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return registry.ErrClosed
	}
	c.payloads = append(c.payloads, append([]byte(nil), payload...))
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = nil
}

func (c *fakeChannel) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]map[string]any, 0, len(c.payloads))
	for _, p := range c.payloads {
		var ev map[string]any
		require.NoError(t, json.Unmarshal(p, &ev), string(p))
		out = append(out, ev)
	}
	return out
}

func (c *fakeChannel) named(t *testing.T, name string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ev := range c.events(t) {
		if ev["event"] == name {
			out = append(out, ev)
		}
	}
	return out
}

type harnessConfig struct {
	cfg          Config
	wrapRooms    func(Rooms) Rooms
	wrapMessages func(Messages) Messages
}

type harnessOption func(*harnessConfig)

func withConfig(fn func(*Config)) harnessOption {
	return func(hc *harnessConfig) { fn(&hc.cfg) }
}

func withRooms(wrap func(Rooms) Rooms) harnessOption {
	return func(hc *harnessConfig) { hc.wrapRooms = wrap }
}

func withMessages(wrap func(Messages) Messages) harnessOption {
	return func(hc *harnessConfig) { hc.wrapMessages = wrap }
}

// harness wires a Router to real stores on an in-memory database, the
// in-memory presence store and a fake clock.
type harness struct {
	t        *testing.T
	router   *Router
	registry *registry.Registry
	tracker  *presence.Tracker
	dir      *directory.Directory
	history  *history.Store
	clock    *fakeClock
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, directory.Migrate(db))
	require.NoError(t, history.Migrate(db))

	n := 0
	dir, err := directory.New(db, directory.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("r%d", n)
	}))
	require.NoError(t, err)
	msgs := history.NewStore(db)

	clock := &fakeClock{now: t0}
	tracker := presence.NewTracker(presence.NewMemoryStore(), &mockLogger{}, presence.WithClock(clock.Now))
	reg := registry.New(time.Second, &mockLogger{})

	hc := harnessConfig{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&hc)
	}
	var rooms Rooms = dir
	if hc.wrapRooms != nil {
		rooms = hc.wrapRooms(rooms)
	}
	var messages Messages = msgs
	if hc.wrapMessages != nil {
		messages = hc.wrapMessages(messages)
	}

	r := New(Deps{
		Presence:    tracker,
		Rooms:       rooms,
		Messages:    messages,
		Connections: reg,
		Notifier:    fanout.NewDispatcher(fanout.NewLocal(reg)),
		Logger:      &mockLogger{},
		Clock:       clock.Now,
	}, hc.cfg)

	return &harness{
		t:        t,
		router:   r,
		registry: reg,
		tracker:  tracker,
		dir:      dir,
		history:  msgs,
		clock:    clock,
	}
}

func (h *harness) createRoom(title string) string {
	h.t.Helper()
	room, err := h.dir.CreateRoom(context.Background(), title)
	require.NoError(h.t, err)
	return room.ID
}

// connect opens a session and discards its handshake.
func (h *harness) connect(userID string) (*Session, *fakeChannel) {
	h.t.Helper()
	ch := &fakeChannel{}
	s := h.router.NewSession(userID, ch)
	require.NoError(h.t, s.Open(context.Background()))
	ch.reset()
	return s, ch
}

func (h *harness) send(s *Session, frame string) {
	h.t.Helper()
	require.NoError(h.t, s.Handle(context.Background(), []byte(frame)))
}

func (h *harness) activeCount(roomID string) int {
	h.t.Helper()
	n, err := h.tracker.ActiveCount(context.Background(), roomID, h.clock.Now())
	require.NoError(h.t, err)
	return n
}
