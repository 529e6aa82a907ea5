// Package router turns client events into store operations and notifications.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dongkey-Dev/chat-app/domain/chat"
	"github.com/Dongkey-Dev/chat-app/events"
	"github.com/Dongkey-Dev/chat-app/modules/registry"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/time/rate"
)

// Presence is the presence tracker as seen by the router.
type Presence interface {
	Touch(ctx context.Context, roomID, userID string, at time.Time) error
	ActiveMembers(ctx context.Context, roomID string, now time.Time) ([]string, error)
	ActiveCount(ctx context.Context, roomID string, now time.Time) (int, error)
	IsActive(ctx context.Context, roomID, userID string, now time.Time) (bool, error)
	Invalidate(ctx context.Context, roomID, userID string) error
	UserRooms(ctx context.Context, userID string) ([]string, error)
}

// Rooms is the room directory as seen by the router.
type Rooms interface {
	CreateRoom(ctx context.Context, title string) (chat.Room, error)
	RoomExists(ctx context.Context, roomID string) (bool, error)
	ListRooms(ctx context.Context) ([]chat.Room, error)
	AddParticipant(ctx context.Context, roomID, userID string) error
	RoomsOf(ctx context.Context, userID string) ([]string, error)
}

// Messages is the message store as seen by the router.
type Messages interface {
	Append(ctx context.Context, roomID, sender, content string) (chat.Message, error)
	History(ctx context.Context, roomID string, limit int) ([]chat.Message, error)
	Latest(ctx context.Context, roomID string) (*chat.Message, error)
}

// Connections is the process-local connection registry.
type Connections interface {
	Register(userID string, ch registry.Channel)
	UnregisterChannel(userID string, ch registry.Channel) bool
	Current(userID string) registry.Channel
}

// Notifier carries chat events to the users they are addressed to, wherever
// those users are connected.
type Notifier interface {
	MessageSent(ctx context.Context, ev events.MessageSentEvent) error
	UserJoined(ctx context.Context, ev events.UserJoinedEvent) error
	UserLeft(ctx context.Context, ev events.UserLeftEvent) error
	RoomCreated(ctx context.Context, ev events.RoomCreatedEvent) error
}

// Config holds router tuning.
type Config struct {
	// SendTimeout bounds a write to the acting connection.
	SendTimeout time.Duration
	// OpTimeout bounds every store call.
	OpTimeout time.Duration
	// HistoryLimit caps the history sent on join. Zero sends everything.
	HistoryLimit int
	MessageRate  rate.Limit
	MessageBurst int
}

// DefaultConfig returns the default router configuration.
func DefaultConfig() Config {
	return Config{
		SendTimeout:  registry.DefaultSendTimeout,
		OpTimeout:    5 * time.Second,
		HistoryLimit: 0,
		MessageRate:  10,
		MessageBurst: 20,
	}
}

// Deps are the collaborators of a Router.
type Deps struct {
	Presence    Presence
	Rooms       Rooms
	Messages    Messages
	Connections Connections
	Notifier    Notifier
	Logger      types.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Router owns the behavior shared by all sessions.
type Router struct {
	presence Presence
	rooms    Rooms
	messages Messages
	conns    Connections
	notifier Notifier
	logger   types.Logger
	now      func() time.Time
	cfg      Config
	ranked   *RankedRooms
}

// New creates a Router.
func New(deps Deps, cfg Config) *Router {
	def := DefaultConfig()
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = def.OpTimeout
	}
	if cfg.MessageRate <= 0 {
		cfg.MessageRate = def.MessageRate
	}
	if cfg.MessageBurst <= 0 {
		cfg.MessageBurst = def.MessageBurst
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	r := &Router{
		presence: deps.Presence,
		rooms:    deps.Rooms,
		messages: deps.Messages,
		conns:    deps.Connections,
		notifier: deps.Notifier,
		logger:   deps.Logger,
		now:      now,
		cfg:      cfg,
	}
	r.ranked = NewRankedRooms(deps.Rooms, deps.Presence, deps.Messages, now, cfg.OpTimeout)
	return r
}

// NewSession creates a session for userID delivering through ch. The session
// starts in StateConnecting.
func (r *Router) NewSession(userID string, ch registry.Channel) *Session {
	return &Session{
		router:  r,
		userID:  userID,
		ch:      ch,
		logger:  r.logger.With("user_id", userID),
		limiter: rate.NewLimiter(r.cfg.MessageRate, r.cfg.MessageBurst),
	}
}

// RankedRooms returns the room listing ordered by active users.
func (r *Router) RankedRooms(ctx context.Context) ([]chat.RankedRoom, error) {
	return r.ranked.List(ctx)
}

// CreateRoom creates a room and announces it to every connected user.
func (r *Router) CreateRoom(ctx context.Context, title string) (chat.Room, error) {
	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	room, err := r.rooms.CreateRoom(opCtx, title)
	if err != nil {
		return chat.Room{}, err
	}
	r.logger.Info("Room created", "room_id", room.ID, "title", room.Title)

	if err := r.notifier.RoomCreated(opCtx, events.RoomCreatedEvent{RoomID: room.ID, Title: room.Title}); err != nil {
		r.logger.Warn("Failed to announce room", "room_id", room.ID, "error", err)
	}
	return room, nil
}

// History returns a room's messages, oldest first.
func (r *Router) History(ctx context.Context, roomID string, limit int) ([]chat.Message, error) {
	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	if err := r.mustExist(opCtx, roomID); err != nil {
		return nil, err
	}
	return r.messages.History(opCtx, roomID, limit)
}

func (r *Router) mustExist(ctx context.Context, roomID string) error {
	ok, err := r.rooms.RoomExists(ctx, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return chat.ErrRoomNotFound
	}
	return nil
}

// recipients returns the users active in roomID as of now, except skip.
func (r *Router) recipients(ctx context.Context, roomID string, now time.Time, skip string) ([]string, error) {
	members, err := r.presence.ActiveMembers(ctx, roomID, now)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(members))
	for _, userID := range members {
		if userID != skip {
			out = append(out, userID)
		}
	}
	return out, nil
}

func (r *Router) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.cfg.OpTimeout)
}

func encode(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return payload, nil
}
