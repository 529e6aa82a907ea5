package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Dongkey-Dev/chat-app/domain/chat"
	"github.com/Dongkey-Dev/chat-app/events"
	"github.com/Dongkey-Dev/chat-app/modules/registry"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/time/rate"
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Session is one user's connection to the router. Events of a session are
// handled one at a time, in the order they are received.
type Session struct {
	router  *Router
	userID  string
	ch      registry.Channel
	logger  types.Logger
	limiter *rate.Limiter

	state     atomic.Int32
	mu        sync.Mutex
	closeOnce sync.Once
}

// UserID returns the session's user.
func (s *Session) UserID() string {
	return s.userID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Open registers the session's channel and sends the handshake. If the
// handshake cannot be completed the session is closed.
func (s *Session) Open(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		return ErrSessionNotOpen
	}
	s.router.conns.Register(s.userID, s.ch)

	rooms, err := s.router.ranked.List(ctx)
	if err != nil {
		s.Close(ctx)
		return fmt.Errorf("failed to build handshake: %w", err)
	}
	if err := s.send(ctx, ConnectedEvent{Event: EventConnected, UserID: s.userID, Rooms: rooms}); err != nil {
		s.Close(ctx)
		return fmt.Errorf("failed to send handshake: %w", err)
	}

	s.logger.Info("Session opened")
	return nil
}

// Serve handles frames returned by next until it fails or the session is
// closed, then closes the session. A transport error from next ends the
// session normally.
func (s *Session) Serve(ctx context.Context, next func() ([]byte, error)) error {
	defer s.Close(ctx)

	for {
		frame, err := next()
		if err != nil {
			return nil
		}
		if err := s.Handle(ctx, frame); err != nil {
			return err
		}
	}
}

// Handle processes a single inbound frame. Operation failures are reported
// to the client and do not end the session; only a closed session or a
// panic in a handler yields an error.
func (s *Session) Handle(ctx context.Context, frame []byte) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateOpen {
		return ErrSessionClosed
	}

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Recovered from panic in event handler", "panic", rec)
			err = fmt.Errorf("event handler panic: %v", rec)
		}
	}()

	var ev inboundEvent
	if err := json.Unmarshal(frame, &ev); err != nil {
		s.logger.Warn("Ignoring frame", "error", fmt.Errorf("%w: %w", ErrMalformedEvent, err))
		return nil
	}

	var opErr error
	switch ev.Type {
	case EventJoinRoom:
		opErr = s.handleJoin(ctx, ev)
	case EventMessage:
		opErr = s.handleMessage(ctx, ev)
	case EventCreateRoom:
		opErr = s.handleCreateRoom(ctx, ev)
	default:
		s.logger.Debug("Ignoring unknown event", "type", ev.Type)
		return nil
	}

	if opErr != nil {
		s.reportError(ctx, ev, opErr)
	}
	return nil
}

// Close unregisters the session and runs disconnect cleanup. Only the first
// call has any effect; it waits for an in-flight event to finish.
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))

		s.mu.Lock()
		defer s.mu.Unlock()

		s.cleanup(context.WithoutCancel(ctx))
	})
}

func (s *Session) handleJoin(ctx context.Context, ev inboundEvent) error {
	if ev.RoomID == "" {
		return fmt.Errorf("%w: join_room without room_id", ErrMalformedEvent)
	}
	r := s.router
	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	if err := r.mustExist(opCtx, ev.RoomID); err != nil {
		return err
	}
	history, err := r.messages.History(opCtx, ev.RoomID, r.cfg.HistoryLimit)
	if err != nil {
		return err
	}
	if history == nil {
		history = []chat.Message{}
	}
	if err := s.send(ctx, MessagesEvent{Event: EventMessages, Messages: history}); err != nil {
		s.logger.Warn("Failed to send history", "room_id", ev.RoomID, "error", err)
	}

	now := r.now()
	active, err := r.presence.IsActive(opCtx, ev.RoomID, s.userID, now)
	if err != nil {
		return err
	}
	if active {
		return nil
	}

	if err := r.presence.Touch(opCtx, ev.RoomID, s.userID, now); err != nil {
		return err
	}
	if err := r.rooms.AddParticipant(opCtx, ev.RoomID, s.userID); err != nil {
		return err
	}

	s.logger.Info("Joined room", "room_id", ev.RoomID)
	recipients, err := r.recipients(opCtx, ev.RoomID, now, s.userID)
	if err != nil {
		return err
	}
	if err := r.notifier.UserJoined(opCtx, events.UserJoinedEvent{
		RoomID:     ev.RoomID,
		UserID:     s.userID,
		Recipients: recipients,
	}); err != nil {
		s.logger.Warn("Failed to announce join", "room_id", ev.RoomID, "error", err)
	}
	return nil
}

func (s *Session) handleMessage(ctx context.Context, ev inboundEvent) error {
	if ev.RoomID == "" || ev.Content.value == "" {
		return fmt.Errorf("%w: message without room_id or content", ErrMalformedEvent)
	}
	if ev.Content.invalid {
		return chat.ErrMessageInvalid
	}
	if err := chat.ValidateMessage(ev.Content.value); err != nil {
		return err
	}
	if !s.limiter.Allow() {
		return ErrRateLimited
	}

	r := s.router
	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	if err := r.mustExist(opCtx, ev.RoomID); err != nil {
		return err
	}

	now := r.now()
	wasActive, err := r.presence.IsActive(opCtx, ev.RoomID, s.userID, now)
	if err != nil {
		return err
	}

	msg, err := r.messages.Append(opCtx, ev.RoomID, s.userID, ev.Content.value)
	if err != nil {
		return err
	}
	if err := r.presence.Touch(opCtx, ev.RoomID, s.userID, now); err != nil {
		return err
	}
	if !wasActive {
		if err := r.rooms.AddParticipant(opCtx, ev.RoomID, s.userID); err != nil {
			return err
		}
	}

	recipients, err := r.recipients(opCtx, ev.RoomID, now, "")
	if err != nil {
		return err
	}
	if err := r.notifier.MessageSent(opCtx, events.MessageSentEvent{
		MessageID:  msg.ID,
		RoomID:     msg.RoomID,
		Sender:     msg.Sender,
		Content:    msg.Content,
		Timestamp:  msg.CreatedAt,
		Recipients: recipients,
	}); err != nil {
		s.logger.Warn("Failed to publish message", "room_id", ev.RoomID, "message_id", msg.ID, "error", err)
	}
	return nil
}

func (s *Session) handleCreateRoom(ctx context.Context, ev inboundEvent) error {
	if ev.Title.value == "" {
		return fmt.Errorf("%w: create_room without title", ErrMalformedEvent)
	}
	if ev.Title.invalid {
		return chat.ErrRoomTitleInvalid
	}
	_, err := s.router.CreateRoom(ctx, ev.Title.value)
	return err
}

func (s *Session) reportError(ctx context.Context, ev inboundEvent, err error) {
	if errors.Is(err, ErrMalformedEvent) {
		s.logger.Warn("Ignoring frame", "type", ev.Type, "error", err)
		return
	}

	s.logger.Warn("Event failed", "type", ev.Type, "room_id", ev.RoomID, "error", err)
	out := ErrorEvent{Event: EventError, Error: errorCode(err)}
	if errors.Is(err, chat.ErrRoomNotFound) {
		out.RoomID = ev.RoomID
	}
	if sendErr := s.send(ctx, out); sendErr != nil {
		s.logger.Debug("Failed to report error", "error", sendErr)
	}
}

// cleanup runs once the session is closed. A session whose channel was
// replaced by a newer connection of the same user leaves presence alone.
func (s *Session) cleanup(ctx context.Context) {
	r := s.router
	removed := r.conns.UnregisterChannel(s.userID, s.ch)
	_ = s.ch.Close()
	if !removed && r.conns.Current(s.userID) != nil {
		s.logger.Info("Session replaced by a newer connection")
		return
	}

	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	rooms := s.roomsToLeave(opCtx)
	now := r.now()
	for _, roomID := range rooms {
		wasActive, err := r.presence.IsActive(opCtx, roomID, s.userID, now)
		if err != nil {
			s.logger.Warn("Failed to read presence on disconnect", "room_id", roomID, "error", err)
		}
		if err := r.presence.Invalidate(opCtx, roomID, s.userID); err != nil {
			s.logger.Warn("Failed to invalidate presence", "room_id", roomID, "error", err)
			continue
		}
		if !wasActive {
			continue
		}

		recipients, err := r.recipients(opCtx, roomID, now, s.userID)
		if err != nil {
			s.logger.Warn("Failed to read recipients of departure", "room_id", roomID, "error", err)
			continue
		}
		if err := r.notifier.UserLeft(opCtx, events.UserLeftEvent{
			RoomID:     roomID,
			UserID:     s.userID,
			Recipients: recipients,
		}); err != nil {
			s.logger.Warn("Failed to notify departure", "room_id", roomID, "error", err)
		}
	}
	s.logger.Info("Session closed", "rooms", len(rooms))
}

// roomsToLeave is the union of the user's durable rooms and the rooms where
// they still have a presence entry.
func (s *Session) roomsToLeave(ctx context.Context) []string {
	set := make(map[string]struct{})

	durable, err := s.router.rooms.RoomsOf(ctx, s.userID)
	if err != nil {
		s.logger.Warn("Failed to list durable rooms", "error", err)
	}
	for _, roomID := range durable {
		set[roomID] = struct{}{}
	}

	live, err := s.router.presence.UserRooms(ctx, s.userID)
	if err != nil {
		s.logger.Warn("Failed to list presence rooms", "error", err)
	}
	for _, roomID := range live {
		set[roomID] = struct{}{}
	}

	rooms := make([]string, 0, len(set))
	for roomID := range set {
		rooms = append(rooms, roomID)
	}
	sort.Strings(rooms)
	return rooms
}

func (s *Session) send(ctx context.Context, v any) error {
	payload, err := encode(v)
	if err != nil {
		return err
	}
	sendCtx, cancel := context.WithTimeout(ctx, s.router.cfg.SendTimeout)
	defer cancel()
	return s.ch.Send(sendCtx, payload)
}
