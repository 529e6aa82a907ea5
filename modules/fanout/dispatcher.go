package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dongkey-Dev/chat-app/events"
)

// Deliverer moves encoded frames to connected users.
type Deliverer interface {
	Deliver(ctx context.Context, userIDs []string, payload []byte)
	DeliverAll(ctx context.Context, payload []byte)
}

var (
	_ Deliverer = (*Local)(nil)
	_ Deliverer = (*Redis)(nil)
)

// Dispatcher turns chat events into client frames and hands them to a
// Deliverer.
type Dispatcher struct {
	out Deliverer
}

// NewDispatcher creates a Dispatcher delivering through out.
func NewDispatcher(out Deliverer) *Dispatcher {
	return &Dispatcher{out: out}
}

func (d *Dispatcher) MessageSent(ctx context.Context, ev events.MessageSentEvent) error {
	return d.deliver(ctx, ev.Recipients, MessageFrame{
		Event:     EventMessage,
		Message:   ev.Content,
		Sender:    ev.Sender,
		RoomID:    ev.RoomID,
		Timestamp: ev.Timestamp,
		MessageID: ev.MessageID,
	})
}

func (d *Dispatcher) UserJoined(ctx context.Context, ev events.UserJoinedEvent) error {
	return d.deliver(ctx, ev.Recipients, PresenceFrame{
		Event:   EventUserJoined,
		RoomID:  ev.RoomID,
		UserID:  ev.UserID,
		Message: ev.UserID + " joined the room",
	})
}

func (d *Dispatcher) UserLeft(ctx context.Context, ev events.UserLeftEvent) error {
	return d.deliver(ctx, ev.Recipients, PresenceFrame{
		Event:   EventUserLeft,
		RoomID:  ev.RoomID,
		UserID:  ev.UserID,
		Message: ev.UserID + " left the room",
	})
}

func (d *Dispatcher) RoomCreated(ctx context.Context, ev events.RoomCreatedEvent) error {
	payload, err := encodeFrame(RoomCreatedFrame{Event: EventRoomCreated, RoomID: ev.RoomID, Title: ev.Title})
	if err != nil {
		return err
	}
	d.out.DeliverAll(ctx, payload)
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, recipients []string, frame any) error {
	if len(recipients) == 0 {
		return nil
	}
	payload, err := encodeFrame(frame)
	if err != nil {
		return err
	}
	d.out.Deliver(ctx, recipients, payload)
	return nil
}

func encodeFrame(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return payload, nil
}
