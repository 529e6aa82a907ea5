package fanout

import (
	"context"
	"fmt"

	"github.com/Dongkey-Dev/chat-app/events"
	"github.com/go-monolith/mono"
)

// Bus publishes chat events on the mono event bus. The broadcast module of
// every process in the NATS cluster consumes them and delivers to its own
// connections, this process included.
type Bus struct {
	bus mono.EventBus
}

// NewBus creates a Bus publishing on bus.
func NewBus(bus mono.EventBus) *Bus {
	return &Bus{bus: bus}
}

func (b *Bus) MessageSent(_ context.Context, ev events.MessageSentEvent) error {
	if len(ev.Recipients) == 0 {
		return nil
	}
	if err := events.MessageSentV1.Publish(b.bus, ev, nil); err != nil {
		return fmt.Errorf("failed to publish MessageSent: %w", err)
	}
	return nil
}

func (b *Bus) UserJoined(_ context.Context, ev events.UserJoinedEvent) error {
	if len(ev.Recipients) == 0 {
		return nil
	}
	if err := events.UserJoinedV1.Publish(b.bus, ev, nil); err != nil {
		return fmt.Errorf("failed to publish UserJoined: %w", err)
	}
	return nil
}

func (b *Bus) UserLeft(_ context.Context, ev events.UserLeftEvent) error {
	if len(ev.Recipients) == 0 {
		return nil
	}
	if err := events.UserLeftV1.Publish(b.bus, ev, nil); err != nil {
		return fmt.Errorf("failed to publish UserLeft: %w", err)
	}
	return nil
}

func (b *Bus) RoomCreated(_ context.Context, ev events.RoomCreatedEvent) error {
	if err := events.RoomCreatedV1.Publish(b.bus, ev, nil); err != nil {
		return fmt.Errorf("failed to publish RoomCreated: %w", err)
	}
	return nil
}
