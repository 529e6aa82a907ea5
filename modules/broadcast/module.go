// Package broadcast consumes chat events from the mono event bus and
// delivers them to the WebSocket clients connected to this process.
package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/Dongkey-Dev/chat-app/events"
	"github.com/Dongkey-Dev/chat-app/modules/fanout"
	"github.com/Dongkey-Dev/chat-app/modules/registry"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// Module is an EventConsumerModule that owns the process-local connection
// registry and delivers chat events to it.
type Module struct {
	registry   *registry.Registry
	dispatcher *fanout.Dispatcher
	queueGroup string
	logger     types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.EventConsumerModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a broadcast module. Writes to a client give up after
// sendTimeout.
func NewModule(sendTimeout time.Duration, logger types.Logger) *Module {
	logger = logger.WithModule("broadcast")
	reg := registry.New(sendTimeout, logger.With("component", "registry"))
	return &Module{
		registry:   reg,
		dispatcher: fanout.NewDispatcher(fanout.NewLocal(reg)),
		// every process must see every event, so each one is its own group
		queueGroup: "broadcast-" + uuid.NewString(),
		logger:     logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "broadcast"
}

// Registry returns the connections of this process.
func (m *Module) Registry() *registry.Registry {
	return m.registry
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Module started", "queue_group", m.queueGroup)
	return nil
}

// Stop closes every remaining connection.
func (m *Module) Stop(_ context.Context) error {
	m.registry.Close()
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.registry.Count(),
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *Module) RegisterEventConsumers(er mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		er, events.MessageSentV1, m.handleMessageSent, m, m.queueGroup,
	); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		er, events.UserJoinedV1, m.handleUserJoined, m, m.queueGroup,
	); err != nil {
		return fmt.Errorf("failed to register UserJoined consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		er, events.UserLeftV1, m.handleUserLeft, m, m.queueGroup,
	); err != nil {
		return fmt.Errorf("failed to register UserLeft consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		er, events.RoomCreatedV1, m.handleRoomCreated, m, m.queueGroup,
	); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", "MessageSent, UserJoined, UserLeft, RoomCreated")
	return nil
}

func (m *Module) handleMessageSent(ctx context.Context, ev events.MessageSentEvent, _ *mono.Msg) error {
	m.logger.Debug("Delivering message", "room_id", ev.RoomID, "recipients", len(ev.Recipients))
	return m.dispatcher.MessageSent(ctx, ev)
}

func (m *Module) handleUserJoined(ctx context.Context, ev events.UserJoinedEvent, _ *mono.Msg) error {
	return m.dispatcher.UserJoined(ctx, ev)
}

func (m *Module) handleUserLeft(ctx context.Context, ev events.UserLeftEvent, _ *mono.Msg) error {
	return m.dispatcher.UserLeft(ctx, ev)
}

func (m *Module) handleRoomCreated(ctx context.Context, ev events.RoomCreatedEvent, _ *mono.Msg) error {
	m.logger.Debug("Announcing room", "room_id", ev.RoomID)
	return m.dispatcher.RoomCreated(ctx, ev)
}
