package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dongkey-Dev/chat-app/modules/registry"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel shared by all processes.
const DefaultChannel = "chat:fanout"

// Envelope is what one process publishes for the others. A nil Recipients
// means every connected user.
type Envelope struct {
	Origin     string          `json:"origin"`
	Recipients []string        `json:"recipients"`
	Payload    json.RawMessage `json:"payload"`
}

// Redis delivers locally and publishes every notification so that other
// processes deliver it to their own connections.
type Redis struct {
	local   *Local
	client  *redis.Client
	channel string
	origin  string
	logger  types.Logger
}

// NewRedis creates a Redis fanout publishing on channel.
func NewRedis(reg *registry.Registry, client *redis.Client, channel string, logger types.Logger) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{
		local:   NewLocal(reg),
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// Origin identifies this process in published envelopes.
func (f *Redis) Origin() string {
	return f.origin
}

// Deliver sends payload to userIDs here and publishes it for other processes.
func (f *Redis) Deliver(ctx context.Context, userIDs []string, payload []byte) {
	f.local.Deliver(ctx, userIDs, payload)
	recipients := userIDs
	if recipients == nil {
		recipients = []string{}
	}
	f.publish(ctx, recipients, payload)
}

// DeliverAll sends payload to every user here and publishes it for other
// processes.
func (f *Redis) DeliverAll(ctx context.Context, payload []byte) {
	f.local.DeliverAll(ctx, payload)
	f.publish(ctx, nil, payload)
}

func (f *Redis) publish(ctx context.Context, recipients []string, payload []byte) {
	data, err := json.Marshal(Envelope{Origin: f.origin, Recipients: recipients, Payload: payload})
	if err != nil {
		f.logger.Error("Failed to encode fanout envelope", "error", err)
		return
	}
	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		f.logger.Warn("Failed to publish fanout envelope", "error", err)
	}
}

// Run subscribes to the fanout channel and delivers envelopes from other
// processes until ctx is done.
func (f *Redis) Run(ctx context.Context) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", f.channel, err)
	}
	f.logger.Info("Subscribed to fanout channel", "channel", f.channel, "origin", f.origin)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return errors.New("fanout subscription closed")
			}
			f.handle(ctx, []byte(msg.Payload))
		}
	}
}

// handle delivers one received envelope. Envelopes from this process were
// already delivered locally.
func (f *Redis) handle(ctx context.Context, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		f.logger.Warn("Ignoring malformed fanout envelope", "error", err)
		return
	}
	if env.Origin == f.origin {
		return
	}
	if env.Recipients == nil {
		f.local.DeliverAll(ctx, env.Payload)
		return
	}
	f.local.Deliver(ctx, env.Recipients, env.Payload)
}
