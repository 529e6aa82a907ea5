// Package fanout delivers notifications to the users connected to this
// process and, when configured, to users connected to other processes.
package fanout

import (
	"context"

	"github.com/Dongkey-Dev/chat-app/modules/registry"
)

// Local delivers through the process-local registry only.
type Local struct {
	registry *registry.Registry
}

// NewLocal creates a Local fanout.
func NewLocal(reg *registry.Registry) *Local {
	return &Local{registry: reg}
}

// Deliver sends payload to each of userIDs connected here.
func (l *Local) Deliver(ctx context.Context, userIDs []string, payload []byte) {
	l.registry.Broadcast(ctx, userIDs, payload)
}

// DeliverAll sends payload to every user connected here.
func (l *Local) DeliverAll(ctx context.Context, payload []byte) {
	l.registry.BroadcastAll(ctx, payload)
}
