// Package registry maps connected users to their delivery channels in this
// process.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
)

// DefaultSendTimeout bounds a single delivery.
const DefaultSendTimeout = 2 * time.Second

// Channel is an outbound path to one connected client.
type Channel interface {
	// Send queues payload for the client. It must honor ctx cancellation.
	Send(ctx context.Context, payload []byte) error
	// Close ends the delivery path. It must be safe to call more than once.
	Close() error
}

// Result is the outcome of a single delivery.
type Result int

const (
	Delivered Result = iota
	NotConnected
)

func (r Result) String() string {
	if r == Delivered {
		return "delivered"
	}
	return "not_connected"
}

// Registry holds at most one channel per user. Registering a user again
// replaces and closes the previous channel.
type Registry struct {
	mu          sync.RWMutex
	channels    map[string]Channel
	sendTimeout time.Duration
	logger      types.Logger
}

// New creates an empty Registry.
func New(sendTimeout time.Duration, logger types.Logger) *Registry {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Registry{
		channels:    make(map[string]Channel),
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Register binds ch to userID, closing any channel it replaces.
func (r *Registry) Register(userID string, ch Channel) {
	r.mu.Lock()
	prev := r.channels[userID]
	r.channels[userID] = ch
	r.mu.Unlock()

	if prev != nil && prev != ch {
		_ = prev.Close()
		r.logger.Info("Replaced connection", "user_id", userID)
		return
	}
	r.logger.Debug("Registered connection", "user_id", userID)
}

// Unregister removes and closes the channel of userID, if any.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	ch, ok := r.channels[userID]
	delete(r.channels, userID)
	r.mu.Unlock()

	if ok {
		_ = ch.Close()
		r.logger.Debug("Unregistered connection", "user_id", userID)
	}
}

// UnregisterChannel removes userID only while ch is still its channel. It
// reports whether the entry was removed.
func (r *Registry) UnregisterChannel(userID string, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channels[userID] != ch {
		return false
	}
	delete(r.channels, userID)
	return true
}

// Current returns the channel registered for userID, or nil.
func (r *Registry) Current(userID string) Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channels[userID]
}

// Connected reports whether userID has a channel in this process.
func (r *Registry) Connected(userID string) bool {
	return r.Current(userID) != nil
}

// Count returns the number of connected users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// UserIDs returns the connected users, sorted.
func (r *Registry) UserIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Deliver sends payload to userID within the send timeout. A failed or
// timed-out send evicts and closes the channel.
func (r *Registry) Deliver(ctx context.Context, userID string, payload []byte) Result {
	ch := r.Current(userID)
	if ch == nil {
		return NotConnected
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()

	if err := ch.Send(sendCtx, payload); err != nil {
		if r.UnregisterChannel(userID, ch) {
			r.logger.Warn("Evicted unresponsive connection", "user_id", userID, "error", err)
		}
		_ = ch.Close()
		return NotConnected
	}
	return Delivered
}

// Broadcast delivers payload to each user concurrently. Results are in the
// order of userIDs.
func (r *Registry) Broadcast(ctx context.Context, userIDs []string, payload []byte) []Result {
	results := make([]Result, len(userIDs))

	var wg sync.WaitGroup
	for i, userID := range userIDs {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			results[i] = r.Deliver(ctx, userID, payload)
		}(i, userID)
	}
	wg.Wait()
	return results
}

// BroadcastAll delivers payload to every connected user and returns how many
// deliveries succeeded.
func (r *Registry) BroadcastAll(ctx context.Context, payload []byte) int {
	delivered := 0
	for _, res := range r.Broadcast(ctx, r.UserIDs(), payload) {
		if res == Delivered {
			delivered++
		}
	}
	return delivered
}

// Close closes every channel and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	channels := r.channels
	r.channels = make(map[string]Channel)
	r.mu.Unlock()

	for _, ch := range channels {
		_ = ch.Close()
	}
	r.logger.Info("Closed all connections", "count", len(channels))
}
