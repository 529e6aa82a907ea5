package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/Dongkey-Dev/chat-app/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
)

// Tracker answers who is active in a room. A user is active while their last
// activity is no older than the window, inclusive.
type Tracker struct {
	store  Store
	window time.Duration
	now    func() time.Time
	logger types.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the tracker's clock.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithWindow overrides the activity window.
func WithWindow(window time.Duration) Option {
	return func(t *Tracker) {
		if window > 0 {
			t.window = window
		}
	}
}

// NewTracker creates a Tracker on top of store.
func NewTracker(store Store, logger types.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		window: chat.ActiveWindow,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Now returns the tracker's current time.
func (t *Tracker) Now() time.Time {
	return t.now()
}

// Window returns the activity window.
func (t *Tracker) Window() time.Duration {
	return t.window
}

// Touch marks userID active in roomID at at. Times in the future are clamped
// to the current time.
func (t *Tracker) Touch(ctx context.Context, roomID, userID string, at time.Time) error {
	now := t.now()
	if at.After(now) {
		at = now
	}
	if err := t.store.Upsert(ctx, roomID, userID, at); err != nil {
		return fmt.Errorf("%w: %w", chat.ErrStoreUnavailable, err)
	}
	t.refreshRank(ctx, roomID, now)
	return nil
}

// ActiveMembers returns the users active in roomID as of now, sorted.
// Expired entries are pruned as a side effect.
func (t *Tracker) ActiveMembers(ctx context.Context, roomID string, now time.Time) ([]string, error) {
	members, err := t.store.Active(ctx, roomID, now.Add(-t.window))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chat.ErrStoreUnavailable, err)
	}
	if err := t.store.SetRank(ctx, roomID, len(members)); err != nil {
		t.logger.Warn("Failed to publish room rank", "room_id", roomID, "error", err)
	}
	return members, nil
}

// ActiveCount returns the number of users active in roomID as of now.
func (t *Tracker) ActiveCount(ctx context.Context, roomID string, now time.Time) (int, error) {
	members, err := t.ActiveMembers(ctx, roomID, now)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

// IsActive reports whether userID is active in roomID as of now.
func (t *Tracker) IsActive(ctx context.Context, roomID, userID string, now time.Time) (bool, error) {
	last, ok, err := t.store.LastActive(ctx, roomID, userID)
	if err != nil {
		return false, fmt.Errorf("%w: %w", chat.ErrStoreUnavailable, err)
	}
	if !ok {
		return false, nil
	}
	return toScore(last) >= float64(cutoffScore(now.Add(-t.window))), nil
}

// Invalidate drops userID's presence in roomID immediately.
func (t *Tracker) Invalidate(ctx context.Context, roomID, userID string) error {
	if err := t.store.Remove(ctx, roomID, userID); err != nil {
		return fmt.Errorf("%w: %w", chat.ErrStoreUnavailable, err)
	}
	t.refreshRank(ctx, roomID, t.now())
	return nil
}

// UserRooms returns the rooms in which userID currently has a live entry.
func (t *Tracker) UserRooms(ctx context.Context, userID string) ([]string, error) {
	candidates, err := t.store.RoomsOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chat.ErrStoreUnavailable, err)
	}

	now := t.now()
	rooms := make([]string, 0, len(candidates))
	for _, roomID := range candidates {
		active, err := t.IsActive(ctx, roomID, userID, now)
		if err != nil {
			return nil, err
		}
		if active {
			rooms = append(rooms, roomID)
		}
	}
	return rooms, nil
}

// CachedCounts returns the last published active count per room. The values
// may be stale and are meant for diagnostics only.
func (t *Tracker) CachedCounts(ctx context.Context) (map[string]int, error) {
	ranks, err := t.store.Ranks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chat.ErrStoreUnavailable, err)
	}
	return ranks, nil
}

func (t *Tracker) refreshRank(ctx context.Context, roomID string, now time.Time) {
	if _, err := t.ActiveMembers(ctx, roomID, now); err != nil {
		t.logger.Warn("Failed to refresh room rank", "room_id", roomID, "error", err)
	}
}
