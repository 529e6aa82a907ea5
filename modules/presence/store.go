// Package presence tracks which users are active in which rooms, based on
// their last activity time.
package presence

import (
	"context"
	"time"
)

// Store keeps per-room presence entries and the rank aggregate.
// Implementations must be safe for concurrent use.
type Store interface {
	// Upsert records at as the user's last activity in the room.
	Upsert(ctx context.Context, roomID, userID string, at time.Time) error
	// Remove deletes the user's entry in the room. Missing entries are ignored.
	Remove(ctx context.Context, roomID, userID string) error
	// Active deletes entries strictly older than cutoff and returns the
	// remaining members of the room.
	Active(ctx context.Context, roomID string, cutoff time.Time) ([]string, error)
	// LastActive returns the user's last activity in the room, if any.
	LastActive(ctx context.Context, roomID, userID string) (time.Time, bool, error)
	// SetRank publishes the active count of a room to the aggregate.
	SetRank(ctx context.Context, roomID string, count int) error
	// Ranks returns the aggregate as published.
	Ranks(ctx context.Context) (map[string]int, error)
	// RoomsOf returns the rooms the user has had an entry in. Entries may
	// since have been pruned.
	RoomsOf(ctx context.Context, userID string) ([]string, error)
}

func toScore(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// cutoffScore is the lowest score still active at cutoff. Scores are whole
// milliseconds, so a cutoff inside a millisecond rounds up.
func cutoffScore(cutoff time.Time) int64 {
	ms := cutoff.UnixMilli()
	if cutoff.Sub(time.UnixMilli(ms)) > 0 {
		ms++
	}
	return ms
}

func fromScore(score float64) time.Time {
	return time.UnixMilli(int64(score))
}
