package router

import (
	"context"
	"sort"
	"time"

	"github.com/Dongkey-Dev/chat-app/domain/chat"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// rankedConcurrency bounds per-room lookups while building the listing.
const rankedConcurrency = 8

// RankedRooms computes the room listing: every room with its active user
// count and latest message, busiest first, ties by room id. It is computed
// on every call; concurrent callers share one computation.
type RankedRooms struct {
	rooms     Rooms
	presence  Presence
	messages  Messages
	now       func() time.Time
	opTimeout time.Duration
	group     singleflight.Group
}

// NewRankedRooms creates a RankedRooms view.
func NewRankedRooms(rooms Rooms, presence Presence, messages Messages, now func() time.Time, opTimeout time.Duration) *RankedRooms {
	return &RankedRooms{
		rooms:     rooms,
		presence:  presence,
		messages:  messages,
		now:       now,
		opTimeout: opTimeout,
	}
}

// List returns the ranked listing.
func (v *RankedRooms) List(ctx context.Context) ([]chat.RankedRoom, error) {
	res, err, _ := v.group.Do("ranked", func() (any, error) {
		// shared by every waiting caller, so not bound to the first one's ctx
		computeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.opTimeout)
		defer cancel()
		return v.compute(computeCtx)
	})
	if err != nil {
		return nil, err
	}
	shared := res.([]chat.RankedRoom)
	out := make([]chat.RankedRoom, len(shared))
	copy(out, shared)
	return out, nil
}

func (v *RankedRooms) compute(ctx context.Context) ([]chat.RankedRoom, error) {
	rooms, err := v.rooms.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	now := v.now()
	out := make([]chat.RankedRoom, len(rooms))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rankedConcurrency)
	for i, room := range rooms {
		g.Go(func() error {
			count, err := v.presence.ActiveCount(gctx, room.ID, now)
			if err != nil {
				return err
			}
			latest, err := v.messages.Latest(gctx, room.ID)
			if err != nil {
				return err
			}

			entry := chat.RankedRoom{
				RoomID:    room.ID,
				Title:     room.Title,
				UserCount: count,
			}
			if latest != nil {
				content := latest.Content
				entry.LatestMessage = &content
			}
			out[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortRanked(out)
	return out, nil
}

func sortRanked(rooms []chat.RankedRoom) {
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].UserCount != rooms[j].UserCount {
			return rooms[i].UserCount > rooms[j].UserCount
		}
		return rooms[i].RoomID < rooms[j].RoomID
	})
}
