package presence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RankKey is the sorted set holding the active count of every room.
const RankKey = "chatroom:user_count"

// RedisStore keeps presence in Redis sorted sets, one per room, scored by
// last activity in unix milliseconds. Room and user keys expire ttl after
// their last write, so rooms nobody touches again do not linger.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. prefix is prepended to every key. A ttl
// of zero keeps keys forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) roomKey(roomID string) string {
	return s.prefix + "room:" + roomID + ":users"
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + "user:" + userID + ":rooms"
}

func (s *RedisStore) rankKey() string {
	return s.prefix + RankKey
}

func (s *RedisStore) Upsert(ctx context.Context, roomID, userID string, at time.Time) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		roomKey, userKey := s.roomKey(roomID), s.userKey(userID)
		pipe.ZAdd(ctx, roomKey, redis.Z{Score: toScore(at), Member: userID})
		pipe.SAdd(ctx, userKey, roomID)
		if s.ttl > 0 {
			pipe.Expire(ctx, roomKey, s.ttl)
			pipe.Expire(ctx, userKey, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert presence: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, roomID, userID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, s.roomKey(roomID), userID)
		pipe.SRem(ctx, s.userKey(userID), roomID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove presence: %w", err)
	}
	return nil
}

func (s *RedisStore) Active(ctx context.Context, roomID string, cutoff time.Time) ([]string, error) {
	key := s.roomKey(roomID)
	// exclusive bound: an entry exactly at cutoff is still active
	upper := "(" + strconv.FormatInt(cutoffScore(cutoff), 10)

	var members *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", upper)
		members = pipe.ZRange(ctx, key, 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read active members: %w", err)
	}
	active := members.Val()
	sort.Strings(active)
	return active, nil
}

func (s *RedisStore) LastActive(ctx context.Context, roomID, userID string) (time.Time, bool, error) {
	score, err := s.client.ZScore(ctx, s.roomKey(roomID), userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to read presence: %w", err)
	}
	return fromScore(score), true, nil
}

func (s *RedisStore) SetRank(ctx context.Context, roomID string, count int) error {
	err := s.client.ZAdd(ctx, s.rankKey(), redis.Z{Score: float64(count), Member: roomID}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish room rank: %w", err)
	}
	return nil
}

func (s *RedisStore) Ranks(ctx context.Context) (map[string]int, error) {
	entries, err := s.client.ZRangeWithScores(ctx, s.rankKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read room ranks: %w", err)
	}
	ranks := make(map[string]int, len(entries))
	for _, z := range entries {
		roomID, ok := z.Member.(string)
		if !ok {
			continue
		}
		ranks[roomID] = int(z.Score)
	}
	return ranks, nil
}

func (s *RedisStore) RoomsOf(ctx context.Context, userID string) ([]string, error) {
	rooms, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read rooms of user: %w", err)
	}
	sort.Strings(rooms)
	return rooms, nil
}
