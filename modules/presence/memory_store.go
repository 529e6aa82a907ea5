package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]map[string]float64
	ranks map[string]int
	users map[string]map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]map[string]float64),
		ranks: make(map[string]int),
		users: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, roomID, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.rooms[roomID]
	if !ok {
		members = make(map[string]float64)
		s.rooms[roomID] = members
	}
	members[userID] = toScore(at)

	rooms, ok := s.users[userID]
	if !ok {
		rooms = make(map[string]struct{})
		s.users[userID] = rooms
	}
	rooms[roomID] = struct{}{}
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms[roomID], userID)
	delete(s.users[userID], roomID)
	return nil
}

func (s *MemoryStore) Active(_ context.Context, roomID string, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	minScore := float64(cutoffScore(cutoff))
	active := []string{}
	for userID, score := range s.rooms[roomID] {
		if score < minScore {
			delete(s.rooms[roomID], userID)
			continue
		}
		active = append(active, userID)
	}
	sort.Strings(active)
	return active, nil
}

func (s *MemoryStore) LastActive(_ context.Context, roomID, userID string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	score, ok := s.rooms[roomID][userID]
	if !ok {
		return time.Time{}, false, nil
	}
	return fromScore(score), true, nil
}

func (s *MemoryStore) SetRank(_ context.Context, roomID string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ranks[roomID] = count
	return nil
}

func (s *MemoryStore) Ranks(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ranks := make(map[string]int, len(s.ranks))
	for roomID, count := range s.ranks {
		ranks[roomID] = count
	}
	return ranks, nil
}

func (s *MemoryStore) RoomsOf(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := make([]string, 0, len(s.users[userID]))
	for roomID := range s.users[userID] {
		rooms = append(rooms, roomID)
	}
	sort.Strings(rooms)
	return rooms, nil
}
