package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/poker-everest/go/internal/models"
	"github.com/rs/zerolog/log"
)

type memoryEntry struct {
	data      []byte
	createdAt time.Time
}

// MemoryStore keeps serialized rooms in process memory. Rooms expire only
// through Sweep.
type MemoryStore struct {
	mu         sync.RWMutex
	rooms      map[string]memoryEntry
	ttl        time.Duration
	configured bool
}

// NewMemoryStore creates an empty local store. configured records whether a
// shared store was requested but could not be used.
func NewMemoryStore(ttl time.Duration, configured bool) *MemoryStore {
	if ttl <= 0 {
		ttl = RoomTTL
	}
	return &MemoryStore{
		rooms:      make(map[string]memoryEntry),
		ttl:        ttl,
		configured: configured,
	}
}

func (s *MemoryStore) Get(_ context.Context, roomID string) (*models.Room, error) {
	s.mu.RLock()
	entry, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var room models.Room
	if err := json.Unmarshal(entry.data, &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return &room, nil
}

func (s *MemoryStore) Put(_ context.Context, roomID string, room *models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", roomID, err)
	}

	s.mu.Lock()
	s.rooms[roomID] = memoryEntry{data: data, createdAt: time.UnixMilli(room.CreatedAt)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, roomID string) error {
	s.mu.Lock()
	delete(s.rooms, roomID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) Health(_ context.Context) Health {
	return Health{Mode: ModeLocal, Configured: s.configured, Connected: false}
}

// Sweep removes rooms created more than the TTL before now.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, entry := range s.rooms {
		if now.Sub(entry.createdAt) > s.ttl {
			delete(s.rooms, id)
			deleted++
		}
	}

	if deleted > 0 {
		log.Info().Int("deleted", deleted).Msg("removed stale in-memory rooms")
	}
	return deleted
}

// Len reports how many rooms are held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
