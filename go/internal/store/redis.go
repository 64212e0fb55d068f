package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/poker-everest/go/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisStore keeps room snapshots in Redis with a TTL refreshed on every
// write. A failed call falls back to a local map for that call only.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	fallback *MemoryStore
}

// NewRedisStore wraps a connected client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = RoomTTL
	}
	return &RedisStore{
		client:   client,
		ttl:      ttl,
		fallback: NewMemoryStore(ttl, true),
	}
}

func (s *RedisStore) key(roomID string) string {
	return RoomPrefix + roomID
}

func (s *RedisStore) Get(ctx context.Context, roomID string) (*models.Room, error) {
	data, err := s.client.Get(ctx, s.key(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		// a room written while redis was failing may only live locally
		return s.fallback.Get(ctx, roomID)
	}
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("redis get failed, reading local fallback")
		return s.fallback.Get(ctx, roomID)
	}

	var room models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return &room, nil
}

func (s *RedisStore) Put(ctx context.Context, roomID string, room *models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", roomID, err)
	}

	if err := s.client.Set(ctx, s.key(roomID), data, s.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("redis set failed, writing local fallback")
		return s.fallback.Put(ctx, roomID, room)
	}
	return s.fallback.Delete(ctx, roomID)
}

func (s *RedisStore) Delete(ctx context.Context, roomID string) error {
	if err := s.client.Del(ctx, s.key(roomID)).Err(); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("redis del failed, deleting local fallback only")
	}
	return s.fallback.Delete(ctx, roomID)
}

func (s *RedisStore) ListIDs(ctx context.Context) ([]string, error) {
	local, _ := s.fallback.ListIDs(ctx)

	seen := make(map[string]struct{}, len(local))
	ids := make([]string, 0, len(local))
	iter := s.client.Scan(ctx, 0, RoomPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), RoomPrefix)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Msg("redis scan failed, listing local fallback")
		return local, nil
	}

	for _, id := range local {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *RedisStore) Health(ctx context.Context) Health {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return Health{
		Mode:       ModeShared,
		Configured: true,
		Connected:  s.client.Ping(pingCtx).Err() == nil,
	}
}

// Sweep clears stale rooms from the local fallback. Redis expires its own
// keys, but a room written only during an outage lives in the fallback map.
func (s *RedisStore) Sweep(now time.Time) int {
	return s.fallback.Sweep(now)
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
