package store

import (
	"context"
	"regexp"
	"time"

	"github.com/mcdev12/poker-everest/go/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	// RoomPrefix namespaces room snapshots in the shared store.
	RoomPrefix = "poker:room:"
	// RoomTTL bounds how long an untouched room survives.
	RoomTTL = 24 * time.Hour

	defaultDevURL = "redis://localhost:6379"
)

// Backend persists room snapshots. Implementations return copies: mutating a
// room returned by Get never changes stored state until Put is called.
type Backend interface {
	Get(ctx context.Context, roomID string) (*models.Room, error)
	Put(ctx context.Context, roomID string, room *models.Room) error
	Delete(ctx context.Context, roomID string) error
	ListIDs(ctx context.Context) ([]string, error)
	Health(ctx context.Context) Health
}

// Sweeper is implemented by backends without native key expiry.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Mode names the backing store in use for the process lifetime.
type Mode string

const (
	ModeShared Mode = "redis"
	ModeLocal  Mode = "memory"
)

// Health describes the store for readiness checks.
type Health struct {
	Mode       Mode `json:"mode"`
	Configured bool `json:"configured"`
	Connected  bool `json:"connected"`
}

// Ready is false only when a configured shared store cannot be reached.
func (h Health) Ready() bool {
	if !h.Configured {
		return true
	}
	return h.Mode == ModeShared && h.Connected
}

// Status is a short label for health output.
func (h Health) Status() string {
	switch {
	case !h.Configured:
		return "not_configured"
	case h.Ready():
		return "ok"
	default:
		return "unreachable"
	}
}

// Options controls backend selection at startup.
type Options struct {
	RedisURL       string
	Production     bool
	TTL            time.Duration
	ConnectTimeout time.Duration
}

// Open picks the backend once for the whole process: Redis when reachable,
// otherwise the in-memory fallback.
func Open(ctx context.Context, opts Options) Backend {
	if opts.TTL <= 0 {
		opts.TTL = RoomTTL
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	configured := opts.RedisURL != ""

	if !configured && opts.Production {
		log.Warn().Msg("REDIS_URL not set in production, using in-memory storage")
		return NewMemoryStore(opts.TTL, false)
	}

	url := opts.RedisURL
	if url == "" {
		url = defaultDevURL
	}

	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		log.Warn().Err(err).Str("url", MaskURL(url)).Msg("invalid redis url, using in-memory storage")
		return NewMemoryStore(opts.TTL, configured)
	}
	redisOpts.MaxRetries = 3
	redisOpts.DialTimeout = opts.ConnectTimeout

	log.Info().Str("url", MaskURL(url)).Msg("connecting to redis")
	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis not available, using in-memory storage")
		_ = client.Close()
		return NewMemoryStore(opts.TTL, configured)
	}

	log.Info().Msg("redis connected")
	return NewRedisStore(client, opts.TTL)
}

var credentialsPattern = regexp.MustCompile(`://[^:/@]*:[^@]+@`)

// MaskURL hides credentials in a connection URL before it is logged.
func MaskURL(url string) string {
	return credentialsPattern.ReplaceAllString(url, "://***:***@")
}
