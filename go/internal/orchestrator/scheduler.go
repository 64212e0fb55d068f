package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/poker-everest/go/internal/store"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// TimerExpirer defines what the scheduler needs from the poker service.
type TimerExpirer interface {
	ExpireTimer(ctx context.Context, roomID string) (bool, error)
}

// RoomGauge receives the number of rooms seen on each poll and whether the
// store answered.
type RoomGauge interface {
	SetActiveRooms(n int)
	SetStoreReady(ready bool)
}

// Config holds the scheduler's intervals and worker pool size.
type Config struct {
	PollInterval  time.Duration
	SweepInterval time.Duration
	NumWorkers    int
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		PollInterval:  time.Second,
		SweepInterval: time.Hour,
		NumWorkers:    8,
	}
}

// Scheduler polls every room for an expired voting timer and periodically
// sweeps stale rooms out of stores without native expiry.
type Scheduler struct {
	rooms      store.Backend
	sweeper    store.Sweeper
	expirer    TimerExpirer
	gauge      RoomGauge
	clock      clockwork.Clock
	config     Config
	instanceID string
}

// NewScheduler creates a scheduler. gauge may be nil; a nil clock uses the
// real clock.
func NewScheduler(config Config, rooms store.Backend, expirer TimerExpirer, gauge RoomGauge, clock clockwork.Clock) *Scheduler {
	def := DefaultConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = def.SweepInterval
	}
	if config.NumWorkers <= 0 {
		config.NumWorkers = def.NumWorkers
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	// redis expires keys itself and only sweeps its local fallback
	sweeper, _ := rooms.(store.Sweeper)

	return &Scheduler{
		rooms:      rooms,
		sweeper:    sweeper,
		expirer:    expirer,
		gauge:      gauge,
		clock:      clock,
		config:     config,
		instanceID: uuid.New().String(),
	}
}

// Run polls until ctx is cancelled. Ticks run one at a time, so a room is
// never examined by two polls of the same process at once.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().
		Str("instance", s.instanceID).
		Dur("poll_interval", s.config.PollInterval).
		Int("workers", s.config.NumWorkers).
		Bool("sweeping", s.sweeper != nil).
		Msg("timer scheduler started")

	poll := s.clock.NewTicker(s.config.PollInterval)
	defer poll.Stop()
	sweep := s.clock.NewTicker(s.config.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("instance", s.instanceID).Msg("timer scheduler shutting down")
			return nil
		case <-poll.Chan():
			if _, err := s.Tick(ctx); err != nil {
				log.Error().Err(err).Msg("timer poll failed")
			}
		case <-sweep.Chan():
			s.Sweep()
		}
	}
}

// Tick examines every known room once and returns how many were revealed.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	if s.gauge != nil {
		s.gauge.SetStoreReady(s.rooms.Health(ctx).Ready())
	}
	ids, err := s.rooms.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list rooms: %w", err)
	}
	if s.gauge != nil {
		s.gauge.SetActiveRooms(len(ids))
	}

	var (
		g        errgroup.Group
		revealed atomic.Int64
	)
	g.SetLimit(s.config.NumWorkers)

	for _, roomID := range ids {
		g.Go(func() error {
			ok, err := s.expirer.ExpireTimer(ctx, roomID)
			if err != nil {
				// one bad room must not stall the rest
				log.Error().Err(err).Str("room_id", roomID).Msg("failed to expire room timer")
				return nil
			}
			if ok {
				revealed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(revealed.Load()), nil
}

// Sweep drops rooms older than the TTL from stores that keep them locally.
func (s *Scheduler) Sweep() int {
	if s.sweeper == nil {
		return 0
	}
	deleted := s.sweeper.Sweep(s.clock.Now())
	log.Debug().Int("deleted", deleted).Msg("room sweep finished")
	return deleted
}
