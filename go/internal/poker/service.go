package poker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/poker-everest/go/internal/models"
	"github.com/mcdev12/poker-everest/go/internal/poker/events"
	"github.com/mcdev12/poker-everest/go/internal/store"
	"github.com/rs/zerolog/log"
)

// Broadcaster defines what the service needs from the transport layer.
type Broadcaster interface {
	// ToRoom delivers msg to every connection tracked for roomID.
	ToRoom(roomID string, msg *events.Message)
	// ToConnection delivers msg to one connection only.
	ToConnection(connID string, msg *events.Message)
}

// Sessions defines what the service needs from the connection tracker.
type Sessions interface {
	Bind(connID, roomID string) string
	Lookup(connID string) (string, bool)
	Unbind(connID string) (string, bool)
	Migrate(oldRoomID, newRoomID string) int
}

// MetricsCollector defines the domain counters the service reports.
type MetricsCollector interface {
	RoomCreated()
	RoomDeleted()
	VoteSubmitted()
	ReactionSent()
	TimerAutoRevealed()
	TimerUpdated()
	HostClaimed()
}

// NoOpMetricsCollector is used when metrics aren't needed.
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RoomCreated()       {}
func (NoOpMetricsCollector) RoomDeleted()       {}
func (NoOpMetricsCollector) VoteSubmitted()     {}
func (NoOpMetricsCollector) ReactionSent()      {}
func (NoOpMetricsCollector) TimerAutoRevealed() {}
func (NoOpMetricsCollector) TimerUpdated()      {}
func (NoOpMetricsCollector) HostClaimed()       {}

const maxRoomIDAttempts = 5

// Service applies client events to rooms. Every handler re-reads the room
// from the store, mutates it, writes it back and broadcasts the result. No
// lock spans the read and the write, so concurrent writers to one room
// resolve as last writer wins.
type Service struct {
	store    store.Backend
	sessions Sessions
	out      Broadcaster
	metrics  MetricsCollector
	clock    clockwork.Clock
	cfg      Config

	newRoomID func() (string, error)
}

// NewService wires the handlers to their collaborators. A nil clock uses
// the real clock and nil metrics are discarded.
func NewService(cfg Config, backend store.Backend, sessions Sessions, out Broadcaster, clock clockwork.Clock, metrics MetricsCollector) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	return &Service{
		store:     backend,
		sessions:  sessions,
		out:       out,
		metrics:   metrics,
		clock:     clock,
		cfg:       cfg.withDefaults(),
		newRoomID: randomRoomID,
	}
}

// Config returns the effective room policy.
func (s *Service) Config() Config {
	return s.cfg
}

// Handle dispatches one decoded event from connID.
func (s *Service) Handle(ctx context.Context, connID string, event events.Event) error {
	switch ev := event.(type) {
	case *events.CreateRoom:
		return s.createRoom(ctx, connID, ev)
	case *events.JoinRoom:
		return s.joinRoom(ctx, connID, ev)
	case *events.AddTask:
		return s.addTask(ctx, connID, ev)
	case *events.RestoreTasks:
		return s.restoreTasks(ctx, connID, ev)
	case *events.DeleteTask:
		return s.deleteTask(ctx, connID, ev)
	case *events.StartVoting:
		return s.startVoting(ctx, connID, ev)
	case *events.UpdateTimer:
		return s.updateTimer(ctx, connID, ev)
	case *events.Vote:
		return s.vote(ctx, connID, ev)
	case *events.Reveal:
		return s.reveal(ctx, connID, ev)
	case *events.ResetRound:
		return s.resetRound(ctx, connID, ev)
	case *events.EndRound:
		return s.endRound(ctx, connID, ev)
	case *events.ChangeDeck:
		return s.changeDeck(ctx, connID, ev)
	case *events.UpdateRoomCode:
		return s.updateRoomCode(ctx, connID, ev)
	case *events.SendReaction:
		return s.sendReaction(ctx, connID, ev)
	case *events.ClaimHost:
		return s.claimHost(ctx, connID, ev)
	default:
		return fmt.Errorf("%w: unhandled event %T", ErrInvalidPayload, event)
	}
}

// Room returns the stored room, or ErrRoomNotFound.
func (s *Service) Room(ctx context.Context, roomID string) (*models.Room, error) {
	if roomID == "" {
		return nil, fmt.Errorf("%w: empty room id", ErrInvalidPayload)
	}
	room, err := s.store.Get(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}
	if room == nil {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return room, nil
}

// mutate runs the read-modify-write cycle shared by the handlers.
func (s *Service) mutate(ctx context.Context, roomID string, fn func(room *models.Room, now time.Time) error) (*models.Room, error) {
	room, err := s.Room(ctx, roomID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := fn(room, now); err != nil {
		if errors.Is(err, errNoChange) {
			return room, nil
		}
		return nil, err
	}

	room.EnforceIdleWhenEmpty()
	room.SyncHostFlags()
	if err := s.store.Put(ctx, roomID, room); err != nil {
		return nil, fmt.Errorf("persist room %s: %w", roomID, err)
	}
	s.out.ToRoom(roomID, events.RoomState(now, room))
	return room, nil
}

func requireHost(room *models.Room, connID string) error {
	if !room.IsHost(connID) {
		return fmt.Errorf("%w: %s is not host", ErrUnauthorized, connID)
	}
	return nil
}

func requireMember(room *models.Room, connID string) error {
	if !room.IsMember(connID) {
		return fmt.Errorf("%w: %s is not a member", ErrUnauthorized, connID)
	}
	return nil
}

// Disconnect removes connID from the room it was tracked in. An emptied
// room is deleted; a departing host leaves adminId reserved for key based
// recovery.
func (s *Service) Disconnect(ctx context.Context, connID string) error {
	roomID, ok := s.sessions.Unbind(connID)
	if !ok {
		return nil
	}
	return s.leave(ctx, connID, roomID)
}

func (s *Service) leave(ctx context.Context, connID, roomID string) error {
	room, err := s.store.Get(ctx, roomID)
	if err != nil {
		return fmt.Errorf("load room %s: %w", roomID, err)
	}
	if room == nil || !room.RemovePlayer(connID) {
		return nil
	}

	if len(room.Players) == 0 {
		if err := s.store.Delete(ctx, roomID); err != nil {
			return fmt.Errorf("delete room %s: %w", roomID, err)
		}
		s.metrics.RoomDeleted()
		log.Info().Str("room_id", roomID).Msg("room deleted, last player left")
		return nil
	}

	if room.AdminID == connID {
		log.Info().
			Str("room_id", roomID).
			Str("connection_id", connID).
			Msg("host disconnected, waiting for reconnect or claim")
	}

	room.SyncHostFlags()
	if err := s.store.Put(ctx, roomID, room); err != nil {
		return fmt.Errorf("persist room %s: %w", roomID, err)
	}
	s.out.ToRoom(roomID, events.RoomState(s.clock.Now(), room))
	return nil
}

// ExpireTimer reveals roomID if its voting timer has run out. It reports
// whether a reveal happened; a room already revealed is left untouched.
func (s *Service) ExpireTimer(ctx context.Context, roomID string) (bool, error) {
	revealed := false
	_, err := s.mutate(ctx, roomID, func(room *models.Room, now time.Time) error {
		if !room.TimerExpired(now) {
			return errNoChange
		}
		room.Status = models.RoomStatusRevealed
		room.VotingEndTime = nil
		revealed = true
		return nil
	})
	if errors.Is(err, ErrRoomNotFound) {
		// deleted between listing and loading
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if revealed {
		s.metrics.TimerAutoRevealed()
		log.Info().Str("room_id", roomID).Msg("auto-revealed room, timer expired")
	}
	return revealed, nil
}
