package poker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mcdev12/poker-everest/go/internal/models"
	"github.com/mcdev12/poker-everest/go/internal/poker/events"
	"github.com/rs/zerolog/log"
)

func checkLen(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%w: %s longer than %d", ErrInvalidPayload, field, max)
	}
	return nil
}

func (s *Service) createRoom(ctx context.Context, connID string, ev *events.CreateRoom) error {
	gameName := strings.TrimSpace(ev.GameName)
	if err := checkLen("gameName", gameName, maxGameNameLen); err != nil {
		return err
	}

	roomID, err := s.allocateRoomID(ctx)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	hostKey := newHostKey()
	room := models.NewRoom(gameName, hostKey, s.cfg.DefaultDeck, now)
	if err := s.store.Put(ctx, roomID, room); err != nil {
		return fmt.Errorf("persist room %s: %w", roomID, err)
	}

	s.metrics.RoomCreated()
	s.out.ToConnection(connID, events.RoomCreated(now, roomID, hostKey))

	log.Info().
		Str("room_id", roomID).
		Str("connection_id", connID).
		Str("game_name", gameName).
		Msg("room created")
	return nil
}

// allocateRoomID draws room codes until one is unused.
func (s *Service) allocateRoomID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxRoomIDAttempts; attempt++ {
		roomID, err := s.newRoomID()
		if err != nil {
			return "", fmt.Errorf("generate room id: %w", err)
		}
		existing, err := s.store.Get(ctx, roomID)
		if err != nil {
			return "", fmt.Errorf("check room id %s: %w", roomID, err)
		}
		if existing == nil {
			return roomID, nil
		}
		log.Debug().Str("room_id", roomID).Int("attempt", attempt+1).Msg("room id collision, retrying")
	}
	return "", fmt.Errorf("no free room id after %d attempts", maxRoomIDAttempts)
}

func (s *Service) joinRoom(ctx context.Context, connID string, ev *events.JoinRoom) error {
	userName := strings.TrimSpace(ev.UserName)
	switch {
	case ev.RoomID == "":
		return fmt.Errorf("%w: empty room id", ErrInvalidPayload)
	case userName == "":
		return fmt.Errorf("%w: empty user name", ErrInvalidPayload)
	}
	if err := checkLen("userName", userName, maxUserNameLen); err != nil {
		return err
	}
	if err := checkLen("avatar", ev.Avatar, maxAvatarLen); err != nil {
		return err
	}

	room, err := s.Room(ctx, ev.RoomID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			s.out.ToConnection(connID, events.RoomNotFound(s.clock.Now(), ev.RoomID))
		}
		return err
	}

	if !room.IsMember(connID) && len(room.Players) >= s.cfg.MaxPlayers {
		s.out.ToConnection(connID, events.RoomFull(s.clock.Now(), s.cfg.MaxPlayers))
		return fmt.Errorf("%w: %s has %d players", ErrRoomFull, ev.RoomID, len(room.Players))
	}

	// a connection belongs to one room at a time
	if previous, ok := s.sessions.Lookup(connID); ok && previous != ev.RoomID {
		s.sessions.Unbind(connID)
		if err := s.leave(ctx, connID, previous); err != nil {
			log.Warn().Err(err).Str("room_id", previous).Str("connection_id", connID).Msg("failed to leave previous room")
		}
	}

	now := s.clock.Now()
	joinedAt := now.UnixMilli()
	if existing, ok := room.Players[connID]; ok {
		joinedAt = existing.JoinedAt
	}
	room.Players[connID] = models.Player{
		ID:       connID,
		Name:     userName,
		Avatar:   ev.Avatar,
		JoinedAt: joinedAt,
	}

	if hostKeyMatches(room, ev.HostKey) {
		if room.AdminID != connID {
			log.Info().Str("room_id", ev.RoomID).Str("connection_id", connID).Msg("host restored by key")
		}
		room.AdminID = connID
	}
	room.SyncHostFlags()

	if err := s.store.Put(ctx, ev.RoomID, room); err != nil {
		return fmt.Errorf("persist room %s: %w", ev.RoomID, err)
	}
	s.sessions.Bind(connID, ev.RoomID)
	s.out.ToRoom(ev.RoomID, events.RoomState(now, room))

	log.Debug().
		Str("room_id", ev.RoomID).
		Str("connection_id", connID).
		Int("players", len(room.Players)).
		Msg("player joined")
	return nil
}

func (s *Service) addTask(ctx context.Context, connID string, ev *events.AddTask) error {
	name := strings.TrimSpace(ev.TaskName)
	if name == "" {
		return fmt.Errorf("%w: empty task name", ErrInvalidPayload)
	}
	if err := checkLen("taskName", name, maxTaskNameLen); err != nil {
		return err
	}

	_, err := s.mutate(ctx, ev.RoomID, func(room *models.Room, now time.Time) error {
		if err := requireHost(room, connID); err != nil {
			return err
		}
		room.Tasks = append(room.Tasks, models.Task{
			ID:        nextTaskID(room, now.UnixMilli()),
			Name:      name,
			Timestamp: now.UnixMilli(),
		})
		return nil
	})
	return err
}

// restoreTasks merges a client-side backup. Tasks already present by id are
// skipped, so replaying the same backup is a no-op.
func (s *Service) restoreTasks(ctx context.Context, connID string, ev *events.RestoreTasks) error {
	_, err := s.mutate(ctx, ev.RoomID, func(room *models.Room, now time.Time) error {
		if err := requireHost(room, connID); err != nil {
			return err
		}

		added := 0
		for _, task := range ev.Tasks {
			name := strings.TrimSpace(task.Name)
			if task.ID == "" || name == "" || room.HasTask(task.ID) {
				continue
			}
			if utf8.RuneCountInString(name) > maxTaskNameLen {
				continue
			}
			task.Name = name
			if task.Timestamp == 0 {
				task.Timestamp = now.UnixMilli()
			}
			room.Tasks = append(room.Tasks, task)
			added++
		}
		if added == 0 {
			return errNoChange
		}

		log.Debug().Str("room_id", ev.RoomID).Int("restored", added).Msg("tasks restored")
		return nil
	})
	return err
}

func (s *Service) deleteTask(ctx context.Context, connID string, ev *events.DeleteTask) error {
	_, err := s.mutate(ctx, ev.RoomID, func(room *models.Room, now time.Time) error {
		if err := requireHost(room, connID); err != nil {
			return err
		}
		if !room.RemoveTask(ev.TaskID) {
			return fmt.Errorf("%w: no task %s", ErrPrecondition, ev.TaskID)
		}

		if room.CurrentTask == ev.TaskID {
			room.CurrentTask = ""
			room.ClearVotes()
			room.ClearTimer()
			if len(room.Tasks) == 0 {
				room.Status = models.RoomStatusStarting
			} else {
				room.Status = models.RoomStatusVoting
			}
		}
		return nil
	})
	return err
}

func (s *Service) startVoting(ctx context.Context, connID string, ev *events.StartVoting) error {
	if ev.TimerSeconds < 0 {
		return fmt.Errorf("%w: negative timer", ErrInvalidPayload)
	}

	_, err := s.mutate(ctx, ev.RoomID, func(room *models.Room, now time.Time) error {
		if err := requireHost(room, connID); err != nil {
			return err
		}
		if !room.HasTask(ev.TaskID) {
			return fmt.Errorf("%w: no task %s", ErrPrecondition, ev.TaskID)
		}

		room.CurrentTask = ev.TaskID
		room.Status = models.RoomStatusVoting
		room.ClearVotes()
		if ev.TimerSeconds > 0 {
			room.SetTimer(s.clampTimer(ev.TimerSeconds), now)
		} else {
			room.ClearTimer()
		}
		return nil
	})
	return err
}

func (s *Service) clampTimer(seconds int) int {
	if seconds > s.cfg.MaxTimerSeconds {
		return s.cfg.MaxTimerSeconds
	}
	return seconds
}

func (s *Service) updateTimer(ctx context.Context, connID string, ev *events.UpdateTimer) error {
	_, err := s.mutate(ctx, ev.RoomID, func(room *models.Room, now time.Time) error {
		if err := requireHost(room, connID); err != nil {
			return err
		}
		if room.Status != models.RoomStatusVoting {
			return fmt.Errorf("%w: timer update while %s", ErrPrecondition, room.Status)
		}

		switch ev.Action {
		case events.TimerStart:
			if ev.Seconds <= 0 {
				return fmt.Errorf("%w: timer start needs seconds", ErrInvalidPayload)
			}
			room.SetTimer(s.clampTimer(ev.Seconds), now)

		case events.TimerAddMinute:
			nowMs := now.UnixMilli()
			configured := 0
			if room.TimerDuration != nil {
				configured = *room.TimerDuration
			}
			if room.VotingEndTime != nil && *room.VotingEndTime > nowMs {
				duration := s.clampTimer(configured + 60)
				end := min(*room.VotingEndTime+time.Minute.Milliseconds(), nowMs+int64(s.cfg.MaxTimerSeconds)*1000)
				room.VotingEndTime = &end
				room.TimerDuration = &duration
			} else {
				// expired or never started: a fresh one minute countdown
				duration := s.clampTimer(configured + 60)
				end := nowMs + time.Minute.Milliseconds()
				room.TimerDuration = &duration
				room.VotingEndTime = &end
			}

		case events.TimerRestart:
			if room.TimerDuration == nil || *room.TimerDuration <= 0 {
				return fmt.Errorf("%w: no configured duration to restart", ErrPrecondition)
			}
			room.SetTimer(*room.TimerDuration, now)

		case events.TimerCancel:
			room.ClearTimer()

		default:
			return fmt.Errorf("%w: unknown timer action %q", ErrInvalidPayload, ev.Action)
		}
		return nil
	})
	if err == nil {
		s.metrics.TimerUpdated()
	}
	return err
}

func (s *Service) vote(ctx context.Context, connID string, ev *events.Vote) error {
	if ev.Value == "" {
		return fmt.Errorf("%w: empty vote", ErrInvalidPayload)
	}

	_, err := s.mutate(ctx, ev.RoomID, func(room *models.Room, now time.Time) error {
		if err := requireMember(room, connID); err != nil {
			return err
		}
		if room.Status != models.RoomStatusVoting && room.Status != models.RoomStatusRevealed {
			return fmt.Errorf("%w: vote while %s", ErrPrecondition, room.Status)
		}
		if !deckContains(room.Deck, ev.Value) {
			return fmt.Errorf("%w: %q not in deck", ErrInvalidPayload, ev.Value)
		}
		room.Votes[connID] = ev.Value
		return nil
	})
	if err == nil {
		s.metrics.VoteSubmitted()
	}
	return err
}

func deckContains(deck []string, value string) bool {
	for _, label := range deck {
		if label == value {
			return true
		}
	}
	return false
}

func (s *Service) reveal(ctx context.Context, connID string, ev *events.Reveal) error {
	_, err := s.mutate(ctx, ev.RoomID, func(room *models.Room, now time.Time) error {
		if err := requireHost(room, connID); err != nil {
			return err
		}
		if room.Status == models.RoomStatusStarting {
			return fmt.Errorf("%w: nothing to reveal", ErrPrecondition)
		}
		room.Status = models.RoomStatusRevealed
		room.VotingEndTime = nil
		return nil
	})
	return err
}

// closeRound stores the round summary on the current task when the round
// was revealed.
func closeRound(room *models.Room) {
	if room.Status != models.RoomStatusRevealed || room.CurrentTask == "" {
		return
	}
	idx := room.FindTask(room.CurrentTask)
	if idx < 0 {
		return
	}
	Summarize(room).Apply(&room.Tasks[idx])
}

func (s *Service) resetRound(ctx context.Context, connID string, ev *events.ResetRound) error {
	_, err := s.mutate(ctx, ev.RoomID, func(room *models.Room, now time.Time) error {
		if err := requireHost(room, connID); err != nil {
			return err
		}
		if room.Status == models.RoomStatusStarting {
			return fmt.Errorf("%w: no round to reset", ErrPrecondition)
		}
		closeRound(room)
		room.Status = models.RoomStatusVoting
		room.ClearVotes()
		return nil
	})
	return err
}

func (s *Service) endRound(ctx context.Context, connID string, ev *events.EndRound) error {
	_, err := s.mutate(ctx, ev.RoomID, func(room *models.Room, now time.Time) error {
		if err := requireHost(room, connID); err != nil {
			return err
		}
		closeRound(room)
		room.CurrentTask = ""
		room.Status = models.RoomStatusStarting
		room.ClearVotes()
		room.ClearTimer()
		return nil
	})
	return err
}

func (s *Service) changeDeck(ctx context.Context, connID string, ev *events.ChangeDeck) error {
	deck, err := s.resolveDeck(ev)
	if err != nil {
		return err
	}

	_, err = s.mutate(ctx, ev.RoomID, func(room *models.Room, now time.Time) error {
		if err := requireHost(room, connID); err != nil {
			return err
		}
		room.Deck = deck
		room.ClearVotes()
		return nil
	})
	return err
}

// resolveDeck validates explicit labels, or looks up a named preset.
func (s *Service) resolveDeck(ev *events.ChangeDeck) ([]string, error) {
	if len(ev.Deck) == 0 {
		if ev.Preset == "" {
			return nil, fmt.Errorf("%w: empty deck", ErrInvalidPayload)
		}
		preset, ok := s.cfg.DeckPresets[ev.Preset]
		if !ok {
			return nil, fmt.Errorf("%w: unknown deck preset %q", ErrInvalidPayload, ev.Preset)
		}
		return append([]string(nil), preset...), nil
	}

	if len(ev.Deck) > maxDeckSize {
		return nil, fmt.Errorf("%w: deck has %d labels", ErrInvalidPayload, len(ev.Deck))
	}
	seen := make(map[string]struct{}, len(ev.Deck))
	for _, label := range ev.Deck {
		if label == "" {
			return nil, fmt.Errorf("%w: empty deck label", ErrInvalidPayload)
		}
		if err := checkLen("deck label", label, maxDeckLabelLen); err != nil {
			return nil, err
		}
		if _, dup := seen[label]; dup {
			return nil, fmt.Errorf("%w: duplicate deck label %q", ErrInvalidPayload, label)
		}
		seen[label] = struct{}{}
	}
	return append([]string(nil), ev.Deck...), nil
}

// updateRoomCode moves the room to a fresh code. Tracked connections follow
// it, and room_migrated is addressed to the new code so other processes can
// repoint their own connections on receipt.
func (s *Service) updateRoomCode(ctx context.Context, connID string, ev *events.UpdateRoomCode) error {
	room, err := s.Room(ctx, ev.RoomID)
	if err != nil {
		return err
	}
	if err := requireHost(room, connID); err != nil {
		return err
	}

	newRoomID, err := s.allocateRoomID(ctx)
	if err != nil {
		return err
	}

	if err := s.store.Put(ctx, newRoomID, room); err != nil {
		return fmt.Errorf("persist room %s: %w", newRoomID, err)
	}
	if err := s.store.Delete(ctx, ev.RoomID); err != nil {
		return fmt.Errorf("delete room %s: %w", ev.RoomID, err)
	}
	moved := s.sessions.Migrate(ev.RoomID, newRoomID)

	now := s.clock.Now()
	s.out.ToRoom(newRoomID, events.RoomMigrated(now, ev.RoomID, newRoomID))
	s.out.ToRoom(newRoomID, events.RoomState(now, room))

	log.Info().
		Str("old_room_id", ev.RoomID).
		Str("new_room_id", newRoomID).
		Int("connections", moved).
		Msg("room code updated")
	return nil
}

// sendReaction relays an emoji to the room. Nothing is persisted.
func (s *Service) sendReaction(ctx context.Context, connID string, ev *events.SendReaction) error {
	emoji := strings.TrimSpace(ev.Emoji)
	if emoji == "" {
		return fmt.Errorf("%w: empty emoji", ErrInvalidPayload)
	}
	if err := checkLen("emoji", emoji, maxEmojiLen); err != nil {
		return err
	}
	if ev.PlayerID != "" && ev.PlayerID != connID {
		return fmt.Errorf("%w: reaction on behalf of %s", ErrUnauthorized, ev.PlayerID)
	}
	if tracked, ok := s.sessions.Lookup(connID); !ok || tracked != ev.RoomID {
		return fmt.Errorf("%w: %s not tracked in %s", ErrUnauthorized, connID, ev.RoomID)
	}

	room, err := s.Room(ctx, ev.RoomID)
	if err != nil {
		return err
	}
	if err := requireMember(room, connID); err != nil {
		return err
	}

	s.out.ToRoom(ev.RoomID, events.EmojiReaction(s.clock.Now(), connID, emoji))
	s.metrics.ReactionSent()
	return nil
}

func (s *Service) claimHost(ctx context.Context, connID string, ev *events.ClaimHost) error {
	_, err := s.mutate(ctx, ev.RoomID, func(room *models.Room, now time.Time) error {
		if err := requireMember(room, connID); err != nil {
			return err
		}
		if !hostKeyMatches(room, ev.HostKey) {
			return fmt.Errorf("%w: wrong host key", ErrUnauthorized)
		}
		room.AdminID = connID
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.HostClaimed()
	log.Info().Str("room_id", ev.RoomID).Str("connection_id", connID).Msg("host claimed")
	return nil
}
