package models

import "time"

// RoomStatus governs which mutations are legal on a room.
type RoomStatus string

const (
	RoomStatusStarting RoomStatus = "starting"
	RoomStatusVoting   RoomStatus = "voting"
	RoomStatusRevealed RoomStatus = "revealed"
)

// DaysDeck is the default "days" estimation deck.
var DaysDeck = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "?", "☕"}

// Room is one estimation session as persisted in the store.
type Room struct {
	Status        RoomStatus        `json:"status"`
	GameName      string            `json:"gameName"`
	CurrentTask   string            `json:"currentTask"`
	Tasks         []Task            `json:"tasks"`
	Votes         map[string]string `json:"votes"`
	AdminID       string            `json:"adminId"`
	AdminKey      string            `json:"adminKey"`
	Players       map[string]Player `json:"players"`
	Deck          []string          `json:"deck"`
	TimerDuration *int              `json:"timerDuration"` // seconds
	VotingEndTime *int64            `json:"votingEndTime"` // unix ms
	CreatedAt     int64             `json:"createdAt"`     // unix ms
}

// NewRoom returns an idle room with empty collections.
func NewRoom(gameName, adminKey string, deck []string, now time.Time) *Room {
	return &Room{
		Status:    RoomStatusStarting,
		GameName:  gameName,
		Tasks:     []Task{},
		Votes:     map[string]string{},
		AdminKey:  adminKey,
		Players:   map[string]Player{},
		Deck:      append([]string(nil), deck...),
		CreatedAt: now.UnixMilli(),
	}
}

// IsMember reports whether the connection currently has a player entry.
func (r *Room) IsMember(connID string) bool {
	_, ok := r.Players[connID]
	return ok
}

// IsHost reports whether the connection is a member holding host privileges.
func (r *Room) IsHost(connID string) bool {
	return connID != "" && r.IsMember(connID) && r.AdminID == connID
}

// SyncHostFlags recomputes every player's derived isHost flag.
func (r *Room) SyncHostFlags() {
	for id, p := range r.Players {
		p.IsHost = id == r.AdminID
		r.Players[id] = p
	}
}

// ClearVotes drops every recorded vote.
func (r *Room) ClearVotes() {
	r.Votes = map[string]string{}
}

// ClearTimer drops both the configured duration and the expiry.
func (r *Room) ClearTimer() {
	r.TimerDuration = nil
	r.VotingEndTime = nil
}

// SetTimer starts a countdown of the given length from now.
func (r *Room) SetTimer(seconds int, now time.Time) {
	d := seconds
	end := now.Add(time.Duration(seconds) * time.Second).UnixMilli()
	r.TimerDuration = &d
	r.VotingEndTime = &end
}

// TimerExpired reports whether a running countdown has reached its end.
func (r *Room) TimerExpired(now time.Time) bool {
	return r.Status == RoomStatusVoting && r.VotingEndTime != nil && *r.VotingEndTime <= now.UnixMilli()
}

// RemovePlayer deletes the player and their vote.
func (r *Room) RemovePlayer(connID string) bool {
	if !r.IsMember(connID) {
		return false
	}
	delete(r.Players, connID)
	delete(r.Votes, connID)
	return true
}

// EnforceIdleWhenEmpty forces the idle state once the task list is empty.
func (r *Room) EnforceIdleWhenEmpty() {
	if len(r.Tasks) > 0 {
		return
	}
	r.Status = RoomStatusStarting
	r.CurrentTask = ""
	r.ClearVotes()
	r.VotingEndTime = nil
}

// Snapshot is the client-facing view of a room: the host key and player join
// times are stripped.
type Snapshot struct {
	Status        RoomStatus              `json:"status"`
	GameName      string                  `json:"gameName"`
	CurrentTask   string                  `json:"currentTask"`
	Tasks         []Task                  `json:"tasks"`
	Votes         map[string]string       `json:"votes"`
	AdminID       string                  `json:"adminId"`
	Players       map[string]PublicPlayer `json:"players"`
	Deck          []string                `json:"deck"`
	TimerDuration *int                    `json:"timerDuration"`
	VotingEndTime *int64                  `json:"votingEndTime"`
}

// Public builds the snapshot broadcast to every connection in the room.
func (r *Room) Public() Snapshot {
	players := make(map[string]PublicPlayer, len(r.Players))
	for id, p := range r.Players {
		players[id] = p.Public()
	}
	return Snapshot{
		Status:        r.Status,
		GameName:      r.GameName,
		CurrentTask:   r.CurrentTask,
		Tasks:         r.Tasks,
		Votes:         r.Votes,
		AdminID:       r.AdminID,
		Players:       players,
		Deck:          r.Deck,
		TimerDuration: r.TimerDuration,
		VotingEndTime: r.VotingEndTime,
	}
}
