package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/poker-everest/go/internal/models"
)

var (
	ErrMalformedFrame = errors.New("malformed event frame")
	ErrUnknownEvent   = errors.New("unknown event type")
)

// Type is the inbound event name carried in the frame envelope.
type Type string

const (
	TypeCreateRoom     Type = "create_room"
	TypeJoinRoom       Type = "join_room_v2"
	TypeAddTask        Type = "add_task"
	TypeRestoreTasks   Type = "restore_tasks"
	TypeDeleteTask     Type = "delete_task"
	TypeStartVoting    Type = "start_voting"
	TypeUpdateTimer    Type = "update_timer"
	TypeVote           Type = "vote"
	TypeReveal         Type = "reveal"
	TypeResetRound     Type = "reset_round"
	TypeEndRound       Type = "end_round"
	TypeChangeDeck     Type = "change_deck"
	TypeUpdateRoomCode Type = "update_room_code"
	TypeSendReaction   Type = "send_reaction"
	TypeClaimHost      Type = "claim_host"
)

// Event is one decoded inbound client event. The set of implementations is
// closed: only the payload types in this package satisfy it.
type Event interface {
	EventType() Type
	isEvent()
}

// TimerAction selects the update_timer sub-action.
type TimerAction string

const (
	TimerStart     TimerAction = "start"
	TimerAddMinute TimerAction = "add_minute"
	TimerRestart   TimerAction = "restart"
	TimerCancel    TimerAction = "cancel"
)

type CreateRoom struct {
	GameName string `json:"gameName"`
}

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
	Avatar   string `json:"avatar"`
	HostKey  string `json:"hostKey"`
}

type AddTask struct {
	RoomID   string `json:"roomId"`
	TaskName string `json:"taskName"`
}

// RestoreTasks replays a client-side task backup into the room.
type RestoreTasks struct {
	RoomID string        `json:"roomId"`
	Tasks  []models.Task `json:"tasks"`
}

type DeleteTask struct {
	RoomID string `json:"roomId"`
	TaskID string `json:"taskId"`
}

// StartVoting opens a round on TaskID. TimerSeconds of zero means untimed.
type StartVoting struct {
	RoomID       string `json:"roomId"`
	TaskID       string `json:"taskId"`
	TimerSeconds int    `json:"timerSeconds"`
}

// UpdateTimer changes the running round timer. Seconds is read by start only.
type UpdateTimer struct {
	RoomID  string      `json:"roomId"`
	Action  TimerAction `json:"action"`
	Seconds int         `json:"seconds"`
}

type Vote struct {
	RoomID string `json:"roomId"`
	Value  string `json:"value"`
}

type Reveal struct {
	RoomID string `json:"roomId"`
}

type ResetRound struct {
	RoomID string `json:"roomId"`
}

type EndRound struct {
	RoomID string `json:"roomId"`
}

// ChangeDeck replaces the deck with explicit labels, or with a named preset
// when Deck is empty.
type ChangeDeck struct {
	RoomID string   `json:"roomId"`
	Deck   []string `json:"deck"`
	Preset string   `json:"preset"`
}

type UpdateRoomCode struct {
	RoomID string `json:"roomId"`
}

type SendReaction struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Emoji    string `json:"emoji"`
}

type ClaimHost struct {
	RoomID  string `json:"roomId"`
	HostKey string `json:"hostKey"`
}

func (*CreateRoom) EventType() Type     { return TypeCreateRoom }
func (*JoinRoom) EventType() Type       { return TypeJoinRoom }
func (*AddTask) EventType() Type        { return TypeAddTask }
func (*RestoreTasks) EventType() Type   { return TypeRestoreTasks }
func (*DeleteTask) EventType() Type     { return TypeDeleteTask }
func (*StartVoting) EventType() Type    { return TypeStartVoting }
func (*UpdateTimer) EventType() Type    { return TypeUpdateTimer }
func (*Vote) EventType() Type           { return TypeVote }
func (*Reveal) EventType() Type         { return TypeReveal }
func (*ResetRound) EventType() Type     { return TypeResetRound }
func (*EndRound) EventType() Type       { return TypeEndRound }
func (*ChangeDeck) EventType() Type     { return TypeChangeDeck }
func (*UpdateRoomCode) EventType() Type { return TypeUpdateRoomCode }
func (*SendReaction) EventType() Type   { return TypeSendReaction }
func (*ClaimHost) EventType() Type      { return TypeClaimHost }

func (*CreateRoom) isEvent()     {}
func (*JoinRoom) isEvent()       {}
func (*AddTask) isEvent()        {}
func (*RestoreTasks) isEvent()   {}
func (*DeleteTask) isEvent()     {}
func (*StartVoting) isEvent()    {}
func (*UpdateTimer) isEvent()    {}
func (*Vote) isEvent()           {}
func (*Reveal) isEvent()         {}
func (*ResetRound) isEvent()     {}
func (*EndRound) isEvent()       {}
func (*ChangeDeck) isEvent()     {}
func (*UpdateRoomCode) isEvent() {}
func (*SendReaction) isEvent()   {}
func (*ClaimHost) isEvent()      {}

var constructors = map[Type]func() Event{
	TypeCreateRoom:     func() Event { return &CreateRoom{} },
	TypeJoinRoom:       func() Event { return &JoinRoom{} },
	TypeAddTask:        func() Event { return &AddTask{} },
	TypeRestoreTasks:   func() Event { return &RestoreTasks{} },
	TypeDeleteTask:     func() Event { return &DeleteTask{} },
	TypeStartVoting:    func() Event { return &StartVoting{} },
	TypeUpdateTimer:    func() Event { return &UpdateTimer{} },
	TypeVote:           func() Event { return &Vote{} },
	TypeReveal:         func() Event { return &Reveal{} },
	TypeResetRound:     func() Event { return &ResetRound{} },
	TypeEndRound:       func() Event { return &EndRound{} },
	TypeChangeDeck:     func() Event { return &ChangeDeck{} },
	TypeUpdateRoomCode: func() Event { return &UpdateRoomCode{} },
	TypeSendReaction:   func() Event { return &SendReaction{} },
	TypeClaimHost:      func() Event { return &ClaimHost{} },
}

// envelope is the wire shape of every inbound frame.
type envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode parses an inbound frame into its typed event.
func Decode(frame []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	newEvent, ok := constructors[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}

	event := newEvent()
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, event); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Type, err)
		}
	}
	return event, nil
}
