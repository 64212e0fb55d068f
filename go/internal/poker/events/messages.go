package events

import (
	"encoding/json"
	"time"

	"github.com/mcdev12/poker-everest/go/internal/models"
)

// MessageType is the outbound message name.
type MessageType string

const (
	MessageRoomState     MessageType = "room_state"
	MessageRoomCreated   MessageType = "room_created"
	MessageRoomNotFound  MessageType = "room_not_found"
	MessageRoomFull      MessageType = "room_full"
	MessageRoomMigrated  MessageType = "room_migrated"
	MessageEmojiReaction MessageType = "emoji_reaction"
)

// Message is the base structure of every frame sent to clients.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// Encode serializes the message into one websocket frame.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

type RoomCreatedPayload struct {
	RoomID  string `json:"roomId"`
	HostKey string `json:"hostKey"`
}

type RoomNotFoundPayload struct {
	RoomID string `json:"roomId"`
}

type RoomFullPayload struct {
	MaxPlayers int `json:"maxPlayers"`
}

type RoomMigratedPayload struct {
	OldRoomID string `json:"oldRoomId"`
	NewRoomID string `json:"newRoomId"`
}

type EmojiReactionPayload struct {
	PlayerID string `json:"playerId"`
	Emoji    string `json:"emoji"`
}

// RoomState wraps the public snapshot of room. The host key never leaves
// through this message.
func RoomState(now time.Time, room *models.Room) *Message {
	return &Message{Type: MessageRoomState, Timestamp: now, Data: room.Public()}
}

func RoomCreated(now time.Time, roomID, hostKey string) *Message {
	return &Message{Type: MessageRoomCreated, Timestamp: now, Data: RoomCreatedPayload{RoomID: roomID, HostKey: hostKey}}
}

func RoomNotFound(now time.Time, roomID string) *Message {
	return &Message{Type: MessageRoomNotFound, Timestamp: now, Data: RoomNotFoundPayload{RoomID: roomID}}
}

func RoomFull(now time.Time, maxPlayers int) *Message {
	return &Message{Type: MessageRoomFull, Timestamp: now, Data: RoomFullPayload{MaxPlayers: maxPlayers}}
}

func RoomMigrated(now time.Time, oldRoomID, newRoomID string) *Message {
	return &Message{Type: MessageRoomMigrated, Timestamp: now, Data: RoomMigratedPayload{OldRoomID: oldRoomID, NewRoomID: newRoomID}}
}

func EmojiReaction(now time.Time, playerID, emoji string) *Message {
	return &Message{Type: MessageEmojiReaction, Timestamp: now, Data: EmojiReactionPayload{PlayerID: playerID, Emoji: emoji}}
}
