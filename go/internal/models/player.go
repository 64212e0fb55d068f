package models

import "sort"

// Player is one participant's public identity within a room.
// ID is the connection id; it does not survive a reconnect.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	IsHost   bool   `json:"isHost"`
	JoinedAt int64  `json:"joinedAt"` // unix ms
}

// PublicPlayer is the part of a player sent to clients.
type PublicPlayer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	IsHost bool   `json:"isHost"`
}

// Public drops the bookkeeping fields.
func (p Player) Public() PublicPlayer {
	return PublicPlayer{ID: p.ID, Name: p.Name, Avatar: p.Avatar, IsHost: p.IsHost}
}

// SortedPlayers returns the room's players ordered by join time, then id.
func (r *Room) SortedPlayers() []Player {
	players := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].JoinedAt != players[j].JoinedAt {
			return players[i].JoinedAt < players[j].JoinedAt
		}
		return players[i].ID < players[j].ID
	})
	return players
}
