package session

import (
	"sort"
	"sync"
)

// Registry maps live connections to the room they last joined. It is local
// to one process and never persisted.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]string              // connection id -> room id
	byRoom map[string]map[string]struct{} // room id -> connection ids
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]string),
		byRoom: make(map[string]map[string]struct{}),
	}
}

// Bind associates connID with roomID and returns the room it was bound to
// before, if any.
func (r *Registry) Bind(connID, roomID string) (previous string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous = r.rooms[connID]
	if previous != "" {
		r.removeLocked(connID, previous)
	}

	r.rooms[connID] = roomID
	if r.byRoom[roomID] == nil {
		r.byRoom[roomID] = make(map[string]struct{})
	}
	r.byRoom[roomID][connID] = struct{}{}
	return previous
}

// Lookup returns the room connID is bound to.
func (r *Registry) Lookup(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.rooms[connID]
	return roomID, ok
}

// Unbind drops connID and returns the room it was bound to.
func (r *Registry) Unbind(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.rooms[connID]
	if !ok {
		return "", false
	}
	r.removeLocked(connID, roomID)
	return roomID, true
}

// Migrate repoints every connection bound to oldRoomID at newRoomID and
// returns how many moved.
func (r *Registry) Migrate(oldRoomID, newRoomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.byRoom[oldRoomID]
	if len(conns) == 0 || oldRoomID == newRoomID {
		return 0
	}
	delete(r.byRoom, oldRoomID)

	target := r.byRoom[newRoomID]
	if target == nil {
		target = make(map[string]struct{}, len(conns))
		r.byRoom[newRoomID] = target
	}
	for connID := range conns {
		r.rooms[connID] = newRoomID
		target[connID] = struct{}{}
	}
	return len(conns)
}

// Connections lists the connections bound to roomID in a stable order.
func (r *Registry) Connections(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]string, 0, len(r.byRoom[roomID]))
	for connID := range r.byRoom[roomID] {
		conns = append(conns, connID)
	}
	sort.Strings(conns)
	return conns
}

// Len reports how many connections are bound.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// RoomCounts reports the number of bound connections per room.
func (r *Registry) RoomCounts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int, len(r.byRoom))
	for roomID, conns := range r.byRoom {
		counts[roomID] = len(conns)
	}
	return counts
}

func (r *Registry) removeLocked(connID, roomID string) {
	delete(r.rooms, connID)
	if conns, ok := r.byRoom[roomID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.byRoom, roomID)
		}
	}
}
