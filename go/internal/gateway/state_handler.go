package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mcdev12/poker-everest/go/internal/models"
	"github.com/mcdev12/poker-everest/go/internal/poker"
	"github.com/rs/zerolog/log"
)

// RoomProvider defines what the state handler needs to read rooms.
type RoomProvider interface {
	Room(ctx context.Context, roomID string) (*models.Room, error)
}

// StateHandler serves room snapshots over HTTP
type StateHandler struct {
	rooms RoomProvider
}

// NewStateHandler creates a new state handler
func NewStateHandler(rooms RoomProvider) *StateHandler {
	return &StateHandler{rooms: rooms}
}

// HandleGetRoomState handles GET /api/rooms/{id}/state
func (h *StateHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]
	if roomID == "" {
		http.Error(w, "Room ID is required", http.StatusBadRequest)
		return
	}

	room, err := h.rooms.Room(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, poker.ErrRoomNotFound) {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to get room state")
		http.Error(w, "Failed to get room state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(room.Public()); err != nil {
		log.Error().Err(err).Msg("failed to encode room state response")
	}
}
