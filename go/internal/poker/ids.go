package poker

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/poker-everest/go/internal/models"
)

const (
	roomIDLength = 7
	base36       = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var base36Size = big.NewInt(int64(len(base36)))

// randomRoomID returns a short uppercase base-36 room code.
func randomRoomID() (string, error) {
	var b strings.Builder
	b.Grow(roomIDLength)
	for i := 0; i < roomIDLength; i++ {
		n, err := rand.Int(rand.Reader, base36Size)
		if err != nil {
			return "", err
		}
		b.WriteByte(base36[n.Int64()])
	}
	return b.String(), nil
}

// newHostKey returns an opaque base-36 secret carrying a random uuid's entropy.
func newHostKey() string {
	id := uuid.New()
	return new(big.Int).SetBytes(id[:]).Text(36)
}

// hostKeyMatches compares a presented key with the room's key in constant time.
func hostKeyMatches(room *models.Room, presented string) bool {
	if presented == "" || room.AdminKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(room.AdminKey), []byte(presented)) == 1
}

// nextTaskID derives a task id from the creation time, bumped past ids
// already present in the room.
func nextTaskID(room *models.Room, nowMs int64) string {
	candidate := nowMs
	for room.HasTask(strconv.FormatInt(candidate, 10)) {
		candidate++
	}
	return strconv.FormatInt(candidate, 10)
}
