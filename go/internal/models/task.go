package models

// VoteDetail records one player's vote at the moment a round closed.
// Vote is nil when the player did not vote.
type VoteDetail struct {
	PlayerName string  `json:"playerName"`
	Vote       *string `json:"vote"`
}

// Task is one estimable work item.
type Task struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Timestamp   int64        `json:"timestamp"` // unix ms
	Score       string       `json:"score,omitempty"`
	VoteDetails []VoteDetail `json:"voteDetails,omitempty"`
}

// FindTask returns the index of the task with the given id, or -1.
func (r *Room) FindTask(id string) int {
	for i := range r.Tasks {
		if r.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// HasTask reports whether a task with the given id exists.
func (r *Room) HasTask(id string) bool {
	return r.FindTask(id) >= 0
}

// RemoveTask deletes the task with the given id, preserving order.
func (r *Room) RemoveTask(id string) bool {
	idx := r.FindTask(id)
	if idx < 0 {
		return false
	}
	r.Tasks = append(r.Tasks[:idx], r.Tasks[idx+1:]...)
	return true
}
