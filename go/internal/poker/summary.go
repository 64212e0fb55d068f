package poker

import (
	"math"
	"strconv"
	"strings"

	"github.com/mcdev12/poker-everest/go/internal/models"
)

// Summary is the outcome of one closed voting round.
type Summary struct {
	// Score is empty when neither an average nor a consensus label exists.
	Score   string
	Details []models.VoteDetail
}

// Summarize derives the round score from the room's votes: the mean of the
// numeric votes to one decimal, else a unanimous label. Details cover every
// current player, voter or not.
func Summarize(room *models.Room) Summary {
	players := room.SortedPlayers()

	var (
		sum       float64
		numeric   int
		consensus string
		agreed    = true
		voted     int
	)
	details := make([]models.VoteDetail, 0, len(players))

	for _, p := range players {
		value, ok := room.Votes[p.ID]
		if !ok {
			details = append(details, models.VoteDetail{PlayerName: p.Name})
			continue
		}
		v := value
		details = append(details, models.VoteDetail{PlayerName: p.Name, Vote: &v})

		if n, ok := parseVote(value); ok {
			sum += n
			numeric++
		}
		if value == "" {
			continue
		}
		if voted == 0 {
			consensus = value
		} else if value != consensus {
			agreed = false
		}
		voted++
	}

	summary := Summary{Details: details}
	switch {
	case numeric > 0:
		// ties round away from zero: 2.25 scores "2.3"
		mean := sum / float64(numeric)
		summary.Score = strconv.FormatFloat(math.Round(mean*10)/10, 'f', 1, 64)
	case voted > 0 && agreed:
		summary.Score = consensus
	}
	return summary
}

// Apply records the summary on task. An existing score survives a round
// that produced none.
func (s Summary) Apply(task *models.Task) {
	if s.Score != "" {
		task.Score = s.Score
	}
	task.VoteDetails = s.Details
}

func parseVote(value string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
