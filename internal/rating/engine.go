package rating

import "math"

const (
	DefaultK = 25.0

	// UnsetRating marks a player whose rating was never loaded.
	UnsetRating    = -100000
	unsetThreshold = -99999
)

// TeamLookup resolves the team a connected player occupies.
type TeamLookup interface {
	LookupTeamForPlayer(pid uint8) (team int, ok bool)
}

type Player struct {
	PID    uint8
	Rating int
}

func IsUnset(r int) bool { return r < unsetThreshold }

func teamTotals(team int, players []Player, lookup TeamLookup, defaultRating int) (sum, count int) {
	for _, p := range players {
		t, ok := lookup.LookupTeamForPlayer(p.PID)
		if !ok || t != team {
			continue
		}
		r := p.Rating
		if IsUnset(r) {
			r = defaultRating
		}
		sum += r
		count++
	}
	return sum, count
}

// CombinedRating sums the ratings of the players on team, using defaultRating
// for players whose rating is unset.
func CombinedRating(team int, players []Player, lookup TeamLookup, defaultRating int) int {
	sum, _ := teamTotals(team, players, lookup, defaultRating)
	return sum
}

// AverageRating is the integer mean rating of team, or 0 for an empty team.
func AverageRating(team int, players []Player, lookup TeamLookup, defaultRating int) int {
	sum, count := teamTotals(team, players, lookup, defaultRating)
	if count == 0 {
		return 0
	}
	return sum / count
}

// ComputeEloDelta returns the rating change for self on a win and on a loss
// against opponent. Halves round away from zero, so equal ratings with K=25
// give +13 and -13.
func ComputeEloDelta(self, opponent int, k float64) (gain, loss int) {
	rs := math.Pow(10, float64(self)/400)
	ro := math.Pow(10, float64(opponent)/400)
	expected := rs / (rs + ro)
	gain = int(math.Round(k * (1 - expected)))
	loss = int(math.Round(k * (0 - expected)))
	return gain, loss
}

// Outcome maps a winner code to a result for the player in newColour.
// Winner 1 takes colours 1-5, winner 2 takes colours 7-11; 0 means no winner.
func Outcome(winner, newColour int) (won, lost bool) {
	first := newColour >= 1 && newColour <= 5
	second := newColour >= 7 && newColour <= 11
	switch winner {
	case 1:
		return first, second
	case 2:
		return second, first
	default:
		return false, false
	}
}
