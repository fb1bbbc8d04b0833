package rating

// Record is the persisted rating row keyed by (Name, Server).
type Record struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Server string `json:"server"`

	Games  int `json:"games"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`

	Kills        int `json:"kills"`
	Deaths       int `json:"deaths"`
	Assists      int `json:"assists"`
	CreepKills   int `json:"creep_kills"`
	CreepDenies  int `json:"creep_denies"`
	NeutralKills int `json:"neutral_kills"`
	TowerKills   int `json:"tower_kills"`
	RaxKills     int `json:"rax_kills"`
	CourierKills int `json:"courier_kills"`

	Rating        int `json:"rating"`
	RatingPeak    int `json:"rating_peak"`
	Leaves        int `json:"leaves"`
	PlayedMinutes int `json:"played_minutes"`
}

// NewRecord is the row used for a player with no history.
func NewRecord(name, server string, base int) Record {
	return Record{Name: name, Server: server, Rating: base, RatingPeak: base}
}

func (r Record) perGame(v int) float64 {
	n := r.Wins + r.Losses
	if n == 0 {
		n = 1
	}
	return float64(v) / float64(n)
}

func (r Record) AvgKills() float64       { return r.perGame(r.Kills) }
func (r Record) AvgDeaths() float64      { return r.perGame(r.Deaths) }
func (r Record) AvgAssists() float64     { return r.perGame(r.Assists) }
func (r Record) AvgCreepKills() float64  { return r.perGame(r.CreepKills) }
func (r Record) AvgCreepDenies() float64 { return r.perGame(r.CreepDenies) }
func (r Record) AvgNeutralKills() float64 {
	return r.perGame(r.NeutralKills)
}

// GameResult is the match outcome reported by the stats collector.
type GameResult struct {
	Winner  int `json:"winner"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// PlayerLine is one player's stat line for a finished match.
type PlayerLine struct {
	Colour       int       `json:"colour"`
	NewColour    int       `json:"new_colour"`
	Kills        int       `json:"kills"`
	Deaths       int       `json:"deaths"`
	Assists      int       `json:"assists"`
	CreepKills   int       `json:"creep_kills"`
	CreepDenies  int       `json:"creep_denies"`
	NeutralKills int       `json:"neutral_kills"`
	TowerKills   int       `json:"tower_kills"`
	RaxKills     int       `json:"rax_kills"`
	CourierKills int       `json:"courier_kills"`
	Gold         int       `json:"gold"`
	Hero         string    `json:"hero"`
	Items        [6]string `json:"items"`
}

// Apply folds one finished match into rec. Matches without a winner leave the
// record untouched and report false.
func Apply(rec Record, line PlayerLine, game GameResult, opponentAvg int, k float64) (Record, bool) {
	if game.Winner == 0 {
		return rec, false
	}
	won, lost := Outcome(game.Winner, line.NewColour)
	gain, loss := ComputeEloDelta(rec.Rating, opponentAvg, k)

	out := rec
	switch {
	case won:
		out.Rating += gain
		out.Wins++
	case lost:
		out.Rating += loss
		out.Losses++
	}
	out.Games++
	out.Kills += line.Kills
	out.Deaths += line.Deaths
	out.Assists += line.Assists
	out.CreepKills += line.CreepKills
	out.CreepDenies += line.CreepDenies
	out.NeutralKills += line.NeutralKills
	out.TowerKills += line.TowerKills
	out.RaxKills += line.RaxKills
	out.CourierKills += line.CourierKills
	out.PlayedMinutes += game.Minutes
	if out.Rating > out.RatingPeak {
		out.RatingPeak = out.Rating
	}
	return out, true
}
