package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"hostbot/internal/dbtask"
	"hostbot/internal/rating"
	"hostbot/internal/store"
)

// Destroy tears the session down from any state. Every Task it still owns, and
// every Task it starts here, is handed to the orphan sink so connections are
// reclaimed after the session is gone.
func (s *Session) Destroy() {
	if s.state == StateDestroyed {
		return
	}
	for _, p := range s.connected() {
		s.out.Disconnect(p.PID, reasonGameClosed)
		s.playerLeft(p, reasonGameClosed)
	}
	s.state = StateDestroyed

	var handles []dbtask.Handle
	handles = append(handles, s.autoBanLeavers()...)

	if s.gameAdd != nil {
		if s.gameAdd.Ready() {
			_, gameID, err := s.gameAdd.Poll()
			if err == nil && gameID > 0 {
				log.Info().Str("game", s.cfg.GameName).Int64("game_id", gameID).Msg("saving player/stats data to database")
				handles = append(handles, s.saveGameData(gameID)...)
			} else {
				log.Error().Err(err).Str("game", s.cfg.GameName).Msg("unable to save player/stats data to database")
			}
			s.db.Reclaim(s.gameAdd)
		} else {
			log.Warn().Str("game", s.cfg.GameName).Msg("game is being deleted before all game data was saved, game data has been lost")
			handles = append(handles, s.gameAdd)
		}
		s.gameAdd = nil
	}

	handles = append(handles, s.banChecks.Drain()...)
	handles = append(handles, s.banAdds.Drain()...)
	handles = append(handles, s.summaries.Drain()...)
	handles = append(handles, s.ratings.Drain()...)
	handles = append(handles, s.froms.Drain()...)

	if len(handles) > 0 && s.orphans != nil {
		s.orphans.Adopt(handles...)
	}
	s.banRecords = nil
	log.Info().Str("game", s.cfg.GameName).Int("orphaned_tasks", len(handles)).Msg("game destroyed")
}

func (s *Session) isPendingLeaver(name string) bool {
	for _, l := range s.leavers {
		if strings.EqualFold(l, name) {
			return true
		}
	}
	return false
}

// autoBanLeavers bans every queued leaver who left earlier than
// AUTOBAN_GAME_END_MINS before game over.
func (s *Session) autoBanLeavers() []dbtask.Handle {
	if s.db == nil || len(s.leavers) == 0 {
		return nil
	}
	end := s.endedAt
	if end.IsZero() {
		end = s.now()
	}
	grace := time.Duration(s.cfg.AutoBan.GameEndMins) * time.Minute
	var out []dbtask.Handle
	for _, r := range s.recorded {
		if !s.isPendingLeaver(r.rec.Name) || !end.After(r.leftAt.Add(grace)) {
			continue
		}
		reason := fmt.Sprintf(" Autobanned, left game \"%s\"", s.cfg.GameName)
		log.Info().
			Str("game", s.cfg.GameName).
			Str("player", r.rec.Name).
			Str("reason", reason).
			Msg("autobanning leaver")
		out = append(out, s.db.BanAdd(store.Ban{
			Server:   r.rec.SpoofedRealm,
			Name:     strings.ToLower(r.rec.Name),
			IP:       r.rec.IP,
			GameName: s.cfg.GameName,
			Admin:    "AUTOBAN",
			Reason:   reason,
		}))
	}
	return out
}

func (s *Session) saveGameData(gameID int64) []dbtask.Handle {
	var out []dbtask.Handle
	for _, r := range s.recorded {
		rec := r.rec
		rec.GameID = gameID
		out = append(out, s.db.GamePlayerAdd(rec))
	}
	if s.stats == nil {
		return out
	}
	out = append(out, s.db.StatsAdd(gameID, *s.stats))
	if !s.ladder || s.stats.Result.Winner == 0 {
		return out
	}
	return append(out, s.ratingUpdates()...)
}

// ratingUpdates builds one rating update per recorded player on a real team,
// rating each against the other team's average.
func (s *Session) ratingUpdates() []dbtask.Handle {
	players := make([]rating.Player, 0, len(s.players))
	byName := make(map[string]*Player, len(s.players))
	for _, p := range s.players {
		players = append(players, rating.Player{PID: p.PID, Rating: p.Rating})
		byName[strings.ToLower(p.Name)] = p
	}
	lines := make(map[int]rating.PlayerLine, len(s.stats.Players))
	for _, l := range s.stats.Players {
		lines[l.Colour] = l
	}

	var out []dbtask.Handle
	for _, r := range s.recorded {
		if r.rec.Team != 0 && r.rec.Team != 1 {
			continue
		}
		if _, ok := byName[strings.ToLower(r.rec.Name)]; !ok {
			log.Warn().Str("game", s.cfg.GameName).Str("player", r.rec.Name).Msg("recorded player missing from player list")
			continue
		}
		line, ok := lines[r.rec.Colour]
		if !ok {
			line = rating.PlayerLine{Colour: r.rec.Colour, NewColour: r.rec.Colour}
		}
		opponent := rating.AverageRating(1-r.rec.Team, players, s, s.cfg.Game.RatingDefault)
		out = append(out, s.db.RatingUpdate(store.RatingUpdate{
			Name:        r.rec.Name,
			Server:      s.cfg.Server,
			Line:        line,
			Game:        s.stats.Result,
			OpponentAvg: opponent,
			Left:        r.leftEarly,
		}))
	}
	return out
}
