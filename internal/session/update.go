package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"hostbot/internal/rating"
	"hostbot/internal/store"
)

// Update runs one tick: poll every pending queue, expire the vote-kick and
// finish the countdown. It never blocks.
func (s *Session) Update(now time.Time) {
	if s.state == StateDestroyed {
		return
	}
	s.pollQueues()
	s.expireVoteKick(now)
	if s.state == StateCountdown && s.cfg.Game.Countdown > 0 && now.Sub(s.countdownAt) >= s.cfg.Game.Countdown {
		_ = s.StartLoading()
	}
}

func (s *Session) pollQueues() {
	reclaim := s.db.Reclaim
	s.banChecks.Poll(reclaim, s.applyBanCheck)
	s.banAdds.Poll(reclaim, s.applyBanAdd)
	s.summaries.Poll(reclaim, s.applyPlayerSummary)
	s.ratings.Poll(reclaim, s.applyRatingSummary)
	s.froms.Poll(reclaim, s.applyFromCheck)
}

// PendingTasks counts Tasks still owned by the session.
func (s *Session) PendingTasks() int {
	n := s.banChecks.Len() + s.banAdds.Len() + s.summaries.Len() + s.ratings.Len() + s.froms.Len()
	if s.gameAdd != nil {
		n++
	}
	return n
}

func (s *Session) reply(who Requester, text string) {
	switch {
	case who.Silent:
	case who.Broadcast:
		s.out.SendAllChat(text)
	default:
		if s.Player(who.PID) != nil {
			s.out.SendChat(who.PID, text)
		}
	}
}

func (s *Session) taskFailed(category, subject string, who Requester, err error) {
	log.Error().
		Err(err).
		Str("game", s.cfg.GameName).
		Str("category", category).
		Str("subject", subject).
		Msg("db task failed")
	s.reply(who, fmt.Sprintf("Unable to check [%s] right now, try again later", subject))
}

func (s *Session) applyBanCheck(who Requester, subject string, ban *store.Ban, err error) {
	if err != nil {
		s.taskFailed("ban-check", subject, who, err)
		return
	}
	if ban != nil {
		s.reply(who, fmt.Sprintf("User [%s] was banned on server [%s] on %s by [%s] because (%s)",
			subject, ban.Server, ban.Date, ban.Admin, strings.TrimSpace(ban.Reason)))
		return
	}
	s.reply(who, fmt.Sprintf("User [%s] is not banned on server [%s]", subject, s.cfg.Server))
}

func (s *Session) applyBanAdd(who Requester, subject string, ok bool, err error) {
	if err != nil || !ok {
		log.Error().Err(err).Str("game", s.cfg.GameName).Str("player", subject).Msg("ban add failed")
		s.reply(who, fmt.Sprintf("Error banning user [%s]", subject))
		return
	}
	s.out.SendAllChat(fmt.Sprintf("Player [%s] was successfully banned on [%s]", subject, s.cfg.Server))
}

func (s *Session) applyPlayerSummary(who Requester, subject string, sum *store.PlayerSummary, err error) {
	if err != nil {
		s.taskFailed("player-summary", subject, who, err)
		return
	}
	if sum == nil {
		s.reply(who, fmt.Sprintf("[%s] hasn't played any games with this bot yet", subject))
		return
	}
	s.reply(who, fmt.Sprintf("[%s] has played %d games with this bot (first %s, last %s). Average loading time: %.2f seconds. Average stay: %d percent.",
		subject, sum.TotalGames, sum.FirstGame, sum.LastGame, float64(sum.AvgLoadingMS)/1000, int(sum.AvgLeftPercent+0.5)))
}

func (s *Session) applyRatingSummary(who Requester, subject string, rec *rating.Record, err error) {
	if err != nil {
		s.taskFailed("rating-summary", subject, who, err)
		return
	}
	for _, p := range s.connected() {
		if strings.EqualFold(p.Name, subject) {
			if rec != nil {
				p.Rating = rec.Rating
			} else {
				p.Rating = s.cfg.Game.RatingDefault
			}
		}
	}
	if rec == nil {
		s.reply(who, fmt.Sprintf("[%s] has no ladder record yet", subject))
		return
	}
	s.reply(who, fmt.Sprintf("[%s] rating %d (peak %d), %d games, W/L %d/%d, K/D/A %.1f/%.1f/%.1f",
		subject, rec.Rating, rec.RatingPeak, rec.Games, rec.Wins, rec.Losses,
		rec.AvgKills(), rec.AvgDeaths(), rec.AvgAssists()))
}

func (s *Session) applyFromCheck(who Requester, subject string, countries []string, err error) {
	if err != nil {
		s.taskFailed("from-check", "player countries", who, err)
		return
	}
	names := strings.Split(subject, "\x00")
	parts := make([]string, 0, len(names))
	for i, name := range names {
		cc := store.UnknownCountry
		if i < len(countries) {
			cc = countries[i]
		}
		parts = append(parts, fmt.Sprintf("%s: (%s)", name, cc))
	}
	s.reply(who, strings.Join(parts, ", "))
}
