package session

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"hostbot/internal/rating"
	"hostbot/internal/store"
)

const (
	msgDropped       = "Auto ban OFF, this game will not be saved to your ladder stats"
	reasonDropped    = "was disconnected (game dropped by early leaver)"
	msgTooManyLeft   = "[BOT] This game will be saved to your ladder stats, you should play till end"
	reasonGameClosed = "was disconnected (game closed)"
)

type JoinRequest struct {
	Name     string `json:"name"`
	IP       string `json:"ip"`
	Realm    string `json:"realm"`
	Spoofed  bool   `json:"spoofed"`
	Reserved bool   `json:"reserved"`
}

// Join seats a new player in the first open slot and returns its PID. Ladder
// games look up the player's rating in the background.
func (s *Session) Join(req JoinRequest) (uint8, error) {
	if err := s.requireLobby(); err != nil {
		return 0, err
	}
	name := strings.TrimSpace(req.Name)
	if !validName(name) {
		return 0, ErrInvalidArgument
	}
	for _, p := range s.connected() {
		if strings.EqualFold(p.Name, name) {
			return 0, ErrNameTaken
		}
	}
	idx := s.firstOpenSlot()
	if idx < 0 {
		return 0, ErrGameFull
	}
	pid := s.nextPID()
	if pid == 0 {
		return 0, ErrGameFull
	}
	p := &Player{
		PID:      pid,
		Name:     name,
		IP:       req.IP,
		Realm:    req.Realm,
		Spoofed:  req.Spoofed,
		Reserved: req.Reserved,
		Rating:   rating.UnsetRating,
		JoinedAt: s.now(),
	}
	s.players = append(s.players, p)
	s.slots[idx].PID = pid
	s.slots[idx].Status = SlotOccupied
	s.slots[idx].Computer = false

	if s.ladder && s.db != nil {
		s.ratings.Add(Requester{PID: pid, Name: name, Silent: true}, name, s.db.RatingSummaryCheck(name, s.cfg.Server))
	}
	log.Info().
		Str("game", s.cfg.GameName).
		Str("player", name).
		Uint8("pid", pid).
		Int("slot", idx+1).
		Msg("player joined")
	return pid, nil
}

// maxNameLen is the longest player name the game client can show.
const maxNameLen = 15

func validName(name string) bool {
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		return false
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func (s *Session) nextPID() uint8 {
	used := map[uint8]bool{}
	for _, p := range s.players {
		used[p.PID] = true
	}
	for pid := 1; pid < 256; pid++ {
		if !used[uint8(pid)] {
			return uint8(pid)
		}
	}
	return 0
}

func (s *Session) StartCountdown() error {
	if s.state != StateLobby {
		return ErrWrongState
	}
	s.state = StateCountdown
	s.countdownAt = s.now()
	s.out.SendAllChat("Countdown started!")
	log.Info().Str("game", s.cfg.GameName).Msg("countdown started")
	return nil
}

func (s *Session) AbortCountdown() error {
	if s.state != StateCountdown {
		return ErrWrongState
	}
	s.state = StateLobby
	s.countdownAt = time.Time{}
	s.out.SendAllChat("Countdown aborted!")
	return nil
}

// StartLoading leaves the countdown. It snapshots the ladder flag from
// configuration and writes one potential ban per seated player.
func (s *Session) StartLoading() error {
	if s.state != StateCountdown {
		return ErrWrongState
	}
	s.state = StateLoading
	s.loadingAt = s.now()
	s.ladder = s.ladder && s.cfg.Game.Ladder
	s.banRecords = s.banRecords[:0]
	for _, p := range s.connected() {
		s.banRecords = append(s.banRecords, store.Ban{
			Server:   s.realmOf(p),
			Name:     strings.ToLower(p.Name),
			IP:       p.IP,
			GameName: s.cfg.GameName,
		})
	}
	log.Info().
		Str("game", s.cfg.GameName).
		Int("players", len(s.banRecords)).
		Bool("ladder", s.ladder).
		Msg("started loading")
	return nil
}

// EventAllLoaded starts the auto-ban clock.
func (s *Session) EventAllLoaded() error {
	if s.state != StateLoading {
		return ErrWrongState
	}
	s.state = StateLoaded
	s.loadedAt = s.now()
	for _, p := range s.connected() {
		if p.FinishedLoadAt.IsZero() {
			p.FinishedLoadAt = s.loadedAt
		}
	}
	s.ReCalculateTeams()
	s.evenTeams = s.cfg.Game.NumTeams == 2 && s.teamCounts[0] == s.teamCounts[1]
	log.Info().
		Str("game", s.cfg.GameName).
		Bool("even_teams", s.evenTeams).
		Msg("game loaded")
	return nil
}

// EventStatsGameOver ends the match with the collected stats.
func (s *Session) EventStatsGameOver(stats store.MatchStats) error {
	if s.state != StateLoaded {
		return ErrWrongState
	}
	st := stats
	s.stats = &st
	return s.endGame("stats reported game over")
}

// EndGame is the admin path to Ended; no match stats are saved.
func (s *Session) EndGame() error {
	if s.state != StateLoaded {
		return ErrWrongState
	}
	return s.endGame("admin ended the game")
}

func (s *Session) endGame(why string) error {
	if s.gameOverSent {
		return nil
	}
	s.gameOverSent = true
	s.state = StateEnded
	s.endedAt = s.now()
	s.sendEndMessage()
	log.Info().Str("game", s.cfg.GameName).Str("cause", why).Msg("gameover timer started")

	if s.db != nil {
		s.gameAdd = s.db.GameAdd(store.GameRecord{
			Server:        s.cfg.Server,
			Map:           s.cfg.MapPath,
			GameName:      s.cfg.GameName,
			OwnerName:     s.ownerName,
			Duration:      int(s.endedAt.Sub(s.loadingAt).Seconds()),
			CreatorName:   s.cfg.CreatorName,
			CreatorServer: s.cfg.CreatorServer,
		})
	}
	return nil
}

func (s *Session) sendEndMessage() {
	if s.stats == nil || s.stats.Result.Winner == 0 {
		s.out.SendAllChat("The game is over.")
		return
	}
	s.out.SendAllChat(fmt.Sprintf("The game is over. Team %d won after %d:%02d.",
		s.stats.Result.Winner, s.stats.Result.Minutes, s.stats.Result.Seconds))
}

// EventPlayerLeft handles one real leave. It runs the auto-ban policy before
// the leaver is removed from the team counts.
func (s *Session) EventPlayerLeft(pid uint8, reason string) error {
	p := s.Player(pid)
	if p == nil {
		log.Warn().Str("game", s.cfg.GameName).Uint8("pid", pid).Msg("leave for unknown player")
		return ErrUnknownPlayer
	}
	if s.state == StateLoaded {
		s.ReCalculateTeams()
	}
	v := leaveView{
		state:       s.state,
		autoBan:     s.autoBan,
		isAdmin:     s.isAdmin(p),
		playersLeft: s.playersLeft,
		teamCounts:  s.teamCounts,
		teamDiff:    s.teamDiff,
		evenTeams:   s.evenTeams,
	}
	if s.state == StateLoaded {
		v.elapsed = s.now().Sub(s.loadedAt)
	}
	if team, ok := s.LookupTeamForPlayer(pid); ok {
		v.leaverTeam, v.hasSlot = team, true
	}
	d := s.policy.decide(v)

	if d.demote {
		s.autoBan = false
		s.ladder = false
		s.out.SendAllChat(msgDropped)
		log.Info().
			Str("game", s.cfg.GameName).
			Str("leaver", p.Name).
			Dur("elapsed", v.elapsed).
			Int("team_diff", v.teamDiff).
			Msg("ladder game dropped by early leaver")
		for _, other := range s.connected() {
			if other != p {
				s.disconnect(other, reasonDropped)
			}
		}
	}
	if d.stopBanning {
		s.autoBan = false
		s.out.SendAllChat(msgTooManyLeft)
	}
	if d.banOn {
		mins := s.cfg.AutoBan.GameEndMins
		s.out.SendAllChat(fmt.Sprintf("[AUTOBAN: %s] %s will be banned if he/she has not left within %d mins of game over time.",
			s.cfg.GameName, p.Name, mins))
		log.Info().
			Str("game", s.cfg.GameName).
			Str("player", p.Name).
			Str("policy", s.policy.Name()).
			Msg("added leaver to the autoban list")
		s.leavers = append(s.leavers, p.Name)
	}
	s.playerLeft(p, reason)
	return nil
}

// disconnect removes a player the host decided to drop. It is not a leave
// and never reaches the auto-ban policy.
func (s *Session) disconnect(p *Player, reason string) {
	s.out.Disconnect(p.PID, reason)
	s.out.SendAllChat(p.Name + " " + reason)
	s.playerLeft(p, reason)
}

// playerLeft is the shared bookkeeping for every way a player goes away.
func (s *Session) playerLeft(p *Player, reason string) {
	now := s.now()
	p.Left = true
	p.LeftReason = reason
	p.LeftAt = now

	if s.vote != nil && strings.EqualFold(s.vote.candidate, p.Name) {
		s.out.SendAllChat(fmt.Sprintf("A votekick against player [%s] has been cancelled", s.vote.candidate))
		s.vote = nil
	}

	idx := s.slotOf(p.PID)
	if !s.state.inGame() {
		if idx >= 0 {
			s.slots[idx] = emptySlot(SlotOpen, s.slots[idx].Team, s.slots[idx].Colour)
		}
		s.removePlayer(p)
		return
	}

	team, colour := -1, -1
	if idx >= 0 {
		team, colour = s.slots[idx].Team, s.slots[idx].Colour
	}
	loading := 0
	if !p.FinishedLoadAt.IsZero() {
		loading = int(p.FinishedLoadAt.Sub(s.loadingAt).Milliseconds())
	}
	s.recorded = append(s.recorded, recordedPlayer{
		rec: store.GamePlayerRecord{
			Name:         p.Name,
			IP:           p.IP,
			Spoofed:      p.Spoofed,
			SpoofedRealm: s.realmOf(p),
			Reserved:     p.Reserved,
			LoadingTime:  loading,
			LeftSeconds:  int(now.Sub(s.loadingAt).Seconds()),
			LeftReason:   reason,
			Team:         team,
			Colour:       colour,
		},
		leftAt:    now,
		leftEarly: s.state != StateEnded,
	})
	s.playersLeft++
}

func (s *Session) removePlayer(p *Player) {
	for i, q := range s.players {
		if q == p {
			s.players = append(s.players[:i], s.players[i+1:]...)
			return
		}
	}
}
