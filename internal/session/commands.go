package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"hostbot/internal/store"
)

type accessLevel int

const (
	levelAnyone accessLevel = iota
	levelAdmin
	levelRoot
)

type command struct {
	level accessLevel
	run   func(s *Session, issuer *Player, payload string) error
}

var commands = map[string]command{
	"open":         {levelAdmin, cmdOpen},
	"close":        {levelAdmin, cmdClose},
	"swap":         {levelAdmin, cmdSwap},
	"comp":         {levelAdmin, cmdComp},
	"compteam":     {levelAdmin, cmdCompTeam},
	"comprace":     {levelAdmin, cmdCompRace},
	"comphandicap": {levelAdmin, cmdCompHandicap},
	"compcolour":   {levelAdmin, cmdCompColour},
	"lock":         {levelAdmin, cmdLock},
	"unlock":       {levelAdmin, cmdUnlock},
	"start":        {levelAdmin, func(s *Session, _ *Player, _ string) error { return s.StartCountdown() }},
	"abort":        {levelAdmin, func(s *Session, _ *Player, _ string) error { return s.AbortCountdown() }},
	"end":          {levelAdmin, func(s *Session, _ *Player, _ string) error { return s.EndGame() }},
	"kick":         {levelAdmin, cmdKick},
	"votekick":     {levelAnyone, func(s *Session, p *Player, payload string) error { return s.StartVoteKick(p, payload) }},
	"yes":          {levelAnyone, func(s *Session, p *Player, _ string) error { return s.VoteYes(p) }},
	"votecancel":   {levelAdmin, func(s *Session, _ *Player, _ string) error { return s.CancelVoteKick() }},
	"checkban":     {levelAdmin, cmdCheckBan},
	"ban":          {levelAdmin, cmdBan},
	"stats":        {levelAnyone, cmdStats},
	"sd":           {levelAnyone, cmdStatsDota},
	"from":         {levelAnyone, cmdFrom},
	"autoban":      {levelAnyone, cmdAutoBan},
	"dbstatus":     {levelRoot, cmdDBStatus},
	"ladder":       {levelAdmin, cmdLadder},
}

func (s *Session) accessOf(p *Player) accessLevel {
	switch {
	case s.isRootAdmin(p):
		return levelRoot
	case s.isAdmin(p) || s.isOwner(p):
		return levelAdmin
	default:
		return levelAnyone
	}
}

// Command runs a chat command issued by pid. The access guard is checked once
// here: admin commands need an admin, root admin or the owner, and a locked
// game only accepts them from the owner or a root admin.
func (s *Session) Command(pid uint8, name, payload string) error {
	issuer := s.Player(pid)
	if issuer == nil {
		return ErrUnknownPlayer
	}
	cmd, ok := commands[strings.ToLower(name)]
	if !ok {
		return ErrUnknownCommand
	}
	level := s.accessOf(issuer)
	if cmd.level > level {
		return ErrNotPermitted
	}
	if s.locked && cmd.level >= levelAdmin && !s.isOwner(issuer) && level < levelRoot {
		return ErrLocked
	}
	return cmd.run(s, issuer, strings.TrimSpace(payload))
}

func (s *Session) requesterFor(p *Player) Requester {
	if s.state == StateLobby {
		return Requester{PID: p.PID, Name: p.Name, Broadcast: true}
	}
	return Requester{PID: p.PID, Name: p.Name}
}

func cmdOpen(s *Session, _ *Player, payload string) error {
	for _, arg := range strings.Fields(payload) {
		idx, err := s.parseSlot(arg)
		if err != nil {
			return err
		}
		if err := s.OpenSlot(idx); err != nil {
			return err
		}
	}
	return nil
}

func cmdClose(s *Session, _ *Player, payload string) error {
	for _, arg := range strings.Fields(payload) {
		idx, err := s.parseSlot(arg)
		if err != nil {
			return err
		}
		if err := s.CloseSlot(idx); err != nil {
			return err
		}
	}
	return nil
}

func cmdSwap(s *Session, _ *Player, payload string) error {
	args := strings.Fields(payload)
	if len(args) != 2 {
		return ErrInvalidArgument
	}
	a, err := s.parseSlot(args[0])
	if err != nil {
		return err
	}
	b, err := s.parseSlot(args[1])
	if err != nil {
		return err
	}
	return s.SwapSlots(a, b)
}

func cmdComp(s *Session, _ *Player, payload string) error {
	args := strings.Fields(payload)
	if len(args) == 0 || len(args) > 2 {
		return ErrInvalidArgument
	}
	idx, err := s.parseSlot(args[0])
	if err != nil {
		return err
	}
	level := 1
	if len(args) == 2 {
		if level, err = strconv.Atoi(args[1]); err != nil {
			return ErrInvalidArgument
		}
	}
	return s.ComputerSlot(idx, level)
}

func cmdCompTeam(s *Session, _ *Player, payload string) error {
	args := strings.Fields(payload)
	if len(args) != 2 {
		return ErrInvalidArgument
	}
	idx, err := s.parseSlot(args[0])
	if err != nil {
		return err
	}
	team, err := strconv.Atoi(args[1])
	if err != nil {
		return ErrInvalidArgument
	}
	return s.ComputerTeam(idx, team-1)
}

func cmdCompRace(s *Session, _ *Player, payload string) error {
	slot, rest, ok := strings.Cut(payload, " ")
	if !ok {
		return ErrInvalidArgument
	}
	idx, err := s.parseSlot(slot)
	if err != nil {
		return err
	}
	race, ok := parseRace(strings.ToLower(strings.TrimSpace(rest)))
	if !ok {
		return ErrInvalidArgument
	}
	return s.ComputerRace(idx, race)
}

func cmdCompHandicap(s *Session, _ *Player, payload string) error {
	idx, n, err := s.slotAndNumber(payload)
	if err != nil {
		return err
	}
	return s.ComputerHandicap(idx, n)
}

func cmdCompColour(s *Session, _ *Player, payload string) error {
	idx, n, err := s.slotAndNumber(payload)
	if err != nil {
		return err
	}
	return s.ComputerColour(idx, n)
}

// slotAndNumber parses "<slot> <n>" payloads.
func (s *Session) slotAndNumber(payload string) (int, int, error) {
	args := strings.Fields(payload)
	if len(args) != 2 {
		return 0, 0, ErrInvalidArgument
	}
	idx, err := s.parseSlot(args[0])
	if err != nil {
		return 0, 0, err
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, ErrInvalidArgument
	}
	return idx, n, nil
}

func cmdLock(s *Session, p *Player, _ string) error {
	s.locked = true
	s.out.SendAllChat(fmt.Sprintf("Game locked. Only the game owner and root admins can run game commands (by %s)", p.Name))
	return nil
}

func cmdUnlock(s *Session, p *Player, _ string) error {
	s.locked = false
	s.out.SendAllChat(fmt.Sprintf("Game unlocked. All admins can run game commands (by %s)", p.Name))
	return nil
}

func cmdKick(s *Session, p *Player, payload string) error {
	victim, err := s.findPlayer(payload)
	if err != nil {
		return err
	}
	s.disconnect(victim, "was kicked by "+p.Name)
	return nil
}

func cmdCheckBan(s *Session, p *Player, payload string) error {
	name := strings.TrimSpace(payload)
	if name == "" {
		return ErrInvalidArgument
	}
	s.banChecks.Add(broadcast, name, s.db.BanCheck(s.cfg.Server, name, ""))
	return nil
}

// cmdBan bans a connected player or, once the game has started, anyone who
// was seated when loading began.
func cmdBan(s *Session, p *Player, payload string) error {
	name, reason, _ := strings.Cut(payload, " ")
	if name == "" {
		return ErrInvalidArgument
	}
	ban, err := s.banTarget(name)
	if err != nil {
		return err
	}
	ban.Admin = p.Name
	ban.Reason = strings.TrimSpace(reason)
	s.banAdds.Add(s.requesterFor(p), ban.Name, s.db.BanAdd(ban))
	return nil
}

func (s *Session) banTarget(partial string) (store.Ban, error) {
	if target, err := s.findPlayer(partial); err == nil {
		return store.Ban{
			Server:   s.realmOf(target),
			Name:     strings.ToLower(target.Name),
			IP:       target.IP,
			GameName: s.cfg.GameName,
		}, nil
	} else if errors.Is(err, ErrAmbiguousPlayer) {
		return store.Ban{}, err
	}
	partial = strings.ToLower(partial)
	var (
		match   store.Ban
		matches int
	)
	for _, b := range s.banRecords {
		if b.Name == partial {
			return b, nil
		}
		if strings.Contains(b.Name, partial) {
			match = b
			matches++
		}
	}
	switch matches {
	case 0:
		return store.Ban{}, ErrUnknownPlayer
	case 1:
		return match, nil
	default:
		return store.Ban{}, ErrAmbiguousPlayer
	}
}

func cmdStats(s *Session, p *Player, payload string) error {
	name := payload
	if name == "" {
		name = p.Name
	}
	s.summaries.Add(s.requesterFor(p), name, s.db.PlayerSummaryCheck(name))
	return nil
}

func cmdStatsDota(s *Session, p *Player, payload string) error {
	name := payload
	if name == "" {
		name = p.Name
	}
	s.ratings.Add(s.requesterFor(p), name, s.db.RatingSummaryCheck(name, s.cfg.Server))
	return nil
}

func cmdFrom(s *Session, p *Player, _ string) error {
	players := s.connected()
	names := make([]string, 0, len(players))
	ips := make([]string, 0, len(players))
	for _, q := range players {
		names = append(names, q.Name)
		ips = append(ips, q.IP)
	}
	s.froms.Add(s.requesterFor(p), strings.Join(names, "\x00"), s.db.FromCheck(ips))
	return nil
}

func cmdAutoBan(s *Session, p *Player, payload string) error {
	if payload == "" {
		reply := "Auto ban is OFF"
		if s.autoBan {
			reply = "Auto ban is ON"
		} else if s.ladder {
			reply += ". This game will be saved to your ladder stats"
		}
		s.out.SendChat(p.PID, reply)
		return nil
	}
	if s.accessOf(p) < levelAdmin {
		return ErrNotPermitted
	}
	switch strings.ToLower(payload) {
	case "on":
		s.autoBan = true
		s.out.SendAllChat("Auto ban is ON")
	case "off":
		s.autoBan = false
		s.out.SendAllChat("Auto ban is OFF")
	default:
		return ErrInvalidArgument
	}
	return nil
}

func cmdDBStatus(s *Session, p *Player, _ string) error {
	s.out.SendChat(p.PID, s.db.Status())
	return nil
}

func cmdLadder(s *Session, p *Player, payload string) error {
	if payload == "" {
		state := "OFF"
		if s.ladder {
			state = "ON"
		}
		s.out.SendChat(p.PID, "Ladder is "+state)
		return nil
	}
	if err := s.requireLobby(); err != nil {
		return err
	}
	switch strings.ToLower(payload) {
	case "on":
		if !s.cfg.Game.Ladder {
			return ErrNotPermitted
		}
		s.ladder = true
	case "off":
		s.ladder = false
	default:
		return ErrInvalidArgument
	}
	s.out.SendAllChat("Ladder is " + strings.ToUpper(payload))
	return nil
}
