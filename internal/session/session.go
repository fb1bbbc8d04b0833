package session

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"hostbot/internal/config"
	"hostbot/internal/dbtask"
	"hostbot/internal/rating"
	"hostbot/internal/store"
)

// Admins answers bot-wide permission questions for a realm.
type Admins interface {
	IsAdmin(realm, name string) bool
	IsRootAdmin(realm, name string) bool
}

// Transport delivers player-visible output. Implementations must not block the
// caller.
type Transport interface {
	SendChat(pid uint8, text string)
	SendAllChat(text string)
	Disconnect(pid uint8, reason string)
}

// Backend is the asynchronous persistence surface. Every call returns at once;
// the session polls the Task on later ticks and hands it back to Reclaim.
type Backend interface {
	BanCheck(server, name, ip string) *dbtask.Task[*store.Ban]
	BanAdd(b store.Ban) *dbtask.Task[bool]
	PlayerSummaryCheck(name string) *dbtask.Task[*store.PlayerSummary]
	RatingSummaryCheck(name, server string) *dbtask.Task[*rating.Record]
	FromCheck(ips []string) *dbtask.Task[[]string]
	GameAdd(g store.GameRecord) *dbtask.Task[int64]
	GamePlayerAdd(p store.GamePlayerRecord) *dbtask.Task[bool]
	StatsAdd(gameID int64, stats store.MatchStats) *dbtask.Task[bool]
	RatingUpdate(u store.RatingUpdate) *dbtask.Task[rating.Record]
	Reclaim(h dbtask.Handle) bool
	Status() string
}

// OrphanSink takes ownership of Tasks that outlive their session.
type OrphanSink interface {
	Adopt(hs ...dbtask.Handle)
}

type Config struct {
	ID            string
	GameName      string
	MapPath       string
	Server        string
	OwnerName     string
	CreatorName   string
	CreatorServer string

	Game    config.GameConfig
	AutoBan config.AutoBanConfig
}

type Deps struct {
	Admins    Admins
	Transport Transport
	Backend   Backend
	Orphans   OrphanSink
	// Now defaults to time.Now.
	Now func() time.Time
}

type Player struct {
	PID      uint8
	Name     string
	IP       string
	Realm    string
	Spoofed  bool
	Reserved bool
	Rating   int

	JoinedAt       time.Time
	FinishedLoadAt time.Time

	Left       bool
	LeftReason string
	LeftAt     time.Time

	voted bool
}

type SlotStatus int

const (
	SlotOpen SlotStatus = iota
	SlotClosed
	SlotOccupied
)

// Race is a computer's race. The zero value lets the game pick.
type Race int

const (
	RaceRandom Race = iota
	RaceHuman
	RaceOrc
	RaceNightElf
	RaceUndead
)

var raceNames = map[Race]string{
	RaceRandom:   "random",
	RaceHuman:    "human",
	RaceOrc:      "orc",
	RaceNightElf: "night elf",
	RaceUndead:   "undead",
}

func (r Race) String() string { return raceNames[r] }

func parseRace(name string) (Race, bool) {
	for r, n := range raceNames {
		if n == name {
			return r, true
		}
	}
	return RaceRandom, false
}

type Slot struct {
	PID           uint8
	Status        SlotStatus
	Computer      bool
	ComputerLevel int
	Team          int
	Colour        int
	Race          Race
	Handicap      int
}

// recordedPlayer is a GamePlayerRecord waiting for the game id, plus what
// teardown needs to decide on autobans and rating updates.
type recordedPlayer struct {
	rec       store.GamePlayerRecord
	leftAt    time.Time
	leftEarly bool
}

// Session is one hosted match. All fields are owned by the goroutine running
// Run; other goroutines talk to it through Submit and Snapshot.
type Session struct {
	cfg     Config
	policy  Policy
	admins  Admins
	out     Transport
	db      Backend
	orphans OrphanSink
	now     func() time.Time

	state        State
	locked       bool
	players      []*Player
	slots        []Slot
	teamCounts   [4]int
	teamDiff     int
	banRecords   []store.Ban
	autoBan      bool
	leavers      []string
	ownerName    string
	ladder       bool
	evenTeams    bool
	gameAdd      *dbtask.Task[int64]
	playersLeft  int
	countdownAt  time.Time
	loadingAt    time.Time
	loadedAt     time.Time
	endedAt      time.Time
	gameOverSent bool
	stats        *store.MatchStats
	vote         *voteKick
	recorded     []recordedPlayer

	banChecks PendingQueue[*store.Ban]
	banAdds   PendingQueue[bool]
	summaries PendingQueue[*store.PlayerSummary]
	ratings   PendingQueue[*rating.Record]
	froms     PendingQueue[[]string]

	events   chan Event
	snapshot atomic.Pointer[Snapshot]
	done     chan struct{}

	abandon     chan struct{}
	abandonOnce sync.Once
}

func New(cfg Config, deps Deps, eventBuffer int) *Session {
	if cfg.Game.NumTeams <= 0 {
		cfg.Game.NumTeams = 2
	}
	if cfg.Game.SlotsPerTeam <= 0 {
		cfg.Game.SlotsPerTeam = 5
	}
	if cfg.Game.EloK <= 0 {
		cfg.Game.EloK = rating.DefaultK
	}
	if eventBuffer <= 0 {
		eventBuffer = 256
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	s := &Session{
		cfg:       cfg,
		policy:    NewPolicy(cfg.AutoBan, cfg.Game),
		admins:    deps.Admins,
		out:       deps.Transport,
		db:        deps.Backend,
		orphans:   deps.Orphans,
		now:       now,
		state:     StateLobby,
		slots:     newSlots(cfg.Game.NumTeams, cfg.Game.SlotsPerTeam),
		autoBan:   cfg.AutoBan.Enabled,
		ownerName: cfg.OwnerName,
		ladder:    cfg.Game.Ladder,
		banChecks: PendingQueue[*store.Ban]{category: store.CategoryBanCheck},
		banAdds:   PendingQueue[bool]{category: store.CategoryBanAdd},
		summaries: PendingQueue[*store.PlayerSummary]{category: store.CategoryPlayerSummary},
		ratings:   PendingQueue[*rating.Record]{category: store.CategoryRatingSummary},
		froms:     PendingQueue[[]string]{category: store.CategoryFromCheck},
		events:    make(chan Event, eventBuffer),
		done:      make(chan struct{}),
		abandon:   make(chan struct{}),
	}
	s.publish()
	return s
}

func (s *Session) ID() string       { return s.cfg.ID }
func (s *Session) GameName() string { return s.cfg.GameName }
func (s *Session) State() State     { return s.state }
func (s *Session) IsLadder() bool   { return s.ladder }
func (s *Session) AutoBan() bool    { return s.autoBan }
func (s *Session) TeamDiff() int    { return s.teamDiff }
func (s *Session) PlayersLeft() int { return s.playersLeft }
func (s *Session) Locked() bool     { return s.locked }

func (s *Session) PendingLeavers() []string {
	return append([]string(nil), s.leavers...)
}

// Player returns the connected player with pid.
func (s *Session) Player(pid uint8) *Player {
	for _, p := range s.players {
		if p.PID == pid && !p.Left {
			return p
		}
	}
	return nil
}

func (s *Session) connected() []*Player {
	out := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		if !p.Left {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) numHumans() int {
	return len(s.connected())
}

// findPlayer matches a partial, case-insensitive name against connected
// players. An exact match always wins.
func (s *Session) findPlayer(partial string) (*Player, error) {
	partial = strings.ToLower(strings.TrimSpace(partial))
	if partial == "" {
		return nil, ErrInvalidArgument
	}
	var match *Player
	matches := 0
	for _, p := range s.connected() {
		name := strings.ToLower(p.Name)
		if name == partial {
			return p, nil
		}
		if strings.Contains(name, partial) {
			match = p
			matches++
		}
	}
	switch matches {
	case 0:
		return nil, ErrUnknownPlayer
	case 1:
		return match, nil
	default:
		return nil, ErrAmbiguousPlayer
	}
}

func (s *Session) realmOf(p *Player) string {
	if p.Realm != "" {
		return p.Realm
	}
	return s.cfg.Server
}

func (s *Session) isOwner(p *Player) bool {
	return s.ownerName != "" && strings.EqualFold(p.Name, s.ownerName)
}

func (s *Session) isAdmin(p *Player) bool {
	if s.admins == nil {
		return false
	}
	realm := s.realmOf(p)
	return s.admins.IsAdmin(realm, p.Name) || s.admins.IsRootAdmin(realm, p.Name)
}

func (s *Session) isRootAdmin(p *Player) bool {
	return s.admins != nil && s.admins.IsRootAdmin(s.realmOf(p), p.Name)
}
