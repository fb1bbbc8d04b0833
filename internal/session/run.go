package session

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"hostbot/internal/store"
)

// Event is an input from outside the loop. It is applied inside a tick, after
// the pending queues are polled.
type Event interface {
	Kind() string
	apply(s *Session) error
}

type JoinEvent struct{ JoinRequest }

type LeaveEvent struct {
	PID    uint8  `json:"pid"`
	Reason string `json:"reason"`
}

type CommandEvent struct {
	PID     uint8  `json:"pid"`
	Command string `json:"command"`
	Payload string `json:"payload"`
}

type AllLoadedEvent struct{}

type GameOverEvent struct {
	Stats store.MatchStats `json:"stats"`
}

type CountdownDoneEvent struct{}

func (JoinEvent) Kind() string          { return "join" }
func (LeaveEvent) Kind() string         { return "leave" }
func (CommandEvent) Kind() string       { return "command" }
func (AllLoadedEvent) Kind() string     { return "loaded" }
func (GameOverEvent) Kind() string      { return "gameover" }
func (CountdownDoneEvent) Kind() string { return "countdown_done" }

func (e JoinEvent) apply(s *Session) error {
	_, err := s.Join(e.JoinRequest)
	return err
}

func (e LeaveEvent) apply(s *Session) error {
	reason := e.Reason
	if reason == "" {
		reason = "has left the game voluntarily"
	}
	return s.EventPlayerLeft(e.PID, reason)
}

func (e CommandEvent) apply(s *Session) error {
	err := s.Command(e.PID, e.Command, e.Payload)
	if err != nil && s.Player(e.PID) != nil {
		s.out.SendChat(e.PID, "Command "+e.Command+" failed: "+err.Error())
	}
	return err
}

func (AllLoadedEvent) apply(s *Session) error     { return s.EventAllLoaded() }
func (e GameOverEvent) apply(s *Session) error    { return s.EventStatsGameOver(e.Stats) }
func (CountdownDoneEvent) apply(s *Session) error { return s.StartLoading() }

// Submit queues ev for the loop without blocking.
func (s *Session) Submit(ev Event) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	default:
		return ErrEventQueueFull
	}
}

// Run ticks the session until ctx is cancelled, then destroys it. It is the
// only goroutine that touches session state.
func (s *Session) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.Tick()
			s.awaitGameData(ticker.C)
			s.Destroy()
			s.publish()
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// awaitGameData ticks an ended session until its game record is ready or
// Abandon is called.
func (s *Session) awaitGameData(tick <-chan time.Time) {
	for s.state == StateEnded && s.gameAdd != nil && !s.gameAdd.Ready() {
		select {
		case <-s.abandon:
			return
		case <-tick:
			s.Update(s.now())
			s.publish()
		}
	}
}

// Abandon stops a closing session from waiting on its game record. Safe from
// any goroutine.
func (s *Session) Abandon() {
	s.abandonOnce.Do(func() { close(s.abandon) })
}

// Tick polls, drains queued events and publishes a fresh snapshot.
func (s *Session) Tick() {
	s.Update(s.now())
	for drained := false; !drained; {
		select {
		case ev := <-s.events:
			if err := ev.apply(s); err != nil {
				log.Debug().
					Err(err).
					Str("game", s.cfg.GameName).
					Str("event", ev.Kind()).
					Msg("event rejected")
			}
		default:
			drained = true
		}
	}
	s.publish()
}

// Done is closed once Run has destroyed the session.
func (s *Session) Done() <-chan struct{} { return s.done }

type PlayerView struct {
	PID      uint8  `json:"pid"`
	Name     string `json:"name"`
	Slot     int    `json:"slot"`
	Team     int    `json:"team"`
	Colour   int    `json:"colour"`
	Rating   int    `json:"rating"`
	Reserved bool   `json:"reserved"`
}

type SlotView struct {
	Status   string `json:"status"`
	PID      uint8  `json:"pid,omitempty"`
	Computer bool   `json:"computer,omitempty"`
	Team     int    `json:"team"`
	Colour   int    `json:"colour"`
	Race     string `json:"race"`
	Handicap int    `json:"handicap"`
}

type Snapshot struct {
	ID             string       `json:"id"`
	GameName       string       `json:"game_name"`
	Owner          string       `json:"owner"`
	State          string       `json:"state"`
	Locked         bool         `json:"locked"`
	Ladder         bool         `json:"ladder"`
	AutoBan        bool         `json:"auto_ban"`
	Policy         string       `json:"policy"`
	Players        []PlayerView `json:"players"`
	Slots          []SlotView   `json:"slots"`
	TeamCounts     [4]int       `json:"team_counts"`
	TeamDiff       int          `json:"team_diff"`
	PlayersLeft    int          `json:"players_left"`
	PendingLeavers []string     `json:"pending_leavers"`
	PendingTasks   int          `json:"pending_tasks"`
	VoteKick       string       `json:"vote_kick,omitempty"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Snapshot returns the last state published by the loop. Safe from any
// goroutine.
func (s *Session) Snapshot() Snapshot {
	if p := s.snapshot.Load(); p != nil {
		return *p
	}
	return Snapshot{ID: s.cfg.ID, GameName: s.cfg.GameName}
}

func (s *Session) publish() {
	snap := &Snapshot{
		ID:             s.cfg.ID,
		GameName:       s.cfg.GameName,
		Owner:          s.ownerName,
		State:          s.state.String(),
		Locked:         s.locked,
		Ladder:         s.ladder,
		AutoBan:        s.autoBan,
		Policy:         s.policy.Name(),
		Players:        []PlayerView{},
		Slots:          make([]SlotView, 0, len(s.slots)),
		TeamCounts:     s.teamCounts,
		TeamDiff:       s.teamDiff,
		PlayersLeft:    s.playersLeft,
		PendingLeavers: s.PendingLeavers(),
		PendingTasks:   s.PendingTasks(),
		UpdatedAt:      s.now(),
	}
	if s.vote != nil {
		snap.VoteKick = s.vote.candidate
	}
	for _, p := range s.connected() {
		v := PlayerView{PID: p.PID, Name: p.Name, Slot: -1, Team: -1, Colour: -1, Rating: p.Rating, Reserved: p.Reserved}
		if idx := s.slotOf(p.PID); idx >= 0 {
			v.Slot, v.Team, v.Colour = idx+1, s.slots[idx].Team, s.slots[idx].Colour
		}
		snap.Players = append(snap.Players, v)
	}
	for _, sl := range s.slots {
		v := SlotView{
			PID:      sl.PID,
			Computer: sl.Computer,
			Team:     sl.Team,
			Colour:   sl.Colour,
			Race:     sl.Race.String(),
			Handicap: sl.Handicap,
		}
		switch sl.Status {
		case SlotOpen:
			v.Status = "open"
		case SlotClosed:
			v.Status = "closed"
		default:
			v.Status = "occupied"
		}
		snap.Slots = append(snap.Slots, v)
	}
	s.snapshot.Store(snap)
}
