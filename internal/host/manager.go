package host

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"hostbot/internal/config"
	"hostbot/internal/dbtask"
	"hostbot/internal/session"
)

var (
	ErrGameNotFound   = errors.New("game_not_found")
	ErrGameNameTaken  = errors.New("game_name_taken")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrShuttingDown   = errors.New("shutting_down")
)

type Options struct {
	Realm          string
	Game           config.GameConfig
	AutoBan        config.AutoBanConfig
	TickInterval   time.Duration
	OrphanInterval time.Duration
	EventBuffer    int
	OutboxSize     int
}

// HostRequest describes a new match. Empty fields fall back to configuration.
type HostRequest struct {
	GameName      string `json:"game_name"`
	MapPath       string `json:"map_path"`
	OwnerName     string `json:"owner_name"`
	CreatorName   string `json:"creator_name"`
	CreatorServer string `json:"creator_server"`
	Ladder        *bool  `json:"ladder,omitempty"`
	AutoBan       *bool  `json:"auto_ban,omitempty"`
	Algorithm     string `json:"autoban_algorithm,omitempty"`
}

type hostedGame struct {
	s      *session.Session
	out    *Outbox
	cancel context.CancelFunc
}

// Manager owns every hosted session, one goroutine each, plus the orphan list
// that outlives them.
type Manager struct {
	opts    Options
	backend session.Backend
	admins  session.Admins
	orphans *dbtask.Orphans

	mu       sync.Mutex
	games    map[string]*hostedGame
	closing  bool
	baseCtx  context.Context
	stopBase context.CancelFunc
}

func NewManager(opts Options, backend session.Backend, admins session.Admins) *Manager {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 50 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:     opts,
		backend:  backend,
		admins:   admins,
		orphans:  dbtask.NewOrphans(dbtask.AnyPool),
		games:    map[string]*hostedGame{},
		baseCtx:  ctx,
		stopBase: cancel,
	}
}

// Start runs the orphan janitor until ctx ends.
func (m *Manager) Start(ctx context.Context) {
	m.orphans.Start(ctx, m.opts.OrphanInterval)
}

func (m *Manager) Orphans() *dbtask.Orphans { return m.orphans }

func (m *Manager) Host(req HostRequest) (session.Snapshot, error) {
	name := strings.TrimSpace(req.GameName)
	if name == "" {
		return session.Snapshot{}, ErrInvalidRequest
	}
	cfg := session.Config{
		ID:            ulid.Make().String(),
		GameName:      name,
		MapPath:       req.MapPath,
		Server:        m.opts.Realm,
		OwnerName:     strings.TrimSpace(req.OwnerName),
		CreatorName:   req.CreatorName,
		CreatorServer: req.CreatorServer,
		Game:          m.opts.Game,
		AutoBan:       m.opts.AutoBan,
	}
	if req.Ladder != nil {
		cfg.Game.Ladder = *req.Ladder && m.opts.Game.Ladder
	}
	if req.AutoBan != nil {
		cfg.AutoBan.Enabled = *req.AutoBan
	}
	if req.Algorithm != "" {
		cfg.AutoBan.Algorithm = req.Algorithm
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		return session.Snapshot{}, ErrShuttingDown
	}
	for _, g := range m.games {
		if strings.EqualFold(g.s.GameName(), name) {
			return session.Snapshot{}, ErrGameNameTaken
		}
	}
	out := NewOutbox(cfg.ID, m.opts.OutboxSize)
	s := session.New(cfg, session.Deps{
		Admins:    m.admins,
		Transport: out,
		Backend:   m.backend,
		Orphans:   m.orphans,
	}, m.opts.EventBuffer)
	ctx, cancel := context.WithCancel(m.baseCtx)
	m.games[cfg.ID] = &hostedGame{s: s, out: out, cancel: cancel}
	go s.Run(ctx, m.opts.TickInterval)

	metricGamesHosted.Inc()
	metricGamesActive.Set(float64(len(m.games)))
	log.Info().
		Str("game_id", cfg.ID).
		Str("game", name).
		Str("owner", cfg.OwnerName).
		Bool("ladder", cfg.Game.Ladder).
		Str("autoban", s.Snapshot().Policy).
		Msg("hosting game")
	return s.Snapshot(), nil
}

func (m *Manager) lookup(id string) (*hostedGame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	return g, ok
}

// Event queues ev for the game's next tick.
func (m *Manager) Event(id string, ev session.Event) error {
	g, ok := m.lookup(id)
	if !ok {
		metricEventsRejected.WithLabelValues("not_found").Inc()
		return ErrGameNotFound
	}
	err := g.s.Submit(ev)
	switch {
	case errors.Is(err, session.ErrEventQueueFull):
		metricEventsRejected.WithLabelValues("queue_full").Inc()
	case errors.Is(err, session.ErrSessionClosed):
		metricEventsRejected.WithLabelValues("closed").Inc()
	}
	return err
}

func (m *Manager) Game(id string) (session.Snapshot, bool) {
	g, ok := m.lookup(id)
	if !ok {
		return session.Snapshot{}, false
	}
	return g.s.Snapshot(), true
}

func (m *Manager) Outbox(id string) (*Outbox, bool) {
	g, ok := m.lookup(id)
	if !ok {
		return nil, false
	}
	return g.out, true
}

// List returns every hosted game in creation order.
func (m *Manager) List() []session.Snapshot {
	m.mu.Lock()
	out := make([]session.Snapshot, 0, len(m.games))
	for _, g := range m.games {
		out = append(out, g.s.Snapshot())
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Unhost stops the game's loop, which applies queued events, waits for an
// ended game's record while ctx allows, and destroys the session.
func (m *Manager) Unhost(ctx context.Context, id string) error {
	m.mu.Lock()
	g, ok := m.games[id]
	if ok {
		delete(m.games, id)
		metricGamesActive.Set(float64(len(m.games)))
	}
	m.mu.Unlock()
	if !ok {
		return ErrGameNotFound
	}
	m.stop(ctx, id, g)
	return nil
}

func (m *Manager) stop(ctx context.Context, id string, g *hostedGame) {
	g.cancel()
	select {
	case <-g.s.Done():
	case <-ctx.Done():
		log.Warn().Str("game_id", id).Msg("gave up waiting for game data, closing anyway")
		g.s.Abandon()
		<-g.s.Done()
	}
	g.out.Append(EventClosed, g.s.Snapshot())
	g.out.Close()
	log.Info().Str("game_id", id).Str("game", g.s.GameName()).Msg("game unhosted")
}

type Status struct {
	DB      string `json:"db"`
	Games   int    `json:"games"`
	Orphans int    `json:"orphans"`
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	games := len(m.games)
	m.mu.Unlock()
	return Status{DB: m.backend.Status(), Games: games, Orphans: m.orphans.Len()}
}

// Shutdown unhosts every game and then drains the orphans until ctx ends.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	m.closing = true
	games := m.games
	m.games = map[string]*hostedGame{}
	metricGamesActive.Set(0)
	m.mu.Unlock()

	for id, g := range games {
		m.stop(ctx, id, g)
	}
	m.stopBase()
	m.orphans.Drain(ctx, 0)
}
