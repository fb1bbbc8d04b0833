package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"hostbot/internal/config"
	"hostbot/internal/dbtask"
	"hostbot/internal/rating"
	"hostbot/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type disconnectCall struct {
	pid    uint8
	reason string
}

type fakeTransport struct {
	mu          sync.Mutex
	chats       map[uint8][]string
	all         []string
	disconnects []disconnectCall
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{chats: map[uint8][]string{}}
}

func (t *fakeTransport) SendChat(pid uint8, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chats[pid] = append(t.chats[pid], text)
}

func (t *fakeTransport) SendAllChat(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.all = append(t.all, text)
}

func (t *fakeTransport) Disconnect(pid uint8, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnects = append(t.disconnects, disconnectCall{pid: pid, reason: reason})
}

func (t *fakeTransport) allContains(sub string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.all {
		if strings.Contains(m, sub) {
			return true
		}
	}
	return false
}

func (t *fakeTransport) chatContains(pid uint8, sub string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.chats[pid] {
		if strings.Contains(m, sub) {
			return true
		}
	}
	return false
}

func (t *fakeTransport) disconnected() []disconnectCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]disconnectCall(nil), t.disconnects...)
}

type fakeAdmins struct {
	admins map[string]bool
	roots  map[string]bool
}

func (a fakeAdmins) IsAdmin(_, name string) bool     { return a.admins[strings.ToLower(name)] }
func (a fakeAdmins) IsRootAdmin(_, name string) bool { return a.roots[strings.ToLower(name)] }

// fakeBackend answers every call with an already-ready Task unless a
// dispatcher is set for game records.
type fakeBackend struct {
	mu sync.Mutex

	ban       *store.Ban
	summary   *store.PlayerSummary
	ratingRec map[string]*rating.Record
	gameID    int64
	gameErr   error

	gameDispatcher *dbtask.Dispatcher
	gameGate       chan struct{}

	bansAdded     []store.Ban
	gamePlayers   []store.GamePlayerRecord
	statsAdded    int
	ratingUpdates []store.RatingUpdate
	reclaimed     int
}

func (b *fakeBackend) BanCheck(_, _, _ string) *dbtask.Task[*store.Ban] {
	return dbtask.Done(store.CategoryBanCheck, b.ban, nil)
}

func (b *fakeBackend) BanAdd(ban store.Ban) *dbtask.Task[bool] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bansAdded = append(b.bansAdded, ban)
	return dbtask.Done(store.CategoryBanAdd, true, nil)
}

func (b *fakeBackend) PlayerSummaryCheck(string) *dbtask.Task[*store.PlayerSummary] {
	return dbtask.Done(store.CategoryPlayerSummary, b.summary, nil)
}

func (b *fakeBackend) RatingSummaryCheck(name, _ string) *dbtask.Task[*rating.Record] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return dbtask.Done(store.CategoryRatingSummary, b.ratingRec[strings.ToLower(name)], nil)
}

func (b *fakeBackend) FromCheck(ips []string) *dbtask.Task[[]string] {
	out := make([]string, len(ips))
	for i := range ips {
		out[i] = "NL"
	}
	return dbtask.Done(store.CategoryFromCheck, out, nil)
}

func (b *fakeBackend) GameAdd(store.GameRecord) *dbtask.Task[int64] {
	if b.gameDispatcher != nil {
		gate := b.gameGate
		return dbtask.Submit(b.gameDispatcher, store.CategoryGameAdd, func(context.Context, dbtask.Conn) (int64, error) {
			<-gate
			return 7, nil
		})
	}
	return dbtask.Done(store.CategoryGameAdd, b.gameID, b.gameErr)
}

func (b *fakeBackend) GamePlayerAdd(p store.GamePlayerRecord) *dbtask.Task[bool] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gamePlayers = append(b.gamePlayers, p)
	return dbtask.Done(store.CategoryGamePlayerAdd, true, nil)
}

func (b *fakeBackend) StatsAdd(int64, store.MatchStats) *dbtask.Task[bool] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statsAdded++
	return dbtask.Done(store.CategoryStatsAdd, true, nil)
}

func (b *fakeBackend) RatingUpdate(u store.RatingUpdate) *dbtask.Task[rating.Record] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ratingUpdates = append(b.ratingUpdates, u)
	return dbtask.Done(store.CategoryRatingUpdate, rating.Record{}, nil)
}

func (b *fakeBackend) Reclaim(h dbtask.Handle) bool {
	b.mu.Lock()
	b.reclaimed++
	b.mu.Unlock()
	return dbtask.Release(h)
}

func (b *fakeBackend) Status() string { return "DB STATUS --- fake" }

type fakeOrphans struct {
	mu      sync.Mutex
	handles []dbtask.Handle
}

func (o *fakeOrphans) Adopt(hs ...dbtask.Handle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handles = append(o.handles, hs...)
}

type fixture struct {
	s       *Session
	clock   *fakeClock
	out     *fakeTransport
	db      *fakeBackend
	adopted *fakeOrphans
}

func testConfig() Config {
	game, _ := config.LoadGame()
	ab, _ := config.LoadAutoBan()
	return Config{
		ID:        "g1",
		GameName:  "dota ladder",
		MapPath:   "maps/dota.w3x",
		Server:    "europe",
		OwnerName: "owner",
		Game:      game,
		AutoBan:   ab,
	}
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	f := &fixture{
		clock:   newFakeClock(),
		out:     newFakeTransport(),
		db:      &fakeBackend{gameID: 42, ratingRec: map[string]*rating.Record{}},
		adopted: &fakeOrphans{},
	}
	f.s = New(cfg, Deps{
		Admins:    fakeAdmins{admins: map[string]bool{"admin": true}, roots: map[string]bool{"root": true}},
		Transport: f.out,
		Backend:   f.db,
		Orphans:   f.adopted,
		Now:       f.clock.Now,
	}, 16)
	return f
}

// join seats n players named p1..pn and returns their PIDs in slot order.
func (f *fixture) join(t *testing.T, n int) []uint8 {
	t.Helper()
	pids := make([]uint8, 0, n)
	for i := 1; i <= n; i++ {
		pid, err := f.s.Join(JoinRequest{Name: fmt.Sprintf("p%d", i), IP: fmt.Sprintf("10.0.0.%d", i)})
		if err != nil {
			t.Fatalf("join p%d: %v", i, err)
		}
		pids = append(pids, pid)
	}
	return pids
}

// loaded brings a lobby with n players to the Loaded state.
func (f *fixture) loaded(t *testing.T, n int) []uint8 {
	t.Helper()
	pids := f.join(t, n)
	if err := f.s.StartCountdown(); err != nil {
		t.Fatalf("start countdown: %v", err)
	}
	if err := f.s.StartLoading(); err != nil {
		t.Fatalf("start loading: %v", err)
	}
	if err := f.s.EventAllLoaded(); err != nil {
		t.Fatalf("all loaded: %v", err)
	}
	return pids
}

type stubConn struct{}

func (stubConn) Ping(context.Context) error  { return nil }
func (stubConn) Close(context.Context) error { return nil }

func newStubDispatcher(t *testing.T) *dbtask.Dispatcher {
	t.Helper()
	pool, err := dbtask.NewPool(context.Background(), func(context.Context) (dbtask.Conn, error) {
		return stubConn{}, nil
	}, 2)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(func() { pool.Close(context.Background()) })
	return dbtask.NewDispatcher(pool, dbtask.DispatcherOptions{MaxWorkers: 4})
}
