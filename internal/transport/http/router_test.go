package httptransport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"hostbot/internal/config"
	"hostbot/internal/dbtask"
	"hostbot/internal/host"
	"hostbot/internal/rating"
	"hostbot/internal/store"
)

type stubBackend struct{}

func (stubBackend) BanCheck(_, _, _ string) *dbtask.Task[*store.Ban] {
	return dbtask.Done[*store.Ban](store.CategoryBanCheck, nil, nil)
}
func (stubBackend) BanAdd(store.Ban) *dbtask.Task[bool] {
	return dbtask.Done(store.CategoryBanAdd, true, nil)
}
func (stubBackend) PlayerSummaryCheck(string) *dbtask.Task[*store.PlayerSummary] {
	return dbtask.Done[*store.PlayerSummary](store.CategoryPlayerSummary, nil, nil)
}
func (stubBackend) RatingSummaryCheck(_, _ string) *dbtask.Task[*rating.Record] {
	return dbtask.Done[*rating.Record](store.CategoryRatingSummary, nil, nil)
}
func (stubBackend) FromCheck(ips []string) *dbtask.Task[[]string] {
	return dbtask.Done(store.CategoryFromCheck, make([]string, len(ips)), nil)
}
func (stubBackend) GameAdd(store.GameRecord) *dbtask.Task[int64] {
	return dbtask.Done(store.CategoryGameAdd, int64(1), nil)
}
func (stubBackend) GamePlayerAdd(store.GamePlayerRecord) *dbtask.Task[bool] {
	return dbtask.Done(store.CategoryGamePlayerAdd, true, nil)
}
func (stubBackend) StatsAdd(int64, store.MatchStats) *dbtask.Task[bool] {
	return dbtask.Done(store.CategoryStatsAdd, true, nil)
}
func (stubBackend) RatingUpdate(store.RatingUpdate) *dbtask.Task[rating.Record] {
	return dbtask.Done(store.CategoryRatingUpdate, rating.Record{}, nil)
}
func (stubBackend) Reclaim(h dbtask.Handle) bool { return dbtask.Release(h) }
func (stubBackend) Status() string               { return "DB STATUS --- stub" }

type fakeRecords struct {
	mu       sync.Mutex
	top      []store.TopPlayer
	bans     map[string]bool
	servers  []string
	reclaims int
}

func (f *fakeRecords) TopPlayers(server string, limit int) *dbtask.Task[[]store.TopPlayer] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servers = append(f.servers, server)
	top := f.top
	if len(top) > limit {
		top = top[:limit]
	}
	return dbtask.Done(store.CategoryTopPlayers, top, nil)
}

func (f *fakeRecords) BanRemove(_, name string) *dbtask.Task[bool] {
	f.mu.Lock()
	defer f.mu.Unlock()
	ok := f.bans[name]
	delete(f.bans, name)
	return dbtask.Done(store.CategoryBanRemove, ok, nil)
}

func (f *fakeRecords) BanCount(server string) *dbtask.Task[int] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servers = append(f.servers, server)
	return dbtask.Done(store.CategoryBanCount, len(f.bans), nil)
}

func (f *fakeRecords) Reclaim(dbtask.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reclaims++
	return false
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testServer struct {
	games   *host.Manager
	records *fakeRecords
	router  http.Handler
}

func newTestServer(t *testing.T, adminKey string, health Pinger) *testServer {
	t.Helper()
	game, _ := config.LoadGame()
	ab, _ := config.LoadAutoBan()
	m := host.NewManager(host.Options{
		Realm:        "europe",
		Game:         game,
		AutoBan:      ab,
		TickInterval: 5 * time.Millisecond,
	}, stubBackend{}, host.NewAdmins(nil, nil))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		m.Shutdown(ctx)
	})
	rec := &fakeRecords{bans: map[string]bool{}}
	return &testServer{
		games:   m,
		records: rec,
		router: NewRouter(RouterDeps{
			Games:       m,
			Records:     rec,
			Health:      health,
			Realm:       "europe",
			AdminAPIKey: adminKey,
		}),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, key string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "", fakePinger{})
	if w := s.do(t, http.MethodGet, "/healthz", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("health status=%d", w.Code)
	}
	down := newTestServer(t, "", fakePinger{err: errors.New("connection refused")})
	w := down.do(t, http.MethodGet, "/healthz", nil, "")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), `"down"`) {
		t.Fatalf("health down status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestAdminRoutesRequireKey(t *testing.T) {
	s := newTestServer(t, "secret", nil)
	s.records.bans["carol"] = true
	s.records.bans["dave"] = true
	if w := s.do(t, http.MethodGet, "/api/games", nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/games", nil, "secret"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "DB STATUS --- stub") {
		t.Fatalf("status code=%d body=%s", w.Code, w.Body.String())
	}
	var status struct {
		Bans int `json:"bans"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Bans != 2 {
		t.Fatalf("expected 2 bans in status, got %d", status.Bans)
	}
	if w := s.do(t, http.MethodGet, "/api/ladder", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("ladder is public, got %d", w.Code)
	}
}

func TestGameLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, "", nil)

	w := s.do(t, http.MethodPost, "/api/games", host.HostRequest{GameName: "dota ladder", OwnerName: "owner"}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", w.Code, w.Body.String())
	}
	var created struct {
		Game struct {
			ID    string `json:"id"`
			State string `json:"state"`
		} `json:"game"`
		StreamURL string `json:"stream_url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	id := created.Game.ID
	if id == "" || created.Game.State != "lobby" || created.StreamURL != "/api/games/"+id+"/stream" {
		t.Fatalf("unexpected create response %s", w.Body.String())
	}
	if w := s.do(t, http.MethodPost, "/api/games", host.HostRequest{GameName: "dota ladder"}, ""); w.Code != http.StatusConflict {
		t.Fatalf("duplicate name status=%d", w.Code)
	}

	join := map[string]any{"kind": "join", "payload": map[string]any{"name": "alice", "ip": "10.0.0.1"}}
	if w := s.do(t, http.MethodPost, "/api/games/"+id+"/events", join, ""); w.Code != http.StatusAccepted {
		t.Fatalf("join status=%d body=%s", w.Code, w.Body.String())
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, _ := s.games.Game(id)
		if len(snap.Players) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("join not applied")
		}
		time.Sleep(5 * time.Millisecond)
	}
	w = s.do(t, http.MethodGet, "/api/games/"+id, nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"alice"`) {
		t.Fatalf("get status=%d body=%s", w.Code, w.Body.String())
	}

	bad := map[string]any{"kind": "dance"}
	if w := s.do(t, http.MethodPost, "/api/games/"+id+"/events", bad, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown event status=%d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/api/games/nope/events", map[string]any{"kind": "loaded"}, ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing game status=%d", w.Code)
	}

	if w := s.do(t, http.MethodDelete, "/api/games/"+id, nil, ""); w.Code != http.StatusOK {
		t.Fatalf("delete status=%d body=%s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodDelete, "/api/games/"+id, nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", w.Code)
	}
}

func TestStreamReplaysOutbox(t *testing.T) {
	s := newTestServer(t, "", nil)
	snap, err := s.games.Host(host.HostRequest{GameName: "streamed"})
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	out, _ := s.games.Outbox(snap.ID)
	out.SendAllChat("hello lobby")

	srv := httptest.NewServer(s.router)
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/games/"+snap.ID+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	var sawEvent, sawData bool
	for !sawData {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.HasPrefix(line, "event: chat_all") {
			sawEvent = true
		}
		if sawEvent && strings.HasPrefix(line, "data: ") && strings.Contains(line, "hello lobby") {
			sawData = true
		}
	}
}

func TestLadderAndBanRemoval(t *testing.T) {
	s := newTestServer(t, "", nil)
	s.records.top = []store.TopPlayer{{Name: "alice", Rating: 1400}, {Name: "bob", Rating: 1300}}
	s.records.bans["carol"] = true

	w := s.do(t, http.MethodGet, "/api/ladder?limit=1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("ladder status=%d", w.Code)
	}
	var ladder struct {
		Items  []store.TopPlayer `json:"items"`
		Server string            `json:"server"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ladder); err != nil {
		t.Fatalf("decode ladder: %v", err)
	}
	if len(ladder.Items) != 1 || ladder.Items[0].Name != "alice" || ladder.Server != "europe" {
		t.Fatalf("unexpected ladder %s", w.Body.String())
	}

	if w := s.do(t, http.MethodDelete, "/api/bans/carol", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("unban status=%d", w.Code)
	}
	if w := s.do(t, http.MethodDelete, "/api/bans/carol", nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("second unban status=%d", w.Code)
	}
	if s.records.reclaims != 3 {
		t.Fatalf("expected every task reclaimed, got %d", s.records.reclaims)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, "", nil)
	_ = s.do(t, http.MethodPost, "/api/games", host.HostRequest{GameName: "metered"}, "")
	w := s.do(t, http.MethodGet, "/metrics", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", w.Code)
	}
	for _, name := range []string{"hostbot_http_game_create_total", "hostbot_games_hosted_total", "hostbot_db_outstanding_tasks"} {
		if !strings.Contains(w.Body.String(), name) {
			t.Fatalf("metrics missing %s", name)
		}
	}
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		query string
		want  int
	}{
		{"", 10},
		{"?limit=5", 5},
		{"?limit=0", 1},
		{"?limit=1000", 100},
		{"?limit=abc", 10},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/api/ladder"+tc.query, nil)
		if got := parseLimit(r, 10, 100); got != tc.want {
			t.Fatalf("parseLimit(%q) = %d, want %d", tc.query, got, tc.want)
		}
	}
}

func TestMCPRouteMounted(t *testing.T) {
	s := newTestServer(t, "secret", nil)

	req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected /mcp OPTIONS 204, got %d", w.Code)
	}

	initBody := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test-client","version":"1.0.0"}}}`
	req = httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(initBody))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected /mcp without key 401, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(initBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", "secret")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected /mcp POST initialize 200, got %d body=%s", w.Code, w.Body.String())
	}
}
