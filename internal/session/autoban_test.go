package session

import (
	"strings"
	"testing"
	"time"

	"hostbot/internal/config"
)

func TestSimpleNoDemotionWithoutLeaves(t *testing.T) {
	f := newFixture(t, nil)
	f.loaded(t, 10)
	f.clock.Advance(7*time.Minute - time.Second)
	f.s.Tick()

	if !f.s.IsLadder() || !f.s.AutoBan() {
		t.Fatalf("expected ladder and autoban on, got ladder=%v autoban=%v", f.s.IsLadder(), f.s.AutoBan())
	}
	if got := len(f.out.disconnected()); got != 0 {
		t.Fatalf("expected no disconnects, got %d", got)
	}
}

func TestSimpleFirstLeaverBeforeEarlyDropDemotes(t *testing.T) {
	f := newFixture(t, nil)
	pids := f.loaded(t, 10)
	f.clock.Advance(6 * time.Minute)

	if err := f.s.EventPlayerLeft(pids[0], "has left the game voluntarily"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if f.s.IsLadder() || f.s.AutoBan() {
		t.Fatalf("expected demotion, got ladder=%v autoban=%v", f.s.IsLadder(), f.s.AutoBan())
	}
	if !f.out.allContains(msgDropped) {
		t.Fatalf("expected %q broadcast", msgDropped)
	}
	dcs := f.out.disconnected()
	if len(dcs) != 9 {
		t.Fatalf("expected 9 players disconnected, got %d", len(dcs))
	}
	for _, dc := range dcs {
		if dc.pid == pids[0] {
			t.Fatalf("leaver should not be disconnected by the host")
		}
		if dc.reason != reasonDropped {
			t.Fatalf("unexpected reason %q", dc.reason)
		}
	}
	if got := f.s.PendingLeavers(); len(got) != 1 || got[0] != "p1" {
		t.Fatalf("expected p1 queued for ban, got %v", got)
	}
}

func TestSimpleUnevenLeaveInsideWindowDemotes(t *testing.T) {
	f := newFixture(t, nil)
	pids := f.loaded(t, 10)
	f.clock.Advance(7*time.Minute + time.Second)

	if err := f.s.EventPlayerLeft(pids[0], "left"); err != nil {
		t.Fatalf("first leave: %v", err)
	}
	if !f.s.IsLadder() {
		t.Fatalf("first leave after early drop with even teams must not demote")
	}

	f.clock.Advance(time.Second)
	if err := f.s.EventPlayerLeft(pids[1], "left"); err != nil {
		t.Fatalf("second leave: %v", err)
	}
	if f.s.TeamDiff() != 1 {
		t.Fatalf("expected team diff 1 at second leave, got %d", f.s.TeamDiff())
	}
	if f.s.IsLadder() {
		t.Fatalf("expected demotion on uneven leave inside the window")
	}
	if len(f.out.disconnected()) != 8 {
		t.Fatalf("expected remaining 8 players disconnected, got %d", len(f.out.disconnected()))
	}
}

func TestSimpleMaxLeaversStopsBanning(t *testing.T) {
	f := newFixture(t, nil)
	pids := f.loaded(t, 10)
	f.clock.Advance(20 * time.Minute)

	for i := 0; i < 3; i++ {
		if err := f.s.EventPlayerLeft(pids[i], "left"); err != nil {
			t.Fatalf("leave %d: %v", i, err)
		}
	}
	if f.s.AutoBan() {
		t.Fatalf("expected autoban off after third leaver")
	}
	if !f.s.IsLadder() {
		t.Fatalf("late leavers must not demote the game")
	}
	if !f.out.allContains(msgTooManyLeft) {
		t.Fatalf("expected %q broadcast", msgTooManyLeft)
	}

	if err := f.s.EventPlayerLeft(pids[3], "left"); err != nil {
		t.Fatalf("fourth leave: %v", err)
	}
	if got := f.s.PendingLeavers(); len(got) != 3 {
		t.Fatalf("expected 3 queued leavers, got %v", got)
	}
	if f.s.PlayersLeft() != 4 {
		t.Fatalf("expected 4 players left, got %d", f.s.PlayersLeft())
	}
}

func TestAdminLeaverIsNotQueued(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.s.Join(JoinRequest{Name: "admin", IP: "10.1.1.1"}); err != nil {
		t.Fatalf("join admin: %v", err)
	}
	f.loaded(t, 3)
	f.clock.Advance(30 * time.Minute)

	if err := f.s.EventPlayerLeft(1, "left"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if got := f.s.PendingLeavers(); len(got) != 0 {
		t.Fatalf("admin must not be queued, got %v", got)
	}
}

func TestLeaveBeforeLoadedIsNotQueuedByDefault(t *testing.T) {
	f := newFixture(t, nil)
	pids := f.join(t, 4)
	if err := f.s.StartCountdown(); err != nil {
		t.Fatalf("countdown: %v", err)
	}
	if err := f.s.StartLoading(); err != nil {
		t.Fatalf("loading: %v", err)
	}
	if err := f.s.EventPlayerLeft(pids[0], "left"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if got := f.s.PendingLeavers(); len(got) != 0 {
		t.Fatalf("expected no queued leavers, got %v", got)
	}
	if f.s.PlayersLeft() != 1 {
		t.Fatalf("expected the loading leave to be recorded, got %d", f.s.PlayersLeft())
	}
}

func legacyConfig() (config.AutoBanConfig, config.GameConfig) {
	ab := config.AutoBanConfig{
		Enabled:     true,
		Algorithm:   "legacy",
		TeamDiffMax: 2,
		TimerMins:   120,
		FirstXLeave: 2,
	}
	return ab, config.GameConfig{MapType: "dota", NumTeams: 2}
}

func TestLegacyPolicyOrdering(t *testing.T) {
	ab, game := legacyConfig()
	p := NewPolicy(ab, game)
	if p.Name() != "legacy" {
		t.Fatalf("expected legacy policy, got %s", p.Name())
	}

	cases := []struct {
		name string
		view leaveView
		want bool
	}{
		{
			name: "even teams ban",
			view: leaveView{state: StateLoaded, autoBan: true, playersLeft: 3, teamCounts: [4]int{5, 5}, hasSlot: true, evenTeams: true, elapsed: 30 * time.Minute},
			want: true,
		},
		{
			name: "leaver on bigger team after first leavers",
			view: leaveView{state: StateLoaded, autoBan: true, playersLeft: 3, teamCounts: [4]int{5, 4}, teamDiff: 1, leaverTeam: 0, hasSlot: true, evenTeams: true, elapsed: 30 * time.Minute},
			want: false,
		},
		{
			name: "leaver on smaller team",
			view: leaveView{state: StateLoaded, autoBan: true, playersLeft: 3, teamCounts: [4]int{3, 4}, teamDiff: 1, leaverTeam: 0, hasSlot: true, evenTeams: true, elapsed: 30 * time.Minute},
			want: true,
		},
		{
			name: "imbalance override",
			view: leaveView{state: StateLoaded, autoBan: true, playersLeft: 3, teamCounts: [4]int{1, 5}, teamDiff: 4, leaverTeam: 0, hasSlot: true, evenTeams: true, elapsed: 30 * time.Minute},
			want: false,
		},
		{
			name: "first leavers re-enable after imbalance",
			view: leaveView{state: StateLoaded, autoBan: true, playersLeft: 1, teamCounts: [4]int{1, 5}, teamDiff: 4, leaverTeam: 0, hasSlot: true, evenTeams: true, elapsed: 30 * time.Minute},
			want: true,
		},
		{
			name: "timer overrides first leavers",
			view: leaveView{state: StateLoaded, autoBan: true, playersLeft: 0, teamCounts: [4]int{5, 5}, hasSlot: true, evenTeams: true, elapsed: 123 * time.Minute},
			want: false,
		},
		{
			name: "admin never banned",
			view: leaveView{state: StateLoaded, autoBan: true, isAdmin: true, playersLeft: 0, teamCounts: [4]int{5, 5}, hasSlot: true, evenTeams: true},
			want: false,
		},
		{
			name: "autoban off",
			view: leaveView{state: StateLoaded, playersLeft: 0, teamCounts: [4]int{5, 5}, hasSlot: true, evenTeams: true},
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := p.decide(tc.view)
			if d.banOn != tc.want {
				t.Fatalf("banOn=%v, want %v", d.banOn, tc.want)
			}
			if d.demote || d.stopBanning {
				t.Fatalf("legacy policy never demotes or stops banning: %+v", d)
			}
		})
	}
}

func TestBanTimerSkipsDotaCreepSpawn(t *testing.T) {
	if got := banTimerMinutes(122*time.Minute, "dota"); got != 120 {
		t.Fatalf("dota 122m: got %v", got)
	}
	if got := banTimerMinutes(90*time.Second, "dota"); got != 1 {
		t.Fatalf("dota 90s: got %v", got)
	}
	if got := banTimerMinutes(10*time.Minute, "melee"); got != 10 {
		t.Fatalf("melee 10m: got %v", got)
	}
}

func TestSelectsPolicyFromConfig(t *testing.T) {
	if got := NewPolicy(config.AutoBanConfig{Algorithm: "LEGACY"}, config.GameConfig{}).Name(); got != "legacy" {
		t.Fatalf("expected legacy, got %s", got)
	}
	if got := NewPolicy(config.AutoBanConfig{}, config.GameConfig{}).Name(); got != "simple" {
		t.Fatalf("expected simple default, got %s", got)
	}
}

func TestAnnouncesQueuedLeaver(t *testing.T) {
	f := newFixture(t, nil)
	pids := f.loaded(t, 4)
	f.clock.Advance(30 * time.Minute)
	if err := f.s.EventPlayerLeft(pids[2], "left"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	found := false
	for _, m := range f.out.all {
		if strings.HasPrefix(m, "[AUTOBAN: dota ladder] p3 will be banned") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected autoban announcement, got %v", f.out.all)
	}
}

func TestLegacyTeamChecksNeedEvenTeamsAtLoad(t *testing.T) {
	legacy := func(c *Config) {
		c.AutoBan.Algorithm = "legacy"
		c.AutoBan.BanAll = false
		c.AutoBan.FirstXLeave = 0
	}

	even := newFixture(t, legacy)
	pids := even.loaded(t, 10)
	if !even.s.evenTeams {
		t.Fatalf("5v5 load should count as even teams")
	}
	even.clock.Advance(30 * time.Minute)
	if err := even.s.EventPlayerLeft(pids[0], "left"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if got := even.s.PendingLeavers(); len(got) != 1 || got[0] != "p1" {
		t.Fatalf("even teams leaver not queued: %v", got)
	}

	uneven := newFixture(t, legacy)
	pids = uneven.loaded(t, 6)
	if uneven.s.evenTeams {
		t.Fatalf("5v1 load must not count as even teams")
	}
	uneven.clock.Advance(30 * time.Minute)
	if err := uneven.s.EventPlayerLeft(pids[5], "left"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if got := uneven.s.PendingLeavers(); len(got) != 0 {
		t.Fatalf("uneven teams skip the team checks, got %v", got)
	}
}
