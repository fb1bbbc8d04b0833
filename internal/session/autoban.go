package session

import (
	"strings"
	"time"

	"hostbot/internal/config"
)

// leaveView is what an auto-ban policy sees of the session when a player
// leaves. Team counts are taken before the leaver is removed.
type leaveView struct {
	state       State
	autoBan     bool
	isAdmin     bool
	elapsed     time.Duration
	playersLeft int
	teamCounts  [4]int
	teamDiff    int
	leaverTeam  int
	hasSlot     bool
	// evenTeams is set for a two-team match that loaded with equal sides.
	evenTeams bool
}

type leaveDecision struct {
	// banOn queues the leaver for a ban applied at teardown.
	banOn bool
	// demote drops the match from the ladder and disconnects everyone.
	demote bool
	// stopBanning turns auto-ban off for the rest of the match.
	stopBanning bool
}

// Policy decides what a leave means for auto-ban and ladder standing.
type Policy interface {
	Name() string
	decide(v leaveView) leaveDecision
}

func NewPolicy(ab config.AutoBanConfig, game config.GameConfig) Policy {
	if strings.EqualFold(ab.Algorithm, "legacy") {
		return legacyPolicy{cfg: ab, mapType: game.MapType}
	}
	return simplePolicy{cfg: ab}
}

type simplePolicy struct {
	cfg config.AutoBanConfig
}

func (simplePolicy) Name() string { return "simple" }

func (p simplePolicy) decide(v leaveView) leaveDecision {
	var d leaveDecision
	if !v.autoBan {
		return d
	}
	if !v.isAdmin {
		switch {
		case v.state == StateLoaded:
			d.banOn = true
		case v.state == StateLoading && p.cfg.BanDuringLoading:
			d.banOn = true
		case v.state == StateCountdown && p.cfg.BanDuringCountdown:
			d.banOn = true
		}
	}
	if v.state != StateLoaded {
		return d
	}
	early, late := p.cfg.EarlyDrop, p.cfg.LateDrop
	if (v.playersLeft == 0 && v.elapsed <= early) ||
		(v.playersLeft > 0 && v.elapsed > early && v.elapsed < late && v.teamDiff > 0) {
		d.demote = true
	}
	if p.cfg.MaxLeavers > 0 && v.playersLeft+1 >= p.cfg.MaxLeavers {
		d.stopBanning = true
	}
	return d
}

// legacyPolicy evaluates positive triggers first; the imbalance and timer
// overrides can only clear banOn, except that first-N leavers re-enable it
// after the imbalance override.
type legacyPolicy struct {
	cfg     config.AutoBanConfig
	mapType string
}

func (legacyPolicy) Name() string { return "legacy" }

func (p legacyPolicy) decide(v leaveView) leaveDecision {
	var d leaveDecision
	if !v.autoBan || v.isAdmin {
		return d
	}
	switch {
	case v.state == StateLoaded:
		if p.cfg.BanAll {
			d.banOn = true
		}
		if v.evenTeams {
			if !v.hasSlot {
				return leaveDecision{}
			}
			if v.teamDiff == 0 {
				d.banOn = true
			} else if v.teamDiff > 0 {
				if v.leaverTeam == 0 && v.teamCounts[0] < v.teamCounts[1] {
					d.banOn = true
				} else if v.leaverTeam == 1 && v.teamCounts[1] < v.teamCounts[0] {
					d.banOn = true
				}
			}
			if p.cfg.TeamDiffMax > 0 && v.teamDiff > p.cfg.TeamDiffMax {
				d.banOn = false
			}
		}
		if p.cfg.FirstXLeave > 0 && v.playersLeft < p.cfg.FirstXLeave {
			d.banOn = true
		}
		if p.cfg.TimerMins > 0 && banTimerMinutes(v.elapsed, p.mapType) > float64(p.cfg.TimerMins) {
			d.banOn = false
		}
	case v.state == StateLoading && p.cfg.BanDuringLoading:
		d.banOn = true
	case v.state == StateCountdown && p.cfg.BanDuringCountdown:
		d.banOn = true
	}
	return d
}

// banTimerMinutes is the elapsed game time used by the ban timer. On dota
// maps the first two minutes are creep spawn and do not count.
func banTimerMinutes(elapsed time.Duration, mapType string) float64 {
	mins := elapsed.Minutes()
	if mapType == "dota" {
		if mins > 2 {
			mins -= 2
		} else {
			mins = 1
		}
	}
	return mins
}
