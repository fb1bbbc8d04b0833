package session

// ReCalculateTeams recounts team occupancy from connected players only; a
// player whose leave has been processed no longer counts. teamDiff is only
// tracked on two-team maps.
func (s *Session) ReCalculateTeams() {
	s.teamCounts = [4]int{}
	s.teamDiff = 0
	for _, p := range s.players {
		if p.Left {
			continue
		}
		idx := s.slotOf(p.PID)
		if idx < 0 {
			continue
		}
		if team := s.slots[idx].Team; team >= 0 && team < len(s.teamCounts) {
			s.teamCounts[team]++
		}
	}
	if s.cfg.Game.NumTeams == 2 {
		s.teamDiff = s.teamCounts[0] - s.teamCounts[1]
		if s.teamDiff < 0 {
			s.teamDiff = -s.teamDiff
		}
	}
}

func (s *Session) TeamCounts() [4]int { return s.teamCounts }
