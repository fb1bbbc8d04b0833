package session

import "strconv"

// newSlots lays teams out in consecutive blocks. Colours skip one value
// between teams so a two-team, five-slot map uses 1..5 and 7..11.
func newSlots(numTeams, perTeam int) []Slot {
	slots := make([]Slot, 0, numTeams*perTeam)
	for team := 0; team < numTeams; team++ {
		for i := 0; i < perTeam; i++ {
			slots = append(slots, emptySlot(SlotOpen, team, team*(perTeam+1)+i+1))
		}
	}
	return slots
}

const (
	fullHandicap = 100
	maxColour    = 12
)

func emptySlot(status SlotStatus, team, colour int) Slot {
	return Slot{Status: status, Team: team, Colour: colour, Handicap: fullHandicap}
}

// LookupTeamForPlayer implements rating.TeamLookup over the slot table.
func (s *Session) LookupTeamForPlayer(pid uint8) (int, bool) {
	if idx := s.slotOf(pid); idx >= 0 {
		return s.slots[idx].Team, true
	}
	return 0, false
}

func (s *Session) slotOf(pid uint8) int {
	if pid == 0 {
		return -1
	}
	for i, sl := range s.slots {
		if sl.Status == SlotOccupied && !sl.Computer && sl.PID == pid {
			return i
		}
	}
	return -1
}

func (s *Session) firstOpenSlot() int {
	for i, sl := range s.slots {
		if sl.Status == SlotOpen {
			return i
		}
	}
	return -1
}

// parseSlot turns a 1-based slot argument into an index.
func (s *Session) parseSlot(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(s.slots) {
		return 0, ErrInvalidSlot
	}
	return n - 1, nil
}

func (s *Session) requireLobby() error {
	if s.state != StateLobby {
		return ErrWrongState
	}
	return nil
}

// vacate kicks any human in slot idx so the slot can be rewritten.
func (s *Session) vacate(idx int, reason string) {
	sl := s.slots[idx]
	if sl.Status == SlotOccupied && !sl.Computer {
		if p := s.Player(sl.PID); p != nil {
			s.disconnect(p, reason)
		}
	}
}

func (s *Session) OpenSlot(idx int) error {
	if err := s.requireLobby(); err != nil {
		return err
	}
	if idx < 0 || idx >= len(s.slots) {
		return ErrInvalidSlot
	}
	s.vacate(idx, "was kicked when opening a slot")
	s.slots[idx] = emptySlot(SlotOpen, s.slots[idx].Team, s.slots[idx].Colour)
	return nil
}

func (s *Session) CloseSlot(idx int) error {
	if err := s.requireLobby(); err != nil {
		return err
	}
	if idx < 0 || idx >= len(s.slots) {
		return ErrInvalidSlot
	}
	s.vacate(idx, "was kicked when closing a slot")
	s.slots[idx] = emptySlot(SlotClosed, s.slots[idx].Team, s.slots[idx].Colour)
	return nil
}

// SwapSlots exchanges occupants. Team and colour belong to the slot position.
func (s *Session) SwapSlots(a, b int) error {
	if err := s.requireLobby(); err != nil {
		return err
	}
	if a < 0 || b < 0 || a >= len(s.slots) || b >= len(s.slots) || a == b {
		return ErrInvalidSlot
	}
	sa, sb := s.slots[a], s.slots[b]
	sa.Team, sb.Team = sb.Team, sa.Team
	sa.Colour, sb.Colour = sb.Colour, sa.Colour
	s.slots[a], s.slots[b] = sb, sa
	return nil
}

func (s *Session) ComputerSlot(idx, level int) error {
	if err := s.requireLobby(); err != nil {
		return err
	}
	if idx < 0 || idx >= len(s.slots) {
		return ErrInvalidSlot
	}
	if level < 0 || level > 2 {
		return ErrInvalidArgument
	}
	s.vacate(idx, "was kicked when creating a computer in a slot")
	sl := emptySlot(SlotOccupied, s.slots[idx].Team, s.slots[idx].Colour)
	sl.Computer = true
	sl.ComputerLevel = level
	s.slots[idx] = sl
	return nil
}

// ComputerTeam moves the computer in slot idx to another team.
func (s *Session) ComputerTeam(idx, team int) error {
	if err := s.requireLobby(); err != nil {
		return err
	}
	if idx < 0 || idx >= len(s.slots) || !s.slots[idx].Computer {
		return ErrInvalidSlot
	}
	if team < 0 || team >= s.cfg.Game.NumTeams {
		return ErrInvalidArgument
	}
	s.slots[idx].Team = team
	return nil
}

// computerSlot checks that idx holds a computer that may still be changed.
func (s *Session) computerSlot(idx int) error {
	if err := s.requireLobby(); err != nil {
		return err
	}
	if idx < 0 || idx >= len(s.slots) || !s.slots[idx].Computer || s.slots[idx].Status != SlotOccupied {
		return ErrInvalidSlot
	}
	return nil
}

func (s *Session) ComputerRace(idx int, race Race) error {
	if err := s.computerSlot(idx); err != nil {
		return err
	}
	s.slots[idx].Race = race
	return nil
}

// ComputerHandicap accepts the handicaps the game client offers: 50 to 100 in
// steps of ten.
func (s *Session) ComputerHandicap(idx, handicap int) error {
	if err := s.computerSlot(idx); err != nil {
		return err
	}
	if handicap < 50 || handicap > fullHandicap || handicap%10 != 0 {
		return ErrInvalidArgument
	}
	s.slots[idx].Handicap = handicap
	return nil
}

// ComputerColour gives the computer in idx a new colour. A slot already using
// that colour takes the computer's old one.
func (s *Session) ComputerColour(idx, colour int) error {
	if err := s.computerSlot(idx); err != nil {
		return err
	}
	if colour < 1 || colour > maxColour {
		return ErrInvalidArgument
	}
	old := s.slots[idx].Colour
	for i := range s.slots {
		if i != idx && s.slots[i].Colour == colour {
			s.slots[i].Colour = old
		}
	}
	s.slots[idx].Colour = colour
	return nil
}
