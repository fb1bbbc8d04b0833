package session

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const reasonVoteKicked = "was kicked by vote"

type voteKick struct {
	candidate string
	startedAt time.Time
}

// votesNeeded is ceil((humans-1) * pct / 100); the candidate cannot vote.
func votesNeeded(humans, percentage int) int {
	if humans <= 1 {
		return 0
	}
	return int(math.Ceil(float64(humans-1) * float64(percentage) / 100))
}

// StartVoteKick opens a vote against target. The starter's vote counts.
func (s *Session) StartVoteKick(starter *Player, target string) error {
	if s.vote != nil {
		return ErrVoteInProgress
	}
	if s.numHumans() < 3 {
		return ErrNotEnoughVoters
	}
	victim, err := s.findPlayer(target)
	if err != nil {
		return err
	}
	if victim.Reserved {
		return ErrNotPermitted
	}
	for _, p := range s.players {
		p.voted = false
	}
	s.vote = &voteKick{candidate: victim.Name, startedAt: s.now()}
	starter.voted = true
	need := votesNeeded(s.numHumans(), s.cfg.Game.VoteKickPercentage)
	s.out.SendAllChat(fmt.Sprintf("Player [%s] started a vote to kick player [%s]. Type yes to vote. %d more votes needed.",
		starter.Name, victim.Name, need-1))
	s.checkVote(starter)
	return nil
}

// VoteYes records an affirmative vote and kicks the candidate once enough
// votes are in.
func (s *Session) VoteYes(voter *Player) error {
	if s.vote == nil {
		return ErrNoVote
	}
	if strings.EqualFold(voter.Name, s.vote.candidate) || voter.voted {
		return ErrNotPermitted
	}
	voter.voted = true
	s.checkVote(voter)
	return nil
}

func (s *Session) checkVote(voter *Player) {
	votes := 0
	for _, p := range s.connected() {
		if p.voted {
			votes++
		}
	}
	need := votesNeeded(s.numHumans(), s.cfg.Game.VoteKickPercentage)
	if votes < need {
		if voter != nil && votes > 1 {
			s.out.SendAllChat(fmt.Sprintf("Player [%s] voted to kick player [%s]. %d more votes needed.",
				voter.Name, s.vote.candidate, need-votes))
		}
		return
	}
	candidate := s.vote.candidate
	s.vote = nil
	victim, err := s.findPlayer(candidate)
	if err != nil {
		s.out.SendAllChat(fmt.Sprintf("Error votekicking player [%s]", candidate))
		return
	}
	s.out.SendAllChat(fmt.Sprintf("A votekick against player [%s] has passed", candidate))
	s.disconnect(victim, reasonVoteKicked)
}

func (s *Session) CancelVoteKick() error {
	if s.vote == nil {
		return ErrNoVote
	}
	s.out.SendAllChat(fmt.Sprintf("A votekick against player [%s] has been cancelled", s.vote.candidate))
	s.vote = nil
	return nil
}

func (s *Session) expireVoteKick(now time.Time) {
	if s.vote == nil || s.cfg.Game.VoteKickExpire <= 0 {
		return
	}
	if now.Sub(s.vote.startedAt) >= s.cfg.Game.VoteKickExpire {
		s.out.SendAllChat(fmt.Sprintf("A votekick against player [%s] has expired", s.vote.candidate))
		s.vote = nil
	}
}
