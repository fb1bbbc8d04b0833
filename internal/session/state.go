package session

import "errors"

// State is the lifecycle stage of a hosted match. Ended and Destroyed are
// terminal: a session never moves back out of them.
type State int

const (
	StateLobby State = iota
	StateCountdown
	StateLoading
	StateLoaded
	StateEnded
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateLobby:
		return "lobby"
	case StateCountdown:
		return "countdown"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateEnded:
		return "ended"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// inGame reports whether players are recorded for persistence when they leave.
func (s State) inGame() bool {
	return s == StateLoading || s == StateLoaded || s == StateEnded
}

var (
	ErrWrongState      = errors.New("wrong_state")
	ErrLocked          = errors.New("game_locked")
	ErrNotPermitted    = errors.New("not_permitted")
	ErrUnknownCommand  = errors.New("unknown_command")
	ErrUnknownPlayer   = errors.New("unknown_player")
	ErrAmbiguousPlayer = errors.New("ambiguous_player")
	ErrInvalidSlot     = errors.New("invalid_slot")
	ErrGameFull        = errors.New("game_full")
	ErrNameTaken       = errors.New("name_taken")
	ErrVoteInProgress  = errors.New("vote_in_progress")
	ErrNoVote          = errors.New("no_vote")
	ErrNotEnoughVoters = errors.New("not_enough_voters")
	ErrInvalidArgument = errors.New("invalid_argument")
	ErrEventQueueFull  = errors.New("event_queue_full")
	ErrSessionClosed   = errors.New("session_closed")
)
