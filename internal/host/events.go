package host

import (
	"encoding/json"
	"errors"

	"hostbot/internal/session"
)

var ErrUnknownEvent = errors.New("unknown_event")

// EventRequest is the wire form of a session event.
type EventRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeEvent turns an EventRequest into the session event it names.
func DecodeEvent(req EventRequest) (session.Event, error) {
	switch req.Kind {
	case "join":
		var ev session.JoinEvent
		if err := decodePayload(req.Payload, &ev.JoinRequest); err != nil {
			return nil, err
		}
		if ev.Name == "" {
			return nil, ErrInvalidRequest
		}
		return ev, nil
	case "leave":
		var ev session.LeaveEvent
		if err := decodePayload(req.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "command":
		var ev session.CommandEvent
		if err := decodePayload(req.Payload, &ev); err != nil {
			return nil, err
		}
		if ev.Command == "" {
			return nil, ErrInvalidRequest
		}
		return ev, nil
	case "loaded":
		return session.AllLoadedEvent{}, nil
	case "gameover":
		var ev session.GameOverEvent
		if err := decodePayload(req.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "countdown_done":
		return session.CountdownDoneEvent{}, nil
	default:
		return nil, ErrUnknownEvent
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return ErrInvalidRequest
	}
	return nil
}
