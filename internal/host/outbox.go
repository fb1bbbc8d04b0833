package host

import (
	"strconv"
	"sync"
	"time"
)

const (
	EventChat       = "chat"
	EventChatAll    = "chat_all"
	EventDisconnect = "disconnect"
	EventClosed     = "game_closed"
)

// OutEvent is one message the session asked the transport to deliver.
type OutEvent struct {
	EventID  string `json:"event_id"`
	Event    string `json:"event"`
	GameID   string `json:"game_id"`
	ServerTS int64  `json:"server_ts"`
	Data     any    `json:"data"`
}

type ChatData struct {
	PID  uint8  `json:"pid,omitempty"`
	Text string `json:"text"`
}

type DisconnectData struct {
	PID    uint8  `json:"pid"`
	Reason string `json:"reason"`
}

// Outbox is the session transport for an HTTP-driven host. Messages are kept
// in a bounded ring for replay and fanned out to live subscribers; a slow
// subscriber misses events instead of blocking the session loop.
type Outbox struct {
	gameID string

	mu       sync.Mutex
	nextID   int64
	max      int
	events   []OutEvent
	watchers map[chan OutEvent]struct{}
	closed   bool
}

func NewOutbox(gameID string, max int) *Outbox {
	if max <= 0 {
		max = 500
	}
	return &Outbox{
		gameID:   gameID,
		max:      max,
		watchers: map[chan OutEvent]struct{}{},
	}
}

func (o *Outbox) SendChat(pid uint8, text string) {
	o.Append(EventChat, ChatData{PID: pid, Text: text})
}

func (o *Outbox) SendAllChat(text string) {
	o.Append(EventChatAll, ChatData{Text: text})
}

func (o *Outbox) Disconnect(pid uint8, reason string) {
	o.Append(EventDisconnect, DisconnectData{PID: pid, Reason: reason})
}

func (o *Outbox) Append(event string, data any) OutEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return OutEvent{}
	}
	o.nextID++
	ev := OutEvent{
		EventID:  strconv.FormatInt(o.nextID, 10),
		Event:    event,
		GameID:   o.gameID,
		ServerTS: time.Now().UnixMilli(),
		Data:     data,
	}
	o.events = append(o.events, ev)
	if len(o.events) > o.max {
		o.events = o.events[len(o.events)-o.max:]
	}
	for ch := range o.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

// ReplayAfter returns buffered events newer than lastEventID, or all of them
// when the id is empty or malformed.
func (o *Outbox) ReplayAfter(lastEventID string) []OutEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.events) == 0 {
		return nil
	}
	last, err := strconv.ParseInt(lastEventID, 10, 64)
	if lastEventID == "" || err != nil {
		out := make([]OutEvent, len(o.events))
		copy(out, o.events)
		return out
	}
	out := make([]OutEvent, 0, len(o.events))
	for _, ev := range o.events {
		id, _ := strconv.ParseInt(ev.EventID, 10, 64)
		if id > last {
			out = append(out, ev)
		}
	}
	return out
}

func (o *Outbox) Subscribe() chan OutEvent {
	ch := make(chan OutEvent, 32)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		close(ch)
		return ch
	}
	o.watchers[ch] = struct{}{}
	return ch
}

func (o *Outbox) Unsubscribe(ch chan OutEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.watchers[ch]; ok {
		delete(o.watchers, ch)
		close(ch)
	}
}

// Close ends every subscription. Appends after Close are dropped.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	for ch := range o.watchers {
		close(ch)
		delete(o.watchers, ch)
	}
}
