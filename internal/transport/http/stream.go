package httptransport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"hostbot/internal/host"

	"github.com/go-chi/chi/v5"
)

var ssePingInterval = 15 * time.Second

// SetSSEHeaders applies headers that keep event streams stable across proxies.
func SetSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Content-Type-Options", "nosniff")
}

func WriteSSE(w http.ResponseWriter, ev host.OutEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if ev.EventID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", ev.EventID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", ev.Event); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// StreamHandler replays a game's outbox after Last-Event-ID and then follows
// it until the game closes or the client goes away.
func StreamHandler(m *host.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "game_id")
		out, ok := m.Outbox(gameID)
		if !ok {
			WriteHTTPError(w, http.StatusNotFound, "game_not_found")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteHTTPError(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}
		metricStreamConnectionsTotal.Inc()
		metricStreamConnectionsActive.Inc()
		defer metricStreamConnectionsActive.Dec()

		ch := out.Subscribe()
		defer out.Unsubscribe(ch)

		SetSSEHeaders(w)
		last := r.Header.Get("Last-Event-ID")
		for _, ev := range out.ReplayAfter(last) {
			if err := WriteSSE(w, ev); err != nil {
				return
			}
			last = ev.EventID
		}
		flusher.Flush()

		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if !newerThan(ev.EventID, last) {
					continue
				}
				if err := WriteSSE(w, ev); err != nil {
					return
				}
				last = ev.EventID
				flusher.Flush()
			case <-ticker.C:
				ping := host.OutEvent{
					Event:    "ping",
					GameID:   gameID,
					ServerTS: time.Now().UnixMilli(),
				}
				if err := WriteSSE(w, ping); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func newerThan(id, last string) bool {
	if last == "" {
		return true
	}
	a, errA := strconv.ParseInt(id, 10, 64)
	b, errB := strconv.ParseInt(last, 10, 64)
	if errA != nil || errB != nil {
		return true
	}
	return a > b
}
