package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"hostbot/internal/host"
	"hostbot/internal/session"

	"github.com/go-chi/chi/v5"
)

const unhostTimeout = 5 * time.Second

type GameHandlers struct {
	games *host.Manager
}

func NewGameHandlers(m *host.Manager) *GameHandlers {
	return &GameHandlers{games: m}
}

func (h *GameHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"items": h.games.List()})
	}
}

func (h *GameHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricGameCreateTotal.Inc()
		var req host.HostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			metricGameCreateErrors.Inc()
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		snap, err := h.games.Host(req)
		if err != nil {
			metricGameCreateErrors.Inc()
			status, code := mapGameErr(err)
			WriteHTTPError(w, status, code)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"game":       snap,
			"events_url": "/api/games/" + snap.ID + "/events",
			"stream_url": "/api/games/" + snap.ID + "/stream",
		})
	}
}

func (h *GameHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := h.games.Game(chi.URLParam(r, "game_id"))
		if !ok {
			WriteHTTPError(w, http.StatusNotFound, "game_not_found")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// Events queues one event; its effect shows up in the snapshot and the
// outbox after the next tick.
func (h *GameHandlers) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req host.EventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			metricEventSubmitErrors.Inc()
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		ev, err := host.DecodeEvent(req)
		if err != nil {
			metricEventSubmitErrors.Inc()
			status, code := mapGameErr(err)
			WriteHTTPError(w, status, code)
			return
		}
		metricEventSubmitTotal.WithLabelValues(ev.Kind()).Inc()
		if err := h.games.Event(chi.URLParam(r, "game_id"), ev); err != nil {
			metricEventSubmitErrors.Inc()
			status, code := mapGameErr(err)
			WriteHTTPError(w, status, code)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "kind": ev.Kind()})
	}
}

func (h *GameHandlers) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), unhostTimeout)
		defer cancel()
		if err := h.games.Unhost(ctx, chi.URLParam(r, "game_id")); err != nil {
			status, code := mapGameErr(err)
			WriteHTTPError(w, status, code)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func mapGameErr(err error) (int, string) {
	switch {
	case errors.Is(err, host.ErrGameNotFound):
		return http.StatusNotFound, "game_not_found"
	case errors.Is(err, host.ErrGameNameTaken):
		return http.StatusConflict, "game_name_taken"
	case errors.Is(err, host.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, host.ErrUnknownEvent):
		return http.StatusBadRequest, "unknown_event"
	case errors.Is(err, host.ErrShuttingDown):
		return http.StatusServiceUnavailable, "shutting_down"
	case errors.Is(err, session.ErrEventQueueFull):
		return http.StatusServiceUnavailable, "event_queue_full"
	case errors.Is(err, session.ErrSessionClosed):
		return http.StatusGone, "game_closed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
