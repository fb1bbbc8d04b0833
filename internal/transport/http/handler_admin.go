package httptransport

import (
	"context"
	"net/http"
	"strings"

	"hostbot/internal/dbtask"
	"hostbot/internal/host"
	"hostbot/internal/store"

	"github.com/go-chi/chi/v5"
)

// Pinger reports whether the backing database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Records is the part of the asynchronous backend the HTTP surface reads.
type Records interface {
	TopPlayers(server string, limit int) *dbtask.Task[[]store.TopPlayer]
	BanRemove(server, name string) *dbtask.Task[bool]
	BanCount(server string) *dbtask.Task[int]
	Reclaim(h dbtask.Handle) bool
}

type AdminHandlers struct {
	games   *host.Manager
	records Records
	health  Pinger
	realm   string
}

func NewAdminHandlers(m *host.Manager, records Records, health Pinger, realm string) *AdminHandlers {
	return &AdminHandlers{games: m, records: records, health: health, realm: realm}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.health != nil {
			if err := h.health.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "db": "down"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "db": "up"})
	}
}

func (h *AdminHandlers) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bans, err := dbtask.Await(r.Context(), h.records.BanCount(h.realm), h.records, h.games.Orphans())
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		st := h.games.Status()
		writeJSON(w, http.StatusOK, map[string]any{
			"db":      st.DB,
			"games":   st.Games,
			"orphans": st.Orphans,
			"bans":    bans,
			"items":   h.games.List(),
		})
	}
}

func (h *AdminHandlers) Ladder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseLimit(r, 10, 100)
		server := r.URL.Query().Get("server")
		if server == "" {
			server = h.realm
		}
		items, err := dbtask.Await(r.Context(), h.records.TopPlayers(server, limit), h.records, h.games.Orphans())
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if items == nil {
			items = []store.TopPlayer{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "server": server, "limit": limit})
	}
}

func (h *AdminHandlers) DeleteBan() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(chi.URLParam(r, "name"))
		if name == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		server := r.URL.Query().Get("server")
		if server == "" {
			server = h.realm
		}
		removed, err := dbtask.Await(r.Context(), h.records.BanRemove(server, name), h.records, h.games.Orphans())
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if !removed {
			WriteHTTPError(w, http.StatusNotFound, "ban_not_found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
