package httptransport

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"hostbot/internal/host"
	"hostbot/internal/mcpserver"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type RouterDeps struct {
	Games       *host.Manager
	Records     Records
	Health      Pinger
	Realm       string
	AdminAPIKey string
}

func NewRouter(d RouterDeps) *chi.Mux {
	games := NewGameHandlers(d.Games)
	admin := NewAdminHandlers(d.Games, d.Records, d.Health, d.Realm)
	var ladder mcpserver.Ladder
	if d.Records != nil {
		ladder = d.Records
	}
	mcpSrv := mcpserver.New(d.Games, ladder, d.Realm)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", admin.Health())
	r.Handle("/metrics", promhttp.Handler())
	r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
	})
	mcpAuth := r.With(APILogMiddleware(), AdminAuthMiddleware(d.AdminAPIKey))
	mcpAuth.Method(http.MethodPost, "/mcp", mcpSrv.Handler())
	mcpAuth.Method(http.MethodGet, "/mcp", mcpSrv.Handler())
	mcpAuth.Method(http.MethodDelete, "/mcp", mcpSrv.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/ladder", admin.Ladder())

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(d.AdminAPIKey))
			r.Use(BodyCaptureMiddleware(4096))
			r.Get("/status", admin.Status())
			r.Get("/games", games.List())
			r.Post("/games", games.Create())
			r.Get("/games/{game_id}", games.Get())
			r.Delete("/games/{game_id}", games.Delete())
			r.Post("/games/{game_id}/events", games.Events())
			r.Get("/games/{game_id}/stream", StreamHandler(d.Games))
			r.Delete("/bans/{name}", admin.DeleteBan())
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	log.Info().Msg(strings.TrimSuffix(b.String(), "\n"))
}
