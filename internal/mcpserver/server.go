package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"hostbot/internal/dbtask"
	"hostbot/internal/host"
	"hostbot/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Ladder is the read side of the records backend the tools expose.
type Ladder interface {
	TopPlayers(server string, limit int) *dbtask.Task[[]store.TopPlayer]
	Reclaim(h dbtask.Handle) bool
}

// Server exposes game hosting as MCP tools over streamable HTTP.
type Server struct {
	games  *host.Manager
	ladder Ladder
	realm  string

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(games *host.Manager, ladder Ladder, realm string) *Server {
	mcpSrv := server.NewMCPServer(
		"hostbot",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		games:      games,
		ladder:     ladder,
		realm:      realm,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerGameTools()
	s.registerLadderTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"game://{game_id}/snapshot",
			"game_snapshot",
			mcp.WithTemplateDescription("Last published state of a hosted game"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			raw := request.Params.URI
			if !strings.HasPrefix(raw, "game://") || !strings.HasSuffix(raw, "/snapshot") {
				return nil, nil
			}
			gameID := strings.TrimSuffix(strings.TrimPrefix(raw, "game://"), "/snapshot")
			if gameID == "" {
				return nil, nil
			}
			snap, ok := s.games.Game(gameID)
			if !ok {
				return nil, host.ErrGameNotFound
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      raw,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}
