package mcpserver

import (
	"context"

	"hostbot/internal/dbtask"
	"hostbot/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultLadderLimit = 10
	maxLadderLimit     = 100
)

func (s *Server) registerLadderTools() {
	if s.ladder == nil {
		return
	}
	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_ladder",
			mcp.WithDescription("Top rated players on a server"),
			mcp.WithString("server", mcp.Description("Realm, defaults to this host's")),
			mcp.WithNumber("limit", mcp.Description("Page size, default 10, max 100")),
		),
		s.handleGetLadder,
	)
}

func (s *Server) handleGetLadder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	server := request.GetString("server", s.realm)
	limit := clampLimit(request.GetInt("limit", defaultLadderLimit), maxLadderLimit)
	items, err := dbtask.Await(ctx, s.ladder.TopPlayers(server, limit), s.ladder, s.games.Orphans())
	if err != nil {
		return mapDomainError(err), nil
	}
	if items == nil {
		items = []store.TopPlayer{}
	}
	return toolResult(map[string]any{"items": items, "server": server, "limit": limit}), nil
}

func clampLimit(limit, maxLimit int) int {
	if limit <= 0 {
		return defaultLadderLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
