package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"hostbot/internal/host"

	"github.com/mark3labs/mcp-go/mcp"
)

const unhostTimeout = 5 * time.Second

func (s *Server) registerGameTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_games",
			mcp.WithDescription("List hosted games"),
		),
		s.handleListGames,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_game",
			mcp.WithDescription("Get the current state of a hosted game"),
			mcp.WithString("game_id", mcp.Required(), mcp.Description("Game id")),
		),
		s.handleGetGame,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"host_game",
			mcp.WithDescription("Host a new game lobby"),
			mcp.WithString("game_name", mcp.Required(), mcp.Description("Lobby name, unique among hosted games")),
			mcp.WithString("owner_name", mcp.Description("Player with owner rights")),
			mcp.WithString("map_path", mcp.Description("Map path")),
			mcp.WithBoolean("ladder", mcp.Description("Rated game, only if ladder is enabled in config")),
			mcp.WithBoolean("auto_ban", mcp.Description("Ban early leavers")),
			mcp.WithString("autoban_algorithm", mcp.Description("simple|legacy")),
		),
		s.handleHostGame,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"submit_event",
			mcp.WithDescription("Queue a lobby or game event"),
			mcp.WithString("game_id", mcp.Required(), mcp.Description("Game id")),
			mcp.WithString("kind", mcp.Required(), mcp.Description("join|leave|command|loaded|gameover|countdown_done")),
			mcp.WithObject("payload", mcp.Description("Event payload")),
		),
		s.handleSubmitEvent,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"recent_events",
			mcp.WithDescription("Chat and disconnect events the game emitted"),
			mcp.WithString("game_id", mcp.Required(), mcp.Description("Game id")),
			mcp.WithString("after_id", mcp.Description("Only events newer than this id")),
		),
		s.handleRecentEvents,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"unhost_game",
			mcp.WithDescription("Close a hosted game and save its records"),
			mcp.WithString("game_id", mcp.Required(), mcp.Description("Game id")),
		),
		s.handleUnhostGame,
	)
}

func (s *Server) handleListGames(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolResult(map[string]any{"items": s.games.List()}), nil
}

func (s *Server) handleGetGame(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gameID, err := request.RequireString("game_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	snap, ok := s.games.Game(gameID)
	if !ok {
		return mapDomainError(host.ErrGameNotFound), nil
	}
	return toolResult(snap), nil
}

func (s *Server) handleHostGame(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("game_name")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	args := request.GetArguments()
	snap, err := s.games.Host(host.HostRequest{
		GameName:    name,
		OwnerName:   request.GetString("owner_name", ""),
		MapPath:     request.GetString("map_path", ""),
		CreatorName: "mcp",
		Ladder:      optBool(args, "ladder"),
		AutoBan:     optBool(args, "auto_ban"),
		Algorithm:   request.GetString("autoban_algorithm", ""),
	})
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"game": snap}), nil
}

func (s *Server) handleSubmitEvent(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gameID, err := request.RequireString("game_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	kind, err := request.RequireString("kind")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	req := host.EventRequest{Kind: kind}
	if payload, ok := request.GetArguments()["payload"]; ok && payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return toolError("invalid_request", err.Error()), nil
		}
		req.Payload = raw
	}
	ev, err := host.DecodeEvent(req)
	if err != nil {
		return mapDomainError(err), nil
	}
	if err := s.games.Event(gameID, ev); err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"ok": true, "kind": ev.Kind()}), nil
}

func (s *Server) handleRecentEvents(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gameID, err := request.RequireString("game_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	out, ok := s.games.Outbox(gameID)
	if !ok {
		return mapDomainError(host.ErrGameNotFound), nil
	}
	items := out.ReplayAfter(request.GetString("after_id", ""))
	if items == nil {
		items = []host.OutEvent{}
	}
	return toolResult(map[string]any{"items": items}), nil
}

func (s *Server) handleUnhostGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gameID, err := request.RequireString("game_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	ctx, cancel := context.WithTimeout(ctx, unhostTimeout)
	defer cancel()
	if err := s.games.Unhost(ctx, gameID); err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"ok": true}), nil
}

func optBool(args map[string]any, key string) *bool {
	v, ok := args[key].(bool)
	if !ok {
		return nil
	}
	return &v
}
