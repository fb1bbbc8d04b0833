package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"hostbot/internal/host"
	"hostbot/internal/session"

	"github.com/mark3labs/mcp-go/mcp"
)

func toolResult(data any) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(data)
}

func toolError(code, message string) *mcp.CallToolResult {
	result := mcp.NewToolResultStructured(
		map[string]any{
			"error": map[string]any{
				"code":    code,
				"message": message,
			},
		},
		fmt.Sprintf("%s: %s", code, message),
	)
	result.IsError = true
	return result
}

func mapDomainError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return toolError("internal_error", "unknown error")
	case errors.Is(err, host.ErrInvalidRequest):
		return toolError("invalid_request", err.Error())
	case errors.Is(err, host.ErrUnknownEvent):
		return toolError("unknown_event", err.Error())
	case errors.Is(err, host.ErrGameNotFound):
		return toolError("not_found", err.Error())
	case errors.Is(err, host.ErrGameNameTaken):
		return toolError("game_name_taken", err.Error())
	case errors.Is(err, host.ErrShuttingDown):
		return toolError("shutting_down", err.Error())
	case errors.Is(err, session.ErrEventQueueFull):
		return toolError("event_queue_full", err.Error())
	case errors.Is(err, session.ErrSessionClosed):
		return toolError("game_closed", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return toolError("timeout", err.Error())
	default:
		return toolError("internal_error", err.Error())
	}
}
