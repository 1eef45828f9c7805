package mcpserver

import (
	"errors"
	"fmt"

	"labyrinth-server/internal/app/public"
	"labyrinth-server/internal/orchestrator"

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
	case errors.Is(err, public.ErrInvalidRequest):
		return toolError("invalid_request", err.Error())
	case errors.Is(err, public.ErrSessionNotFound):
		return toolError("session_not_found", err.Error())
	default:
		_, code := orchestrator.MapError(err)
		return toolError(code, err.Error())
	}
}
