package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// Public tools work without a token. A token, when sent, lets the caller see
// sessions shared with them.
func (s *Server) registerPublicTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_session",
			mcp.WithDescription("Session settings and status, with the board once started"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		),
		s.handleGetSession,
	)
	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_players",
			mcp.WithDescription("Occupied slots of a session in seat order"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		),
		s.handleGetPlayers,
	)
	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_leaderboard",
			mcp.WithDescription("Users ranked by games won"),
			mcp.WithNumber("limit", mcp.Description("Page size, default 50, max 100")),
			mcp.WithNumber("offset", mcp.Description("Page offset, default 0")),
		),
		s.handleGetLeaderboard,
	)
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	view, err := s.publicSvc.Session(ctx, sessionID, s.viewer(ctx))
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(view), nil
}

func (s *Server) handleGetPlayers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, err := s.publicSvc.Players(ctx, sessionID, s.viewer(ctx))
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetLeaderboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", defaultLeaderboardLimit)
	offset := request.GetInt("offset", 0)
	if offset < 0 {
		return toolError("invalid_request", "offset must be >= 0"), nil
	}
	resp, err := s.publicSvc.Leaderboard(ctx, limit, offset)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}
