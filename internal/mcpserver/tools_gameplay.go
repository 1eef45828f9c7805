package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerGameplayTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"submit_move",
			mcp.WithDescription("Play the caller's turn: rotate, shift, then walk from -> to"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
			mcp.WithObject("move", mcp.Required(), mcp.Description("rotateBeforeShift, shiftPosition{heading,index}, from{x,y}, to{x,y}, collectedTreasure")),
		),
		s.handleSubmitMove,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_board",
			mcp.WithDescription("Board of a started session as seen by the caller"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		),
		s.handleGetBoard,
	)
}

func (s *Server) handleSubmitMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errResp := s.caller(ctx)
	if errResp != nil {
		return errResp, nil
	}
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	move, err := moveFromArgs(request.GetArguments())
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if err := s.orch.Move(ctx, sessionID, move, p.UserID); err != nil {
		return mapDomainError(err), nil
	}
	view, err := s.publicSvc.Session(ctx, sessionID, p.UserID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(view), nil
}

func (s *Server) handleGetBoard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	board, err := s.publicSvc.Board(ctx, sessionID, s.viewer(ctx))
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(board), nil
}
