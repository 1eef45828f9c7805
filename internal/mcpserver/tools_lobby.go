package mcpserver

import (
	"context"

	"labyrinth-server/internal/orchestrator"
	"labyrinth-server/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerLobbyTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_available_sessions",
			mcp.WithDescription("List sessions the caller can join"),
		),
		s.handleListAvailable,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_session",
			mcp.WithDescription("Create a session owned by the caller, who takes slot 0"),
			mcp.WithObject("setup", mcp.Description("Board setup; omitted fields use defaults")),
			mcp.WithString("visibility", mcp.Description("public|friends|private, default public")),
		),
		s.handleCreateSession,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"join_session",
			mcp.WithDescription("Take the next free slot of a session"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		),
		s.handleJoinSession,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"add_bot",
			mcp.WithDescription("Add a bot to a session the caller owns"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
			mcp.WithString("tier", mcp.Required(), mcp.Description("weak|medium|strong")),
		),
		s.handleAddBot,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"set_ready",
			mcp.WithDescription("Mark the caller's slot ready; the game starts when every slot is ready"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
			mcp.WithBoolean("ready", mcp.Description("Default true")),
		),
		s.handleSetReady,
	)
}

func (s *Server) handleListAvailable(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errResp := s.caller(ctx)
	if errResp != nil {
		return errResp, nil
	}
	resp, err := s.publicSvc.Available(ctx, p.UserID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errResp := s.caller(ctx)
	if errResp != nil {
		return errResp, nil
	}
	setup, err := setupFromArgs(request.GetArguments())
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	visibility := store.Visibility(request.GetString("visibility", ""))
	sess, err := s.orch.Create(ctx, p.UserID, setup, visibility)
	if err != nil {
		return mapDomainError(err), nil
	}
	view, err := s.publicSvc.Session(ctx, sess.ID, p.UserID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(view), nil
}

func (s *Server) handleJoinSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errResp := s.caller(ctx)
	if errResp != nil {
		return errResp, nil
	}
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if err := s.orch.AddHumanPlayer(ctx, p.UserID, sessionID, ""); err != nil {
		return mapDomainError(err), nil
	}
	return s.players(ctx, sessionID, p.UserID), nil
}

func (s *Server) handleAddBot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errResp := s.caller(ctx)
	if errResp != nil {
		return errResp, nil
	}
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	tier, err := request.RequireString("tier")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	kind, err := orchestrator.BotKind(tier)
	if err != nil {
		return mapDomainError(err), nil
	}
	if err := s.orch.AddBot(ctx, p.UserID, sessionID, kind); err != nil {
		return mapDomainError(err), nil
	}
	return s.players(ctx, sessionID, p.UserID), nil
}

func (s *Server) handleSetReady(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errResp := s.caller(ctx)
	if errResp != nil {
		return errResp, nil
	}
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	ready := request.GetBool("ready", true)
	if err := s.orch.SetReady(ctx, p.UserID, sessionID, ready); err != nil {
		return mapDomainError(err), nil
	}
	view, err := s.publicSvc.Session(ctx, sessionID, p.UserID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(view), nil
}

func (s *Server) players(ctx context.Context, sessionID, viewerID string) *mcp.CallToolResult {
	resp, err := s.publicSvc.Players(ctx, sessionID, viewerID)
	if err != nil {
		return mapDomainError(err)
	}
	return toolResult(resp)
}
