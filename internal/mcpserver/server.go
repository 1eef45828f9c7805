// Package mcpserver exposes lobby and gameplay operations as MCP tools over
// streamable HTTP.
package mcpserver

import (
	"context"
	"net/http"

	"labyrinth-server/internal/app/public"
	"labyrinth-server/internal/auth"
	"labyrinth-server/internal/orchestrator"
	"labyrinth-server/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type Users interface {
	EnsureUser(ctx context.Context, id, name string) (store.User, error)
}

type Server struct {
	orch      *orchestrator.Orchestrator
	publicSvc *public.Service
	users     Users
	verifier  *auth.Verifier

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

type authHeaderKey struct{}

func New(orch *orchestrator.Orchestrator, publicSvc *public.Service, users Users, verifier *auth.Verifier) *Server {
	mcpSrv := server.NewMCPServer(
		"labyrinth-server",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s := &Server{
		orch:      orch,
		publicSvc: publicSvc,
		users:     users,
		verifier:  verifier,
		mcpServer: mcpSrv,
	}
	s.httpServer = server.NewStreamableHTTPServer(mcpSrv,
		server.WithStateLess(true),
		server.WithDisableStreaming(true),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return context.WithValue(ctx, authHeaderKey{}, r.Header.Get("Authorization"))
		}),
	)
	s.registerLobbyTools()
	s.registerGameplayTools()
	s.registerPublicTools()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

// caller resolves the bearer token of the HTTP request that carried the tool
// call and makes sure the user row exists.
func (s *Server) caller(ctx context.Context) (auth.Principal, *mcp.CallToolResult) {
	header, _ := ctx.Value(authHeaderKey{}).(string)
	token, ok := auth.BearerToken(header)
	if !ok {
		return auth.Principal{}, toolError("unauthorized", "bearer token required")
	}
	p, err := s.verifier.Verify(token)
	if err != nil {
		return auth.Principal{}, toolError("unauthorized", err.Error())
	}
	if _, err := s.users.EnsureUser(ctx, p.UserID, p.Name); err != nil {
		return auth.Principal{}, toolError("internal_error", err.Error())
	}
	return p, nil
}

// viewer is the caller's id when a valid token is present, "" otherwise.
func (s *Server) viewer(ctx context.Context) string {
	header, _ := ctx.Value(authHeaderKey{}).(string)
	token, ok := auth.BearerToken(header)
	if !ok {
		return ""
	}
	p, err := s.verifier.Verify(token)
	if err != nil {
		return ""
	}
	return p.UserID
}
