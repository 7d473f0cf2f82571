package mcp

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/postvault/internal/content"
	"github.com/dshills/postvault/internal/searcher"
)

// ServerName is the MCP server name
const ServerName = "postvault"

// Server wraps the MCP server with the content layers it exposes
type Server struct {
	mcp      *server.MCPServer
	repo     *content.Repository
	searcher *searcher.Searcher
	logger   *slog.Logger
}

// NewServer creates an MCP server exposing the content tools
func NewServer(repo *content.Repository, search *searcher.Searcher, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, version, server.WithToolCapabilities(false)),
		repo:     repo,
		searcher: search,
		logger:   logger,
	}
	s.registerTools()
	return s
}

// Serve speaks MCP over in and out until ctx is cancelled or in is closed
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchPostsTool(), s.handleSearchPosts)
	s.mcp.AddTool(getPostTool(), s.handleGetPost)
	s.mcp.AddTool(listPostsTool(), s.handleListPosts)
	s.mcp.AddTool(relatedPostsTool(), s.handleRelatedPosts)
}
