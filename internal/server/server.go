// Package server provides the MCP server implementation.
package server

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/kagent-dev/gitlab-graphql-mcp/internal/config"
	"github.com/kagent-dev/gitlab-graphql-mcp/internal/gitlab"
)

// Name and Version are reported to MCP clients.
const (
	Name    = "gitlab-graphql-mcp"
	Version = "1.0.0"
)

// Server wraps the MCP server with the GitLab routing core.
type Server struct {
	mcpServer *server.MCPServer
	config    *config.Config
	router    *gitlab.Router
	schema    *gitlab.SchemaCache
	logger    *zap.SugaredLogger
}

// New creates a new MCP server. The router and schema cache are shared by
// every tool handler for the life of the process.
func New(cfg *config.Config, router *gitlab.Router, schema *gitlab.SchemaCache, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	mcpServer := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	return &Server{
		mcpServer: mcpServer,
		config:    cfg,
		router:    router,
		schema:    schema,
		logger:    logger,
	}
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Config returns the process configuration.
func (s *Server) Config() *config.Config {
	return s.config
}

// Router returns the request router.
func (s *Server) Router() *gitlab.Router {
	return s.router
}

// Schema returns the schema cache.
func (s *Server) Schema() *gitlab.SchemaCache {
	return s.schema
}

// Logger returns the server logger.
func (s *Server) Logger() *zap.SugaredLogger {
	return s.logger
}

// AddTool is a convenience wrapper for adding tools.
func (s *Server) AddTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcpServer.AddTool(tool, handler)
}
