// Package tools provides MCP tool implementations backed by the GitLab GraphQL API.
package tools

import (
	"go.uber.org/zap"

	"github.com/kagent-dev/gitlab-graphql-mcp/internal/config"
	"github.com/kagent-dev/gitlab-graphql-mcp/internal/gitlab"
	mcpserver "github.com/kagent-dev/gitlab-graphql-mcp/internal/server"
)

// ToolServer holds the dependencies for tool handlers.
type ToolServer struct {
	server *mcpserver.Server
	config *config.Config
	router *gitlab.Router
	schema *gitlab.SchemaCache
	logger *zap.SugaredLogger
}

func newToolServer(s *mcpserver.Server) *ToolServer {
	return &ToolServer{
		server: s,
		config: s.Config(),
		router: s.Router(),
		schema: s.Schema(),
		logger: s.Logger(),
	}
}

// RegisterAll registers all tools with the MCP server.
func RegisterAll(s *mcpserver.Server) {
	ts := newToolServer(s)

	// Schema tools
	ts.registerIntrospectSchema()
	ts.registerListAvailableQueries()
	ts.registerListAvailableMutations()

	// Read tools
	ts.registerGetCurrentUser()
	ts.registerGetProject()
	ts.registerSearchProjects()
	ts.registerGetGroup()
	ts.registerGetIssues()
	ts.registerGetIssue()
	ts.registerGetMergeRequests()
	ts.registerGetMergeRequest()
	ts.registerExecuteCustomQuery()

	// Write tools
	ts.registerCreateIssue()
	ts.registerCreateMergeRequest()
	ts.registerCreateNote()
	ts.registerExecuteCustomMutation()
}
