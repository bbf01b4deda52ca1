package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kagent-dev/gitlab-graphql-mcp/internal/auth"
	"github.com/kagent-dev/gitlab-graphql-mcp/pkg/types"
)

const currentUserQuery = `query CurrentUser {
  currentUser {
    id
    username
    name
    publicEmail
    state
    webUrl
    avatarUrl
  }
}`

const projectQuery = `query GetProject($fullPath: ID!) {
  project(fullPath: $fullPath) {
    id
    name
    fullPath
    description
    webUrl
    visibility
    archived
    createdAt
    lastActivityAt
    starCount
    forksCount
    repository { rootRef }
    namespace { fullPath }
  }
}`

const searchProjectsQuery = `query SearchProjects($search: String, $first: Int, $after: String, $membership: Boolean) {
  projects(search: $search, first: $first, after: $after, membership: $membership) {
    nodes {
      id
      name
      fullPath
      description
      webUrl
      visibility
      lastActivityAt
    }
    pageInfo { hasNextPage endCursor }
  }
}`

const groupQuery = `query GetGroup($fullPath: ID!, $first: Int) {
  group(fullPath: $fullPath) {
    id
    name
    fullPath
    description
    webUrl
    visibility
    projects(first: $first, includeSubgroups: true) {
      nodes { id name fullPath webUrl }
      pageInfo { hasNextPage endCursor }
    }
  }
}`

// registerGetCurrentUser registers the get_current_user tool.
func (ts *ToolServer) registerGetCurrentUser() {
	tool := mcp.NewTool("get_current_user",
		mcp.WithDescription("Get the GitLab user the calling credentials belong to. Useful to check which identity a token maps to."),
		withOutputFormat(),
		withUserCredentials(),
	)

	ts.server.AddTool(tool, ts.handleGetCurrentUser)
}

func (ts *ToolServer) handleGetCurrentUser(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return ts.execute(ctx, req, call{
		kind:     auth.Read,
		request:  types.Request{Query: currentUserQuery},
		root:     "currentUser",
		notFound: "No authenticated user. The token may be missing the read_user or read_api scope.",
	})
}

// registerGetProject registers the get_project tool.
func (ts *ToolServer) registerGetProject() {
	tool := mcp.NewTool("get_project",
		mcp.WithDescription("Get details of a GitLab project by its full path."),
		mcp.WithString("full_path",
			mcp.Required(),
			mcp.Description("Full path of the project (e.g., 'gitlab-org/gitlab')"),
		),
		withOutputFormat(),
		withUserCredentials(),
	)

	ts.server.AddTool(tool, ts.handleGetProject)
}

func (ts *ToolServer) handleGetProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fullPath := stringArg(req.Params.Arguments, "full_path")
	if fullPath == "" {
		return mcp.NewToolResultError("full_path is required"), nil
	}

	return ts.execute(ctx, req, call{
		kind:     auth.Read,
		request:  types.Request{Query: projectQuery, Variables: map[string]any{"fullPath": fullPath}},
		root:     "project",
		notFound: fmt.Sprintf("Project '%s' not found or not accessible with these credentials.", fullPath),
	})
}

// registerSearchProjects registers the search_projects tool.
func (ts *ToolServer) registerSearchProjects() {
	tool := mcp.NewTool("search_projects",
		mcp.WithDescription("Search GitLab projects by name or path."),
		mcp.WithString("search",
			mcp.Description("Search term"),
		),
		mcp.WithBoolean("membership",
			mcp.Description("Only return projects the caller is a member of"),
		),
		withPageSize(ts.config.MaxPageSize),
		mcp.WithString("after",
			mcp.Description("Cursor from a previous page's pageInfo.endCursor"),
		),
		withOutputFormat(),
		withUserCredentials(),
	)

	ts.server.AddTool(tool, ts.handleSearchProjects)
}

func (ts *ToolServer) handleSearchProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.Params.Arguments
	variables := map[string]any{"first": ts.pageSize(args)}
	if search := stringArg(args, "search"); search != "" {
		variables["search"] = search
	}
	if after := stringArg(args, "after"); after != "" {
		variables["after"] = after
	}
	if membership, ok := args["membership"].(bool); ok {
		variables["membership"] = membership
	}

	return ts.execute(ctx, req, call{
		kind:    auth.Read,
		request: types.Request{Query: searchProjectsQuery, Variables: variables},
		root:    "projects",
	})
}

// registerGetGroup registers the get_group tool.
func (ts *ToolServer) registerGetGroup() {
	tool := mcp.NewTool("get_group",
		mcp.WithDescription("Get a GitLab group and its projects (including subgroups) by full path."),
		mcp.WithString("full_path",
			mcp.Required(),
			mcp.Description("Full path of the group (e.g., 'gitlab-org')"),
		),
		withPageSize(ts.config.MaxPageSize),
		withOutputFormat(),
		withUserCredentials(),
	)

	ts.server.AddTool(tool, ts.handleGetGroup)
}

func (ts *ToolServer) handleGetGroup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fullPath := stringArg(req.Params.Arguments, "full_path")
	if fullPath == "" {
		return mcp.NewToolResultError("full_path is required"), nil
	}

	return ts.execute(ctx, req, call{
		kind: auth.Read,
		request: types.Request{Query: groupQuery, Variables: map[string]any{
			"fullPath": fullPath,
			"first":    ts.pageSize(req.Params.Arguments),
		}},
		root:     "group",
		notFound: fmt.Sprintf("Group '%s' not found or not accessible with these credentials.", fullPath),
	})
}
