package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kagent-dev/gitlab-graphql-mcp/internal/auth"
	"github.com/kagent-dev/gitlab-graphql-mcp/pkg/types"
)

const mergeRequestsQuery = `query GetMergeRequests($fullPath: ID!, $state: MergeRequestState, $first: Int, $after: String) {
  project(fullPath: $fullPath) {
    mergeRequests(state: $state, first: $first, after: $after, sort: UPDATED_DESC) {
      nodes {
        id
        iid
        title
        state
        draft
        sourceBranch
        targetBranch
        webUrl
        createdAt
        updatedAt
        author { username }
      }
      pageInfo { hasNextPage endCursor }
    }
  }
}`

const mergeRequestQuery = `query GetMergeRequest($fullPath: ID!, $iid: String!) {
  project(fullPath: $fullPath) {
    mergeRequest(iid: $iid) {
      id
      iid
      title
      description
      state
      draft
      mergeStatusEnum
      sourceBranch
      targetBranch
      webUrl
      createdAt
      updatedAt
      mergedAt
      author { username name }
      assignees { nodes { username } }
      reviewers { nodes { username } }
      labels { nodes { title } }
      diffStatsSummary { additions deletions fileCount }
    }
  }
}`

const createMergeRequestMutation = `mutation CreateMergeRequest($input: MergeRequestCreateInput!) {
  mergeRequestCreate(input: $input) {
    mergeRequest { id iid title webUrl }
    errors
  }
}`

var mergeRequestStates = map[string]bool{"opened": true, "closed": true, "locked": true, "merged": true, "all": true}

// registerGetMergeRequests registers the get_merge_requests tool.
func (ts *ToolServer) registerGetMergeRequests() {
	tool := mcp.NewTool("get_merge_requests",
		mcp.WithDescription("List merge requests of a GitLab project, most recently updated first."),
		mcp.WithString("project_path",
			mcp.Required(),
			mcp.Description("Full path of the project"),
		),
		mcp.WithString("state",
			mcp.Description("Merge request state: opened, closed, locked, merged, or all (default opened)"),
		),
		withPageSize(ts.config.MaxPageSize),
		mcp.WithString("after",
			mcp.Description("Cursor from a previous page's pageInfo.endCursor"),
		),
		withOutputFormat(),
		withUserCredentials(),
	)

	ts.server.AddTool(tool, ts.handleGetMergeRequests)
}

func (ts *ToolServer) handleGetMergeRequests(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.Params.Arguments
	projectPath := stringArg(args, "project_path")
	if projectPath == "" {
		return mcp.NewToolResultError("project_path is required"), nil
	}

	state := strings.ToLower(stringArg(args, "state"))
	if state == "" {
		state = "opened"
	}
	if !mergeRequestStates[state] {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid state '%s'. Must be one of: opened, closed, locked, merged, all", state)), nil
	}

	variables := map[string]any{
		"fullPath": projectPath,
		"state":    state,
		"first":    ts.pageSize(args),
	}
	if after := stringArg(args, "after"); after != "" {
		variables["after"] = after
	}

	return ts.execute(ctx, req, call{
		kind:     auth.Read,
		request:  types.Request{Query: mergeRequestsQuery, Variables: variables},
		root:     "project.mergeRequests",
		notFound: fmt.Sprintf("Project '%s' not found or not accessible with these credentials.", projectPath),
	})
}

// registerGetMergeRequest registers the get_merge_request tool.
func (ts *ToolServer) registerGetMergeRequest() {
	tool := mcp.NewTool("get_merge_request",
		mcp.WithDescription("Get a single merge request of a GitLab project by its IID."),
		mcp.WithString("project_path",
			mcp.Required(),
			mcp.Description("Full path of the project"),
		),
		mcp.WithString("iid",
			mcp.Required(),
			mcp.Description("Merge request IID (the number shown in the GitLab UI)"),
		),
		withOutputFormat(),
		withUserCredentials(),
	)

	ts.server.AddTool(tool, ts.handleGetMergeRequest)
}

func (ts *ToolServer) handleGetMergeRequest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectPath := stringArg(req.Params.Arguments, "project_path")
	iid := iidArg(req.Params.Arguments)
	if projectPath == "" || iid == "" {
		return mcp.NewToolResultError("project_path and iid are required"), nil
	}

	return ts.execute(ctx, req, call{
		kind:     auth.Read,
		request:  types.Request{Query: mergeRequestQuery, Variables: map[string]any{"fullPath": projectPath, "iid": iid}},
		root:     "project.mergeRequest",
		notFound: fmt.Sprintf("Merge request !%s not found in '%s'.", iid, projectPath),
	})
}

// registerCreateMergeRequest registers the create_merge_request tool.
func (ts *ToolServer) registerCreateMergeRequest() {
	tool := mcp.NewTool("create_merge_request",
		mcp.WithDescription("Open a merge request in a GitLab project. Requires user_credentials."),
		mcp.WithString("project_path",
			mcp.Required(),
			mcp.Description("Full path of the project"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Merge request title"),
		),
		mcp.WithString("source_branch",
			mcp.Required(),
			mcp.Description("Branch containing the changes"),
		),
		mcp.WithString("target_branch",
			mcp.Required(),
			mcp.Description("Branch to merge into"),
		),
		mcp.WithString("description",
			mcp.Description("Merge request description (Markdown)"),
		),
		withUserCredentials(),
	)

	ts.server.AddTool(tool, ts.handleCreateMergeRequest)
}

func (ts *ToolServer) handleCreateMergeRequest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.Params.Arguments
	projectPath := stringArg(args, "project_path")
	title := stringArg(args, "title")
	sourceBranch := stringArg(args, "source_branch")
	targetBranch := stringArg(args, "target_branch")

	if projectPath == "" || title == "" || sourceBranch == "" || targetBranch == "" {
		return mcp.NewToolResultError("project_path, title, source_branch, and target_branch are required"), nil
	}
	if sourceBranch == targetBranch {
		return mcp.NewToolResultError("source_branch and target_branch must differ"), nil
	}

	input := map[string]any{
		"projectPath":  projectPath,
		"title":        title,
		"sourceBranch": sourceBranch,
		"targetBranch": targetBranch,
	}
	if description := stringArg(args, "description"); description != "" {
		input["description"] = description
	}

	return ts.execute(ctx, req, call{
		kind:    auth.Write,
		request: types.Request{Query: createMergeRequestMutation, Variables: map[string]any{"input": input}},
		root:    "mergeRequestCreate",
	})
}
