package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kagent-dev/gitlab-graphql-mcp/internal/auth"
	"github.com/kagent-dev/gitlab-graphql-mcp/pkg/types"
)

const issuesQuery = `query GetIssues($fullPath: ID!, $state: IssuableState, $first: Int, $after: String) {
  project(fullPath: $fullPath) {
    issues(state: $state, first: $first, after: $after, sort: UPDATED_DESC) {
      nodes {
        id
        iid
        title
        state
        webUrl
        createdAt
        updatedAt
        author { username }
        assignees { nodes { username } }
        labels { nodes { title } }
      }
      pageInfo { hasNextPage endCursor }
    }
  }
}`

const issueQuery = `query GetIssue($fullPath: ID!, $iid: String!) {
  project(fullPath: $fullPath) {
    issue(iid: $iid) {
      id
      iid
      title
      description
      state
      confidential
      webUrl
      createdAt
      updatedAt
      closedAt
      dueDate
      author { username name }
      assignees { nodes { username } }
      labels { nodes { title } }
      milestone { title }
    }
  }
}`

const createIssueMutation = `mutation CreateIssue($input: CreateIssueInput!) {
  createIssue(input: $input) {
    issue { id iid title webUrl }
    errors
  }
}`

const createNoteMutation = `mutation CreateNote($input: CreateNoteInput!) {
  createNote(input: $input) {
    note { id body url }
    errors
  }
}`

var issueStates = map[string]bool{"opened": true, "closed": true, "locked": true, "all": true}

// registerGetIssues registers the get_issues tool.
func (ts *ToolServer) registerGetIssues() {
	tool := mcp.NewTool("get_issues",
		mcp.WithDescription("List issues of a GitLab project, most recently updated first."),
		mcp.WithString("project_path",
			mcp.Required(),
			mcp.Description("Full path of the project"),
		),
		mcp.WithString("state",
			mcp.Description("Issue state: opened, closed, locked, or all (default opened)"),
		),
		withPageSize(ts.config.MaxPageSize),
		mcp.WithString("after",
			mcp.Description("Cursor from a previous page's pageInfo.endCursor"),
		),
		withOutputFormat(),
		withUserCredentials(),
	)

	ts.server.AddTool(tool, ts.handleGetIssues)
}

func (ts *ToolServer) handleGetIssues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.Params.Arguments
	projectPath := stringArg(args, "project_path")
	if projectPath == "" {
		return mcp.NewToolResultError("project_path is required"), nil
	}

	state := strings.ToLower(stringArg(args, "state"))
	if state == "" {
		state = "opened"
	}
	if !issueStates[state] {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid state '%s'. Must be one of: opened, closed, locked, all", state)), nil
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
		request:  types.Request{Query: issuesQuery, Variables: variables},
		root:     "project.issues",
		notFound: fmt.Sprintf("Project '%s' not found or not accessible with these credentials.", projectPath),
	})
}

// registerGetIssue registers the get_issue tool.
func (ts *ToolServer) registerGetIssue() {
	tool := mcp.NewTool("get_issue",
		mcp.WithDescription("Get a single issue of a GitLab project by its IID."),
		mcp.WithString("project_path",
			mcp.Required(),
			mcp.Description("Full path of the project"),
		),
		mcp.WithString("iid",
			mcp.Required(),
			mcp.Description("Issue IID (the number shown in the GitLab UI)"),
		),
		withOutputFormat(),
		withUserCredentials(),
	)

	ts.server.AddTool(tool, ts.handleGetIssue)
}

func (ts *ToolServer) handleGetIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectPath := stringArg(req.Params.Arguments, "project_path")
	iid := iidArg(req.Params.Arguments)
	if projectPath == "" || iid == "" {
		return mcp.NewToolResultError("project_path and iid are required"), nil
	}

	return ts.execute(ctx, req, call{
		kind:     auth.Read,
		request:  types.Request{Query: issueQuery, Variables: map[string]any{"fullPath": projectPath, "iid": iid}},
		root:     "project.issue",
		notFound: fmt.Sprintf("Issue #%s not found in '%s'.", iid, projectPath),
	})
}

// registerCreateIssue registers the create_issue tool.
func (ts *ToolServer) registerCreateIssue() {
	tool := mcp.NewTool("create_issue",
		mcp.WithDescription("Create an issue in a GitLab project. Requires user_credentials."),
		mcp.WithString("project_path",
			mcp.Required(),
			mcp.Description("Full path of the project"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Issue title"),
		),
		mcp.WithString("description",
			mcp.Description("Issue description (Markdown)"),
		),
		mcp.WithString("labels",
			mcp.Description("Comma-separated label names"),
		),
		mcp.WithBoolean("confidential",
			mcp.Description("Create the issue as confidential"),
		),
		withUserCredentials(),
	)

	ts.server.AddTool(tool, ts.handleCreateIssue)
}

func (ts *ToolServer) handleCreateIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.Params.Arguments
	projectPath := stringArg(args, "project_path")
	title := stringArg(args, "title")
	if projectPath == "" || title == "" {
		return mcp.NewToolResultError("project_path and title are required"), nil
	}

	input := map[string]any{
		"projectPath": projectPath,
		"title":       title,
	}
	if description := stringArg(args, "description"); description != "" {
		input["description"] = description
	}
	if labels := splitList(stringArg(args, "labels")); len(labels) > 0 {
		input["labels"] = labels
	}
	if confidential, ok := args["confidential"].(bool); ok {
		input["confidential"] = confidential
	}

	return ts.execute(ctx, req, call{
		kind:    auth.Write,
		request: types.Request{Query: createIssueMutation, Variables: map[string]any{"input": input}},
		root:    "createIssue",
	})
}

// registerCreateNote registers the create_note tool.
func (ts *ToolServer) registerCreateNote() {
	tool := mcp.NewTool("create_note",
		mcp.WithDescription("Add a comment to an issue or merge request. Requires user_credentials."),
		mcp.WithString("noteable_id",
			mcp.Required(),
			mcp.Description("Global ID of the issue or merge request (e.g., 'gid://gitlab/Issue/123')"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Comment text (Markdown)"),
		),
		withUserCredentials(),
	)

	ts.server.AddTool(tool, ts.handleCreateNote)
}

func (ts *ToolServer) handleCreateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteableID := stringArg(req.Params.Arguments, "noteable_id")
	body := stringArg(req.Params.Arguments, "body")
	if noteableID == "" || body == "" {
		return mcp.NewToolResultError("noteable_id and body are required"), nil
	}
	if !strings.HasPrefix(noteableID, "gid://gitlab/") {
		return mcp.NewToolResultError("noteable_id must be a GitLab global ID such as 'gid://gitlab/Issue/123'"), nil
	}

	return ts.execute(ctx, req, call{
		kind: auth.Write,
		request: types.Request{Query: createNoteMutation, Variables: map[string]any{
			"input": map[string]any{"noteableId": noteableID, "body": body},
		}},
		root: "createNote",
	})
}

// iidArg accepts the IID as a string or a number.
func iidArg(args map[string]any) string {
	switch v := args["iid"].(type) {
	case string:
		return strings.TrimPrefix(strings.TrimSpace(v), "#")
	case float64:
		if v >= 1 {
			return fmt.Sprintf("%d", int64(v))
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
