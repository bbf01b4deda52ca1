package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerIntrospectSchema registers the introspect_schema tool.
func (ts *ToolServer) registerIntrospectSchema() {
	tool := mcp.NewTool("introspect_schema",
		mcp.WithDescription("Introspect the GitLab GraphQL schema for the calling credentials. The result is cached per credential, so repeated calls are cheap. Returns the available root queries and mutations."),
		mcp.WithBoolean("include_names",
			mcp.Description("Include the full list of query and mutation names (default true)"),
		),
		withOutputFormat(),
		withUserCredentials(),
	)

	ts.server.AddTool(tool, ts.handleIntrospectSchema)
}

func (ts *ToolServer) handleIntrospectSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cred, err := userCredentials(req.Params.Arguments)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	snap, err := ts.schema.EnsureIntrospected(ctx, cred)
	if err != nil {
		return errorResult(err), nil
	}

	summary := snap.Summary()
	if include, ok := req.Params.Arguments["include_names"].(bool); ok && !include {
		summary.Queries = nil
		summary.Mutations = nil
	}

	format, _ := req.Params.Arguments[outputFormatArg].(string)
	out, err := renderValue(summary, format)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

// registerListAvailableQueries registers the list_available_queries tool.
func (ts *ToolServer) registerListAvailableQueries() {
	tool := mcp.NewTool("list_available_queries",
		mcp.WithDescription("List the root query fields of the GitLab GraphQL schema. Introspects the schema first if needed."),
		mcp.WithString("filter",
			mcp.Description("Only return names containing this text (case-insensitive)"),
		),
		mcp.WithBoolean("describe",
			mcp.Description("Append each field's schema description (default false)"),
		),
		withUserCredentials(),
	)

	ts.server.AddTool(tool, ts.handleListAvailableQueries)
}

func (ts *ToolServer) handleListAvailableQueries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return ts.listRootFields(ctx, req, "queries")
}

// registerListAvailableMutations registers the list_available_mutations tool.
func (ts *ToolServer) registerListAvailableMutations() {
	tool := mcp.NewTool("list_available_mutations",
		mcp.WithDescription("List the root mutation fields of the GitLab GraphQL schema. Introspects the schema first if needed."),
		mcp.WithString("filter",
			mcp.Description("Only return names containing this text (case-insensitive)"),
		),
		mcp.WithBoolean("describe",
			mcp.Description("Append each field's schema description (default false)"),
		),
		withUserCredentials(),
	)

	ts.server.AddTool(tool, ts.handleListAvailableMutations)
}

func (ts *ToolServer) handleListAvailableMutations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return ts.listRootFields(ctx, req, "mutations")
}

func (ts *ToolServer) listRootFields(ctx context.Context, req mcp.CallToolRequest, kind string) (*mcp.CallToolResult, error) {
	cred, err := userCredentials(req.Params.Arguments)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	snap, err := ts.schema.EnsureIntrospected(ctx, cred)
	if err != nil {
		return errorResult(err), nil
	}

	var names []string
	if kind == "mutations" {
		names, err = ts.schema.ListMutations(cred)
	} else {
		names, err = ts.schema.ListQueries(cred)
	}
	if err != nil {
		return errorResult(err), nil
	}

	filter := strings.ToLower(stringArg(req.Params.Arguments, "filter"))
	describe, _ := req.Params.Arguments["describe"].(bool)
	var matched []string
	for _, n := range names {
		if filter != "" && !strings.Contains(strings.ToLower(n), filter) {
			continue
		}
		if describe {
			if desc, ok := snap.Describe(n); ok && desc != "" {
				n += ": " + desc
			}
		}
		matched = append(matched, n)
	}

	if len(matched) == 0 {
		if filter != "" {
			return mcp.NewToolResultText(fmt.Sprintf("No %s match '%s'.", kind, filter)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("The schema exposes no %s.", kind)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%d %s:\n%s", len(matched), kind, strings.Join(matched, "\n"))), nil
}
