package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/kagent-dev/gitlab-graphql-mcp/internal/auth"
	"github.com/kagent-dev/gitlab-graphql-mcp/pkg/types"
)

var errMutationNotAllowed = errors.New("execute_custom_query only runs queries. Use execute_custom_mutation for mutations")

// checkQueryDocument parses document and fails unless every operation it
// defines is a query.
func checkQueryDocument(document string) error {
	doc, err := parser.ParseQuery(&ast.Source{Name: "query", Input: document})
	if err != nil {
		return fmt.Errorf("invalid GraphQL document: %w", err)
	}
	if len(doc.Operations) == 0 {
		return errors.New("GraphQL document defines no operation")
	}
	for _, op := range doc.Operations {
		switch op.Operation {
		case ast.Query:
		case ast.Mutation:
			return errMutationNotAllowed
		default:
			return fmt.Errorf("%s operations are not supported", op.Operation)
		}
	}
	return nil
}

// registerExecuteCustomQuery registers the execute_custom_query tool.
func (ts *ToolServer) registerExecuteCustomQuery() {
	tool := mcp.NewTool("execute_custom_query",
		mcp.WithDescription("Execute an arbitrary read-only GraphQL query against GitLab. Use list_available_queries to discover fields. Mutations are rejected; use execute_custom_mutation for those."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("GraphQL query document"),
		),
		mcp.WithObject("variables",
			mcp.Description("GraphQL variables"),
		),
		withOutputFormat(),
		withUserCredentials(),
	)

	ts.server.AddTool(tool, ts.handleExecuteCustomQuery)
}

func (ts *ToolServer) handleExecuteCustomQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := stringArg(req.Params.Arguments, "query")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	if err := checkQueryDocument(query); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	variables, err := variablesArg(req.Params.Arguments)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return ts.execute(ctx, req, call{
		kind:    auth.Read,
		request: types.Request{Query: query, Variables: variables},
	})
}

// registerExecuteCustomMutation registers the execute_custom_mutation tool.
func (ts *ToolServer) registerExecuteCustomMutation() {
	tool := mcp.NewTool("execute_custom_mutation",
		mcp.WithDescription("Execute an arbitrary GraphQL mutation against GitLab. Requires user_credentials. Use list_available_mutations to discover mutations."),
		mcp.WithString("mutation",
			mcp.Required(),
			mcp.Description("GraphQL mutation document"),
		),
		mcp.WithObject("variables",
			mcp.Description("GraphQL variables"),
		),
		withOutputFormat(),
		withUserCredentials(),
	)

	ts.server.AddTool(tool, ts.handleExecuteCustomMutation)
}

func (ts *ToolServer) handleExecuteCustomMutation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mutation := stringArg(req.Params.Arguments, "mutation")
	if mutation == "" {
		return mcp.NewToolResultError("mutation is required"), nil
	}

	variables, err := variablesArg(req.Params.Arguments)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return ts.execute(ctx, req, call{
		kind:    auth.Write,
		request: types.Request{Query: mutation, Variables: variables},
	})
}
