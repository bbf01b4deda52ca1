package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"
	"sigs.k8s.io/yaml"

	"github.com/kagent-dev/gitlab-graphql-mcp/internal/auth"
	"github.com/kagent-dev/gitlab-graphql-mcp/internal/gitlab"
	"github.com/kagent-dev/gitlab-graphql-mcp/pkg/types"
)

const (
	credentialsArg   = "user_credentials"
	outputFormatArg  = "output_format"
	defaultPageLimit = 20
)

// withUserCredentials adds the optional per-call credential object that every
// tool accepts.
func withUserCredentials() mcp.ToolOption {
	return mcp.WithObject(credentialsArg,
		mcp.Description("Optional GitLab credentials for this call. When omitted the server's shared token is used for read operations if the auth mode allows it. Write operations always require them."),
		mcp.Properties(map[string]any{
			"token": map[string]any{
				"type":        "string",
				"description": "GitLab personal, project or group access token",
			},
			"gitlab_url": map[string]any{
				"type":        "string",
				"description": "GitLab instance base URL (defaults to the server's configured URL)",
			},
		}),
	)
}

func withOutputFormat() mcp.ToolOption {
	return mcp.WithString(outputFormatArg,
		mcp.Description("Output format: 'json' (default) or 'yaml'"),
	)
}

func withPageSize(maxPageSize int) mcp.ToolOption {
	return mcp.WithNumber("first",
		mcp.Description(fmt.Sprintf("Number of items to return (1-%d, default %d)", maxPageSize, min(defaultPageLimit, maxPageSize))),
	)
}

// userCredentials extracts the optional credential object. It returns nil when
// the caller supplied none.
func userCredentials(args map[string]any) (*auth.Credential, error) {
	raw, ok := args[credentialsArg]
	if !ok || raw == nil {
		return nil, nil
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an object with a token field", credentialsArg)
	}

	token, _ := obj["token"].(string)
	endpoint, _ := obj["gitlab_url"].(string)
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%s.token must not be empty", credentialsArg)
	}
	return &auth.Credential{Token: token, Endpoint: strings.TrimSpace(endpoint)}, nil
}

// pageSize reads the "first" argument and clamps it to the configured maximum.
func (ts *ToolServer) pageSize(args map[string]any) int {
	limit := min(defaultPageLimit, ts.config.MaxPageSize)
	if v, ok := args["first"].(float64); ok && v >= 1 {
		limit = int(v)
	}
	return min(limit, ts.config.MaxPageSize)
}

// call describes one templated GraphQL exchange.
type call struct {
	kind     auth.OpKind
	request  types.Request
	root     string // gjson path of the payload to return; empty returns all data
	notFound string // text returned when root resolves to null
}

// execute runs c on behalf of the tool call and renders the outcome. Handler
// failures are reported as tool errors, never as Go errors.
func (ts *ToolServer) execute(ctx context.Context, req mcp.CallToolRequest, c call) (*mcp.CallToolResult, error) {
	cred, err := userCredentials(req.Params.Arguments)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := ts.router.Execute(ctx, c.request, c.kind, cred)
	if err != nil {
		return errorResult(err), nil
	}

	payload := resp.Data
	if c.root != "" {
		res := gjson.GetBytes(resp.Data, c.root)
		if !res.Exists() || res.Type == gjson.Null {
			if c.notFound != "" {
				return mcp.NewToolResultText(c.notFound), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("GitLab returned no %s", c.root)), nil
		}
		if c.kind == auth.Write {
			if msgs := res.Get("errors").Array(); len(msgs) > 0 {
				return mcp.NewToolResultError(fmt.Sprintf("GitLab rejected the mutation: %s", joinResults(msgs))), nil
			}
		}
		payload = json.RawMessage(res.Raw)
	}

	format, _ := req.Params.Arguments[outputFormatArg].(string)
	out, err := render(payload, format)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

// errorResult maps routing errors to tool errors that tell the caller what to
// do next.
func errorResult(err error) *mcp.CallToolResult {
	var authErr *gitlab.AuthorizationError
	switch {
	case errors.As(err, &authErr):
		return mcp.NewToolResultError(fmt.Sprintf("Authentication required: %s. Provide %s with a GitLab access token.", authErr.Reason, credentialsArg))
	case errors.Is(err, gitlab.ErrIntrospectionFailed):
		return mcp.NewToolResultError(fmt.Sprintf("Failed to introspect schema: %v", err))
	case errors.Is(err, gitlab.ErrRequestFailed):
		return mcp.NewToolResultError(fmt.Sprintf("GitLab request failed: %v", err))
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

// render formats a JSON payload as indented JSON or YAML.
func render(payload json.RawMessage, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", "json":
		var buf strings.Builder
		var v any
		if err := json.Unmarshal(payload, &v); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return "", fmt.Errorf("failed to encode response: %w", err)
		}
		return strings.TrimRight(buf.String(), "\n"), nil
	case "yaml":
		out, err := yaml.JSONToYAML(payload)
		if err != nil {
			return "", fmt.Errorf("failed to convert response to yaml: %w", err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("invalid %s '%s'. Must be 'json' or 'yaml'", outputFormatArg, format)
	}
}

func renderValue(v any, format string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return render(data, format)
}

func joinResults(results []gjson.Result) string {
	msgs := make([]string, 0, len(results))
	for _, r := range results {
		msgs = append(msgs, r.String())
	}
	return strings.Join(msgs, "; ")
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

// variablesArg accepts GraphQL variables either as an object or as a JSON
// encoded string.
func variablesArg(args map[string]any) (map[string]any, error) {
	switch v := args["variables"].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("variables must be a JSON object: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("variables must be a JSON object, got %T", v)
	}
}
