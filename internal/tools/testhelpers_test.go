package tools

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/gitlab-graphql-mcp/internal/config"
	"github.com/kagent-dev/gitlab-graphql-mcp/internal/gitlab"
	mcpserver "github.com/kagent-dev/gitlab-graphql-mcp/internal/server"
	"github.com/kagent-dev/gitlab-graphql-mcp/pkg/types"
)

const schemaData = `{
  "__schema": {
    "queryType": {"name": "Query", "fields": [
      {"name": "project", "description": "Find a project."},
      {"name": "projects", "description": "Find projects visible to the current user."},
      {"name": "currentUser", "description": "Get information about current user."}
    ]},
    "mutationType": {"name": "Mutation", "fields": [
      {"name": "createIssue", "description": null},
      {"name": "createNote", "description": null}
    ]},
    "types": [{"name": "Query", "kind": "OBJECT"}]
  }
}`

// recordedCall is one request seen by the fake GitLab endpoint.
type recordedCall struct {
	Token   string
	Request types.Request
}

type fakeGitLab struct {
	*httptest.Server

	mu    sync.Mutex
	calls []recordedCall
}

// newFakeGitLab answers every GraphQL request with respond(req); respond
// returns the raw JSON of the "data" object.
func newFakeGitLab(t *testing.T, respond func(req types.Request) string) *fakeGitLab {
	t.Helper()

	f := &fakeGitLab{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req types.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		f.calls = append(f.calls, recordedCall{
			Token:   strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
			Request: req,
		})
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":` + respond(req) + `}`))
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeGitLab) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

// newTestToolServer wires the full stack against url.
func newTestToolServer(t *testing.T, url, mode, sharedToken string) *ToolServer {
	t.Helper()

	cfg := &config.Config{
		URL:               url,
		SharedAccessToken: sharedToken,
		AuthMode:          mode,
		MaxPageSize:       30,
		TimeoutMS:         5000,
		LogLevel:          "info",
		Kubernetes:        config.KubernetesConfig{SecretKey: "token"},
	}
	require.NoError(t, cfg.Validate())

	cache := gitlab.NewClientCache(cfg)
	router := gitlab.NewRouter(cfg, cache, nil)
	schema := gitlab.NewSchemaCache(router, nil)
	return newToolServer(mcpserver.New(cfg, router, schema, nil))
}

func newRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func userCreds(token string) map[string]any {
	return map[string]any{"token": token}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()

	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}
