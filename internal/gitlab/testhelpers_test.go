package gitlab

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/gitlab-graphql-mcp/internal/config"
	"github.com/kagent-dev/gitlab-graphql-mcp/pkg/types"
)

const testSchemaData = `{
  "__schema": {
    "queryType": {"name": "Query", "fields": [
      {"name": "project", "description": "Find a project."},
      {"name": "currentUser", "description": "Get information about current user."},
      {"name": "issues", "description": null}
    ]},
    "mutationType": {"name": "Mutation", "fields": [
      {"name": "createIssue", "description": "Creates an issue."},
      {"name": "mergeRequestCreate", "description": null}
    ]},
    "types": [{"name": "Query", "kind": "OBJECT"}, {"name": "Project", "kind": "OBJECT"}, {"name": "Mutation", "kind": "OBJECT"}]
  }
}`

// fakeGitLab is an httptest GraphQL endpoint that records calls.
type fakeGitLab struct {
	*httptest.Server

	calls atomic.Int32

	mu      sync.Mutex
	tokens  []string
	queries []string
}

// newFakeGitLab serves respond's result for every request. respond may be nil
// to always answer with testSchemaData.
func newFakeGitLab(t *testing.T, respond func(w http.ResponseWriter, req types.Request)) *fakeGitLab {
	t.Helper()

	f := &fakeGitLab{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)

		var req types.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		f.tokens = append(f.tokens, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		f.queries = append(f.queries, req.Query)
		f.mu.Unlock()

		if respond == nil {
			writeData(w, testSchemaData)
			return
		}
		respond(w, req)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeGitLab) Calls() int {
	return int(f.calls.Load())
}

func (f *fakeGitLab) Tokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

func writeData(w http.ResponseWriter, data string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"data":` + data + `}`))
}

func testConfig(t *testing.T, url, mode, sharedToken string) *config.Config {
	t.Helper()

	cfg := &config.Config{
		URL:               url,
		SharedAccessToken: sharedToken,
		AuthMode:          mode,
		MaxPageSize:       50,
		TimeoutMS:         5000,
		LogLevel:          "info",
		Kubernetes:        config.KubernetesConfig{SecretKey: "token"},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

// newTestRouter wires a cache and router against url.
func newTestRouter(t *testing.T, url, mode, sharedToken string) (*Router, *ClientCache) {
	t.Helper()

	cfg := testConfig(t, url, mode, sharedToken)
	cache := NewClientCache(cfg)
	return NewRouter(cfg, cache, nil), cache
}
