// Package gitlab routes GraphQL requests to GitLab through per-credential
// clients.
//
// The Router decides which credential authorizes a call (see auth.Decide),
// the ClientCache hands out one Client per credential identity, and the
// SchemaCache memoizes introspection results per identity.
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/kagent-dev/gitlab-graphql-mcp/internal/auth"
	"github.com/kagent-dev/gitlab-graphql-mcp/pkg/types"
)

const maxErrorBody = 512

// Client is a GraphQL client bound to one credential. It holds no session
// state and is safe for concurrent use.
type Client struct {
	identity   auth.Identity
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient assembles a client for endpoint authorized by token. It performs
// no I/O. A nil base uses http.DefaultTransport.
func NewClient(identity auth.Identity, endpoint, token string, timeout time.Duration, base http.RoundTripper) *Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Client{
		identity: identity,
		endpoint: endpoint,
		timeout:  timeout,
		httpClient: &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
				Base:   base,
			},
		},
	}
}

// Identity returns the cache key this client is bound to.
func (c *Client) Identity() auth.Identity {
	return c.identity
}

// Endpoint returns the GraphQL URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Do sends req and decodes the response envelope. Any failure, including a
// non-empty GraphQL "errors" array, is returned as a *RequestError.
func (c *Client) Do(ctx context.Context, req types.Request) (*types.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, c.fail(0, fmt.Errorf("failed to encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(0, fmt.Errorf("failed to build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, c.fail(0, fmt.Errorf("timed out after %s: %w", c.timeout, err))
		}
		return nil, c.fail(0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.fail(resp.StatusCode, errors.New(snippet(data, resp.Status)))
	}

	var out types.Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, c.fail(resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	if len(out.Errors) > 0 {
		return nil, c.fail(0, out.Errors)
	}
	return &out, nil
}

func (c *Client) fail(status int, err error) *RequestError {
	return &RequestError{Endpoint: c.endpoint, StatusCode: status, Err: err}
}

func snippet(body []byte, fallback string) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return fallback
	}
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
