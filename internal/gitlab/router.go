package gitlab

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kagent-dev/gitlab-graphql-mcp/internal/auth"
	"github.com/kagent-dev/gitlab-graphql-mcp/internal/config"
	"github.com/kagent-dev/gitlab-graphql-mcp/pkg/types"
)

// Router is the single entry point for turning a tool call into an
// authorized GitLab client.
type Router struct {
	mode   auth.Mode
	cache  *ClientCache
	logger *zap.SugaredLogger
}

// NewRouter creates a router for cfg's auth mode backed by cache.
func NewRouter(cfg *config.Config, cache *ClientCache, logger *zap.SugaredLogger) *Router {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Router{
		mode:   cfg.Mode(),
		cache:  cache,
		logger: logger,
	}
}

// Mode returns the configured auth mode.
func (r *Router) Mode() auth.Mode {
	return r.mode
}

// ResolveClient returns the client that authorizes an operation of the given
// kind, or an *AuthorizationError naming the missing credential.
func (r *Router) ResolveClient(kind auth.OpKind, user *auth.Credential) (*Client, error) {
	if user != nil && strings.TrimSpace(user.Token) == "" {
		return nil, &AuthorizationError{Reason: auth.ReasonEmptyToken}
	}

	_, sharedPresent := r.cache.Shared()

	switch d := auth.Decide(kind, user, r.mode, sharedPresent).(type) {
	case auth.UseUser:
		client := r.cache.GetOrCreate(d.Credential)
		r.logger.Debugw("resolved gitlab client", "kind", kind.String(), "source", "user", "identity", client.Identity().String())
		return client, nil

	case auth.UseShared:
		// Writes never reach the shared client, whatever the policy says.
		if kind == auth.Write {
			return nil, &AuthorizationError{Reason: auth.ReasonWriteNeedsUser}
		}
		client, ok := r.cache.Shared()
		if !ok {
			return nil, &AuthorizationError{Reason: auth.ReasonNotConfigured}
		}
		r.logger.Debugw("resolved gitlab client", "kind", kind.String(), "source", "shared", "identity", client.Identity().String())
		return client, nil

	case auth.Reject:
		r.logger.Debugw("rejected gitlab call", "kind", kind.String(), "mode", string(r.mode), "reason", d.Reason)
		return nil, &AuthorizationError{Reason: d.Reason}

	default:
		return nil, fmt.Errorf("unhandled auth decision %T", d)
	}
}

// Execute resolves a client for kind and sends req through it. Authorization
// failures are *AuthorizationError, exchange failures are *RequestError.
func (r *Router) Execute(ctx context.Context, req types.Request, kind auth.OpKind, user *auth.Credential) (*types.Response, error) {
	client, err := r.ResolveClient(kind, user)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(ctx, req)
	if err != nil {
		r.logger.Warnw("gitlab request failed", "kind", kind.String(), "identity", client.Identity().String(), "error", err)
		return nil, err
	}
	return resp, nil
}
