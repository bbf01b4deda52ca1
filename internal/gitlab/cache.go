package gitlab

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kagent-dev/gitlab-graphql-mcp/internal/auth"
	"github.com/kagent-dev/gitlab-graphql-mcp/internal/config"
)

// ClientFactory builds the client for one identity. It must not fail or
// perform I/O.
type ClientFactory func(identity auth.Identity, endpoint, token string) *Client

// ClientCache keeps one Client per credential identity for the life of the
// process, plus the shared client when a shared token is configured.
// Entries are never evicted.
type ClientCache struct {
	defaultBaseURL string
	factory        ClientFactory
	logger         *zap.SugaredLogger

	shared *Client

	mu      sync.RWMutex
	clients map[auth.Identity]*Client
}

// CacheOption configures a ClientCache.
type CacheOption func(*ClientCache)

// WithClientFactory replaces the default client constructor.
func WithClientFactory(f ClientFactory) CacheOption {
	return func(c *ClientCache) {
		c.factory = f
	}
}

// WithTransport builds clients on top of rt instead of http.DefaultTransport.
func WithTransport(rt http.RoundTripper, timeout time.Duration) CacheOption {
	return func(c *ClientCache) {
		c.factory = func(identity auth.Identity, endpoint, token string) *Client {
			return NewClient(identity, endpoint, token, timeout, rt)
		}
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *zap.SugaredLogger) CacheOption {
	return func(c *ClientCache) {
		c.logger = l
	}
}

// NewClientCache creates the cache and, if cfg carries a shared token, the
// shared client.
func NewClientCache(cfg *config.Config, opts ...CacheOption) *ClientCache {
	c := &ClientCache{
		defaultBaseURL: cfg.URL,
		logger:         zap.NewNop().Sugar(),
		clients:        make(map[auth.Identity]*Client),
	}
	timeout := cfg.RequestTimeout()
	c.factory = func(identity auth.Identity, endpoint, token string) *Client {
		return NewClient(identity, endpoint, token, timeout, nil)
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.HasSharedToken() {
		id := auth.SharedIdentity(cfg.URL)
		c.shared = c.factory(id, id.Endpoint, cfg.SharedAccessToken)
		c.logger.Debugw("created shared gitlab client", "identity", id.String())
	}
	return c
}

// Shared returns the shared client, if one is configured.
func (c *ClientCache) Shared() (*Client, bool) {
	return c.shared, c.shared != nil
}

// GetOrCreate returns the client for cred's identity, creating it on first
// use. Concurrent first uses of one identity observe the same client.
func (c *ClientCache) GetOrCreate(cred auth.Credential) *Client {
	id := auth.IdentityOf(cred, c.defaultBaseURL)

	c.mu.RLock()
	existing, ok := c.clients[id]
	c.mu.RUnlock()
	if ok {
		return existing
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have inserted it while we waited for the write lock.
	if existing, ok := c.clients[id]; ok {
		return existing
	}

	client := c.factory(id, id.Endpoint, cred.Token)
	c.clients[id] = client
	c.logger.Debugw("created user gitlab client", "identity", id.String(), "cached", len(c.clients))
	return client
}

// Len returns the number of user-bound clients.
func (c *ClientCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.clients)
}
