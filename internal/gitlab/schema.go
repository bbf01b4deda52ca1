package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kagent-dev/gitlab-graphql-mcp/internal/auth"
	"github.com/kagent-dev/gitlab-graphql-mcp/pkg/types"
)

// IntrospectionQuery fetches names and descriptions of the root fields and
// types only.
const IntrospectionQuery = `query IntrospectSchema {
  __schema {
    queryType { name fields { name description } }
    mutationType { name fields { name description } }
    types { name kind description }
  }
}`

// Snapshot is an introspected schema. Raw holds the untouched "data" object.
type Snapshot struct {
	Endpoint  string
	Raw       json.RawMessage
	Queries   []string
	Mutations []string
	Types     []string
	FetchedAt time.Time
}

func newSnapshot(endpoint string, raw json.RawMessage) *Snapshot {
	return &Snapshot{
		Endpoint:  endpoint,
		Raw:       raw,
		Queries:   names(raw, "__schema.queryType.fields.#.name"),
		Mutations: names(raw, "__schema.mutationType.fields.#.name"),
		Types:     names(raw, "__schema.types.#.name"),
		FetchedAt: time.Now(),
	}
}

// Summary renders the snapshot for tool output.
func (s *Snapshot) Summary() types.SchemaSummary {
	return types.SchemaSummary{
		Endpoint:      s.Endpoint,
		QueryCount:    len(s.Queries),
		MutationCount: len(s.Mutations),
		TypeCount:     len(s.Types),
		Queries:       s.Queries,
		Mutations:     s.Mutations,
	}
}

// Describe returns the description of a root query or mutation field.
func (s *Snapshot) Describe(field string) (string, bool) {
	for _, root := range []string{"queryType", "mutationType"} {
		res := gjson.GetBytes(s.Raw, "__schema."+root+".fields.#(name=="+escape(field)+").description")
		if res.Exists() {
			return res.String(), true
		}
	}
	return "", false
}

func names(raw json.RawMessage, path string) []string {
	out := []string{}
	for _, v := range gjson.GetBytes(raw, path).Array() {
		if n := v.String(); n != "" {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// escape quotes a value for use inside a gjson query.
func escape(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// SchemaCache memoizes one Snapshot per credential identity. Failed
// introspections are not cached.
type SchemaCache struct {
	router *Router
	logger *zap.SugaredLogger

	mu        sync.RWMutex
	snapshots map[auth.Identity]*Snapshot
	group     singleflight.Group
}

// NewSchemaCache creates an empty cache that introspects through router.
func NewSchemaCache(router *Router, logger *zap.SugaredLogger) *SchemaCache {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SchemaCache{
		router:    router,
		logger:    logger,
		snapshots: make(map[auth.Identity]*Snapshot),
	}
}

// EnsureIntrospected returns the snapshot for the identity that user (or the
// shared credential) resolves to, introspecting on first use. Concurrent
// first calls for one identity share a single request; a caller whose ctx
// ends stops waiting without aborting that request for the others.
func (s *SchemaCache) EnsureIntrospected(ctx context.Context, user *auth.Credential) (*Snapshot, error) {
	client, err := s.router.ResolveClient(auth.Read, user)
	if err != nil {
		return nil, err
	}
	id := client.Identity()

	if snap := s.get(id); snap != nil {
		return snap, nil
	}

	// The exchange outlives any single caller; each waiter still honors its
	// own ctx.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flightKey(id), func() (any, error) {
		if snap := s.get(id); snap != nil {
			return snap, nil
		}

		s.logger.Debugw("introspecting gitlab schema", "identity", id.String())
		resp, err := client.Do(flightCtx, types.Request{Query: IntrospectionQuery, OperationName: "IntrospectSchema"})
		if err != nil {
			return nil, &IntrospectionError{Endpoint: client.Endpoint(), Err: err}
		}
		if !gjson.GetBytes(resp.Data, "__schema").Exists() {
			return nil, &IntrospectionError{Endpoint: client.Endpoint(), Err: errors.New("response has no __schema")}
		}

		snap := newSnapshot(client.Endpoint(), resp.Data)
		s.mu.Lock()
		s.snapshots[id] = snap
		s.mu.Unlock()
		s.logger.Infow("cached gitlab schema", "identity", id.String(),
			"queries", len(snap.Queries), "mutations", len(snap.Mutations))
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// Snapshot returns the cached snapshot for user's identity, or nil if that
// identity has not been introspected yet.
func (s *SchemaCache) Snapshot(user *auth.Credential) (*Snapshot, error) {
	client, err := s.router.ResolveClient(auth.Read, user)
	if err != nil {
		return nil, err
	}
	return s.get(client.Identity()), nil
}

// ListQueries returns the root query fields known for user's identity. It is
// empty until EnsureIntrospected succeeds for that identity.
func (s *SchemaCache) ListQueries(user *auth.Credential) ([]string, error) {
	snap, err := s.Snapshot(user)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return []string{}, nil
	}
	return append([]string(nil), snap.Queries...), nil
}

// ListMutations returns the root mutation fields known for user's identity.
func (s *SchemaCache) ListMutations(user *auth.Credential) ([]string, error) {
	snap, err := s.Snapshot(user)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return []string{}, nil
	}
	return append([]string(nil), snap.Mutations...), nil
}

// Len returns the number of cached snapshots.
func (s *SchemaCache) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

func (s *SchemaCache) get(id auth.Identity) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots[id]
}

func flightKey(id auth.Identity) string {
	if id.Shared {
		return "shared\x00" + id.Endpoint
	}
	return id.TokenDigest + "\x00" + id.Endpoint
}
