package gitlab

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/gitlab-graphql-mcp/internal/auth"
	"github.com/kagent-dev/gitlab-graphql-mcp/pkg/types"
)

func TestSchemaCache_EnsureIntrospected(t *testing.T) {
	t.Parallel()

	t.Run("introspects once per identity", func(t *testing.T) {
		t.Parallel()
		gl := newFakeGitLab(t, nil)
		router, _ := newTestRouter(t, gl.URL, "hybrid", "")
		schema := NewSchemaCache(router, nil)
		cred := &auth.Credential{Token: "abc"}

		var first *Snapshot
		for i := 0; i < 5; i++ {
			snap, err := schema.EnsureIntrospected(context.Background(), cred)
			require.NoError(t, err)
			if first == nil {
				first = snap
			}
			assert.Same(t, first, snap)
		}

		assert.Equal(t, 1, gl.Calls())
		if diff := cmp.Diff([]string{"currentUser", "issues", "project"}, first.Queries); diff != "" {
			t.Errorf("queries mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"createIssue", "mergeRequestCreate"}, first.Mutations); diff != "" {
			t.Errorf("mutations mismatch (-want +got):\n%s", diff)
		}
		assert.Len(t, first.Types, 3)
	})

	t.Run("failures are not cached", func(t *testing.T) {
		t.Parallel()
		var fail atomic.Bool
		fail.Store(true)
		gl := newFakeGitLab(t, func(w http.ResponseWriter, _ types.Request) {
			if fail.Load() {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
			writeData(w, testSchemaData)
		})
		router, _ := newTestRouter(t, gl.URL, "hybrid", "shared-token")
		schema := NewSchemaCache(router, nil)

		for i := 0; i < 3; i++ {
			_, err := schema.EnsureIntrospected(context.Background(), nil)
			assert.ErrorIs(t, err, ErrIntrospectionFailed)
			assert.ErrorIs(t, err, ErrRequestFailed)
		}
		assert.Equal(t, 3, gl.Calls())
		assert.Equal(t, 0, schema.Len())

		fail.Store(false)
		_, err := schema.EnsureIntrospected(context.Background(), nil)
		require.NoError(t, err)
		_, err = schema.EnsureIntrospected(context.Background(), nil)
		require.NoError(t, err)

		assert.Equal(t, 4, gl.Calls())
		assert.Equal(t, 1, schema.Len())
	})

	t.Run("response without schema is an introspection error", func(t *testing.T) {
		t.Parallel()
		gl := newFakeGitLab(t, func(w http.ResponseWriter, _ types.Request) {
			writeData(w, `{"something":"else"}`)
		})
		router, _ := newTestRouter(t, gl.URL, "hybrid", "shared-token")
		schema := NewSchemaCache(router, nil)

		_, err := schema.EnsureIntrospected(context.Background(), nil)
		assert.ErrorIs(t, err, ErrIntrospectionFailed)
	})

	t.Run("authorization errors pass through", func(t *testing.T) {
		t.Parallel()
		gl := newFakeGitLab(t, nil)
		router, _ := newTestRouter(t, gl.URL, "per-user", "")
		schema := NewSchemaCache(router, nil)

		_, err := schema.EnsureIntrospected(context.Background(), nil)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.NotErrorIs(t, err, ErrIntrospectionFailed)
		assert.Equal(t, 0, gl.Calls())
	})

	t.Run("snapshots are keyed by identity", func(t *testing.T) {
		t.Parallel()
		gl := newFakeGitLab(t, nil)
		router, _ := newTestRouter(t, gl.URL, "hybrid", "shared-token")
		schema := NewSchemaCache(router, nil)

		_, err := schema.EnsureIntrospected(context.Background(), nil)
		require.NoError(t, err)
		_, err = schema.EnsureIntrospected(context.Background(), &auth.Credential{Token: "alice"})
		require.NoError(t, err)
		_, err = schema.EnsureIntrospected(context.Background(), &auth.Credential{Token: "bob"})
		require.NoError(t, err)
		_, err = schema.EnsureIntrospected(context.Background(), &auth.Credential{Token: "alice"})
		require.NoError(t, err)

		assert.Equal(t, 3, gl.Calls())
		assert.Equal(t, 3, schema.Len())
		assert.ElementsMatch(t, []string{"shared-token", "alice", "bob"}, gl.Tokens())
	})

	t.Run("concurrent first calls share one request", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		gl := newFakeGitLab(t, func(w http.ResponseWriter, _ types.Request) {
			<-release
			writeData(w, testSchemaData)
		})
		router, _ := newTestRouter(t, gl.URL, "hybrid", "")
		schema := NewSchemaCache(router, nil)
		cred := &auth.Credential{Token: "abc"}

		const callers = 20
		snaps := make([]*Snapshot, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				snap, err := schema.EnsureIntrospected(context.Background(), cred)
				assert.NoError(t, err)
				snaps[idx] = snap
			}(i)
		}
		close(release)
		wg.Wait()

		assert.Equal(t, 1, gl.Calls())
		for i := 1; i < callers; i++ {
			assert.Same(t, snaps[0], snaps[i])
		}
	})
}

func TestSchemaCache_Lists(t *testing.T) {
	t.Parallel()

	gl := newFakeGitLab(t, nil)
	router, _ := newTestRouter(t, gl.URL, "hybrid", "shared-token")
	schema := NewSchemaCache(router, nil)

	queries, err := schema.ListQueries(nil)
	require.NoError(t, err)
	assert.Empty(t, queries)
	mutations, err := schema.ListMutations(nil)
	require.NoError(t, err)
	assert.Empty(t, mutations)

	_, err = schema.EnsureIntrospected(context.Background(), nil)
	require.NoError(t, err)

	queries, err = schema.ListQueries(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"currentUser", "issues", "project"}, queries)

	mutations, err = schema.ListMutations(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"createIssue", "mergeRequestCreate"}, mutations)

	// A different identity has not been introspected yet.
	other, err := schema.ListQueries(&auth.Credential{Token: "alice"})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSnapshot_Describe(t *testing.T) {
	t.Parallel()

	snap := newSnapshot("https://gitlab.com/api/graphql", []byte(testSchemaData))

	desc, ok := snap.Describe("project")
	require.True(t, ok)
	assert.Equal(t, "Find a project.", desc)

	desc, ok = snap.Describe("createIssue")
	require.True(t, ok)
	assert.Equal(t, "Creates an issue.", desc)

	_, ok = snap.Describe("doesNotExist")
	assert.False(t, ok)

	summary := snap.Summary()
	assert.Equal(t, 3, summary.QueryCount)
	assert.Equal(t, 2, summary.MutationCount)
	assert.Equal(t, 3, summary.TypeCount)
}

func TestSchemaCache_CallerCancellationDoesNotLeak(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	gl := newFakeGitLab(t, func(w http.ResponseWriter, _ types.Request) {
		started <- struct{}{}
		<-release
		writeData(w, testSchemaData)
	})
	router, _ := newTestRouter(t, gl.URL, "hybrid", "shared-token")
	schema := NewSchemaCache(router, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := schema.EnsureIntrospected(ctxA, nil)
		errA <- err
	}()
	<-started

	type result struct {
		snap *Snapshot
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		snap, err := schema.EnsureIntrospected(context.Background(), nil)
		resB <- result{snap, err}
	}()
	// Let B join the in-flight introspection before A gives up.
	time.Sleep(50 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	require.NotNil(t, b.snap)
	assert.Equal(t, []string{"currentUser", "issues", "project"}, b.snap.Queries)

	assert.Equal(t, 1, gl.Calls())
	assert.Equal(t, 1, schema.Len())
}
