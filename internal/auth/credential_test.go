package auth

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBase = "https://gitlab.com"

func TestIdentityOf(t *testing.T) {
	t.Parallel()

	t.Run("same token without override is equal", func(t *testing.T) {
		t.Parallel()
		a := IdentityOf(Credential{Token: "T"}, defaultBase)
		b := IdentityOf(Credential{Token: "T"}, defaultBase)
		assert.Equal(t, a, b)
	})

	t.Run("explicit default endpoint matches implicit one", func(t *testing.T) {
		t.Parallel()
		a := IdentityOf(Credential{Token: "T"}, defaultBase)
		b := IdentityOf(Credential{Token: "T", Endpoint: "https://gitlab.com/"}, defaultBase)
		assert.Equal(t, a, b)
	})

	t.Run("different tokens differ", func(t *testing.T) {
		t.Parallel()
		a := IdentityOf(Credential{Token: "T1"}, defaultBase)
		b := IdentityOf(Credential{Token: "T2"}, defaultBase)
		assert.NotEqual(t, a, b)
	})

	t.Run("different endpoints differ", func(t *testing.T) {
		t.Parallel()
		a := IdentityOf(Credential{Token: "T"}, defaultBase)
		b := IdentityOf(Credential{Token: "T", Endpoint: "https://gitlab.example.com"}, defaultBase)
		assert.NotEqual(t, a, b)
		assert.Equal(t, "https://gitlab.example.com/api/graphql", b.Endpoint)
	})

	t.Run("shared identity never equals a user identity", func(t *testing.T) {
		t.Parallel()
		assert.NotEqual(t, SharedIdentity(defaultBase), IdentityOf(Credential{Token: ""}, defaultBase))
	})
}

func TestCredentialNeverPrintsToken(t *testing.T) {
	t.Parallel()

	cred := Credential{Token: "glpat-secret-value", Endpoint: "https://gitlab.example.com"}
	for _, s := range []string{
		cred.String(),
		fmt.Sprintf("%v", cred),
		fmt.Sprintf("%+v", cred),
		fmt.Sprintf("%#v", cred),
		IdentityOf(cred, defaultBase).String(),
	} {
		assert.NotContains(t, s, "glpat-secret-value")
	}
}

func TestGraphQLEndpoint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://gitlab.com/api/graphql", GraphQLEndpoint("https://gitlab.com"))
	assert.Equal(t, "https://gitlab.com/api/graphql", GraphQLEndpoint("https://gitlab.com/"))
	assert.Equal(t, "https://gitlab.com/api/graphql", GraphQLEndpoint("https://gitlab.com/api/graphql/"))
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Mode{"shared": ModeShared, "per-user": ModePerUser, " Hybrid ": ModeHybrid} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseMode("anonymous")
	assert.Error(t, err)
}
