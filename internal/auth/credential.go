// Package auth decides which GitLab credential authorizes a tool call.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// OpKind is the kind of GitLab operation a tool performs.
type OpKind int

const (
	// Read operations only query data.
	Read OpKind = iota
	// Write operations run mutations.
	Write
)

func (k OpKind) String() string {
	switch k {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Mode is the process-wide authentication policy.
type Mode string

const (
	// ModeShared authorizes reads with the shared token only.
	ModeShared Mode = "shared"
	// ModePerUser requires caller-supplied credentials for every operation.
	ModePerUser Mode = "per-user"
	// ModeHybrid uses caller credentials when present, the shared token otherwise.
	ModeHybrid Mode = "hybrid"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeShared, ModePerUser, ModeHybrid:
		return m, nil
	default:
		return "", fmt.Errorf("unknown auth mode %q: must be one of shared, per-user, hybrid", s)
	}
}

// Credential is a caller-supplied GitLab token with an optional instance URL.
// It lives for one call and must never be logged or persisted.
type Credential struct {
	Token    string
	Endpoint string // GitLab base URL override, e.g. https://gitlab.example.com
}

// String redacts the token.
func (c Credential) String() string {
	if c.Endpoint == "" {
		return "Credential{token: ***}"
	}
	return fmt.Sprintf("Credential{endpoint: %s, token: ***}", c.Endpoint)
}

// GoString keeps %#v from printing the token.
func (c Credential) GoString() string {
	return c.String()
}

// Identity is the comparable cache key of a credential: the effective GraphQL
// endpoint plus a digest of the token. The raw token is not retained.
type Identity struct {
	Endpoint    string
	TokenDigest string
	Shared      bool
}

// IdentityOf derives the identity of cred, resolving its endpoint against
// defaultBaseURL when the credential carries no override.
func IdentityOf(cred Credential, defaultBaseURL string) Identity {
	return Identity{
		Endpoint:    cred.EffectiveEndpoint(defaultBaseURL),
		TokenDigest: digest(cred.Token),
	}
}

// SharedIdentity is the identity of the process-wide shared credential.
func SharedIdentity(baseURL string) Identity {
	return Identity{Endpoint: GraphQLEndpoint(baseURL), Shared: true}
}

// String is safe to log.
func (id Identity) String() string {
	if id.Shared {
		return id.Endpoint + "#shared"
	}
	short := id.TokenDigest
	if len(short) > 8 {
		short = short[:8]
	}
	return id.Endpoint + "#" + short
}

// EffectiveEndpoint returns the GraphQL URL this credential talks to.
func (c Credential) EffectiveEndpoint(defaultBaseURL string) string {
	if c.Endpoint != "" {
		return GraphQLEndpoint(c.Endpoint)
	}
	return GraphQLEndpoint(defaultBaseURL)
}

// GraphQLEndpoint maps a GitLab base URL to its GraphQL API URL. URLs that
// already point at /api/graphql are returned normalized.
func GraphQLEndpoint(baseURL string) string {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if strings.HasSuffix(u, "/api/graphql") {
		return u
	}
	return u + "/api/graphql"
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
