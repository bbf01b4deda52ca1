// Package types defines the GraphQL wire types exchanged with GitLab.
package types

import (
	"encoding/json"
	"strings"
)

// Request is a GraphQL document plus its variables. The router treats it as
// an opaque payload.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Response is the decoded GraphQL response envelope.
type Response struct {
	Data       json.RawMessage `json:"data,omitempty"`
	Errors     GraphQLErrors   `json:"errors,omitempty"`
	Extensions json.RawMessage `json:"extensions,omitempty"`
}

// GraphQLError is one entry of the "errors" array.
type GraphQLError struct {
	Message    string          `json:"message"`
	Path       []any           `json:"path,omitempty"`
	Locations  []ErrorLocation `json:"locations,omitempty"`
	Extensions map[string]any  `json:"extensions,omitempty"`
}

// ErrorLocation points into the request document.
type ErrorLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// GraphQLErrors is returned when GitLab answers with a non-empty "errors" array.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// SchemaSummary is the rendered view of an introspected schema.
type SchemaSummary struct {
	Endpoint      string   `json:"endpoint"`
	QueryCount    int      `json:"queryCount"`
	MutationCount int      `json:"mutationCount"`
	TypeCount     int      `json:"typeCount"`
	Queries       []string `json:"queries,omitempty"`
	Mutations     []string `json:"mutations,omitempty"`
}
