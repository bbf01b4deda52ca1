package gitlab

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is.
var (
	// ErrUnauthorized matches every AuthorizationError.
	ErrUnauthorized = errors.New("authorization failed")

	// ErrRequestFailed matches every RequestError.
	ErrRequestFailed = errors.New("gitlab request failed")

	// ErrIntrospectionFailed matches every IntrospectionError.
	ErrIntrospectionFailed = errors.New("schema introspection failed")
)

// AuthorizationError means no eligible credential exists for the call. The
// caller can recover by supplying user credentials.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return e.Reason }

// Is reports ErrUnauthorized as a match.
func (e *AuthorizationError) Is(target error) bool { return target == ErrUnauthorized }

// RequestError wraps a transport, timeout or GitLab API failure of an
// authorized exchange. It never includes the credential.
type RequestError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gitlab request to %s failed with status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gitlab request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Is reports ErrRequestFailed as a match.
func (e *RequestError) Is(target error) bool { return target == ErrRequestFailed }

// IntrospectionError reports a failed introspection. Nothing is cached, so the
// call can be retried.
type IntrospectionError struct {
	Endpoint string
	Err      error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("schema introspection of %s failed: %v", e.Endpoint, e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

// Is reports ErrIntrospectionFailed as a match.
func (e *IntrospectionError) Is(target error) bool { return target == ErrIntrospectionFailed }
