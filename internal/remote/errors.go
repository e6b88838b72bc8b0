package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("resource not found")
)

// AuthError reports an authentication failure: a missing or expired
// token, a rejected code exchange or refresh, or an unauthorized
// response from the store. The orchestrator short-circuits the session
// on any AuthError and schedules a re-authentication attempt.
type AuthError struct {
	Op  string // "exchange", "refresh", "request"
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed (%s): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("authentication failed (%s)", e.Op)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is authentication-class anywhere in
// its chain.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// ValidationError reports content rejected by the upload guard before
// any network call was made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid note content: " + e.Reason
}

// IsValidationError reports whether err is a pre-network content
// rejection.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// APIError reports a non-2xx response from the remote store.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote store returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("remote store returned HTTP %d: %s", e.StatusCode, e.Message)
}

// ProtocolError reports a response the client cannot proceed from, such
// as an upload metadata response carrying neither a session URL nor an
// object id.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Message
}
