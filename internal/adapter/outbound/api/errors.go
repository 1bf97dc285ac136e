package api

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrUnauthorized is returned when the server rejects the bearer
	// token or the supplied credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrServerUnreachable is returned when the platform server cannot
	// be contacted at all.
	ErrServerUnreachable = errors.New("server unreachable")
)

// Error codes the server reports on authentication endpoints.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidTwoFactor   = "invalid_two_factor_code"
	CodeTwoFactorRequired  = "two_factor_required"
	CodeAccountLocked      = "account_locked"
	CodeTokenExpired       = "token_expired"
)

// APIError is returned when the server answers with a non-2xx status.
// It carries the server's machine-readable code and message unchanged so
// callers can surface them to the user.
type APIError struct {
	// Status is the HTTP status code.
	Status int
	// Code is the machine-readable error code from the response body.
	Code string
	// Message is the human-readable error message from the response body.
	Message string
}

// Error returns a human-readable description of the server error.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server returned %d [%s]: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrUnauthorized) for 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == 401
}

// ServerUnreachableError is returned when the request never produced an
// HTTP response (DNS failure, connection refused, TLS handshake, timeout).
type ServerUnreachableError struct {
	// Cause is the underlying transport error.
	Cause error
}

// Error returns a human-readable description of the transport failure.
func (e *ServerUnreachableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("server unreachable: %v", e.Cause)
	}
	return "server unreachable"
}

// Unwrap returns the underlying error cause.
func (e *ServerUnreachableError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrServerUnreachable).
func (e *ServerUnreachableError) Is(target error) bool {
	return target == ErrServerUnreachable
}
