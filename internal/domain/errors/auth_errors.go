package errors

import (
	"net/http"

	"forum/internal/errors"
)

// AuthFailureKind is the internal reason behind a 401. It is logged, never sent to clients.
type AuthFailureKind string

const (
	AuthFailureMissingToken     AuthFailureKind = "missing_token"
	AuthFailureInvalidSignature AuthFailureKind = "invalid_signature"
	AuthFailureUnknownToken     AuthFailureKind = "unknown_token"
	AuthFailureSubjectMismatch  AuthFailureKind = "subject_mismatch"
	AuthFailureExpired          AuthFailureKind = "expired"
	AuthFailureAccountNotFound  AuthFailureKind = "account_not_found"
)

const (
	unauthorizedCode    = "UNAUTHORIZED"
	unauthorizedMessage = "인증이 필요합니다"
)

// AuthError is an authentication failure. Every kind renders the same 401 body.
type AuthError struct {
	kind AuthFailureKind
}

// NewAuthError creates an AuthError of the given kind.
func NewAuthError(kind AuthFailureKind) *AuthError {
	return &AuthError{kind: kind}
}

// Kind returns the internal failure reason.
func (e *AuthError) Kind() AuthFailureKind {
	return e.kind
}

// Error implements the error interface
func (e *AuthError) Error() string {
	return "authentication failed: " + string(e.kind)
}

// HTTPCode returns the HTTP status code
func (e *AuthError) HTTPCode() int {
	return http.StatusUnauthorized
}

// ErrorCode returns the business error code
func (e *AuthError) ErrorCode() string {
	return unauthorizedCode
}

// Message returns the user-friendly error message
func (e *AuthError) Message() string {
	return unauthorizedMessage
}

// Details is always empty for authentication failures.
func (e *AuthError) Details() string {
	return ""
}

// Authentication failures
var (
	ErrMissingToken     = NewAuthError(AuthFailureMissingToken)
	ErrInvalidSignature = NewAuthError(AuthFailureInvalidSignature)
	ErrUnknownToken     = NewAuthError(AuthFailureUnknownToken)
	ErrSubjectMismatch  = NewAuthError(AuthFailureSubjectMismatch)
	ErrTokenExpired     = NewAuthError(AuthFailureExpired)
	ErrAccountNotFound  = NewAuthError(AuthFailureAccountNotFound)
)

// AuthFailureOf returns the failure kind carried by err, if any.
func AuthFailureOf(err error) (AuthFailureKind, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.kind, true
	}

	return "", false
}
