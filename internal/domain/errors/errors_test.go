package errors

import (
	"net/http"
	"testing"

	"forum/internal/errors"

	"github.com/stretchr/testify/assert"
)

func TestAuthErrors_CollapseToSingleUnauthorized(t *testing.T) {
	authErrs := []*AuthError{
		ErrMissingToken,
		ErrInvalidSignature,
		ErrUnknownToken,
		ErrSubjectMismatch,
		ErrTokenExpired,
		ErrAccountNotFound,
	}

	for _, authErr := range authErrs {
		t.Run(string(authErr.Kind()), func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, authErr.HTTPCode())
			assert.Equal(t, unauthorizedCode, authErr.ErrorCode())
			assert.Equal(t, unauthorizedMessage, authErr.Message())
			assert.Empty(t, authErr.Details())
		})
	}
}

func TestAuthFailureOf_ThroughWrapping(t *testing.T) {
	err := errors.Wrap(ErrSubjectMismatch, "reissue")

	kind, ok := AuthFailureOf(err)
	assert.True(t, ok)
	assert.Equal(t, AuthFailureSubjectMismatch, kind)
	assert.True(t, errors.Is(err, ErrSubjectMismatch))
	assert.False(t, errors.Is(err, ErrUnknownToken))

	_, ok = AuthFailureOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestDatabaseExecuteError_IsStoreUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	err := errors.Wrap(NewStoreUnavailableError(cause), "upsert refresh token")

	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.True(t, errors.Is(err, cause))

	var appErr AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusServiceUnavailable, appErr.HTTPCode())
	assert.Equal(t, "STORE_UNAVAILABLE", appErr.ErrorCode())
	assert.Contains(t, err.Error(), "connection refused")
}

func TestBaseError_DetailsAndWrapping(t *testing.T) {
	detailed := ErrValidationFailed.WithDetails("idToken: required")

	assert.True(t, errors.Is(detailed, ErrValidationFailed))
	assert.False(t, errors.Is(detailed, ErrOAuthTokenInvalid))
	assert.Equal(t, "idToken: required", detailed.Details())
	assert.Empty(t, ErrValidationFailed.Details(), "the shared value is never mutated")

	wrapped := ErrOAuthTokenInvalid.WrapMessage("audience mismatch")
	assert.True(t, errors.Is(wrapped, ErrOAuthTokenInvalid))
	assert.Contains(t, wrapped.Error(), "audience mismatch")

	var appErr AppError
	assert.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, http.StatusUnauthorized, appErr.HTTPCode())
}
