package validator

import (
	"testing"

	domainerrors "forum/internal/domain/errors"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginBody struct {
	IDToken string `json:"idToken" validate:"required"`
	Code    string `json:"code,omitempty" validate:"omitempty,max=8"`
}

func TestRequestValidator(t *testing.T) {
	v := New()

	require.NoError(t, v.Validate(&loginBody{IDToken: "t"}))

	err := v.Validate(&loginBody{Code: "far-too-long"})
	require.ErrorIs(t, err, domainerrors.ErrValidationFailed)

	var appErr domainerrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "idToken: required, code: max", appErr.Details())
}
