package postgres

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsUniqueConstraintViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm translated", err: errors.Wrap(gorm.ErrDuplicatedKey, "create"), want: true},
		{name: "postgres", err: errors.New(`ERROR: duplicate key value violates unique constraint "idx_accounts_email" (SQLSTATE 23505)`), want: true},
		{name: "sqlite", err: errors.New("constraint failed: UNIQUE constraint failed: accounts.email (2067)"), want: true},
		{name: "other", err: errors.New("connection reset by peer"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueConstraintViolation(tt.err))
		})
	}
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, isTimeout(errors.Wrap(context.DeadlineExceeded, "query")))
	assert.False(t, isTimeout(errors.New("syntax error")))
}
