// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"

	"forum/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain-specific errors for refresh token persistence.
var (
	// ErrRefreshTokenNotFound is returned when no live record matches.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	// ErrRefreshTokenExpired is returned by a read that found an expired record and purged it.
	ErrRefreshTokenExpired = errors.New("refresh token has expired")
)

// RefreshTokenRepository stores at most one refresh token record per account.
// Implementations must be safe for concurrent use, and writes for one account
// must be linearizable without serializing unrelated accounts.
type RefreshTokenRepository interface {
	// Upsert replaces the account's record in place, or creates it when absent.
	Upsert(ctx context.Context, token *entity.RefreshToken) error

	// Rotate replaces the account's record only while it still holds oldToken.
	// It returns ErrRefreshTokenNotFound when the stored value has moved on.
	Rotate(ctx context.Context, oldToken string, next *entity.RefreshToken) error

	// FindByToken retrieves the record holding the given raw token value.
	// An expired record is deleted and returned together with ErrRefreshTokenExpired.
	FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error)

	// FindByAccountID retrieves the account's record with the same lazy purge as FindByToken.
	FindByAccountID(ctx context.Context, accountID uuid.UUID) (*entity.RefreshToken, error)

	// DeleteByAccountID removes the account's record. Deleting a missing record is not an error.
	DeleteByAccountID(ctx context.Context, accountID uuid.UUID) error

	// DeleteByToken removes the account's record only while it still holds token.
	// A record that has moved on, or a missing one, is left alone without error.
	DeleteByToken(ctx context.Context, accountID uuid.UUID, token string) error

	// DeleteExpired removes every expired record and reports how many were removed.
	DeleteExpired(ctx context.Context) (int64, error)
}
