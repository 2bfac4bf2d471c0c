package repository

import (
	"context"

	"forum/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain-specific errors for account persistence.
var (
	// ErrAccountNotFound is returned when no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountAlreadyExists is returned when a unique email, handle or provider link is already taken.
	ErrAccountAlreadyExists = errors.New("account already exists")
)

// AccountRepository defines the persistence operations for accounts and their provider links.
type AccountRepository interface {
	// FindByID retrieves a single account by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error)

	// FindByEmail retrieves a single account by its email address.
	FindByEmail(ctx context.Context, email string) (*entity.Account, error)

	// FindByProvider retrieves the account linked to the given provider user ID.
	FindByProvider(ctx context.Context, provider entity.ProviderType, providerID string) (*entity.Account, error)

	// ExistsByHandle reports whether a display handle is already taken.
	ExistsByHandle(ctx context.Context, handle string) (bool, error)

	// Create persists a new account together with its provider links.
	Create(ctx context.Context, account *entity.Account) error

	// Update saves profile fields and upserts provider links.
	Update(ctx context.Context, account *entity.Account) error
}
