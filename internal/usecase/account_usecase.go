package usecase

import (
	"context"

	"forum/internal/domain/entity"

	"github.com/google/uuid"
)

// AccountUsecase defines read access to member profiles.
type AccountUsecase interface {
	GetAccount(ctx context.Context, accountID uuid.UUID) (*entity.Account, error)
}
