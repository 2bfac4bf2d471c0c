package impl

import (
	"context"
	"log/slog"

	deliverycontext "forum/internal/delivery/context"
	"forum/internal/domain/entity"
	domainerrors "forum/internal/domain/errors"
	"forum/internal/domain/repository"
	"forum/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// accountService implements the AccountUsecase interface.
type accountService struct {
	accountRepo repository.AccountRepository
	logger      *slog.Logger
}

// NewAccountService is the constructor for accountService.
func NewAccountService(accountRepo repository.AccountRepository, logger *slog.Logger) usecase.AccountUsecase {
	return &accountService{accountRepo: accountRepo, logger: logger}
}

// GetAccount returns the member profile of accountID.
func (srv *accountService) GetAccount(ctx context.Context, accountID uuid.UUID) (*entity.Account, error) {
	account, err := srv.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			deliverycontext.GetLoggerOrDefault(ctx, srv.logger).Warn("Account not found", slog.Any("account_id", accountID))

			return nil, errors.Wrap(domainerrors.ErrAccountProfileNotFound, err.Error())
		}

		return nil, errors.Wrap(err, "failed to load account")
	}

	return account, nil
}
