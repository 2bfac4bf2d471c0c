package impl

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "forum/internal/delivery/context"
	"forum/internal/domain/entity"
	domainerrors "forum/internal/domain/errors"
	"forum/internal/domain/repository"
	"forum/internal/domain/service"
	"forum/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// reissueCoordinator validates a presented refresh token and rotates it.
// Checks run in a fixed order and the first failure wins:
// missing, invalid signature, unknown, subject mismatch, expired, account gone.
type reissueCoordinator struct {
	tokens       service.TokenService
	refreshRepo  repository.RefreshTokenRepository
	accountRepo  repository.AccountRepository
	issuer       *sessionIssuer
	logger       *slog.Logger
	now          func() time.Time
	storeTimeout time.Duration
}

func (rc *reissueCoordinator) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, rc.logger)
}

// Reissue returns a new pair for a live, current refresh token.
func (rc *reissueCoordinator) Reissue(ctx context.Context, token string) (*usecase.SessionOutput, error) {
	if token == "" {
		return nil, rc.reject(ctx, domainerrors.ErrMissingToken, uuid.Nil)
	}

	claims, jwtExpired, err := rc.decode(token)
	if err != nil {
		return nil, rc.reject(ctx, domainerrors.ErrInvalidSignature, uuid.Nil)
	}

	record, storeExpired, err := rc.lookup(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil, rc.reject(ctx, domainerrors.ErrUnknownToken, claims.Subject)
		}

		return nil, rc.fail(ctx, err, claims.Subject)
	}

	if claims.Subject != record.AccountID {
		// The record belongs to someone else; leave it alone.
		return nil, rc.reject(ctx, domainerrors.ErrSubjectMismatch, claims.Subject)
	}

	if jwtExpired || storeExpired || record.IsExpired(rc.now()) {
		// A store-side purge already removed the record.
		if !storeExpired {
			if err := rc.deleteRecord(ctx, record.AccountID, token); err != nil {
				return nil, rc.fail(ctx, err, record.AccountID)
			}
		}

		return nil, rc.reject(ctx, domainerrors.ErrTokenExpired, record.AccountID)
	}

	account, err := rc.loadAccount(ctx, record.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			if err := rc.deleteRecord(ctx, record.AccountID, token); err != nil {
				return nil, rc.fail(ctx, err, record.AccountID)
			}

			return nil, rc.reject(ctx, domainerrors.ErrAccountNotFound, record.AccountID)
		}

		return nil, rc.fail(ctx, err, record.AccountID)
	}

	return rc.rotate(ctx, account, token)
}

// decode verifies the token. An expired but authentic refresh token still yields its claims.
func (rc *reissueCoordinator) decode(token string) (*service.Claims, bool, error) {
	claims, err := rc.tokens.Decode(token)
	expired := false
	if errors.Is(err, service.ErrTokenExpired) {
		expired = true
		claims, err = rc.tokens.DecodeIgnoringExpiry(token)
	}
	if err != nil {
		return nil, false, err
	}
	if claims.Kind != service.TokenKindRefresh {
		return nil, false, errors.Wrapf(service.ErrTokenMalformed, "expected a refresh token, got %s", claims.Kind)
	}

	return claims, expired, nil
}

// lookup finds the stored record. The store may purge an expired record and still return it.
func (rc *reissueCoordinator) lookup(ctx context.Context, token string) (*entity.RefreshToken, bool, error) {
	storeCtx, cancel := withStoreTimeout(ctx, rc.storeTimeout)
	defer cancel()

	record, err := rc.refreshRepo.FindByToken(storeCtx, token)
	if errors.Is(err, repository.ErrRefreshTokenExpired) && record != nil {
		return record, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	return record, false, nil
}

func (rc *reissueCoordinator) loadAccount(ctx context.Context, accountID uuid.UUID) (*entity.Account, error) {
	storeCtx, cancel := withStoreTimeout(ctx, rc.storeTimeout)
	defer cancel()

	return rc.accountRepo.FindByID(storeCtx, accountID)
}

// deleteRecord removes the presented token only while it is still the account's current one,
// so a login that replaced it in the meantime keeps its session.
func (rc *reissueCoordinator) deleteRecord(ctx context.Context, accountID uuid.UUID, token string) error {
	storeCtx, cancel := withStoreTimeout(ctx, rc.storeTimeout)
	defer cancel()

	return rc.refreshRepo.DeleteByToken(storeCtx, accountID, token)
}

// rotate mints a new pair and swaps it in only if the old token is still current.
func (rc *reissueCoordinator) rotate(ctx context.Context, account *entity.Account, oldToken string) (*usecase.SessionOutput, error) {
	pair, err := rc.issuer.mint(account)
	if err != nil {
		return nil, rc.fail(ctx, err, account.ID)
	}

	storeCtx, cancel := withStoreTimeout(ctx, rc.storeTimeout)
	defer cancel()

	next := &entity.RefreshToken{
		AccountID: account.ID,
		Token:     pair.RefreshToken,
		ExpiresAt: pair.RefreshExpiresAt,
	}
	if err := rc.refreshRepo.Rotate(storeCtx, oldToken, next); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			// A concurrent reissue or login already replaced the token.
			return nil, rc.reject(ctx, domainerrors.ErrUnknownToken, account.ID)
		}

		return nil, rc.fail(ctx, err, account.ID)
	}

	rc.log(ctx).Debug("Refresh token rotated", slog.Any("account_id", account.ID))

	return rc.issuer.output(account, pair), nil
}

// reject logs the audit line for an authentication failure and returns it.
func (rc *reissueCoordinator) reject(ctx context.Context, authErr *domainerrors.AuthError, accountID uuid.UUID) error {
	attrs := []any{slog.String("reason", string(authErr.Kind()))}
	if accountID != uuid.Nil {
		attrs = append(attrs, slog.Any("account_id", accountID))
	}
	rc.log(ctx).Warn("Refresh token rejected", attrs...)

	return errors.WithStack(authErr)
}

func (rc *reissueCoordinator) fail(ctx context.Context, err error, accountID uuid.UUID) error {
	rc.log(ctx).Error("Reissue failed", slog.Any("account_id", accountID), slog.Any("error", err))

	return errors.Wrap(err, "failed to reissue tokens")
}
