package impl

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "forum/internal/delivery/context"
	"forum/internal/domain/repository"
	"forum/internal/domain/service"
	"forum/internal/usecase"

	"github.com/google/uuid"
)

// sessionTerminator ends a session on a best-effort basis. It never reports failure.
type sessionTerminator struct {
	tokens       service.TokenService
	refreshRepo  repository.RefreshTokenRepository
	cookies      *cookiePolicy
	logger       *slog.Logger
	storeTimeout time.Duration
}

func (st *sessionTerminator) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, st.logger)
}

// Terminate deletes the caller's refresh record if the caller can be identified.
func (st *sessionTerminator) Terminate(ctx context.Context, input *usecase.LogoutInput) *usecase.LogoutOutput {
	output := &usecase.LogoutOutput{Cookies: st.cookies.clearCookies()}
	if input == nil {
		return output
	}

	accountID := st.resolveAccountID(input)
	if accountID == uuid.Nil {
		st.log(ctx).Debug("Logout without identifiable account")

		return output
	}
	output.AccountID = accountID

	storeCtx, cancel := withStoreTimeout(ctx, st.storeTimeout)
	defer cancel()

	if err := st.refreshRepo.DeleteByAccountID(storeCtx, accountID); err != nil {
		st.log(ctx).Error("Failed to delete refresh token on logout", slog.Any("account_id", accountID), slog.Any("error", err))

		return output
	}
	st.log(ctx).Info("Logged out", slog.Any("account_id", accountID))

	return output
}

// resolveAccountID tries the authenticated principal, then the access token, then the refresh token.
// Expired tokens still count as long as their signature holds.
func (st *sessionTerminator) resolveAccountID(input *usecase.LogoutInput) uuid.UUID {
	if input.Principal != nil && input.Principal.AccountID != uuid.Nil {
		return input.Principal.AccountID
	}

	for _, token := range []string{input.AccessToken, input.RefreshToken} {
		if token == "" {
			continue
		}
		if claims, err := st.tokens.Decode(token); err == nil {
			return claims.Subject
		}
		if claims, err := st.tokens.DecodeIgnoringExpiry(token); err == nil {
			return claims.Subject
		}
	}

	return uuid.Nil
}
