package impl

import (
	"context"
	"time"

	"forum/internal/domain/entity"
	"forum/internal/domain/repository"
	"forum/internal/domain/service"
	"forum/internal/usecase"

	"github.com/pkg/errors"
)

// sessionIssuer mints token pairs and records the refresh token before handing them out.
type sessionIssuer struct {
	tokens       service.TokenService
	refreshRepo  repository.RefreshTokenRepository
	cookies      *cookiePolicy
	storeTimeout time.Duration
}

// Issue starts a session for account. Any earlier refresh token of the account stops working.
func (iss *sessionIssuer) Issue(ctx context.Context, account *entity.Account) (*usecase.SessionOutput, error) {
	pair, err := iss.mint(account)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := withStoreTimeout(ctx, iss.storeTimeout)
	defer cancel()

	record := &entity.RefreshToken{
		AccountID: account.ID,
		Token:     pair.RefreshToken,
		ExpiresAt: pair.RefreshExpiresAt,
	}
	if err := iss.refreshRepo.Upsert(storeCtx, record); err != nil {
		return nil, errors.Wrap(err, "failed to store refresh token")
	}

	return iss.output(account, pair), nil
}

// mint signs a new pair without touching the store.
func (iss *sessionIssuer) mint(account *entity.Account) (*usecase.TokenPair, error) {
	subject := &service.TokenSubject{
		AccountID: account.ID,
		Email:     account.Email,
		Name:      account.Name,
		Roles:     account.Roles().ToStrings(),
	}

	access, err := iss.tokens.Issue(subject, service.TokenKindAccess, iss.tokens.AccessTTL())
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue access token")
	}

	refresh, err := iss.tokens.Issue(subject, service.TokenKindRefresh, iss.tokens.RefreshTTL())
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue refresh token")
	}

	return &usecase.TokenPair{
		AccessToken:      access.Value,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refresh.Value,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

func (iss *sessionIssuer) output(account *entity.Account, pair *usecase.TokenPair) *usecase.SessionOutput {
	return &usecase.SessionOutput{
		Tokens:  *pair,
		Account: account,
		Cookies: iss.cookies.sessionCookies(pair, iss.tokens.AccessTTL(), iss.tokens.RefreshTTL()),
	}
}

// withStoreTimeout bounds a single store call. A zero timeout leaves ctx as is.
func withStoreTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}
