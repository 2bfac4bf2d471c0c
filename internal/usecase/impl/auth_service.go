// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"time"

	"forum/config"
	deliverycontext "forum/internal/delivery/context"
	"forum/internal/domain/entity"
	domainerrors "forum/internal/domain/errors"
	"forum/internal/domain/repository"
	"forum/internal/domain/service"
	"forum/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// authService implements the AuthUsecase interface by composing the session components.
type authService struct {
	tokens     service.TokenService
	providers  map[entity.ProviderType]service.OAuthAuthService
	linker     *identityLinker
	issuer     *sessionIssuer
	reissuer   *reissueCoordinator
	terminator *sessionTerminator
	cookies    *cookiePolicy
	logger     *slog.Logger
}

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager        repository.TransactionManager
	AccountRepo      repository.AccountRepository
	RefreshTokenRepo repository.RefreshTokenRepository
	TokenService     service.TokenService
	OAuthServices    []service.OAuthAuthService `group:"oauth"`
	Config           *config.Config
	Logger           *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all dependencies as interfaces.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	var storeTimeout time.Duration
	var cookieCfg *config.CookieConfig
	if params.Config != nil {
		if params.Config.RefreshStore != nil {
			storeTimeout = params.Config.RefreshStore.Timeout
		}
		cookieCfg = params.Config.Cookie
	}

	cookies := newCookiePolicy(cookieCfg)
	issuer := &sessionIssuer{
		tokens:       params.TokenService,
		refreshRepo:  params.RefreshTokenRepo,
		cookies:      cookies,
		storeTimeout: storeTimeout,
	}

	providers := make(map[entity.ProviderType]service.OAuthAuthService, len(params.OAuthServices))
	for _, provider := range params.OAuthServices {
		providers[provider.GetProvider()] = provider
	}

	return &authService{
		tokens:    params.TokenService,
		providers: providers,
		linker:    newIdentityLinker(params.TxManager, storeTimeout, params.Logger),
		issuer:    issuer,
		reissuer: &reissueCoordinator{
			tokens:       params.TokenService,
			refreshRepo:  params.RefreshTokenRepo,
			accountRepo:  params.AccountRepo,
			issuer:       issuer,
			logger:       params.Logger,
			now:          time.Now,
			storeTimeout: storeTimeout,
		},
		terminator: &sessionTerminator{
			tokens:       params.TokenService,
			refreshRepo:  params.RefreshTokenRepo,
			cookies:      cookies,
			logger:       params.Logger,
			storeTimeout: storeTimeout,
		},
		cookies: cookies,
		logger:  params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Login binds the identity to an account and issues a fresh session.
func (srv *authService) Login(ctx context.Context, input *usecase.LoginInput) (*usecase.SessionOutput, error) {
	if input == nil || input.Identity == nil {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("identity is required")
	}

	account, err := srv.linker.Resolve(ctx, input.Identity)
	if err != nil {
		srv.log(ctx).Warn("Login failed", slog.String("provider", input.Identity.Provider.String()), slog.Any("error", err))

		return nil, errors.Wrap(err, "login failed")
	}

	output, err := srv.issuer.Issue(ctx, account)
	if err != nil {
		srv.log(ctx).Error("Failed to issue session", slog.Any("account_id", account.ID), slog.Any("error", err))

		return nil, errors.Wrap(err, "login failed")
	}
	srv.log(ctx).Info("Logged in", slog.Any("account_id", account.ID), slog.String("provider", input.Identity.Provider.String()))

	return output, nil
}

// LoginWithProvider verifies the provider credential and logs the resulting identity in.
func (srv *authService) LoginWithProvider(ctx context.Context, input *usecase.ProviderLoginInput) (*usecase.SessionOutput, error) {
	provider, ok := srv.providers[input.Provider]
	if !ok {
		return nil, errors.Wrapf(domainerrors.ErrUnsupportedProvider, "provider %q is not configured", input.Provider)
	}

	identity, err := provider.VerifyIDToken(ctx, input.Credential)
	if err != nil {
		srv.log(ctx).Warn("Provider credential rejected", slog.String("provider", input.Provider.String()), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to verify provider credential")
	}

	return srv.Login(ctx, &usecase.LoginInput{Identity: identity})
}

// Reissue rotates the presented refresh token.
func (srv *authService) Reissue(ctx context.Context, input *usecase.ReissueInput) (*usecase.SessionOutput, error) {
	if input == nil {
		input = &usecase.ReissueInput{}
	}

	return srv.reissuer.Reissue(ctx, input.RefreshToken)
}

// Logout ends the caller's session. It always returns the cookie-clearing directives.
func (srv *authService) Logout(ctx context.Context, input *usecase.LogoutInput) *usecase.LogoutOutput {
	return srv.terminator.Terminate(ctx, input)
}

// Authenticate validates an access token and returns the caller it names.
func (srv *authService) Authenticate(_ context.Context, accessToken string) (*entity.Principal, error) {
	if accessToken == "" {
		return nil, errors.WithStack(domainerrors.ErrMissingToken)
	}

	claims, err := srv.tokens.Decode(accessToken)
	if err != nil {
		if errors.Is(err, service.ErrTokenExpired) {
			return nil, errors.Wrap(domainerrors.ErrTokenExpired, err.Error())
		}

		return nil, errors.Wrap(domainerrors.ErrInvalidSignature, err.Error())
	}
	if claims.Kind != service.TokenKindAccess {
		return nil, errors.Wrapf(domainerrors.ErrInvalidSignature, "expected an access token, got %s", claims.Kind)
	}

	return &entity.Principal{
		AccountID: claims.Subject,
		Email:     claims.Email,
		Roles:     entity.RolesFromStrings(claims.Roles),
	}, nil
}

// ClearCookies returns the directives that remove both token cookies.
func (srv *authService) ClearCookies() []*entity.TokenCookie {
	return srv.cookies.clearCookies()
}
