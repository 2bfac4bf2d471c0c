package middleware

import (
	"log/slog"

	"forum/internal/delivery/api/cookie"
	deliverycontext "forum/internal/delivery/context"
	"forum/internal/domain/entity"
	"forum/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// AuthMiddleware turns an inbound access token into a Principal on the request.
type AuthMiddleware struct {
	authUC  usecase.AuthUsecase
	cookies *cookie.Transport
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(authUC usecase.AuthUsecase, cookies *cookie.Transport) *AuthMiddleware {
	return &AuthMiddleware{authUC: authUC, cookies: cookies}
}

// Authenticate rejects the request with 401 unless it carries a valid access token.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		principal, err := m.authUC.Authenticate(c.Request().Context(), m.cookies.AccessToken(c))
		if err != nil {
			return errors.WithStack(err)
		}
		attach(c, principal)

		return next(c)
	}
}

// OptionalAuthenticate attaches the Principal when the token is valid and lets the request through either way.
func (m *AuthMiddleware) OptionalAuthenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := m.cookies.AccessToken(c)
		if token == "" {
			return next(c)
		}

		if principal, err := m.authUC.Authenticate(c.Request().Context(), token); err == nil {
			attach(c, principal)
		}

		return next(c)
	}
}

func attach(c echo.Context, principal *entity.Principal) {
	deliverycontext.SetPrincipal(c, principal)

	ctx := c.Request().Context()
	if logger := deliverycontext.GetLogger(ctx); logger != nil {
		ctx = deliverycontext.WithLogger(ctx, logger.With(slog.String("account_id", principal.AccountID.String())))
		c.SetRequest(c.Request().WithContext(ctx))
	}
}
