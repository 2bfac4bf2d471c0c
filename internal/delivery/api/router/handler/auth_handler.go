// Package handler contains the HTTP handlers for the API server.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"forum/internal/delivery/api/cookie"
	"forum/internal/delivery/api/response"
	deliverycontext "forum/internal/delivery/context"
	"forum/internal/domain/entity"
	domainerrors "forum/internal/domain/errors"
	"forum/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// AuthHandlerParams holds dependencies for AuthHandler, injected by Fx.
type AuthHandlerParams struct {
	fx.In

	AuthUC  usecase.AuthUsecase
	Cookies *cookie.Transport
	Logger  *slog.Logger
}

// AuthHandler serves login, reissue and logout.
type AuthHandler struct {
	authUC  usecase.AuthUsecase
	cookies *cookie.Transport
	logger  *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler
func NewAuthHandler(params AuthHandlerParams) *AuthHandler {
	return &AuthHandler{
		authUC:  params.AuthUC,
		cookies: params.Cookies,
		logger:  params.Logger,
	}
}

// ProviderLoginRequest carries the ID token obtained from the provider's own sign-in flow.
type ProviderLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// GitHubLoginRequest carries the authorization code from GitHub's redirect.
type GitHubLoginRequest struct {
	Code string `json:"code" validate:"required"`
}

// RefreshTokenRequest lets non-browser clients send the refresh token in the body.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// SessionResponse repeats the cookie values in the body so clients can use them at once.
type SessionResponse struct {
	AccessToken           string           `json:"accessToken"`
	AccessTokenExpiresAt  time.Time        `json:"accessTokenExpiresAt"`
	RefreshToken          string           `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time        `json:"refreshTokenExpiresAt"`
	Account               *AccountResponse `json:"account"`
}

// GoogleLogin verifies a Google ID token and starts a session.
func (h *AuthHandler) GoogleLogin(c echo.Context) error {
	var req ProviderLoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	return h.providerLogin(c, entity.ProviderTypeGoogle, req.IDToken)
}

// GitHubLogin exchanges a GitHub authorization code and starts a session.
func (h *AuthHandler) GitHubLogin(c echo.Context) error {
	var req GitHubLoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	return h.providerLogin(c, entity.ProviderTypeGitHub, req.Code)
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domainerrors.ErrValidationFailed.WrapMessage("invalid login body")
	}
	if err := c.Validate(req); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (h *AuthHandler) providerLogin(c echo.Context, provider entity.ProviderType, credential string) error {
	output, err := h.authUC.LoginWithProvider(c.Request().Context(), &usecase.ProviderLoginInput{
		Provider:   provider,
		Credential: credential,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	response.NoStore(c)
	h.cookies.Write(c, output.Cookies)

	return response.Success(c, http.StatusOK, newSessionResponse(output))
}

// Reissue rotates the refresh token. Any failure clears both cookies.
func (h *AuthHandler) Reissue(c echo.Context) error {
	response.NoStore(c)

	token := h.cookies.RefreshToken(c)
	if token == "" {
		var req RefreshTokenRequest
		// An empty or non-JSON body just means no token; that is reported as MissingToken below.
		_ = c.Bind(&req)
		token = req.RefreshToken
	}

	output, err := h.authUC.Reissue(c.Request().Context(), &usecase.ReissueInput{RefreshToken: token})
	if err != nil {
		if _, isAuthFailure := domainerrors.AuthFailureOf(err); isAuthFailure {
			h.cookies.Write(c, h.authUC.ClearCookies())
		}

		return errors.WithStack(err)
	}

	h.cookies.Write(c, output.Cookies)

	return response.Success(c, http.StatusOK, newSessionResponse(output))
}

// Logout always succeeds and always clears the cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	input := &usecase.LogoutInput{
		AccessToken:  h.cookies.AccessToken(c),
		RefreshToken: h.cookies.RefreshToken(c),
	}
	if principal, ok := deliverycontext.GetPrincipal(c); ok {
		input.Principal = principal
	}
	if input.RefreshToken == "" {
		var req RefreshTokenRequest
		_ = c.Bind(&req)
		input.RefreshToken = req.RefreshToken
	}

	output := h.authUC.Logout(c.Request().Context(), input)

	response.NoStore(c)
	h.cookies.Write(c, output.Cookies)

	return response.Success(c, http.StatusOK, map[string]string{"status": "logged_out"})
}

func newSessionResponse(output *usecase.SessionOutput) *SessionResponse {
	return &SessionResponse{
		AccessToken:           output.Tokens.AccessToken,
		AccessTokenExpiresAt:  output.Tokens.AccessExpiresAt,
		RefreshToken:          output.Tokens.RefreshToken,
		RefreshTokenExpiresAt: output.Tokens.RefreshExpiresAt,
		Account:               newAccountResponse(output.Account),
	}
}
