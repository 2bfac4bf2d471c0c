package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"forum/config"
	"forum/internal/delivery/api/cookie"
	apimiddleware "forum/internal/delivery/api/middleware"
	"forum/internal/delivery/api/response"
	"forum/internal/delivery/api/router"
	"forum/internal/delivery/api/router/handler"
	"forum/internal/domain/entity"
	domainerrors "forum/internal/domain/errors"
	"forum/internal/domain/service"
	"forum/internal/infra/auth"
	"forum/internal/infra/persistence/memory"
	"forum/internal/usecase/impl"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGoogle accepts any ID token except "rejected".
type stubGoogle struct{}

func (stubGoogle) VerifyIDToken(_ context.Context, idToken string) (*entity.ExternalIdentity, error) {
	if idToken == "rejected" {
		return nil, errors.Wrap(domainerrors.ErrOAuthTokenInvalid, "audience mismatch")
	}

	return &entity.ExternalIdentity{
		Provider:   entity.ProviderTypeGoogle,
		ProviderID: "google-" + idToken,
		Email:      idToken + "@example.com",
		Name:       "Member " + idToken,
	}, nil
}

func (stubGoogle) GetProvider() entity.ProviderType {
	return entity.ProviderTypeGoogle
}

// stubGitHub accepts the code "good-code" only.
type stubGitHub struct{}

func (stubGitHub) VerifyIDToken(_ context.Context, code string) (*entity.ExternalIdentity, error) {
	if code != "good-code" {
		return nil, domainerrors.ErrOAuthTokenInvalid.WrapMessage("invalid authorization code")
	}

	return &entity.ExternalIdentity{
		Provider:   entity.ProviderTypeGitHub,
		ProviderID: "583231",
		Email:      "alice@example.com",
		Name:       "octocat",
	}, nil
}

func (stubGitHub) GetProvider() entity.ProviderType {
	return entity.ProviderTypeGitHub
}

type sessionEnvelope struct {
	Data handler.SessionResponse `json:"data"`
}

type accountEnvelope struct {
	Data handler.AccountResponse `json:"data"`
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	cfg := &config.Config{
		Token: &config.TokenConfig{SigningKey: base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", config.SigningKeySize)))},
		RefreshStore: &config.RefreshStoreConfig{Backend: config.StoreBackendMemory},
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := auth.NewJWTService(cfg)
	require.NoError(t, err)

	store := memory.NewAccountStore()
	accountRepo := memory.NewAccountRepository(store)
	authUC := impl.NewAuthService(impl.AuthServiceParams{
		TxManager:        memory.NewTransactionManager(store),
		AccountRepo:      accountRepo,
		RefreshTokenRepo: memory.NewRefreshTokenRepository(),
		TokenService:     tokens,
		OAuthServices:    []service.OAuthAuthService{stubGoogle{}, stubGitHub{}},
		Config:           cfg,
		Logger:           logger,
	})
	transport := cookie.NewTransport(cfg)

	return NewEcho(cfg, logger, router.RouterParams{
		AuthHandler:    handler.NewAuthHandler(handler.AuthHandlerParams{AuthUC: authUC, Cookies: transport, Logger: logger}),
		AccountHandler: handler.NewAccountHandler(impl.NewAccountService(accountRepo, logger)),
		AuthMiddleware: apimiddleware.NewAuthMiddleware(authUC, transport),
		RateLimiter:    apimiddleware.NewReissueRateLimiter(cfg),
	})
}

func do(e *echo.Echo, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec
}

func responseCookies(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	cookies := make(map[string]*http.Cookie)
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}

	return cookies
}

func login(t *testing.T, e *echo.Echo, who string) (*sessionEnvelope, map[string]*http.Cookie) {
	t.Helper()

	rec := do(e, http.MethodPost, "/api/auth/login/google", `{"idToken":"`+who+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session sessionEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))

	return &session, responseCookies(rec)
}

func assertClearedCookies(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()

	cookies := responseCookies(rec)
	for _, name := range []string{"accessToken", "refreshToken"} {
		require.Contains(t, cookies, name)
		assert.Empty(t, cookies[name].Value)
		assert.Negative(t, cookies[name].MaxAge, name)
	}
}

func TestAPI_LoginSetsCookies(t *testing.T) {
	e := newTestServer(t)

	session, cookies := login(t, e, "alice")

	assert.NotEmpty(t, session.Data.AccessToken)
	assert.Equal(t, "alice@example.com", session.Data.Account.Email)
	assert.Regexp(t, `^alice#\d{4}$`, session.Data.Account.Handle)
	assert.Equal(t, []string{"google"}, session.Data.Account.ConnectedProviders)

	access := cookies["accessToken"]
	require.NotNil(t, access)
	assert.Equal(t, session.Data.AccessToken, access.Value)
	assert.Equal(t, "/", access.Path)
	assert.Equal(t, 3600, access.MaxAge)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteStrictMode, access.SameSite)

	refresh := cookies["refreshToken"]
	require.NotNil(t, refresh)
	assert.Equal(t, session.Data.RefreshToken, refresh.Value)
	assert.Equal(t, "/api/auth/reissue", refresh.Path)
	assert.Equal(t, 14*24*3600, refresh.MaxAge)
}

func TestAPI_LoginValidation(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/auth/login/google", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")

	rec = do(e, http.MethodPost, "/api/auth/login/google", `{"idToken":"rejected"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "OAUTH_TOKEN_INVALID")
}

func TestAPI_GitHubLogin(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/auth/login/github", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")

	rec = do(e, http.MethodPost, "/api/auth/login/github", `{"code":"replayed"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "OAUTH_TOKEN_INVALID")

	google, _ := login(t, e, "alice")

	rec = do(e, http.MethodPost, "/api/auth/login/github", `{"code":"good-code"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session sessionEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, google.Data.Account.ID, session.Data.Account.ID, "same email links onto the existing account")
	assert.ElementsMatch(t, []string{"google", "github"}, session.Data.Account.ConnectedProviders)
	assert.Contains(t, responseCookies(rec), "refreshToken")
}

func TestAPI_MembersMe(t *testing.T) {
	e := newTestServer(t)
	session, cookies := login(t, e, "bob")

	rec := do(e, http.MethodGet, "/api/members/me", "", cookies["accessToken"])
	require.Equal(t, http.StatusOK, rec.Code)

	var me accountEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, session.Data.Account.ID, me.Data.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/members/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+session.Data.AccessToken)
	bearer := httptest.NewRecorder()
	e.ServeHTTP(bearer, req)
	assert.Equal(t, http.StatusOK, bearer.Code)

	rec = do(e, http.MethodGet, "/api/members/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
}

func TestAPI_ReissueRotatesAndDetectsReplay(t *testing.T) {
	e := newTestServer(t)
	_, cookies := login(t, e, "carol")

	rec := do(e, http.MethodPost, "/api/auth/reissue", "", cookies["refreshToken"])
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))

	rotated := responseCookies(rec)
	require.NotNil(t, rotated["refreshToken"])
	assert.NotEqual(t, cookies["refreshToken"].Value, rotated["refreshToken"].Value)

	replay := do(e, http.MethodPost, "/api/auth/reissue", "", cookies["refreshToken"])
	assert.Equal(t, http.StatusUnauthorized, replay.Code)
	assert.Equal(t, "no-store", replay.Header().Get("Cache-Control"))
	assertClearedCookies(t, replay)

	body := do(e, http.MethodPost, "/api/auth/reissue", `{"refreshToken":"`+rotated["refreshToken"].Value+`"}`)
	assert.Equal(t, http.StatusOK, body.Code, "the body is accepted when no cookie is sent")
}

func TestAPI_ReissueWithoutToken(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/auth/reissue", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assertClearedCookies(t, rec)
}

func TestAPI_Logout(t *testing.T) {
	e := newTestServer(t)
	_, cookies := login(t, e, "dave")

	rec := do(e, http.MethodPost, "/api/auth/logout", "", cookies["accessToken"])
	assert.Equal(t, http.StatusOK, rec.Code)
	assertClearedCookies(t, rec)

	again := do(e, http.MethodPost, "/api/auth/logout", "", cookies["accessToken"])
	assert.Equal(t, http.StatusOK, again.Code, "logout is idempotent")

	anonymous := do(e, http.MethodPost, "/api/auth/logout", "")
	assert.Equal(t, http.StatusOK, anonymous.Code)
	assertClearedCookies(t, anonymous)

	reissue := do(e, http.MethodPost, "/api/auth/reissue", "", cookies["refreshToken"])
	assert.Equal(t, http.StatusUnauthorized, reissue.Code, "logout revoked the refresh token")
}

func TestAPI_LogoutWithRefreshTokenBody(t *testing.T) {
	e := newTestServer(t)
	_, cookies := login(t, e, "erin")

	require.Equal(t, "/api/auth/reissue", cookies["refreshToken"].Path, "browsers only send the refresh cookie to reissue")

	rec := do(e, http.MethodPost, "/api/auth/logout", `{"refreshToken":"`+cookies["refreshToken"].Value+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assertClearedCookies(t, rec)

	reissue := do(e, http.MethodPost, "/api/auth/reissue", "", cookies["refreshToken"])
	assert.Equal(t, http.StatusUnauthorized, reissue.Code, "the body token identified the session to revoke")
}

func TestAPI_Health(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
