package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"forum/config"
	"forum/internal/delivery/api/cookie"
	"forum/internal/delivery/api/response"
	deliverycontext "forum/internal/delivery/context"
	"forum/internal/domain/entity"
	domainerrors "forum/internal/domain/errors"
	"forum/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = NewErrorMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil))).HandleHTTPError

	return e
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *response.ErrorInfo {
	t.Helper()

	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)

	return body.Error
}

func TestErrorMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{
			name:     "auth failures look alike",
			err:      errors.WithStack(domainerrors.ErrSubjectMismatch),
			wantCode: http.StatusUnauthorized,
			wantBody: "UNAUTHORIZED",
		},
		{
			name:     "store unavailable",
			err:      errors.Wrap(domainerrors.NewStoreUnavailableError(context.DeadlineExceeded), "login failed"),
			wantCode: http.StatusServiceUnavailable,
			wantBody: "STORE_UNAVAILABLE",
		},
		{
			name:     "validation details reach the client",
			err:      errors.WithStack(domainerrors.ErrValidationFailed.WithDetails("IDToken: required")),
			wantCode: http.StatusBadRequest,
			wantBody: "VALIDATION_FAILED",
		},
		{
			name:     "echo error",
			err:      echo.NewHTTPError(http.StatusNotFound, "missing"),
			wantCode: http.StatusNotFound,
			wantBody: "HTTP_ERROR",
		},
		{
			name:     "unknown error",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
			wantBody: "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho()
			e.GET("/", func(echo.Context) error { return tt.err })

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantBody, decodeError(t, rec).Code)
			assert.NotContains(t, rec.Body.String(), "boom")
		})
	}
}

func TestErrorMiddleware_Details(t *testing.T) {
	e := newTestEcho()
	e.GET("/", func(echo.Context) error {
		return errors.WithStack(domainerrors.ErrValidationFailed.WithDetails("IDToken: required"))
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "IDToken: required", decodeError(t, rec).Details)
}

func TestErrorMiddleware_AuthKindsShareOneBody(t *testing.T) {
	var bodies []string
	for _, authErr := range []*domainerrors.AuthError{
		domainerrors.ErrMissingToken,
		domainerrors.ErrInvalidSignature,
		domainerrors.ErrUnknownToken,
		domainerrors.ErrSubjectMismatch,
		domainerrors.ErrTokenExpired,
		domainerrors.ErrAccountNotFound,
	} {
		e := newTestEcho()
		e.GET("/", func(echo.Context) error { return errors.WithStack(authErr) })

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(deliverycontext.HeaderXRequestID, "fixed")
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		bodies = append(bodies, decodeError(t, rec).Message)
	}

	for _, body := range bodies[1:] {
		assert.Equal(t, bodies[0], body)
	}
}

// stubAuth accepts exactly one access token.
type stubAuth struct {
	usecase.AuthUsecase
	token     string
	principal *entity.Principal
}

func (s *stubAuth) Authenticate(_ context.Context, token string) (*entity.Principal, error) {
	switch token {
	case "":
		return nil, errors.WithStack(domainerrors.ErrMissingToken)
	case s.token:
		return s.principal, nil
	default:
		return nil, errors.WithStack(domainerrors.ErrInvalidSignature)
	}
}

func TestAuthMiddleware(t *testing.T) {
	principal := &entity.Principal{AccountID: uuid.New(), Roles: entity.Roles{entity.RoleUser}}
	auth := NewAuthMiddleware(&stubAuth{token: "good", principal: principal}, cookie.NewTransport(&config.Config{}))

	tests := []struct {
		name         string
		optional     bool
		header       string
		cookie       string
		wantCode     int
		wantAttached bool
	}{
		{name: "bearer header", header: "Bearer good", wantCode: http.StatusOK, wantAttached: true},
		{name: "lowercase scheme", header: "bearer good", wantCode: http.StatusOK, wantAttached: true},
		{name: "cookie", cookie: "good", wantCode: http.StatusOK, wantAttached: true},
		{name: "missing", wantCode: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer bad", wantCode: http.StatusUnauthorized},
		{name: "optional without token", optional: true, wantCode: http.StatusOK},
		{name: "optional with bad token", optional: true, header: "Bearer bad", wantCode: http.StatusOK},
		{name: "optional with good token", optional: true, cookie: "good", wantCode: http.StatusOK, wantAttached: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho()
			mw := auth.Authenticate
			if tt.optional {
				mw = auth.OptionalAuthenticate
			}

			attached := false
			e.GET("/", func(c echo.Context) error {
				got, ok := deliverycontext.GetPrincipal(c)
				attached = ok
				if ok {
					assert.Equal(t, principal.AccountID, got.AccountID)
				}

				return c.NoContent(http.StatusOK)
			}, mw)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "accessToken", Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantAttached, attached)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	limiter := newRateLimiter(60, 2, 100, func() time.Time { return now })

	e := newTestEcho()
	e.POST("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, limiter.Limit)

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2"), "budgets are per client")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, call("10.0.0.1"), "one token refills per second at 60/min")
}

func TestRateLimiter_TrackedClientsStayBounded(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	limiter := newRateLimiter(60, 1, 3, func() time.Time { return now })

	for i := range 50 {
		assert.True(t, limiter.allow(fmt.Sprintf("10.0.0.%d", i)))
		assert.LessOrEqual(t, limiter.tracked(), 3)
	}

	assert.True(t, limiter.isTracked("10.0.0.49"), "the newest client is kept")
	assert.False(t, limiter.isTracked("10.0.0.0"), "the least recent client is dropped")
	assert.False(t, limiter.allow("10.0.0.49"), "a tracked client keeps its spent budget")
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewReissueRateLimiter(&config.Config{Auth: &config.AuthConfig{}})

	e := newTestEcho()
	e.POST("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, limiter.Limit)

	for range 100 {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return rl.clients.Len()
}

func (rl *RateLimiter) isTracked(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	_, ok := rl.clients.Get(key)

	return ok
}
