package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"forum/config"
	"forum/internal/domain/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestConfig() *config.Config {
	return &config.Config{
		Token: &config.TokenConfig{
			SigningKey:        testSigningKey,
			AccessTTLSeconds:  3600,
			RefreshTTLSeconds: 14 * 24 * 3600,
		},
	}
}

func newTestService(t *testing.T, clock *fakeClock) *jwtService {
	t.Helper()

	svc, err := newJWTService(newTestConfig(), clock.Now)
	require.NoError(t, err)

	return svc
}

func TestJWTService_RoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	svc := newTestService(t, clock)

	subject := &service.TokenSubject{
		AccountID: uuid.New(),
		Email:     "a@x.com",
		Name:      "Alice",
		Roles:     []string{"USER"},
	}

	access, err := svc.Issue(subject, service.TokenKindAccess, svc.AccessTTL())
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(time.Hour), access.ExpiresAt)

	claims, err := svc.Decode(access.Value)
	require.NoError(t, err)
	assert.Equal(t, subject.AccountID, claims.Subject)
	assert.Equal(t, service.TokenKindAccess, claims.Kind)
	assert.Equal(t, subject.Roles, claims.Roles)
	assert.Equal(t, subject.Email, claims.Email)
	assert.Equal(t, subject.Name, claims.Name)
	assert.True(t, claims.IssuedAt.Equal(clock.now))
	assert.True(t, claims.ExpiresAt.Equal(access.ExpiresAt))
}

func TestJWTService_RefreshCarriesSubjectOnly(t *testing.T) {
	clock := &fakeClock{now: time.Now().Truncate(time.Second)}
	svc := newTestService(t, clock)

	subject := &service.TokenSubject{AccountID: uuid.New(), Email: "a@x.com", Roles: []string{"USER"}}

	first, err := svc.Issue(subject, service.TokenKindRefresh, svc.RefreshTTL())
	require.NoError(t, err)
	second, err := svc.Issue(subject, service.TokenKindRefresh, svc.RefreshTTL())
	require.NoError(t, err)
	assert.NotEqual(t, first.Value, second.Value, "tokens minted in the same second must differ")

	claims, err := svc.Decode(first.Value)
	require.NoError(t, err)
	assert.Equal(t, service.TokenKindRefresh, claims.Kind)
	assert.Equal(t, subject.AccountID, claims.Subject)
	assert.Empty(t, claims.Email)
	assert.Nil(t, claims.Roles)
}

func TestJWTService_ExpiryIsStrict(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	svc := newTestService(t, clock)

	issued, err := svc.Issue(&service.TokenSubject{AccountID: uuid.New()}, service.TokenKindAccess, time.Minute)
	require.NoError(t, err)

	clock.now = start.Add(time.Minute - time.Second)
	_, err = svc.Decode(issued.Value)
	require.NoError(t, err)

	clock.now = start.Add(time.Minute)
	_, err = svc.Decode(issued.Value)
	require.ErrorIs(t, err, service.ErrTokenExpired, "expiresAt == now must be expired")

	claims, err := svc.DecodeIgnoringExpiry(issued.Value)
	require.NoError(t, err)
	assert.True(t, claims.ExpiresAt.Equal(start.Add(time.Minute)))
}

func TestJWTService_ClockSkew(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	cfg := newTestConfig()
	cfg.Token.ClockSkewSeconds = 30

	svc, err := newJWTService(cfg, clock.Now)
	require.NoError(t, err)

	issued, err := svc.Issue(&service.TokenSubject{AccountID: uuid.New()}, service.TokenKindAccess, time.Minute)
	require.NoError(t, err)

	clock.now = start.Add(time.Minute + 29*time.Second)
	_, err = svc.Decode(issued.Value)
	require.NoError(t, err)

	clock.now = start.Add(time.Minute + 30*time.Second)
	_, err = svc.Decode(issued.Value)
	require.ErrorIs(t, err, service.ErrTokenExpired)
}

func TestJWTService_RejectsForgedAndMalformed(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	svc := newTestService(t, clock)

	otherCfg := newTestConfig()
	otherCfg.Token.SigningKey = base64.StdEncoding.EncodeToString([]byte("ffffffffffffffffffffffffffffffff"))
	other, err := newJWTService(otherCfg, clock.Now)
	require.NoError(t, err)

	forged, err := other.Issue(&service.TokenSubject{AccountID: uuid.New()}, service.TokenKindAccess, time.Minute)
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":  uuid.NewString(),
		"kind": "access",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "a@x.com",
		"kind": "refresh",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(svc.signingKey)
	require.NoError(t, err)

	badKind, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  uuid.NewString(),
		"kind": "session",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(svc.signingKey)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "other key", token: forged.Value, want: service.ErrTokenSignatureInvalid},
		{name: "none algorithm", token: noneAlg, want: service.ErrTokenSignatureInvalid},
		{name: "garbage", token: "not-a-token", want: service.ErrTokenMalformed},
		{name: "email subject", token: badSubject, want: service.ErrTokenMalformed},
		{name: "unknown kind", token: badKind, want: service.ErrTokenMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Decode(tt.token)
			require.ErrorIs(t, err, tt.want)

			_, err = svc.DecodeIgnoringExpiry(tt.token)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJWTService_IssueValidation(t *testing.T) {
	svc := newTestService(t, &fakeClock{now: time.Now()})

	_, err := svc.Issue(&service.TokenSubject{}, service.TokenKindAccess, time.Minute)
	require.Error(t, err)

	_, err = svc.Issue(&service.TokenSubject{AccountID: uuid.New()}, service.TokenKindAccess, 0)
	require.Error(t, err)

	_, err = svc.Issue(&service.TokenSubject{AccountID: uuid.New()}, "session", time.Minute)
	require.Error(t, err)
}

func TestNewJWTService_RejectsBadKey(t *testing.T) {
	cfg := newTestConfig()
	cfg.Token.SigningKey = base64.StdEncoding.EncodeToString([]byte("too-short"))

	_, err := NewJWTService(cfg)
	require.Error(t, err)
}
