package impl

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"forum/config"
	"forum/internal/domain/entity"
	"forum/internal/domain/repository"
	"forum/internal/domain/service"
	"forum/internal/infra/persistence/memory"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// fakeTokens is an in-memory TokenService. Only tokens it issued decode; everything else is a bad signature.
type fakeTokens struct {
	mu     sync.Mutex
	clock  *testClock
	seq    int
	issued map[string]service.Claims
}

func newFakeTokens(clock *testClock) *fakeTokens {
	return &fakeTokens{clock: clock, issued: make(map[string]service.Claims)}
}

func (f *fakeTokens) Issue(subject *service.TokenSubject, kind service.TokenKind, ttl time.Duration) (*service.IssuedToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	now := f.clock.Now()
	value := string(kind) + "-" + strconv.Itoa(f.seq)

	claims := service.Claims{
		Subject:   subject.AccountID,
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	if kind == service.TokenKindAccess {
		claims.Email = subject.Email
		claims.Name = subject.Name
		claims.Roles = subject.Roles
	}
	f.issued[value] = claims

	return &service.IssuedToken{Value: value, ExpiresAt: claims.ExpiresAt}, nil
}

func (f *fakeTokens) Decode(token string) (*service.Claims, error) {
	claims, err := f.DecodeIgnoringExpiry(token)
	if err != nil {
		return nil, err
	}
	if !f.clock.Now().Before(claims.ExpiresAt) {
		return nil, errors.WithStack(service.ErrTokenExpired)
	}

	return claims, nil
}

func (f *fakeTokens) DecodeIgnoringExpiry(token string) (*service.Claims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	claims, ok := f.issued[token]
	if !ok {
		return nil, errors.WithStack(service.ErrTokenSignatureInvalid)
	}

	return &claims, nil
}

func (f *fakeTokens) AccessTTL() time.Duration  { return time.Hour }
func (f *fakeTokens) RefreshTTL() time.Duration { return 14 * 24 * time.Hour }

type fakeOAuth struct {
	provider entity.ProviderType
	identity *entity.ExternalIdentity
	err      error
}

func (f *fakeOAuth) VerifyIDToken(_ context.Context, _ string) (*entity.ExternalIdentity, error) {
	return f.identity, f.err
}

func (f *fakeOAuth) GetProvider() entity.ProviderType {
	return f.provider
}

// authFixture wires the auth service over the memory stores.
type authFixture struct {
	clock       *testClock
	tokens      *fakeTokens
	store       *memory.AccountStore
	accountRepo repository.AccountRepository
	refreshRepo repository.RefreshTokenRepository
	service     *authService
}

func newAuthFixture(t *testing.T, oauth ...service.OAuthAuthService) *authFixture {
	t.Helper()

	clock := newTestClock()
	store := memory.NewAccountStore()
	refreshRepo := memory.NewRefreshTokenRepositoryWithClock(clock.Now)

	return newAuthFixtureWith(t, clock, store, refreshRepo, oauth...)
}

func newAuthFixtureWith(t *testing.T, clock *testClock, store *memory.AccountStore, refreshRepo repository.RefreshTokenRepository, oauth ...service.OAuthAuthService) *authFixture {
	t.Helper()

	tokens := newFakeTokens(clock)
	accountRepo := memory.NewAccountRepository(store)

	srv, ok := NewAuthService(AuthServiceParams{
		TxManager:        memory.NewTransactionManager(store),
		AccountRepo:      accountRepo,
		RefreshTokenRepo: refreshRepo,
		TokenService:     tokens,
		OAuthServices:    oauth,
		Config: &config.Config{
			RefreshStore: &config.RefreshStoreConfig{Timeout: time.Second},
		},
		Logger: newDiscardLogger(),
	}).(*authService)
	require.True(t, ok)

	srv.reissuer.now = clock.Now
	srv.linker.now = clock.Now

	return &authFixture{
		clock:       clock,
		tokens:      tokens,
		store:       store,
		accountRepo: accountRepo,
		refreshRepo: refreshRepo,
		service:     srv,
	}
}

func googleIdentity(providerID, email string) *entity.ExternalIdentity {
	return &entity.ExternalIdentity{
		Provider:   entity.ProviderTypeGoogle,
		ProviderID: providerID,
		Email:      email,
		Name:       "Alice",
		AvatarURL:  "https://example.com/alice.png",
	}
}
