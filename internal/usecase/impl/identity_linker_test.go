package impl

import (
	"context"
	"regexp"
	"strconv"
	"testing"
	"time"

	"forum/internal/domain/entity"
	domainerrors "forum/internal/domain/errors"
	"forum/internal/domain/repository"
	"forum/internal/infra/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLinker(store *memory.AccountStore) *identityLinker {
	return newIdentityLinker(memory.NewTransactionManager(store), time.Second, newDiscardLogger())
}

func TestIdentityLinker_CreatesAccount(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAccountStore()
	linker := newTestLinker(store)

	account, err := linker.Resolve(ctx, googleIdentity("g1", " Alice@X.com "))
	require.NoError(t, err)

	assert.Equal(t, "alice@x.com", account.Email)
	assert.Equal(t, "Alice", account.Name)
	assert.Equal(t, entity.RoleUser, account.Role)
	assert.Regexp(t, regexp.MustCompile(`^alice#[1-9][0-9]{3}$`), account.Handle)
	assert.Equal(t, map[entity.ProviderType]string{entity.ProviderTypeGoogle: "g1"}, account.ExternalIdentities)

	again, err := linker.Resolve(ctx, googleIdentity("g1", "alice@x.com"))
	require.NoError(t, err)
	assert.Equal(t, account.ID, again.ID, "the same provider identity maps to the same account")
}

func TestIdentityLinker_MergesByEmail(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAccountStore()
	linker := newTestLinker(store)

	first, err := linker.Resolve(ctx, googleIdentity("g1", "a@x.com"))
	require.NoError(t, err)

	second, err := linker.Resolve(ctx, &entity.ExternalIdentity{
		Provider:   entity.ProviderTypeGitHub,
		ProviderID: "gh1",
		Email:      "a@x.com",
		Name:       "Alice K",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Alice K", second.Name)
	assert.Equal(t, "gh1", second.ExternalIdentities[entity.ProviderTypeGitHub])
	assert.Equal(t, "g1", second.ExternalIdentities[entity.ProviderTypeGoogle])

	byGitHub, err := memory.NewAccountRepository(store).FindByProvider(ctx, entity.ProviderTypeGitHub, "gh1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byGitHub.ID)
}

func TestIdentityLinker_RefreshesProfileOnLogin(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAccountStore()
	linker := newTestLinker(store)

	_, err := linker.Resolve(ctx, googleIdentity("g1", "a@x.com"))
	require.NoError(t, err)

	updated := googleIdentity("g1", "a@x.com")
	updated.Name = "Alice Kim"
	updated.AvatarURL = ""

	account, err := linker.Resolve(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, "Alice Kim", account.Name)
	assert.Equal(t, "https://example.com/alice.png", account.AvatarURL, "an empty avatar keeps the stored one")
}

func TestIdentityLinker_HandleFallback(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAccountStore()
	repo := memory.NewAccountRepository(store)

	taken := &entity.Account{Email: "someone@else.com", Handle: "a#1000", Role: entity.RoleUser}
	require.NoError(t, repo.Create(ctx, taken))

	clock := newTestClock()
	linker := newTestLinker(store)
	attempts := 0
	linker.intN = func(int) int {
		attempts++

		return 0
	}
	linker.now = clock.Now

	account, err := linker.Resolve(ctx, googleIdentity("g1", "a@x.com"))
	require.NoError(t, err)

	assert.Equal(t, maxHandleAttempts, attempts)
	assert.Equal(t, "a#"+strconv.FormatInt(clock.Now().UnixMilli(), 10), account.Handle)
}

func TestIdentityLinker_HandleRetriesUntilFree(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAccountStore()
	repo := memory.NewAccountRepository(store)
	require.NoError(t, repo.Create(ctx, &entity.Account{Email: "x@y.com", Handle: "a#1000", Role: entity.RoleUser}))

	linker := newTestLinker(store)
	suffixes := []int{0, 0, 234}
	linker.intN = func(int) int {
		next := suffixes[0]
		suffixes = suffixes[1:]

		return next
	}

	account, err := linker.Resolve(ctx, googleIdentity("g1", "a@x.com"))
	require.NoError(t, err)
	assert.Equal(t, "a#1234", account.Handle)
}

func TestIdentityLinker_RejectsIncompleteIdentity(t *testing.T) {
	linker := newTestLinker(memory.NewAccountStore())

	tests := []struct {
		name     string
		identity *entity.ExternalIdentity
	}{
		{name: "nil", identity: nil},
		{name: "no provider id", identity: &entity.ExternalIdentity{Provider: entity.ProviderTypeGoogle, Email: "a@x.com"}},
		{name: "no email", identity: &entity.ExternalIdentity{Provider: entity.ProviderTypeGoogle, ProviderID: "g1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := linker.Resolve(context.Background(), tt.identity)
			require.ErrorIs(t, err, domainerrors.ErrValidationFailed)
		})
	}
}

// staleTxManager makes the first transaction miss an account that a concurrent login already created.
type staleTxManager struct {
	inner repository.TransactionManager
	calls int
}

func (tm *staleTxManager) Execute(ctx context.Context, fn func(txRepoFactory repository.RepositoryFactory) error) error {
	tm.calls++
	stale := tm.calls == 1

	return tm.inner.Execute(ctx, func(factory repository.RepositoryFactory) error {
		if stale {
			return fn(staleFactory{inner: factory})
		}

		return fn(factory)
	})
}

type staleFactory struct {
	inner repository.RepositoryFactory
}

func (f staleFactory) NewAccountRepository() repository.AccountRepository {
	return staleAccountRepo{AccountRepository: f.inner.NewAccountRepository()}
}

type staleAccountRepo struct {
	repository.AccountRepository
}

func (staleAccountRepo) FindByProvider(context.Context, entity.ProviderType, string) (*entity.Account, error) {
	return nil, repository.ErrAccountNotFound
}

func (staleAccountRepo) FindByEmail(context.Context, string) (*entity.Account, error) {
	return nil, repository.ErrAccountNotFound
}

func TestIdentityLinker_RetriesAfterCreateRace(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAccountStore()

	winner := &entity.Account{
		Email:              "a@x.com",
		Handle:             "a#4242",
		Role:               entity.RoleUser,
		ExternalIdentities: map[entity.ProviderType]string{entity.ProviderTypeGitHub: "gh1"},
	}
	require.NoError(t, memory.NewAccountRepository(store).Create(ctx, winner))

	txManager := &staleTxManager{inner: memory.NewTransactionManager(store)}
	linker := newIdentityLinker(txManager, time.Second, newDiscardLogger())

	account, err := linker.Resolve(ctx, googleIdentity("g1", "a@x.com"))
	require.NoError(t, err)

	assert.Equal(t, 2, txManager.calls)
	assert.Equal(t, winner.ID, account.ID, "the loser merges into the winner's account")
	assert.Equal(t, "g1", account.ExternalIdentities[entity.ProviderTypeGoogle])
}

// hangingTxManager stands in for a database that never answers; it only gives up with its context.
type hangingTxManager struct{}

func (hangingTxManager) Execute(ctx context.Context, _ func(repository.RepositoryFactory) error) error {
	<-ctx.Done()

	return ctx.Err()
}

func TestIdentityLinker_StoreTimeout(t *testing.T) {
	linker := newIdentityLinker(hangingTxManager{}, 50*time.Millisecond, newDiscardLogger())

	start := time.Now()
	_, err := linker.Resolve(context.Background(), googleIdentity("g1", "a@x.com"))

	require.ErrorIs(t, err, domainerrors.ErrStoreUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestIdentityLinker_CallerCancellationIsNotAStoreFailure(t *testing.T) {
	linker := newIdentityLinker(hangingTxManager{}, time.Minute, newDiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := linker.Resolve(ctx, googleIdentity("g1", "a@x.com"))
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domainerrors.ErrStoreUnavailable)
}
