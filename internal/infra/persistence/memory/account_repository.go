package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"forum/internal/domain/entity"
	"forum/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type providerKey struct {
	provider   entity.ProviderType
	providerID string
}

type accountTables struct {
	byID       map[uuid.UUID]*entity.Account
	byEmail    map[string]uuid.UUID
	byHandle   map[string]uuid.UUID
	byProvider map[providerKey]uuid.UUID
}

func newAccountTables() accountTables {
	return accountTables{
		byID:       make(map[uuid.UUID]*entity.Account),
		byEmail:    make(map[string]uuid.UUID),
		byHandle:   make(map[string]uuid.UUID),
		byProvider: make(map[providerKey]uuid.UUID),
	}
}

func (t accountTables) clone() accountTables {
	out := accountTables{
		byID:       make(map[uuid.UUID]*entity.Account, len(t.byID)),
		byEmail:    maps.Clone(t.byEmail),
		byHandle:   maps.Clone(t.byHandle),
		byProvider: maps.Clone(t.byProvider),
	}
	for id, account := range t.byID {
		out.byID[id] = cloneAccount(account)
	}

	return out
}

// AccountStore holds accounts for the memory backend. Transactions take the write lock
// for their whole duration and restore a snapshot on failure.
type AccountStore struct {
	mu     sync.RWMutex
	tables accountTables
}

// NewAccountStore is the constructor for AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{tables: newAccountTables()}
}

// accountRepository implements repository.AccountRepository. Inside a transaction
// the lock is already held and locked is true.
type accountRepository struct {
	store  *AccountStore
	locked bool
}

// NewAccountRepository is the constructor for accountRepository.
func NewAccountRepository(store *AccountStore) repository.AccountRepository {
	return &accountRepository{store: store}
}

func (repo *accountRepository) read(fn func(t accountTables) error) error {
	if !repo.locked {
		repo.store.mu.RLock()
		defer repo.store.mu.RUnlock()
	}

	return fn(repo.store.tables)
}

func (repo *accountRepository) write(fn func(t accountTables) error) error {
	if !repo.locked {
		repo.store.mu.Lock()
		defer repo.store.mu.Unlock()
	}

	return fn(repo.store.tables)
}

// FindByID retrieves a single account by its unique ID.
func (repo *accountRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError(err)
	}

	var found *entity.Account
	err := repo.read(func(t accountTables) error {
		account, ok := t.byID[id]
		if !ok {
			return repository.ErrAccountNotFound
		}
		found = cloneAccount(account)

		return nil
	})

	return found, err
}

// FindByEmail retrieves a single account by its email address.
func (repo *accountRepository) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return repo.findVia(ctx, func(t accountTables) (uuid.UUID, bool) {
		id, ok := t.byEmail[email]

		return id, ok
	})
}

// FindByProvider retrieves the account linked to the given provider user ID.
func (repo *accountRepository) FindByProvider(ctx context.Context, provider entity.ProviderType, providerID string) (*entity.Account, error) {
	return repo.findVia(ctx, func(t accountTables) (uuid.UUID, bool) {
		id, ok := t.byProvider[providerKey{provider: provider, providerID: providerID}]

		return id, ok
	})
}

// ExistsByHandle reports whether a display handle is already taken.
func (repo *accountRepository) ExistsByHandle(ctx context.Context, handle string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, storeError(err)
	}

	var taken bool
	_ = repo.read(func(t accountTables) error {
		_, taken = t.byHandle[handle]

		return nil
	})

	return taken, nil
}

// Create persists a new account together with its provider links.
func (repo *accountRepository) Create(ctx context.Context, account *entity.Account) error {
	if err := ctx.Err(); err != nil {
		return storeError(err)
	}

	if account.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return errors.Wrap(err, "failed to generate account id")
		}
		account.ID = id
	}

	return repo.write(func(t accountTables) error {
		if _, ok := t.byID[account.ID]; ok {
			return errors.Wrap(repository.ErrAccountAlreadyExists, "id already taken")
		}
		if _, ok := t.byEmail[account.Email]; ok {
			return errors.Wrap(repository.ErrAccountAlreadyExists, "email already taken")
		}
		if _, ok := t.byHandle[account.Handle]; ok {
			return errors.Wrap(repository.ErrAccountAlreadyExists, "handle already taken")
		}
		if err := checkLinks(t, account); err != nil {
			return err
		}

		now := time.Now()
		account.CreatedAt = now
		account.UpdatedAt = now

		t.byID[account.ID] = cloneAccount(account)
		t.byEmail[account.Email] = account.ID
		t.byHandle[account.Handle] = account.ID
		for provider, providerID := range account.ExternalIdentities {
			t.byProvider[providerKey{provider: provider, providerID: providerID}] = account.ID
		}

		return nil
	})
}

// Update saves profile fields and upserts provider links.
func (repo *accountRepository) Update(ctx context.Context, account *entity.Account) error {
	if err := ctx.Err(); err != nil {
		return storeError(err)
	}

	return repo.write(func(t accountTables) error {
		stored, ok := t.byID[account.ID]
		if !ok {
			return repository.ErrAccountNotFound
		}
		if err := checkLinks(t, account); err != nil {
			return err
		}

		stored.Name = account.Name
		stored.AvatarURL = account.AvatarURL
		stored.Role = account.Role
		stored.UpdatedAt = time.Now()

		for provider, providerID := range account.ExternalIdentities {
			if previous, linked := stored.ExternalIdentities[provider]; linked && previous != providerID {
				delete(t.byProvider, providerKey{provider: provider, providerID: previous})
			}
			if stored.ExternalIdentities == nil {
				stored.ExternalIdentities = make(map[entity.ProviderType]string)
			}
			stored.ExternalIdentities[provider] = providerID
			t.byProvider[providerKey{provider: provider, providerID: providerID}] = account.ID
		}

		account.UpdatedAt = stored.UpdatedAt

		return nil
	})
}

func (repo *accountRepository) findVia(ctx context.Context, lookup func(t accountTables) (uuid.UUID, bool)) (*entity.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError(err)
	}

	var found *entity.Account
	err := repo.read(func(t accountTables) error {
		id, ok := lookup(t)
		if !ok {
			return repository.ErrAccountNotFound
		}
		found = cloneAccount(t.byID[id])

		return nil
	})

	return found, err
}

// checkLinks rejects provider links already owned by another account.
func checkLinks(t accountTables, account *entity.Account) error {
	for provider, providerID := range account.ExternalIdentities {
		owner, ok := t.byProvider[providerKey{provider: provider, providerID: providerID}]
		if ok && owner != account.ID {
			return errors.Wrap(repository.ErrAccountAlreadyExists, "provider link belongs to another account")
		}
	}

	return nil
}

func cloneAccount(account *entity.Account) *entity.Account {
	if account == nil {
		return nil
	}

	out := *account
	out.ExternalIdentities = maps.Clone(account.ExternalIdentities)

	return &out
}

// transactionManager runs memory transactions one at a time.
type transactionManager struct {
	store *AccountStore
}

// NewTransactionManager creates a TransactionManager over the memory account store.
func NewTransactionManager(store *AccountStore) repository.TransactionManager {
	return &transactionManager{store: store}
}

// Execute runs fn under the store's write lock and rolls back to a snapshot when fn fails.
func (tm *transactionManager) Execute(ctx context.Context, fn func(txRepoFactory repository.RepositoryFactory) error) error {
	if err := ctx.Err(); err != nil {
		return storeError(err)
	}

	tm.store.mu.Lock()
	defer tm.store.mu.Unlock()

	snapshot := tm.store.tables.clone()
	if err := fn(&repositoryFactory{store: tm.store}); err != nil {
		tm.store.tables = snapshot

		return err
	}

	return nil
}

type repositoryFactory struct {
	store *AccountStore
}

// NewAccountRepository returns a repository that relies on the transaction's lock.
func (f *repositoryFactory) NewAccountRepository() repository.AccountRepository {
	return &accountRepository{store: f.store, locked: true}
}
