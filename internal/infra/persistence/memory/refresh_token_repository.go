// Package memory provides process-local stores for development and tests.
// Nothing survives a restart, and nothing is shared between instances.
package memory

import (
	"context"
	"hash/maphash"
	"sync"
	"time"

	"forum/internal/domain/entity"
	domainerrors "forum/internal/domain/errors"
	"forum/internal/domain/repository"
	"forum/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const shardCount = 64

type refreshRecord struct {
	tokenHash string
	expiresAt time.Time
	createdAt time.Time
	updatedAt time.Time
}

// refreshShard guards the records of the accounts hashed onto it.
type refreshShard struct {
	mu      sync.Mutex
	records map[uuid.UUID]*refreshRecord
}

// refreshTokenRepository stripes accounts over a fixed set of locks.
// Writes for one account serialize on its shard; other accounts proceed in parallel.
type refreshTokenRepository struct {
	seed   maphash.Seed
	shards [shardCount]refreshShard
	index  sync.Map // token hash -> uuid.UUID, advisory; the shard record is authoritative
	now    func() time.Time
}

// NewRefreshTokenRepository is the constructor for refreshTokenRepository.
func NewRefreshTokenRepository() repository.RefreshTokenRepository {
	return newRefreshTokenRepository(time.Now)
}

// NewRefreshTokenRepositoryWithClock is NewRefreshTokenRepository with an injected clock.
func NewRefreshTokenRepositoryWithClock(now func() time.Time) repository.RefreshTokenRepository {
	return newRefreshTokenRepository(now)
}

func newRefreshTokenRepository(now func() time.Time) *refreshTokenRepository {
	repo := &refreshTokenRepository{seed: maphash.MakeSeed(), now: now}
	for i := range repo.shards {
		repo.shards[i].records = make(map[uuid.UUID]*refreshRecord)
	}

	return repo
}

func (repo *refreshTokenRepository) shardFor(accountID uuid.UUID) *refreshShard {
	return &repo.shards[maphash.Bytes(repo.seed, accountID[:])%shardCount]
}

// Upsert replaces the account's record in place, or creates it.
func (repo *refreshTokenRepository) Upsert(ctx context.Context, token *entity.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return storeError(err)
	}

	now := repo.now()
	hash := model.HashToken(token.Token)
	shard := repo.shardFor(token.AccountID)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	createdAt := now
	if current, ok := shard.records[token.AccountID]; ok {
		createdAt = current.createdAt
		repo.index.Delete(current.tokenHash)
	}

	shard.records[token.AccountID] = &refreshRecord{
		tokenHash: hash,
		expiresAt: token.ExpiresAt,
		createdAt: createdAt,
		updatedAt: now,
	}
	repo.index.Store(hash, token.AccountID)

	token.CreatedAt = createdAt
	token.UpdatedAt = now

	return nil
}

// Rotate swaps the token only while the account still holds oldToken.
func (repo *refreshTokenRepository) Rotate(ctx context.Context, oldToken string, next *entity.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return storeError(err)
	}

	now := repo.now()
	oldHash := model.HashToken(oldToken)
	shard := repo.shardFor(next.AccountID)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	current, ok := shard.records[next.AccountID]
	if !ok || current.tokenHash != oldHash {
		return repository.ErrRefreshTokenNotFound
	}

	repo.index.Delete(current.tokenHash)
	current.tokenHash = model.HashToken(next.Token)
	current.expiresAt = next.ExpiresAt
	current.updatedAt = now
	repo.index.Store(current.tokenHash, next.AccountID)

	next.CreatedAt = current.createdAt
	next.UpdatedAt = now

	return nil
}

// FindByToken resolves the token through the index and checks it against the account's record.
func (repo *refreshTokenRepository) FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError(err)
	}

	hash := model.HashToken(token)
	owner, ok := repo.index.Load(hash)
	if !ok {
		return nil, repository.ErrRefreshTokenNotFound
	}

	record, err := repo.find(owner.(uuid.UUID), hash)
	if record != nil {
		record.Token = token
	}

	return record, err
}

// FindByAccountID retrieves the account's record.
func (repo *refreshTokenRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID) (*entity.RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError(err)
	}

	return repo.find(accountID, "")
}

// DeleteByAccountID removes the account's record.
func (repo *refreshTokenRepository) DeleteByAccountID(ctx context.Context, accountID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return storeError(err)
	}

	shard := repo.shardFor(accountID)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if current, ok := shard.records[accountID]; ok {
		repo.index.Delete(current.tokenHash)
		delete(shard.records, accountID)
	}

	return nil
}

// DeleteByToken removes the account's record while it still holds token.
func (repo *refreshTokenRepository) DeleteByToken(ctx context.Context, accountID uuid.UUID, token string) error {
	if err := ctx.Err(); err != nil {
		return storeError(err)
	}

	hash := model.HashToken(token)
	shard := repo.shardFor(accountID)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if current, ok := shard.records[accountID]; ok && current.tokenHash == hash {
		repo.index.Delete(hash)
		delete(shard.records, accountID)
	}

	return nil
}

// DeleteExpired sweeps the shards one at a time.
func (repo *refreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	var removed int64
	for i := range repo.shards {
		if err := ctx.Err(); err != nil {
			return removed, storeError(err)
		}

		shard := &repo.shards[i]
		now := repo.now()

		shard.mu.Lock()
		for accountID, current := range shard.records {
			if !now.Before(current.expiresAt) {
				repo.index.Delete(current.tokenHash)
				delete(shard.records, accountID)
				removed++
			}
		}
		shard.mu.Unlock()
	}

	return removed, nil
}

// find loads the record and purges it when expired. A non-empty wantHash must match the stored one.
func (repo *refreshTokenRepository) find(accountID uuid.UUID, wantHash string) (*entity.RefreshToken, error) {
	shard := repo.shardFor(accountID)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	current, ok := shard.records[accountID]
	if !ok || (wantHash != "" && current.tokenHash != wantHash) {
		return nil, repository.ErrRefreshTokenNotFound
	}

	record := &entity.RefreshToken{
		AccountID: accountID,
		ExpiresAt: current.expiresAt,
		CreatedAt: current.createdAt,
		UpdatedAt: current.updatedAt,
	}
	if !record.IsExpired(repo.now()) {
		return record, nil
	}

	repo.index.Delete(current.tokenHash)
	delete(shard.records, accountID)

	return record, errors.WithStack(repository.ErrRefreshTokenExpired)
}

// storeError reports a cancelled or timed out call the same way the networked stores do.
func storeError(err error) error {
	return domainerrors.NewStoreUnavailableError(errors.WithStack(err))
}
