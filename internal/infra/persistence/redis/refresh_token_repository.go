// Package redis implements the refresh token store on Redis. Each account owns one hash
// holding the token hash and expiry, and a reverse key maps the token hash back to the account.
// Every write is a single Lua script, so per-account updates are atomic without a global lock.
package redis

import (
	"context"
	"strconv"
	"time"

	"forum/internal/domain/entity"
	domainerrors "forum/internal/domain/errors"
	"forum/internal/domain/repository"
	"forum/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "forum:rt:"

	// purgeGrace keeps expired records around long enough for a read to observe and purge them.
	purgeGrace = 24 * time.Hour

	scanBatchSize = 200
)

const (
	fieldHash    = "hash"
	fieldExpires = "exp"
	fieldCreated = "created"
	fieldUpdated = "updated"
)

// KEYS[1] account key
// ARGV: token prefix, new hash, exp ms, now ms, key deadline ms, account id
var upsertLua = goredis.NewScript(`
local old = redis.call("HGET", KEYS[1], "hash")
if old then
  redis.call("DEL", ARGV[1] .. old)
end
local created = redis.call("HGET", KEYS[1], "created") or ARGV[4]
redis.call("DEL", KEYS[1])
redis.call("HSET", KEYS[1], "hash", ARGV[2], "exp", ARGV[3], "created", created, "updated", ARGV[4])
redis.call("PEXPIREAT", KEYS[1], ARGV[5])
redis.call("SET", ARGV[1] .. ARGV[2], ARGV[6])
redis.call("PEXPIREAT", ARGV[1] .. ARGV[2], ARGV[5])
return 1
`)

// KEYS[1] account key
// ARGV: token prefix, expected hash, new hash, exp ms, now ms, key deadline ms, account id
var rotateLua = goredis.NewScript(`
local current = redis.call("HGET", KEYS[1], "hash")
if current ~= ARGV[2] then
  return 0
end
redis.call("DEL", ARGV[1] .. current)
redis.call("HSET", KEYS[1], "hash", ARGV[3], "exp", ARGV[4], "updated", ARGV[5])
redis.call("PEXPIREAT", KEYS[1], ARGV[6])
redis.call("SET", ARGV[1] .. ARGV[3], ARGV[7])
redis.call("PEXPIREAT", ARGV[1] .. ARGV[3], ARGV[6])
return 1
`)

// KEYS[1] account key
// ARGV: token prefix, expected hash or "" for any
var deleteLua = goredis.NewScript(`
local current = redis.call("HGET", KEYS[1], "hash")
if not current then
  return 0
end
if ARGV[2] ~= "" and current ~= ARGV[2] then
  return 0
end
redis.call("DEL", KEYS[1], ARGV[1] .. current)
return 1
`)

// refreshTokenRepository implements repository.RefreshTokenRepository on Redis.
type refreshTokenRepository struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRefreshTokenRepository is the constructor for refreshTokenRepository.
func NewRefreshTokenRepository(client goredis.UniversalClient) repository.RefreshTokenRepository {
	return newRefreshTokenRepository(client, defaultKeyPrefix, time.Now)
}

func newRefreshTokenRepository(client goredis.UniversalClient, prefix string, now func() time.Time) *refreshTokenRepository {
	return &refreshTokenRepository{client: client, prefix: prefix, now: now}
}

func (repo *refreshTokenRepository) accountKey(accountID uuid.UUID) string {
	return repo.prefix + "acct:" + accountID.String()
}

func (repo *refreshTokenRepository) tokenPrefix() string {
	return repo.prefix + "tok:"
}

// Upsert replaces the account's record and its reverse index in one script.
func (repo *refreshTokenRepository) Upsert(ctx context.Context, token *entity.RefreshToken) error {
	now := repo.now()

	err := upsertLua.Run(ctx, repo.client,
		[]string{repo.accountKey(token.AccountID)},
		repo.tokenPrefix(),
		model.HashToken(token.Token),
		token.ExpiresAt.UnixMilli(),
		now.UnixMilli(),
		token.ExpiresAt.Add(purgeGrace).UnixMilli(),
		token.AccountID.String(),
	).Err()
	if err != nil {
		return storeError(err, "failed to upsert refresh token")
	}

	token.UpdatedAt = now
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}

	return nil
}

// Rotate swaps the token only while the account still holds oldToken.
func (repo *refreshTokenRepository) Rotate(ctx context.Context, oldToken string, next *entity.RefreshToken) error {
	now := repo.now()

	swapped, err := rotateLua.Run(ctx, repo.client,
		[]string{repo.accountKey(next.AccountID)},
		repo.tokenPrefix(),
		model.HashToken(oldToken),
		model.HashToken(next.Token),
		next.ExpiresAt.UnixMilli(),
		now.UnixMilli(),
		next.ExpiresAt.Add(purgeGrace).UnixMilli(),
		next.AccountID.String(),
	).Int64()
	if err != nil {
		return storeError(err, "failed to rotate refresh token")
	}
	if swapped == 0 {
		return repository.ErrRefreshTokenNotFound
	}

	next.UpdatedAt = now

	return nil
}

// FindByToken resolves the reverse index, then loads the account's record.
func (repo *refreshTokenRepository) FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error) {
	hash := model.HashToken(token)

	owner, err := repo.client.Get(ctx, repo.tokenPrefix()+hash).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, repository.ErrRefreshTokenNotFound
		}

		return nil, storeError(err, "failed to resolve refresh token")
	}

	accountID, err := uuid.Parse(owner)
	if err != nil {
		return nil, storeError(err, "corrupt refresh token index")
	}

	record, storedHash, err := repo.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	// The index can briefly outlive a rotation; the account hash is authoritative.
	if storedHash != hash {
		return nil, repository.ErrRefreshTokenNotFound
	}

	record.Token = token

	return repo.purgeIfExpired(ctx, record, storedHash)
}

// FindByAccountID loads the account's record. The raw token is not recoverable from storage.
func (repo *refreshTokenRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID) (*entity.RefreshToken, error) {
	record, storedHash, err := repo.load(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return repo.purgeIfExpired(ctx, record, storedHash)
}

// DeleteByAccountID removes the account's record and its reverse index.
func (repo *refreshTokenRepository) DeleteByAccountID(ctx context.Context, accountID uuid.UUID) error {
	err := deleteLua.Run(ctx, repo.client,
		[]string{repo.accountKey(accountID)},
		repo.tokenPrefix(),
		"",
	).Err()
	if err != nil {
		return storeError(err, "failed to delete refresh token")
	}

	return nil
}

// DeleteByToken removes the account's record only while its hash still matches token.
func (repo *refreshTokenRepository) DeleteByToken(ctx context.Context, accountID uuid.UUID, token string) error {
	err := deleteLua.Run(ctx, repo.client,
		[]string{repo.accountKey(accountID)},
		repo.tokenPrefix(),
		model.HashToken(token),
	).Err()
	if err != nil {
		return storeError(err, "failed to delete refresh token")
	}

	return nil
}

// DeleteExpired scans the account keys and purges every expired record.
func (repo *refreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	var (
		removed int64
		cursor  uint64
	)

	for {
		keys, nextCursor, err := repo.client.Scan(ctx, cursor, repo.prefix+"acct:*", scanBatchSize).Result()
		if err != nil {
			return removed, storeError(err, "failed to scan refresh tokens")
		}

		for _, key := range keys {
			ok, err := repo.purgeKeyIfExpired(ctx, key)
			if err != nil {
				return removed, err
			}
			if ok {
				removed++
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (repo *refreshTokenRepository) purgeKeyIfExpired(ctx context.Context, key string) (bool, error) {
	values, err := repo.client.HMGet(ctx, key, fieldHash, fieldExpires).Result()
	if err != nil {
		return false, storeError(err, "failed to read refresh token")
	}

	hash, _ := values[0].(string)
	rawExp, _ := values[1].(string)
	if hash == "" || rawExp == "" {
		return false, nil
	}

	expMillis, err := strconv.ParseInt(rawExp, 10, 64)
	if err != nil {
		return false, storeError(err, "corrupt refresh token expiry")
	}
	if repo.now().Before(time.UnixMilli(expMillis)) {
		return false, nil
	}

	deleted, err := deleteLua.Run(ctx, repo.client, []string{key}, repo.tokenPrefix(), hash).Int64()
	if err != nil {
		return false, storeError(err, "failed to purge expired refresh token")
	}

	return deleted == 1, nil
}

func (repo *refreshTokenRepository) load(ctx context.Context, accountID uuid.UUID) (*entity.RefreshToken, string, error) {
	fields, err := repo.client.HGetAll(ctx, repo.accountKey(accountID)).Result()
	if err != nil {
		return nil, "", storeError(err, "failed to find refresh token")
	}
	if len(fields) == 0 || fields[fieldHash] == "" {
		return nil, "", repository.ErrRefreshTokenNotFound
	}

	record := &entity.RefreshToken{AccountID: accountID}
	for field, target := range map[string]*time.Time{
		fieldExpires: &record.ExpiresAt,
		fieldCreated: &record.CreatedAt,
		fieldUpdated: &record.UpdatedAt,
	} {
		millis, err := strconv.ParseInt(fields[field], 10, 64)
		if err != nil {
			return nil, "", storeError(err, "corrupt refresh token field "+field)
		}
		*target = time.UnixMilli(millis).UTC()
	}

	return record, fields[fieldHash], nil
}

// purgeIfExpired deletes an expired record, matching on its hash so a concurrent rotation survives.
func (repo *refreshTokenRepository) purgeIfExpired(ctx context.Context, record *entity.RefreshToken, storedHash string) (*entity.RefreshToken, error) {
	if !record.IsExpired(repo.now()) {
		return record, nil
	}

	err := deleteLua.Run(ctx, repo.client,
		[]string{repo.accountKey(record.AccountID)},
		repo.tokenPrefix(),
		storedHash,
	).Err()
	if err != nil {
		return nil, storeError(err, "failed to purge expired refresh token")
	}

	return record, errors.WithStack(repository.ErrRefreshTokenExpired)
}

func storeError(err error, details string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		details += " (timed out)"
	}

	return domainerrors.NewDatabaseExecuteError(err, details)
}
