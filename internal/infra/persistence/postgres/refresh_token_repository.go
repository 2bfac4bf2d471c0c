// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
package postgres

import (
	"context"
	"time"

	"forum/internal/domain/entity"
	"forum/internal/domain/repository"
	"forum/internal/infra/persistence/model"
	"forum/internal/infra/persistence/postgres/query"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gen"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// refreshTokenRepository implements repository.RefreshTokenRepository on a table keyed by account_id.
// Every write is a single statement, so per-account linearizability comes from the row itself.
type refreshTokenRepository struct {
	q   *query.Query
	now func() time.Time
}

// NewRefreshTokenRepository is the constructor for refreshTokenRepository.
func NewRefreshTokenRepository(db *gorm.DB) repository.RefreshTokenRepository {
	return newRefreshTokenRepository(db, time.Now)
}

func newRefreshTokenRepository(db *gorm.DB, now func() time.Time) *refreshTokenRepository {
	return &refreshTokenRepository{
		q:   query.Use(db),
		now: now,
	}
}

// Upsert replaces the account's record in place, or creates it.
func (repo *refreshTokenRepository) Upsert(ctx context.Context, token *entity.RefreshToken) error {
	now := repo.now()
	tokenM := fromRefreshTokenDomain(token)
	tokenM.CreatedAt = now
	tokenM.UpdatedAt = now

	t := repo.q.RefreshTokenModel
	err := t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: string(t.AccountID.ColumnName())}},
			DoUpdates: clause.AssignmentColumns([]string{
				string(t.TokenHash.ColumnName()),
				string(t.ExpiresAt.ColumnName()),
				string(t.UpdatedAt.ColumnName()),
			}),
		}).
		Create(tokenM)
	if err != nil {
		return storeError(err, "failed to upsert refresh token")
	}

	token.UpdatedAt = now
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}

	return nil
}

// Rotate swaps the token only while the row still holds oldToken.
func (repo *refreshTokenRepository) Rotate(ctx context.Context, oldToken string, next *entity.RefreshToken) error {
	now := repo.now()

	t := repo.q.RefreshTokenModel
	result, err := t.WithContext(ctx).
		Where(t.AccountID.Eq(next.AccountID), t.TokenHash.Eq(model.HashToken(oldToken))).
		UpdateSimple(
			t.TokenHash.Value(model.HashToken(next.Token)),
			t.ExpiresAt.Value(next.ExpiresAt),
			t.UpdatedAt.Value(now),
		)
	if err != nil {
		return storeError(err, "failed to rotate refresh token")
	}
	if result.RowsAffected == 0 {
		return repository.ErrRefreshTokenNotFound
	}

	next.UpdatedAt = now

	return nil
}

// FindByToken retrieves the record holding the raw token value.
func (repo *refreshTokenRepository) FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error) {
	record, err := repo.findOne(ctx, repo.q.RefreshTokenModel.TokenHash.Eq(model.HashToken(token)))
	if record != nil {
		record.Token = token
	}

	return record, err
}

// FindByAccountID retrieves the account's record. The raw token is not recoverable from storage.
func (repo *refreshTokenRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID) (*entity.RefreshToken, error) {
	return repo.findOne(ctx, repo.q.RefreshTokenModel.AccountID.Eq(accountID))
}

// DeleteByAccountID removes the account's record.
func (repo *refreshTokenRepository) DeleteByAccountID(ctx context.Context, accountID uuid.UUID) error {
	t := repo.q.RefreshTokenModel
	if _, err := t.WithContext(ctx).Where(t.AccountID.Eq(accountID)).Delete(); err != nil {
		return storeError(err, "failed to delete refresh token")
	}

	return nil
}

// DeleteByToken removes the account's record only while it still holds token.
func (repo *refreshTokenRepository) DeleteByToken(ctx context.Context, accountID uuid.UUID, token string) error {
	return repo.deleteMatching(ctx, accountID, model.HashToken(token), "failed to delete refresh token")
}

// DeleteExpired removes every record whose expiry has passed.
func (repo *refreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	t := repo.q.RefreshTokenModel
	result, err := t.WithContext(ctx).Where(t.ExpiresAt.Lte(repo.now())).Delete()
	if err != nil {
		return 0, storeError(err, "failed to delete expired refresh tokens")
	}

	return result.RowsAffected, nil
}

// findOne loads a record and purges it when expired.
func (repo *refreshTokenRepository) findOne(ctx context.Context, conds ...gen.Condition) (*entity.RefreshToken, error) {
	tokenM, err := repo.q.RefreshTokenModel.WithContext(ctx).Where(conds...).First()
	if err != nil {
		if isRecordNotFound(err) {
			return nil, repository.ErrRefreshTokenNotFound
		}

		return nil, storeError(err, "failed to find refresh token")
	}

	record := toRefreshTokenDomain(tokenM)
	if !record.IsExpired(repo.now()) {
		return record, nil
	}

	// Match on the hash too so a concurrent rotation is never deleted by a stale read.
	if err := repo.deleteMatching(ctx, tokenM.AccountID, tokenM.TokenHash, "failed to purge expired refresh token"); err != nil {
		return nil, err
	}

	return record, errors.WithStack(repository.ErrRefreshTokenExpired)
}

func (repo *refreshTokenRepository) deleteMatching(ctx context.Context, accountID uuid.UUID, tokenHash, details string) error {
	t := repo.q.RefreshTokenModel
	_, err := t.WithContext(ctx).
		Where(t.AccountID.Eq(accountID), t.TokenHash.Eq(tokenHash)).
		Delete()
	if err != nil {
		return storeError(err, details)
	}

	return nil
}

// --- Mapper Functions ---

func toRefreshTokenDomain(data *model.RefreshTokenModel) *entity.RefreshToken {
	return &entity.RefreshToken{
		AccountID: data.AccountID,
		ExpiresAt: data.ExpiresAt,
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.UpdatedAt,
	}
}

func fromRefreshTokenDomain(data *entity.RefreshToken) *model.RefreshTokenModel {
	return &model.RefreshTokenModel{
		AccountID: data.AccountID,
		TokenHash: model.HashToken(data.Token),
		ExpiresAt: data.ExpiresAt,
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.UpdatedAt,
	}
}
