package postgres

import (
	"context"
	"time"

	"forum/internal/domain/entity"
	domainerrors "forum/internal/domain/errors"
	"forum/internal/domain/repository"
	"forum/internal/infra/persistence/model"
	"forum/internal/infra/persistence/postgres/query"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gen"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// accountRepository implements the repository.AccountRepository interface.
type accountRepository struct {
	q *query.Query
}

// NewAccountRepository is the constructor for accountRepository.
func NewAccountRepository(db *gorm.DB) repository.AccountRepository {
	return &accountRepository{
		q: query.Use(db),
	}
}

// FindByID retrieves a single account with its provider links.
func (repo *accountRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	return repo.findOne(ctx, repo.q.AccountModel.ID.Eq(id))
}

// FindByEmail retrieves a single account by its email address.
func (repo *accountRepository) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return repo.findOne(ctx, repo.q.AccountModel.Email.Eq(email))
}

// FindByProvider resolves the provider link first, then loads the owning account.
func (repo *accountRepository) FindByProvider(ctx context.Context, provider entity.ProviderType, providerID string) (*entity.Account, error) {
	l := repo.q.AccountIdentityModel
	link, err := l.WithContext(ctx).
		Where(l.Provider.Eq(provider.String()), l.ProviderUserID.Eq(providerID)).
		First()
	if err != nil {
		if isRecordNotFound(err) {
			return nil, repository.ErrAccountNotFound
		}

		return nil, storeError(err, "failed to find provider link")
	}

	return repo.FindByID(ctx, link.AccountID)
}

// ExistsByHandle reports whether a display handle is already taken.
func (repo *accountRepository) ExistsByHandle(ctx context.Context, handle string) (bool, error) {
	a := repo.q.AccountModel
	count, err := a.WithContext(ctx).Where(a.Handle.Eq(handle)).Count()
	if err != nil {
		return false, storeError(err, "failed to check handle")
	}

	return count > 0, nil
}

// Create persists a new account and its provider links.
func (repo *accountRepository) Create(ctx context.Context, account *entity.Account) error {
	if account.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return errors.Wrap(err, "failed to generate account id")
		}
		account.ID = id
	}

	accountM := fromAccountDomain(account)

	// Links are written explicitly so a duplicate provider link surfaces instead of being skipped.
	links := accountM.Identities
	accountM.Identities = nil

	if err := repo.q.AccountModel.WithContext(ctx).Create(accountM); err != nil {
		if isUniqueConstraintViolation(err) {
			return errors.Wrap(repository.ErrAccountAlreadyExists, "email or handle already taken")
		}

		return storeError(err, "failed to create account")
	}

	if err := repo.upsertLinks(ctx, account.ID, links); err != nil {
		return err
	}

	account.CreatedAt = accountM.CreatedAt
	account.UpdatedAt = accountM.UpdatedAt

	return nil
}

// Update saves the profile fields and upserts every provider link.
func (repo *accountRepository) Update(ctx context.Context, account *entity.Account) error {
	now := time.Now()

	a := repo.q.AccountModel
	result, err := a.WithContext(ctx).
		Where(a.ID.Eq(account.ID)).
		UpdateSimple(
			a.Name.Value(account.Name),
			a.AvatarURL.Value(account.AvatarURL),
			a.Role.Value(account.Role.String()),
			a.UpdatedAt.Value(now),
		)
	if err != nil {
		return storeError(err, "failed to update account")
	}
	if result.RowsAffected == 0 {
		return repository.ErrAccountNotFound
	}

	if err := repo.upsertLinks(ctx, account.ID, fromIdentitiesDomain(account)); err != nil {
		return err
	}

	account.UpdatedAt = now

	return nil
}

func (repo *accountRepository) upsertLinks(ctx context.Context, accountID uuid.UUID, links []model.AccountIdentityModel) error {
	if len(links) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]*model.AccountIdentityModel, 0, len(links))
	for i := range links {
		links[i].AccountID = accountID
		links[i].UpdatedAt = now
		if links[i].ID == uuid.Nil {
			links[i].ID = uuid.New()
		}
		rows = append(rows, &links[i])
	}

	l := repo.q.AccountIdentityModel
	err := l.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: string(l.AccountID.ColumnName())},
				{Name: string(l.Provider.ColumnName())},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				string(l.ProviderUserID.ColumnName()),
				string(l.UpdatedAt.ColumnName()),
			}),
		}).
		Create(rows...)
	if err != nil {
		if isUniqueConstraintViolation(err) {
			return errors.Wrap(repository.ErrAccountAlreadyExists, "provider link belongs to another account")
		}

		return storeError(err, "failed to save provider links")
	}

	return nil
}

func (repo *accountRepository) findOne(ctx context.Context, conds ...gen.Condition) (*entity.Account, error) {
	a := repo.q.AccountModel
	accountM, err := a.WithContext(ctx).
		Preload(a.Identities).
		Where(conds...).
		First()
	if err != nil {
		if isRecordNotFound(err) {
			return nil, repository.ErrAccountNotFound
		}

		return nil, storeError(err, "failed to find account")
	}

	return toAccountDomain(accountM), nil
}

func storeError(err error, details string) error {
	if isTimeout(err) {
		details += " (timed out)"
	}

	return domainerrors.NewDatabaseExecuteError(err, details)
}

// --- Mapper Functions ---

func toAccountDomain(data *model.AccountModel) *entity.Account {
	if data == nil {
		return nil
	}

	account := &entity.Account{
		ID:                 data.ID,
		Email:              data.Email,
		Name:               data.Name,
		Handle:             data.Handle,
		AvatarURL:          data.AvatarURL,
		Role:               entity.Role(data.Role),
		ExternalIdentities: make(map[entity.ProviderType]string, len(data.Identities)),
		CreatedAt:          data.CreatedAt,
		UpdatedAt:          data.UpdatedAt,
	}
	for _, link := range data.Identities {
		account.ExternalIdentities[entity.ProviderType(link.Provider)] = link.ProviderUserID
	}

	return account
}

func fromAccountDomain(data *entity.Account) *model.AccountModel {
	return &model.AccountModel{
		ID:         data.ID,
		Email:      data.Email,
		Name:       data.Name,
		Handle:     data.Handle,
		AvatarURL:  data.AvatarURL,
		Role:       data.Role.String(),
		CreatedAt:  data.CreatedAt,
		UpdatedAt:  data.UpdatedAt,
		Identities: fromIdentitiesDomain(data),
	}
}

func fromIdentitiesDomain(data *entity.Account) []model.AccountIdentityModel {
	links := make([]model.AccountIdentityModel, 0, len(data.ExternalIdentities))
	for provider, providerID := range data.ExternalIdentities {
		links = append(links, model.AccountIdentityModel{
			AccountID:      data.ID,
			Provider:       provider.String(),
			ProviderUserID: providerID,
		})
	}

	return links
}
