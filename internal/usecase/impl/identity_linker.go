package impl

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	deliverycontext "forum/internal/delivery/context"
	"forum/internal/domain/entity"
	domainerrors "forum/internal/domain/errors"
	"forum/internal/domain/repository"

	"github.com/pkg/errors"
)

const (
	maxHandleAttempts = 5
	handleSuffixMin   = 1000
	handleSuffixSpan  = 9000
	defaultHandleBase = "member"
)

// identityLinker maps a verified external identity onto exactly one account.
type identityLinker struct {
	txManager    repository.TransactionManager
	logger       *slog.Logger
	intN         func(n int) int
	now          func() time.Time
	storeTimeout time.Duration
}

func newIdentityLinker(txManager repository.TransactionManager, storeTimeout time.Duration, logger *slog.Logger) *identityLinker {
	return &identityLinker{
		txManager:    txManager,
		logger:       logger,
		intN:         rand.IntN,
		now:          time.Now,
		storeTimeout: storeTimeout,
	}
}

func (l *identityLinker) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, l.logger)
}

// Resolve returns the account for identity, linking or creating it as needed.
// Lookup order is provider link, then email, then a new account.
func (l *identityLinker) Resolve(ctx context.Context, identity *entity.ExternalIdentity) (*entity.Account, error) {
	if identity == nil || identity.Provider == "" || identity.ProviderID == "" || identity.Email == "" {
		return nil, domainerrors.ErrValidationFailed.WrapMessage("identity needs provider, provider id and email")
	}

	normalized := *identity
	normalized.Email = strings.ToLower(strings.TrimSpace(identity.Email))

	account, err := l.resolveOnce(ctx, &normalized)
	if errors.Is(err, repository.ErrAccountAlreadyExists) {
		// Another login created or linked the account first; the second pass merges into it.
		l.log(ctx).Info("Identity link raced, retrying",
			slog.String("provider", normalized.Provider.String()),
			slog.String("email", normalized.Email))

		account, err = l.resolveOnce(ctx, &normalized)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve external identity")
	}

	return account, nil
}

// resolveOnce runs one linking transaction under the store timeout.
func (l *identityLinker) resolveOnce(parent context.Context, identity *entity.ExternalIdentity) (*entity.Account, error) {
	ctx, cancel := withStoreTimeout(parent, l.storeTimeout)
	defer cancel()

	var resolved *entity.Account

	err := l.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		accountRepo := repoFactory.NewAccountRepository()

		account, err := accountRepo.FindByProvider(ctx, identity.Provider, identity.ProviderID)
		switch {
		case err == nil:
			account.ApplyProfile(identity)
			if err := accountRepo.Update(ctx, account); err != nil {
				return errors.Wrap(err, "failed to refresh linked account")
			}
			resolved = account

			return nil
		case !errors.Is(err, repository.ErrAccountNotFound):
			return errors.Wrap(err, "failed to find account by provider")
		}

		account, err = accountRepo.FindByEmail(ctx, identity.Email)
		switch {
		case err == nil:
			account.LinkProvider(identity.Provider, identity.ProviderID)
			account.ApplyProfile(identity)
			if err := accountRepo.Update(ctx, account); err != nil {
				return errors.Wrap(err, "failed to link provider to account")
			}
			l.log(ctx).Info("Linked provider to existing account",
				slog.String("provider", identity.Provider.String()),
				slog.Any("account_id", account.ID))
			resolved = account

			return nil
		case !errors.Is(err, repository.ErrAccountNotFound):
			return errors.Wrap(err, "failed to find account by email")
		}

		account, err = l.newAccount(ctx, accountRepo, identity)
		if err != nil {
			return err
		}
		if err := accountRepo.Create(ctx, account); err != nil {
			return errors.Wrap(err, "failed to create account")
		}
		l.log(ctx).Info("Created account for new identity",
			slog.String("provider", identity.Provider.String()),
			slog.Any("account_id", account.ID),
			slog.String("handle", account.Handle))
		resolved = account

		return nil
	})
	if err != nil {
		// A store that gave up on the deadline still reports unavailable, whatever it returned.
		if ctx.Err() != nil && parent.Err() == nil && !errors.Is(err, domainerrors.ErrStoreUnavailable) {
			return nil, domainerrors.NewStoreUnavailableError(errors.Wrap(err, "identity link timed out"))
		}

		return nil, err
	}

	return resolved, nil
}

func (l *identityLinker) newAccount(ctx context.Context, accountRepo repository.AccountRepository, identity *entity.ExternalIdentity) (*entity.Account, error) {
	handle, err := l.generateHandle(ctx, accountRepo, identity.Email)
	if err != nil {
		return nil, err
	}

	name := identity.Name
	if name == "" {
		name = handleBase(identity.Email)
	}

	account := &entity.Account{
		Email:     identity.Email,
		Name:      name,
		Handle:    handle,
		AvatarURL: identity.AvatarURL,
		Role:      entity.RoleUser,
	}
	account.LinkProvider(identity.Provider, identity.ProviderID)

	return account, nil
}

// generateHandle tries "<local>#NNNN" a few times, then falls back to a millisecond timestamp suffix.
func (l *identityLinker) generateHandle(ctx context.Context, accountRepo repository.AccountRepository, email string) (string, error) {
	base := handleBase(email)

	for range maxHandleAttempts {
		candidate := fmt.Sprintf("%s#%d", base, handleSuffixMin+l.intN(handleSuffixSpan))

		taken, err := accountRepo.ExistsByHandle(ctx, candidate)
		if err != nil {
			return "", errors.Wrap(err, "failed to check handle")
		}
		if !taken {
			return candidate, nil
		}
	}

	return fmt.Sprintf("%s#%d", base, l.now().UnixMilli()), nil
}

func handleBase(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local = strings.TrimSpace(local); local == "" {
		return defaultHandleBase
	}

	return local
}
