// Package persistence selects the store backends at startup.
package persistence

import (
	"log/slog"

	"forum/config"
	"forum/internal/domain/repository"
	"forum/internal/infra/persistence/memory"
	"forum/internal/infra/persistence/postgres"
	"forum/internal/infra/persistence/redis"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// StoreParams holds dependencies for the stores, injected by Fx.
type StoreParams struct {
	fx.In

	Lc     fx.Lifecycle
	Config *config.Config
	Logger *slog.Logger
}

// Stores are the repositories the auth core runs on.
type Stores struct {
	fx.Out

	AccountRepo      repository.AccountRepository
	RefreshTokenRepo repository.RefreshTokenRepository
	TxManager        repository.TransactionManager
}

// NewStores builds the backend named by refreshStore.backend.
// Accounts live in postgres for both the postgres and redis backends; memory keeps everything in process.
func NewStores(params StoreParams) (Stores, error) {
	backend := config.StoreBackendPostgres
	if params.Config.RefreshStore != nil && params.Config.RefreshStore.Backend != "" {
		backend = params.Config.RefreshStore.Backend
	}
	logger := params.Logger.With(slog.String("backend", backend))

	switch backend {
	case config.StoreBackendMemory:
		logger.Warn("Using in-memory stores, sessions are lost on restart")
		store := memory.NewAccountStore()

		return Stores{
			AccountRepo:      memory.NewAccountRepository(store),
			RefreshTokenRepo: memory.NewRefreshTokenRepository(),
			TxManager:        memory.NewTransactionManager(store),
		}, nil

	case config.StoreBackendPostgres, config.StoreBackendRedis:
		db, err := postgres.New(postgres.Params{
			Lifecycle: params.Lc,
			Config:    params.Config,
			Logger:    params.Logger,
		})
		if err != nil {
			return Stores{}, err
		}

		stores := Stores{
			AccountRepo:      postgres.NewAccountRepository(db),
			RefreshTokenRepo: postgres.NewRefreshTokenRepository(db),
			TxManager:        postgres.NewTransactionManager(db),
		}
		if backend == config.StoreBackendRedis {
			client, err := redis.NewClient(redis.Params{
				Lifecycle: params.Lc,
				Config:    params.Config,
				Logger:    params.Logger,
			})
			if err != nil {
				return Stores{}, err
			}
			stores.RefreshTokenRepo = redis.NewRefreshTokenRepository(client)
		}
		logger.Info("Using persistent stores")

		return stores, nil

	default:
		return Stores{}, errors.Errorf("unknown refresh store backend: %s", backend)
	}
}
