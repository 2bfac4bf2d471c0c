package main

import (
	"context"
	"log/slog"
	"os"

	"forum/config"
	"forum/internal/delivery"
	"forum/internal/delivery/api"
	"forum/internal/delivery/api/cookie"
	"forum/internal/delivery/api/middleware"
	"forum/internal/delivery/api/router/handler"
	"forum/internal/delivery/worker"
	"forum/internal/infra/auth"
	"forum/internal/infra/auth/github"
	"forum/internal/infra/auth/google"
	logs "forum/internal/infra/log"
	"forum/internal/infra/persistence"
	"forum/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			persistence.NewStores,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			auth.NewJWTService,
			fx.Annotate(
				google.NewAuthService,
				fx.ResultTags(`group:"oauth"`),
			),
			fx.Annotate(
				github.NewAuthService,
				fx.ResultTags(`group:"oauth"`),
			),
		),
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewAuthService,
			impl.NewAccountService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			cookie.NewTransport,
			middleware.NewAuthMiddleware,
			middleware.NewReissueRateLimiter,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewAuthHandler,
			handler.NewAccountHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				api.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
			fx.Annotate(
				worker.NewRefreshTokenReaper,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))
				os.Exit(1)
			}
		}()
	}
}
