// Package worker runs background jobs next to the API server.
package worker

import (
	"context"
	"log/slog"
	"time"

	"forum/config"
	"forum/internal/delivery"
	"forum/internal/domain/repository"

	"go.uber.org/fx"
)

// refreshTokenReaper periodically deletes expired refresh records.
// Reads already purge lazily; this only bounds how long dead rows linger.
type refreshTokenReaper struct {
	repo     repository.RefreshTokenRepository
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// ReaperParams holds dependencies for the reaper, injected by Fx.
type ReaperParams struct {
	fx.In

	Lc               fx.Lifecycle
	Cfg              *config.Config
	Logger           *slog.Logger
	RefreshTokenRepo repository.RefreshTokenRepository
}

// NewRefreshTokenReaper creates the reaper. A zero refreshStore.reapInterval makes it a no-op.
func NewRefreshTokenReaper(params ReaperParams) delivery.Delivery {
	var interval, timeout time.Duration
	if params.Cfg.RefreshStore != nil {
		interval = params.Cfg.RefreshStore.ReapInterval
		timeout = params.Cfg.RefreshStore.Timeout
	}

	reaper := &refreshTokenReaper{
		repo:     params.RefreshTokenRepo,
		logger:   params.Logger,
		interval: interval,
		timeout:  timeout,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	params.Lc.Append(fx.Hook{
		OnStop: reaper.shutdown,
	})

	return reaper
}

// Serve blocks until the application stops.
func (r *refreshTokenReaper) Serve(ctx context.Context) error {
	defer close(r.done)

	if r.interval <= 0 {
		r.logger.Info("Refresh token reaper disabled")

		return nil
	}

	r.logger.Info("Starting refresh token reaper", slog.Duration("interval", r.interval))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.stop:
			return nil
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

func (r *refreshTokenReaper) reap(ctx context.Context) {
	reapCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		reapCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	removed, err := r.repo.DeleteExpired(reapCtx)
	if err != nil {
		r.logger.Error("Failed to delete expired refresh tokens", slog.Any("error", err))

		return
	}
	if removed > 0 {
		r.logger.Info("Deleted expired refresh tokens", slog.Int64("count", removed))
	}
}

func (r *refreshTokenReaper) shutdown(ctx context.Context) error {
	close(r.stop)

	select {
	case <-r.done:
	case <-ctx.Done():
	}

	return nil
}
