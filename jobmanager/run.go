package jobmanager

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/RezaEskandarii/cronfire/client"
	"github.com/RezaEskandarii/cronfire/di"
	"github.com/RezaEskandarii/cronfire/internal/constants"
	"github.com/RezaEskandarii/cronfire/internal/db"
	"github.com/RezaEskandarii/cronfire/internal/lock"
	"github.com/RezaEskandarii/cronfire/types/config"
	"github.com/RezaEskandarii/cronfire/web"
)

// ShutdownTimeout bounds how long Run waits for in-flight executions.
const ShutdownTimeout = 30 * time.Second

// New initializes the scheduler process described by cfg.
//
// It connects the configured storage and lock backends, applies the Postgres
// migrations under the migration lock, wires the executor and scheduler, and
// starts the scheduler under the start-up lock so that concurrent processes
// do not backfill next runs at the same time.
func New(ctx context.Context, cfg *config.SchedulerConfig, log zerolog.Logger) (*di.JobDependency, error) {
	log.Info().
		Str("instance", cfg.Instance).
		Str("storage", cfg.StorageDriver.String()).
		Str("lock", cfg.LockDriver.String()).
		Int("gomaxprocs", runtime.GOMAXPROCS(0)).
		Msg("starting scheduler")

	deps, err := di.GetDependencies(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if deps.DB != nil && cfg.StorageDriver == config.Postgres {
		if err := db.Init(ctx, deps.DB, deps.LockMgr, log); err != nil {
			return nil, errors.Join(err, deps.Close())
		}
	}

	if err := startScheduler(ctx, deps.Scheduler, deps.LockMgr); err != nil {
		return nil, errors.Join(err, deps.Close())
	}
	return deps, nil
}

func startScheduler(ctx context.Context, scheduler *client.Scheduler, lockMgr lock.DistributedLockManager) error {
	if lockMgr == nil {
		return scheduler.Start(ctx)
	}
	if err := lockMgr.Acquire(ctx, constants.StartSchedulerLock); err != nil {
		return fmt.Errorf("acquire start lock: %w", err)
	}
	startErr := scheduler.Start(ctx)
	if err := lockMgr.Release(context.WithoutCancel(ctx), constants.StartSchedulerLock); err != nil {
		return errors.Join(startErr, fmt.Errorf("release start lock: %w", err))
	}
	return startErr
}

// Run starts the scheduler and blocks until ctx is cancelled, then shuts it
// down gracefully and closes every connection.
func Run(ctx context.Context, cfg *config.SchedulerConfig, log zerolog.Logger) error {
	deps, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}

	var adminErr chan error
	if cfg.Admin.Addr != "" {
		adminErr = make(chan error, 1)
		api := web.NewRouteHandler(deps.JobStore, deps.Scheduler, cfg.Admin.SecretKey, cfg.Admin.Addr, log)
		go func() {
			adminErr <- api.Serve(ctx)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-adminErr:
		log.Error().Err(runErr).Msg("operator api stopped")
	}
	log.Info().Msg("shutting down scheduler")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	shutdownErr := deps.Scheduler.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		log.Warn().Err(shutdownErr).Msg("scheduler did not drain in time")
	}
	return errors.Join(runErr, shutdownErr, deps.Close())
}
