package di

import (
	"database/sql"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"

	"github.com/RezaEskandarii/cronfire/internal/ai"
	"github.com/RezaEskandarii/cronfire/internal/lock"
	"github.com/RezaEskandarii/cronfire/internal/store"
	"github.com/RezaEskandarii/cronfire/internal/store/memory"
	"github.com/RezaEskandarii/cronfire/internal/store/postgres"
	"github.com/RezaEskandarii/cronfire/types/config"
)

func createJobStore(driver config.StorageDriver, db *sql.DB, clk clock.Clock) (store.JobStore, error) {
	switch driver {
	case config.Postgres:
		return postgres.NewPostgresJobStore(db), nil
	case config.Memory:
		return memory.NewJobStore(clk), nil
	}
	return nil, fmt.Errorf("unsupported storage driver: %v", driver)
}

func createReportStore(driver config.StorageDriver, db *sql.DB, clk clock.Clock) (store.ReportStore, error) {
	switch driver {
	case config.Postgres:
		return postgres.NewPostgresReportStore(db), nil
	case config.Memory:
		return memory.NewReportStore(clk), nil
	}
	return nil, fmt.Errorf("unsupported storage driver: %v", driver)
}

// createDistributedLockManager returns nil when the postgres lock is chosen
// without a database; there is nothing to migrate in that case.
func createDistributedLockManager(driver config.LockDriver, db *sql.DB, redisClient *redis.Client) (lock.DistributedLockManager, error) {
	switch driver {
	case config.PostgresLock:
		if db == nil {
			return nil, nil
		}
		return lock.NewPostgresDistributedLockManager(db), nil
	case config.RedisLock:
		return lock.NewRedisDistributedLockManager(redisClient), nil
	}
	return nil, fmt.Errorf("unsupported lock driver: %v", driver)
}

// createProviders registers the configured AI provider. Without an API key
// the registry is empty and chat_message jobs fail with an unknown provider.
func createProviders(cfg config.AIConfig) (*ai.Registry, error) {
	registry := ai.NewRegistry(cfg.Provider)
	if cfg.APIKey == "" {
		return registry, nil
	}
	provider, err := ai.NewOpenAIProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize ai provider: %w", err)
	}
	registry.Register(provider)
	return registry, nil
}
