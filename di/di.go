package di

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/RezaEskandarii/cronfire/types/config"
)

// GetDependencies opens the configured connections and wires every
// component of the scheduler process.
func GetDependencies(ctx context.Context, cfg *config.SchedulerConfig, log zerolog.Logger) (*JobDependency, error) {
	sqlDB, redisClient, err := getStorageConnections(ctx, cfg)
	if err != nil {
		return nil, err
	}

	deps, err := createJobDependency(cfg, sqlDB, redisClient, log)
	if err != nil {
		closeOnError(sqlDB, redisClient)
		return nil, err
	}
	return deps, nil
}

// getStorageConnections opens Postgres when it backs the stores or the lock
// and Redis when it backs the lock.
func getStorageConnections(ctx context.Context, cfg *config.SchedulerConfig) (*sql.DB, *redis.Client, error) {
	var sqlDB *sql.DB
	var redisClient *redis.Client
	var err error

	if cfg.StorageDriver == config.Postgres || cfg.PostgresConfig.ConnectionUrl != "" {
		if sqlDB, err = getPG(ctx, cfg.PostgresConfig.ConnectionUrl); err != nil {
			return nil, nil, err
		}
	}
	if cfg.LockDriver == config.RedisLock {
		if redisClient, err = getRedis(ctx, cfg.RedisConfig); err != nil {
			closeOnError(sqlDB, nil)
			return nil, nil, err
		}
	}
	return sqlDB, redisClient, nil
}
