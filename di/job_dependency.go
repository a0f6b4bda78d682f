package di

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/RezaEskandarii/cronfire/client"
	"github.com/RezaEskandarii/cronfire/internal/ai"
	"github.com/RezaEskandarii/cronfire/internal/lock"
	"github.com/RezaEskandarii/cronfire/internal/message_broaker"
	"github.com/RezaEskandarii/cronfire/internal/store"
	"github.com/RezaEskandarii/cronfire/pgk/webhook"
	"github.com/RezaEskandarii/cronfire/types/config"
)

type JobDependency struct {
	DB            *sql.DB
	Redis         *redis.Client
	JobStore      store.JobStore
	ReportStore   store.ReportStore
	LockMgr       lock.DistributedLockManager
	MessageBroker message_broaker.MessageBroker
	Providers     *ai.Registry
	Executor      *client.JobExecutor
	Scheduler     *client.Scheduler
}

// createJobDependency builds the stores, lock manager, optional message
// broker, executor and scheduler on top of already opened connections.
func createJobDependency(cfg *config.SchedulerConfig, sqlDB *sql.DB, redisClient *redis.Client, log zerolog.Logger) (*JobDependency, error) {
	clk := clock.New()

	jobStore, err := createJobStore(cfg.StorageDriver, sqlDB, clk)
	if err != nil {
		return nil, err
	}
	reportStore, err := createReportStore(cfg.StorageDriver, sqlDB, clk)
	if err != nil {
		return nil, err
	}
	lockMgr, err := createDistributedLockManager(cfg.LockDriver, sqlDB, redisClient)
	if err != nil {
		return nil, err
	}
	providers, err := createProviders(cfg.AI)
	if err != nil {
		return nil, err
	}

	deps := &JobDependency{
		DB:          sqlDB,
		Redis:       redisClient,
		JobStore:    jobStore,
		ReportStore: reportStore,
		LockMgr:     lockMgr,
		Providers:   providers,
	}

	opts := []client.ExecutorOption{client.WithLocation(cfg.Location)}
	if cfg.PublishEvents {
		broker, err := message_broaker.NewRabbitMQ(*cfg.RabbitMQConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		deps.MessageBroker = broker
		opts = append(opts, client.WithPublisher(client.NewBrokerPublisher(broker)))
	}

	validator := webhook.NewValidator(cfg.WebhookAllowedHosts)
	deps.Executor = client.NewJobExecutor(jobStore, reportStore, providers, validator, log, opts...)
	deps.Scheduler = client.NewScheduler(jobStore, deps.Executor, cfg, log)
	return deps, nil
}

// Close releases every connection the dependencies hold.
func (d *JobDependency) Close() error {
	var errs []error
	if d.MessageBroker != nil {
		errs = append(errs, d.MessageBroker.Close())
	}
	if d.JobStore != nil {
		errs = append(errs, d.JobStore.Close())
	}
	if d.DB != nil {
		errs = append(errs, d.DB.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	return errors.Join(errs...)
}

// closeOnError is used while dependencies are still being built.
func closeOnError(sqlDB *sql.DB, redisClient *redis.Client) {
	if sqlDB != nil {
		_ = sqlDB.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
