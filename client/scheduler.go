package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alecthomas/types/optional"
	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/RezaEskandarii/cronfire/internal/logging"
	"github.com/RezaEskandarii/cronfire/internal/store"
	"github.com/RezaEskandarii/cronfire/types"
	"github.com/RezaEskandarii/cronfire/types/config"
)

// Executor runs a claimed job. *JobExecutor is the production implementation.
type Executor interface {
	ExecuteJob(ctx context.Context, job *types.Job) (*types.JobExecution, error)
}

// Scheduler polls the job store for due jobs, claims them and hands them to
// the executor. Any number of schedulers may share a store.
type Scheduler struct {
	jobs     store.JobStore
	executor Executor
	clock    clock.Clock
	log      zerolog.Logger

	pollInterval time.Duration
	lease        time.Duration
	batchSize    int
	location     *time.Location

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

type SchedulerOption func(*Scheduler)

func WithSchedulerClock(c clock.Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

func NewScheduler(jobs store.JobStore, executor Executor, cfg *config.SchedulerConfig, log zerolog.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		jobs:         jobs,
		executor:     executor,
		clock:        clock.New(),
		log:          logging.Component(log, "scheduler"),
		pollInterval: cfg.PollInterval,
		lease:        cfg.ClaimLease(),
		batchSize:    cfg.DueBatchSize,
		location:     cfg.Location,
		sem:          semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs)),
	}
	if s.location == nil {
		s.location = time.UTC
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lease is how long a claim is honoured before recovery treats it as stale.
func (s *Scheduler) Lease() time.Duration {
	return s.lease
}

// Start schedules every active job that has no next run, polls once and then
// keeps polling every poll interval until Stop. Calling Start on a running
// scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	if err := s.backfill(ctx); err != nil {
		return err
	}

	pollCtx, cancel := context.WithCancel(ctx)
	s.Poll(pollCtx)

	cronLog := logging.NewCronLogger(s.log)
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	c.Schedule(cron.Every(s.pollInterval), cron.FuncJob(func() {
		s.Poll(pollCtx)
	}))
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.log.Info().
		Dur("poll_interval", s.pollInterval).
		Dur("claim_lease", s.lease).
		Msg("scheduler started")
	return nil
}

// backfill computes NextRunAt for active jobs that have none and are not
// held by another poller.
func (s *Scheduler) backfill(ctx context.Context) error {
	jobs, err := s.jobs.GetActiveJobs(ctx)
	if err != nil {
		return fmt.Errorf("load active jobs: %w", err)
	}

	now := s.clock.Now()
	for _, job := range jobs {
		if job.NextRunAt != nil || job.Claimed(now) {
			continue
		}
		next, err := CalculateNextRun(job, now.In(s.location))
		if err != nil {
			s.log.Warn().Err(err).Str("job_id", job.ID).Msg("could not schedule job")
			continue
		}
		if next == nil {
			continue
		}
		update := types.JobUpdate{NextRunAt: optional.Some(next)}
		if err := s.jobs.UpdateJob(ctx, job.ID, job.UserID, update); err != nil {
			s.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to schedule job")
		}
	}
	return nil
}

// Poll recovers stale claims, then claims and dispatches every due job. Jobs
// run in their own goroutines; Poll does not wait for them. Store failures
// are logged and the next poll tries again.
func (s *Scheduler) Poll(ctx context.Context) {
	if n, err := s.jobs.RecoverStaleRunningJobs(ctx, s.lease); err != nil {
		s.log.Error().Err(err).Msg("failed to recover stale jobs")
	} else if n > 0 {
		s.log.Warn().Int64("jobs", n).Msg("recovered jobs with expired claims")
	}

	due, err := s.jobs.GetDueJobs(ctx, s.clock.Now(), s.batchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch due jobs")
		return
	}

	for i, job := range due {
		if job.NextRunAt == nil {
			continue
		}
		// A job is only claimed once a slot is free. Jobs left over stay due
		// for the next poll or another poller.
		if !s.sem.TryAcquire(1) {
			s.log.Warn().Int("left_due", len(due)-i).Msg("all execution slots busy")
			return
		}
		claimed, err := s.jobs.ClaimDueJob(ctx, job.ID, job.UserID, *job.NextRunAt, s.lease)
		if err != nil {
			s.sem.Release(1)
			s.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to claim job")
			continue
		}
		if claimed == nil {
			s.sem.Release(1)
			continue
		}
		s.dispatch(context.WithoutCancel(ctx), claimed)
	}
}

// dispatch runs job in its own goroutine and frees the slot Poll reserved.
func (s *Scheduler) dispatch(ctx context.Context, job *types.Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Interface("panic", r).Str("job_id", job.ID).Msg("job execution panicked")
			}
		}()

		if _, err := s.executor.ExecuteJob(ctx, job); err != nil {
			s.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to record job execution")
		}
	}()
}

// TriggerJob runs a job owned by userID immediately, whether or not it is due.
func (s *Scheduler) TriggerJob(ctx context.Context, jobID, userID string) (*types.JobExecution, error) {
	job, err := s.jobs.GetJob(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	return s.executor.ExecuteJob(ctx, job)
}

// Stop cancels the poll timer. In-flight executions keep running. Stop is
// safe to call more than once and before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.cron = nil
	s.cancel = nil
	s.log.Info().Msg("scheduler stopped")
}

// Shutdown stops polling and waits for in-flight executions or ctx.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("executions still running"), ctx.Err())
	}
}
