package lock

import "context"

// DistributedLockManager serializes start-up work such as migrations across
// scheduler processes. It is not used to claim jobs.
type DistributedLockManager interface {
	Acquire(ctx context.Context, lockID int) error
	Release(ctx context.Context, lockID int) error
}
