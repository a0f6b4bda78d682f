package jobmanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/cronfire/client"
	"github.com/RezaEskandarii/cronfire/client/test/mocks"
	"github.com/RezaEskandarii/cronfire/internal/constants"
	"github.com/RezaEskandarii/cronfire/types/config"
)

func memoryConfig(t *testing.T) *config.SchedulerConfig {
	t.Helper()
	cfg, err := config.NewSchedulerConfig("test", config.WithStorageDriver(config.Memory))
	require.NoError(t, err)
	return cfg
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, memoryConfig(t), zerolog.Nop())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStartScheduler_UsesStartLock(t *testing.T) {
	var acquired, released []int
	lockMgr := &mocks.MockDistributedLockManager{
		AcquireFunc: func(_ context.Context, id int) error {
			acquired = append(acquired, id)
			return nil
		},
		ReleaseFunc: func(_ context.Context, id int) error {
			released = append(released, id)
			return nil
		},
	}
	scheduler := client.NewScheduler(&mocks.MockJobStore{}, &mocks.MockExecutor{}, memoryConfig(t), zerolog.Nop())
	defer scheduler.Stop()

	require.NoError(t, startScheduler(context.Background(), scheduler, lockMgr))
	assert.Equal(t, []int{constants.StartSchedulerLock}, acquired)
	assert.Equal(t, []int{constants.StartSchedulerLock}, released)
}

func TestStartScheduler_LockFailure(t *testing.T) {
	lockMgr := &mocks.MockDistributedLockManager{
		AcquireFunc: func(context.Context, int) error { return errors.New("lock timeout") },
	}
	scheduler := client.NewScheduler(&mocks.MockJobStore{}, &mocks.MockExecutor{}, memoryConfig(t), zerolog.Nop())

	assert.Error(t, startScheduler(context.Background(), scheduler, lockMgr))
}
