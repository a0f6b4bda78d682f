package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/RezaEskandarii/cronfire/internal/constants"
)

const (
	redisLockPrefix = "cronfire:lock:"
	redisLockTTL    = 30 * time.Second
	redisRetryDelay = 100 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClient is the subset of *redis.Client the lock manager needs.
type RedisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisDistributedLockManager implements locks with SET NX PX and a token
// checked on release. Locks expire after redisLockTTL if the holder dies.
type RedisDistributedLockManager struct {
	client RedisClient
	mu     sync.Mutex
	tokens map[int]string
}

func NewRedisDistributedLockManager(client RedisClient) *RedisDistributedLockManager {
	return &RedisDistributedLockManager{
		client: client,
		tokens: make(map[int]string),
	}
}

func lockKey(lockID int) string {
	return fmt.Sprintf("%s%d", redisLockPrefix, lockID)
}

func (l *RedisDistributedLockManager) Acquire(ctx context.Context, lockID int) error {
	ctx, cancel := context.WithTimeout(ctx, constants.LockTimeout)
	defer cancel()

	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, lockKey(lockID), token, redisLockTTL).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if ok {
			l.mu.Lock()
			l.tokens[lockID] = token
			l.mu.Unlock()
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to acquire lock: %w", ctx.Err())
		case <-time.After(redisRetryDelay):
		}
	}
}

func (l *RedisDistributedLockManager) Release(ctx context.Context, lockID int) error {
	ctx, cancel := context.WithTimeout(ctx, constants.LockTimeout)
	defer cancel()

	l.mu.Lock()
	token, held := l.tokens[lockID]
	delete(l.tokens, lockID)
	l.mu.Unlock()
	if !held {
		return fmt.Errorf("failed to release lock: lock %d is not held", lockID)
	}

	deleted, err := releaseScript.Run(ctx, l.client, []string{lockKey(lockID)}, token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("failed to release lock: lock %d expired or was taken over", lockID)
	}
	return nil
}
