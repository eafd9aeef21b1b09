package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const allocationLockPrefix = "lms:exam:lock:"

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// AllocationLockRepository holds short-lived Redis locks guarding per-institute allocation.
type AllocationLockRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewAllocationLockRepository constructs an allocation lock repository.
func NewAllocationLockRepository(client *redis.Client, logger *zap.Logger) *AllocationLockRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationLockRepository{client: client, logger: logger}
}

// Acquire sets the lock key when absent. A nil client always grants the lock.
func (r *AllocationLockRepository) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return true, nil
	}
	ok, err := r.client.SetNX(ctx, allocationLockPrefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock %s: %w", key, err)
	}
	return ok, nil
}

// Release deletes the lock key only while it still carries token.
func (r *AllocationLockRepository) Release(ctx context.Context, key, token string) error {
	if r.client == nil {
		return nil
	}
	deleted, err := releaseLockScript.Run(ctx, r.client, []string{allocationLockPrefix + key}, token).Int()
	if err != nil {
		return fmt.Errorf("redis unlock %s: %w", key, err)
	}
	if deleted == 0 {
		r.logger.Warn("allocation lock expired before release", zap.String("key", key))
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *AllocationLockRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
