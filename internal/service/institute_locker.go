package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/lms-exam-api/pkg/errors"
)

// InstituteLocker serialises read-occupancy then write-assignment sequences per institute.
type InstituteLocker interface {
	Lock(ctx context.Context, instituteID string) (func(), error)
}

// LocalInstituteLocker is an in-process keyed mutex.
type LocalInstituteLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalInstituteLocker constructs an in-process locker.
func NewLocalInstituteLocker() *LocalInstituteLocker {
	return &LocalInstituteLocker{slots: make(map[string]chan struct{})}
}

// Lock blocks until the institute is free or ctx ends.
func (l *LocalInstituteLocker) Lock(ctx context.Context, instituteID string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[instituteID]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[instituteID] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrLockUnavailable.Code, appErrors.ErrLockUnavailable.Status, "timed out waiting for institute lock")
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-slot })
	}, nil
}

type allocationLockStore interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) error
}

// DistributedInstituteLocker takes the in-process lock and then a Redis lease so
// several API replicas never allocate for the same institute at once.
type DistributedInstituteLocker struct {
	local   *LocalInstituteLocker
	store   allocationLockStore
	ttl     time.Duration
	wait    time.Duration
	retry   time.Duration
	metrics *MetricsService
	logger  *zap.Logger
}

// NewDistributedInstituteLocker wires the Redis-backed locker.
func NewDistributedInstituteLocker(store allocationLockStore, ttl, wait time.Duration, metrics *MetricsService, logger *zap.Logger) *DistributedInstituteLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DistributedInstituteLocker{
		local:   NewLocalInstituteLocker(),
		store:   store,
		ttl:     ttl,
		wait:    wait,
		retry:   50 * time.Millisecond,
		metrics: metrics,
		logger:  logger,
	}
}

// Lock acquires both locks or neither.
func (l *DistributedInstituteLocker) Lock(ctx context.Context, instituteID string) (func(), error) {
	started := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	unlockLocal, err := l.local.Lock(waitCtx, instituteID)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	for {
		ok, acquireErr := l.store.Acquire(waitCtx, instituteID, token, l.ttl)
		if acquireErr != nil && !errors.Is(acquireErr, context.DeadlineExceeded) {
			unlockLocal()
			return nil, appErrors.Wrap(acquireErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire institute lock")
		}
		if ok {
			break
		}
		select {
		case <-waitCtx.Done():
			unlockLocal()
			return nil, appErrors.Clone(appErrors.ErrLockUnavailable, "another scheduling operation is running for this institute")
		case <-time.After(l.retry):
		}
	}
	l.metrics.ObserveLockWait(time.Since(started))

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, releaseCancel := context.WithTimeout(context.Background(), time.Second)
			defer releaseCancel()
			if err := l.store.Release(releaseCtx, instituteID, token); err != nil {
				l.logger.Warn("release institute lock", zap.String("institute_id", instituteID), zap.Error(err))
			}
			unlockLocal()
		})
	}, nil
}
