package cron

import (
	"context"
	"errors"
	"time"

	"github.com/minimartlabs/minimart-backend/pkg/redis"
)

const defaultLockTTL = time.Hour

// Lock coordinates exclusive cron runs across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisLock implements Lock on top of SETNX + TTL. The TTL bounds how long a
// crashed worker can block the next cycle.
type RedisLock struct {
	locker redis.Locker
	name   string
	ttl    time.Duration
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(locker redis.Locker, name string, ttl time.Duration) (*RedisLock, error) {
	if locker == nil {
		return nil, errors.New("redis locker required")
	}
	if name == "" {
		return nil, errors.New("lock name is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{locker: locker, name: name, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	return l.locker.AcquireLock(ctx, l.name, l.ttl)
}

func (l *RedisLock) Release(ctx context.Context) error {
	return l.locker.ReleaseLock(ctx, l.name)
}
