// internal/popularity/lock.go
package popularity

import (
	"context"
	"time"

	"marketplace-engine/internal/common/database"
	apperrors "marketplace-engine/internal/common/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKey = "popularity:recompute:lock"

// Locker keeps two recompute runs from overlapping.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

type RedisLock struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

func NewRedisLock(rdb redis.Cmdable, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLock{rdb: rdb, key: lockKey, ttl: ttl}
}

// Acquire returns RECOMPUTE_IN_PROGRESS when another run holds the lock.
func (l *RedisLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := database.TryLock(ctx, l.rdb, l.key, token, l.ttl)
	if err != nil {
		return nil, apperrors.NewPersistenceError("acquire_lock", l.key, err)
	}
	if !ok {
		return nil, apperrors.NewRecomputeInProgressError()
	}
	return func(ctx context.Context) error {
		return database.Unlock(ctx, l.rdb, l.key, token)
	}, nil
}
