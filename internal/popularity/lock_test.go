package popularity

import (
	"context"
	"fmt"
	"testing"
	"time"

	apperrors "marketplace-engine/internal/common/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLock_ExcludesSecondRun(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	lock := NewRedisLock(rdb, time.Minute)
	release, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL(lockKey))

	_, err = lock.Acquire(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeRecomputeInProgress))

	require.NoError(t, release(context.Background()))
	assert.False(t, mr.Exists(lockKey))

	release, err = lock.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, release(context.Background()))
}

func TestRedisLock_ReleaseKeepsForeignLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	lock := NewRedisLock(rdb, time.Minute)
	release, err := lock.Acquire(context.Background())
	require.NoError(t, err)

	// the lock expired and another run took it
	mr.FastForward(2 * time.Minute)
	require.NoError(t, mr.Set(lockKey, "someone-else"))

	require.NoError(t, release(context.Background()))
	got, err := mr.Get(lockKey)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLock_RedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.Regexp().ExpectSetNX(lockKey, `.+`, time.Minute).SetErr(fmt.Errorf("connection refused"))

	_, err := NewRedisLock(db, time.Minute).Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePersistenceFailure))
}
