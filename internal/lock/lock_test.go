package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/VelascoAMath/phase.ten/internal/game"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	_ game.Locker = (*Local)(nil)
	_ game.Locker = (*RedisLocker)(nil)
)

func TestLocalSerializes(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "game")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, l.Len())
}

func TestLocalIndependentKeys(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	a, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	b, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
	a()
	b()
	a()
	assert.Equal(t, 0, l.Len())
}

func TestLocalContextCancel(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), "game")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "game")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Equal(t, 0, l.Len())
}

func newRedisLocker(t *testing.T, opts ...RedisOption) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, zaptest.NewLogger(t), opts...), mr
}

func TestRedisLockAndRelease(t *testing.T) {
	l, mr := newRedisLocker(t, WithMaxRetries(0))
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "phaseten:game:1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("phaseten:game:1"))

	_, err = l.Lock(ctx, "phaseten:game:1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	assert.False(t, mr.Exists("phaseten:game:1"))

	unlock2, err := l.Lock(ctx, "phaseten:game:1")
	require.NoError(t, err)
	unlock2()
}

func TestRedisLockExpires(t *testing.T) {
	l, mr := newRedisLocker(t, WithTTL(time.Second), WithMaxRetries(0))
	ctx := context.Background()

	_, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	unlock, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	unlock()
}

func TestRedisUnlockWrongToken(t *testing.T) {
	l, _ := newRedisLocker(t)
	ctx := context.Background()

	token, ok, err := l.TryLock(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, l.Unlock(ctx, "k", "someone-else"), ErrNotHeld)
	assert.NoError(t, l.Unlock(ctx, "k", token))
	assert.ErrorIs(t, l.Unlock(ctx, "k", token), ErrNotHeld)
}

func TestRedisLockWaitsForRelease(t *testing.T) {
	l, _ := newRedisLocker(t, WithMaxRetries(50), WithRetryDelay(5*time.Millisecond))
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	go func() {
		time.Sleep(20 * time.Millisecond)
		unlock()
	}()

	unlock2, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	unlock2()
}
