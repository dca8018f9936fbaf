package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrNotAcquired is returned when the lock stayed taken through every retry.
	ErrNotAcquired = errors.New("failed to acquire lock after retries")
	// ErrNotHeld means the lock expired or was taken over before release.
	ErrNotHeld = errors.New("lock not held or already expired")
)

// Deletes the key only while it still holds our token.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`

// RedisOptions tunes the Redis lock.
type RedisOptions struct {
	TTL        time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// RedisOption sets one field of RedisOptions.
type RedisOption func(*RedisOptions)

// WithTTL sets how long a lock lives if its holder never releases it.
func WithTTL(ttl time.Duration) RedisOption {
	return func(o *RedisOptions) { o.TTL = ttl }
}

// WithMaxRetries sets how many extra attempts Lock makes.
func WithMaxRetries(n int) RedisOption {
	return func(o *RedisOptions) { o.MaxRetries = n }
}

// WithRetryDelay sets the pause between attempts.
func WithRetryDelay(d time.Duration) RedisOption {
	return func(o *RedisOptions) { o.RetryDelay = d }
}

// RedisLocker locks games across server processes with SET NX PX and a
// token-checked release.
type RedisLocker struct {
	client redis.Cmdable
	opts   RedisOptions
	logger *zap.Logger
}

// NewRedisLocker creates a locker on client.
func NewRedisLocker(client redis.Cmdable, logger *zap.Logger, opts ...RedisOption) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := RedisOptions{
		TTL:        3 * time.Second,
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &RedisLocker{client: client, opts: o, logger: logger}
}

// TryLock makes one attempt and returns the token on success.
func (l *RedisLocker) TryLock(ctx context.Context, key string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", false, err
	}
	return token, ok, nil
}

// Lock retries until the key is held, the retries run out or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	for i := 0; i <= l.opts.MaxRetries; i++ {
		token, ok, err := l.TryLock(ctx, key)
		if err != nil {
			l.logger.Error("lock attempt failed", zap.String("key", key), zap.Int("attempt", i+1), zap.Error(err))
			return nil, err
		}
		if ok {
			return func() {
				// The caller's context may already be cancelled; release regardless.
				if err := l.Unlock(context.Background(), key, token); err != nil {
					l.logger.Warn("lock release failed", zap.String("key", key), zap.Error(err))
				}
			}, nil
		}
		if i < l.opts.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(l.opts.RetryDelay):
			}
		}
	}
	l.logger.Warn("lock still taken after all retries", zap.String("key", key))
	return nil, ErrNotAcquired
}

// Unlock releases key if it still holds token.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	res, err := l.client.Eval(ctx, unlockScript, []string{key}, token).Result()
	if err != nil {
		return err
	}
	if n, ok := res.(int64); ok && n == 1 {
		return nil
	}
	return ErrNotHeld
}
