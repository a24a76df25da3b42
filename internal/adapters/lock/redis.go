package lock

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
	"github.com/kevin07696/automated-charge/pkg/resilience"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options configures distributed lock behavior
type Options struct {
	// Expiry must outlast one whole attempt, gateway call and persistence included
	Expiry time.Duration
	// Tries and RetryDelay pace acquisition retries inside the lock wait timeout
	Tries      int
	RetryDelay time.Duration
	// DriftFactor accounts for clock drift between Redis nodes
	DriftFactor float64
	KeyPrefix   string
}

// DefaultOptions returns production defaults
func DefaultOptions() Options {
	return Options{
		Expiry:      90 * time.Second,
		Tries:       20,
		RetryDelay:  500 * time.Millisecond,
		DriftFactor: 0.01,
		KeyPrefix:   "lock:",
	}
}

// RedisLocker is a ports.IdentityLocker backed by redsync
type RedisLocker struct {
	rs       *redsync.Redsync
	opts     Options
	timeouts *resilience.TimeoutConfig
	logger   *zap.Logger
}

var _ ports.IdentityLocker = (*RedisLocker)(nil)

// NewRedisLocker creates a distributed locker on top of rdb
func NewRedisLocker(rdb redis.UniversalClient, opts Options, timeouts *resilience.TimeoutConfig, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		rs:       redsync.New(goredis.NewPool(rdb)),
		opts:     opts,
		timeouts: timeouts,
		logger:   logger,
	}
}

// WithLock runs fn while holding the lock for key. fn's error is returned unchanged.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := checkArgs(key, fn); err != nil {
		return err
	}

	lockKey := l.opts.KeyPrefix + key
	mutex := l.rs.NewMutex(
		lockKey,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
		redsync.WithDriftFactor(l.opts.DriftFactor),
	)

	lockCtx, cancel := l.timeouts.LockContext(ctx)
	err := mutex.LockContext(lockCtx)
	cancel()
	if err != nil {
		l.logger.Warn("Failed to acquire identity lock",
			zap.String("lock_key", lockKey),
			zap.Error(err),
		)
		return busy(key, err)
	}

	defer func() {
		// Release even when the attempt context was cancelled.
		unlockCtx := context.WithoutCancel(ctx)
		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			l.logger.Error("Failed to release identity lock",
				zap.String("lock_key", lockKey),
				zap.Bool("unlock_ok", ok),
				zap.Error(err),
			)
		}
	}()

	return fn(ctx)
}
