package xdlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redsync/redsync/v4"
	rsredis "github.com/go-redsync/redsync/v4/redis"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// RedisLocker 基于 redsync 的锁。传入多个客户端时使用 Redlock（过半成功）。
type RedisLocker struct {
	rs     *redsync.Redsync
	prefix string
	closed atomic.Bool

	mu   sync.Mutex
	held map[string]*redsync.Mutex
}

// NewRedisLocker 创建 Redis 锁。客户端生命周期由调用方管理。
func NewRedisLocker(clients []redis.UniversalClient, opts ...Option) (*RedisLocker, error) {
	if len(clients) == 0 {
		return nil, ErrNilClient
	}
	pools := make([]rsredis.Pool, len(clients))
	for i, c := range clients {
		if c == nil {
			return nil, fmt.Errorf("%w: index %d", ErrNilClient, i)
		}
		pools[i] = goredis.NewPool(c)
	}
	o := applyOptions(opts)
	return &RedisLocker{
		rs:     redsync.New(pools...),
		prefix: o.keyPrefix,
		held:   make(map[string]*redsync.Mutex),
	}, nil
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.closed.Load() {
		return false, ErrClosed
	}
	if err := validateKey(key); err != nil {
		return false, err
	}
	if err := validateTTL(ttl); err != nil {
		return false, err
	}

	// held 里可能残留已过期的锁，是否被占用只看 SET NX 的结果
	full := l.prefix + key
	m := l.rs.NewMutex(full, redsync.WithExpiry(ttl), redsync.WithTries(1))
	if err := m.TryLockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		// 节点通信失败才算锁服务异常，其余（ErrTaken、ErrFailed）都是被占用
		var rerr *redsync.RedisError
		if errors.As(err, &rerr) {
			return false, fmt.Errorf("%w: %w", ErrLockFailed, err)
		}
		return false, nil
	}

	l.mu.Lock()
	l.held[full] = m
	l.mu.Unlock()
	return true, nil
}

func (l *RedisLocker) take(key string) (*redsync.Mutex, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	full := l.prefix + key
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.held[full]
	if !ok {
		return nil, ErrNotHeld
	}
	delete(l.held, full)
	return m, nil
}

func (l *RedisLocker) Release(ctx context.Context, key string) error {
	m, err := l.take(key)
	if err != nil {
		return err
	}
	ok, err := m.UnlockContext(ctx)
	if ok {
		return nil
	}
	// 只有通信错误单独上报，过期或被他人接管都视为未持有
	var rerr *redsync.RedisError
	if errors.As(err, &rerr) {
		return fmt.Errorf("xdlock: release %s: %w", key, err)
	}
	return ErrNotHeld
}

func (l *RedisLocker) Extend(ctx context.Context, key string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	full := l.prefix + key
	l.mu.Lock()
	m, ok := l.held[full]
	l.mu.Unlock()
	if !ok {
		return ErrNotHeld
	}
	// redsync 按创建时的 expiry 续期，换一个同值、新 expiry 的 mutex
	m = l.rs.NewMutex(full, redsync.WithExpiry(ttl), redsync.WithTries(1),
		redsync.WithValue(m.Value()))
	ok, err := m.ExtendContext(ctx)
	if err != nil || !ok {
		return ErrNotHeld
	}
	l.mu.Lock()
	l.held[full] = m
	l.mu.Unlock()
	return nil
}

func (l *RedisLocker) Close() error {
	l.closed.Store(true)
	return nil
}

var (
	_ Locker   = (*RedisLocker)(nil)
	_ Extender = (*RedisLocker)(nil)
)
