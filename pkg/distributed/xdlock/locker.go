package xdlock

import (
	"context"
	"strings"
	"time"
)

// Locker 分布式锁。实现必须并发安全。
type Locker interface {
	// TryAcquire 非阻塞获取锁。被占用时返回 (false, nil)，error 仅表示锁服务异常。
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release 释放本实例持有的锁。未持有或已过期返回 ErrNotHeld。
	Release(ctx context.Context, key string) error
	// Close 停止接受新的获取。不关闭注入的客户端。
	Close() error
}

// Extender 可选能力：延长已持有锁的 TTL。
type Extender interface {
	Extend(ctx context.Context, key string, ttl time.Duration) error
}

const maxKeyLength = 512

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if len(key) > maxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}

type options struct {
	keyPrefix string
}

// Option 配置 Locker。
type Option func(*options)

// WithKeyPrefix 所有 key 的前缀，默认为空。
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.keyPrefix = prefix }
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
