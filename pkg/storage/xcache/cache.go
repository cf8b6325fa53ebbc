package xcache

import (
	"context"
	"time"
)

// Cache 字节值缓存。Get 未命中返回 (nil, false, nil)。
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Stats L1 命中统计。
type Stats struct {
	Hits     uint64
	Misses   uint64
	HitRatio float64
	L2Hits   uint64
}

func checkKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}
