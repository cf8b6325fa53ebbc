package xlru

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Config LRU 配置。
type Config struct {
	// Size 最大条目数，必须 > 0。
	Size int
	// TTL 条目存活时间，0 表示不过期。
	TTL time.Duration
}

// Cache 带容量上限与 TTL 的并发安全 LRU。
type Cache[K comparable, V any] struct {
	lru *expirable.LRU[K, V]
}

// New 创建 Cache。onEvict 可为 nil。
func New[K comparable, V any](cfg Config, onEvict func(K, V)) (*Cache[K, V], error) {
	if cfg.Size <= 0 {
		return nil, ErrInvalidSize
	}
	if cfg.TTL < 0 {
		return nil, ErrInvalidTTL
	}
	var cb expirable.EvictCallback[K, V]
	if onEvict != nil {
		cb = func(k K, v V) { onEvict(k, v) }
	}
	return &Cache[K, V]{lru: expirable.NewLRU[K, V](cfg.Size, cb, cfg.TTL)}, nil
}

// Get 读取条目，过期条目视为不存在。
func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.lru.Get(key)
}

// Set 写入条目，返回是否发生了淘汰。
func (c *Cache[K, V]) Set(key K, value V) bool {
	return c.lru.Add(key, value)
}

// Contains 判断是否存在且未过期，不更新访问顺序。
func (c *Cache[K, V]) Contains(key K) bool {
	return c.lru.Contains(key)
}

// Delete 删除条目。
func (c *Cache[K, V]) Delete(key K) bool {
	return c.lru.Remove(key)
}

// Len 当前条目数（可能包含尚未清理的过期条目）。
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

// Purge 清空缓存。
func (c *Cache[K, V]) Purge() {
	c.lru.Purge()
}
