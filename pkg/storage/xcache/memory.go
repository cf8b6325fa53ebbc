package xcache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Memory 基于 ristretto 的进程内缓存。
type Memory struct {
	cache  *ristretto.Cache[string, []byte]
	closed atomic.Bool
}

type memoryOptions struct {
	numCounters int64
	maxCost     int64
	bufferItems int64
}

// MemoryOption 内存缓存选项。
type MemoryOption func(*memoryOptions)

// WithMaxCost 最大容量（字节），默认 64MB。计数器按 maxCost/100 估算，至少 1e4。
func WithMaxCost(n int64) MemoryOption {
	return func(o *memoryOptions) {
		if n > 0 {
			o.maxCost = n
			o.numCounters = max(n/100, 1e4)
		}
	}
}

// NewMemory 创建进程内缓存。
func NewMemory(opts ...MemoryOption) (*Memory, error) {
	o := &memoryOptions{numCounters: 1e6, maxCost: 64 << 20, bufferItems: 64}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: o.numCounters,
		MaxCost:     o.maxCost,
		BufferItems: o.bufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("xcache: create memory cache: %w", err)
	}
	return &Memory{cache: c}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.closed.Load() {
		return nil, false, ErrClosed
	}
	v, ok := m.cache.Get(key)
	return v, ok, nil
}

// Set 写入后调用 Wait，保证随后的 Get 可见。
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if err := checkKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	m.cache.SetWithTTL(key, value, int64(len(value))+int64(len(key)), ttl)
	m.cache.Wait()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.cache.Del(key)
	return nil
}

// Stats L1 统计。
func (m *Memory) Stats() Stats {
	mt := m.cache.Metrics
	if mt == nil {
		return Stats{}
	}
	return Stats{Hits: mt.Hits(), Misses: mt.Misses(), HitRatio: mt.Ratio()}
}

func (m *Memory) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.cache.Close()
	return nil
}

var _ Cache = (*Memory)(nil)
