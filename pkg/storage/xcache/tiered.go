package xcache

import (
	"context"
	"sync/atomic"
	"time"
)

// Tiered 两级缓存。读：L1 → L2（命中回填 L1）；写：同时写两级。
// L2 出错时降级为只用 L1，错误返回给调用方记录。
type Tiered struct {
	l1     *Memory
	l2     Cache
	l1TTL  time.Duration
	l2Hits atomic.Uint64
}

// NewTiered l2 可为 nil，此时退化为纯本地缓存。l1TTL 为回填 L1 的最长 TTL。
func NewTiered(l1 *Memory, l2 Cache, l1TTL time.Duration) (*Tiered, error) {
	if l1 == nil {
		return nil, ErrNilClient
	}
	if l1TTL <= 0 {
		return nil, ErrInvalidTTL
	}
	return &Tiered{l1: l1, l2: l2, l1TTL: l1TTL}, nil
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := t.l1.Get(ctx, key); err != nil || ok {
		return v, ok, err
	}
	if t.l2 == nil {
		return nil, false, nil
	}
	v, ok, err := t.l2.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	t.l2Hits.Add(1)
	_ = t.l1.Set(ctx, key, v, t.l1TTL)
	return v, true, nil
}

func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.l1.Set(ctx, key, value, min(ttl, t.l1TTL)); err != nil {
		return err
	}
	if t.l2 == nil {
		return nil
	}
	return t.l2.Set(ctx, key, value, ttl)
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	_ = t.l1.Delete(ctx, key)
	if t.l2 == nil {
		return nil
	}
	return t.l2.Delete(ctx, key)
}

// Stats L1 统计加 L2 回填次数。
func (t *Tiered) Stats() Stats {
	s := t.l1.Stats()
	s.L2Hits = t.l2Hits.Load()
	return s
}

// Close 关闭 L1，L2 客户端由调用方管理。
func (t *Tiered) Close() error {
	return t.l1.Close()
}

var _ Cache = (*Tiered)(nil)
