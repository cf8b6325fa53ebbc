package xkeylock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Handle 表示一次成功的加锁。
// Unlock 幂等：首次调用释放锁，后续调用返回 [ErrLockNotHeld]。
type Handle interface {
	Unlock() error
	Key() string
}

// Locker 基于 key 的进程内互斥锁，按 xxhash 分片以降低锁竞争。
//
// xidem 用它串行化同一 messageId 的读-改-写，
// xdlock 的本地后端也复用它。
type Locker struct {
	shards []*shard
	mask   uint64
	active atomic.Int64
	closed atomic.Bool
	done   chan struct{}
	once   sync.Once
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// entry 用容量为 1 的 channel 充当可被 ctx 打断的互斥量。
type entry struct {
	sem  chan struct{}
	refs int
}

// New 创建 Locker。
func New(opts ...Option) (*Locker, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	l := &Locker{
		shards: make([]*shard, o.shards),
		mask:   uint64(o.shards - 1),
		done:   make(chan struct{}),
	}
	for i := range l.shards {
		l.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return l, nil
}

// MustNew 与 New 相同，配置无效时 panic。
func MustNew(opts ...Option) *Locker {
	l, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Locker) shardOf(key string) *shard {
	return l.shards[xxhash.Sum64String(key)&l.mask]
}

func (l *Locker) ref(key string) *entry {
	s := l.shardOf(key)
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		s.entries[key] = e
		l.active.Add(1)
	}
	e.refs++
	s.mu.Unlock()
	return e
}

func (l *Locker) unref(key string, e *entry) {
	s := l.shardOf(key)
	s.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(s.entries, key)
		l.active.Add(-1)
	}
	s.mu.Unlock()
}

// Acquire 阻塞获取 key 对应的锁，ctx 取消或 Locker 关闭时返回错误。
func (l *Locker) Acquire(ctx context.Context, key string) (Handle, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if key == "" {
		return nil, ErrInvalidKey
	}
	if l.closed.Load() {
		return nil, ErrClosed
	}

	e := l.ref(key)
	select {
	case e.sem <- struct{}{}:
		return &handle{locker: l, key: key, e: e}, nil
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	case <-l.done:
		l.unref(key, e)
		return nil, ErrClosed
	}
}

// TryAcquire 非阻塞获取锁，已被占用时返回 [ErrLockOccupied]。
func (l *Locker) TryAcquire(key string) (Handle, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if l.closed.Load() {
		return nil, ErrClosed
	}

	e := l.ref(key)
	select {
	case e.sem <- struct{}{}:
		return &handle{locker: l, key: key, e: e}, nil
	default:
		l.unref(key, e)
		return nil, ErrLockOccupied
	}
}

// Len 返回当前活跃 key 数（持有者与等待者）。
func (l *Locker) Len() int {
	return int(l.active.Load())
}

// Close 唤醒所有等待者并拒绝新的加锁请求。已持有的 Handle 仍可正常 Unlock。
func (l *Locker) Close() error {
	l.once.Do(func() {
		l.closed.Store(true)
		close(l.done)
	})
	return nil
}

type handle struct {
	locker   *Locker
	key      string
	e        *entry
	released atomic.Bool
}

func (h *handle) Unlock() error {
	if h.released.Swap(true) {
		return ErrLockNotHeld
	}
	<-h.e.sem
	h.locker.unref(h.key, h.e)
	return nil
}

func (h *handle) Key() string { return h.key }
