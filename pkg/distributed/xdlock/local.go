package xdlock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type localEntry struct {
	owner    string
	expireAt time.Time
}

// localTable 进程内锁表，可被多个 LocalLocker 共享以模拟多实例。
type localTable struct {
	mu      sync.Mutex
	entries map[string]localEntry
	now     func() time.Time
}

// LocalLocker 进程内锁。
type LocalLocker struct {
	table  *localTable
	owner  string
	prefix string
	closed atomic.Bool
}

// NewLocalLocker 创建进程内锁。
func NewLocalLocker(opts ...Option) *LocalLocker {
	o := applyOptions(opts)
	return &LocalLocker{
		table:  &localTable{entries: make(map[string]localEntry), now: time.Now},
		owner:  uuid.NewString(),
		prefix: o.keyPrefix,
	}
}

// Peer 返回共享同一锁表、但持有者不同的 LocalLocker，相当于另一个实例。
func (l *LocalLocker) Peer() *LocalLocker {
	return &LocalLocker{table: l.table, owner: uuid.NewString(), prefix: l.prefix}
}

// Owner 本实例的持有者标识。
func (l *LocalLocker) Owner() string { return l.owner }

func (l *LocalLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.closed.Load() {
		return false, ErrClosed
	}
	if err := validateKey(key); err != nil {
		return false, err
	}
	if err := validateTTL(ttl); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	t := l.table
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	full := l.prefix + key
	if e, ok := t.entries[full]; ok && now.Before(e.expireAt) {
		return false, nil
	}
	t.entries[full] = localEntry{owner: l.owner, expireAt: now.Add(ttl)}
	return true, nil
}

func (l *LocalLocker) Release(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	t := l.table
	t.mu.Lock()
	defer t.mu.Unlock()
	full := l.prefix + key
	e, ok := t.entries[full]
	if !ok || e.owner != l.owner {
		return ErrNotHeld
	}
	delete(t.entries, full)
	if !t.now().Before(e.expireAt) {
		return ErrNotHeld
	}
	return nil
}

func (l *LocalLocker) Extend(_ context.Context, key string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	t := l.table
	t.mu.Lock()
	defer t.mu.Unlock()
	full := l.prefix + key
	e, ok := t.entries[full]
	now := t.now()
	if !ok || e.owner != l.owner || !now.Before(e.expireAt) {
		return ErrNotHeld
	}
	e.expireAt = now.Add(ttl)
	t.entries[full] = e
	return nil
}

func (l *LocalLocker) Close() error {
	l.closed.Store(true)
	return nil
}

var (
	_ Locker   = (*LocalLocker)(nil)
	_ Extender = (*LocalLocker)(nil)
)
