package xdlock

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type etcdHold struct {
	lease clientv3.LeaseID
	value string
}

// EtcdLocker 基于 etcd 的锁。
//
// 每次获取都申请一个 TTL 与锁一致的 lease，再以 CreateRevision==0 为条件写入 key；
// 释放时只在 value 仍为本次 token 时删除，随后撤销 lease。
type EtcdLocker struct {
	client *clientv3.Client
	prefix string
	owner  string
	closed atomic.Bool

	mu   sync.Mutex
	held map[string]etcdHold
}

// NewEtcdLocker 创建 etcd 锁。client 生命周期由调用方管理。
func NewEtcdLocker(client *clientv3.Client, opts ...Option) (*EtcdLocker, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	o := applyOptions(opts)
	return &EtcdLocker{
		client: client,
		prefix: o.keyPrefix,
		owner:  uuid.NewString(),
		held:   make(map[string]etcdHold),
	}, nil
}

// etcd lease 以秒为单位，不足 1 秒向上取整。
func leaseSeconds(ttl time.Duration) int64 {
	return max(int64(math.Ceil(ttl.Seconds())), 1)
}

func (l *EtcdLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.closed.Load() {
		return false, ErrClosed
	}
	if err := validateKey(key); err != nil {
		return false, err
	}
	if err := validateTTL(ttl); err != nil {
		return false, err
	}

	full := l.prefix + key
	grant, err := l.client.Grant(ctx, leaseSeconds(ttl))
	if err != nil {
		return false, fmt.Errorf("%w: grant: %w", ErrLockFailed, err)
	}
	value := l.owner + "/" + uuid.NewString()
	resp, err := l.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(full), "=", 0)).
		Then(clientv3.OpPut(full, value, clientv3.WithLease(grant.ID))).
		Commit()
	if err != nil {
		l.revoke(grant.ID)
		return false, fmt.Errorf("%w: txn: %w", ErrLockFailed, err)
	}
	if !resp.Succeeded {
		l.revoke(grant.ID)
		return false, nil
	}

	// 旧 lease 已过期，key 才能写入成功
	l.mu.Lock()
	stale, ok := l.held[full]
	l.held[full] = etcdHold{lease: grant.ID, value: value}
	l.mu.Unlock()
	if ok {
		l.revoke(stale.lease)
	}
	return true, nil
}

func (l *EtcdLocker) revoke(id clientv3.LeaseID) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, _ = l.client.Revoke(ctx, id)
}

func (l *EtcdLocker) Release(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	full := l.prefix + key
	l.mu.Lock()
	h, ok := l.held[full]
	delete(l.held, full)
	l.mu.Unlock()
	if !ok {
		return ErrNotHeld
	}
	defer l.revoke(h.lease)

	resp, err := l.client.Txn(ctx).
		If(clientv3.Compare(clientv3.Value(full), "=", h.value)).
		Then(clientv3.OpDelete(full)).
		Commit()
	if err != nil {
		return fmt.Errorf("xdlock: release %s: %w", key, err)
	}
	if !resp.Succeeded {
		return ErrNotHeld
	}
	return nil
}

// Extend etcd lease 的 TTL 在创建时确定，这里只做一次 KeepAliveOnce 刷新。
// ttl 仅用于校验。
func (l *EtcdLocker) Extend(ctx context.Context, key string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	full := l.prefix + key
	l.mu.Lock()
	h, ok := l.held[full]
	l.mu.Unlock()
	if !ok {
		return ErrNotHeld
	}
	if _, err := l.client.KeepAliveOnce(ctx, h.lease); err != nil {
		return fmt.Errorf("%w: %w", ErrNotHeld, err)
	}
	return nil
}

// Close 标记关闭并撤销所有仍持有的 lease。
func (l *EtcdLocker) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	l.mu.Lock()
	holds := l.held
	l.held = make(map[string]etcdHold)
	l.mu.Unlock()
	for _, h := range holds {
		l.revoke(h.lease)
	}
	return nil
}

var (
	_ Locker   = (*EtcdLocker)(nil)
	_ Extender = (*EtcdLocker)(nil)
)
