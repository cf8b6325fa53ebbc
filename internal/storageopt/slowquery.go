package storageopt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/omeyang/xdelay/pkg/util/xpool"
)

// SlowQueryHook 同步钩子，在请求路径上执行，应只做内存操作。
type SlowQueryHook[T any] func(ctx context.Context, info T)

// AsyncSlowQueryHook 异步钩子，由内部执行器调用，不接收 ctx。
type AsyncSlowQueryHook[T any] func(info T)

// SlowQueryOptions 慢查询检测配置。
type SlowQueryOptions[T any] struct {
	// Threshold 为 0 时关闭检测。
	Threshold time.Duration
	SyncHook  SlowQueryHook[T]
	AsyncHook AsyncSlowQueryHook[T]
	// AsyncWorkers 异步执行器 worker 数，默认 2。
	AsyncWorkers int
	// AsyncQueueSize 异步队列容量，默认 1000，满时丢弃新通知。
	AsyncQueueSize int
}

// 默认值。
const (
	DefaultAsyncWorkers   = 2
	DefaultAsyncQueueSize = 1000
)

// SlowQueryDetector 慢查询检测器。
type SlowQueryDetector[T any] struct {
	opts SlowQueryOptions[T]

	mu     sync.RWMutex
	exec   *xpool.Executor
	closed bool
}

// NewSlowQueryDetector 设置了 AsyncHook 时立即创建执行器，参数非法直接返回错误。
func NewSlowQueryDetector[T any](opts SlowQueryOptions[T]) (*SlowQueryDetector[T], error) {
	if opts.AsyncWorkers <= 0 {
		opts.AsyncWorkers = DefaultAsyncWorkers
	}
	if opts.AsyncQueueSize <= 0 {
		opts.AsyncQueueSize = DefaultAsyncQueueSize
	}
	d := &SlowQueryDetector[T]{opts: opts}
	if opts.AsyncHook != nil {
		exec, err := xpool.NewExecutor(xpool.Config{
			CoreWorkers:   opts.AsyncWorkers,
			MaxWorkers:    opts.AsyncWorkers,
			QueueCapacity: opts.AsyncQueueSize,
			Policy:        xpool.Discard,
		}, xpool.WithName("slow-query"))
		if err != nil {
			return nil, fmt.Errorf("storageopt: slow query executor: %w", err)
		}
		d.exec = exec
	}
	return d, nil
}

// Threshold 慢查询阈值。
func (d *SlowQueryDetector[T]) Threshold() time.Duration { return d.opts.Threshold }

// Observe 耗时达到阈值时触发钩子，返回是否为慢查询。
func (d *SlowQueryDetector[T]) Observe(ctx context.Context, info T, elapsed time.Duration) bool {
	if d.opts.Threshold <= 0 || elapsed < d.opts.Threshold {
		return false
	}
	if d.opts.SyncHook != nil {
		d.opts.SyncHook(ctx, info)
	}
	d.mu.RLock()
	if !d.closed && d.exec != nil {
		hook := d.opts.AsyncHook
		// 队列满时静默丢弃
		_ = d.exec.Submit(xpool.Task{Run: func() { hook(info) }, Name: "slow-query"})
	}
	d.mu.RUnlock()
	return true
}

// Close 停止异步执行器，等待已入队的通知执行完或 ctx 到期。
func (d *SlowQueryDetector[T]) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	exec := d.exec
	d.exec = nil
	d.mu.Unlock()

	if exec == nil {
		return nil
	}
	return exec.Shutdown(ctx)
}
