package xpool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Task 提交给 Executor 的任务。
type Task struct {
	// Run 任务主体，不能为 nil。
	Run func()
	// OnDropped 任务因饱和策略被丢弃，或在强制关闭时被放弃时回调，可为 nil。
	OnDropped func(err error)
	// Name 仅用于日志。
	Name string
}

// Stats 执行器运行时统计（瞬时快照）。
type Stats struct {
	Submitted  int64
	Completed  int64
	CallerRuns int64
	Dropped    int64
	Rejected   int64
	Panics     int64
	Workers    int
	Queued     int
}

// Executor 有界队列 + 弹性 worker 的任务执行器。
//
// 核心 worker 常驻；队列满时才扩容到 MaxWorkers；
// 超出核心数的 worker 空闲 KeepAlive 后退出。队列满且已达上限时按 Policy 处理。
type Executor struct {
	cfg  Config
	opts options

	// mu 保护 stopped 与 queue 的关闭：Submit 持读锁入队，Shutdown 持写锁关闭。
	mu      sync.RWMutex
	stopped bool
	queue   chan Task

	wmu     sync.Mutex
	workers int
	wg      sync.WaitGroup

	abandon atomic.Bool

	submitted  atomic.Int64
	completed  atomic.Int64
	callerRuns atomic.Int64
	dropped    atomic.Int64
	rejected   atomic.Int64
	panics     atomic.Int64
}

// NewExecutor 创建执行器并立即启动核心 worker。
func NewExecutor(cfg Config, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	e := &Executor{
		cfg:   cfg,
		opts:  o,
		queue: make(chan Task, cfg.QueueCapacity),
	}
	e.wmu.Lock()
	for range cfg.CoreWorkers {
		e.spawnLocked(nil)
	}
	e.wmu.Unlock()
	return e, nil
}

// Submit 提交任务。
//
// 返回 nil 表示任务已入队、已由调用方执行（CALLER_RUNS）或已按丢弃策略处理；
// ABORT 策略下饱和返回 [ErrRejected]；关闭后返回 [ErrStopped]。
func (e *Executor) Submit(t Task) error {
	if t.Run == nil {
		return ErrNilTask
	}

	e.mu.RLock()
	if e.stopped {
		e.mu.RUnlock()
		return ErrStopped
	}
	e.submitted.Add(1)

	select {
	case e.queue <- t:
		e.mu.RUnlock()
		return nil
	default:
	}

	if e.tryGrow(t) {
		e.mu.RUnlock()
		return nil
	}

	switch e.cfg.Policy {
	case CallerRuns:
		e.mu.RUnlock()
		e.callerRuns.Add(1)
		e.run(t)
		return nil

	case Discard:
		e.mu.RUnlock()
		e.drop(t, ErrDiscarded)
		return nil

	case DiscardOldest:
		select {
		case old := <-e.queue:
			e.drop(old, ErrDiscarded)
		default:
		}
		select {
		case e.queue <- t:
			e.mu.RUnlock()
			return nil
		default:
			// 并发提交者抢先占用了腾出的位置
			e.mu.RUnlock()
			e.drop(t, ErrDiscarded)
			return nil
		}

	default:
		e.mu.RUnlock()
		e.rejected.Add(1)
		return ErrRejected
	}
}

// tryGrow 队列已满时尝试新增 worker，新 worker 直接执行 t。
func (e *Executor) tryGrow(t Task) bool {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	if e.workers >= e.cfg.MaxWorkers {
		return false
	}
	e.spawnLocked(&t)
	return true
}

func (e *Executor) spawnLocked(first *Task) {
	e.workers++
	e.wg.Add(1)
	go e.worker(first)
}

func (e *Executor) worker(first *Task) {
	defer e.wg.Done()

	if first != nil {
		e.run(*first)
	}

	var idle *time.Timer
	if e.cfg.KeepAlive > 0 {
		idle = time.NewTimer(e.cfg.KeepAlive)
		defer idle.Stop()
	}

	for {
		if !e.elastic() {
			t, ok := <-e.queue
			if !ok {
				e.exit()
				return
			}
			e.run(t)
			continue
		}

		if idle == nil {
			// KeepAlive 为 0：弹性 worker 空闲即退出
			select {
			case t, ok := <-e.queue:
				if !ok {
					e.exit()
					return
				}
				e.run(t)
			default:
				if e.retire() {
					return
				}
			}
			continue
		}

		idle.Reset(e.cfg.KeepAlive)
		select {
		case t, ok := <-e.queue:
			if !ok {
				e.exit()
				return
			}
			e.run(t)
		case <-idle.C:
			if e.retire() {
				return
			}
		}
	}
}

// elastic 当前 worker 数是否超过核心数。
func (e *Executor) elastic() bool {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	return e.workers > e.cfg.CoreWorkers
}

func (e *Executor) retire() bool {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	if e.workers <= e.cfg.CoreWorkers {
		return false
	}
	e.workers--
	return true
}

func (e *Executor) exit() {
	e.wmu.Lock()
	e.workers--
	e.wmu.Unlock()
}

func (e *Executor) run(t Task) {
	if e.abandon.Load() {
		e.drop(t, ErrAbandoned)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.panics.Add(1)
			e.opts.logger.Error("xpool: task panic recovered",
				slog.String("pool", e.opts.name),
				slog.String("task", t.Name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
		e.completed.Add(1)
	}()
	t.Run()
}

func (e *Executor) drop(t Task, reason error) {
	e.dropped.Add(1)
	e.opts.logger.Warn("xpool: task dropped",
		slog.String("pool", e.opts.name),
		slog.String("task", t.Name),
		slog.String("reason", reason.Error()),
	)
	if t.OnDropped != nil {
		t.OnDropped(reason)
	}
}

// Shutdown 拒绝新任务并等待已入队任务执行完毕。
//
// ctx 到期时剩余排队任务被放弃（回调 OnDropped），返回 [ErrShutdownTimeout]；
// 正在执行的任务不会被打断。
func (e *Executor) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	e.mu.Lock()
	if !e.stopped {
		e.stopped = true
		close(e.queue)
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		e.abandon.Store(true)
		return fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}
}

// Stats 返回统计快照。
func (e *Executor) Stats() Stats {
	e.wmu.Lock()
	workers := e.workers
	e.wmu.Unlock()
	return Stats{
		Submitted:  e.submitted.Load(),
		Completed:  e.completed.Load(),
		CallerRuns: e.callerRuns.Load(),
		Dropped:    e.dropped.Load(),
		Rejected:   e.rejected.Load(),
		Panics:     e.panics.Load(),
		Workers:    workers,
		Queued:     len(e.queue),
	}
}
