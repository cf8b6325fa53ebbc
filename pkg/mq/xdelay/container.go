package xdelay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/resilience/xlimit"
)

// Container 延迟消息消费容器：Concurrency 个 worker，各自拥有 Source 与线程池。
//
// 生命周期 NEW → RUNNING → STOPPING → STOPPED，任一 worker 出现不可恢复错误时进入 FAILED。
// 停止后不能再次启动。
type Container struct {
	desc    ContainerDescriptor
	binding *HandlerBinding
	sources SourceFactory
	opts    *containerOptions
	limiter xlimit.Limiter
	logger  xlog.Logger
	stats   counters

	mu      sync.Mutex
	state   State
	workers []*worker
	err     error
	done    chan struct{}

	pollCancel context.CancelFunc
	// taskCtx 处理函数的父 ctx，强制停止时取消。
	taskCtx    context.Context
	taskCancel context.CancelFunc
	// drainCtx 线程池排空的 ctx，停止超时后取消。
	drainCtx    context.Context
	drainCancel context.CancelFunc
}

// NewContainer 按描述创建容器，不启动。
func NewContainer(desc ContainerDescriptor, binding *HandlerBinding, sources SourceFactory, opts ...ContainerOption) (*Container, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if binding == nil {
		return nil, ErrNilBinding
	}
	if sources == nil {
		return nil, ErrNilSourceFactory
	}
	o := defaultContainerOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	limiter := o.limiter
	if limiter == nil {
		limiter = xlimit.NewLocal(xlimit.Config{Rate: desc.RateLimit})
	}
	desc.Topics = append([]string(nil), desc.Topics...)
	return &Container{
		desc:    desc,
		binding: binding,
		sources: sources,
		opts:    o,
		limiter: limiter,
		logger:  o.logger.With(xlog.Container(desc.Name)),
	}, nil
}

// CreateContainer 以 "delay-<topics>" 命名创建容器，AutoStart 为 true。
func CreateContainer(topics []string, binding *HandlerBinding, concurrency int, async AsyncProcessingConfig, sources SourceFactory, opts ...ContainerOption) (*Container, error) {
	return NewContainer(ContainerDescriptor{
		Name:        "delay-" + strings.Join(topics, "+"),
		Topics:      topics,
		Concurrency: concurrency,
		Async:       async,
		AutoStart:   true,
	}, binding, sources, opts...)
}

// Name 容器名。
func (c *Container) Name() string { return c.desc.Name }

// Descriptor 容器描述的副本。
func (c *Container) Descriptor() ContainerDescriptor {
	d := c.desc
	d.Topics = append([]string(nil), c.desc.Topics...)
	return d
}

// State 当前状态。
func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start 创建各 worker 的 Source 与线程池并开始拉取，立即返回。
// 重复调用无副作用；停止或失败后返回 ErrStopped。
// ctx 只提供值，它的取消不会停止容器，停止请调用 Stop。
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateRunning:
		return nil
	case StateStopping, StateStopped, StateFailed:
		return ErrStopped
	}

	workers, err := c.buildWorkers()
	if err != nil {
		return err
	}

	base := context.WithoutCancel(ctx)
	pollCtx, pollCancel := context.WithCancel(base)
	c.taskCtx, c.taskCancel = context.WithCancel(base)
	c.drainCtx, c.drainCancel = context.WithCancel(base)
	c.pollCancel = pollCancel
	c.workers = workers
	c.done = make(chan struct{})
	c.state = StateRunning

	g, gctx := errgroup.WithContext(pollCtx)
	for _, w := range workers {
		g.Go(func() error { return w.run(gctx) })
	}
	go c.wait(g)

	c.logger.Info(ctx, "容器已启动",
		xlog.Count(int64(len(workers))),
		xlog.Topic(strings.Join(c.desc.Topics, ",")),
	)
	return nil
}

func (c *Container) buildWorkers() ([]*worker, error) {
	workers := make([]*worker, 0, c.desc.Concurrency)
	closeAll := func() {
		for _, w := range workers {
			_ = w.disp.Shutdown(context.Background())
			_ = w.source.Close()
		}
	}
	for i := range c.desc.Concurrency {
		src, err := c.sources(c.desc.Topics, i)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("xdelay: %s: create source for worker %d: %w", c.desc.Name, i, err)
		}
		disp, err := newDispatcher(c.desc.Async, fmt.Sprintf("%s-%d", c.desc.Name, i), c.logger)
		if err != nil {
			_ = src.Close()
			closeAll()
			return nil, err
		}
		workers = append(workers, &worker{
			c:      c,
			index:  i,
			source: src,
			disp:   disp,
			logger: c.logger.With(xlog.Worker(i)),
		})
	}
	return workers, nil
}

func (c *Container) wait(g *errgroup.Group) {
	err := g.Wait()

	c.mu.Lock()
	if err != nil {
		c.err = err
		c.state = StateFailed
	} else {
		c.state = StateStopped
	}
	c.mu.Unlock()

	c.taskCancel()
	c.drainCancel()
	c.pollCancel()
	if err != nil {
		c.logger.Error(context.Background(), "容器失败", xlog.Err(err))
	} else {
		c.logger.Info(context.Background(), "容器已停止")
	}
	close(c.done)
}

// Stop 停止拉取并等待已派发的消息处理完。
//
// 等待上限取 WithStopTimeout 与 ctx 截止时间中较早者；超时后取消处理函数的 ctx，
// 放弃队列中剩余任务（不提交位点），并返回 ErrStopTimeout。
// 未启动时直接进入 STOPPED；重复调用返回 nil。
func (c *Container) Stop(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateNew:
		c.state = StateStopped
		c.mu.Unlock()
		return nil
	case StateStopped, StateFailed:
		c.mu.Unlock()
		return nil
	case StateRunning:
		c.state = StateStopping
	}
	done := c.done
	c.mu.Unlock()

	c.pollCancel()

	timer := time.NewTimer(c.opts.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	c.logger.Warn(ctx, "停止超时，放弃剩余任务", xlog.Duration(c.opts.stopTimeout))
	c.drainCancel()
	c.taskCancel()
	return ErrStopTimeout
}

// Wait 阻塞到容器结束，返回导致失败的错误；正常停止返回 nil。
func (c *Container) Wait() error {
	c.mu.Lock()
	if c.state == StateNew {
		c.mu.Unlock()
		return ErrNotStarted
	}
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
	return c.Err()
}

// Err 非阻塞地返回失败原因。
func (c *Container) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Stats 统计快照。
func (c *Container) Stats() Stats {
	c.mu.Lock()
	state, workers := c.state, c.workers
	c.mu.Unlock()

	s := Stats{
		Name:       c.desc.Name,
		State:      state,
		Workers:    len(workers),
		Fetched:    c.stats.fetched.Load(),
		Succeeded:  c.stats.succeeded.Load(),
		Failed:     c.stats.failed.Load(),
		Dropped:    c.stats.dropped.Load(),
		Rejected:   c.stats.rejected.Load(),
		Committed:  c.stats.committed.Load(),
		PollErrors: c.stats.pollErrors.Load(),
	}
	for _, w := range workers {
		s.Pool = addPool(s.Pool, w.disp.Stats())
	}
	return s
}

// IsStopTimeout 判断错误是否由停止超时导致。
func IsStopTimeout(err error) bool {
	return errors.Is(err, ErrStopTimeout)
}
