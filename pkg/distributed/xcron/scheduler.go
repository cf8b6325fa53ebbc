package xcron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/xdelay/pkg/observability/xlog"
)

var (
	ErrNilJob    = errors.New("xcron: nil job")
	ErrEmptyName = errors.New("xcron: empty job name")
	ErrDuplicate = errors.New("xcron: duplicate job name")
)

// JobFunc 任务函数。
type JobFunc func(ctx context.Context) error

// Scheduler 调度器。
type Scheduler struct {
	cron  *cron.Cron
	opts  *schedulerOptions
	stats *Stats

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

// New 创建调度器。
func New(opts ...Option) *Scheduler {
	o := &schedulerOptions{
		logger:    xlog.Default(),
		location:  time.Local,
		keyPrefix: "xcron:",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(o.location), cron.WithParser(o.parser())),
		opts:    o,
		stats:   newStats(),
		baseCtx: ctx,
		cancel:  cancel,
		jobs:    make(map[string]cron.EntryID),
	}
}

// AddFunc 注册任务。name 用作锁 key 与统计维度，必须唯一。
func (s *Scheduler) AddFunc(spec, name string, fn JobFunc, opts ...JobOption) error {
	if fn == nil {
		return ErrNilJob
	}
	if name == "" {
		return ErrEmptyName
	}
	jo := &jobOptions{lockTTL: 5 * time.Minute}
	for _, opt := range opts {
		if opt != nil {
			opt(jo)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	j := &job{s: s, name: name, fn: fn, opts: jo}
	id, err := s.cron.AddJob(spec, j)
	if err != nil {
		return fmt.Errorf("xcron: add job %s: %w", name, err)
	}
	s.jobs[name] = id

	if jo.immediate {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			j.run(s.baseCtx)
		}()
	}
	return nil
}

// Remove 移除任务，正在执行的不受影响。
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.jobs[name]; ok {
		s.cron.Remove(id)
		delete(s.jobs, name)
	}
}

// RunNow 在当前 goroutine 中按调度规则（含锁）执行一次任务，返回是否实际执行。
func (s *Scheduler) RunNow(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	id, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("xcron: job %s not found", name)
	}
	j, _ := s.cron.Entry(id).Job.(*job)
	if j == nil {
		return false, fmt.Errorf("xcron: job %s not found", name)
	}
	return j.run(ctx)
}

// Start 非阻塞启动。
func (s *Scheduler) Start() { s.cron.Start() }

// Stop 停止调度并等待运行中的任务结束；ctx 到期后返回 ctx.Err()。
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	waitImmediate := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waitImmediate)
	}()
	for _, ch := range []<-chan struct{}{done.Done(), waitImmediate} {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Stats 执行统计。
func (s *Scheduler) Stats() *Stats { return s.stats }

// Names 已注册任务名。
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for n := range s.jobs {
		out = append(out, n)
	}
	return out
}
