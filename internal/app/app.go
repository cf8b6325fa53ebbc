package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xdelay/pkg/config/xconf"
	"github.com/omeyang/xdelay/pkg/distributed/xcron"
	"github.com/omeyang/xdelay/pkg/distributed/xdlock"
	"github.com/omeyang/xdelay/pkg/lifecycle/xrun"
	"github.com/omeyang/xdelay/pkg/mq/xdelay"
	"github.com/omeyang/xdelay/pkg/mq/xidem"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
)

// ErrClosed App 已关闭。
var ErrClosed = errors.New("app: closed")

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// App 一个 xdelay 实例的全部组件。
type App struct {
	cfg    *xconf.Config
	opts   *options
	logger xlog.LoggerWithLevel

	redis     redis.UniversalClient
	store     xidem.RecordStore
	locker    xdlock.Locker
	publisher xdelay.DelayPublisher
	sources   xdelay.SourceFactory
	coord     *xidem.Coordinator
	guard     *xidem.Guard
	registry  *xdelay.Registry
	scheduler *xcron.Scheduler
	sweeper   *xidem.Sweeper

	// closers 按创建顺序登记，Close 时逆序执行
	closers []closer
	closed  atomic.Bool
}

// New 按 cfg 创建全部组件。cfg 须已通过 Validate。
// 任一步失败时释放已创建的资源。
func New(ctx context.Context, cfg *xconf.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	a := &App{cfg: cfg, opts: o}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"logger", a.buildLogger},
		{"redis", a.buildRedis},
		{"store", a.buildStore},
		{"lock", a.buildLocker},
		{"broker", a.buildBroker},
		{"coordinator", a.buildCoordinator},
		{"containers", a.buildContainers},
		{"sweeper", a.buildSweeper},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return nil, errors.Join(fmt.Errorf("app: build %s: %w", s.name, err), a.Close(ctx))
		}
	}
	a.logger.Info(ctx, "组件装配完成",
		xlog.Component(cfg.App.Name),
		xlog.Count(int64(len(a.registry.Names()))),
	)
	return a, nil
}

func (a *App) onClose(name string, fn func(ctx context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Config 当前配置。
func (a *App) Config() *xconf.Config { return a.cfg }

// Logger 日志。
func (a *App) Logger() xlog.LoggerWithLevel { return a.logger }

// Store 记录存储。
func (a *App) Store() xidem.RecordStore { return a.store }

// Coordinator 幂等协调器。
func (a *App) Coordinator() *xidem.Coordinator { return a.coord }

// Publisher 延迟发布器。
func (a *App) Publisher() xdelay.DelayPublisher { return a.publisher }

// Registry 容器注册表。
func (a *App) Registry() *xdelay.Registry { return a.registry }

// Sweeper 清扫任务，未启用时为 nil。
func (a *App) Sweeper() *xidem.Sweeper { return a.sweeper }

// Services 运行所需的服务：容器、清扫调度器与统计日志。
func (a *App) Services() []xrun.Service {
	timeout := a.cfg.App.StopTimeout
	svcs := []xrun.Service{
		xrun.Lifecycle("containers", a.registry.StartAll, a.registry.StopAll, timeout),
	}
	if a.scheduler != nil {
		svcs = append(svcs, xrun.Lifecycle("sweeper",
			func(context.Context) error { a.scheduler.Start(); return nil },
			a.scheduler.Stop,
			timeout,
		))
	}
	svcs = append(svcs, xrun.Ticker("stats", a.opts.statsInterval, a.logStats))
	return svcs
}

// Run 运行 Services 与 extra，直到收到 SIGINT/SIGTERM 或某个服务出错。
func (a *App) Run(ctx context.Context, extra ...xrun.Service) error {
	if a.closed.Load() {
		return ErrClosed
	}
	svcs := append(a.Services(), extra...)
	err := xrun.Run(ctx, []xrun.Option{
		xrun.WithLogger(a.logger),
		xrun.WithName(a.cfg.App.Name),
	}, svcs...)
	// 只有信号、没有停止错误时视为正常退出
	if _, ok := err.(*xrun.SignalError); ok {
		return nil
	}
	return err
}

func (a *App) logStats(ctx context.Context) error {
	for _, s := range a.registry.Stats() {
		a.logger.Info(ctx, "容器统计",
			xlog.Container(s.Name),
			xlog.Status(s.State.String()),
			xlog.Count(s.Fetched),
			slog.Int64("succeeded", s.Succeeded),
			slog.Int64("failed", s.Failed),
			slog.Int64("dropped", s.Dropped),
			slog.Int64("rejected", s.Rejected),
		)
	}
	cs := a.coord.Stats()
	a.logger.Info(ctx, "协调器统计",
		slog.Int64("created", cs.Created),
		slog.Int64("succeeded", cs.Succeeded),
		slog.Int64("failed", cs.Failed),
		slog.Int64("retried", cs.Retried),
		slog.Int64("exhausted", cs.Exhausted),
		slog.Int64("publish_errors", cs.PublishErrors),
	)
	return nil
}

// Close 逆序释放资源，汇总错误。重复调用返回 ErrClosed。
func (a *App) Close(ctx context.Context) error {
	if !a.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("app: close %s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}
