package xrun

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xdelay/pkg/observability/xlog"
)

// Group 并发运行一组服务，任一返回错误即取消全部。
//
// Go 与 Cancel 可并发调用，Wait 只调用一次。
type Group struct {
	eg       *errgroup.Group
	ctx      context.Context
	causeCtx context.Context
	cancel   context.CancelCauseFunc
	opts     *options
}

// NewGroup 创建 Group，返回的 context 在任一服务出错或 Cancel 时取消。
func NewGroup(ctx context.Context, opts ...Option) (*Group, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	causeCtx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(causeCtx)
	return &Group{
		eg:       eg,
		ctx:      egCtx,
		causeCtx: causeCtx,
		cancel:   cancel,
		opts:     applyOptions(opts),
	}, egCtx
}

// Go 以 name 启动 fn，出错时记录日志。
func (g *Group) Go(name string, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		attrs := []slog.Attr{slog.String("group", g.opts.name), xlog.Component(name)}
		g.opts.logger.Debug(g.ctx, "服务启动", attrs...)
		err := fn(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.opts.logger.Error(g.ctx, "服务异常退出", append(attrs, xlog.Err(err))...)
		} else {
			g.opts.logger.Debug(g.ctx, "服务已停止", attrs...)
		}
		return err
	})
}

// Wait 等待全部服务结束。
//
// Cancel 或信号给出的原因优先返回；普通取消返回 nil。
// 原因与服务错误同时存在时合并返回。
func (g *Group) Wait() error {
	defer g.cancel(nil)

	err := g.eg.Wait()

	var cause error
	if g.causeCtx.Err() != nil {
		if c := context.Cause(g.causeCtx); c != nil && !errors.Is(c, context.Canceled) {
			cause = c
		}
	}

	switch {
	case err == nil:
		return cause
	case errors.Is(err, context.Canceled):
		// 取消来自服务内部时不过滤
		if g.causeCtx.Err() == nil {
			return err
		}
		return cause
	case cause != nil && !errors.Is(err, cause):
		return errors.Join(cause, err)
	default:
		return err
	}
}

// Cancel 以 cause 取消全部服务，Wait 返回 cause。
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// Context Group 的 context。
func (g *Group) Context() context.Context {
	return g.ctx
}

// Run 监听终止信号并运行 services，直到全部退出。
// 收到信号时返回 *SignalError。
func Run(ctx context.Context, opts []Option, services ...Service) error {
	g, _ := NewGroup(ctx, opts...)

	if !g.opts.noSignalHandler {
		signals := g.opts.signals
		if len(signals) == 0 {
			signals = DefaultSignals()
		}
		g.Go("signal", func(ctx context.Context) error {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, signals...)
			defer signal.Stop(sigCh)

			var sig os.Signal
			select {
			case sig = <-testSigChan(ctx):
			case sig = <-sigCh:
			case <-ctx.Done():
				return nil
			}
			g.opts.logger.Info(ctx, "收到退出信号",
				slog.String("group", g.opts.name),
				slog.String("signal", sig.String()),
			)
			g.cancel(&SignalError{Signal: sig})
			return nil
		})
	}

	for _, svc := range services {
		if svc == nil {
			g.Go("nil", func(context.Context) error { return ErrNilService })
			continue
		}
		g.Go(svc.Name(), svc.Run)
	}
	return g.Wait()
}

type testSigChanKey struct{}

// testSigChan 测试通过 context 注入信号，生产环境返回 nil 通道。
func testSigChan(ctx context.Context) <-chan os.Signal {
	c, _ := ctx.Value(testSigChanKey{}).(<-chan os.Signal)
	return c
}
