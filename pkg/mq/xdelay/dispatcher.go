package xdelay

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/util/xpool"
)

// dispatcher 把一次投递交给处理函数。
//
// done 在处理结束后恰好调用一次：处理函数的结果，
// 或任务被丢弃/放弃时的 xpool.ErrDiscarded / xpool.ErrAbandoned。
// 返回 error 表示任务被拒绝（ABORT），此时 done 不会被调用。
type dispatcher interface {
	Dispatch(item *DelayItem, run func() error, done func(error)) error
	Shutdown(ctx context.Context) error
	Stats() xpool.Stats
}

// directDispatcher 未启用异步时在拉取 goroutine 上直接执行。
type directDispatcher struct {
	submitted atomic.Int64
	completed atomic.Int64
}

func (d *directDispatcher) Dispatch(_ *DelayItem, run func() error, done func(error)) error {
	d.submitted.Add(1)
	err := run()
	d.completed.Add(1)
	done(err)
	return nil
}

func (d *directDispatcher) Shutdown(context.Context) error { return nil }

func (d *directDispatcher) Stats() xpool.Stats {
	return xpool.Stats{Submitted: d.submitted.Load(), Completed: d.completed.Load()}
}

// poolDispatcher 基于 xpool.Executor 的异步派发。
type poolDispatcher struct {
	exec   *xpool.Executor
	logger xlog.Logger
}

func newDispatcher(cfg AsyncProcessingConfig, name string, logger xlog.Logger) (dispatcher, error) {
	if !cfg.Enabled {
		return &directDispatcher{}, nil
	}
	exec, err := xpool.NewExecutor(cfg.executorConfig(),
		xpool.WithName(name),
		xpool.WithLogger(xlog.Slog(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAsyncConfig, err)
	}
	return &poolDispatcher{exec: exec, logger: logger}, nil
}

func (d *poolDispatcher) Dispatch(item *DelayItem, run func() error, done func(error)) error {
	return d.exec.Submit(xpool.Task{
		Name: item.Record.MessageID(),
		Run: func() {
			done(run())
		},
		OnDropped: func(reason error) {
			done(reason)
		},
	})
}

func (d *poolDispatcher) Shutdown(ctx context.Context) error {
	err := d.exec.Shutdown(ctx)
	if errors.Is(err, xpool.ErrShutdownTimeout) {
		return fmt.Errorf("%w: %w", ErrStopTimeout, err)
	}
	return err
}

func (d *poolDispatcher) Stats() xpool.Stats {
	return d.exec.Stats()
}
