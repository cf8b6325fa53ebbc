package xcron

import (
	"context"
	"fmt"
	"time"

	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

type job struct {
	s    *Scheduler
	name string
	fn   JobFunc
	opts *jobOptions
}

// Run 实现 cron.Job。
func (j *job) Run() {
	_, _ = j.run(j.s.baseCtx)
}

func (j *job) run(ctx context.Context) (ran bool, err error) {
	o := j.s.opts
	logger := o.logger.With(xlog.Component("xcron"), xlog.Operation(j.name))

	if o.locker != nil {
		key := o.keyPrefix + j.name
		ok, lerr := o.locker.TryAcquire(ctx, key, j.opts.lockTTL)
		if lerr != nil {
			logger.Warn(ctx, "获取任务锁失败", xlog.Err(lerr))
			j.s.stats.record(j.name, outcomeSkipped, 0)
			return false, lerr
		}
		if !ok {
			logger.Debug(ctx, "任务锁被其他实例持有，跳过")
			j.s.stats.record(j.name, outcomeSkipped, 0)
			return false, nil
		}
		defer func() {
			// 用独立 ctx 释放，避免任务超时后锁无法删除
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if rerr := o.locker.Release(rctx, key); rerr != nil {
				logger.Warn(ctx, "释放任务锁失败", xlog.Err(rerr))
			}
		}()
	}

	if j.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.opts.timeout)
		defer cancel()
	}
	ctx, span := xmetrics.Start(ctx, o.observer, xmetrics.SpanOptions{
		Component: "xcron", Operation: j.name, Kind: xmetrics.KindInternal,
	})

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("xcron: job %s panic: %v", j.name, r)
		}
		d := time.Since(start)
		span.End(xmetrics.Result{Err: err})
		if err != nil {
			j.s.stats.record(j.name, outcomeFailed, d)
			logger.Error(ctx, "任务执行失败", xlog.Err(err), xlog.Duration(d))
			return
		}
		j.s.stats.record(j.name, outcomeSucceeded, d)
		logger.Debug(ctx, "任务执行完成", xlog.Duration(d))
	}()

	return true, j.fn(ctx)
}
