package xdelay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/omeyang/xdelay/internal/mqcore"
	"github.com/omeyang/xdelay/pkg/context/xctx"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
	"github.com/omeyang/xdelay/pkg/util/xpool"
)

// commitTimeout 单次提交位点的超时，与处理函数的 ctx 无关。
const commitTimeout = 10 * time.Second

// worker 拥有一个 Source 与一个 dispatcher，拉取 goroutine 只有一个。
type worker struct {
	c      *Container
	index  int
	source Source
	disp   dispatcher
	logger xlog.Logger

	cancel context.CancelFunc
	// fatal 只在拉取 goroutine 上读写。
	fatal error
}

func (w *worker) run(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	defer w.cancel()

	err := mqcore.RunConsumeLoop(ctx, w.pollOnce,
		mqcore.WithBackoff(w.c.opts.pollBackoff),
		mqcore.WithOnError(func(attempt int, err error) {
			w.c.stats.pollErrors.Add(1)
			w.logger.Warn(ctx, "拉取消息失败，退避后重试",
				xlog.Err(err), slog.Int("attempt", attempt))
		}),
	)
	w.shutdown()

	if w.fatal != nil {
		return w.fatal
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *worker) pollOnce(ctx context.Context) error {
	if err := w.c.limiter.Wait(ctx); err != nil {
		return err
	}
	rec, err := w.source.Fetch(ctx)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	w.c.stats.fetched.Add(1)
	w.dispatch(newDelayItem(rec, w.index, w.c.opts.now()))
	return nil
}

func (w *worker) dispatch(item *DelayItem) {
	hctx := w.handlerContext(item)
	err := w.disp.Dispatch(item,
		func() error { return w.invoke(hctx, item) },
		func(err error) { w.complete(hctx, item, err) },
	)
	if err == nil {
		return
	}

	w.c.stats.rejected.Add(1)
	xmetrics.Count(hctx, w.c.opts.observer, "xdelay.tasks.rejected", 1,
		xmetrics.String("container", w.c.desc.Name))
	if rh := w.c.binding.RejectionHandler(); rh != nil {
		herr := rh.OnRejected(hctx, item, err)
		if herr == nil {
			w.logger.Warn(hctx, "任务被拒绝，已交由拒绝处理", xlog.MessageID(item.Record.MessageID()))
			w.commit(hctx, item)
			return
		}
		err = errors.Join(err, herr)
	}
	w.fatal = fmt.Errorf("xdelay: %s: worker %d: dispatch rejected: %w", w.c.desc.Name, w.index, err)
	w.logger.Error(hctx, "任务被拒绝且无法兜底，容器失败", xlog.Err(err))
	w.cancel()
}

// handlerContext 处理函数使用的 ctx：停止拉取不会取消它，强制停止会。
func (w *worker) handlerContext(item *DelayItem) context.Context {
	rec := item.Record
	ctx := w.c.opts.tracer.Extract(w.c.taskCtx, rec.StringHeaders())
	ctx = xctx.WithDelivery(ctx, xctx.Delivery{
		Container: w.c.desc.Name,
		Worker:    w.index,
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
	})
	return xctx.WithMessageID(ctx, rec.MessageID())
}

func (w *worker) invoke(ctx context.Context, item *DelayItem) error {
	ctx, span := xmetrics.Start(ctx, w.c.opts.observer, xmetrics.SpanOptions{
		Component: "xdelay",
		Operation: "handle",
		Kind:      xmetrics.KindConsumer,
		Attrs: []xmetrics.Attr{
			xmetrics.String("container", w.c.desc.Name),
			xmetrics.String("topic", item.Record.Topic),
			xmetrics.Int("worker", w.index),
		},
	})
	err := w.c.binding.Invoke(ctx, item)
	span.End(xmetrics.Result{Err: err})
	return err
}

// complete 处理结束后的统计、回调与提交。强制停止放弃的消息不提交，由 broker 重投。
func (w *worker) complete(ctx context.Context, item *DelayItem, err error) {
	id := item.Record.MessageID()
	switch {
	case err == nil:
		w.c.stats.succeeded.Add(1)
	case errors.Is(err, xpool.ErrAbandoned):
		w.c.stats.dropped.Add(1)
		w.logger.Warn(ctx, "强制停止，消息未处理", xlog.MessageID(id))
		return
	case errors.Is(err, xpool.ErrDiscarded):
		w.c.stats.dropped.Add(1)
		xmetrics.Count(ctx, w.c.opts.observer, "xdelay.tasks.dropped", 1,
			xmetrics.String("container", w.c.desc.Name))
		w.logger.Warn(ctx, "线程池饱和，消息被丢弃", xlog.MessageID(id))
		w.notify(ctx, item, err)
	default:
		w.c.stats.failed.Add(1)
		w.logger.Warn(ctx, "消息处理失败", xlog.MessageID(id), xlog.Err(err))
		w.notify(ctx, item, err)
	}
	w.commit(ctx, item)
}

func (w *worker) notify(ctx context.Context, item *DelayItem, err error) {
	if w.c.opts.onError != nil {
		w.c.opts.onError(ctx, item, err)
	}
}

func (w *worker) commit(ctx context.Context, item *DelayItem) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	if err := w.source.Commit(cctx, item.Record); err != nil {
		w.logger.Warn(ctx, "提交位点失败", xlog.MessageID(item.Record.MessageID()), xlog.Err(err))
		return
	}
	w.c.stats.committed.Add(1)
}

// shutdown 排空线程池后关闭 Source。
func (w *worker) shutdown() {
	ctx := context.Background()
	if err := w.disp.Shutdown(w.c.drainCtx); err != nil {
		w.logger.Warn(ctx, "线程池未能排空", xlog.Err(err))
	}
	if err := w.source.Close(); err != nil {
		w.logger.Warn(ctx, "关闭消息源失败", xlog.Err(err))
	}
}
