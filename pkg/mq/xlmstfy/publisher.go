package xlmstfy

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/omeyang/xdelay/internal/mqcore"
	"github.com/omeyang/xdelay/pkg/mq/xdelay"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

// Publisher 实现 xdelay.DelayPublisher。
type Publisher struct {
	c      *Client
	closed atomic.Bool
}

// NewPublisher 返回共享该客户端的 Publisher。
func (c *Client) NewPublisher() *Publisher {
	return &Publisher{c: c}
}

// PublishWithDelay 以信封格式写入队列 msg.Topic，延迟向上取整到秒。
func (p *Publisher) PublishWithDelay(ctx context.Context, msg *xdelay.OutboundMessage, delay time.Duration) (err error) {
	if p.closed.Load() {
		return ErrClosed
	}
	if delay < 0 {
		return xdelay.ErrNegativeDelay
	}
	if msg == nil {
		return ErrNilMessage
	}
	o := p.c.opts
	ctx, span := xmetrics.Start(ctx, o.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "publish",
		Kind:      xmetrics.KindProducer,
		Attrs:     lmstfyAttrs(msg.Topic),
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	delaySec := seconds(delay)
	out, err := xdelay.Stamp(ctx, msg, o.Tracer, o.now().Add(time.Duration(delaySec)*time.Second))
	if err != nil {
		return err
	}
	data, err := mqcore.EncodeEnvelope(mqcore.Envelope{Headers: out.Headers, Key: out.Key, Payload: out.Payload})
	if err != nil {
		return err
	}
	ttl := seconds(o.JobTTL)
	if ttl != 0 && ttl <= delaySec {
		// 任务须在到期后仍然存活
		ttl += delaySec
	}
	jobID, err := p.c.q.Publish(out.Topic, data, ttl, o.Tries, delaySec)
	if err != nil {
		p.c.errs.Add(1)
		return fmt.Errorf("xlmstfy: publish: %w", err)
	}
	p.c.published.Add(1)
	o.Logger.Debug(ctx, "延迟任务已发布",
		xlog.Topic(out.Topic), xlog.MessageID(out.Headers[xdelay.HeaderMessageID]),
		slog.String("job_id", jobID), xlog.Duration(delay))
	return nil
}

// Close 之后的发布返回 ErrClosed，不影响共享的 Client。
func (p *Publisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return nil
}

var _ xdelay.DelayPublisher = (*Publisher)(nil)
