package xidem

import (
	"context"
	"maps"
	"strconv"
	"time"

	"github.com/omeyang/xdelay/pkg/mq/xdelay"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

// outbound 由记录构造重投消息，x-retry-count 为下一次尝试的序号。
func outbound(rec *MessageRecord) *xdelay.OutboundMessage {
	headers := maps.Clone(rec.Headers)
	if headers == nil {
		headers = make(map[string]string, 5)
	}
	headers[xdelay.HeaderMessageID] = rec.MessageID
	headers[xdelay.HeaderRetryCount] = strconv.Itoa(rec.RetryCount + 1)
	headers[xdelay.HeaderOriginTopic] = rec.Topic
	if rec.BusinessKey != "" {
		headers[xdelay.HeaderBusinessKey] = rec.BusinessKey
	}
	if rec.MessageType != "" {
		headers[xdelay.HeaderMessageType] = rec.MessageType
	}
	return &xdelay.OutboundMessage{
		Topic:   rec.Topic,
		Key:     rec.BusinessKey,
		Payload: rec.Content,
		Headers: headers,
	}
}

// schedule 延迟重投。失败只记录日志：记录已带 NextRetryTime，RedeliverDue 会补投。
func (c *Coordinator) schedule(ctx context.Context, rec *MessageRecord, delay time.Duration) bool {
	if c.opts.publisher == nil || rec.Topic == "" {
		return false
	}
	err := c.publish(ctx, outbound(rec), delay)
	if err != nil {
		c.stats.publishErrors.Add(1)
		c.logger.Warn(ctx, "重投消息失败，等待补投",
			xlog.MessageID(rec.MessageID), xlog.Topic(rec.Topic), xlog.Err(err))
		return false
	}
	c.stats.rescheduled.Add(1)
	xmetrics.Count(ctx, c.opts.observer, "xidem.rescheduled", 1, xmetrics.String("topic", rec.Topic))
	c.logger.Debug(ctx, "已安排重投",
		xlog.MessageID(rec.MessageID), xlog.Duration(delay))
	return true
}

// publish 发布经过重试器与熔断器：熔断打开时立即失败，不再重试。
func (c *Coordinator) publish(ctx context.Context, msg *xdelay.OutboundMessage, delay time.Duration) error {
	ctx, span := xmetrics.Start(ctx, c.opts.observer, xmetrics.SpanOptions{
		Component: "xidem",
		Operation: "redeliver",
		Kind:      xmetrics.KindProducer,
		Attrs:     []xmetrics.Attr{xmetrics.String("topic", msg.Topic)},
	})
	c.opts.tracer.Inject(ctx, msg.Headers)

	once := func(ctx context.Context) error {
		if c.opts.breaker != nil {
			return c.opts.breaker.Do(ctx, func(ctx context.Context) error {
				return c.opts.publisher.PublishWithDelay(ctx, msg, delay)
			})
		}
		return c.opts.publisher.PublishWithDelay(ctx, msg, delay)
	}
	var err error
	if c.opts.retryer != nil {
		err = c.opts.retryer.Do(ctx, once)
	} else {
		err = once(ctx)
	}
	span.End(xmetrics.Result{Err: err})
	return err
}
