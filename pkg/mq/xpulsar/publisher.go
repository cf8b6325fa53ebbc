package xpulsar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"

	"github.com/omeyang/xdelay/pkg/mq/xdelay"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

// PublisherStats Publisher 统计。
type PublisherStats struct {
	Published int64
	Bytes     int64
	Errors    int64
	Producers int
}

// Publisher 实现 xdelay.DelayPublisher，按 topic 懒创建生产者。
type Publisher struct {
	create func(pulsar.ProducerOptions) (pulsar.Producer, error)
	opts   *publisherOptions

	mu        sync.Mutex
	producers map[string]pulsar.Producer
	closed    atomic.Bool

	published atomic.Int64
	bytes     atomic.Int64
	errs      atomic.Int64
}

// NewPublisher 创建绑定到该客户端的 Publisher。
func (c *Client) NewPublisher(opts ...PublisherOption) *Publisher {
	return newPublisher(c.createProducer, opts...)
}

func newPublisher(create func(pulsar.ProducerOptions) (pulsar.Producer, error), opts ...PublisherOption) *Publisher {
	o := defaultPublisherOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Publisher{create: create, opts: o, producers: make(map[string]pulsar.Producer)}
}

// PublishWithDelay 以 DeliverAfter 发送，broker 负责延迟；同时写入 x-deliver-at。
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
	ctx, span := xmetrics.Start(ctx, p.opts.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "publish",
		Kind:      xmetrics.KindProducer,
		Attrs:     pulsarAttrs(msg.Topic),
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	out, err := xdelay.Stamp(ctx, msg, p.opts.Tracer, p.opts.now().Add(delay))
	if err != nil {
		return err
	}
	producer, err := p.producer(out.Topic)
	if err != nil {
		p.errs.Add(1)
		return err
	}
	pm := &pulsar.ProducerMessage{
		Payload:    out.Payload,
		Key:        out.Key,
		Properties: out.Headers,
	}
	if delay > 0 {
		pm.DeliverAfter = delay
	}
	if _, err = producer.Send(ctx, pm); err != nil {
		p.errs.Add(1)
		return fmt.Errorf("xpulsar: send: %w", err)
	}
	p.published.Add(1)
	p.bytes.Add(int64(len(out.Payload)))
	p.opts.Logger.Debug(ctx, "延迟消息已发送",
		xlog.Topic(out.Topic), xlog.MessageID(out.Headers[xdelay.HeaderMessageID]), xlog.Duration(delay))
	return nil
}

// Publish 立即投递。
func (p *Publisher) Publish(ctx context.Context, msg *xdelay.OutboundMessage) error {
	return p.PublishWithDelay(ctx, msg, 0)
}

func (p *Publisher) producer(topic string) (pulsar.Producer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Load() {
		return nil, ErrClosed
	}
	if pr, ok := p.producers[topic]; ok {
		return pr, nil
	}
	pr, err := p.create(pulsar.ProducerOptions{
		Topic:       topic,
		SendTimeout: p.opts.SendTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("xpulsar: create producer %q: %w", topic, err)
	}
	p.producers[topic] = pr
	return pr, nil
}

// Stats 计数快照。
func (p *Publisher) Stats() PublisherStats {
	p.mu.Lock()
	n := len(p.producers)
	p.mu.Unlock()
	return PublisherStats{
		Published: p.published.Load(),
		Bytes:     p.bytes.Load(),
		Errors:    p.errs.Load(),
		Producers: n,
	}
}

// Close 刷新并关闭所有生产者。重复调用返回 ErrClosed。
func (p *Publisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for topic, pr := range p.producers {
		if err := pr.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("xpulsar: flush %q: %w", topic, err))
		}
		pr.Close()
	}
	p.producers = map[string]pulsar.Producer{}
	return errors.Join(errs...)
}

var _ xdelay.DelayPublisher = (*Publisher)(nil)
