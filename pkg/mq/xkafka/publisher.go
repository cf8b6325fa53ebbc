package xkafka

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/omeyang/xdelay/pkg/mq/xdelay"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

// kafkaProducer *kafka.Producer 中 Publisher 用到的部分。
type kafkaProducer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Len() int
	GetMetadata(topic *string, allTopics bool, timeoutMs int) (*kafka.Metadata, error)
	Close()
}

// PublisherStats Publisher 统计。
type PublisherStats struct {
	Published   int64
	Bytes       int64
	Errors      int64
	QueueLength int
}

// Publisher 实现 xdelay.DelayPublisher。
type Publisher struct {
	producer kafkaProducer
	opts     *publisherOptions

	// mu 保护 GetMetadata、Flush、Close 等管理操作，Produce 本身线程安全
	mu     sync.Mutex
	closed atomic.Bool

	published atomic.Int64
	bytes     atomic.Int64
	errs      atomic.Int64
}

// NewPublisher 创建生产者。config 须包含 bootstrap.servers。
func NewPublisher(config *kafka.ConfigMap, opts ...PublisherOption) (*Publisher, error) {
	cfg, err := cloneConfig(config)
	if err != nil {
		return nil, err
	}
	producer, err := kafka.NewProducer(cfg)
	if err != nil {
		return nil, fmt.Errorf("xkafka: new producer: %w", err)
	}
	return newPublisher(producer, opts...), nil
}

func newPublisher(producer kafkaProducer, opts ...PublisherOption) *Publisher {
	o := defaultPublisherOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Publisher{producer: producer, opts: o}
}

// PublishWithDelay 立即写入 Kafka，x-deliver-at 为 now+delay，由消费端 Source 延迟交付。
// 同步等待投递报告。
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
		Attrs:     kafkaAttrs(msg.Topic),
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	out, err := xdelay.Stamp(ctx, msg, p.opts.Tracer, p.opts.now().Add(delay))
	if err != nil {
		return err
	}
	km := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &out.Topic, Partition: kafka.PartitionAny},
		Value:          out.Payload,
		Headers:        sortedHeaders(out.Headers),
	}
	if out.Key != "" {
		km.Key = []byte(out.Key)
	}

	report := make(chan kafka.Event, 1)
	if err = p.producer.Produce(km, report); err != nil {
		p.errs.Add(1)
		return fmt.Errorf("xkafka: produce: %w", err)
	}
	select {
	case ev := <-report:
		m, ok := ev.(*kafka.Message)
		if !ok {
			p.errs.Add(1)
			return fmt.Errorf("%w: unexpected event %v", ErrDelivery, ev)
		}
		if m.TopicPartition.Error != nil {
			p.errs.Add(1)
			return fmt.Errorf("%w: %w", ErrDelivery, m.TopicPartition.Error)
		}
	case <-ctx.Done():
		// 消息已入队，结果未知
		p.errs.Add(1)
		return ctx.Err()
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

// Health 拉取 broker 元数据。
func (p *Publisher) Health(ctx context.Context) (err error) {
	if p.closed.Load() {
		return ErrClosed
	}
	ctx, span := xmetrics.Start(ctx, p.opts.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "health",
		Kind:      xmetrics.KindClient,
		Attrs:     kafkaAttrs(""),
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	done := make(chan error, 1)
	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed.Load() {
			done <- ErrClosed
			return
		}
		if _, err := p.producer.GetMetadata(nil, true, int(p.opts.HealthTimeout.Milliseconds())); err != nil {
			done <- fmt.Errorf("xkafka: producer health: %w", err)
			return
		}
		done <- nil
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err = <-done:
		return err
	}
}

// Stats 计数快照，关闭后 QueueLength 为 0。
func (p *Publisher) Stats() PublisherStats {
	var queue int
	p.mu.Lock()
	if !p.closed.Load() {
		queue = p.producer.Len()
	}
	p.mu.Unlock()
	return PublisherStats{
		Published:   p.published.Load(),
		Bytes:       p.bytes.Load(),
		Errors:      p.errs.Load(),
		QueueLength: queue,
	}
}

// Close 等待队列发送完成（受 FlushTimeout 限制）后关闭。重复调用返回 ErrClosed。
func (p *Publisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	remaining := p.producer.Flush(int(p.opts.FlushTimeout.Milliseconds()))
	p.producer.Close()
	if remaining > 0 {
		return fmt.Errorf("%w: %d messages still in queue", ErrFlushTimeout, remaining)
	}
	return nil
}

// sortedHeaders 按键排序，同一消息的头部顺序稳定。
func sortedHeaders(h map[string]string) []kafka.Header {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, kafka.Header{Key: k, Value: []byte(h[k])})
	}
	return out
}

var (
	_ xdelay.DelayPublisher = (*Publisher)(nil)
	_ kafkaProducer         = (*kafka.Producer)(nil)
)
