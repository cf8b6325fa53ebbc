package xdelay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omeyang/xdelay/internal/mqcore"
)

// MemoryBroker 进程内 broker，同时提供 SourceFactory 与 DelayPublisher。
// 同一 topic 的多个 Source 竞争消费，相当于一个消费组。用于测试与单机运行。
type MemoryBroker struct {
	capacity     int
	pollInterval time.Duration
	tracer       mqcore.Tracer

	mu     sync.Mutex
	topics map[string]*memTopic
	timers map[*time.Timer]struct{}
	closed chan struct{}
	once   sync.Once

	published atomic.Int64
	committed atomic.Int64
}

type memTopic struct {
	ch     chan *InboundRecord
	offset atomic.Int64
}

// MemoryOption 配置 MemoryBroker。
type MemoryOption func(*MemoryBroker)

// WithTopicCapacity 每个 topic 的缓冲大小，默认 1024。缓冲满时发布阻塞。
func WithTopicCapacity(n int) MemoryOption {
	return func(b *MemoryBroker) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// WithPollInterval 订阅多个 topic 时一次 Fetch 的最长等待，默认 50ms。
func WithPollInterval(d time.Duration) MemoryOption {
	return func(b *MemoryBroker) {
		if d > 0 {
			b.pollInterval = d
		}
	}
}

// WithMemoryTracer 发布时注入链路上下文，默认不注入。
func WithMemoryTracer(t mqcore.Tracer) MemoryOption {
	return func(b *MemoryBroker) { b.tracer = t }
}

// NewMemoryBroker 创建内存 broker。
func NewMemoryBroker(opts ...MemoryOption) *MemoryBroker {
	b := &MemoryBroker{
		capacity:     1024,
		pollInterval: 50 * time.Millisecond,
		tracer:       mqcore.NoopTracer{},
		topics:       make(map[string]*memTopic),
		timers:       make(map[*time.Timer]struct{}),
		closed:       make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *MemoryBroker) topic(name string) *memTopic {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[name]
	if !ok {
		t = &memTopic{ch: make(chan *InboundRecord, b.capacity)}
		b.topics[name] = t
	}
	return t
}

// PublishWithDelay delay 为 0 时立即入队，否则由定时器到期后入队。
func (b *MemoryBroker) PublishWithDelay(ctx context.Context, msg *OutboundMessage, delay time.Duration) error {
	if delay < 0 {
		return ErrNegativeDelay
	}
	select {
	case <-b.closed:
		return ErrBrokerClosed
	default:
	}
	out, err := Stamp(ctx, msg, b.tracer, time.Now().Add(delay))
	if err != nil {
		return err
	}
	b.published.Add(1)
	if delay == 0 {
		return b.deliver(ctx, out)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		b.mu.Lock()
		delete(b.timers, timer)
		b.mu.Unlock()
		_ = b.deliver(context.Background(), out)
	})
	b.timers[timer] = struct{}{}
	return nil
}

// Publish 立即投递。
func (b *MemoryBroker) Publish(ctx context.Context, msg *OutboundMessage) error {
	return b.PublishWithDelay(ctx, msg, 0)
}

func (b *MemoryBroker) deliver(ctx context.Context, msg *OutboundMessage) error {
	t := b.topic(msg.Topic)
	headers := make(map[string][]byte, len(msg.Headers))
	for k, v := range msg.Headers {
		headers[k] = []byte(v)
	}
	rec := &InboundRecord{
		Topic:     msg.Topic,
		Offset:    t.offset.Add(1) - 1,
		Key:       []byte(msg.Key),
		Value:     msg.Payload,
		Timestamp: time.Now(),
		Headers:   headers,
	}
	select {
	case t.ch <- rec:
		return nil
	case <-b.closed:
		return ErrBrokerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sources 返回 SourceFactory。
func (b *MemoryBroker) Sources() SourceFactory {
	return func(topics []string, _ int) (Source, error) {
		select {
		case <-b.closed:
			return nil, ErrBrokerClosed
		default:
		}
		ts := make([]*memTopic, 0, len(topics))
		for _, name := range topics {
			ts = append(ts, b.topic(name))
		}
		return &memorySource{broker: b, topics: ts}, nil
	}
}

// Pending 已入队未被拉取的消息数。
func (b *MemoryBroker) Pending(topic string) int {
	return len(b.topic(topic).ch)
}

// Scheduled 尚未到期的延迟消息数。
func (b *MemoryBroker) Scheduled() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.timers)
}

// Published 累计发布数。
func (b *MemoryBroker) Published() int64 { return b.published.Load() }

// Committed 累计提交数。
func (b *MemoryBroker) Committed() int64 { return b.committed.Load() }

// Close 停止全部未到期的定时器。
func (b *MemoryBroker) Close() error {
	b.once.Do(func() {
		close(b.closed)
		b.mu.Lock()
		for t := range b.timers {
			t.Stop()
		}
		clear(b.timers)
		b.mu.Unlock()
	})
	return nil
}

type memorySource struct {
	broker *MemoryBroker
	topics []*memTopic
	closed atomic.Bool
}

func (s *memorySource) Fetch(ctx context.Context) (*InboundRecord, error) {
	if s.closed.Load() {
		return nil, mqcore.ErrClosed
	}
	timer := time.NewTimer(s.broker.pollInterval)
	defer timer.Stop()

	if len(s.topics) == 1 {
		select {
		case rec := <-s.topics[0].ch:
			return rec, nil
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	for {
		for _, t := range s.topics {
			select {
			case rec := <-t.ch:
				return rec, nil
			default:
			}
		}
		select {
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (s *memorySource) Commit(context.Context, *InboundRecord) error {
	s.broker.committed.Add(1)
	return nil
}

func (s *memorySource) Close() error {
	s.closed.Store(true)
	return nil
}

var (
	_ DelayPublisher = (*MemoryBroker)(nil)
	_ Source         = (*memorySource)(nil)
)
