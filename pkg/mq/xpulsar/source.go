package xpulsar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/apache/pulsar-client-go/pulsar"

	"github.com/omeyang/xdelay/pkg/mq/xdelay"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

// SourceStats Source 统计。
type SourceStats struct {
	Fetched   int64
	Committed int64
	InFlight  int64
	Errors    int64
}

// Source 实现 xdelay.Source，基于 Shared 订阅。
// Fetch 只能由一个 goroutine 调用，Commit 可并发。
type Source struct {
	consumer pulsar.Consumer
	opts     *sourceOptions

	// pending 记录已交付未确认的消息 ID
	pending sync.Map // *xdelay.InboundRecord -> pulsar.MessageID

	mu     sync.RWMutex
	closed atomic.Bool

	fetched   atomic.Int64
	committed atomic.Int64
	inFlight  atomic.Int64
	errs      atomic.Int64
}

// Sources 返回 SourceFactory：每个 worker 一个 Consumer，共享同一订阅名。
func (c *Client) Sources(subscription string, opts ...SourceOption) xdelay.SourceFactory {
	return func(topics []string, worker int) (xdelay.Source, error) {
		return c.NewSource(subscription, topics, append(opts, WithWorker(worker))...)
	}
}

// NewSource 订阅 topics 并返回 Source。
func (c *Client) NewSource(subscription string, topics []string, opts ...SourceOption) (*Source, error) {
	if len(topics) == 0 {
		return nil, ErrEmptyTopics
	}
	if subscription == "" {
		return nil, ErrEmptySubscription
	}
	o := defaultSourceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	consumer, err := c.subscribe(pulsar.ConsumerOptions{
		Topics:                      topics,
		SubscriptionName:            subscription,
		Name:                        fmt.Sprintf("%s-%d", subscription, o.Worker),
		Type:                        pulsar.Shared,
		SubscriptionInitialPosition: o.InitialPos,
		NackRedeliveryDelay:         o.NackDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("xpulsar: subscribe: %w", err)
	}
	return newSource(consumer, o), nil
}

func newSource(consumer pulsar.Consumer, o *sourceOptions) *Source {
	return &Source{consumer: consumer, opts: o}
}

// Fetch 在 PollTimeout 内等待一条消息，超时返回 (nil, nil)。
// 延迟由 broker 完成，收到的消息都已到期。
func (s *Source) Fetch(ctx context.Context) (*xdelay.InboundRecord, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recvCtx, cancel := context.WithTimeout(ctx, s.opts.PollTimeout)
	defer cancel()

	msg, err := s.consumer.Receive(recvCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || recvCtx.Err() != nil {
			return nil, nil
		}
		s.errs.Add(1)
		return nil, fmt.Errorf("xpulsar: receive: %w", err)
	}
	rec := toInbound(msg)
	s.pending.Store(rec, msg.ID())
	s.fetched.Add(1)
	s.inFlight.Add(1)
	return rec, nil
}

// Commit 单条确认。
func (s *Source) Commit(ctx context.Context, rec *xdelay.InboundRecord) (err error) {
	if rec == nil {
		return ErrNilMessage
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return ErrClosed
	}
	v, ok := s.pending.LoadAndDelete(rec)
	if !ok {
		return ErrUnknownRecord
	}
	_, span := xmetrics.Start(ctx, s.opts.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "ack",
		Kind:      xmetrics.KindConsumer,
		Attrs:     pulsarAttrs(rec.Topic),
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	s.inFlight.Add(-1)
	if err = s.consumer.AckID(v.(pulsar.MessageID)); err != nil {
		s.errs.Add(1)
		return fmt.Errorf("xpulsar: ack: %w", err)
	}
	s.committed.Add(1)
	return nil
}

// Nack 让 broker 在 NackDelay 后重投。
func (s *Source) Nack(rec *xdelay.InboundRecord) error {
	if rec == nil {
		return ErrNilMessage
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return ErrClosed
	}
	v, ok := s.pending.LoadAndDelete(rec)
	if !ok {
		return ErrUnknownRecord
	}
	s.inFlight.Add(-1)
	s.consumer.NackID(v.(pulsar.MessageID))
	s.opts.Logger.Debug(context.Background(), "消息已 nack",
		xlog.Topic(rec.Topic), xlog.MessageID(rec.MessageID()), xlog.Worker(s.opts.Worker))
	return nil
}

// Stats 计数快照。
func (s *Source) Stats() SourceStats {
	return SourceStats{
		Fetched:   s.fetched.Load(),
		Committed: s.committed.Load(),
		InFlight:  s.inFlight.Load(),
		Errors:    s.errs.Load(),
	}
}

// Close 关闭消费者，未确认的消息由 broker 重投。重复调用返回 ErrClosed。
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if n := s.inFlight.Load(); n > 0 {
		s.opts.Logger.Info(context.Background(), "关闭时仍有未确认消息",
			xlog.Count(n), xlog.Worker(s.opts.Worker))
	}
	s.consumer.Close()
	return nil
}

func toInbound(msg pulsar.Message) *xdelay.InboundRecord {
	rec := &xdelay.InboundRecord{
		Topic:     msg.Topic(),
		Value:     msg.Payload(),
		Timestamp: msg.PublishTime(),
	}
	if id := msg.ID(); id != nil {
		rec.Partition = id.PartitionIdx()
		rec.Offset = id.EntryID()
	}
	if k := msg.Key(); k != "" {
		rec.Key = []byte(k)
	}
	if props := msg.Properties(); len(props) > 0 {
		rec.Headers = make(map[string][]byte, len(props))
		for k, v := range props {
			rec.Headers[k] = []byte(v)
		}
	}
	return rec
}

var _ xdelay.Source = (*Source)(nil)
