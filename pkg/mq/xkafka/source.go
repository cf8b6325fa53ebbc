package xkafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/omeyang/xdelay/pkg/mq/xdelay"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

// kafkaConsumer *kafka.Consumer 中 Source 用到的部分。
type kafkaConsumer interface {
	Poll(timeoutMs int) kafka.Event
	Pause(partitions []kafka.TopicPartition) error
	Resume(partitions []kafka.TopicPartition) error
	StoreOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error)
	Commit() ([]kafka.TopicPartition, error)
	Assignment() ([]kafka.TopicPartition, error)
	GetMetadata(topic *string, allTopics bool, timeoutMs int) (*kafka.Metadata, error)
	Close() error
}

// SourceStats Source 统计。
type SourceStats struct {
	Fetched   int64
	Committed int64
	Held      int64
	InFlight  int
	Errors    int64
}

// Source 实现 xdelay.Source。Fetch 只能由一个 goroutine 调用，Commit 可并发。
type Source struct {
	consumer kafkaConsumer
	opts     *sourceOptions
	tracker  *offsetTracker

	// held 只在 Fetch 与其触发的再均衡回调中访问
	held map[partitionKey][]*heldRecord

	// mu 协调 Close 与 Commit
	mu     sync.RWMutex
	closed atomic.Bool

	fetched   atomic.Int64
	committed atomic.Int64
	holding   atomic.Int64
	errs      atomic.Int64
}

type heldRecord struct {
	rec *xdelay.InboundRecord
	due time.Time
}

// Sources 返回 SourceFactory：每个 worker 一个独立的消费者，共享 group.id。
func Sources(config *kafka.ConfigMap, opts ...SourceOption) xdelay.SourceFactory {
	return func(topics []string, worker int) (xdelay.Source, error) {
		return NewSource(config, topics, append(opts, WithWorker(worker))...)
	}
}

// NewSource 创建消费者并订阅 topics。config 须包含 bootstrap.servers 与 group.id。
func NewSource(config *kafka.ConfigMap, topics []string, opts ...SourceOption) (*Source, error) {
	if len(topics) == 0 {
		return nil, ErrEmptyTopics
	}
	cfg, err := cloneConfig(config)
	if err != nil {
		return nil, err
	}
	if err := cfg.SetKey("enable.auto.offset.store", false); err != nil {
		return nil, fmt.Errorf("xkafka: set enable.auto.offset.store: %w", err)
	}
	consumer, err := kafka.NewConsumer(cfg)
	if err != nil {
		return nil, fmt.Errorf("xkafka: new consumer: %w", err)
	}
	s := newSource(consumer, opts...)
	rebalance := func(_ *kafka.Consumer, ev kafka.Event) error {
		s.onRebalance(ev)
		return nil
	}
	if err := consumer.SubscribeTopics(topics, rebalance); err != nil {
		return nil, errors.Join(fmt.Errorf("xkafka: subscribe: %w", err), consumer.Close())
	}
	return s, nil
}

func newSource(consumer kafkaConsumer, opts ...SourceOption) *Source {
	o := defaultSourceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Source{
		consumer: consumer,
		opts:     o,
		tracker:  newOffsetTracker(),
		held:     make(map[partitionKey][]*heldRecord),
	}
}

// Fetch 先返回已到期的暂存消息，否则 Poll 一次。未到期的消息暂存并 Pause 其分区。
func (s *Source) Fetch(ctx context.Context) (*xdelay.InboundRecord, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.opts.now()
	if rec := s.releaseDue(ctx, now); rec != nil {
		return rec, nil
	}

	timeout := s.opts.PollTimeout
	if due, ok := s.nextDue(); ok {
		timeout = min(timeout, max(due.Sub(now), time.Millisecond))
	}
	switch e := s.consumer.Poll(int(timeout.Milliseconds())).(type) {
	case nil:
		return nil, nil
	case *kafka.Message:
		return s.accept(ctx, e, now)
	case kafka.Error:
		s.errs.Add(1)
		if e.IsFatal() {
			return nil, fmt.Errorf("xkafka: fatal: %w", e)
		}
		s.opts.Logger.Warn(ctx, "kafka 客户端错误", xlog.Err(e), xlog.Worker(s.opts.Worker))
		return nil, nil
	case kafka.AssignedPartitions, kafka.RevokedPartitions:
		s.onRebalance(e)
		return nil, nil
	default:
		return nil, nil
	}
}

func (s *Source) accept(ctx context.Context, m *kafka.Message, now time.Time) (*xdelay.InboundRecord, error) {
	if err := m.TopicPartition.Error; err != nil {
		s.errs.Add(1)
		return nil, fmt.Errorf("xkafka: fetch: %w", err)
	}
	rec := toInbound(m)
	s.tracker.track(rec.Topic, rec.Partition, rec.Offset)
	s.fetched.Add(1)

	due, ok := rec.DeliverAt()
	if !ok || due.Sub(now) <= s.opts.DeliverTolerance {
		return rec, nil
	}
	k := partitionKey{rec.Topic, rec.Partition}
	if len(s.held[k]) == 0 {
		if err := s.consumer.Pause([]kafka.TopicPartition{m.TopicPartition}); err != nil {
			s.opts.Logger.Warn(ctx, "暂停分区失败", xlog.Topic(rec.Topic),
				slog.Int("partition", int(rec.Partition)), xlog.Err(err))
		}
	}
	s.held[k] = append(s.held[k], &heldRecord{rec: rec, due: due})
	s.holding.Add(1)
	s.opts.Logger.Debug(ctx, "消息未到期，暂存",
		xlog.Topic(rec.Topic), slog.Int64("offset", rec.Offset), xlog.Duration(due.Sub(now)))
	return nil, nil
}

// releaseDue 取出最早到期的暂存消息；分区暂存清空后 Resume。
func (s *Source) releaseDue(ctx context.Context, now time.Time) *xdelay.InboundRecord {
	var (
		best  partitionKey
		found bool
	)
	for k, q := range s.held {
		if q[0].due.After(now.Add(s.opts.DeliverTolerance)) {
			continue
		}
		if !found || q[0].due.Before(s.held[best][0].due) {
			best, found = k, true
		}
	}
	if !found {
		return nil
	}
	q := s.held[best]
	h := q[0]
	if len(q) == 1 {
		delete(s.held, best)
		topic := best.topic
		if err := s.consumer.Resume([]kafka.TopicPartition{{Topic: &topic, Partition: best.partition}}); err != nil {
			s.opts.Logger.Warn(ctx, "恢复分区失败", xlog.Topic(topic),
				slog.Int("partition", int(best.partition)), xlog.Err(err))
		}
	} else {
		s.held[best] = q[1:]
	}
	s.holding.Add(-1)
	return h.rec
}

func (s *Source) nextDue() (time.Time, bool) {
	var (
		next time.Time
		ok   bool
	)
	for _, q := range s.held {
		if !ok || q[0].due.Before(next) {
			next, ok = q[0].due, true
		}
	}
	return next, ok
}

// onRebalance 分区被回收时丢弃暂存消息与在途 offset。
func (s *Source) onRebalance(ev kafka.Event) {
	revoked, ok := ev.(kafka.RevokedPartitions)
	if !ok {
		return
	}
	for _, tp := range revoked.Partitions {
		if tp.Topic == nil {
			continue
		}
		k := partitionKey{*tp.Topic, tp.Partition}
		s.holding.Add(-int64(len(s.held[k])))
		delete(s.held, k)
		s.tracker.reset(k.topic, k.partition)
	}
}

// Commit 标记完成；所在分区连续完成时存储下一个 offset，由 auto-commit 提交。
func (s *Source) Commit(_ context.Context, rec *xdelay.InboundRecord) error {
	if rec == nil {
		return ErrNilMessage
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return ErrClosed
	}
	next, ok := s.tracker.complete(rec.Topic, rec.Partition, rec.Offset)
	if !ok {
		return nil
	}
	topic := rec.Topic
	if _, err := s.consumer.StoreOffsets([]kafka.TopicPartition{{
		Topic:     &topic,
		Partition: rec.Partition,
		Offset:    kafka.Offset(next),
	}}); err != nil {
		s.errs.Add(1)
		return fmt.Errorf("xkafka: store offset: %w", err)
	}
	s.committed.Add(1)
	return nil
}

// Health 检查分区分配，未分配时拉取元数据。
func (s *Source) Health(ctx context.Context) (err error) {
	if s.closed.Load() {
		return ErrClosed
	}
	ctx, span := xmetrics.Start(ctx, s.opts.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "health",
		Kind:      xmetrics.KindClient,
		Attrs:     kafkaAttrs(""),
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	done := make(chan error, 1)
	go func() {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.closed.Load() {
			done <- ErrClosed
			return
		}
		assignment, err := s.consumer.Assignment()
		if err == nil && len(assignment) == 0 {
			_, err = s.consumer.GetMetadata(nil, true, int(s.opts.HealthTimeout.Milliseconds()))
		}
		if err != nil {
			err = fmt.Errorf("xkafka: consumer health: %w", err)
		}
		done <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err = <-done:
		return err
	}
}

// Stats 计数快照。
func (s *Source) Stats() SourceStats {
	return SourceStats{
		Fetched:   s.fetched.Load(),
		Committed: s.committed.Load(),
		Held:      s.holding.Load(),
		InFlight:  s.tracker.inFlight(),
		Errors:    s.errs.Load(),
	}
}

// Close 提交已存储的 offset 后关闭消费者。重复调用返回 ErrClosed。
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	_, commitErr := s.consumer.Commit()
	var kerr kafka.Error
	if errors.As(commitErr, &kerr) && kerr.Code() == kafka.ErrNoOffset {
		commitErr = nil
	}
	if commitErr != nil {
		commitErr = fmt.Errorf("xkafka: commit on close: %w", commitErr)
	}
	return errors.Join(commitErr, s.consumer.Close())
}

func toInbound(m *kafka.Message) *xdelay.InboundRecord {
	headers := make(map[string][]byte, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = h.Value
	}
	var topic string
	if m.TopicPartition.Topic != nil {
		topic = *m.TopicPartition.Topic
	}
	return &xdelay.InboundRecord{
		Topic:     topic,
		Partition: m.TopicPartition.Partition,
		Offset:    int64(m.TopicPartition.Offset),
		Key:       m.Key,
		Value:     m.Value,
		Timestamp: m.Timestamp,
		Headers:   headers,
	}
}

var (
	_ xdelay.Source = (*Source)(nil)
	_ kafkaConsumer = (*kafka.Consumer)(nil)
)
