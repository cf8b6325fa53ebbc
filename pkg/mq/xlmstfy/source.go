package xlmstfy

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bitleak/lmstfy/client"

	"github.com/omeyang/xdelay/internal/mqcore"
	"github.com/omeyang/xdelay/pkg/mq/xdelay"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

// Source 实现 xdelay.Source。
type Source struct {
	c      *Client
	topics []string
	worker int
	closed atomic.Bool
}

// Sources 返回 SourceFactory，所有 worker 共享底层 HTTP 客户端。
func (c *Client) Sources() xdelay.SourceFactory {
	return func(topics []string, worker int) (xdelay.Source, error) {
		return c.NewSource(topics, worker)
	}
}

// NewSource 从 topics 对应的队列拉取任务。
func (c *Client) NewSource(topics []string, worker int) (*Source, error) {
	if len(topics) == 0 {
		return nil, ErrEmptyTopics
	}
	return &Source{c: c, topics: append([]string(nil), topics...), worker: worker}, nil
}

// Fetch 阻塞至多 PollTimeout 拉取一个任务，超时返回 (nil, nil)。
// lmstfy 拉取不感知 ctx，仅在调用前检查。
func (s *Source) Fetch(ctx context.Context) (*xdelay.InboundRecord, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := s.c.opts
	job, err := s.c.q.ConsumeFromQueues(seconds(o.TTR), seconds(o.PollTimeout), s.topics...)
	if err != nil {
		s.c.errs.Add(1)
		return nil, fmt.Errorf("xlmstfy: consume: %w", err)
	}
	if job == nil {
		return nil, nil
	}
	s.c.fetched.Add(1)
	return s.toInbound(ctx, job), nil
}

func (s *Source) toInbound(ctx context.Context, job *client.Job) *xdelay.InboundRecord {
	rec := &xdelay.InboundRecord{
		Topic:     job.Queue,
		Timestamp: s.c.opts.now(),
	}
	env, err := mqcore.DecodeEnvelope(job.Data)
	if err != nil || env.Payload == nil {
		s.c.opts.Logger.Debug(ctx, "任务不是信封格式，按原始数据处理",
			xlog.Topic(job.Queue), slog.String("job_id", job.ID), xlog.Worker(s.worker))
		rec.Value = job.Data
		rec.Headers = map[string][]byte{HeaderJobID: []byte(job.ID)}
		return rec
	}
	rec.Value = env.Payload
	if env.Key != "" {
		rec.Key = []byte(env.Key)
	}
	rec.Headers = make(map[string][]byte, len(env.Headers)+1)
	for k, v := range env.Headers {
		rec.Headers[k] = []byte(v)
	}
	rec.Headers[HeaderJobID] = []byte(job.ID)
	return rec
}

// Commit Ack 对应任务。
func (s *Source) Commit(ctx context.Context, rec *xdelay.InboundRecord) (err error) {
	if rec == nil {
		return ErrNilMessage
	}
	if s.closed.Load() {
		return ErrClosed
	}
	jobID := rec.Header(HeaderJobID)
	if jobID == "" {
		return ErrNotJob
	}
	_, span := xmetrics.Start(ctx, s.c.opts.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "ack",
		Kind:      xmetrics.KindConsumer,
		Attrs:     lmstfyAttrs(rec.Topic),
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	if err = s.c.q.Ack(rec.Topic, jobID); err != nil {
		s.c.errs.Add(1)
		return fmt.Errorf("xlmstfy: ack: %w", err)
	}
	s.c.acked.Add(1)
	return nil
}

// Close 停止拉取。未 Ack 的任务在 TTR 后重新投递。
func (s *Source) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return nil
}

var _ xdelay.Source = (*Source)(nil)
