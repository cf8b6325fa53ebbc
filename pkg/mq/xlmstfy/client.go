package xlmstfy

import (
	"sync/atomic"
	"time"

	"github.com/bitleak/lmstfy/client"

	"github.com/omeyang/xdelay/internal/mqcore"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

// jobQueue lmstfy 客户端中用到的部分。
type jobQueue interface {
	Publish(queue string, data []byte, ttlSecond uint32, tries uint16, delaySecond uint32) (string, error)
	ConsumeFromQueues(ttrSecond, timeoutSecond uint32, queues ...string) (*client.Job, error)
	Ack(queue, jobID string) error
}

// sdkQueue 把 *client.LmstfyClient 的具体错误类型统一为 error。
type sdkQueue struct {
	cli *client.LmstfyClient
}

func (q sdkQueue) Publish(queue string, data []byte, ttl uint32, tries uint16, delay uint32) (string, error) {
	id, err := q.cli.Publish(queue, data, ttl, tries, delay)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (q sdkQueue) ConsumeFromQueues(ttr, timeout uint32, queues ...string) (*client.Job, error) {
	job, err := q.cli.ConsumeFromQueues(ttr, timeout, queues...)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (q sdkQueue) Ack(queue, jobID string) error {
	if err := q.cli.Ack(queue, jobID); err != nil {
		return err
	}
	return nil
}

// Options Client 配置。
type Options struct {
	// TTR 任务被取走后未 Ack 的重新投递时间，默认 30s。
	TTR time.Duration
	// PollTimeout 单次拉取的阻塞时间，按秒取整，默认 1s。
	PollTimeout time.Duration
	// JobTTL 任务存活时间，0 表示永久。
	JobTTL time.Duration
	// Tries 最多投递次数，默认 3。
	Tries    uint16
	Tracer   mqcore.Tracer
	Observer xmetrics.Observer
	Logger   xlog.Logger
	now      func() time.Time
}

func defaultOptions() *Options {
	return &Options{
		TTR:         30 * time.Second,
		PollTimeout: time.Second,
		Tries:       3,
		Tracer:      mqcore.NewOTelTracer(),
		Observer:    xmetrics.NoopObserver{},
		Logger:      xlog.Default(),
		now:         time.Now,
	}
}

// Option 配置函数。
type Option func(*Options)

// WithTTR 设置 TTR。
func WithTTR(d time.Duration) Option {
	return func(o *Options) {
		if d >= time.Second {
			o.TTR = d
		}
	}
}

// WithPollTimeout 设置拉取阻塞时间，0 表示不阻塞。
func WithPollTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.PollTimeout = d
		}
	}
}

// WithJobTTL 设置任务存活时间。
func WithJobTTL(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.JobTTL = d
		}
	}
}

// WithTries 设置最多投递次数。
func WithTries(n uint16) Option {
	return func(o *Options) {
		if n > 0 {
			o.Tries = n
		}
	}
}

// WithTracer 发送时注入链路上下文。
func WithTracer(t mqcore.Tracer) Option {
	return func(o *Options) {
		if t != nil {
			o.Tracer = t
		}
	}
}

// WithObserver 指标与追踪。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *Options) {
		if obs != nil {
			o.Observer = obs
		}
	}
}

// WithLogger 日志。
func WithLogger(l xlog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// Stats 计数快照。
type Stats struct {
	Published int64
	Fetched   int64
	Acked     int64
	Errors    int64
}

// Client 一个 lmstfy namespace 的客户端，同时产出 Source 与 Publisher。
// 底层 HTTP 客户端并发安全，多个 Source 共享。
type Client struct {
	q    jobQueue
	opts *Options

	published atomic.Int64
	fetched   atomic.Int64
	acked     atomic.Int64
	errs      atomic.Int64
}

// NewClient 连接 host:port 上的 namespace。
func NewClient(host string, port int, namespace, token string, opts ...Option) (*Client, error) {
	if host == "" {
		return nil, ErrEmptyHost
	}
	return newClient(sdkQueue{cli: client.NewLmstfyClient(host, port, namespace, token)}, opts...), nil
}

func newClient(q jobQueue, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Client{q: q, opts: o}
}

// Stats 返回计数快照。
func (c *Client) Stats() Stats {
	return Stats{
		Published: c.published.Load(),
		Fetched:   c.fetched.Load(),
		Acked:     c.acked.Load(),
		Errors:    c.errs.Load(),
	}
}

// seconds 向上取整到秒。
func seconds(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32((d + time.Second - 1) / time.Second)
}
