package xkafka

import (
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/omeyang/xdelay/internal/mqcore"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

// sourceOptions Source 配置。
type sourceOptions struct {
	PollTimeout   time.Duration
	HealthTimeout time.Duration
	// DeliverTolerance x-deliver-at 与当前时间的差不超过该值时直接投递。
	DeliverTolerance time.Duration
	Worker           int
	Observer         xmetrics.Observer
	Logger           xlog.Logger
	now              func() time.Time
}

func defaultSourceOptions() *sourceOptions {
	return &sourceOptions{
		PollTimeout:      100 * time.Millisecond,
		HealthTimeout:    5 * time.Second,
		DeliverTolerance: 10 * time.Millisecond,
		Observer:         xmetrics.NoopObserver{},
		Logger:           xlog.Default(),
		now:              time.Now,
	}
}

// SourceOption 配置 Source。
type SourceOption func(*sourceOptions)

// WithPollTimeout 单次 Poll 的超时，默认 100ms。
func WithPollTimeout(d time.Duration) SourceOption {
	return func(o *sourceOptions) {
		if d > 0 {
			o.PollTimeout = d
		}
	}
}

// WithSourceHealthTimeout 健康检查超时。
func WithSourceHealthTimeout(d time.Duration) SourceOption {
	return func(o *sourceOptions) {
		if d > 0 {
			o.HealthTimeout = d
		}
	}
}

// WithDeliverTolerance 到期判断的容差，默认 10ms。
func WithDeliverTolerance(d time.Duration) SourceOption {
	return func(o *sourceOptions) {
		if d >= 0 {
			o.DeliverTolerance = d
		}
	}
}

// WithWorker worker 序号，仅用于日志。
func WithWorker(i int) SourceOption {
	return func(o *sourceOptions) { o.Worker = i }
}

// WithSourceObserver 指标与追踪。
func WithSourceObserver(obs xmetrics.Observer) SourceOption {
	return func(o *sourceOptions) {
		if obs != nil {
			o.Observer = obs
		}
	}
}

// WithSourceLogger 日志。
func WithSourceLogger(l xlog.Logger) SourceOption {
	return func(o *sourceOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// publisherOptions Publisher 配置。
type publisherOptions struct {
	FlushTimeout  time.Duration
	HealthTimeout time.Duration
	Tracer        mqcore.Tracer
	Observer      xmetrics.Observer
	Logger        xlog.Logger
	now           func() time.Time
}

func defaultPublisherOptions() *publisherOptions {
	return &publisherOptions{
		FlushTimeout:  10 * time.Second,
		HealthTimeout: 5 * time.Second,
		Tracer:        mqcore.NewOTelTracer(),
		Observer:      xmetrics.NoopObserver{},
		Logger:        xlog.Default(),
		now:           time.Now,
	}
}

// PublisherOption 配置 Publisher。
type PublisherOption func(*publisherOptions)

// WithFlushTimeout 关闭时的刷新超时。
func WithFlushTimeout(d time.Duration) PublisherOption {
	return func(o *publisherOptions) {
		if d > 0 {
			o.FlushTimeout = d
		}
	}
}

// WithPublisherHealthTimeout 健康检查超时。
func WithPublisherHealthTimeout(d time.Duration) PublisherOption {
	return func(o *publisherOptions) {
		if d > 0 {
			o.HealthTimeout = d
		}
	}
}

// WithTracer 发送时注入链路上下文。
func WithTracer(t mqcore.Tracer) PublisherOption {
	return func(o *publisherOptions) {
		if t != nil {
			o.Tracer = t
		}
	}
}

// WithPublisherObserver 指标与追踪。
func WithPublisherObserver(obs xmetrics.Observer) PublisherOption {
	return func(o *publisherOptions) {
		if obs != nil {
			o.Observer = obs
		}
	}
}

// WithPublisherLogger 日志。
func WithPublisherLogger(l xlog.Logger) PublisherOption {
	return func(o *publisherOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// cloneConfig 复制配置，避免修改调用方传入的 ConfigMap。
func cloneConfig(config *kafka.ConfigMap) (*kafka.ConfigMap, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	cloned := &kafka.ConfigMap{}
	for k, v := range *config {
		if err := cloned.SetKey(k, v); err != nil {
			return nil, fmt.Errorf("xkafka: clone config key %q: %w", k, err)
		}
	}
	return cloned, nil
}
