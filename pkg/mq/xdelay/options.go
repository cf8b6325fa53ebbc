package xdelay

import (
	"context"
	"time"

	"github.com/omeyang/xdelay/internal/mqcore"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
	"github.com/omeyang/xdelay/pkg/resilience/xlimit"
	"github.com/omeyang/xdelay/pkg/resilience/xretry"
)

type containerOptions struct {
	logger      xlog.Logger
	observer    xmetrics.Observer
	tracer      mqcore.Tracer
	limiter     xlimit.Limiter
	pollBackoff xretry.BackoffPolicy
	stopTimeout time.Duration
	onError     func(ctx context.Context, item *DelayItem, err error)
	now         func() time.Time
}

func defaultContainerOptions() *containerOptions {
	return &containerOptions{
		logger:      xlog.Default(),
		tracer:      mqcore.NewOTelTracer(),
		pollBackoff: mqcore.DefaultBackoff(),
		stopTimeout: 30 * time.Second,
		now:         time.Now,
	}
}

// ContainerOption 容器选项。
type ContainerOption func(*containerOptions)

// WithLogger 日志，默认 xlog.Default()。
func WithLogger(l xlog.Logger) ContainerOption {
	return func(o *containerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver 指标与追踪，默认不采集。
func WithObserver(obs xmetrics.Observer) ContainerOption {
	return func(o *containerOptions) { o.observer = obs }
}

// WithTracer 从消息头提取链路上下文，默认 OTel W3C。
func WithTracer(t mqcore.Tracer) ContainerOption {
	return func(o *containerOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithLimiter 覆盖由 RateLimit 构造的本地限流器，例如多实例共享的 Redis 限流。
func WithLimiter(l xlimit.Limiter) ContainerOption {
	return func(o *containerOptions) { o.limiter = l }
}

// WithPollBackoff 拉取失败后的退避策略。
func WithPollBackoff(b xretry.BackoffPolicy) ContainerOption {
	return func(o *containerOptions) {
		if b != nil {
			o.pollBackoff = b
		}
	}
}

// WithStopTimeout 停止时等待排空的最长时间，默认 30s。
func WithStopTimeout(d time.Duration) ContainerOption {
	return func(o *containerOptions) {
		if d > 0 {
			o.stopTimeout = d
		}
	}
}

// WithErrorHandler 处理失败（含转换失败、panic、被丢弃）时回调。
func WithErrorHandler(fn func(ctx context.Context, item *DelayItem, err error)) ContainerOption {
	return func(o *containerOptions) { o.onError = fn }
}
