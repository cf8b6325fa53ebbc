package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xdelay/pkg/mq/xdelay"
	"github.com/omeyang/xdelay/pkg/mq/xidem"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

// Option 配置 App。
type Option func(*options)

type options struct {
	handlers      map[string]*xdelay.HandlerBinding
	logger        xlog.LoggerWithLevel
	observer      xmetrics.Observer
	redis         redis.UniversalClient
	store         xidem.RecordStore
	statsInterval time.Duration
}

func defaultOptions() *options {
	return &options{
		handlers:      make(map[string]*xdelay.HandlerBinding),
		observer:      xmetrics.NoopObserver{},
		statsInterval: time.Minute,
	}
}

// WithHandler 为名为 container 的容器提供处理函数。
func WithHandler(container string, b *xdelay.HandlerBinding) Option {
	return func(o *options) {
		if b != nil {
			o.handlers[container] = b
		}
	}
}

// WithLogger 使用外部日志，不再按 log 配置构建。
func WithLogger(l xlog.LoggerWithLevel) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver 指标与追踪。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithRedis 使用外部 Redis 客户端，App 不负责关闭。
func WithRedis(c redis.UniversalClient) Option {
	return func(o *options) {
		if c != nil {
			o.redis = c
		}
	}
}

// WithStore 覆盖 store 配置，App 不负责关闭。
func WithStore(s xidem.RecordStore) Option {
	return func(o *options) {
		if s != nil {
			o.store = s
		}
	}
}

// WithStatsInterval 统计日志的间隔，默认 1 分钟。
func WithStatsInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.statsInterval = d
		}
	}
}

// LogHandler 只记录消息概要的处理函数。
func LogHandler(name string, logger xlog.Logger) *xdelay.HandlerBinding {
	return xdelay.BindRecord(name, func(ctx context.Context, rec *xdelay.InboundRecord) error {
		b, _ := rec.Bytes()
		logger.Info(ctx, "收到延迟消息",
			xlog.MessageID(rec.MessageID()),
			xlog.Topic(rec.Topic),
			slog.Int("retry", rec.RetryCount()),
			slog.Int("bytes", len(b)),
		)
		return nil
	})
}
