package xmongo

import (
	"context"
	"time"

	"github.com/omeyang/xdelay/internal/storageopt"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

// SlowQueryInfo 慢操作信息。Filter 是原始查询条件，写日志时注意脱敏。
type SlowQueryInfo struct {
	Database   string
	Collection string
	Operation  string
	Filter     any
	Duration   time.Duration
}

// SlowQueryHook 同步钩子，在请求路径上执行。
type SlowQueryHook func(ctx context.Context, info SlowQueryInfo)

// AsyncSlowQueryHook 异步钩子。
type AsyncSlowQueryHook func(info SlowQueryInfo)

// 默认值。
const (
	DefaultQueryTimeout = 30 * time.Second
	DefaultWriteTimeout = 60 * time.Second
)

// Options RecordStore 配置。
type Options struct {
	HealthTimeout time.Duration
	// QueryTimeout 读操作的兜底超时，仅在 ctx 无 deadline 时生效，0 关闭。
	QueryTimeout time.Duration
	// WriteTimeout 写操作的兜底超时，仅在 ctx 无 deadline 时生效，0 关闭。
	WriteTimeout time.Duration

	SlowQueryThreshold time.Duration
	SlowQueryHook      SlowQueryHook
	AsyncSlowQueryHook AsyncSlowQueryHook

	Observer xmetrics.Observer
	Logger   xlog.Logger
}

// Option 配置函数。
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		HealthTimeout: storageopt.DefaultHealthTimeout,
		QueryTimeout:  DefaultQueryTimeout,
		WriteTimeout:  DefaultWriteTimeout,
		Observer:      xmetrics.NoopObserver{},
		Logger:        xlog.Default(),
	}
}

// WithHealthTimeout 健康检查超时，非正值忽略。
func WithHealthTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.HealthTimeout = d
		}
	}
}

// WithQueryTimeout 读兜底超时，负值忽略。
func WithQueryTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.QueryTimeout = d
		}
	}
}

// WithWriteTimeout 写兜底超时，负值忽略。
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.WriteTimeout = d
		}
	}
}

// WithSlowQueryThreshold 慢查询阈值，0 关闭。
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.SlowQueryThreshold = d
		}
	}
}

// WithSlowQueryHook 同步慢查询钩子。
func WithSlowQueryHook(h SlowQueryHook) Option {
	return func(o *Options) { o.SlowQueryHook = h }
}

// WithAsyncSlowQueryHook 异步慢查询钩子。
func WithAsyncSlowQueryHook(h AsyncSlowQueryHook) Option {
	return func(o *Options) { o.AsyncSlowQueryHook = h }
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
